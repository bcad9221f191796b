// Package llm initializes langchaingo chat models for the providers the
// samples support. Azure OpenAI is preferred when configured, matching the
// deployment the jumpstart infrastructure provisions; plain OpenAI and
// Anthropic cover local development.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// Provider identifies a model provider.
type Provider string

const (
	ProviderAzure     Provider = "azure"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Default models used when the configuration names none. Azure deployments
// always name their model (the deployment name), so only the direct
// providers need one.
const (
	defaultOpenAIModel    = "gpt-4o"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
)

// Config carries everything Initialize needs to build a model client.
type Config struct {
	Provider    Provider
	Model       string
	Temperature float64

	// FallbackModels are tried in order when the primary model fails to
	// initialize.
	FallbackModels []string

	Credentials config.LLMConfig
	Logger      utils.ExtendedLogger
	Tracers     []observability.Tracer
	TraceID     observability.TraceID
}

// ResolveProvider picks the provider for the given credentials: Azure when
// its section is complete, then OpenAI, then Anthropic.
func ResolveProvider(creds config.LLMConfig) (Provider, error) {
	switch {
	case creds.HasAzure():
		return ProviderAzure, nil
	case creds.HasOpenAI():
		return ProviderOpenAI, nil
	case creds.HasAnthropic():
		return ProviderAnthropic, nil
	default:
		return "", creds.Validate()
	}
}

// ValidProvider reports whether name is a supported provider.
func ValidProvider(name string) bool {
	switch Provider(name) {
	case ProviderAzure, ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// Initialize builds the model client for cfg, trying fallback models when
// the primary fails, and wraps it so responses are validated and token
// usage lands in the tracers.
func Initialize(cfg Config) (llms.Model, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("llm config has no logger")
	}

	model, modelID, err := initializeWithFallback(cfg)
	if err != nil {
		return nil, err
	}

	return &providerAwareModel{
		Model:    model,
		provider: cfg.Provider,
		modelID:  modelID,
		tracers:  cfg.Tracers,
		traceID:  cfg.TraceID,
		log:      cfg.Logger,
	}, nil
}

func initializeWithFallback(cfg Config) (llms.Model, string, error) {
	model, err := initializeModel(cfg, cfg.Model)
	if err == nil {
		return model, cfg.Model, nil
	}

	if len(cfg.FallbackModels) > 0 {
		cfg.Logger.Warnf("llm: primary model %q failed (%v), trying %d fallbacks",
			cfg.Model, err, len(cfg.FallbackModels))
		for _, fallback := range cfg.FallbackModels {
			model, ferr := initializeModel(cfg, fallback)
			if ferr == nil {
				cfg.Logger.Infof("llm: using fallback model %q", fallback)
				return model, fallback, nil
			}
			cfg.Logger.Warnf("llm: fallback model %q failed: %v", fallback, ferr)
		}
	}

	return nil, "", fmt.Errorf("initialize %s model %q: %w", cfg.Provider, cfg.Model, err)
}

func initializeModel(cfg Config, modelID string) (llms.Model, error) {
	creds := cfg.Credentials

	switch cfg.Provider {
	case ProviderAzure:
		if !creds.HasAzure() {
			return nil, fmt.Errorf("azure provider selected but %s, %s, or %s is unset",
				config.EnvAzureOpenAIEndpoint, config.EnvAzureOpenAIAPIKey, config.EnvModelDeploymentName)
		}
		if modelID == "" {
			modelID = creds.DeploymentName
		}
		// Azure routes by deployment name, passed as the model.
		return openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(creds.AzureEndpoint),
			openai.WithToken(creds.AzureAPIKey),
			openai.WithAPIVersion(creds.AzureAPIVersion),
			openai.WithModel(modelID),
		)

	case ProviderOpenAI:
		if !creds.HasOpenAI() {
			return nil, fmt.Errorf("openai provider selected but %s is unset", config.EnvOpenAIAPIKey)
		}
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		return openai.New(
			openai.WithToken(creds.OpenAIAPIKey),
			openai.WithModel(modelID),
		)

	case ProviderAnthropic:
		if !creds.HasAnthropic() {
			return nil, fmt.Errorf("anthropic provider selected but %s is unset", config.EnvAnthropicAPIKey)
		}
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		return anthropic.New(
			anthropic.WithToken(creds.AnthropicAPIKey),
			anthropic.WithModel(modelID),
		)

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// providerAwareModel decorates the underlying model: it rejects unusable
// responses before they reach the conversation loop and records token usage
// with the run's tracers.
type providerAwareModel struct {
	llms.Model
	provider Provider
	modelID  string
	tracers  []observability.Tracer
	traceID  observability.TraceID
	log      utils.ExtendedLogger
}

// Provider returns the provider this model was built for.
func (m *providerAwareModel) Provider() Provider { return m.provider }

// ModelID returns the model (or Azure deployment) name in use.
func (m *providerAwareModel) ModelID() string { return m.modelID }

func (m *providerAwareModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	start := time.Now()
	resp, err := m.Model.GenerateContent(ctx, messages, options...)
	elapsed := time.Since(start)

	if err != nil {
		m.log.WithError(err).Debugf("llm: %s/%s generation failed after %s", m.provider, m.modelID, elapsed)
		return nil, err
	}
	if err := validateResponse(resp); err != nil {
		m.log.Warnf("llm: %s/%s returned unusable response: %v", m.provider, m.modelID, err)
		return nil, err
	}

	usage := ExtractUsage(resp)
	m.log.Debugf("llm: %s/%s generated in %s (in=%d out=%d tokens)",
		m.provider, m.modelID, elapsed, usage.InputTokens, usage.OutputTokens)
	for _, tracer := range m.tracers {
		tracer.RecordUsage(m.traceID, m.modelID, usage)
	}
	return resp, nil
}

func validateResponse(resp *llms.ContentResponse) error {
	if resp == nil {
		return fmt.Errorf("model returned nil response")
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("model returned no choices")
	}
	choice := resp.Choices[0]
	if choice.Content == "" && len(choice.ToolCalls) == 0 {
		return fmt.Errorf("model returned empty content with no tool calls")
	}
	return nil
}

// ExtractUsage reads token counts from the response's generation info. The
// providers report them under different key styles, so both are checked.
func ExtractUsage(resp *llms.ContentResponse) observability.UsageMetrics {
	usage := observability.UsageMetrics{Unit: "TOKENS"}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].GenerationInfo == nil {
		return usage
	}

	info := resp.Choices[0].GenerationInfo
	usage.InputTokens = intFromInfo(info, "PromptTokens", "input_tokens", "prompt_tokens", "InputTokens")
	usage.OutputTokens = intFromInfo(info, "CompletionTokens", "output_tokens", "completion_tokens", "OutputTokens")
	usage.TotalTokens = intFromInfo(info, "TotalTokens", "total_tokens")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return usage
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := info[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}
