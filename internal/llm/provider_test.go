package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
)

type stubModel struct {
	resp *llms.ContentResponse
	err  error
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return s.resp, s.err
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestResolveProviderPrefersAzure(t *testing.T) {
	creds := config.LLMConfig{
		AzureEndpoint:   "https://x.openai.azure.com/",
		AzureAPIKey:     "key",
		DeploymentName:  "gpt-4o",
		OpenAIAPIKey:    "also-set",
		AnthropicAPIKey: "also-set",
	}
	p, err := ResolveProvider(creds)
	if err != nil {
		t.Fatalf("ResolveProvider() error = %v", err)
	}
	if p != ProviderAzure {
		t.Errorf("provider = %q, want %q", p, ProviderAzure)
	}
}

func TestResolveProviderFallsThrough(t *testing.T) {
	p, err := ResolveProvider(config.LLMConfig{AnthropicAPIKey: "k"})
	if err != nil {
		t.Fatalf("ResolveProvider() error = %v", err)
	}
	if p != ProviderAnthropic {
		t.Errorf("provider = %q, want %q", p, ProviderAnthropic)
	}

	if _, err := ResolveProvider(config.LLMConfig{}); err == nil {
		t.Error("ResolveProvider() = nil error with no credentials")
	}
}

func TestValidProvider(t *testing.T) {
	for _, name := range []string{"azure", "openai", "anthropic"} {
		if !ValidProvider(name) {
			t.Errorf("ValidProvider(%q) = false", name)
		}
	}
	if ValidProvider("bedrock") {
		t.Error("ValidProvider(bedrock) = true")
	}
}

func TestProviderAwareModelRejectsEmptyResponse(t *testing.T) {
	cases := []struct {
		name string
		resp *llms.ContentResponse
	}{
		{name: "nil response", resp: nil},
		{name: "no choices", resp: &llms.ContentResponse{}},
		{
			name: "empty content without tool calls",
			resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: ""}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &providerAwareModel{
				Model:    &stubModel{resp: tc.resp},
				provider: ProviderAzure,
				modelID:  "gpt-4o",
				log:      logger.CreateTestLogger(),
			}
			_, err := model.GenerateContent(context.Background(), nil)
			if err == nil {
				t.Error("GenerateContent() = nil error for unusable response")
			}
		})
	}
}

func TestProviderAwareModelAcceptsToolCallsWithoutText(t *testing.T) {
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           "call-1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "microsoft_docs_search", Arguments: "{}"},
		}},
	}}}

	model := &providerAwareModel{
		Model:    &stubModel{resp: resp},
		provider: ProviderAzure,
		modelID:  "gpt-4o",
		log:      logger.CreateTestLogger(),
	}
	got, err := model.GenerateContent(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if len(got.Choices[0].ToolCalls) != 1 {
		t.Errorf("tool calls lost in decoration")
	}
}

func TestExtractUsage(t *testing.T) {
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "ok",
		GenerationInfo: map[string]any{
			"PromptTokens":     120,
			"CompletionTokens": 30,
		},
	}}}

	usage := ExtractUsage(resp)
	if usage.InputTokens != 120 {
		t.Errorf("InputTokens = %d, want 120", usage.InputTokens)
	}
	if usage.OutputTokens != 30 {
		t.Errorf("OutputTokens = %d, want 30", usage.OutputTokens)
	}
	if usage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", usage.TotalTokens)
	}
}

func TestInitializeUnsupportedProvider(t *testing.T) {
	_, err := Initialize(Config{
		Provider: Provider("bedrock"),
		Logger:   logger.CreateTestLogger(),
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Errorf("Initialize() error = %v, want unsupported provider", err)
	}
}

func TestInitializeAzureRequiresCredentials(t *testing.T) {
	_, err := Initialize(Config{
		Provider: ProviderAzure,
		Logger:   logger.CreateTestLogger(),
	})
	if err == nil {
		t.Error("Initialize() = nil error without azure credentials")
	}
}
