// Package config centralizes environment configuration for the samples.
// Values are read through viper so they can come from real environment
// variables or from a local .env file loaded at startup.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable names recognized by the samples. The Azure names
// match what the Foundry jumpstart infrastructure provisions, so a deployed
// environment works without renaming anything.
const (
	EnvAzureOpenAIEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAzureOpenAIAPIKey     = "AZURE_OPENAI_API_KEY"
	EnvAzureOpenAIAPIVersion = "AZURE_OPENAI_API_VERSION"
	EnvModelDeploymentName   = "MODEL_DEPLOYMENT_NAME"

	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

	EnvCosmosDBEndpoint  = "AZURE_COSMOS_DB_ENDPOINT"
	EnvCosmosDBName      = "AZURE_COSMOS_DB_NAME"
	EnvCosmosDBKey       = "AZURE_COSMOS_DB_KEY"
	EnvCosmosDBContainer = "AZURE_COSMOS_DB_CONTAINER"

	EnvHistoryDriver = "HISTORY_DRIVER"
	EnvHistoryDBPath = "HISTORY_DB_PATH"

	EnvLogFile       = "LOG_FILE"
	EnvTraceProvider = "TRACE_PROVIDER"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAzureAPIVersion = "2025-01-01-preview"
	DefaultHistoryDriver   = "sqlite"
	DefaultHistoryDBPath   = "foundry_history.db"
	DefaultCosmosContainer = "chat-history"
)

// LLMConfig carries credentials for the supported model providers. Azure is
// preferred when fully configured, then OpenAI, then Anthropic.
type LLMConfig struct {
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	DeploymentName  string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// CosmosConfig carries the Cosmos DB NoSQL connection settings used by the
// Cosmos-backed history store.
type CosmosConfig struct {
	Endpoint  string
	Database  string
	Key       string
	Container string
}

// HistoryConfig selects and parameterizes the conversation history backend.
type HistoryConfig struct {
	Driver string
	DBPath string
	Cosmos CosmosConfig
}

// Config is the full environment snapshot taken at startup.
type Config struct {
	LLM           LLMConfig
	History       HistoryConfig
	LogFile       string
	TraceProvider string
}

// Load reads a .env file when present, then resolves all known variables
// from the environment. It never fails on missing optional values; callers
// validate the sections they actually need.
func Load() (*Config, error) {
	// Missing .env is the normal case in deployed environments.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	for _, key := range []string{
		EnvAzureOpenAIEndpoint, EnvAzureOpenAIAPIKey, EnvAzureOpenAIAPIVersion,
		EnvModelDeploymentName, EnvOpenAIAPIKey, EnvAnthropicAPIKey,
		EnvCosmosDBEndpoint, EnvCosmosDBName, EnvCosmosDBKey, EnvCosmosDBContainer,
		EnvHistoryDriver, EnvHistoryDBPath, EnvLogFile, EnvTraceProvider,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault(EnvAzureOpenAIAPIVersion, DefaultAzureAPIVersion)
	v.SetDefault(EnvHistoryDriver, DefaultHistoryDriver)
	v.SetDefault(EnvHistoryDBPath, DefaultHistoryDBPath)
	v.SetDefault(EnvCosmosDBContainer, DefaultCosmosContainer)

	cfg := &Config{
		LLM: LLMConfig{
			AzureEndpoint:   strings.TrimSpace(v.GetString(EnvAzureOpenAIEndpoint)),
			AzureAPIKey:     strings.TrimSpace(v.GetString(EnvAzureOpenAIAPIKey)),
			AzureAPIVersion: strings.TrimSpace(v.GetString(EnvAzureOpenAIAPIVersion)),
			DeploymentName:  strings.TrimSpace(v.GetString(EnvModelDeploymentName)),
			OpenAIAPIKey:    strings.TrimSpace(v.GetString(EnvOpenAIAPIKey)),
			AnthropicAPIKey: strings.TrimSpace(v.GetString(EnvAnthropicAPIKey)),
		},
		History: HistoryConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString(EnvHistoryDriver))),
			DBPath: strings.TrimSpace(v.GetString(EnvHistoryDBPath)),
			Cosmos: CosmosConfig{
				Endpoint:  strings.TrimSpace(v.GetString(EnvCosmosDBEndpoint)),
				Database:  strings.TrimSpace(v.GetString(EnvCosmosDBName)),
				Key:       strings.TrimSpace(v.GetString(EnvCosmosDBKey)),
				Container: strings.TrimSpace(v.GetString(EnvCosmosDBContainer)),
			},
		},
		LogFile:       strings.TrimSpace(v.GetString(EnvLogFile)),
		TraceProvider: strings.TrimSpace(v.GetString(EnvTraceProvider)),
	}

	return cfg, nil
}

// HasAzure reports whether the Azure OpenAI section is complete enough to
// build a client against a deployment.
func (c LLMConfig) HasAzure() bool {
	return c.AzureEndpoint != "" && c.AzureAPIKey != "" && c.DeploymentName != ""
}

// HasOpenAI reports whether a plain OpenAI key is configured.
func (c LLMConfig) HasOpenAI() bool { return c.OpenAIAPIKey != "" }

// HasAnthropic reports whether an Anthropic key is configured.
func (c LLMConfig) HasAnthropic() bool { return c.AnthropicAPIKey != "" }

// Validate ensures at least one provider is usable.
func (c LLMConfig) Validate() error {
	if !c.HasAzure() && !c.HasOpenAI() && !c.HasAnthropic() {
		return fmt.Errorf("no model provider configured: set %s/%s/%s, %s, or %s",
			EnvAzureOpenAIEndpoint, EnvAzureOpenAIAPIKey, EnvModelDeploymentName,
			EnvOpenAIAPIKey, EnvAnthropicAPIKey)
	}
	return nil
}

// Configured reports whether the Cosmos endpoint and database are both set,
// the minimum needed to open the Cosmos history store.
func (c CosmosConfig) Configured() bool {
	return c.Endpoint != "" && c.Database != ""
}

// Validate checks the Cosmos section when the cosmos history driver is
// selected explicitly.
func (c CosmosConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%s is required for the cosmos history driver", EnvCosmosDBEndpoint)
	}
	if c.Database == "" {
		return fmt.Errorf("%s is required for the cosmos history driver", EnvCosmosDBName)
	}
	return nil
}

// Validate checks the history section as a whole.
func (h HistoryConfig) Validate() error {
	switch h.Driver {
	case "sqlite", "":
		return nil
	case "cosmos":
		return h.Cosmos.Validate()
	default:
		return fmt.Errorf("unknown history driver %q: expected sqlite or cosmos", h.Driver)
	}
}
