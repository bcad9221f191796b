package config

import (
	"testing"
)

// The Cosmos DB variable names are part of the contract with the
// provisioning templates; renaming them breaks deployed environments.
func TestCosmosEnvNames(t *testing.T) {
	if EnvCosmosDBEndpoint != "AZURE_COSMOS_DB_ENDPOINT" {
		t.Errorf("EnvCosmosDBEndpoint = %q, want %q", EnvCosmosDBEndpoint, "AZURE_COSMOS_DB_ENDPOINT")
	}
	if EnvCosmosDBName != "AZURE_COSMOS_DB_NAME" {
		t.Errorf("EnvCosmosDBName = %q, want %q", EnvCosmosDBName, "AZURE_COSMOS_DB_NAME")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv(EnvCosmosDBEndpoint, "https://unit-test.documents.azure.com:443/")
	t.Setenv(EnvCosmosDBName, "unit-test-db")
	t.Setenv(EnvAzureOpenAIEndpoint, "https://unit-test.openai.azure.com/")
	t.Setenv(EnvAzureOpenAIAPIKey, "secret")
	t.Setenv(EnvModelDeploymentName, "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.History.Cosmos.Endpoint; got != "https://unit-test.documents.azure.com:443/" {
		t.Errorf("cosmos endpoint = %q", got)
	}
	if got := cfg.History.Cosmos.Database; got != "unit-test-db" {
		t.Errorf("cosmos database = %q", got)
	}
	if !cfg.History.Cosmos.Configured() {
		t.Error("Cosmos.Configured() = false with endpoint and database set")
	}
	if !cfg.LLM.HasAzure() {
		t.Error("LLM.HasAzure() = false with endpoint, key, and deployment set")
	}
	if err := cfg.LLM.Validate(); err != nil {
		t.Errorf("LLM.Validate() = %v, want nil", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.History.Driver != DefaultHistoryDriver {
		t.Errorf("history driver = %q, want %q", cfg.History.Driver, DefaultHistoryDriver)
	}
	if cfg.History.DBPath != DefaultHistoryDBPath {
		t.Errorf("history db path = %q, want %q", cfg.History.DBPath, DefaultHistoryDBPath)
	}
	if cfg.History.Cosmos.Container != DefaultCosmosContainer {
		t.Errorf("cosmos container = %q, want %q", cfg.History.Cosmos.Container, DefaultCosmosContainer)
	}
	if cfg.LLM.AzureAPIVersion != DefaultAzureAPIVersion {
		t.Errorf("azure api version = %q, want %q", cfg.LLM.AzureAPIVersion, DefaultAzureAPIVersion)
	}
}

func TestHistoryValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     HistoryConfig
		wantErr bool
	}{
		{name: "sqlite", cfg: HistoryConfig{Driver: "sqlite"}, wantErr: false},
		{name: "empty driver", cfg: HistoryConfig{}, wantErr: false},
		{
			name: "cosmos complete",
			cfg: HistoryConfig{
				Driver: "cosmos",
				Cosmos: CosmosConfig{Endpoint: "https://x.documents.azure.com", Database: "db"},
			},
			wantErr: false,
		},
		{
			name:    "cosmos missing endpoint",
			cfg:     HistoryConfig{Driver: "cosmos", Cosmos: CosmosConfig{Database: "db"}},
			wantErr: true,
		},
		{
			name:    "cosmos missing database",
			cfg:     HistoryConfig{Driver: "cosmos", Cosmos: CosmosConfig{Endpoint: "https://x"}},
			wantErr: true,
		},
		{name: "unknown driver", cfg: HistoryConfig{Driver: "dynamo"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLLMValidateRequiresAProvider(t *testing.T) {
	var empty LLMConfig
	if err := empty.Validate(); err == nil {
		t.Error("Validate() = nil with no provider configured")
	}

	anthropicOnly := LLMConfig{AnthropicAPIKey: "k"}
	if err := anthropicOnly.Validate(); err != nil {
		t.Errorf("Validate() = %v with anthropic key set", err)
	}
}
