package agents

import (
	"errors"
	"testing"
)

func TestCatalogEntriesValidate(t *testing.T) {
	for _, def := range Catalog() {
		t.Run(def.Name+"/"+def.Variant.String(), func(t *testing.T) {
			if err := def.Validate(); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	t.Run("published by default", func(t *testing.T) {
		def, err := Lookup(PersistentAgentName, "")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if def.Variant != VariantPublished {
			t.Errorf("variant = %q, want %q", def.Variant, VariantPublished)
		}
	})

	t.Run("explicit draft", func(t *testing.T) {
		def, err := Lookup(PersistentAgentName, VariantUnpublished)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if def.Variant != VariantUnpublished {
			t.Errorf("variant = %q, want %q", def.Variant, VariantUnpublished)
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := Lookup("NoSuchAgent", "")
		if !errors.Is(err, ErrAgentNotFound) {
			t.Errorf("error = %v, want ErrAgentNotFound", err)
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := Lookup(AzureArchitectName, VariantUnpublished)
		if !errors.Is(err, ErrAgentNotFound) {
			t.Errorf("error = %v, want ErrAgentNotFound", err)
		}
	})
}

func TestValidateRejectsBrokenDefinitions(t *testing.T) {
	cases := []struct {
		name string
		def  AgentDefinition
		want error
	}{
		{
			name: "missing name",
			def:  AgentDefinition{Instructions: "x", Variant: VariantPublished},
			want: ErrMissingName,
		},
		{
			name: "missing instructions",
			def:  AgentDefinition{Name: "A", Variant: VariantPublished},
			want: ErrMissingInstructions,
		},
		{
			name: "bad variant",
			def:  AgentDefinition{Name: "A", Instructions: "x", Variant: "beta"},
			want: ErrInvalidVariant,
		},
		{
			name: "temperature out of range",
			def:  AgentDefinition{Name: "A", Instructions: "x", Variant: VariantPublished, Temperature: 3},
			want: ErrInvalidTemperature,
		},
		{
			name: "mcp tool without url",
			def: AgentDefinition{
				Name: "A", Instructions: "x", Variant: VariantPublished,
				Tools: []ToolAttachment{{Type: ToolTypeMCP, ServerLabel: "docs"}},
			},
			want: ErrInvalidTool,
		},
		{
			name: "unknown tool type",
			def: AgentDefinition{
				Name: "A", Instructions: "x", Variant: VariantPublished,
				Tools: []ToolAttachment{{Type: "webhook"}},
			},
			want: ErrInvalidTool,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := AzureArchitect()
	orig.Tools[0].AllowedTools = []string{"microsoft_docs_search"}

	clone := orig.Clone()
	clone.Tools[0].ServerURL = "https://example.invalid/mcp"
	clone.Tools[0].AllowedTools[0] = "changed"
	clone.Metadata["sample"] = "changed"

	if orig.Tools[0].ServerURL != MicrosoftLearnMCPURL {
		t.Error("mutating the clone's tools changed the original")
	}
	if orig.Tools[0].AllowedTools[0] != "microsoft_docs_search" {
		t.Error("mutating the clone's allowed tools changed the original")
	}
	if orig.Metadata["sample"] != "architecture-advisor" {
		t.Error("mutating the clone's metadata changed the original")
	}
}

func TestEffectiveModel(t *testing.T) {
	def := PersistentAgentPublished()
	if got := def.EffectiveModel("gpt-4o"); got != "gpt-4o" {
		t.Errorf("EffectiveModel fallback = %q, want %q", got, "gpt-4o")
	}

	def.Model = "gpt-4o-mini"
	if got := def.EffectiveModel("gpt-4o"); got != "gpt-4o-mini" {
		t.Errorf("EffectiveModel override = %q, want %q", got, "gpt-4o-mini")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	want := []string{PersistentAgentName, AzureArchitectName}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
