package agents

import "fmt"

// Catalog returns every sample definition in a stable order. Entries are
// freshly constructed, so mutating the result never affects later calls.
func Catalog() []AgentDefinition {
	return []AgentDefinition{
		PersistentAgentPublished(),
		PersistentAgentUnpublished(),
		AzureArchitect(),
	}
}

// Lookup finds a catalog entry by name. With an empty variant it returns the
// published copy when one exists, otherwise the single matching draft.
func Lookup(name string, variant Variant) (AgentDefinition, error) {
	var fallback *AgentDefinition
	for _, def := range Catalog() {
		if def.Name != name {
			continue
		}
		if variant == "" {
			if def.Variant == VariantPublished {
				return def, nil
			}
			d := def
			fallback = &d
			continue
		}
		if def.Variant == variant {
			return def, nil
		}
	}
	if variant == "" && fallback != nil {
		return *fallback, nil
	}
	if variant == "" {
		return AgentDefinition{}, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return AgentDefinition{}, fmt.Errorf("%w: %s (%s)", ErrAgentNotFound, name, variant)
}

// Names returns the distinct agent names in catalog order.
func Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, def := range Catalog() {
		if !seen[def.Name] {
			seen[def.Name] = true
			names = append(names, def.Name)
		}
	}
	return names
}
