package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is a read-only lookup table of capability definitions. It is
// built once at startup and safe for concurrent use.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry validates and indexes definitions.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}

	for i := range defs {
		def := defs[i]
		if err := validateDefinition(&def); err != nil {
			return nil, err
		}
		if _, exists := r.defs[def.ID]; exists {
			return nil, fmt.Errorf("capability %s defined twice", def.ID)
		}
		r.defs[def.ID] = &def
		r.order = append(r.order, def.ID)
	}

	return r, nil
}

// NewDefaultRegistry builds a registry from DefaultCatalog.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCatalog())
	if err != nil {
		panic(fmt.Sprintf("default capability catalog is invalid: %v", err))
	}
	return r
}

func validateDefinition(def *Definition) error {
	if def.ID == "" {
		return fmt.Errorf("capability id is required")
	}
	if def.Sensitivity.Rank() < 0 {
		return fmt.Errorf("capability %s: unknown sensitivity %q", def.ID, def.Sensitivity)
	}
	if def.Sensitivity == SensitivityHigh && len(def.IntentKeywords) == 0 {
		return fmt.Errorf("capability %s: high sensitivity requires intent keywords", def.ID)
	}

	seen := map[string]bool{}
	for _, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("capability %s: parameter without a name", def.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("capability %s: parameter %s declared twice", def.ID, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case TypeString, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		default:
			return fmt.Errorf("capability %s: parameter %s has unknown type %q", def.ID, p.Name, p.Type)
		}

		if p.CrisisValue != "" && !containsString(p.Enum, p.CrisisValue) {
			return fmt.Errorf("capability %s: crisis value %q of %s is not in its enum", def.ID, p.CrisisValue, p.Name)
		}
	}

	return nil
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (*Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// All returns every definition in catalog order.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// IDs returns every capability id in catalog order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// ByCategory returns the definitions in a category.
func (r *Registry) ByCategory(c Category) []*Definition {
	return r.filter(func(d *Definition) bool { return d.Category == c })
}

// BySensitivity returns the definitions with the given tier.
func (r *Registry) BySensitivity(s Sensitivity) []*Definition {
	return r.filter(func(d *Definition) bool { return d.Sensitivity == s })
}

// RequiringConfirmation returns the definitions gated on user confirmation.
func (r *Registry) RequiringConfirmation() []*Definition {
	return r.filter(func(d *Definition) bool { return d.RequiresConfirmation })
}

func (r *Registry) filter(keep func(*Definition) bool) []*Definition {
	var out []*Definition
	for _, id := range r.order {
		if d := r.defs[id]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (r *Registry) Categories() []Category {
	seen := map[Category]bool{}
	var out []Category
	for _, d := range r.defs {
		if !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PromptCatalog renders the capabilities as a compact list for the system prompt.
func (r *Registry) PromptCatalog() string {
	var sb strings.Builder
	for _, d := range r.All() {
		sb.WriteString(fmt.Sprintf("- %s: %s", d.ID, d.Description))
		if d.RequiresConfirmation {
			sb.WriteString(" (asks the user to confirm)")
		}
		sb.WriteString("\n")

		for _, p := range d.Parameters {
			if p.Derived {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s (%s", p.Name, p.Type))
			if p.Required {
				sb.WriteString(", required")
			}
			if len(p.Enum) > 0 {
				sb.WriteString(", one of " + strings.Join(p.Enum, "|"))
			}
			sb.WriteString(")")
			if p.Example != nil {
				sb.WriteString(fmt.Sprintf(" e.g. %v", p.Example))
			}
			sb.WriteString("\n")
		}
		if d.SafetyNotes != "" {
			sb.WriteString("    note: " + d.SafetyNotes + "\n")
		}
	}
	return sb.String()
}

// ToolDefinitions returns function-calling definitions for the LLM
func (r *Registry) ToolDefinitions() []map[string]interface{} {
	defs := make([]map[string]interface{}, 0, len(r.order))
	for _, d := range r.All() {
		defs = append(defs, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        d.ID,
				"description": d.Description,
				"parameters":  d.JSONSchema(),
			},
		})
	}
	return defs
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
