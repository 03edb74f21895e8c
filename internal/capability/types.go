// Package capability describes the actions the assistant may request and
// the rules attached to each of them.
package capability

// ParamType is the declared runtime type of a parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Sensitivity orders capabilities by how much evidence they need before running
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "low"
	SensitivityMedium   Sensitivity = "medium"
	SensitivityHigh     Sensitivity = "high"
	SensitivityCritical Sensitivity = "critical"
)

// Rank returns a comparable weight for the tier.
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityLow:
		return 0
	case SensitivityMedium:
		return 1
	case SensitivityHigh:
		return 2
	case SensitivityCritical:
		return 3
	}
	return -1
}

// Category groups capabilities by domain
type Category string

const (
	CategoryMedication Category = "medication"
	CategoryVitals     Category = "vitals"
	CategoryHydration  Category = "hydration"
	CategoryCheckIn    Category = "checkin"
	CategoryProfile    Category = "profile"
	CategoryReminders  Category = "reminders"
	CategoryCareLog    Category = "care_log"
	CategoryClinical   Category = "clinical"
)

// ParameterDefinition describes one named parameter
type ParameterDefinition struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Example     any       `json:"example,omitempty"`
	// CrisisValue is the most severe value of an enum; requests carrying it
	// run but are flagged.
	CrisisValue string `json:"crisis_value,omitempty"`
	// Derived parameters are filled in by enrichment, not by the assistant.
	Derived bool `json:"derived,omitempty"`
}

// Definition is an immutable capability description
type Definition struct {
	ID                   string                `json:"id"`
	DisplayName          string                `json:"display_name"`
	Description          string                `json:"description"`
	Category             Category              `json:"category"`
	Parameters           []ParameterDefinition `json:"parameters"`
	Sensitivity          Sensitivity           `json:"sensitivity"`
	RequiresConfirmation bool                  `json:"requires_confirmation"`
	// IntentKeywords must appear in the user's message for high tier capabilities.
	IntentKeywords []string `json:"intent_keywords,omitempty"`
	SafetyNotes    string   `json:"safety_notes,omitempty"`
	ReadOnly       bool     `json:"read_only,omitempty"`
}

// Param returns the named parameter definition.
func (d *Definition) Param(name string) (ParameterDefinition, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterDefinition{}, false
}

// RequiredParams lists the names of required parameters in declaration order.
func (d *Definition) RequiredParams() []string {
	var names []string
	for _, p := range d.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// JSONSchema renders the parameters in the JSON-schema shape used for tool
// definitions.
func (d *Definition) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Derived {
			continue
		}
		prop := map[string]interface{}{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Type == TypeArray {
			prop["items"] = map[string]interface{}{"type": "string"}
		}
		props[p.Name] = prop
	}

	required := d.RequiredParams()
	if required == nil {
		required = []string{}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
