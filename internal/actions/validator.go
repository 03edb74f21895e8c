package actions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gmsas95/myrai-care/internal/capability"
)

// ValidationResult reports schema violations for one request
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
	// Warnings are non-fatal, such as parameters the capability does not declare.
	Warnings []string `json:"warnings,omitempty"`
}

// Message joins the violations into one user-facing sentence.
func (v *ValidationResult) Message() string {
	return strings.Join(v.Violations, "; ")
}

// Validate checks required presence, runtime type and enum membership.
// It applies no domain rules.
func Validate(req *ActionRequest, def *capability.Definition) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, p := range def.Parameters {
		value, present := req.Parameters[p.Name]
		if !present || value == nil {
			if p.Required {
				result.Violations = append(result.Violations, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}

		if !matchesType(value, p.Type) {
			result.Violations = append(result.Violations,
				fmt.Sprintf("parameter %q must be a %s, got %s", p.Name, p.Type, describeType(value)))
			continue
		}

		if len(p.Enum) > 0 {
			s, _ := value.(string)
			if !inEnum(p.Enum, s) {
				result.Violations = append(result.Violations,
					fmt.Sprintf("parameter %q must be one of [%s], got %q", p.Name, strings.Join(p.Enum, ", "), s))
			}
		}
	}

	var unknown []string
	for name := range req.Parameters {
		if _, ok := def.Param(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown parameter %q ignored", name))
	}

	result.Valid = len(result.Violations) == 0
	return result
}

func matchesType(value interface{}, t capability.ParamType) bool {
	switch t {
	case capability.TypeString:
		_, ok := value.(string)
		return ok
	case capability.TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case capability.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case capability.TypeArray:
		switch value.(type) {
		case []interface{}, []string, []int:
			return true
		}
		return false
	case capability.TypeObject:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}

func describeType(value interface{}) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []interface{}, []string, []int:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func inEnum(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}
