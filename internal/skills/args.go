package skills

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/gmsas95/myrai-care/internal/errors"
)

// Refuse reports a domain rule a call broke. The message is shown to the user.
func Refuse(format string, args ...interface{}) error {
	return apperrors.New(apperrors.ErrActionValidation.Code, fmt.Sprintf(format, args...))
}

// StringArg returns a trimmed string parameter or "".
func StringArg(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// NumberArg returns a numeric parameter.
func NumberArg(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// BoolArg returns a boolean parameter or false.
func BoolArg(params map[string]interface{}, key string) bool {
	v, _ := params[key].(bool)
	return v
}

// StringSliceArg returns an array parameter as strings.
func StringSliceArg(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
		return out
	}
	return nil
}

// IntSliceArg returns an array parameter as ints. Values that arrived
// through JSON are float64.
func IntSliceArg(params map[string]interface{}, key string) []int {
	switch v := params[key].(type) {
	case []int:
		return v
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int(n))
			case int:
				out = append(out, n)
			case json.Number:
				if i, err := n.Int64(); err == nil {
					out = append(out, int(i))
				}
			}
		}
		return out
	}
	return nil
}
