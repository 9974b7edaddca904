// Package field implements the closed set of field types a form component
// can declare. Every type satisfies the same capability contract: convert
// between stored state, user-facing payloads, and the values conditions
// operate on, plus a display string for summaries and submissions.
//
// Composite types (dates, addresses) own multiple storage keys of the form
// "name__part"; the parent key itself is never stored.
package field

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matthewbaird/formflow/internal/types"
)

// ValidationError is one recoverable validation failure. Key is the
// storage key the failure belongs to; Anchor references the input element
// for the rendering layer.
type ValidationError struct {
	Key     string `json:"key"`
	Anchor  string `json:"anchor"`
	Message string `json:"message"`
}

func errorFor(key, format string, args ...any) ValidationError {
	return ValidationError{
		Key:     key,
		Anchor:  "#" + key,
		Message: fmt.Sprintf(format, args...),
	}
}

// Field is the capability contract every field type implements.
//
// ContextValueFromState returns nil — never a partial value — when the
// stored parts are incomplete or structurally invalid, so conditions can
// test for absence without blowing up. StateFromValidForm is only called
// after Validate passed on the same payload.
type Field interface {
	// Def returns the component definition this field was built from.
	Def() types.Component

	// Keys lists every storage key the field owns, in part order.
	Keys() []string

	// FormValueFromState returns the typed value for display.
	FormValueFromState(state map[string]any) any

	// ContextValueFromState returns the value conditions see. Composite
	// types collapse their sub-keys into one scalar or array.
	ContextValueFromState(state map[string]any) any

	// StateFromValidForm converts a validated payload into a state patch.
	StateFromValidForm(payload map[string]any) map[string]any

	// FormDataFromState produces the payload that re-populates the form.
	FormDataFromState(state map[string]any) map[string]any

	// DisplayStringFromState renders the answer for summaries.
	DisplayStringFromState(state map[string]any) string

	// Validate checks a payload and returns every failure, part-ordered.
	Validate(payload map[string]any) []ValidationError
}

// stringValue normalises a payload or state value to a trimmed string.
func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// numberValue parses a payload or state value as a float. ok is false for
// empty and non-numeric values.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// sliceValue normalises a payload value to a slice. A scalar becomes a
// one-element slice; nil and "" become an empty slice.
func sliceValue(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case nil:
		return []any{}
	case string:
		if strings.TrimSpace(s) == "" {
			return []any{}
		}
		return []any{s}
	default:
		return []any{v}
	}
}

// valuesEqual compares two loosely-typed values the way conditions do:
// numeric values compare numerically, everything else by string form.
func valuesEqual(a, b any) bool {
	if an, ok := numberValue(a); ok {
		if bn, ok := numberValue(b); ok {
			return an == bn
		}
	}
	return stringValue(a) == stringValue(b)
}
