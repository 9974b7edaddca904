package field

import (
	"net/mail"
	"strconv"

	"github.com/matthewbaird/formflow/internal/types"
)

// Text handles single-line text, multiline text, and email inputs. The
// three share storage and conversion behaviour and differ only in
// validation.
type Text struct {
	def   types.Component
	email bool
}

func (f *Text) Def() types.Component { return f.def }
func (f *Text) Keys() []string       { return []string{f.def.Name} }

func (f *Text) FormValueFromState(state map[string]any) any {
	return stringValue(state[f.def.Name])
}

// ContextValueFromState returns the stored string, or "" when unanswered —
// conditions must never see undefined for an optional text field.
func (f *Text) ContextValueFromState(state map[string]any) any {
	return stringValue(state[f.def.Name])
}

func (f *Text) StateFromValidForm(payload map[string]any) map[string]any {
	s := stringValue(payload[f.def.Name])
	if s == "" {
		return map[string]any{f.def.Name: nil}
	}
	return map[string]any{f.def.Name: s}
}

func (f *Text) FormDataFromState(state map[string]any) map[string]any {
	return map[string]any{f.def.Name: stringValue(state[f.def.Name])}
}

func (f *Text) DisplayStringFromState(state map[string]any) string {
	return stringValue(state[f.def.Name])
}

func (f *Text) Validate(payload map[string]any) []ValidationError {
	s := stringValue(payload[f.def.Name])
	var errs []ValidationError
	if s == "" {
		if f.def.Options.IsRequired() {
			errs = append(errs, errorFor(f.def.Name, "Enter %s", f.def.Title))
		}
		return errs
	}
	if max := f.def.Options.MaxLength; max > 0 && len(s) > max {
		errs = append(errs, errorFor(f.def.Name, "%s must be %d characters or fewer", f.def.Title, max))
	}
	if f.email {
		if _, err := mail.ParseAddress(s); err != nil {
			errs = append(errs, errorFor(f.def.Name, "Enter %s in the correct format", f.def.Title))
		}
	}
	return errs
}

// Number stores a numeric answer. State and context values are float64;
// the payload may arrive as a string or a JSON number.
type Number struct {
	def types.Component
}

func (f *Number) Def() types.Component { return f.def }
func (f *Number) Keys() []string       { return []string{f.def.Name} }

func (f *Number) FormValueFromState(state map[string]any) any {
	if n, ok := numberValue(state[f.def.Name]); ok {
		return n
	}
	return nil
}

func (f *Number) ContextValueFromState(state map[string]any) any {
	if n, ok := numberValue(state[f.def.Name]); ok {
		return n
	}
	return nil
}

func (f *Number) StateFromValidForm(payload map[string]any) map[string]any {
	if n, ok := numberValue(payload[f.def.Name]); ok {
		return map[string]any{f.def.Name: n}
	}
	return map[string]any{f.def.Name: nil}
}

func (f *Number) FormDataFromState(state map[string]any) map[string]any {
	if n, ok := numberValue(state[f.def.Name]); ok {
		return map[string]any{f.def.Name: n}
	}
	return map[string]any{f.def.Name: ""}
}

func (f *Number) DisplayStringFromState(state map[string]any) string {
	if n, ok := numberValue(state[f.def.Name]); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func (f *Number) Validate(payload map[string]any) []ValidationError {
	raw := stringValue(payload[f.def.Name])
	if raw == "" {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(f.def.Name, "Enter %s", f.def.Title)}
		}
		return nil
	}
	n, ok := numberValue(payload[f.def.Name])
	if !ok {
		return []ValidationError{errorFor(f.def.Name, "%s must be a number", f.def.Title)}
	}
	var errs []ValidationError
	if min := f.def.Options.Min; min != nil && n < *min {
		errs = append(errs, errorFor(f.def.Name, "%s must be %s or more", f.def.Title, strconv.FormatFloat(*min, 'f', -1, 64)))
	}
	if max := f.def.Options.Max; max != nil && n > *max {
		errs = append(errs, errorFor(f.def.Name, "%s must be %s or less", f.def.Title, strconv.FormatFloat(*max, 'f', -1, 64)))
	}
	return errs
}
