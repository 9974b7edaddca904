package field

import (
	"strings"

	"github.com/matthewbaird/formflow/internal/types"
)

// addressParts lists the UK address sub-keys in part order. Line 2 and
// county are always optional.
var addressParts = []string{"line1", "line2", "town", "county", "postcode"}

var addressPartTitles = map[string]string{
	"line1":    "address line 1",
	"line2":    "address line 2",
	"town":     "town or city",
	"county":   "county",
	"postcode": "postcode",
}

var addressRequired = map[string]bool{
	"line1":    true,
	"town":     true,
	"postcode": true,
}

// UKAddress is a five-part composite. Its context value is the array of
// non-empty lines in part order, or nil when every part is empty.
type UKAddress struct {
	def types.Component
}

func (f *UKAddress) Def() types.Component { return f.def }

func (f *UKAddress) Keys() []string {
	keys := make([]string, len(addressParts))
	for i, p := range addressParts {
		keys[i] = f.def.Name + "__" + p
	}
	return keys
}

// lines returns the non-empty parts in part order.
func (f *UKAddress) lines(m map[string]any) []string {
	var out []string
	for _, p := range addressParts {
		if v := stringValue(m[f.def.Name+"__"+p]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (f *UKAddress) FormValueFromState(state map[string]any) any {
	lines := f.lines(state)
	if len(lines) == 0 {
		return nil
	}
	return strings.Join(lines, ", ")
}

func (f *UKAddress) ContextValueFromState(state map[string]any) any {
	lines := f.lines(state)
	if len(lines) == 0 {
		return nil
	}
	out := make([]any, len(lines))
	for i, l := range lines {
		out[i] = l
	}
	return out
}

func (f *UKAddress) StateFromValidForm(payload map[string]any) map[string]any {
	out := map[string]any{}
	for _, p := range addressParts {
		key := f.def.Name + "__" + p
		if v := stringValue(payload[key]); v != "" {
			out[key] = v
		} else {
			out[key] = nil
		}
	}
	return out
}

func (f *UKAddress) FormDataFromState(state map[string]any) map[string]any {
	out := map[string]any{}
	for _, p := range addressParts {
		key := f.def.Name + "__" + p
		out[key] = stringValue(state[key])
	}
	return out
}

func (f *UKAddress) DisplayStringFromState(state map[string]any) string {
	return strings.Join(f.lines(state), ", ")
}

func (f *UKAddress) Validate(payload map[string]any) []ValidationError {
	empty := true
	for _, p := range addressParts {
		if stringValue(payload[f.def.Name+"__"+p]) != "" {
			empty = false
			break
		}
	}
	if empty {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(f.def.Name+"__line1", "Enter %s", f.def.Title)}
		}
		return nil
	}

	var errs []ValidationError
	for _, p := range addressParts {
		if !addressRequired[p] {
			continue
		}
		key := f.def.Name + "__" + p
		if stringValue(payload[key]) == "" {
			errs = append(errs, errorFor(key, "Enter %s", addressPartTitles[p]))
		}
	}
	return errs
}
