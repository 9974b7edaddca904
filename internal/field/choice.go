package field

import (
	"strings"

	"github.com/matthewbaird/formflow/internal/types"
)

// YesNo is a boolean single-choice field. State and context values are
// bool; an unanswered optional field has context value nil.
type YesNo struct {
	def types.Component
}

func (f *YesNo) Def() types.Component { return f.def }
func (f *YesNo) Keys() []string       { return []string{f.def.Name} }

func boolValue(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.TrimSpace(b) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

func (f *YesNo) FormValueFromState(state map[string]any) any {
	if b, ok := boolValue(state[f.def.Name]); ok {
		return b
	}
	return nil
}

func (f *YesNo) ContextValueFromState(state map[string]any) any {
	if b, ok := boolValue(state[f.def.Name]); ok {
		return b
	}
	return nil
}

func (f *YesNo) StateFromValidForm(payload map[string]any) map[string]any {
	if b, ok := boolValue(payload[f.def.Name]); ok {
		return map[string]any{f.def.Name: b}
	}
	return map[string]any{f.def.Name: nil}
}

func (f *YesNo) FormDataFromState(state map[string]any) map[string]any {
	if b, ok := boolValue(state[f.def.Name]); ok {
		return map[string]any{f.def.Name: b}
	}
	return map[string]any{f.def.Name: ""}
}

func (f *YesNo) DisplayStringFromState(state map[string]any) string {
	b, ok := boolValue(state[f.def.Name])
	if !ok {
		return ""
	}
	if b {
		return "Yes"
	}
	return "No"
}

func (f *YesNo) Validate(payload map[string]any) []ValidationError {
	if _, ok := boolValue(payload[f.def.Name]); ok {
		return nil
	}
	if stringValue(payload[f.def.Name]) == "" {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(f.def.Name, "Select %s", f.def.Title)}
		}
		return nil
	}
	return []ValidationError{errorFor(f.def.Name, "Select %s", f.def.Title)}
}

// SingleChoice backs radios, selects, and autocompletes: one stored value
// drawn from a named list. Unanswered optional fields have context value
// nil, never the empty string, so "is" conditions against real options
// stay false.
type SingleChoice struct {
	def   types.Component
	items []types.ListItem
}

func (f *SingleChoice) Def() types.Component { return f.def }
func (f *SingleChoice) Keys() []string       { return []string{f.def.Name} }

// Items exposes the option list for view models.
func (f *SingleChoice) Items() []types.ListItem { return f.items }

func (f *SingleChoice) item(v any) (types.ListItem, bool) {
	for _, it := range f.items {
		if valuesEqual(it.Value, v) {
			return it, true
		}
	}
	return types.ListItem{}, false
}

func (f *SingleChoice) FormValueFromState(state map[string]any) any {
	if it, ok := f.item(state[f.def.Name]); ok {
		return it.Value
	}
	return nil
}

func (f *SingleChoice) ContextValueFromState(state map[string]any) any {
	if it, ok := f.item(state[f.def.Name]); ok {
		return it.Value
	}
	return nil
}

func (f *SingleChoice) StateFromValidForm(payload map[string]any) map[string]any {
	if it, ok := f.item(payload[f.def.Name]); ok {
		return map[string]any{f.def.Name: it.Value}
	}
	return map[string]any{f.def.Name: nil}
}

func (f *SingleChoice) FormDataFromState(state map[string]any) map[string]any {
	if it, ok := f.item(state[f.def.Name]); ok {
		return map[string]any{f.def.Name: it.Value}
	}
	return map[string]any{f.def.Name: ""}
}

func (f *SingleChoice) DisplayStringFromState(state map[string]any) string {
	if it, ok := f.item(state[f.def.Name]); ok {
		return it.Text
	}
	return ""
}

func (f *SingleChoice) Validate(payload map[string]any) []ValidationError {
	raw := payload[f.def.Name]
	if stringValue(raw) == "" {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(f.def.Name, "Select %s", f.def.Title)}
		}
		return nil
	}
	if _, ok := f.item(raw); !ok {
		return []ValidationError{errorFor(f.def.Name, "Select %s from the list", f.def.Title)}
	}
	return nil
}

// Checkboxes stores zero or more values from a named list. State and
// context values are always slices — an unanswered group is [], never nil,
// so "contains" conditions evaluate cleanly.
type Checkboxes struct {
	def   types.Component
	items []types.ListItem
}

func (f *Checkboxes) Def() types.Component    { return f.def }
func (f *Checkboxes) Keys() []string          { return []string{f.def.Name} }
func (f *Checkboxes) Items() []types.ListItem { return f.items }

func (f *Checkboxes) item(v any) (types.ListItem, bool) {
	for _, it := range f.items {
		if valuesEqual(it.Value, v) {
			return it, true
		}
	}
	return types.ListItem{}, false
}

// selected filters a raw value down to known list items, preserving order.
func (f *Checkboxes) selected(raw any) []any {
	var out []any
	for _, v := range sliceValue(raw) {
		if it, ok := f.item(v); ok {
			out = append(out, it.Value)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

func (f *Checkboxes) FormValueFromState(state map[string]any) any {
	return f.selected(state[f.def.Name])
}

func (f *Checkboxes) ContextValueFromState(state map[string]any) any {
	return f.selected(state[f.def.Name])
}

func (f *Checkboxes) StateFromValidForm(payload map[string]any) map[string]any {
	return map[string]any{f.def.Name: f.selected(payload[f.def.Name])}
}

func (f *Checkboxes) FormDataFromState(state map[string]any) map[string]any {
	return map[string]any{f.def.Name: f.selected(state[f.def.Name])}
}

func (f *Checkboxes) DisplayStringFromState(state map[string]any) string {
	var texts []string
	for _, v := range f.selected(state[f.def.Name]) {
		if it, ok := f.item(v); ok {
			texts = append(texts, it.Text)
		}
	}
	return strings.Join(texts, ", ")
}

func (f *Checkboxes) Validate(payload map[string]any) []ValidationError {
	values := sliceValue(payload[f.def.Name])
	if len(values) == 0 {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(f.def.Name, "Select %s", f.def.Title)}
		}
		return nil
	}
	var errs []ValidationError
	for _, v := range values {
		if _, ok := f.item(v); !ok {
			errs = append(errs, errorFor(f.def.Name, "Select %s from the list", f.def.Title))
			break
		}
	}
	return errs
}
