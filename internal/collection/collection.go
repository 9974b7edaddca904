// Package collection aggregates one page's fields: a merged validation
// pass keyed by storage key, a reverse map from storage key to owning
// field for error routing, and declaration-ordered view models for the
// rendering layer.
package collection

import (
	"fmt"

	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/types"
)

// Collection is the ordered set of fields on one page.
type Collection struct {
	fields []field.Field
	byKey  map[string]field.Field
}

// New builds a collection from component definitions in declaration
// order. Duplicate storage keys across fields are a definition error.
func New(defs []types.Component, lists map[string]types.List) (*Collection, error) {
	c := &Collection{byKey: make(map[string]field.Field)}
	for _, def := range defs {
		f, err := field.New(def, lists)
		if err != nil {
			return nil, err
		}
		for _, key := range f.Keys() {
			if _, exists := c.byKey[key]; exists {
				return nil, fmt.Errorf("collection: duplicate storage key %q", key)
			}
			c.byKey[key] = f
		}
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// Fields returns the fields in declaration order.
func (c *Collection) Fields() []field.Field { return c.fields }

// FieldFor maps a storage key (including composite sub-keys) back to its
// owning field.
func (c *Collection) FieldFor(key string) (field.Field, bool) {
	f, ok := c.byKey[key]
	return f, ok
}

// Validate runs every field against the payload and collects all
// failures — no short-circuit on the first. Errors come back in field
// declaration order, then part order within a composite field.
func (c *Collection) Validate(payload map[string]any) []field.ValidationError {
	var errs []field.ValidationError
	for _, f := range c.fields {
		errs = append(errs, f.Validate(payload)...)
	}
	return errs
}

// StateFromValidForm converts a validated payload into one merged state
// patch. Only call after Validate returned no errors.
func (c *Collection) StateFromValidForm(payload map[string]any) map[string]any {
	patch := map[string]any{}
	for _, f := range c.fields {
		for k, v := range f.StateFromValidForm(payload) {
			patch[k] = v
		}
	}
	return patch
}

// FormDataFromState produces the payload that re-populates the page.
func (c *Collection) FormDataFromState(state map[string]any) map[string]any {
	data := map[string]any{}
	for _, f := range c.fields {
		for k, v := range f.FormDataFromState(state) {
			data[k] = v
		}
	}
	return data
}

// ContextValues reads every field's condition-facing value out of the
// given state slice, keyed by field name. Composite fields collapse to a
// single value; absent optional fields yield their type's empty value.
func (c *Collection) ContextValues(state map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range c.fields {
		out[f.Def().Name] = f.ContextValueFromState(state)
	}
	return out
}

// RawValues copies every storage key the collection owns out of state,
// keeping the stored shape (composite parts stay split).
func (c *Collection) RawValues(state map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range c.fields {
		for _, key := range f.Keys() {
			if v, ok := state[key]; ok {
				out[key] = v
			}
		}
	}
	return out
}

// ViewModel is the per-field projection the rendering layer consumes.
type ViewModel struct {
	Name   string                  `json:"name"`
	Type   string                  `json:"type"`
	Title  string                  `json:"title"`
	Hint   string                  `json:"hint,omitempty"`
	Value  any                     `json:"value"`
	Items  []types.ListItem        `json:"items,omitempty"`
	Errors []field.ValidationError `json:"errors,omitempty"`
}

// ViewModels projects the page's fields in declaration order, attaching
// each validation error to the field that owns its storage key.
func (c *Collection) ViewModels(state map[string]any, errs []field.ValidationError) []ViewModel {
	byField := map[string][]field.ValidationError{}
	for _, e := range errs {
		if f, ok := c.byKey[e.Key]; ok {
			byField[f.Def().Name] = append(byField[f.Def().Name], e)
		}
	}

	models := make([]ViewModel, 0, len(c.fields))
	for _, f := range c.fields {
		def := f.Def()
		vm := ViewModel{
			Name:   def.Name,
			Type:   def.Type,
			Title:  def.Title,
			Hint:   def.Hint,
			Value:  f.FormValueFromState(state),
			Errors: byField[def.Name],
		}
		switch ff := f.(type) {
		case *field.SingleChoice:
			vm.Items = ff.Items()
		case *field.Checkboxes:
			vm.Items = ff.Items()
		}
		models = append(models, vm)
	}
	return models
}
