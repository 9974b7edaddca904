package field

import (
	"fmt"

	"github.com/matthewbaird/formflow/internal/types"
)

// Field type tags, matching the "type" value in component definitions.
const (
	TypeText          = "text"
	TypeMultilineText = "multiline-text"
	TypeEmail         = "email"
	TypeNumber        = "number"
	TypeYesNo         = "yes-no"
	TypeRadios        = "radios"
	TypeSelect        = "select"
	TypeAutocomplete  = "autocomplete"
	TypeCheckboxes    = "checkboxes"
	TypeDateParts     = "date-parts"
	TypeMonthYear     = "month-year"
	TypeUKAddress     = "uk-address"
	TypeFileUpload    = "file-upload"
)

// Known reports whether a type tag maps to an implementation.
func Known(typeTag string) bool {
	switch typeTag {
	case TypeText, TypeMultilineText, TypeEmail, TypeNumber,
		TypeYesNo, TypeRadios, TypeSelect, TypeAutocomplete,
		TypeCheckboxes, TypeDateParts, TypeMonthYear, TypeUKAddress,
		TypeFileUpload:
		return true
	}
	return false
}

// New builds the field implementation for a component definition. Choice
// fields resolve their option list from lists; referencing a missing list
// is a definition error.
func New(def types.Component, lists map[string]types.List) (Field, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("field: component with type %q has no name", def.Type)
	}
	switch def.Type {
	case TypeText, TypeMultilineText:
		return &Text{def: def}, nil
	case TypeEmail:
		return &Text{def: def, email: true}, nil
	case TypeNumber:
		return &Number{def: def}, nil
	case TypeYesNo:
		return &YesNo{def: def}, nil
	case TypeRadios, TypeSelect, TypeAutocomplete:
		items, err := listItems(def, lists)
		if err != nil {
			return nil, err
		}
		return &SingleChoice{def: def, items: items}, nil
	case TypeCheckboxes:
		items, err := listItems(def, lists)
		if err != nil {
			return nil, err
		}
		return &Checkboxes{def: def, items: items}, nil
	case TypeDateParts:
		return &DateParts{def: def}, nil
	case TypeMonthYear:
		return &MonthYear{def: def}, nil
	case TypeUKAddress:
		return &UKAddress{def: def}, nil
	case TypeFileUpload:
		return &FileUpload{def: def}, nil
	default:
		return nil, fmt.Errorf("field: unknown type %q for component %q", def.Type, def.Name)
	}
}

func listItems(def types.Component, lists map[string]types.List) ([]types.ListItem, error) {
	if def.List == "" {
		return nil, fmt.Errorf("field: component %q (%s) requires a list", def.Name, def.Type)
	}
	l, ok := lists[def.List]
	if !ok {
		return nil, fmt.Errorf("field: component %q references unknown list %q", def.Name, def.List)
	}
	return l.Items, nil
}
