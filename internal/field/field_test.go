package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/formflow/internal/types"
)

func build(t *testing.T, def types.Component, lists ...types.List) Field {
	t.Helper()
	m := map[string]types.List{}
	for _, l := range lists {
		m[l.Name] = l
	}
	f, err := New(def, m)
	require.NoError(t, err)
	return f
}

func colourList() types.List {
	return types.List{Name: "colours", Items: []types.ListItem{
		{Text: "Red", Value: "red"},
		{Text: "Green", Value: "green"},
		{Text: "Blue", Value: "blue"},
	}}
}

func optional() *bool {
	v := false
	return &v
}

func TestText_RoundTrip(t *testing.T) {
	f := build(t, types.Component{Name: "firstName", Type: TypeText, Title: "first name"})

	state := f.StateFromValidForm(map[string]any{"firstName": "  Ann "})
	assert.Equal(t, map[string]any{"firstName": "Ann"}, state)

	// Round trip: state -> form data -> state reproduces the original.
	again := f.StateFromValidForm(f.FormDataFromState(state))
	assert.Equal(t, state, again)

	assert.Equal(t, "Ann", f.ContextValueFromState(state))
	assert.Equal(t, "Ann", f.DisplayStringFromState(state))
}

func TestText_EmptyOptionalContextIsEmptyString(t *testing.T) {
	f := build(t, types.Component{Name: "nickname", Type: TypeText, Title: "nickname", Options: types.Options{Required: optional()}})

	// Conditions must never see undefined for an optional text field.
	assert.Equal(t, "", f.ContextValueFromState(map[string]any{}))
	assert.Empty(t, f.Validate(map[string]any{}))
}

func TestText_RequiredAndLength(t *testing.T) {
	f := build(t, types.Component{Name: "ref", Type: TypeText, Title: "your reference", Options: types.Options{MaxLength: 5}})

	errs := f.Validate(map[string]any{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ref", errs[0].Key)
	assert.Equal(t, "#ref", errs[0].Anchor)

	errs = f.Validate(map[string]any{"ref": "toolong"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "5 characters or fewer")
}

func TestEmail_Format(t *testing.T) {
	f := build(t, types.Component{Name: "email", Type: TypeEmail, Title: "your email address"})

	assert.Empty(t, f.Validate(map[string]any{"email": "ann@example.com"}))
	errs := f.Validate(map[string]any{"email": "not-an-email"})
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Key)
}

func TestNumber_RoundTripAndBounds(t *testing.T) {
	min, max := 1.0, 10.0
	f := build(t, types.Component{Name: "count", Type: TypeNumber, Title: "how many", Options: types.Options{Min: &min, Max: &max}})

	state := f.StateFromValidForm(map[string]any{"count": "3"})
	assert.Equal(t, map[string]any{"count": 3.0}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))
	assert.Equal(t, 3.0, f.ContextValueFromState(state))

	assert.Empty(t, f.Validate(map[string]any{"count": 5.0}))
	require.Len(t, f.Validate(map[string]any{"count": "abc"}), 1)
	require.Len(t, f.Validate(map[string]any{"count": 11.0}), 1)
	require.Len(t, f.Validate(map[string]any{"count": 0.0}), 1)
}

func TestYesNo_RoundTripAndDisplay(t *testing.T) {
	f := build(t, types.Component{Name: "ukPassport", Type: TypeYesNo, Title: "whether you have a UK passport"})

	state := f.StateFromValidForm(map[string]any{"ukPassport": true})
	assert.Equal(t, map[string]any{"ukPassport": true}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))
	assert.Equal(t, true, f.ContextValueFromState(state))
	assert.Equal(t, "Yes", f.DisplayStringFromState(state))

	// Unanswered single choice is nil, not false.
	assert.Nil(t, f.ContextValueFromState(map[string]any{}))
}

func TestSingleChoice_MembershipAndDisplay(t *testing.T) {
	f := build(t, types.Component{Name: "colour", Type: TypeRadios, Title: "favourite colour", List: "colours"}, colourList())

	state := f.StateFromValidForm(map[string]any{"colour": "green"})
	assert.Equal(t, map[string]any{"colour": "green"}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))
	assert.Equal(t, "green", f.ContextValueFromState(state))
	assert.Equal(t, "Green", f.DisplayStringFromState(state))

	assert.Nil(t, f.ContextValueFromState(map[string]any{}))
	require.Len(t, f.Validate(map[string]any{"colour": "purple"}), 1)
}

func TestCheckboxes_DefaultsToEmptySlice(t *testing.T) {
	f := build(t, types.Component{Name: "colours", Type: TypeCheckboxes, Title: "colours", List: "colours", Options: types.Options{Required: optional()}}, colourList())

	// Unselected optional checkbox group is [], never nil.
	assert.Equal(t, []any{}, f.ContextValueFromState(map[string]any{}))

	state := f.StateFromValidForm(map[string]any{"colours": []any{"red", "blue"}})
	assert.Equal(t, map[string]any{"colours": []any{"red", "blue"}}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))
	assert.Equal(t, "Red, Blue", f.DisplayStringFromState(state))
}

func TestCheckboxes_ScalarPayloadBecomesSlice(t *testing.T) {
	f := build(t, types.Component{Name: "colours", Type: TypeCheckboxes, Title: "colours", List: "colours"}, colourList())

	state := f.StateFromValidForm(map[string]any{"colours": "red"})
	assert.Equal(t, map[string]any{"colours": []any{"red"}}, state)
}

func TestDateParts_RoundTrip(t *testing.T) {
	f := build(t, types.Component{Name: "dob", Type: TypeDateParts, Title: "date of birth"})

	assert.Equal(t, []string{"dob__day", "dob__month", "dob__year"}, f.Keys())

	state := f.StateFromValidForm(map[string]any{
		"dob__day": "2", "dob__month": "1", "dob__year": "2000",
	})
	assert.Equal(t, map[string]any{"dob__day": 2.0, "dob__month": 1.0, "dob__year": 2000.0}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))

	assert.Equal(t, "2000-01-02", f.ContextValueFromState(state))
	assert.Equal(t, "2 January 2000", f.DisplayStringFromState(state))
}

func TestDateParts_CompositeDefaulting(t *testing.T) {
	f := build(t, types.Component{Name: "dob", Type: TypeDateParts, Title: "date of birth", Options: types.Options{Required: optional()}})

	// All parts empty: context value is nil, never a partial object.
	assert.Nil(t, f.ContextValueFromState(map[string]any{}))
	assert.Empty(t, f.Validate(map[string]any{}))

	// Partial parts are incomplete, not a date.
	assert.Nil(t, f.ContextValueFromState(map[string]any{"dob__day": 2.0}))

	// Structurally invalid dates collapse to nil too.
	assert.Nil(t, f.ContextValueFromState(map[string]any{
		"dob__day": 32.0, "dob__month": 1.0, "dob__year": 2000.0,
	}))
}

func TestDateParts_PartErrorOrdering(t *testing.T) {
	f := build(t, types.Component{Name: "dob", Type: TypeDateParts, Title: "date of birth"})

	// Day errors come before month before year.
	errs := f.Validate(map[string]any{"dob__year": "2000"})
	require.Len(t, errs, 2)
	assert.Equal(t, "dob__day", errs[0].Key)
	assert.Equal(t, "dob__month", errs[1].Key)

	errs = f.Validate(map[string]any{"dob__day": "32", "dob__month": "1", "dob__year": "2000"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "real date")
}

func TestDateParts_FractionalPartsRejected(t *testing.T) {
	f := build(t, types.Component{Name: "dob", Type: TypeDateParts, Title: "date of birth"})

	// A fractional part is not a whole day; it must fail validation, not
	// truncate to one.
	errs := f.Validate(map[string]any{"dob__day": "2.5", "dob__month": "1", "dob__year": "2000"})
	require.Len(t, errs, 1)
	assert.Equal(t, "dob__day", errs[0].Key)
	assert.Contains(t, errs[0].Message, "day")

	assert.Nil(t, f.ContextValueFromState(map[string]any{
		"dob__day": 2.5, "dob__month": 1.0, "dob__year": 2000.0,
	}))
}

func TestMonthYear_FractionalPartsRejected(t *testing.T) {
	f := build(t, types.Component{Name: "moved", Type: TypeMonthYear, Title: "when you moved in"})

	errs := f.Validate(map[string]any{"moved__month": "7.5", "moved__year": "2019"})
	require.Len(t, errs, 1)
	assert.Equal(t, "moved__month", errs[0].Key)

	assert.Nil(t, f.ContextValueFromState(map[string]any{"moved__month": 7.5, "moved__year": 2019.0}))
}

func TestMonthYear_RoundTrip(t *testing.T) {
	f := build(t, types.Component{Name: "moved", Type: TypeMonthYear, Title: "when you moved in"})

	state := f.StateFromValidForm(map[string]any{"moved__month": "7", "moved__year": "2019"})
	assert.Equal(t, map[string]any{"moved__month": 7.0, "moved__year": 2019.0}, state)
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))
	assert.Equal(t, "2019-07", f.ContextValueFromState(state))
	assert.Equal(t, "July 2019", f.DisplayStringFromState(state))

	assert.Nil(t, f.ContextValueFromState(map[string]any{"moved__month": 7.0}))
}

func TestUKAddress_ContextCollapsesToLines(t *testing.T) {
	f := build(t, types.Component{Name: "home", Type: TypeUKAddress, Title: "your address"})

	state := f.StateFromValidForm(map[string]any{
		"home__line1":    "1 High Street",
		"home__town":     "Leeds",
		"home__postcode": "LS1 1AA",
	})
	assert.Equal(t, state, f.StateFromValidForm(f.FormDataFromState(state)))

	ctx := f.ContextValueFromState(state)
	assert.Equal(t, []any{"1 High Street", "Leeds", "LS1 1AA"}, ctx)
	assert.Equal(t, "1 High Street, Leeds, LS1 1AA", f.DisplayStringFromState(state))

	// Entirely empty optional address collapses to nil.
	opt := build(t, types.Component{Name: "home", Type: TypeUKAddress, Title: "your address", Options: types.Options{Required: optional()}})
	assert.Nil(t, opt.ContextValueFromState(map[string]any{}))
}

func TestUKAddress_RequiredParts(t *testing.T) {
	f := build(t, types.Component{Name: "home", Type: TypeUKAddress, Title: "your address"})

	errs := f.Validate(map[string]any{"home__line1": "1 High Street"})
	require.Len(t, errs, 2)
	assert.Equal(t, "home__town", errs[0].Key)
	assert.Equal(t, "home__postcode", errs[1].Key)
}

func TestFileUpload_ContextIsCount(t *testing.T) {
	f := build(t, types.Component{Name: "evidence", Type: TypeFileUpload, Title: "your evidence"})

	assert.Equal(t, 0.0, f.ContextValueFromState(map[string]any{}))

	state := map[string]any{"evidence": []any{
		map[string]any{"uploadId": "u1", "filename": "a.pdf", "status": "ready"},
	}}
	assert.Equal(t, 1.0, f.ContextValueFromState(state))
	assert.Equal(t, "1 file uploaded", f.DisplayStringFromState(state))

	require.Len(t, f.Validate(map[string]any{}), 1)
}

func TestRegistry_UnknownTypeAndMissingList(t *testing.T) {
	_, err := New(types.Component{Name: "x", Type: "telepathy", Title: "x"}, nil)
	require.Error(t, err)

	_, err = New(types.Component{Name: "x", Type: TypeRadios, Title: "x", List: "missing"}, nil)
	require.Error(t, err)
}
