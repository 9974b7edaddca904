package field

import (
	"math"
	"time"

	"github.com/matthewbaird/formflow/internal/types"
)

// intValue reads a date part as a whole number. Fractional values are
// rejected rather than truncated.
func intValue(v any) (int, bool) {
	n, ok := numberValue(v)
	if !ok || n != math.Trunc(n) {
		return 0, false
	}
	return int(n), true
}

// DateParts is a composite date field stored across three sub-keys:
// name__day, name__month, name__year. The parent key is never stored.
// Its context value is a single ISO date string, or nil when the parts
// are incomplete or do not form a real calendar date.
type DateParts struct {
	def types.Component
}

func (f *DateParts) Def() types.Component { return f.def }

func (f *DateParts) Keys() []string {
	n := f.def.Name
	return []string{n + "__day", n + "__month", n + "__year"}
}

// parts reads the three sub-keys. present reports how many are non-empty.
func (f *DateParts) parts(m map[string]any) (day, month, year int, present int) {
	read := func(key string) (int, bool) {
		return intValue(m[key])
	}
	n := f.def.Name
	if v, ok := read(n + "__day"); ok {
		day, present = v, present+1
	}
	if v, ok := read(n + "__month"); ok {
		month, present = v, present+1
	}
	if v, ok := read(n + "__year"); ok {
		year, present = v, present+1
	}
	return day, month, year, present
}

// dateOf validates the parts as a real calendar date. time.Date
// normalises overflow (day 32 becomes the next month), so the result is
// only accepted when it round-trips exactly.
func dateOf(day, month, year int) (time.Time, bool) {
	if year < 1000 || year > 9999 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

func (f *DateParts) date(state map[string]any) (time.Time, bool) {
	day, month, year, present := f.parts(state)
	if present != 3 {
		return time.Time{}, false
	}
	return dateOf(day, month, year)
}

func (f *DateParts) FormValueFromState(state map[string]any) any {
	if t, ok := f.date(state); ok {
		return t.Format("2006-01-02")
	}
	return nil
}

func (f *DateParts) ContextValueFromState(state map[string]any) any {
	if t, ok := f.date(state); ok {
		return t.Format("2006-01-02")
	}
	return nil
}

func (f *DateParts) StateFromValidForm(payload map[string]any) map[string]any {
	n := f.def.Name
	day, month, year, present := f.parts(payload)
	if present != 3 {
		return map[string]any{n + "__day": nil, n + "__month": nil, n + "__year": nil}
	}
	return map[string]any{
		n + "__day":   float64(day),
		n + "__month": float64(month),
		n + "__year":  float64(year),
	}
}

func (f *DateParts) FormDataFromState(state map[string]any) map[string]any {
	n := f.def.Name
	out := map[string]any{}
	for _, key := range []string{n + "__day", n + "__month", n + "__year"} {
		if v, ok := numberValue(state[key]); ok {
			out[key] = v
		} else {
			out[key] = ""
		}
	}
	return out
}

func (f *DateParts) DisplayStringFromState(state map[string]any) string {
	if t, ok := f.date(state); ok {
		return t.Format("2 January 2006")
	}
	return ""
}

func (f *DateParts) Validate(payload map[string]any) []ValidationError {
	n := f.def.Name
	day, month, year, present := f.parts(payload)
	if present == 0 {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(n+"__day", "Enter %s", f.def.Title)}
		}
		return nil
	}

	// Part errors are reported day before month before year.
	var errs []ValidationError
	if _, ok := intValue(payload[n+"__day"]); !ok {
		errs = append(errs, errorFor(n+"__day", "%s must include a day", f.def.Title))
	}
	if _, ok := intValue(payload[n+"__month"]); !ok {
		errs = append(errs, errorFor(n+"__month", "%s must include a month", f.def.Title))
	}
	if _, ok := intValue(payload[n+"__year"]); !ok {
		errs = append(errs, errorFor(n+"__year", "%s must include a year", f.def.Title))
	}
	if len(errs) > 0 {
		return errs
	}
	if _, ok := dateOf(day, month, year); !ok {
		return []ValidationError{errorFor(n+"__day", "%s must be a real date", f.def.Title)}
	}
	return nil
}

// MonthYear is a two-part composite date stored across name__month and
// name__year. Its context value is "2006-01", or nil when incomplete.
type MonthYear struct {
	def types.Component
}

func (f *MonthYear) Def() types.Component { return f.def }

func (f *MonthYear) Keys() []string {
	n := f.def.Name
	return []string{n + "__month", n + "__year"}
}

func (f *MonthYear) parts(m map[string]any) (month, year int, present int) {
	n := f.def.Name
	if v, ok := intValue(m[n+"__month"]); ok {
		month, present = v, present+1
	}
	if v, ok := intValue(m[n+"__year"]); ok {
		year, present = v, present+1
	}
	return month, year, present
}

func (f *MonthYear) date(state map[string]any) (time.Time, bool) {
	month, year, present := f.parts(state)
	if present != 2 || month < 1 || month > 12 || year < 1000 || year > 9999 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func (f *MonthYear) FormValueFromState(state map[string]any) any {
	if t, ok := f.date(state); ok {
		return t.Format("2006-01")
	}
	return nil
}

func (f *MonthYear) ContextValueFromState(state map[string]any) any {
	if t, ok := f.date(state); ok {
		return t.Format("2006-01")
	}
	return nil
}

func (f *MonthYear) StateFromValidForm(payload map[string]any) map[string]any {
	n := f.def.Name
	month, year, present := f.parts(payload)
	if present != 2 {
		return map[string]any{n + "__month": nil, n + "__year": nil}
	}
	return map[string]any{
		n + "__month": float64(month),
		n + "__year":  float64(year),
	}
}

func (f *MonthYear) FormDataFromState(state map[string]any) map[string]any {
	n := f.def.Name
	out := map[string]any{}
	for _, key := range []string{n + "__month", n + "__year"} {
		if v, ok := numberValue(state[key]); ok {
			out[key] = v
		} else {
			out[key] = ""
		}
	}
	return out
}

func (f *MonthYear) DisplayStringFromState(state map[string]any) string {
	if t, ok := f.date(state); ok {
		return t.Format("January 2006")
	}
	return ""
}

func (f *MonthYear) Validate(payload map[string]any) []ValidationError {
	n := f.def.Name
	month, year, present := f.parts(payload)
	if present == 0 {
		if f.def.Options.IsRequired() {
			return []ValidationError{errorFor(n+"__month", "Enter %s", f.def.Title)}
		}
		return nil
	}
	var errs []ValidationError
	if _, ok := intValue(payload[n+"__month"]); !ok {
		errs = append(errs, errorFor(n+"__month", "%s must include a month", f.def.Title))
	}
	if _, ok := intValue(payload[n+"__year"]); !ok {
		errs = append(errs, errorFor(n+"__year", "%s must include a year", f.def.Title))
	}
	if len(errs) > 0 {
		return errs
	}
	if month < 1 || month > 12 {
		errs = append(errs, errorFor(n+"__month", "%s must have a month between 1 and 12", f.def.Title))
	}
	if year < 1000 || year > 9999 {
		errs = append(errs, errorFor(n+"__year", "%s must have a 4 digit year", f.def.Title))
	}
	return errs
}
