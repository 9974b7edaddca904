// Package types provides the Go model for form definitions and session
// state. A form definition is immutable after load — pages, conditions,
// lists, and sections are read-only for the life of the process. Session
// state is the mutable per-user record the engine replays against.
package types

import (
	"encoding/json"
	"time"
)

// Form is a complete, immutable form definition.
type Form struct {
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	StartPage  string      `json:"startPage"`
	Pages      []Page      `json:"pages"`
	Conditions []Condition `json:"conditions,omitempty"`
	Lists      []List      `json:"lists,omitempty"`
	Sections   []Section   `json:"sections,omitempty"`
}

// ListByName returns the named list.
func (f *Form) ListByName(name string) (List, bool) {
	for _, l := range f.Lists {
		if l.Name == name {
			return l, true
		}
	}
	return List{}, false
}

// ConditionByName returns the named condition.
func (f *Form) ConditionByName(name string) (Condition, bool) {
	for _, c := range f.Conditions {
		if c.Name == name {
			return c, true
		}
	}
	return Condition{}, false
}

// SectionByName returns the named section.
func (f *Form) SectionByName(name string) (Section, bool) {
	for _, s := range f.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// PageByPath returns the page at the given path.
func (f *Form) PageByPath(path string) (*Page, bool) {
	for i := range f.Pages {
		if f.Pages[i].Path == path {
			return &f.Pages[i], true
		}
	}
	return nil, false
}

// Page controller kinds. Plain pages collect answers; summary and status
// close out the journey; repeat and file-upload pages delegate to their
// specialised handlers.
const (
	ControllerStart      = "start"
	ControllerPage       = "page"
	ControllerSummary    = "summary"
	ControllerStatus     = "status"
	ControllerRepeat     = "repeat"
	ControllerFileUpload = "file-upload"
)

// Page is a single step in the journey.
type Page struct {
	Path       string        `json:"path"`
	Title      string        `json:"title"`
	Section    string        `json:"section,omitempty"`
	Controller string        `json:"controller,omitempty"` // defaults to "page"
	Condition  string        `json:"condition,omitempty"`  // named condition gating the page
	Components []Component   `json:"components,omitempty"`
	Next       []Link        `json:"next,omitempty"`
	Repeat     *RepeatConfig `json:"repeat,omitempty"` // required when Controller is "repeat"
}

// Kind returns the page controller, defaulting to a plain question page.
func (p *Page) Kind() string {
	if p.Controller == "" {
		return ControllerPage
	}
	return p.Controller
}

// Link is an ordered edge to a possible next page. A link with no condition
// is a default candidate; the last such link declared wins when no
// conditioned link matches.
type Link struct {
	Path      string `json:"path"`
	Condition string `json:"condition,omitempty"`
}

// Component is a field definition. Name is the storage key; composite
// types expand into sub-keys of the form "name__part" and never store
// under the parent key itself.
type Component struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Hint    string  `json:"hint,omitempty"`
	List    string  `json:"list,omitempty"` // named list for choice fields
	Options Options `json:"options,omitempty"`
}

// Options carries per-field validation settings.
type Options struct {
	Required  *bool    `json:"required,omitempty"` // nil means required
	MaxLength int      `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// IsRequired reports whether the field must be answered. Fields are
// required unless the definition opts out explicitly.
func (o Options) IsRequired() bool {
	return o.Required == nil || *o.Required
}

// List is a named set of selectable items shared across choice fields.
type List struct {
	Name  string     `json:"name"`
	Title string     `json:"title,omitempty"`
	Items []ListItem `json:"items"`
}

// ListItem is one selectable option. Value is the stored value; Text is
// what the user sees.
type ListItem struct {
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// Section groups pages under a shared heading and nests their state one
// level deep under the section name.
type Section struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// RepeatConfig binds a repeat page to its named list in state and bounds
// the list cardinality.
type RepeatConfig struct {
	Name string `json:"name"`
	Min  int    `json:"min,omitempty"`
	Max  int    `json:"max,omitempty"`
}

// Condition is an ordered list of nodes combined left to right by each
// node's coordinator. There is no precedence or grouping: evaluation is a
// left fold seeded by the first node's result.
type Condition struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Nodes       []ConditionNode `json:"nodes"`
}

// Coordinators joining condition nodes.
const (
	CoordinatorAnd = "and"
	CoordinatorOr  = "or"
)

// Condition operators.
const (
	OpIs             = "is"
	OpIsNot          = "is not"
	OpContains       = "contains"
	OpDoesNotContain = "does not contain"
	OpIsMoreThan     = "is more than"
	OpIsLessThan     = "is less than"
)

// ConditionNode is one comparison. Coordinator is empty on the first node
// of a condition and "and" or "or" on every subsequent node.
type ConditionNode struct {
	Field       FieldRef       `json:"field"`
	Operator    string         `json:"operator"`
	Value       ConditionValue `json:"value"`
	Coordinator string         `json:"coordinator,omitempty"`
}

// FieldRef identifies the field a condition node reads. Name may be
// dot-qualified ("section.field") to reach section-scoped state.
type FieldRef struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Display string `json:"display,omitempty"`
}

// Condition value kinds.
const (
	ValueKindLiteral      = "Value"
	ValueKindRelativeDate = "RelativeDate"
)

// Relative date directions.
const (
	DirectionPast   = "past"
	DirectionFuture = "future"
)

// ConditionValue is either a literal or a relative date offset. Relative
// dates resolve against "now" at evaluation time, not definition time.
type ConditionValue struct {
	Type      string `json:"type"` // "Value" or "RelativeDate"
	Value     string `json:"value,omitempty"`
	Period    int    `json:"period,omitempty"`
	Unit      string `json:"unit,omitempty"`      // "days", "months", "years"
	Direction string `json:"direction,omitempty"` // "past" or "future"
}

// Resolve returns the cutoff time for a relative date offset.
func (v ConditionValue) Resolve(now time.Time) time.Time {
	days, months, years := 0, 0, 0
	switch v.Unit {
	case "months":
		months = v.Period
	case "years":
		years = v.Period
	default:
		days = v.Period
	}
	if v.Direction == DirectionPast {
		return now.AddDate(-years, -months, -days)
	}
	return now.AddDate(years, months, days)
}

// MaxProgress caps the progress history stack. Oldest entries are evicted
// first.
const MaxProgress = 100

// State is the per-session answer record. Fields is flat, keyed by
// storage key, with at most one level of nesting for section names. Upload
// tracks in-flight file uploads keyed by page path.
type State struct {
	Fields   map[string]any          `json:"fields,omitempty"`
	Progress []string                `json:"progress,omitempty"`
	Upload   map[string][]FileRecord `json:"upload,omitempty"`
}

// NewState returns an empty state ready for merging.
func NewState() State {
	return State{Fields: map[string]any{}}
}

// Section returns the section-scoped slice of Fields, or the top level
// when name is empty. A missing section yields an empty map.
func (s State) Section(name string) map[string]any {
	if name == "" {
		if s.Fields == nil {
			return map[string]any{}
		}
		return s.Fields
	}
	if nested, ok := s.Fields[name].(map[string]any); ok {
		return nested
	}
	return map[string]any{}
}

// PushProgress returns a copy of the history with path appended, evicting
// the oldest entry past the cap. Consecutive duplicates are collapsed.
func PushProgress(progress []string, path string) []string {
	if n := len(progress); n > 0 && progress[n-1] == path {
		return progress
	}
	out := make([]string, 0, len(progress)+1)
	out = append(out, progress...)
	out = append(out, path)
	if len(out) > MaxProgress {
		out = out[len(out)-MaxProgress:]
	}
	return out
}

// PopProgress returns the most recent entry and the history without it.
func PopProgress(progress []string) (string, []string) {
	if len(progress) == 0 {
		return "", nil
	}
	last := progress[len(progress)-1]
	rest := make([]string, len(progress)-1)
	copy(rest, progress[:len(progress)-1])
	return last, rest
}

// FileRecord is one uploaded file as reported by the upload service.
type FileRecord struct {
	UploadID string `json:"uploadId"`
	Filename string `json:"filename"`
	Status   string `json:"status"` // "pending", "scanning", "ready", "rejected"
}

// Clone returns a deep copy of the state via a JSON round trip. Used by
// stores that must not hand out aliased maps.
func (s State) Clone() State {
	raw, err := json.Marshal(s)
	if err != nil {
		return NewState()
	}
	var out State
	if err := json.Unmarshal(raw, &out); err != nil {
		return NewState()
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	return out
}
