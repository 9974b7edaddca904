// Package flow implements the replay engine. Given raw stored state, it
// walks the page graph from the start page, accumulating the subset of
// state on pages that are actually reachable under the current answers.
// Answers left behind on abandoned branches never reach conditions or the
// final submission.
//
// Replay is pure and structurally idempotent: the same stored state always
// walks the same path and produces the same relevant state, no matter how
// many times it runs or what order requests arrived in. There is no
// separate "replay mode" — every request recomputes from scratch.
package flow

import (
	"time"

	"github.com/matthewbaird/formflow/internal/collection"
	"github.com/matthewbaird/formflow/internal/condition"
	"github.com/matthewbaird/formflow/internal/graph"
	"github.com/matthewbaird/formflow/internal/types"
)

// Context is the ephemeral, per-request result of a replay.
//
// EvaluationState holds condition-friendly values: composite fields
// collapsed to one scalar or array, optional checkbox groups defaulted to
// [], optional single-choice fields defaulted to nil. RelevantState holds
// the same fields in their raw stored shape (date parts stay split).
// Both are restricted to fields on visited pages, nested one level under
// the page's section name where one is set.
type Context struct {
	State           types.State    `json:"state"`
	EvaluationState map[string]any `json:"evaluationState"`
	RelevantState   map[string]any `json:"relevantState"`
	Paths           []string       `json:"paths"`
}

// Reachable reports whether the path was visited during the replay.
func (c Context) Reachable(path string) bool {
	for _, p := range c.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// LastPath returns the furthest page the user can be on. Callers redirect
// here when a requested page is not reachable.
func (c Context) LastPath() string {
	if len(c.Paths) == 0 {
		return ""
	}
	return c.Paths[len(c.Paths)-1]
}

// Engine replays stored state over one immutable form definition.
type Engine struct {
	form        *types.Form
	graph       *graph.Graph
	collections map[string]*collection.Collection
	lists       map[string]types.List
}

// New builds the engine: the page graph plus one field collection per
// page, all validated up front so replay itself cannot fail.
func New(form *types.Form) (*Engine, error) {
	g, err := graph.New(form)
	if err != nil {
		return nil, err
	}
	lists := make(map[string]types.List, len(form.Lists))
	for _, l := range form.Lists {
		lists[l.Name] = l
	}
	collections := make(map[string]*collection.Collection, len(form.Pages))
	for i := range form.Pages {
		p := &form.Pages[i]
		col, err := collection.New(p.Components, lists)
		if err != nil {
			return nil, err
		}
		collections[p.Path] = col
	}
	return &Engine{form: form, graph: g, collections: collections, lists: lists}, nil
}

// Form returns the definition the engine was built from.
func (e *Engine) Form() *types.Form { return e.form }

// Graph returns the page graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Lists returns the form's named lists keyed by name.
func (e *Engine) Lists() map[string]types.List { return e.lists }

// Collection returns the field collection for a page path.
func (e *Engine) Collection(path string) (*collection.Collection, bool) {
	col, ok := e.collections[path]
	return col, ok
}

// Replay walks the graph against state using the current clock.
func (e *Engine) Replay(state types.State) Context {
	return e.ReplayAt(state, time.Now())
}

// ReplayAt is Replay with an explicit clock, so relative-date conditions
// are reproducible in tests.
func (e *Engine) ReplayAt(state types.State, now time.Time) Context {
	ctx := Context{
		State:           state,
		EvaluationState: map[string]any{},
		RelevantState:   map[string]any{},
	}

	visited := map[string]bool{}
	current := e.graph.Start()
	for current != nil {
		// A malformed definition could loop; refuse to revisit a page.
		if visited[current.Path] {
			break
		}
		visited[current.Path] = true

		// A page whose gate condition is closed is skipped: it never
		// joins paths and its fields stay out of relevant and evaluation
		// state. Its links still route the walk.
		if e.gateOpen(current, ctx.EvaluationState, now) {
			ctx.Paths = append(ctx.Paths, current.Path)
			e.accumulate(&ctx, current, state)
		}

		nextPath := e.graph.NextPath(current, ctx.EvaluationState, now)
		if nextPath == "" {
			break
		}
		next, ok := e.graph.Page(nextPath)
		if !ok {
			break
		}
		current = next
	}
	return ctx
}

// gateOpen evaluates the page's gate condition against the state
// accumulated so far. Pages without a gate are always open; a gate
// naming a missing condition stays closed (graph construction rejects
// that case up front).
func (e *Engine) gateOpen(page *types.Page, evalState map[string]any, now time.Time) bool {
	if page.Condition == "" {
		return true
	}
	cond, ok := e.form.ConditionByName(page.Condition)
	if !ok {
		return false
	}
	return condition.EvaluateOrFalse(cond, evalState, now)
}

// accumulate merges the page's field values into the context, nested
// under the page's section name when one is set.
func (e *Engine) accumulate(ctx *Context, page *types.Page, state types.State) {
	sectionState := state.Section(page.Section)

	if page.Kind() == types.ControllerRepeat && page.Repeat != nil {
		// Repeat pages contribute their whole item list under the list
		// name; conditions can gate on it with contains-style operators.
		items, _ := sectionState[page.Repeat.Name].([]any)
		if items == nil {
			items = []any{}
		}
		setNested(ctx.RelevantState, page.Section, page.Repeat.Name, items)
		setNested(ctx.EvaluationState, page.Section, page.Repeat.Name, items)
		return
	}

	col := e.collections[page.Path]
	if col == nil {
		return
	}
	for key, v := range col.RawValues(sectionState) {
		setNested(ctx.RelevantState, page.Section, key, v)
	}
	for key, v := range col.ContextValues(sectionState) {
		setNested(ctx.EvaluationState, page.Section, key, v)
	}
}

func setNested(dst map[string]any, section, key string, value any) {
	if section == "" {
		dst[key] = value
		return
	}
	nested, ok := dst[section].(map[string]any)
	if !ok {
		nested = map[string]any{}
		dst[section] = nested
	}
	nested[key] = value
}
