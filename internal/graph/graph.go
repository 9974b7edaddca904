// Package graph resolves "what comes next" over a form's directed page
// graph. Links are evaluated in declaration order against evaluation
// state; conditions gate which edge is taken.
package graph

import (
	"fmt"
	"time"

	"github.com/matthewbaird/formflow/internal/condition"
	"github.com/matthewbaird/formflow/internal/types"
)

// Graph wraps an immutable form definition with path lookups.
type Graph struct {
	form       *types.Form
	byPath     map[string]*types.Page
	statusPath string
}

// New validates link integrity and builds the lookup tables. Every link
// target and named condition must exist, and the start page must be a
// real page.
func New(form *types.Form) (*Graph, error) {
	g := &Graph{form: form, byPath: make(map[string]*types.Page, len(form.Pages))}
	for i := range form.Pages {
		p := &form.Pages[i]
		if _, dup := g.byPath[p.Path]; dup {
			return nil, fmt.Errorf("graph: duplicate page path %q", p.Path)
		}
		g.byPath[p.Path] = p
		if p.Kind() == types.ControllerStatus && g.statusPath == "" {
			g.statusPath = p.Path
		}
	}
	if _, ok := g.byPath[form.StartPage]; !ok {
		return nil, fmt.Errorf("graph: start page %q not found", form.StartPage)
	}
	for i := range form.Pages {
		p := &form.Pages[i]
		if p.Condition != "" {
			if _, ok := form.ConditionByName(p.Condition); !ok {
				return nil, fmt.Errorf("graph: page %q references unknown condition %q", p.Path, p.Condition)
			}
		}
		for _, link := range p.Next {
			if _, ok := g.byPath[link.Path]; !ok {
				return nil, fmt.Errorf("graph: page %q links to unknown path %q", p.Path, link.Path)
			}
			if link.Condition != "" {
				if _, ok := form.ConditionByName(link.Condition); !ok {
					return nil, fmt.Errorf("graph: page %q link to %q references unknown condition %q", p.Path, link.Path, link.Condition)
				}
			}
		}
	}
	return g, nil
}

// Start returns the entry page.
func (g *Graph) Start() *types.Page {
	return g.byPath[g.form.StartPage]
}

// Page returns the page at path.
func (g *Graph) Page(path string) (*types.Page, bool) {
	p, ok := g.byPath[path]
	return p, ok
}

// NextPath resolves the next page for the given page and evaluation
// state. The scan covers every link: the first conditioned link whose
// condition holds wins outright; otherwise the most recently seen
// unconditioned link is the default. A summary page with no links
// advances to the status page; any other page with no outcome is
// terminal and yields "".
func (g *Graph) NextPath(page *types.Page, evalState map[string]any, now time.Time) string {
	defaultPath := ""
	for _, link := range page.Next {
		if link.Condition == "" {
			// Do not stop here — a later conditioned link may still win,
			// and a later unconditioned link replaces this default.
			defaultPath = link.Path
			continue
		}
		cond, ok := g.form.ConditionByName(link.Condition)
		if !ok {
			continue
		}
		if condition.EvaluateOrFalse(cond, evalState, now) {
			return link.Path
		}
	}
	if defaultPath != "" {
		return defaultPath
	}
	if page.Kind() == types.ControllerSummary && g.statusPath != "" && g.statusPath != page.Path {
		return g.statusPath
	}
	return ""
}
