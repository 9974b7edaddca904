// Package definition loads immutable form definitions from JSON files,
// validated against an embedded CUE schema before the engine ever sees
// them. Unknown field types, malformed links, and dangling condition
// references are load-time errors, not request-time surprises.
package definition

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/types"
)

//go:embed schema.cue
var schemaSource string

// Parse validates raw JSON against the CUE schema and decodes it into a
// Form. Semantic checks beyond the schema's reach (list references,
// repeat configuration) run afterwards.
func Parse(data []byte) (*types.Form, error) {
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("definition: schema compile: %w", err)
	}

	expr, err := cuejson.Extract("form.json", data)
	if err != nil {
		return nil, fmt.Errorf("definition: invalid JSON: %w", err)
	}
	doc := cctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("definition: build: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Form")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("definition: schema validation: %w", err)
	}

	var form types.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("definition: decode: %w", err)
	}
	if err := check(&form); err != nil {
		return nil, err
	}
	return &form, nil
}

// check enforces cross-references the schema cannot express.
func check(form *types.Form) error {
	lists := map[string]bool{}
	for _, l := range form.Lists {
		lists[l.Name] = true
	}
	for _, p := range form.Pages {
		for _, comp := range p.Components {
			if !field.Known(comp.Type) {
				return fmt.Errorf("definition: page %q component %q has unknown type %q", p.Path, comp.Name, comp.Type)
			}
			if comp.List != "" && !lists[comp.List] {
				return fmt.Errorf("definition: page %q component %q references unknown list %q", p.Path, comp.Name, comp.List)
			}
		}
		if p.Kind() == types.ControllerRepeat {
			if p.Repeat == nil || p.Repeat.Name == "" {
				return fmt.Errorf("definition: repeat page %q has no repeat configuration", p.Path)
			}
			if p.Repeat.Max > 0 && p.Repeat.Min > p.Repeat.Max {
				return fmt.Errorf("definition: repeat page %q has min %d greater than max %d", p.Path, p.Repeat.Min, p.Repeat.Max)
			}
		}
	}
	return nil
}

// Registry serves loaded definitions by slug.
type Registry struct {
	forms map[string]*types.Form
}

// LoadDir parses every *.json file in dir. Duplicate slugs are an error.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("definition: read dir: %w", err)
	}
	reg := &Registry{forms: make(map[string]*types.Form)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("definition: read %s: %w", entry.Name(), err)
		}
		form, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("definition: %s: %w", entry.Name(), err)
		}
		if _, dup := reg.forms[form.Slug]; dup {
			return nil, fmt.Errorf("definition: duplicate slug %q in %s", form.Slug, entry.Name())
		}
		reg.forms[form.Slug] = form
	}
	return reg, nil
}

// NewRegistry builds a registry from already-parsed forms. Used by tests
// and embedded deployments.
func NewRegistry(forms ...*types.Form) *Registry {
	reg := &Registry{forms: make(map[string]*types.Form, len(forms))}
	for _, f := range forms {
		reg.forms[f.Slug] = f
	}
	return reg
}

// Get returns the form for a slug.
func (r *Registry) Get(slug string) (*types.Form, bool) {
	f, ok := r.forms[slug]
	return f, ok
}

// Slugs lists the registered form slugs, sorted.
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.forms))
	for slug := range r.forms {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
