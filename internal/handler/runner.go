package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formflow/internal/collection"
	"github.com/matthewbaird/formflow/internal/definition"
	"github.com/matthewbaird/formflow/internal/event"
	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/flow"
	"github.com/matthewbaird/formflow/internal/repeat"
	"github.com/matthewbaird/formflow/internal/statestore"
	"github.com/matthewbaird/formflow/internal/submission"
	"github.com/matthewbaird/formflow/internal/types"
	"github.com/matthewbaird/formflow/internal/upload"
)

// Runner serves the form journeys for every registered definition. One
// replay engine is built per form at construction; requests only read
// them.
type Runner struct {
	registry *definition.Registry
	engines  map[string]*flow.Engine
	store    statestore.Store
	recorder *submission.Recorder
	uploads  upload.Service
	poller   *upload.Poller
	bus      event.Publisher
}

// NewRunner builds an engine for every registered form up front, so a
// bad definition fails at startup rather than mid-journey.
func NewRunner(reg *definition.Registry, store statestore.Store, recorder *submission.Recorder, uploads upload.Service, bus event.Publisher) (*Runner, error) {
	engines := make(map[string]*flow.Engine)
	for _, slug := range reg.Slugs() {
		form, _ := reg.Get(slug)
		eng, err := flow.New(form)
		if err != nil {
			return nil, err
		}
		engines[slug] = eng
	}
	return &Runner{
		registry: reg,
		engines:  engines,
		store:    store,
		recorder: recorder,
		uploads:  uploads,
		poller:   upload.NewPoller(uploads, 0, 0),
		bus:      bus,
	}, nil
}

// resolve extracts the engine and page for a request, answering 404 when
// either is unknown.
func (rn *Runner) resolve(w http.ResponseWriter, r *http.Request) (*flow.Engine, *types.Page, bool) {
	slug := chi.URLParam(r, "slug")
	eng, ok := rn.engines[slug]
	if !ok {
		writeError(w, http.StatusNotFound, "FORM_NOT_FOUND", "no form with slug "+slug)
		return nil, nil, false
	}
	pagePath := chi.URLParam(r, "page")
	page, ok := eng.Graph().Page(pagePath)
	if !ok {
		writeError(w, http.StatusNotFound, "PAGE_NOT_FOUND", "no page at "+pagePath)
		return nil, nil, false
	}
	return eng, page, true
}

// pageView is the view model the rendering layer consumes.
type pageView struct {
	Form         string                  `json:"form"`
	Path         string                  `json:"path"`
	PageTitle    string                  `json:"pageTitle"`
	SectionTitle string                  `json:"sectionTitle,omitempty"`
	BackLink     string                  `json:"backLink,omitempty"`
	NextPath     string                  `json:"nextPath,omitempty"`
	Components   []collection.ViewModel  `json:"components"`
	Items        []map[string]any        `json:"items,omitempty"`
	Errors       []field.ValidationError `json:"errors,omitempty"`
}

// GetPage renders a page's view model. A page that is not reachable
// under the current answers is not an error: the client is redirected to
// the last reachable page.
func (rn *Runner) GetPage(w http.ResponseWriter, r *http.Request) {
	eng, page, ok := rn.resolve(w, r)
	if !ok {
		return
	}
	key := sessionKey(w, r)
	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	replayed := eng.Replay(state)
	if !replayed.Reachable(page.Path) {
		redirectTo(w, r, eng.Form().Slug, replayed.LastPath())
		return
	}
	writeJSON(w, http.StatusOK, rn.buildView(eng, page, replayed, nil))
}

func (rn *Runner) buildView(eng *flow.Engine, page *types.Page, replayed flow.Context, errs []field.ValidationError) pageView {
	form := eng.Form()
	view := pageView{
		Form:      form.Slug,
		Path:      page.Path,
		PageTitle: page.Title,
		NextPath:  eng.Graph().NextPath(page, replayed.EvaluationState, time.Now()),
		Errors:    errs,
	}
	if page.Section != "" {
		if section, ok := form.SectionByName(page.Section); ok {
			view.SectionTitle = section.Title
		}
	}
	for i, p := range replayed.Paths {
		if p == page.Path && i > 0 {
			view.BackLink = replayed.Paths[i-1]
			break
		}
	}

	sectionState := replayed.State.Section(page.Section)
	if col, ok := eng.Collection(page.Path); ok {
		view.Components = col.ViewModels(sectionState, errs)
	}
	if page.Kind() == types.ControllerRepeat && page.Repeat != nil {
		view.Items = repeat.Items(sectionState, page.Repeat.Name)
	}
	return view
}

// PostPage accepts a page's answers: validate the whole collection,
// merge the patch into stored state, replay, and answer with the next
// path. Summary pages submit instead.
func (rn *Runner) PostPage(w http.ResponseWriter, r *http.Request) {
	eng, page, ok := rn.resolve(w, r)
	if !ok {
		return
	}
	key := sessionKey(w, r)
	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	replayed := eng.Replay(state)
	if !replayed.Reachable(page.Path) {
		redirectTo(w, r, eng.Form().Slug, replayed.LastPath())
		return
	}

	switch page.Kind() {
	case types.ControllerSummary:
		rn.submit(w, r, eng, page, key, replayed)
		return
	case types.ControllerStatus:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "status pages do not accept answers")
		return
	case types.ControllerRepeat:
		rn.advanceRepeat(w, r, eng, page, key, state, replayed)
		return
	}

	payload := map[string]any{}
	if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	col, _ := eng.Collection(page.Path)
	if page.Kind() == types.ControllerFileUpload {
		// Upload fields validate against what the scanning service has
		// accepted so far, not against the posted body.
		sectionState := state.Section(page.Section)
		for _, f := range col.Fields() {
			if f.Def().Type == field.TypeFileUpload {
				payload[f.Def().Name] = sectionState[f.Def().Name]
			}
		}
	}

	if errs := col.Validate(payload); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, rn.buildView(eng, page, replayed, errs))
		return
	}

	patch := types.State{
		Fields:   sectionPatch(page.Section, col.StateFromValidForm(payload)),
		Progress: types.PushProgress(state.Progress, page.Path),
	}
	merged, err := rn.store.Merge(r.Context(), key, patch, statestore.Options{NullOverride: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	after := eng.Replay(merged)
	rn.publish(event.TypePageSubmitted, eng.Form().Slug, key, page.Path)
	writeJSON(w, http.StatusOK, map[string]any{
		"nextPath": eng.Graph().NextPath(page, after.EvaluationState, time.Now()),
		"paths":    after.Paths,
	})
}

// advanceRepeat moves past a repeat page. Items themselves are managed
// through the item endpoints; proceeding only checks the minimum bound.
func (rn *Runner) advanceRepeat(w http.ResponseWriter, r *http.Request, eng *flow.Engine, page *types.Page, key string, state types.State, replayed flow.Context) {
	cfg := page.Repeat
	items := repeat.Items(state.Section(page.Section), cfg.Name)
	if len(items) < cfg.Min {
		errs := []field.ValidationError{{
			Key:     cfg.Name,
			Anchor:  "#" + cfg.Name,
			Message: fmt.Sprintf("Add at least %d item(s) to continue", cfg.Min),
		}}
		writeJSON(w, http.StatusUnprocessableEntity, rn.buildView(eng, page, replayed, errs))
		return
	}

	patch := types.State{Progress: types.PushProgress(state.Progress, page.Path)}
	merged, err := rn.store.Merge(r.Context(), key, patch, statestore.Options{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	after := eng.Replay(merged)
	rn.publish(event.TypePageSubmitted, eng.Form().Slug, key, page.Path)
	writeJSON(w, http.StatusOK, map[string]any{
		"nextPath": eng.Graph().NextPath(page, after.EvaluationState, time.Now()),
		"paths":    after.Paths,
	})
}

// submit closes out the journey from the summary page: record the
// submission from relevant state, clear the session, and point at the
// status page. A recorder failure is fatal to the request.
func (rn *Runner) submit(w http.ResponseWriter, r *http.Request, eng *flow.Engine, page *types.Page, key string, replayed flow.Context) {
	if rn.recorder == nil {
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "submission recording is not configured")
		return
	}
	rec := submission.Build(eng, replayed, eng.Form().Slug, key)
	if err := rn.recorder.Record(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "SUBMISSION_ERROR", err.Error())
		return
	}
	if err := rn.store.Clear(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissionId": rec.ID,
		"nextPath":     eng.Graph().NextPath(page, replayed.EvaluationState, time.Now()),
	})
}

func (rn *Runner) publish(eventType, slug, key, pagePath string) {
	if rn.bus == nil {
		return
	}
	evt := event.New(eventType, slug, key)
	evt.PagePath = pagePath
	rn.bus.Publish(evt)
}

func redirectTo(w http.ResponseWriter, r *http.Request, slug, pagePath string) {
	http.Redirect(w, r, "/forms/"+slug+"/"+pagePath, http.StatusSeeOther)
}

// sectionPatch nests a field patch under a section name when one is set.
func sectionPatch(section string, fields map[string]any) map[string]any {
	if section == "" {
		return fields
	}
	return map[string]any{section: fields}
}
