package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/flow"
	"github.com/matthewbaird/formflow/internal/repeat"
	"github.com/matthewbaird/formflow/internal/statestore"
	"github.com/matthewbaird/formflow/internal/types"
)

// repeatPage resolves the request down to a repeat page, or answers with
// the appropriate error.
func (rn *Runner) repeatPage(w http.ResponseWriter, r *http.Request) (*flow.Engine, *types.Page, bool) {
	e, p, ok := rn.resolve(w, r)
	if !ok {
		return nil, nil, false
	}
	if p.Kind() != types.ControllerRepeat || p.Repeat == nil {
		writeError(w, http.StatusBadRequest, "NOT_A_REPEAT_PAGE", "page "+p.Path+" has no repeating list")
		return nil, nil, false
	}
	return e, p, true
}

// AddItem validates a new item and appends it to the page's list. An
// itemId is generated only when the payload does not carry one. Adding
// past the list's maximum is rejected with a list-level error.
func (rn *Runner) AddItem(w http.ResponseWriter, r *http.Request) {
	eng, page, ok := rn.repeatPage(w, r)
	if !ok {
		return
	}
	key := sessionKey(w, r)

	payload := map[string]any{}
	if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	col, _ := eng.Collection(page.Path)
	if errs := col.Validate(payload); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	item := col.StateFromValidForm(payload)
	if id, isString := payload[repeat.ItemIDKey].(string); isString && id != "" {
		item[repeat.ItemIDKey] = id
	}
	items := repeat.Items(state.Section(page.Section), page.Repeat.Name)
	items, err = repeat.Add(items, item, *page.Repeat)

	var maxErr *repeat.MaxItemsError
	if errors.As(err, &maxErr) {
		// The overflow belongs to the list, not to any item.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": []field.ValidationError{{
				Key:     page.Repeat.Name,
				Anchor:  "#" + page.Repeat.Name,
				Message: maxErr.Error(),
			}},
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "REPEAT_ERROR", err.Error())
		return
	}

	if err := rn.saveItems(r, key, page, items); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"itemId": items[len(items)-1][repeat.ItemIDKey],
		"count":  len(items),
	})
}

// UpdateItem replaces the item with the given id in place, preserving
// list order.
func (rn *Runner) UpdateItem(w http.ResponseWriter, r *http.Request) {
	eng, page, ok := rn.repeatPage(w, r)
	if !ok {
		return
	}
	key := sessionKey(w, r)
	itemID := chi.URLParam(r, "itemID")

	payload := map[string]any{}
	if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	col, _ := eng.Collection(page.Path)
	if errs := col.Validate(payload); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	items := repeat.Items(state.Section(page.Section), page.Repeat.Name)
	items, err = repeat.Update(items, itemID, col.StateFromValidForm(payload))
	if errors.Is(err, repeat.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "no item with id "+itemID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "REPEAT_ERROR", err.Error())
		return
	}

	if err := rn.saveItems(r, key, page, items); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"itemId": itemID, "count": len(items)})
}

// DeleteItem removes the item with the given id.
func (rn *Runner) DeleteItem(w http.ResponseWriter, r *http.Request) {
	_, page, ok := rn.repeatPage(w, r)
	if !ok {
		return
	}
	key := sessionKey(w, r)
	itemID := chi.URLParam(r, "itemID")

	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	items := repeat.Items(state.Section(page.Section), page.Repeat.Name)
	items, err = repeat.Remove(items, itemID)
	if errors.Is(err, repeat.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "no item with id "+itemID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "REPEAT_ERROR", err.Error())
		return
	}

	if err := rn.saveItems(r, key, page, items); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items)})
}

// saveItems writes the whole list back. The list replaces the stored one
// (no array merge) so deletes stick.
func (rn *Runner) saveItems(r *http.Request, key string, page *types.Page, items []map[string]any) error {
	patch := types.State{
		Fields: sectionPatch(page.Section, map[string]any{
			page.Repeat.Name: repeat.ToState(items),
		}),
	}
	_, err := rn.store.Merge(r.Context(), key, patch, statestore.Options{NullOverride: true})
	return err
}
