package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formflow/internal/event"
	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/flow"
	"github.com/matthewbaird/formflow/internal/statestore"
	"github.com/matthewbaird/formflow/internal/types"
	"github.com/matthewbaird/formflow/internal/upload"
)

// uploadPage resolves the request to a file-upload page and its upload
// field.
func (rn *Runner) uploadPage(w http.ResponseWriter, r *http.Request) (*flow.Engine, *types.Page, field.Field, bool) {
	eng, page, ok := rn.resolve(w, r)
	if !ok {
		return nil, nil, nil, false
	}
	if page.Kind() != types.ControllerFileUpload {
		writeError(w, http.StatusBadRequest, "NOT_AN_UPLOAD_PAGE", "page "+page.Path+" does not accept uploads")
		return nil, nil, nil, false
	}
	col, _ := eng.Collection(page.Path)
	for _, f := range col.Fields() {
		if f.Def().Type == field.TypeFileUpload {
			return eng, page, f, true
		}
	}
	writeError(w, http.StatusInternalServerError, "NO_UPLOAD_FIELD", "upload page "+page.Path+" has no file-upload component")
	return nil, nil, nil, false
}

// InitiateUpload asks the scanning service for an upload slot and tracks
// the pending file against the page. A service failure is fatal to the
// request.
func (rn *Runner) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	eng, page, _, ok := rn.uploadPage(w, r)
	if !ok {
		return
	}
	if rn.uploads == nil {
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "upload service is not configured")
		return
	}
	key := sessionKey(w, r)

	var body struct {
		Filename string `json:"filename"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Filename == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "filename is required")
		return
	}

	initiated, err := rn.uploads.Initiate(r.Context(), upload.InitiateRequest{
		FormSlug: eng.Form().Slug,
		PagePath: page.Path,
		Filename: body.Filename,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "UPLOAD_ERROR", err.Error())
		return
	}

	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	pending := append(state.Upload[page.Path], types.FileRecord{
		UploadID: initiated.UploadID,
		Filename: body.Filename,
		Status:   upload.StatusPending,
	})
	patch := types.State{Upload: map[string][]types.FileRecord{page.Path: pending}}
	if _, err := rn.store.Merge(r.Context(), key, patch, statestore.Options{}); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, initiated)
}

// UploadStatus polls the scanning service until the upload settles,
// using the bounded backoff policy. Exhausting the retry budget is a
// request-ending timeout, not a silent retry.
func (rn *Runner) UploadStatus(w http.ResponseWriter, r *http.Request) {
	eng, page, uploadField, ok := rn.uploadPage(w, r)
	if !ok {
		return
	}
	if rn.uploads == nil {
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "upload service is not configured")
		return
	}
	key := sessionKey(w, r)
	uploadID := chi.URLParam(r, "uploadID")

	result, err := rn.poller.Wait(r.Context(), uploadID)
	if errors.Is(err, upload.ErrUploadTimeout) {
		writeError(w, http.StatusGatewayTimeout, "UPLOAD_TIMEOUT", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "UPLOAD_ERROR", err.Error())
		return
	}

	if err := rn.recordUploadResult(r, eng, page, uploadField, key, result); err != nil {
		writeError(w, http.StatusInternalServerError, "STATE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// recordUploadResult updates the page's upload tracking and, for accepted
// files, merges the file record into field state so conditions and the
// summary can see it.
func (rn *Runner) recordUploadResult(r *http.Request, eng *flow.Engine, page *types.Page, uploadField field.Field, key string, result upload.StatusResult) error {
	state, err := rn.store.Get(r.Context(), key)
	if err != nil {
		return err
	}

	records := state.Upload[page.Path]
	filename := result.Filename
	for i := range records {
		if records[i].UploadID == result.UploadID {
			records[i].Status = result.Status
			if filename == "" {
				filename = records[i].Filename
			}
		}
	}

	patch := types.State{Upload: map[string][]types.FileRecord{page.Path: records}}
	appendFile := result.Status == upload.StatusReady && !hasFile(state.Section(page.Section), uploadField.Def().Name, result.UploadID)
	if appendFile {
		fileEntry := map[string]any{
			"uploadId": result.UploadID,
			"filename": filename,
			"status":   result.Status,
		}
		patch.Fields = sectionPatch(page.Section, map[string]any{
			uploadField.Def().Name: []any{fileEntry},
		})
	}

	// Re-polling a settled upload must not duplicate the file entry.
	opts := statestore.Options{MergeArrays: appendFile}
	if _, err := rn.store.Merge(r.Context(), key, patch, opts); err != nil {
		return err
	}

	eventType := event.TypeUploadAccepted
	if result.Status == upload.StatusRejected {
		eventType = event.TypeUploadRejected
	}
	rn.publish(eventType, eng.Form().Slug, key, page.Path)
	return nil
}

// hasFile reports whether the field already holds a file for uploadID.
func hasFile(sectionState map[string]any, fieldName, uploadID string) bool {
	raw, _ := sectionState[fieldName].([]any)
	for _, v := range raw {
		if entry, ok := v.(map[string]any); ok && entry["uploadId"] == uploadID {
			return true
		}
	}
	return false
}
