package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formflow/internal/upload"
)

// streamMessage is one frame pushed to the client while an upload scan
// is in flight.
type streamMessage struct {
	Type     string `json:"type"` // "status", "done", "error"
	UploadID string `json:"uploadId,omitempty"`
	Status   string `json:"status,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StreamUploadStatus upgrades to WebSocket and pushes each status
// transition as the scanning service reports it. The poll underneath is
// the same Poller the plain status endpoint uses, observed through
// Watch: past the attempt cap the stream ends with an error frame.
func (rn *Runner) StreamUploadStatus(w http.ResponseWriter, r *http.Request) {
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

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("uploadstream: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	lastStatus := ""
	result, err := rn.poller.Watch(ctx, uploadID, func(res upload.StatusResult) {
		if res.Status == lastStatus {
			return
		}
		lastStatus = res.Status
		rn.streamSend(ctx, conn, streamMessage{Type: "status", UploadID: uploadID, Status: res.Status})
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		code := "UPLOAD_ERROR"
		if errors.Is(err, upload.ErrUploadTimeout) {
			code = "UPLOAD_TIMEOUT"
		}
		rn.streamSend(ctx, conn, streamMessage{Type: "error", UploadID: uploadID, Code: code, Message: err.Error()})
		return
	}

	if err := rn.recordUploadResult(r, eng, page, uploadField, key, result); err != nil {
		rn.streamSend(ctx, conn, streamMessage{Type: "error", UploadID: uploadID, Code: "STATE_ERROR", Message: err.Error()})
		return
	}
	rn.streamSend(ctx, conn, streamMessage{Type: "done", UploadID: uploadID, Status: result.Status})
	conn.Close(websocket.StatusNormalClosure, "settled")
}

func (rn *Runner) streamSend(ctx context.Context, conn *websocket.Conn, msg streamMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("uploadstream: write error: %v", err)
	}
}
