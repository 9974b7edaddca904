// Package event defines form lifecycle events and the publisher contract
// downstream consumers subscribe through.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the runner.
const (
	TypePageSubmitted  = "form.page_submitted"
	TypeFormSubmitted  = "form.submitted"
	TypeUploadAccepted = "form.upload_accepted"
	TypeUploadRejected = "form.upload_rejected"
)

// FormEvent is one observable fact about a session's journey.
type FormEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	FormSlug   string          `json:"form_slug"`
	SessionKey string          `json:"session_key"`
	PagePath   string          `json:"page_path,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh id and the current time.
func New(eventType, formSlug, sessionKey string) FormEvent {
	return FormEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		FormSlug:   formSlug,
		SessionKey: sessionKey,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends events to downstream consumers. Publishing must never
// block request handling.
type Publisher interface {
	Publish(evt FormEvent)
}
