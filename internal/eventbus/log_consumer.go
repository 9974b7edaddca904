package eventbus

import (
	"context"
	"log"

	"github.com/matthewbaird/formflow/internal/event"
)

// LogConsumer writes every event to the process log. Useful as a
// permanent audit trail in development and as a liveness check that the
// bus is dispatching.
type LogConsumer struct{}

func (LogConsumer) HandleEvent(_ context.Context, evt event.FormEvent) error {
	log.Printf("event: %s form=%s session=%s page=%s", evt.EventType, evt.FormSlug, evt.SessionKey, evt.PagePath)
	return nil
}
