package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/formflow/internal/event"
)

// recorder collects every event it sees.
type recorder struct {
	mu     sync.Mutex
	events []event.FormEvent
}

func (r *recorder) HandleEvent(_ context.Context, evt event.FormEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := New(16)
	a, b := &recorder{}, &recorder{}
	bus.Subscribe("a", a)
	bus.Subscribe("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)

	bus.Publish(event.New(event.TypePageSubmitted, "apply", "s1"))
	bus.Publish(event.New(event.TypeFormSubmitted, "apply", "s1"))

	require.Eventually(t, func() bool {
		return a.len() == 2 && b.len() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	bus.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, event.TypePageSubmitted, a.events[0].EventType)
	assert.Equal(t, event.TypeFormSubmitted, a.events[1].EventType)
}

func TestBus_DrainsBufferedEventsOnShutdown(t *testing.T) {
	bus := New(16)
	rec := &recorder{}
	bus.Subscribe("rec", rec)

	// Publish before the consumer starts so the events sit in the buffer.
	for i := 0; i < 5; i++ {
		bus.Publish(event.New(event.TypePageSubmitted, "apply", "s1"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	cancel()
	bus.Stop()

	assert.Equal(t, 5, rec.len())
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := New(1)

	// No consumer running; the second publish overflows the buffer and is
	// dropped instead of blocking.
	done := make(chan struct{})
	go func() {
		bus.Publish(event.New(event.TypePageSubmitted, "apply", "s1"))
		bus.Publish(event.New(event.TypePageSubmitted, "apply", "s1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
}

func TestHandlerFunc_Adapts(t *testing.T) {
	called := false
	h := HandlerFunc(func(context.Context, event.FormEvent) error {
		called = true
		return nil
	})
	require.NoError(t, h.HandleEvent(context.Background(), event.FormEvent{}))
	assert.True(t, called)
}
