// Package eventbus provides an in-process pub/sub bus for form lifecycle
// events. Handlers publish after their state write succeeds; subscribers
// process asynchronously in a single consumer goroutine, which serialises
// downstream work without holding up requests.
package eventbus

import (
	"context"
	"log"
	"sync"

	"github.com/matthewbaird/formflow/internal/event"
)

// Handler processes a form event. Implementations must be safe for
// concurrent calls.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.FormEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.FormEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.FormEvent) error {
	return f(ctx, evt)
}

// Bus dispatches published events to all subscribers from one consumer
// goroutine. Publishing is non-blocking: when the buffer is full the
// event is dropped and logged, never queued against the request.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.FormEvent
	done        chan struct{}
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a Bus with the given channel buffer size.
func New(bufSize int) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		events: make(chan event.FormEvent, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus without blocking.
func (b *Bus) Publish(evt event.FormEvent) {
	select {
	case b.events <- evt:
	default:
		log.Printf("eventbus: buffer full, dropping event %s (%s)", evt.EventType, evt.ID)
	}
}

// Start begins the consumer goroutine. It runs until the context is
// cancelled, draining any buffered events before exiting.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt := <-b.events:
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt := <-b.events:
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, evt event.FormEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			log.Printf("eventbus: %s handler error for %s: %v", s.name, evt.EventType, err)
		}
	}
}
