// Package telemetry records lifecycle events and fans them out to handlers.
package telemetry

import (
	"sync"
	"time"

	"github.com/Gurpartap/taskloop/agent"
)

// Event is one recorded emission.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Handler observes events synchronously. It must not call back into the
// Telemetry that invoked it.
type Handler func(Event)

// Telemetry holds an ordered event log and a list of handlers. Handlers run
// in registration order before Emit returns.
type Telemetry struct {
	mu       sync.RWMutex
	emitMu   sync.Mutex
	events   []Event
	handlers []Handler
	now      func() time.Time
	limit    int
}

// Option configures a Telemetry.
type Option func(*Telemetry)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Telemetry) {
		if now != nil {
			t.now = now
		}
	}
}

// WithHandlers appends handlers at construction.
func WithHandlers(handlers ...Handler) Option {
	return func(t *Telemetry) {
		for _, handler := range handlers {
			if handler != nil {
				t.handlers = append(t.handlers, handler)
			}
		}
	}
}

// WithRetention keeps only the most recent limit events in the log. Zero keeps
// everything. Handlers still see every event.
func WithRetention(limit int) Option {
	return func(t *Telemetry) {
		if limit > 0 {
			t.limit = limit
		}
	}
}

// New returns an empty Telemetry with no default handler.
func New(opts ...Option) *Telemetry {
	t := &Telemetry{
		events: make([]Event, 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ agent.Telemetry = (*Telemetry)(nil)

// AddHandler appends a handler that sees every subsequent event.
func (t *Telemetry) AddHandler(handler Handler) {
	if handler == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Emit records an event and delivers it to every handler in order.
func (t *Telemetry) Emit(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	event := Event{
		Timestamp: t.now(),
		Type:      eventType,
		Data:      agent.CloneArguments(data),
	}

	// emitMu keeps handler delivery in the same order as the log when
	// several tasks share one Telemetry.
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	t.events = append(t.events, event)
	if t.limit > 0 && len(t.events) > t.limit {
		t.events = append(t.events[:0:0], t.events[len(t.events)-t.limit:]...)
	}
	handlers := make([]Handler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	for _, handler := range handlers {
		handler(cloneEvent(event))
	}
}

// Events returns a snapshot of recorded events in emission order. With one
// or more types, only events of those types are returned.
func (t *Telemetry) Events(types ...string) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, 0, len(t.events))
	for _, event := range t.events {
		if len(types) > 0 && !matchesType(event.Type, types) {
			continue
		}
		out = append(out, cloneEvent(event))
	}
	return out
}

// Clear empties the event log. Handlers are kept.
func (t *Telemetry) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = make([]Event, 0)
}

func matchesType(eventType string, types []string) bool {
	for _, candidate := range types {
		if candidate == eventType {
			return true
		}
	}
	return false
}

func cloneEvent(in Event) Event {
	out := in
	out.Data = agent.CloneArguments(in.Data)
	return out
}
