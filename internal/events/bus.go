package events

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
)

// Kind identifies the type of event being published.
type Kind string

const (
	// DustValue carries a fresh dust sensor reading. Payload: {"val": number},
	// "val" may be absent.
	DustValue Kind = "dust_value"
	// JobStarted is published when a laser job begins.
	JobStarted Kind = "job_started"
	// JobFinished is published when a laser job completes.
	JobFinished Kind = "job_finished"
	// JobFailed is published when a laser job aborts with an error.
	JobFailed Kind = "job_failed"
	// JobCancelled is published when the user cancels a laser job.
	JobCancelled Kind = "job_cancelled"
	// Shutdown is published once when the process is about to exit.
	Shutdown Kind = "shutdown"
)

// Payload is the free-form event body.
type Payload map[string]interface{}

// Event represents a system event.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   Payload
}

// Handler receives events.
type Handler func(Event)

// Subscriber is the subscribe side of the bus.
type Subscriber interface {
	Subscribe(kind Kind, fn Handler) func()
}

// Publisher is the publish side of the bus.
type Publisher interface {
	Publish(kind Kind, payload Payload)
}

type subscription struct {
	id int
	fn Handler
}

// Bus delivers each event synchronously, on the publishing goroutine, to
// every handler subscribed to its kind. A panicking handler is logged and
// does not prevent delivery to the others.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]subscription
	nextID      int
	now         func() time.Time
	logger      logger.Logger
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Kind][]subscription),
		now:         time.Now,
		logger:      log,
	}
}

// Subscribe registers fn for kind and returns an unsubscribe function.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[kind] = append(b.subscribers[kind], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[kind]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[kind] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers an event to all subscribers of kind before returning.
func (b *Bus) Publish(kind Kind, payload Payload) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[kind]))
	copy(subs, b.subscribers[kind])
	b.mu.RUnlock()

	event := Event{
		Kind:      kind,
		Timestamp: b.now().UTC(),
		Payload:   payload,
	}

	for _, s := range subs {
		b.deliver(s.fn, event)
	}
}

func (b *Bus) deliver(fn Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New().WithData(errors.ErrHandlerPanic, fmt.Sprint(r))
			b.logger.ErrorWithCode(err).Str("kind", string(event.Kind)).Msg("Event handler panicked")
		}
	}()
	fn(event)
}

// Close drops all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind := range b.subscribers {
		delete(b.subscribers, kind)
	}
}

// Float returns payload[key] as float64 when present and numeric.
func (p Payload) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	default:
		return 0, false
	}
}
