package eventmanager

import (
	"time"

	"github.com/google/uuid"
)

// ListenerID identifies a registered listener within one Manager's
// lifetime. Ids are allocated by a monotonically advancing counter that
// skips values currently live in the registry, so an id may be reused
// once it has been removed.
type ListenerID uint64

// CallType selects which executor sub-queue a listener invocation uses
// under the pool strategy. It has no effect under the inline strategy.
type CallType int

const (
	// MainThread routes the call through executor 0 of the pool
	// strategy. It is a semantic tag, not a genuine caller-thread
	// dispatch: executor 0 is still a pool goroutine.
	MainThread CallType = iota
	// AnyThreads allows the call to land on any non-reserved executor
	// (or executor 0 if the pool has fewer than two extra threads).
	AnyThreads
)

func (c CallType) String() string {
	switch c {
	case MainThread:
		return "MainThread"
	case AnyThreads:
		return "AnyThreads"
	default:
		return "CallType(?)"
	}
}

// Event is an opaque, immutable value carrying either a type tag for
// topic-based broadcast or a listener id for targeted delivery. Exactly
// one of those is meaningful, fixed at construction. Listeners must
// treat the event and its payload as read-only and must not retain the
// pointer beyond the call.
type Event struct {
	// ID is a per-event correlation identifier, useful for logging and
	// tracing dispatch across listeners; it plays no role in targeting.
	ID string
	// CreatedAt records when the event was constructed.
	CreatedAt time.Time

	eventType  string
	listenerID ListenerID
	targeted   bool

	// Payload is caller-defined data carried by the event. Listeners
	// receive a read-only *Event and type-assert Payload themselves.
	Payload any
}

// NewTypedEvent constructs an event for topic-based broadcast: every
// listener registered for eventType receives it.
func NewTypedEvent(eventType string, payload any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		eventType: eventType,
		Payload:   payload,
	}
}

// NewTargetedEvent constructs an event reachable only by the listener
// registered under id.
func NewTargetedEvent(id ListenerID, payload any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		listenerID: id,
		targeted:   true,
		Payload:    payload,
	}
}

// Type returns the event's type tag and whether it is type-addressed
// (as opposed to targeted by listener id).
func (e *Event) Type() (string, bool) {
	return e.eventType, !e.targeted
}

// TargetID returns the event's target listener id and whether it is
// targeted (as opposed to type-addressed).
func (e *Event) TargetID() (ListenerID, bool) {
	return e.listenerID, e.targeted
}
