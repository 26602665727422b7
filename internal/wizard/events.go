package wizard

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	id "handover/pkg/domain"
)

const (
	EventStepChanged = "wizard.step_changed"
	EventClosed      = "wizard.closed"
)

// Event is anything published on the Bus.
type Event interface {
	EventType() string
	Wizard() id.WizardID
}

// Reasons a step changed.
const (
	ReasonStarted   = "started"
	ReasonCompleted = "completed"
	ReasonNavigated = "navigated"
	// ReasonCurrent marks the replay of the current step to a new listener.
	ReasonCurrent = "current"
)

// StepChanged is published whenever the current step of a wizard moves.
type StepChanged struct {
	WizardID       id.WizardID       `json:"wizard_id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	From           Step              `json:"from,omitempty"`
	To             Step              `json:"to"`
	Reason         string            `json:"reason"`
	At             time.Time         `json:"at"`
}

func (StepChanged) EventType() string     { return EventStepChanged }
func (e StepChanged) Wizard() id.WizardID { return e.WizardID }

// Closed is published once when a wizard session ends.
type Closed struct {
	WizardID id.WizardID `json:"wizard_id"`
	At       time.Time   `json:"at"`
}

func (Closed) EventType() string     { return EventClosed }
func (e Closed) Wizard() id.WizardID { return e.WizardID }

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id        uint64
	eventType string
	handler   Handler
}

// Bus is a synchronous in-process pub-sub bus. Handlers run on the
// publisher's goroutine and must not block.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        atomic.Uint64
	logger        *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{subscriptions: make(map[string][]subscription), logger: logger}
}

// Subscribe registers handler for eventType ("*" for all). The returned
// function removes the subscription.
func (b *Bus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	subID := b.nextID.Add(1)
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        subID,
		eventType: eventType,
		handler:   handler,
	})
	return func() { b.unsubscribe(eventType, subID) }
}

func (b *Bus) unsubscribe(eventType string, subID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == subID {
			b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to specific subscribers first, then wildcard ones.
// A panicking handler is logged and skipped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[event.EventType()]...)
	wildcard := append([]subscription(nil), b.subscriptions["*"]...)
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, event)
	}
	for _, sub := range wildcard {
		b.safeCall(sub.handler, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(event)
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subscriptions {
		n += len(subs)
	}
	return n
}
