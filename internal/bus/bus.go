// Package bus is the observable event bus the orchestrator publishes its
// per-tick trace onto. Anything that wants to watch a kernel run live — the
// audit package, a CLI trace printer — registers an independent tap.
package bus

import (
	"log/slog"
	"sync"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// EventKind closes the vocabulary of things the orchestrator publishes.
type EventKind string

const (
	EventTurnBegin   EventKind = "turn_begin"
	EventTickBegin   EventKind = "tick_begin"
	EventDemonFired  EventKind = "demon_fired"
	EventSlotWritten EventKind = "slot_written"
	EventSlotEvicted EventKind = "slot_evicted"
	EventActionTaken EventKind = "action_taken"
	EventTickEnd     EventKind = "tick_end"
	EventTurnEnd     EventKind = "turn_end"
)

// Event is one published trace record. Fields are generic enough to carry
// every EventKind without a payload-specific struct per kind.
type Event struct {
	Kind   EventKind
	TurnID string
	Tick   int
	Demon  string // empty unless Kind is demon_fired or action_taken
	Detail string
	Count  int
}

// Bus is the observable event bus. Multiple consumers (audit, a CLI trace
// printer) can each register their own tap via NewTap.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventKind][]chan Event
	taps        []chan Event
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[EventKind][]chan Event)}
}

// Publish fans out evt to all subscribers of evt.Kind and to every tap.
// Non-blocking: a full channel drops the event with a warning rather than
// stalling the orchestrator's tick loop.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := b.subscribers[evt.Kind]
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			slog.Warn("bus: subscriber channel full, event dropped", "kind", evt.Kind, "turn", evt.TurnID)
		}
	}
	for _, tap := range taps {
		select {
		case tap <- evt:
		default:
			slog.Warn("bus: tap channel full, event dropped", "kind", evt.Kind, "turn", evt.TurnID)
		}
	}
}

// Subscribe returns a receive-only channel delivering events of kind k.
func (b *Bus) Subscribe(k EventKind) <-chan Event {
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[k] = append(b.subscribers[k], ch)
	b.mu.Unlock()
	return ch
}

// NewTap registers and returns a new read-only tap that receives every
// published event regardless of kind.
func (b *Bus) NewTap() <-chan Event {
	ch := make(chan Event, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
