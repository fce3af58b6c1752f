package bus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler processes one published event. Handlers must not mutate the event.
type Handler func(ev Event)

// Bus is an in-process publish/subscribe channel for interaction events.
//
// Delivery is synchronous: Publish runs every current subscriber for the
// event's kind before returning, in registration order. A panicking handler
// never blocks delivery to the remaining handlers; the failure is logged and
// re-published as a handler_error event, never raised to the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Kind][]*Subscription
	nextSub int64

	history *ring

	logger *zap.Logger
}

// Subscription is a cancellable handle returned by Subscribe.
type Subscription struct {
	id      int64
	kind    Kind
	handler Handler
	bus     *Bus
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.kind]
	for i, sub := range list {
		if sub.id == s.id {
			s.bus.subs[s.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// New creates a bus with a bounded replay history of historySize events
// (0 disables history).
func New(historySize int, logger *zap.Logger) *Bus {
	return &Bus{
		subs:    make(map[Kind][]*Subscription),
		history: newRing(historySize),
		logger:  logger,
	}
}

// Subscribe registers a handler for one event kind. Handlers for a kind run
// in registration order.
func (b *Bus) Subscribe(kind Kind, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	sub := &Subscription{id: b.nextSub, kind: kind, handler: h, bus: b}
	b.subs[kind] = append(b.subs[kind], sub)
	return sub
}

// Publish validates the event and delivers it to all current subscribers for
// its kind before returning.
func (b *Bus) Publish(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	list := b.subs[ev.Kind]
	handlers := make([]*Subscription, len(list))
	copy(handlers, list)
	b.mu.RUnlock()

	b.history.add(ev)

	for _, sub := range handlers {
		b.dispatch(sub, ev)
	}
	return nil
}

// dispatch runs one handler, isolating panics from the rest of the fan-out.
func (b *Bus) dispatch(sub *Subscription, ev Event) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		b.logger.Error("event handler panicked",
			zap.String("event", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Any("panic", r))

		// A failing handler_error handler must not recurse.
		if ev.Kind == KindHandlerError {
			return
		}
		errEv := NewEvent(KindHandlerError, "bus", nil, HandlerErrorPayload{
			SourceEventID: ev.ID,
			SourceKind:    ev.Kind,
			Detail:        fmt.Sprint(r),
		})
		if err := b.Publish(errEv); err != nil {
			b.logger.Warn("handler_error publish failed", zap.Error(err))
		}
	}()
	sub.handler(ev)
}

// History returns up to n most recent events of the given kind, oldest first.
// Pass the empty kind to match all kinds.
func (b *Bus) History(kind Kind, n int) []Event {
	return b.history.recent(kind, n)
}

// ring is a fixed-size event replay buffer for late joiners.
type ring struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

func newRing(size int) *ring {
	if size <= 0 {
		return &ring{}
	}
	return &ring{buf: make([]Event, size)}
}

func (r *ring) add(ev Event) {
	if len(r.buf) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) recent(kind Kind, n int) []Event {
	if len(r.buf) == 0 || n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	// Walk oldest → newest.
	start := 0
	if r.full {
		start = r.next
	}
	var out []Event
	for i := 0; i < size; i++ {
		ev := r.buf[(start+i)%len(r.buf)]
		if kind == "" || ev.Kind == kind {
			out = append(out, ev)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
