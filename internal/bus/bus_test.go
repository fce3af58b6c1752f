package bus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/varkas/minion-mind/internal/core"
	"go.uber.org/zap"
)

func msgEvent(actor, content string) Event {
	return NewEvent(KindMessageReceived, actor, nil, MessagePayload{
		ChannelID: "ch-1",
		Content:   content,
	})
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := New(0, zap.NewNop())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(KindMessageReceived, func(ev Event) {
			order = append(order, name)
		})
	}

	if err := b.Publish(msgEvent("user-1", "hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got %d deliveries, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPublishOnlyMatchingKind(t *testing.T) {
	b := New(0, zap.NewNop())

	var got int
	b.Subscribe(KindToolUsed, func(ev Event) { got++ })

	if err := b.Publish(msgEvent("user-1", "hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != 0 {
		t.Errorf("tool-used handler ran %d times for a message event", got)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New(0, zap.NewNop())

	var got int
	sub := b.Subscribe(KindMessageReceived, func(ev Event) { got++ })

	b.Publish(msgEvent("user-1", "one"))
	sub.Cancel()
	b.Publish(msgEvent("user-1", "two"))

	if got != 1 {
		t.Errorf("got %d deliveries, want 1", got)
	}
}

func TestPanicIsolatedAndSurfaced(t *testing.T) {
	b := New(0, zap.NewNop())

	var after int
	var errEvents []Event

	b.Subscribe(KindHandlerError, func(ev Event) {
		errEvents = append(errEvents, ev)
	})
	b.Subscribe(KindMessageReceived, func(ev Event) {
		panic("boom")
	})
	b.Subscribe(KindMessageReceived, func(ev Event) { after++ })

	src := msgEvent("user-1", "hello")
	if err := b.Publish(src); err != nil {
		t.Fatalf("publish returned error despite handler panic: %v", err)
	}

	if after != 1 {
		t.Errorf("handler after the panicking one ran %d times, want 1", after)
	}
	if len(errEvents) != 1 {
		t.Fatalf("got %d handler_error events, want 1", len(errEvents))
	}
	p, ok := errEvents[0].Payload.(HandlerErrorPayload)
	if !ok {
		t.Fatalf("handler_error payload is %T", errEvents[0].Payload)
	}
	if p.SourceEventID != src.ID {
		t.Errorf("source event id: got %q, want %q", p.SourceEventID, src.ID)
	}
	if p.SourceKind != KindMessageReceived {
		t.Errorf("source kind: got %q, want %q", p.SourceKind, KindMessageReceived)
	}
}

func TestHandlerErrorHandlerPanicDoesNotRecurse(t *testing.T) {
	b := New(0, zap.NewNop())

	b.Subscribe(KindHandlerError, func(ev Event) {
		panic("error handler is also broken")
	})
	b.Subscribe(KindMessageReceived, func(ev Event) {
		panic("boom")
	})

	// Must return, not overflow the stack.
	if err := b.Publish(msgEvent("user-1", "hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestValidation(t *testing.T) {
	b := New(0, zap.NewNop())

	cases := []struct {
		name string
		ev   Event
	}{
		{"unknown kind", Event{ID: "x", Kind: "bogus", ActorID: "a", Payload: MessagePayload{}}},
		{"no actor", Event{ID: "x", Kind: KindMessageReceived, Payload: MessagePayload{}}},
		{"no payload", Event{ID: "x", Kind: KindMessageReceived, ActorID: "a"}},
		{"payload mismatch", Event{ID: "x", Kind: KindObservation, ActorID: "a", Payload: MessagePayload{}}},
	}
	for _, tc := range cases {
		err := b.Publish(tc.ev)
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestHistoryRing(t *testing.T) {
	b := New(4, zap.NewNop())

	for i := 0; i < 6; i++ {
		b.Publish(msgEvent("user-1", fmt.Sprintf("msg-%d", i)))
	}
	b.Publish(NewEvent(KindObservation, "user-1", nil, ObservationPayload{Summary: "obs"}))

	all := b.History("", 10)
	if len(all) != 4 {
		t.Fatalf("got %d events in history, want 4", len(all))
	}
	msgs := b.History(KindMessageReceived, 10)
	if len(msgs) != 3 {
		t.Fatalf("got %d message events, want 3", len(msgs))
	}
	first := msgs[0].Payload.(MessagePayload)
	if first.Content != "msg-3" {
		t.Errorf("oldest retained message: got %q, want %q", first.Content, "msg-3")
	}
	last := msgs[len(msgs)-1].Payload.(MessagePayload)
	if last.Content != "msg-5" {
		t.Errorf("newest retained message: got %q, want %q", last.Content, "msg-5")
	}
}
