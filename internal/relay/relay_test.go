package relay

import (
	"testing"

	"github.com/varkas/minion-mind/internal/bus"
)

func TestToEventMapsMessage(t *testing.T) {
	ev, err := toEvent(Inbound{
		Kind:      "message-received",
		ActorID:   "user-1",
		Subjects:  []string{"kevin"},
		ChannelID: "ch-1",
		Content:   "hello there",
	})
	if err != nil {
		t.Fatalf("toEvent: %v", err)
	}
	if ev.Kind != bus.KindMessageReceived {
		t.Errorf("kind: got %q", ev.Kind)
	}
	msg, ok := ev.Payload.(bus.MessagePayload)
	if !ok {
		t.Fatalf("payload type: got %T", ev.Payload)
	}
	if msg.ChannelID != "ch-1" || msg.Content != "hello there" {
		t.Errorf("payload: got %+v", msg)
	}
	if len(ev.SubjectIDs) != 1 || ev.SubjectIDs[0] != "kevin" {
		t.Errorf("subjects: got %v", ev.SubjectIDs)
	}
}

func TestToEventMapsLifecycle(t *testing.T) {
	ev, err := toEvent(Inbound{Kind: "spawn", ActorID: "kevin", Name: "Kevin", Persona: "helper"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, ok := ev.Payload.(bus.SpawnPayload); !ok {
		t.Fatalf("spawn payload type: got %T", ev.Payload)
	}

	ev, err = toEvent(Inbound{Kind: "despawn", ActorID: "kevin", Reason: "offline"})
	if err != nil {
		t.Fatalf("despawn: %v", err)
	}
	if p := ev.Payload.(bus.DespawnPayload); p.Reason != "offline" {
		t.Errorf("despawn reason: got %q", p.Reason)
	}
}

func TestToEventRejectsInternalKinds(t *testing.T) {
	for _, kind := range []string{"state-snapshot", "safeguard-block", "memory-notice", "bogus"} {
		if _, err := toEvent(Inbound{Kind: kind, ActorID: "x"}); err == nil {
			t.Errorf("kind %q: expected rejection", kind)
		}
	}
}

func TestToEventRejectsMissingActor(t *testing.T) {
	if _, err := toEvent(Inbound{Kind: "observation", Content: "dust storm"}); err == nil {
		t.Fatal("expected validation error")
	}
}
