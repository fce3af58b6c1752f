package bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/varkas/minion-mind/internal/core"
)

// Kind identifies the type of an interaction event.
type Kind string

const (
	KindMessageReceived Kind = "message-received"
	KindMessageSent     Kind = "message-sent"
	KindToolUsed        Kind = "tool-used"
	KindToolFailed      Kind = "tool-failed"
	KindObservation     Kind = "observation"

	// Lifecycle notices from the transport layer.
	KindSpawn   Kind = "spawn"
	KindDespawn Kind = "despawn"

	// Internal re-publications for external subscribers.
	KindHandlerError   Kind = "handler_error"
	KindStateSnapshot  Kind = "state-snapshot"
	KindMemoryNotice   Kind = "memory-notice"
	KindSafeguardBlock Kind = "safeguard-block"
)

var validKinds = map[Kind]bool{
	KindMessageReceived: true,
	KindMessageSent:     true,
	KindToolUsed:        true,
	KindToolFailed:      true,
	KindObservation:     true,
	KindSpawn:           true,
	KindDespawn:         true,
	KindHandlerError:    true,
	KindStateSnapshot:   true,
	KindMemoryNotice:    true,
	KindSafeguardBlock:  true,
}

// Payload is the closed set of event payload variants. One concrete type per
// kind, so handlers switch exhaustively instead of digging through a map.
type Payload interface {
	payloadKind() Kind
}

// MessagePayload carries a chat message (received or sent).
type MessagePayload struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// ToolPayload carries a tool invocation outcome (used or failed).
type ToolPayload struct {
	Tool   string `json:"tool"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ObservationPayload carries a free-form observation about the world.
type ObservationPayload struct {
	Summary    string  `json:"summary"`
	Importance float64 `json:"importance"`
}

// SpawnPayload announces a new minion.
type SpawnPayload struct {
	Name    string `json:"name"`
	Persona string `json:"persona,omitempty"`
}

// DespawnPayload announces a minion leaving.
type DespawnPayload struct {
	Reason string `json:"reason,omitempty"`
}

// HandlerErrorPayload reports a subscriber failure during dispatch.
type HandlerErrorPayload struct {
	SourceEventID string `json:"source_event_id"`
	SourceKind    Kind   `json:"source_kind"`
	Detail        string `json:"detail"`
}

// SnapshotPayload carries a serialized state snapshot for external relays.
type SnapshotPayload struct {
	Version int64  `json:"version"`
	Data    []byte `json:"data"`
}

// MemoryNoticePayload announces a memory write for external subscribers.
type MemoryNoticePayload struct {
	RecordID string  `json:"record_id"`
	Layer    string  `json:"layer"`
	Salience float64 `json:"salience"`
}

// BlockPayload reports a safeguard rejection (diagnostic, not delivered).
type BlockPayload struct {
	ChannelID string  `json:"channel_id"`
	Reason    string  `json:"reason"`
	Risk      float64 `json:"risk"`
}

func (MessagePayload) payloadKind() Kind      { return KindMessageReceived }
func (ToolPayload) payloadKind() Kind         { return KindToolUsed }
func (ObservationPayload) payloadKind() Kind  { return KindObservation }
func (SpawnPayload) payloadKind() Kind        { return KindSpawn }
func (DespawnPayload) payloadKind() Kind      { return KindDespawn }
func (HandlerErrorPayload) payloadKind() Kind { return KindHandlerError }
func (SnapshotPayload) payloadKind() Kind     { return KindStateSnapshot }
func (MemoryNoticePayload) payloadKind() Kind { return KindMemoryNotice }
func (BlockPayload) payloadKind() Kind        { return KindSafeguardBlock }

// payloadAllowed maps each kind to its accepted payload shape. Message and
// tool kinds share a payload type across their received/sent (used/failed)
// pairs.
func payloadAllowed(k Kind, p Payload) bool {
	switch p.(type) {
	case MessagePayload:
		return k == KindMessageReceived || k == KindMessageSent
	case ToolPayload:
		return k == KindToolUsed || k == KindToolFailed
	case ObservationPayload:
		return k == KindObservation
	case SpawnPayload:
		return k == KindSpawn
	case DespawnPayload:
		return k == KindDespawn
	case HandlerErrorPayload:
		return k == KindHandlerError
	case SnapshotPayload:
		return k == KindStateSnapshot
	case MemoryNoticePayload:
		return k == KindMemoryNotice
	case BlockPayload:
		return k == KindSafeguardBlock
	}
	return false
}

// Event is a single immutable interaction event. Once published it is never
// mutated; consumers receive it by value.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ActorID    string    `json:"actor_id"`
	SubjectIDs []string  `json:"subject_ids,omitempty"`
	Payload    Payload   `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and current timestamp.
func NewEvent(kind Kind, actorID string, subjects []string, payload Payload) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		ActorID:    actorID,
		SubjectIDs: subjects,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// Validate checks the event at the publish boundary.
func (e Event) Validate() error {
	if !validKinds[e.Kind] {
		return core.Validationf("unknown event kind %q", e.Kind)
	}
	if e.ActorID == "" {
		return core.Validationf("event %s has no actor", e.ID)
	}
	if e.Payload == nil {
		return core.Validationf("event %s has no payload", e.ID)
	}
	if !payloadAllowed(e.Kind, e.Payload) {
		return core.Validationf("event %s payload %T does not match kind %q", e.ID, e.Payload, e.Kind)
	}
	return nil
}
