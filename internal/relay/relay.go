// Package relay mirrors cognition events onto Redis Streams so external
// consumers (dashboards, transports) can follow minds in real time without
// linking against the process.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/varkas/minion-mind/internal/bus"
	"go.uber.org/zap"
)

const (
	streamPrefix  = "minions:mind:"
	ingressStream = "minions:mind:ingress"
)

// Notice is the wire form of a relayed event.
type Notice struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	AgentID   string          `json:"agent_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Relay publishes selected bus events to per-agent Redis streams.
type Relay struct {
	rdb    *redis.Client
	subs   []*bus.Subscription
	logger *zap.Logger
}

// New connects to Redis.
func New(redisURL string, logger *zap.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Relay{rdb: rdb, logger: logger}, nil
}

// Attach subscribes the relay to the outward-facing event kinds: state
// snapshots, memory notices, safeguard blocks and sent messages.
func (r *Relay) Attach(b *bus.Bus) {
	for _, kind := range []bus.Kind{
		bus.KindStateSnapshot,
		bus.KindMemoryNotice,
		bus.KindSafeguardBlock,
		bus.KindMessageSent,
	} {
		r.subs = append(r.subs, b.Subscribe(kind, r.forward))
	}
}

// Detach cancels the bus subscriptions.
func (r *Relay) Detach() {
	for _, s := range r.subs {
		s.Cancel()
	}
	r.subs = nil
}

func (r *Relay) forward(ev bus.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		r.logger.Warn("relay payload marshal failed", zap.Error(err))
		return
	}
	notice := Notice{
		ID:        ev.ID,
		Kind:      string(ev.Kind),
		AgentID:   ev.ActorID,
		Payload:   payload,
		Timestamp: ev.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Publish(ctx, notice); err != nil {
		r.logger.Warn("relay publish failed",
			zap.String("event", ev.ID),
			zap.Error(err))
	}
}

// Publish appends one notice to the agent's stream.
func (r *Relay) Publish(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	stream := streamPrefix + n.AgentID
	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// Subscribe follows an agent's stream. Returns a channel that emits
// notices. Cancel the context to stop.
func (r *Relay) Subscribe(ctx context.Context, agentID string) <-chan Notice {
	ch := make(chan Notice, 16)
	stream := streamPrefix + agentID

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := r.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, res := range results {
				for _, msg := range res.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var n Notice
					if json.Unmarshal([]byte(data), &n) == nil {
						ch <- n
					}
				}
			}
		}
	}()

	return ch
}

// Inbound is the wire form of a transport event arriving over the ingress
// stream. Kind selects the payload fields that apply.
type Inbound struct {
	Kind       string   `json:"kind"`
	ActorID    string   `json:"actor_id"`
	Subjects   []string `json:"subjects,omitempty"`
	ChannelID  string   `json:"channel_id,omitempty"`
	Content    string   `json:"content,omitempty"`
	Name       string   `json:"name,omitempty"`
	Persona    string   `json:"persona,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Ingest appends one inbound transport event to the ingress stream. External
// transports call this; FollowIngress turns it into a bus event.
func (r *Relay) Ingest(ctx context.Context, in Inbound) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: ingressStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", ingressStream, err)
	}
	return nil
}

// FollowIngress tails the ingress stream and republishes each inbound
// transport event onto the bus. Runs until the context is cancelled.
func (r *Relay) FollowIngress(ctx context.Context, b *bus.Bus) {
	go func() {
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := r.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{ingressStream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, res := range results {
				for _, msg := range res.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var in Inbound
					if json.Unmarshal([]byte(data), &in) != nil {
						continue
					}
					ev, err := toEvent(in)
					if err != nil {
						r.logger.Warn("ingress event rejected",
							zap.String("kind", in.Kind),
							zap.Error(err))
						continue
					}
					if err := b.Publish(ev); err != nil {
						r.logger.Warn("ingress publish failed", zap.Error(err))
					}
				}
			}
		}
	}()
}

func toEvent(in Inbound) (bus.Event, error) {
	kind := bus.Kind(in.Kind)
	var payload bus.Payload
	switch kind {
	case bus.KindMessageReceived, bus.KindMessageSent:
		payload = bus.MessagePayload{ChannelID: in.ChannelID, Content: in.Content}
	case bus.KindObservation:
		payload = bus.ObservationPayload{Summary: in.Content, Importance: in.Importance}
	case bus.KindSpawn:
		payload = bus.SpawnPayload{Name: in.Name, Persona: in.Persona}
	case bus.KindDespawn:
		payload = bus.DespawnPayload{Reason: in.Reason}
	default:
		return bus.Event{}, fmt.Errorf("kind %q not accepted over ingress", in.Kind)
	}
	ev := bus.NewEvent(kind, in.ActorID, in.Subjects, payload)
	return ev, ev.Validate()
}

// Close shuts down the Redis connection.
func (r *Relay) Close() error {
	return r.rdb.Close()
}
