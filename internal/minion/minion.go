// Package minion owns the per-agent cognition containers. Each live minion
// gets one event queue and one goroutine draining it, so every mutation of
// that minion's state happens in series while different minions run in
// parallel.
package minion

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/varkas/minion-mind/internal/autonomy"
	"github.com/varkas/minion-mind/internal/bus"
	"github.com/varkas/minion-mind/internal/completion"
	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/memory"
	"github.com/varkas/minion-mind/internal/mood"
	"github.com/varkas/minion-mind/internal/relationship"
	"github.com/varkas/minion-mind/internal/safeguard"
	"go.uber.org/zap"
)

// Profile describes a minion at spawn time.
type Profile struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Persona string          `json:"persona"`
	Alpha   float64         `json:"alpha"` // momentum coefficient; 0 means default
	Goals   []autonomy.Goal `json:"goals,omitempty"`
}

// Deliver hands an approved outbound message to the transport layer.
type Deliver func(agentID, channelID, content string) error

// Config tunes the container.
type Config struct {
	CompletionTimeout time.Duration        `json:"completion_timeout"`
	QueueSize         int                  `json:"queue_size"`
	ContextBudget     memory.ContextBudget `json:"context_budget"`
	Mood              mood.Config          `json:"mood"`
	Safeguard         safeguard.Config     `json:"safeguard"`
	Autonomy          autonomy.Config      `json:"autonomy"`
	AutonomyInterval  time.Duration        `json:"autonomy_interval"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CompletionTimeout: 15 * time.Second,
		QueueSize:         64,
		ContextBudget:     memory.DefaultContextBudget(),
		Mood:              mood.DefaultConfig(),
		Safeguard:         safeguard.DefaultConfig(),
		Autonomy:          autonomy.DefaultConfig(),
		AutonomyInterval:  time.Minute,
	}
}

type run struct {
	profile Profile

	queue chan bus.Event
	done  chan struct{}

	mu          sync.Mutex
	closed      bool // set before queue closes; senders must check under mu
	goals       []autonomy.Goal
	lastContact map[string]time.Time
}

// offer enqueues the event unless the queue is full or already closing.
// It reports false on a full queue; a closing run counts as delivered
// because the minion is going away anyway.
func (r *run) offer(ev bus.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	select {
	case r.queue <- ev:
		return true
	default:
		return false
	}
}

// Manager wires the cognition layers together behind a single bus
// subscription set. It is the only component that subscribes the cognition
// path to the bus, so each event reaches each minion exactly once.
type Manager struct {
	cfg        Config
	bus        *bus.Bus
	classifier mood.ImpactClassifier
	moods      *mood.Engine
	memories   *memory.Manager
	gate       *safeguard.Gate
	completer  completion.Completer
	deliver    Deliver
	decider    *autonomy.Decider

	// Appropriateness supplies the social-appropriateness signal for
	// autonomous messaging. Defaults to a constant when unset.
	Appropriateness func(agentID string) float64

	mu   sync.RWMutex
	runs map[string]*run

	subs   []*bus.Subscription
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewManager builds the container and subscribes it to the bus. Completer
// and deliver are optional; without them the minions perceive but never
// speak.
func NewManager(cfg Config, b *bus.Bus, completer completion.Completer, deliver Deliver, logger *zap.Logger) *Manager {
	if cfg.CompletionTimeout == 0 {
		cfg = DefaultConfig()
	}
	classifier := mood.NewRuleClassifier()
	ledger := relationship.NewLedger(relationship.DefaultConfig(), logger)

	m := &Manager{
		cfg:        cfg,
		bus:        b,
		classifier: classifier,
		moods:      mood.NewEngine(cfg.Mood, classifier, ledger, logger),
		memories:   memory.NewManager(memory.DefaultBankConfig(), nil, nil, logger),
		gate:       safeguard.NewGate(cfg.Safeguard, logger),
		completer:  completer,
		deliver:    deliver,
		runs:       make(map[string]*run),
		logger:     logger,
	}
	m.decider = autonomy.NewDecider(cfg.Autonomy, m.IsLive, logger)
	m.Appropriateness = func(string) float64 { return 0.8 }

	for _, kind := range []bus.Kind{
		bus.KindMessageReceived,
		bus.KindMessageSent,
		bus.KindToolUsed,
		bus.KindToolFailed,
		bus.KindObservation,
		bus.KindSpawn,
		bus.KindDespawn,
	} {
		m.subs = append(m.subs, b.Subscribe(kind, m.route))
	}
	return m
}

// SetMemories replaces the memory manager, for wiring an embedder-backed one
// before any minion spawns.
func (m *Manager) SetMemories(mem *memory.Manager) { m.memories = mem }

// Moods exposes the mood engine for background regulation and introspection.
func (m *Manager) Moods() *mood.Engine { return m.moods }

// Memories exposes the memory manager for consolidation and introspection.
func (m *Manager) Memories() *memory.Manager { return m.memories }

// Gate exposes the safeguard gate for introspection.
func (m *Manager) Gate() *safeguard.Gate { return m.gate }

// Spawn brings a minion to life: emotional state, memory bank, event queue.
func (m *Manager) Spawn(p Profile) error {
	if p.ID == "" {
		return core.Validationf("minion profile has no id")
	}
	if _, err := m.moods.Spawn(p.ID, p.Alpha); err != nil {
		return err
	}
	if _, err := m.memories.Spawn(p.ID); err != nil {
		m.moods.Despawn(p.ID)
		return err
	}

	r := &run{
		profile:     p,
		queue:       make(chan bus.Event, m.cfg.QueueSize),
		done:        make(chan struct{}),
		goals:       p.Goals,
		lastContact: make(map[string]time.Time),
	}
	m.mu.Lock()
	m.runs[p.ID] = r
	m.mu.Unlock()

	go m.loop(r)
	m.logger.Info("minion spawned", zap.String("id", p.ID), zap.String("name", p.Name))
	return nil
}

// Despawn removes the minion. Its liveness flips first, so in-flight
// autonomy evaluations cancel instead of emitting.
func (m *Manager) Despawn(id string) error {
	m.mu.Lock()
	r, ok := m.runs[id]
	if ok {
		delete(m.runs, id)
	}
	m.mu.Unlock()
	if !ok {
		return mood.ErrAgentNotFound
	}

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	close(r.queue)
	<-r.done
	m.moods.Despawn(id)
	m.memories.Despawn(id)
	m.logger.Info("minion despawned", zap.String("id", id))
	return nil
}

// IsLive reports whether the minion currently has a running container.
func (m *Manager) IsLive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.runs[id]
	return ok
}

// Agents lists live minion ids.
func (m *Manager) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the minion's emotional state, or false when not live.
func (m *Manager) Snapshot(id string) (mood.EmotionalState, bool) {
	return m.moods.Snapshot(id)
}

// SetGoals replaces the minion's goal list.
func (m *Manager) SetGoals(id string, goals []autonomy.Goal) {
	m.mu.RLock()
	r := m.runs[id]
	m.mu.RUnlock()
	if r == nil {
		return
	}
	r.mu.Lock()
	r.goals = goals
	r.mu.Unlock()
}

// StartAutonomy begins the periodic autonomous-messaging evaluation.
func (m *Manager) StartAutonomy() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go func() {
		ticker := time.NewTicker(m.cfg.AutonomyInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.EvaluateAutonomy(time.Now())
			}
		}
	}()
	m.logger.Info("autonomy loop started", zap.Duration("interval", m.cfg.AutonomyInterval))
}

// Close stops the autonomy loop and cancels the bus subscriptions. Live
// minions keep running until despawned.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	for _, s := range m.subs {
		s.Cancel()
	}
}

// route fans a bus event out to the queues of every subject minion. Events
// naming no subject go to everyone except the actor. A full queue drops the
// event rather than stalling the bus.
func (m *Manager) route(ev bus.Event) {
	// Lifecycle notices from the transport manage containers directly.
	switch p := ev.Payload.(type) {
	case bus.SpawnPayload:
		if !m.IsLive(ev.ActorID) {
			if err := m.Spawn(Profile{ID: ev.ActorID, Name: p.Name, Persona: p.Persona}); err != nil {
				m.logger.Warn("spawn from event failed", zap.String("id", ev.ActorID), zap.Error(err))
			}
		}
		return
	case bus.DespawnPayload:
		if m.IsLive(ev.ActorID) {
			go m.Despawn(ev.ActorID)
		}
		return
	}

	m.mu.RLock()
	targets := make([]*run, 0, len(m.runs))
	if len(ev.SubjectIDs) > 0 {
		for _, id := range ev.SubjectIDs {
			if r, ok := m.runs[id]; ok {
				targets = append(targets, r)
			}
		}
	} else {
		for id, r := range m.runs {
			if id != ev.ActorID {
				targets = append(targets, r)
			}
		}
	}
	m.mu.RUnlock()

	for _, r := range targets {
		if !r.offer(ev) {
			m.logger.Warn("minion queue full, event dropped",
				zap.String("minion", r.profile.ID),
				zap.String("event", ev.ID),
				zap.String("kind", string(ev.Kind)))
		}
	}
}

func (m *Manager) loop(r *run) {
	defer close(r.done)
	for ev := range r.queue {
		m.handle(r, ev)
	}
}

// handle applies one event to one minion: mood, relationships, memory, and
// possibly a reply.
func (m *Manager) handle(r *run, ev bus.Event) {
	id := r.profile.ID

	counterpart := ""
	counterpartType := relationship.EntityUser
	if ev.ActorID != id {
		counterpart = ev.ActorID
		if m.IsLive(ev.ActorID) {
			counterpartType = relationship.EntityMinion
		}
	}

	im := m.classifier.Classify(ev)
	if !im.IsZero() {
		st, err := m.moods.ApplyImpact(id, im, counterpart, counterpartType, ev.Timestamp)
		if err != nil {
			m.logger.Warn("impact apply failed", zap.String("minion", id), zap.Error(err))
			return
		}
		m.publishSnapshot(id, st)
	}

	if content := eventContent(ev); content != "" && ev.ActorID != id {
		charge := core.Clamp(im.Mood.Valence*2, -1, 1)
		rec, err := m.memories.Ingest(context.Background(), id, content, im.Salience, charge)
		if err != nil {
			m.logger.Warn("memory ingest failed", zap.String("minion", id), zap.Error(err))
		} else {
			m.NoticeMemory(id, rec)
		}
	}

	switch ev.Kind {
	case bus.KindMessageReceived:
		if counterpart != "" {
			r.mu.Lock()
			r.lastContact[counterpart] = ev.Timestamp
			r.mu.Unlock()
		}
		if p, ok := ev.Payload.(bus.MessagePayload); ok {
			m.reply(r, ev, p)
		}
	case bus.KindToolUsed:
		if p, ok := ev.Payload.(bus.ToolPayload); ok && ev.ActorID == id {
			if bank := m.memories.Bank(id); bank != nil {
				bank.ObserveOutcome("tool:"+p.Tool, true, p.Output, ev.Timestamp)
			}
		}
	case bus.KindToolFailed:
		if p, ok := ev.Payload.(bus.ToolPayload); ok && ev.ActorID == id {
			if bank := m.memories.Bank(id); bank != nil {
				bank.ObserveOutcome("tool:"+p.Tool, false, p.Error, ev.Timestamp)
			}
		}
	}
}

// reply runs the completion call under the caller timeout and sends the
// result through the safeguards. A transient failure becomes a failed
// interaction: the distinct impact profile applies and no reply goes out.
func (m *Manager) reply(r *run, ev bus.Event, p bus.MessagePayload) {
	if m.completer == nil {
		return
	}
	id := r.profile.ID

	st, _ := m.moods.Snapshot(id)
	bank := m.memories.Bank(id)
	var blocks []memory.ContextBlock
	if bank != nil {
		blocks = bank.BuildContext(p.Content, nil, m.cfg.ContextBudget, time.Now())
	}
	prompt := completion.RenderPrompt(completion.PromptInput{
		Persona:       r.profile.Persona,
		State:         st,
		ContextBlocks: blocks,
		Incoming:      p.Content,
	})

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CompletionTimeout)
	defer cancel()
	text, err := m.completer.Complete(ctx, prompt)
	if err != nil {
		m.logger.Warn("completion failed",
			zap.String("minion", id),
			zap.Bool("transient", core.IsTransient(err)),
			zap.Error(err))
		if st, ferr := m.moods.ApplyImpact(id, mood.FailedInteractionImpact(), "", "", time.Now()); ferr == nil {
			m.publishSnapshot(id, st)
		}
		if bank != nil {
			bank.ObserveOutcome("tool:completion", false, err.Error(), time.Now())
		}
		return
	}
	if bank != nil {
		bank.ObserveOutcome("tool:completion", true, "ok", time.Now())
	}

	m.Send(id, p.ChannelID, text, ev.ActorID)
}

// Send routes an outbound message through the safeguard gate, delivering it
// on approval and emitting a diagnostic block event otherwise.
func (m *Manager) Send(id, channelID, content, recipient string) safeguard.Decision {
	d := m.gate.Check(id, channelID, content)
	if !d.Allowed {
		ev := bus.NewEvent(bus.KindSafeguardBlock, id, nil, bus.BlockPayload{
			ChannelID: channelID,
			Reason:    d.Reason,
			Risk:      d.Risk,
		})
		if err := m.bus.Publish(ev); err != nil {
			m.logger.Warn("block event publish failed", zap.Error(err))
		}
		return d
	}

	if m.deliver != nil {
		if err := m.deliver(id, channelID, content); err != nil {
			m.logger.Warn("delivery failed", zap.String("minion", id), zap.Error(err))
			return safeguard.Decision{Reason: "delivery failed", Risk: 0}
		}
	}
	now := time.Now()
	m.gate.RecordSent(id, channelID, content, now)

	m.mu.RLock()
	r := m.runs[id]
	m.mu.RUnlock()
	if r != nil && recipient != "" {
		r.mu.Lock()
		r.lastContact[recipient] = now
		r.mu.Unlock()
	}

	var subjects []string
	if recipient != "" {
		subjects = []string{recipient}
	}
	sent := bus.NewEvent(bus.KindMessageSent, id, subjects, bus.MessagePayload{
		ChannelID: channelID,
		Content:   content,
	})
	if err := m.bus.Publish(sent); err != nil {
		m.logger.Warn("sent event publish failed", zap.Error(err))
	}
	return d
}

// EvaluateAutonomy runs one autonomous-messaging pass over every live
// minion, sending any plan through the same outbound path as replies.
func (m *Manager) EvaluateAutonomy(now time.Time) {
	m.mu.RLock()
	runs := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	for _, r := range runs {
		id := r.profile.ID
		st, ok := m.moods.Snapshot(id)
		if !ok {
			continue
		}

		r.mu.Lock()
		goals := append([]autonomy.Goal{}, r.goals...)
		lastContact := make(map[string]time.Time, len(r.lastContact))
		for k, v := range r.lastContact {
			lastContact[k] = v
		}
		r.mu.Unlock()

		plan, err := m.decider.Evaluate(id, st, goals, lastContact, m.Appropriateness(id), now)
		if err != nil {
			m.logger.Warn("autonomy evaluation failed", zap.String("minion", id), zap.Error(err))
			continue
		}
		if plan == nil {
			continue
		}

		channel := plan.ChannelID
		if channel == "" && len(plan.Recipients) > 0 {
			channel = "dm:" + plan.Recipients[0]
		}
		recipient := ""
		if len(plan.Recipients) > 0 {
			recipient = plan.Recipients[0]
		}
		m.Send(id, channel, plan.Opening, recipient)
	}
}

// NoticeMemory publishes a memory-write notice for external subscribers.
// The consolidator's promotion callback also lands here.
func (m *Manager) NoticeMemory(id string, rec *memory.Record) {
	ev := bus.NewEvent(bus.KindMemoryNotice, id, nil, bus.MemoryNoticePayload{
		RecordID: rec.ID,
		Layer:    string(rec.Layer),
		Salience: rec.Salience,
	})
	if err := m.bus.Publish(ev); err != nil {
		m.logger.Warn("memory notice publish failed", zap.Error(err))
	}
}

func (m *Manager) publishSnapshot(id string, st mood.EmotionalState) {
	data, err := json.Marshal(st)
	if err != nil {
		m.logger.Warn("snapshot marshal failed", zap.Error(err))
		return
	}
	ev := bus.NewEvent(bus.KindStateSnapshot, id, nil, bus.SnapshotPayload{
		Version: st.Version,
		Data:    data,
	})
	if err := m.bus.Publish(ev); err != nil {
		m.logger.Warn("snapshot publish failed", zap.Error(err))
	}
}

// eventContent extracts the text worth remembering from an event.
func eventContent(ev bus.Event) string {
	switch p := ev.Payload.(type) {
	case bus.MessagePayload:
		return p.Content
	case bus.ObservationPayload:
		return p.Summary
	case bus.ToolPayload:
		if p.Error != "" {
			return p.Tool + " failed: " + p.Error
		}
		return p.Tool + ": " + p.Output
	}
	return ""
}
