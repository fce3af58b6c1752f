package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/memory/index"
	"go.uber.org/zap"
)

func testConfig() Config {
	cfg := DefaultBankConfig()
	cfg.WorkingCapacity = 3
	cfg.ShortTermTTL = 10 * time.Minute
	return cfg
}

func TestIngestValidation(t *testing.T) {
	b := NewBank("ada", testConfig(), time.Now())
	if _, err := b.Ingest("", 0.5, 0, time.Now()); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty content: got %v, want ErrValidation", err)
	}
	if _, err := b.Ingest("something", 1.5, 0, time.Now()); !errors.Is(err, core.ErrValidation) {
		t.Errorf("salience out of range: got %v, want ErrValidation", err)
	}
}

func TestWorkingEvictionCascadesToShortTerm(t *testing.T) {
	b := NewBank("ada", testConfig(), time.Now())
	now := time.Now()

	salience := []float64{0.9, 0.2, 0.7}
	for i, s := range salience {
		if _, err := b.Ingest("item", s, 0, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	if got := b.Stats().Working; got != 3 {
		t.Fatalf("working size: got %d, want 3", got)
	}

	// Fourth insert overflows capacity 3; the 0.2-salience item loses.
	if _, err := b.Ingest("item", 0.5, 0, now.Add(3*time.Second)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	st := b.Stats()
	if st.Working != 3 {
		t.Errorf("working size after overflow: got %d, want 3", st.Working)
	}
	if st.ShortTerm != 1 {
		t.Errorf("short-term size after overflow: got %d, want 1", st.ShortTerm)
	}
	for _, r := range b.WorkingSnapshot() {
		if r.Salience == 0.2 {
			t.Error("lowest-salience item survived eviction")
		}
	}
}

func TestPromotionGoesThroughShortTerm(t *testing.T) {
	cfg := testConfig()
	cfg.WorkingCapacity = 1
	now := time.Now()
	b := NewBank("ada", cfg, now)

	first, err := b.Ingest("met a helpful stranger at the depot", 0.8, 0.3, now)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// A higher-salience insert pushes the first out of working into
	// short-term, where its salience clears the promotion threshold.
	if _, err := b.Ingest("raiders spotted near the ridge", 0.9, 0, now.Add(time.Second)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rep := b.Consolidate(now.Add(2 * time.Second))
	if len(rep.Promoted) != 1 {
		t.Fatalf("promoted: got %d, want 1", len(rep.Promoted))
	}
	if rep.Promoted[0].ID != first.ID {
		t.Errorf("promoted wrong record: got %s, want %s", rep.Promoted[0].ID, first.ID)
	}
	if rep.Promoted[0].Layer != LayerEpisodic {
		t.Errorf("promoted layer: got %s, want %s", rep.Promoted[0].Layer, LayerEpisodic)
	}

	// The record still in working memory must not be promoted directly.
	st := b.Stats()
	if st.Episodic != 1 {
		t.Errorf("episodic size: got %d, want 1", st.Episodic)
	}
	if st.Working != 1 {
		t.Errorf("working size: got %d, want 1", st.Working)
	}
}

func TestShortTermExpiryDropsUnpromoted(t *testing.T) {
	cfg := testConfig()
	cfg.WorkingCapacity = 1
	cfg.ShortTermTTL = time.Minute
	now := time.Now()
	b := NewBank("ada", cfg, now)

	// Low salience never clears the promotion threshold.
	if _, err := b.Ingest("idle chatter", 0.3, 0, now); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := b.Ingest("more chatter", 0.3, 0, now.Add(time.Second)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rep := b.Consolidate(now.Add(2 * time.Minute))
	if len(rep.Promoted) != 0 {
		t.Errorf("promoted: got %d, want 0", len(rep.Promoted))
	}
	if rep.Expired != 1 {
		t.Errorf("expired: got %d, want 1", rep.Expired)
	}
	if got := b.Stats().ShortTerm; got != 0 {
		t.Errorf("short-term size after expiry: got %d, want 0", got)
	}
}

func TestRetrieveEmptyStoreReturnsEmptySlice(t *testing.T) {
	b := NewBank("ada", testConfig(), time.Now())
	got := b.Retrieve("anything at all", nil, 5, time.Now())
	if got == nil {
		t.Fatal("retrieve returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("retrieve on empty store: got %d results, want 0", len(got))
	}
}

func TestRetrieveRanksSimilarContentFirst(t *testing.T) {
	now := time.Now()
	b := NewBank("ada", testConfig(), now)

	seed := func(content string) *Record {
		rec := NewRecord("ada", content, 0.5, 0, now)
		b.SeedEpisodic(rec)
		return rec
	}
	coffee := seed("shared coffee with the caravan guards this morning")
	seed("repaired the water pump at the north gate")

	got := b.Retrieve("who did I drink coffee with", nil, 2, now.Add(time.Minute))
	if len(got) == 0 {
		t.Fatal("no results")
	}
	if got[0].Record.ID != coffee.ID {
		t.Errorf("top result: got %q, want the coffee memory", got[0].Record.Content)
	}
	if got[0].Record.AccessCount != 1 {
		t.Errorf("access count after retrieval: got %d, want 1", got[0].Record.AccessCount)
	}
}

func TestForgettingRespectsRetentionFloor(t *testing.T) {
	cfg := testConfig()
	cfg.DecayHalfLife = 24 * time.Hour
	cfg.RetentionFloor = 0.25
	cfg.ChargeShield = 0.6
	now := time.Now()
	b := NewBank("ada", cfg, now)

	seed := func(salience, charge float64, accesses int) *Record {
		rec := NewRecord("ada", "some episode worth keeping or not", salience, charge, now)
		rec.AccessCount = accesses
		b.SeedEpisodic(rec)
		return rec
	}
	strong := seed(0.9, 0, 0)   // decays to 0.45, above floor
	weak := seed(0.3, 0, 0)     // decays to 0.15, forgettable
	charged := seed(0.3, 0.9, 0) // emotionally loaded, shielded
	touched := seed(0.3, 0, 5)  // frequently accessed, kept

	// One half-life elapses.
	rep := b.Consolidate(now.Add(24 * time.Hour))
	if rep.Forgotten != 1 {
		t.Fatalf("forgotten: got %d, want 1", rep.Forgotten)
	}

	kept := map[string]bool{}
	for _, r := range b.episodic.all() {
		kept[r.ID] = true
	}
	if !kept[strong.ID] {
		t.Error("record above the retention floor was removed")
	}
	if kept[weak.ID] {
		t.Error("flat, rarely-accessed record below the floor survived")
	}
	if !kept[charged.ID] {
		t.Error("emotionally charged record was forgotten")
	}
	if !kept[touched.ID] {
		t.Error("frequently accessed record was forgotten")
	}
}

func TestSemanticMergeIsAdditive(t *testing.T) {
	g := newSemanticGraph()
	now := time.Now()

	c := g.merge("radio", "the broken radio in the back room", []string{"repair"}, now)
	if c.Strength != 0.5 {
		t.Fatalf("new concept strength: got %.2f, want 0.5", c.Strength)
	}

	c = g.merge("radio", "a different description", []string{"repair", "music"}, now.Add(time.Minute))
	if c.Strength <= 0.5 {
		t.Errorf("reinforced strength: got %.3f, want > 0.5", c.Strength)
	}
	if c.Description != "the broken radio in the back room" {
		t.Errorf("description overwritten: %q", c.Description)
	}
	if c.Relations["repair"] <= 0.1 {
		t.Errorf("relation weight did not accumulate: %.2f", c.Relations["repair"])
	}
	if _, ok := c.Relations["music"]; !ok {
		t.Error("new relation not added")
	}
	if c.SourceCount != 2 {
		t.Errorf("source count: got %d, want 2", c.SourceCount)
	}
}

func TestConsolidationMinesRecurringKeywords(t *testing.T) {
	now := time.Now()
	b := NewBank("ada", testConfig(), now)

	b.SeedEpisodic(NewRecord("ada", "traded ammunition with the caravan", 0.7, 0, now))
	b.SeedEpisodic(NewRecord("ada", "the caravan left toward the river", 0.7, 0, now.Add(time.Minute)))

	b.Consolidate(now.Add(2 * time.Minute))
	concepts := b.Concepts("caravan", nil, 3)
	if len(concepts) == 0 {
		t.Fatal("no concept mined for a keyword recurring across episodes")
	}
	found := false
	for _, c := range concepts {
		if c.Name == "caravan" {
			found = true
		}
	}
	if !found {
		t.Error("recurring keyword did not become a concept node")
	}
}

func TestConceptLookupPrefersEmbeddings(t *testing.T) {
	now := time.Now()
	b := NewBank("ada", testConfig(), now)

	b.semantic.merge("caravan", "traders passing through town", nil, now)
	b.semantic.merge("storm", "dust rolling off the ridge", nil, now)
	b.SetConceptEmbedding("caravan", []float32{1, 0})
	b.SetConceptEmbedding("storm", []float32{0, 1})

	// The query shares no keywords with either concept, so only the
	// vector can rank them.
	got := b.Concepts("xyzzy", []float32{0.9, 0.1}, 1)
	if len(got) != 1 || got[0].Name != "caravan" {
		t.Fatalf("embedding lookup: got %d concepts", len(got))
	}

	// Without a query vector the keyword path still carries.
	got = b.Concepts("traders passing through", nil, 1)
	if len(got) != 1 || got[0].Name != "caravan" {
		t.Fatalf("keyword lookup: got %d concepts", len(got))
	}
}

func TestEmbedConceptsBackfillsMinedVectors(t *testing.T) {
	now := time.Now()
	m := NewManager(testConfig(), index.NewHashEmbedder(16), nil, zap.NewNop())
	bank, err := m.Spawn("ada")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	bank.SeedEpisodic(NewRecord("ada", "traded ammunition with the caravan", 0.7, 0, now))
	bank.SeedEpisodic(NewRecord("ada", "the caravan left toward the river", 0.7, 0, now.Add(time.Minute)))
	bank.Consolidate(now.Add(2 * time.Minute))

	if len(bank.UnembeddedConcepts()) == 0 {
		t.Fatal("expected mined concepts without vectors")
	}
	if n := m.EmbedConcepts(context.Background(), "ada"); n == 0 {
		t.Fatal("no concepts embedded")
	}
	if got := len(bank.UnembeddedConcepts()); got != 0 {
		t.Errorf("unembedded after backfill: got %d, want 0", got)
	}

	concepts := bank.Concepts("caravan", nil, 1)
	if len(concepts) == 0 || len(concepts[0].Embedding) == 0 {
		t.Fatal("concept carries no embedding after backfill")
	}
}

func TestProceduralOutcomeStats(t *testing.T) {
	b := NewBank("ada", testConfig(), time.Now())
	now := time.Now()

	b.ObserveOutcome("tool:completion", true, "ok", now)
	pat := b.ObserveOutcome("tool:completion", false, "timeout", now.Add(time.Second))
	if pat.Attempts != 2 || pat.Successes != 1 {
		t.Errorf("attempts/successes: got %d/%d, want 2/1", pat.Attempts, pat.Successes)
	}
	if got := pat.SuccessRate(); got != 0.5 {
		t.Errorf("success rate: got %.2f, want 0.5", got)
	}
	if pat.LastOutcome != "timeout" {
		t.Errorf("last outcome: got %q, want timeout", pat.LastOutcome)
	}
}

func TestBuildContextStaysWithinBudget(t *testing.T) {
	now := time.Now()
	b := NewBank("ada", testConfig(), now)
	for i := 0; i < 5; i++ {
		b.SeedEpisodic(NewRecord("ada", "a fairly long episodic memory about the settlement and its people", 0.8, 0, now))
	}

	budget := ContextBudget{MaxTokens: 40, MaxBlocks: 3}
	blocks := b.BuildContext("settlement", nil, budget, now.Add(time.Minute))
	if len(blocks) > budget.MaxBlocks {
		t.Errorf("blocks: got %d, want <= %d", len(blocks), budget.MaxBlocks)
	}
	total := 0
	for _, blk := range blocks {
		total += blk.TokenEstimate
	}
	if total > budget.MaxTokens {
		t.Errorf("token estimate: got %d, want <= %d", total, budget.MaxTokens)
	}
}
