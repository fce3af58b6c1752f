package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/varkas/minion-mind/internal/bus"
	"github.com/varkas/minion-mind/internal/minion"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *minion.Manager) {
	t.Helper()
	b := bus.New(16, zap.NewNop())
	m := minion.NewManager(minion.DefaultConfig(), b, nil, nil, zap.NewNop())
	t.Cleanup(m.Close)
	if err := m.Spawn(minion.Profile{ID: "ada", Name: "Ada"}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return NewHandler(m, zap.NewNop()).Router(), m
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(t, router, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %v", body["status"])
	}
	if body["minions"].(float64) != 1 {
		t.Errorf("minions: got %v, want 1", body["minions"])
	}
}

func TestListMinions(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(t, router, "/api/minions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var ids []string
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 1 || ids[0] != "ada" {
		t.Errorf("ids: got %v, want [ada]", ids)
	}
}

func TestGetMood(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := get(t, router, "/api/minions/ada/mood")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body struct {
		AgentID string             `json:"agent_id"`
		Mood    map[string]float64 `json:"mood"`
		Version int64              `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AgentID != "ada" {
		t.Errorf("agent_id: got %q", body.AgentID)
	}
	if body.Version < 1 {
		t.Errorf("version: got %d, want >= 1", body.Version)
	}
	if _, ok := body.Mood["valence"]; !ok {
		t.Error("mood missing valence dimension")
	}

	if rec := get(t, router, "/api/minions/nobody/mood"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown minion status: got %d, want 404", rec.Code)
	}
}

func TestGetMemoryStats(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(t, router, "/api/minions/ada/memory/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var stats struct {
		AgentID string `json:"agent_id"`
		Working int    `json:"working"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.AgentID != "ada" {
		t.Errorf("agent_id: got %q", stats.AgentID)
	}

	if rec := get(t, router, "/api/minions/nobody/memory/stats"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown minion status: got %d, want 404", rec.Code)
	}
}

func TestGetOpinionsAndSafeguards(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := get(t, router, "/api/minions/ada/opinions")
	if rec.Code != http.StatusOK {
		t.Fatalf("opinions status: got %d, want 200", rec.Code)
	}

	rec = get(t, router, "/api/safeguards/ch-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("safeguards status: got %d, want 200", rec.Code)
	}
	var status struct {
		ChannelID  string  `json:"channel_id"`
		Repetition float64 `json:"repetition"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.ChannelID != "ch-1" {
		t.Errorf("channel: got %q, want ch-1", status.ChannelID)
	}
}
