// Package api exposes a read-only introspection surface over the cognition
// core: mood, opinions, memory statistics and safeguard status.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/varkas/minion-mind/internal/minion"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager *minion.Manager
	logger  *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(manager *minion.Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/minions", h.listMinions)
		r.Get("/minions/{id}/mood", h.getMood)
		r.Get("/minions/{id}/opinions", h.getOpinions)
		r.Get("/minions/{id}/memory/stats", h.getMemoryStats)
		r.Get("/safeguards/{channelID}", h.getSafeguardStatus)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"minions": len(h.manager.Agents()),
	})
}

func (h *Handler) listMinions(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.Agents()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) getMood(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.manager.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "minion not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent_id": st.AgentID,
		"mood":     st.Mood,
		"energy":   st.Energy,
		"stress":   st.Stress,
		"version":  st.Version,
	})
}

func (h *Handler) getOpinions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.manager.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "minion not found"})
		return
	}
	writeJSON(w, http.StatusOK, st.Opinions)
}

func (h *Handler) getMemoryStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bank := h.manager.Memories().Bank(id)
	if bank == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "minion not found"})
		return
	}
	writeJSON(w, http.StatusOK, bank.Stats())
}

func (h *Handler) getSafeguardStatus(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	writeJSON(w, http.StatusOK, h.manager.Gate().ChannelStatus(channelID))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
