package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/aggregate"
	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
)

// ViewConfig fixes the shape of the two aggregation views the API serves.
type ViewConfig struct {
	SlotCount    int
	SlotInterval time.Duration
	DayWindow    int
	Location     *time.Location
}

// Server is the read-side boundary: it hands the aggregation views to
// whatever presentation layer sits outside the pipeline. It writes nothing.
type Server struct {
	Logger   *zap.Logger
	Registry repo.TargetRegistry
	Events   repo.EventStore
	Queue    queue.TaskQueue
	Views    ViewConfig
}

func NewServer(l *zap.Logger, reg repo.TargetRegistry, es repo.EventStore, q queue.TaskQueue, views ViewConfig) *Server {
	if views.Location == nil {
		views.Location = time.UTC
	}
	return &Server{Logger: l, Registry: reg, Events: es, Queue: q, Views: views}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/targets/{id}/checks", s.handleCheckView)
	r.Get("/api/targets/{id}/days", s.handleDayView)
	r.Get("/api/queue/pending", s.handlePending)

	return r
}

func (s *Server) handleCheckView(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if !s.targetExists(w, r, id) {
		return
	}

	// Fetch enough recent events to cover the strip even when checks run
	// far more often than the slot width.
	limit := s.Views.SlotCount * 10
	events, err := s.Events.QueryRecent(r.Context(), []domain.TargetID{id}, limit)
	if err != nil {
		s.Logger.Error("api_query_recent_error", zap.String("target_id", string(id)), zap.Error(err))
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	slots := aggregate.BuildCheckView(events, s.Views.SlotCount, s.Views.SlotInterval)
	writeJSON(w, map[string]any{"target_id": id, "slots": slots})
}

func (s *Server) handleDayView(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if !s.targetExists(w, r, id) {
		return
	}

	window := time.Duration(s.Views.DayWindow+1) * 24 * time.Hour
	events, err := s.Events.QueryLookback(r.Context(), []domain.TargetID{id}, window)
	if err != nil {
		s.Logger.Error("api_query_lookback_error", zap.String("target_id", string(id)), zap.Error(err))
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	days := aggregate.BuildDayView(events, s.Views.DayWindow, s.Views.Location)
	writeJSON(w, map[string]any{"target_id": id, "days": days})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	info, err := s.Queue.PendingInfo(r.Context())
	if err != nil {
		s.Logger.Error("api_pending_info_error", zap.Error(err))
		http.Error(w, "queue error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"count":          info.Count,
		"oldest_idle_ms": info.OldestIdle.Milliseconds(),
	})
}

func (s *Server) targetExists(w http.ResponseWriter, r *http.Request, id domain.TargetID) bool {
	t, err := s.Registry.GetByID(r.Context(), id)
	if err != nil {
		s.Logger.Error("api_registry_error", zap.String("target_id", string(id)), zap.Error(err))
		http.Error(w, "registry error", http.StatusInternalServerError)
		return false
	}
	if t == nil {
		http.Error(w, "unknown target", http.StatusNotFound)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
