package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rpc-feeprobe-go/internal/engine"
	"rpc-feeprobe-go/internal/models"
	"rpc-feeprobe-go/internal/web"
)

const maxArchiveLimit = 1000

// ArchiveReader 只读归档查询；*database.Repository 实现
type ArchiveReader interface {
	RecentLogEntries(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// Server 只读 HTTP 接口
type Server struct {
	store   *engine.LogStore
	plan    func() []engine.Task
	archive ArchiveReader // 可为 nil
	hub     *web.Hub
	health  *engine.HealthServer
}

func NewServer(app *App) *Server {
	s := &Server{
		store: app.Store,
		plan:  app.Scheduler.Plan,
		hub:   app.Hub,
	}
	var db engine.Pinger
	if app.Repo != nil {
		s.archive = app.Repo
		db = app.Repo.DB()
	}
	s.health = engine.NewHealthServer(app.Store, db, app.Quota)
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/logs", s.handleLogs).Methods("GET")
	router.HandleFunc("/api/logs/archive", s.handleArchive).Methods("GET")
	router.HandleFunc("/api/registry", s.handleRegistry).Methods("GET")
	if s.health != nil {
		s.health.RegisterRoutes(router)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if s.hub != nil {
		router.HandleFunc("/ws", s.hub.HandleWS)
	}
	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed_to_encode_response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleLogs 返回当前 LogStore 快照；?since=<seq> 只返回更新的记录
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := s.store.GetAll()
	if raw := r.URL.Query().Get("since"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		entries = s.store.Since(after)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":  entries,
		"capacity": s.store.Capacity(),
		"evicted":  s.store.Evicted(),
	})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxArchiveLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	entries, err := s.archive.RecentLogEntries(r.Context(), limit)
	if err != nil {
		slog.Error("failed_to_get_archive", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

type registryEntry struct {
	Index        int      `json:"index"`
	Endpoint     string   `json:"endpoint"`
	Chain        string   `json:"chain"`
	Providers    []string `json:"providers"`
	DelaySeconds float64  `json:"delay_seconds"`
}

func (s *Server) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	plan := s.plan()
	out := make([]registryEntry, len(plan))
	for i, task := range plan {
		providers := make([]string, len(task.Services.Providers))
		for j, p := range task.Services.Providers {
			providers[j] = string(p)
		}
		out[i] = registryEntry{
			Index:        task.Index,
			Endpoint:     task.Services.String(),
			Chain:        string(task.Services.Chain),
			Providers:    providers,
			DelaySeconds: task.Delay.Seconds(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"endpoints": out})
}
