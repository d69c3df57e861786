// Package api exposes the engine's HTTP surface: health, status, ad-hoc
// submission, schedule management, result history and prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskspace/internal/config"
	"taskspace/internal/domain"
	"taskspace/internal/history"
	"taskspace/internal/worker"
)

type Server struct {
	svc   *worker.Service
	store *history.Store // nil disables /api/history
}

// NewServer builds the HTTP handler around a worker service.
func NewServer(svc *worker.Service, store *history.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	s := &Server{svc: svc, store: store}

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/tasks", s.submitTask)
	r.Post("/api/schedules", s.createSchedule)
	r.Get("/api/schedules", s.listSchedules)
	r.Get("/api/schedules/{id}", s.getSchedule)
	r.Delete("/api/schedules/{id}", s.deleteSchedule)
	r.Get("/api/history", s.listHistory)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	health := s.svc.HealthCheck(r.Context())
	code := http.StatusOK
	for _, ok := range health {
		if !ok {
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, health)
}

type statusResp struct {
	TaskDepth   int                    `json:"task_depth"`
	ResultDepth int                    `json:"result_depth"`
	Schedules   int                    `json:"schedules"`
	PendingOnce int                    `json:"pending_once"`
	Results     map[string]int64       `json:"results"`
	Tasks       []domain.ScheduledTask `json:"scheduled_tasks"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	qm := s.svc.Queue()
	sched := s.svc.Scheduler()
	mon := s.svc.Monitor()
	if qm == nil || sched == nil || mon == nil {
		http.Error(w, "service not initialized", http.StatusServiceUnavailable)
		return
	}

	tasks, results := qm.Depths()
	stats := mon.Stats()
	resp := statusResp{
		TaskDepth:   tasks,
		ResultDepth: results,
		Schedules:   len(sched.Tasks()),
		PendingOnce: sched.PendingOnce(),
		Results: map[string]int64{
			"succeeded": stats.Succeeded,
			"failed":    stats.Failed,
			"retried":   stats.Retried,
		},
		Tasks: sched.Tasks(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitReq struct {
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Priority   int            `json:"priority"`
	MaxRetries int            `json:"max_retries"`
	Timeout    string         `json:"timeout"`
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}

	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			http.Error(w, "invalid timeout: "+err.Error(), http.StatusBadRequest)
			return
		}
		timeout = d
	}

	id, err := s.svc.Submit(domain.Task{
		Type:       req.Type,
		Payload:    req.Payload,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
		Timeout:    timeout,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type scheduleReq struct {
	Name     string         `json:"name"`
	Task     string         `json:"task"`
	Schedule string         `json:"schedule"`
	Payload  map[string]any `json:"payload"`
	Priority int            `json:"priority"`
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Task == "" || req.Schedule == "" {
		http.Error(w, "task and schedule are required", http.StatusBadRequest)
		return
	}

	sched := s.svc.Scheduler()
	if sched == nil {
		http.Error(w, "service not initialized", http.StatusServiceUnavailable)
		return
	}

	spec, err := config.ParseSchedule(req.Schedule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	priority := req.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}

	var id string
	switch spec.Kind {
	case config.KindCron:
		id, err = sched.ScheduleCron(req.Task, spec.Cron, req.Payload, priority)
	case config.KindInterval:
		id, err = sched.ScheduleInterval(req.Task, spec.Every, req.Payload, priority)
	case config.KindOnce:
		id, err = sched.ScheduleOnce(req.Task, spec.RunAt, req.Payload, priority)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	sched := s.svc.Scheduler()
	if sched == nil {
		http.Error(w, "service not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, sched.Tasks())
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched := s.svc.Scheduler()
	if sched == nil {
		http.Error(w, "service not initialized", http.StatusServiceUnavailable)
		return
	}
	info, ok := sched.TaskInfo(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	sched := s.svc.Scheduler()
	if sched == nil {
		http.Error(w, "service not initialized", http.StatusServiceUnavailable)
		return
	}
	// One-time entries cannot be removed once queued; they also 404 here.
	if !sched.RemoveTask(chi.URLParam(r, "id")) {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
