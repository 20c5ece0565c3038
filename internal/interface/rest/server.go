// Package rest exposes the worker's operational HTTP surface: liveness and
// readiness checks, scheduler status, and the family board read model. It is
// meant for probes and the household dashboard, not for mutating the economy;
// all writes go through the application layer embedded in the host app.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/projections"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds HTTP server settings.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// CheckTimeout bounds each individual health check.
	CheckTimeout time.Duration
}

// DefaultConfig returns server defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		CheckTimeout: 5 * time.Second,
	}
}

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the worker's status HTTP server.
type Server struct {
	config  Config
	logger  *slog.Logger
	version string

	startTime time.Time
	checks    map[string]CheckFunc

	board *projections.FamilyBoard
	sched *scheduler.Scheduler

	httpServer *http.Server
}

// ServerDeps carries the server's collaborators. Board and Scheduler are
// optional; their endpoints report as unavailable when nil.
type ServerDeps struct {
	Logger  *slog.Logger
	Version string

	Board     *projections.FamilyBoard
	Scheduler *scheduler.Scheduler
}

// NewServer creates a status server.
func NewServer(config Config, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 5 * time.Second
	}

	s := &Server{
		config:    config,
		logger:    logger.With("component", "rest"),
		version:   deps.Version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
		board:     deps.Board,
		sched:     deps.Scheduler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /board", s.handleBoard)
	mux.HandleFunc("POST /jobs/{name}/run", s.handleRunJob)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.withRecovery(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// AddCheck registers a named dependency probe for /healthz. Not safe to call
// after Start.
func (s *Server) AddCheck(name string, check CheckFunc) {
	s.checks[name] = check
}

// Start listens in a new goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err.Error())
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type checkResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

type healthResponse struct {
	Healthy   bool                   `json:"healthy"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Healthy:   true,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]checkResult, len(s.checks)),
	}

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.CheckTimeout)
		start := time.Now()
		err := check(ctx)
		cancel()

		result := checkResult{
			Healthy:  err == nil,
			Duration: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			result.Message = err.Error()
			resp.Healthy = false
		}
		resp.Checks[name] = result
	}

	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// recentRunLimit caps the run history section of /status.
const recentRunLimit = 20

type schedulerStatus struct {
	Running    bool                      `json:"running"`
	Jobs       []scheduler.JobInfo       `json:"jobs,omitempty"`
	Metrics    scheduler.MetricsSnapshot `json:"metrics"`
	RecentRuns []scheduler.RunRecord     `json:"recent_runs,omitempty"`
}

type statusResponse struct {
	Version string    `json:"version,omitempty"`
	Uptime  string    `json:"uptime"`
	Started time.Time `json:"started"`

	Scheduler *schedulerStatus `json:"scheduler,omitempty"`

	Board *projections.FamilyBoardStats `json:"board,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Started: s.startTime.UTC(),
	}
	if s.sched != nil {
		resp.Scheduler = &schedulerStatus{
			Running:    s.sched.IsRunning(),
			Jobs:       s.sched.ListJobs(),
			Metrics:    s.sched.Metrics(),
			RecentRuns: s.sched.History(recentRunLimit),
		}
	}
	if s.board != nil {
		stats := s.board.Stats()
		resp.Board = &stats
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRunJob triggers a scheduled job outside its schedule, for operators
// poking at a household from the dashboard. The run is synchronous; the
// response carries its record.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "scheduler not enabled"})
		return
	}

	name := r.PathValue("name")
	rec, err := s.sched.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, rec)
	default:
		s.writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	if s.board == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "family board not enabled"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.board.Snapshot(),
		"stats":   s.board.Stats(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err.Error())
	}
}

// withRecovery converts handler panics into 500s instead of killing the
// worker process.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
