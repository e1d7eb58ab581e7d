package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hostwatch/hostwatch/internal/logging"
	"github.com/hostwatch/hostwatch/internal/version"
	"github.com/rs/zerolog"
)

// ReloadFunc reloads the configuration from disk
type ReloadFunc func() error

// TriggerFunc runs a scheduled job now and reports whether it exists
type TriggerFunc func(job string) bool

// CycleStatus summarizes the latest run of one pipeline
type CycleStatus struct {
	Job     string        `json:"job"`
	At      time.Time     `json:"at"`
	Took    time.Duration `json:"-"`
	OK      bool          `json:"ok"`
	Summary string        `json:"summary"`
}

// Server provides the daemon's HTTP status endpoints
type Server struct {
	addr      string
	logger    zerolog.Logger
	startTime time.Time

	logBuffer   *logging.Buffer
	reloadFunc  ReloadFunc
	triggerFunc TriggerFunc

	mu       sync.RWMutex
	hostname string
	cycles   map[string]CycleStatus
}

// NewServer creates a status server listening on addr
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		addr:      addr,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
		cycles:    make(map[string]CycleStatus),
	}
}

// SetLogBuffer sets the buffer served by /api/logs
func (s *Server) SetLogBuffer(lb *logging.Buffer) {
	s.logBuffer = lb
}

// SetReloadFunc sets the function to call when config reload is requested
func (s *Server) SetReloadFunc(fn ReloadFunc) {
	s.reloadFunc = fn
}

// SetTriggerFunc sets the function behind /api/run/{job}
func (s *Server) SetTriggerFunc(fn TriggerFunc) {
	s.triggerFunc = fn
}

// SetHostname sets the hostname reported by /status
func (s *Server) SetHostname(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostname = name
}

// RecordCycle stores the outcome of a pipeline run
func (s *Server) RecordCycle(c CycleStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[c.Job] = c
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/logs", s.handleLogsAPI)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.HandleFunc("/api/run/", s.handleRun)
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().
		Str("address", s.addr).
		Msg("Starting status API server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the latest cycle of each pipeline
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	hostname := s.hostname
	cycles := make(map[string]interface{}, len(s.cycles))
	for job, c := range s.cycles {
		cycles[job] = map[string]interface{}{
			"at":      c.At.UTC().Format(time.RFC3339),
			"took":    c.Took.Round(time.Millisecond).String(),
			"ok":      c.OK,
			"summary": c.Summary,
		}
	}
	s.mu.RUnlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"hostname": hostname,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"uptime":   formatDuration(time.Since(s.startTime)),
		"version":  version.GetVersion(),
		"commit":   version.GetCommit(),
		"cycles":   cycles,
	})
}

type logEntry struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// handleLogsAPI returns recent log entries as JSON, newest last.
// ?limit=N keeps the last N.
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	entries := []logEntry{}
	if s.logBuffer != nil {
		for _, e := range s.logBuffer.Entries() {
			entries = append(entries, logEntry{
				Time:      e.Timestamp.UTC().Format(time.RFC3339),
				Level:     e.Level.String(),
				Component: e.Component,
				Message:   e.Message,
				Error:     e.Error,
			})
		}
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n >= 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleReload handles config reload requests
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if s.reloadFunc == nil {
		w.WriteHeader(http.StatusNotImplemented)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "Config reload not configured",
		})
		return
	}

	s.logger.Info().Msg("Config reload requested via API")

	if err := s.reloadFunc(); err != nil {
		s.logger.Error().Err(err).Msg("Config reload failed")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

// handleRun triggers a job: POST /api/run/resources
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	job := strings.TrimPrefix(r.URL.Path, "/api/run/")
	if s.triggerFunc == nil || !s.triggerFunc(job) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "unknown job " + strconv.Quote(job),
		})
		return
	}

	s.logger.Info().Str("job", job).Msg("Job triggered via API")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"job":     job,
	})
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}
	if d < 24*time.Hour {
		return d.Round(time.Minute).String()
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours == 0 {
		return strconv.Itoa(days) + "d"
	}
	return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h"
}
