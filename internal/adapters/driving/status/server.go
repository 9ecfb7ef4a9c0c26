// Package status serves a read-only view of a running command's progress
// over HTTP, for watching long scans from another terminal or a monitor.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// shutdownTimeout bounds the graceful stop of the server.
const shutdownTimeout = 5 * time.Second

// Source returns the current progress of the running command.
type Source func() domain.ProgressSnapshot

// Server exposes GET /progress and GET /healthz.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	command string
	started time.Time
	source  Source
	clients func() map[string]domain.ClientStats
}

// NewServer creates a status server for command. clients may be nil.
func NewServer(command string, source Source, clients func() map[string]domain.ClientStats) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		command: command,
		started: time.Now(),
		source:  source,
		clients: clients,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/progress", s.handleProgress)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until ctx is cancelled. It returns once
// the listener is bound so that callers see address errors immediately.
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	logger.Info("Status available at http://%s/progress", ln.Addr())
	return ln.Addr(), nil
}

type progressResponse struct {
	Command   string                  `json:"command"`
	Phase     string                  `json:"phase"`
	Total     int                     `json:"total"`
	Completed int                     `json:"completed"`
	Stats     statsResponse           `json:"stats"`
	Clients   map[string]clientResult `json:"clients,omitempty"`
	Uptime    string                  `json:"uptime"`
}

type statsResponse struct {
	Fetched  int   `json:"fetched"`
	Skipped  int   `json:"skipped"`
	NotFound int   `json:"not_found"`
	Errors   int   `json:"errors"`
	Fallback int   `json:"fallback"`
	Queries  int64 `json:"queries"`
}

type clientResult struct {
	Requests         int64      `json:"requests"`
	Retries          int64      `json:"retries"`
	RateLimitHits    int64      `json:"rate_limit_hits"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty"`
	AverageMillis    int64      `json:"avg_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	snap := s.source()
	resp := progressResponse{
		Command:   s.command,
		Phase:     snap.Phase,
		Total:     snap.Total,
		Completed: snap.Completed,
		Stats: statsResponse{
			Fetched:  snap.Stats.Fetched,
			Skipped:  snap.Stats.Skipped,
			NotFound: snap.Stats.NotFound,
			Errors:   snap.Stats.Errors,
			Fallback: snap.Stats.Fallback,
			Queries:  snap.Stats.Queries,
		},
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.clients != nil {
		resp.Clients = make(map[string]clientResult)
		for name, st := range s.clients() {
			cr := clientResult{
				Requests:      st.Requests,
				Retries:       st.Retries,
				RateLimitHits: st.RateLimitHits,
				AverageMillis: st.AverageTime().Milliseconds(),
			}
			if !st.RateLimitedUntil.IsZero() {
				until := st.RateLimitedUntil
				cr.RateLimitedUntil = &until
			}
			resp.Clients[name] = cr
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("status response: %v", err)
	}
}
