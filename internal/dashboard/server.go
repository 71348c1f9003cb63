// Package dashboard serves the CTO dashboard data as JSON over HTTP.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	defaultChartLimit = 30
	maxChartLimit     = 500
)

type Options struct {
	RequireAuth bool
	Tokens      []string
}

type Server struct {
	router  *mux.Router
	sources *Sources
	opts    Options
	logger  zerolog.Logger
	started time.Time
}

func NewServer(sources *Sources, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		sources: sources,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/api/trajectory", s.trajectoryHandler).Methods("GET")
	s.router.HandleFunc("/api/trajectory/chart", s.chartHandler).Methods("GET")
	s.router.HandleFunc("/api/accounts", s.accountsHandler).Methods("GET")
	s.router.HandleFunc("/api/agents", s.agentsHandler).Methods("GET")
	s.router.HandleFunc("/api/deputy", s.deputyHandler).Methods("GET")
	s.router.HandleFunc("/api/testing", s.testingHandler).Methods("GET")
	s.router.HandleFunc("/api/sessions", s.sessionsHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the router wrapped in token authentication.
func (s *Server) Handler() http.Handler {
	return s.tokenAuth(s.router)
}

func (s *Server) tokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if not required or no tokens configured
		if !s.opts.RequireAuth || len(s.opts.Tokens) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if isLoopbackRemote(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
			if token == "" {
				http.Error(w, "Unauthorized: X-Auth-Token header or token query parameter required", http.StatusUnauthorized)
				return
			}
		}

		if !s.validToken(token) {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) validToken(token string) bool {
	valid := false
	for _, t := range s.opts.Tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			valid = true
		}
	}
	return valid
}

// isLoopbackRemote reports whether the connection itself comes from a
// loopback address. The Host header is client-controlled and not consulted.
func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) trajectoryHandler(w http.ResponseWriter, r *http.Request) {
	t := s.sources.Trajectory.Read()
	trajectoryPoints.Set(float64(len(t.Snapshots)))
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.sources.Trajectory.Read().Series(limit))
}

func (s *Server) accountsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sources.Accounts.Read())
}

func (s *Server) agentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sources.Agents.Read())
}

func (s *Server) deputyHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sources.Deputy()
	if err != nil {
		s.readFailed(w, "deputy", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) testingHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sources.Testing(r.Context())
	if err != nil {
		s.readFailed(w, "testing", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	usage, err := s.sources.Sessions.Read()
	if err != nil {
		s.readFailed(w, "sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) readFailed(w http.ResponseWriter, source string, err error) {
	readerErrors.WithLabelValues(source).Inc()
	s.logger.Error().Err(err).Str("source", source).Msg("read failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseLimit reads the chart point limit. Empty means the default; values
// above the maximum are capped.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultChartLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxChartLimit), nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.logger.Info().Msg("server is shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		close(done)
	}()

	s.logger.Info().Str("addr", addr).Msg("server is ready to handle requests")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	<-done
	s.logger.Info().Msg("server stopped")
	return nil
}
