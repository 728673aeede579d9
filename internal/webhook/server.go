// Package webhook exposes an HTTP endpoint to fire triggers and run action
// lines by hand, for stream decks and testing.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/obstrigger/internal/trigger"
)

// maxBodySize bounds action line request bodies.
const maxBodySize = 4096

// Dispatcher is the controller surface the server drives.
type Dispatcher interface {
	Fire(id trigger.ID, source string) bool
	ExecuteLine(ctx context.Context, line, source string) error
}

// Server is an HTTP server that fires triggers and runs action lines.
type Server struct {
	addr       string
	dispatcher Dispatcher
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a new webhook server.
func NewServer(host string, port int, dispatcher Dispatcher) *Server {
	return &Server{
		addr:       fmt.Sprintf("%s:%d", host, port),
		dispatcher: dispatcher,
	}
}

// WithRateLimit bounds requests to perSecond with the given burst.
// A non-positive perSecond disables limiting.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	if perSecond <= 0 {
		s.limiter = nil
		return s
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return s
}

// Handler returns the HTTP handler serving the endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger/{id}", s.limit(s.handleTrigger))
	mux.HandleFunc("POST /action", s.limit(s.handleAction))
	return mux
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Webhook request rate limited")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// Run starts the webhook server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting webhook server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Webhook server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// handleTrigger queues a trigger by id.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid trigger id", http.StatusBadRequest)
		return
	}

	log.Debug().Int("trigger_id", id).Str("remote", r.RemoteAddr).Msg("Received trigger request")

	if !s.dispatcher.Fire(trigger.ID(id), "webhook") {
		http.Error(w, "trigger not queued", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"queued"}`))
}

// handleAction runs one plain-text action line and waits for it.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read action request body")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	line := strings.TrimSpace(string(body))
	if line == "" {
		http.Error(w, "empty action line", http.StatusBadRequest)
		return
	}

	log.Debug().Str("line", line).Str("remote", r.RemoteAddr).Msg("Received action request")

	if err := s.dispatcher.ExecuteLine(r.Context(), line, "webhook"); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
