// Package webhook carries chat updates in over HTTP and sends replies out as JSON posts.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vmunix/cinedex/internal/bot"
	"github.com/vmunix/cinedex/internal/catalog"
)

// maxUpdateBytes bounds an inbound update body.
const maxUpdateBytes = 1 << 20

// SecretHeader carries the shared secret of inbound updates.
const SecretHeader = "X-Cinedex-Secret"

// Handler processes decoded updates.
type Handler interface {
	Handle(ctx context.Context, u bot.Update) error
}

// StatsFunc reports catalog totals for the health endpoint.
type StatsFunc func(ctx context.Context) (catalog.Stats, error)

// Server exposes the inbound webhook.
type Server struct {
	handler Handler
	stats   StatsFunc
	secret  string
	logger  *slog.Logger
	started time.Time
}

// NewServer creates a webhook server. stats may be nil.
func NewServer(h Handler, stats StatsFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler: h,
		stats:   stats,
		logger:  logger.With("component", "webhook"),
		started: time.Now(),
	}
}

// RequireSecret rejects updates whose SecretHeader does not match secret.
// An empty secret accepts every update.
func (s *Server) RequireSecret(secret string) *Server {
	s.secret = secret
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.With(s.checkSecret).Post("/updates", s.handleUpdate)
	return r
}

// ListenAndServe serves Routes on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Stats  *catalog.Stats `json:"catalog,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.stats != nil {
		st, err := s.stats(r.Context())
		if err != nil {
			s.logger.Warn("health stats failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Uptime: resp.Uptime})
			return
		}
		resp.Stats = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var u bot.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err := dec.Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode update: %v", err))
		return
	}
	if u.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	if err := s.handler.Handle(r.Context(), u); err != nil {
		if errors.Is(err, bot.ErrForbidden) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		s.logger.Error("update failed", "kind", u.Kind, "chat_id", u.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) checkSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(s.secret)) != 1 {
			s.logger.Warn("update with bad secret", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "bad secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
