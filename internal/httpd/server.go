// Package httpd is the HTTP server described in spec.md §4.12: the actor,
// outbox, followers/following, object, inbox, and WebFinger endpoints,
// plus the background queue-worker and purge loops that drive federation
// forward once activities are on disk. Grounded on the teacher's
// internal/server/server.go router/middleware/graceful-shutdown pattern
// and original_source/httpd.c's httpd()/queue_thread()/purge_thread().
package httpd

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/klppl/fedif/internal/activitypub"
	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/purge"
)

const (
	activityJSONType = `application/activity+json`
	ldJSONType       = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// queueInterval is how often the background worker sweeps every user's
// queue directory, matching original_source/httpd.c's queue_thread loop.
const queueInterval = 3 * time.Second

// purgeInterval is how often the purge loop runs, once a day per
// original_source/httpd.c's purge_thread.
const purgeInterval = 24 * time.Hour

// Server wires an Instance to chi's router and the background loops.
type Server struct {
	inst   *activitypub.Instance
	router *chi.Mux
}

// New builds a Server bound to inst.
func New(inst *activitypub.Instance) *Server {
	s := &Server{inst: inst}
	s.router = s.buildRouter()
	return s
}

// Run starts the HTTP listener and the background loops, blocking until
// ctx is cancelled, at which point it shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.inst.Server.ListenAddr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.queueLoop(ctx)
	go s.purgeLoop(ctx)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("httpd: shutdown error", "error", err)
		}
	}()

	slog.Info("httpd: listening", "addr", addr, "host", s.inst.Server.Host)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/.well-known/webfinger", s.handleWebFinger)

	r.Get("/{uid}", s.handleActor)
	r.Get("/{uid}/outbox", s.handleOutbox)
	r.Get("/{uid}/followers", s.handleFollowers)
	r.Get("/{uid}/following", s.handleFollowing)
	r.Get("/{uid}/p/{tid}", s.handleNote)
	r.Post("/{uid}/inbox", s.handleInbox)

	return r
}

// queueLoop sweeps every local user's queue once per queueInterval,
// matching original_source/httpd.c's queue_thread.
func (s *Server) queueLoop(ctx context.Context) {
	ticker := time.NewTicker(queueInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepQueues()
		}
	}
}

func (s *Server) sweepQueues() {
	uids, err := config.ListUsers(s.inst.Server.BaseDir)
	if err != nil {
		slog.Error("httpd: list users for queue sweep failed", "error", err)
		return
	}
	for _, uid := range uids {
		u, err := s.inst.OpenUser(uid)
		if err != nil {
			slog.Error("httpd: open user for queue sweep failed", "uid", uid, "error", err)
			continue
		}
		u.ProcessQueue()
	}
}

// purgeLoop runs the purge sweep once at startup and then every
// purgeInterval, matching original_source/httpd.c's purge_thread.
func (s *Server) purgeLoop(ctx context.Context) {
	s.runPurge()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPurge()
		}
	}
}

func (s *Server) runPurge() {
	if err := purge.All(s.inst.Server, s.inst.Objects); err != nil {
		slog.Error("httpd: purge sweep failed", "error", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.Debug("httpd: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
