// Package api exposes the HTTP interface for the registration watch
// service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/chat"
	"github.com/openrec/reggie/internal/config"
	"github.com/openrec/reggie/internal/discovery"
	"github.com/openrec/reggie/internal/metrics"
	"github.com/openrec/reggie/internal/reggie"
	"github.com/openrec/reggie/internal/watcher"
)

// Server wires HTTP handlers to the store and the service layer.
type Server struct {
	router    chi.Router
	store     reggie.Store
	discovery *discovery.Service
	matcher   *watcher.Matcher
	chat      *chat.Service
	log       *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Chat may
// be nil when no model is configured.
func NewServer(store reggie.Store, disc *discovery.Service, matcher *watcher.Matcher,
	chatSvc *chat.Service, auth config.AuthConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:     store,
		discovery: disc,
		matcher:   matcher,
		chat:      chatSvc,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if auth.Enabled {
		r.Use(apiKeyMiddleware(auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Store-backed routes respond quickly.
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(60 * time.Second))

			r.Route("/sites", func(r chi.Router) {
				r.Get("/", s.listSites)
				r.Post("/", s.createSite)
				r.Route("/{site_id}", func(r chi.Router) {
					r.Get("/", s.getSite)
					r.Patch("/", s.updateSite)
					r.Delete("/", s.deleteSite)
					r.Get("/scrapes", s.listScrapes)
					r.Post("/scrapes", s.insertScrapes)
					r.Put("/programs", s.replacePrograms)
				})
			})

			r.Get("/programs", s.listPrograms)

			r.Route("/watch-rules", func(r chi.Router) {
				r.Get("/", s.listRules)
				r.Post("/", s.createRule)
				r.Route("/{rule_id}", func(r chi.Router) {
					r.Get("/", s.getRule)
					r.Patch("/", s.updateRule)
					r.Delete("/", s.deleteRule)
					r.Post("/check", s.checkRule)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.listNotifications)
				r.Patch("/{notification_id}/read", s.markNotificationRead)
			})
		})

		// Crawling and model calls get a generous budget.
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(5 * time.Minute))
			r.Post("/sites/search", s.searchSites)
			r.Post("/sites/{site_id}/discover", s.discoverSite)
			r.Post("/chat", s.chatRespond)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency.
	if _, err := s.store.ListSites(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, duration)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", duration))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusUnauthorized, "missing or invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the store's error taxonomy onto HTTP status
// codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reggie.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reggie.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
