package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aapmcp/openapi-mcp/internal/config"
	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// routes builds the HTTP surface: the MCP transport behind authentication,
// and unauthenticated health and metrics endpoints.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.chain, a.logger))
		switch a.cfg.Server.Transport {
		case config.TransportStreamable:
			r.Handle("/mcp", a.server.StreamableHandler("/mcp"))
		default:
			sse := a.server.SSEServer(a.cfg.Server.BaseURL)
			a.closers = append(a.closers, sse.Shutdown)
			r.Handle("/sse", sse.SSEHandler())
			r.Handle("/message", sse.MessageHandler())
		}
	})
	return r
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": a.cfg.Spec.Service,
		"tools":   a.server.Caller().Tools().Len(),
	})
}

// requestID tags every request with an X-Request-ID, keeping one supplied
// by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
