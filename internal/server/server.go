// Package server exposes the ledger core over an authenticated HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/monitoring"
)

// Server wraps the HTTP server and its router
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// New builds the router and HTTP server. Health and metrics endpoints are
// unauthenticated; the API subtree requires a valid bearer token.
func New(
	cfg *config.ServerConfig,
	handlers *Handlers,
	validator *TokenValidator,
	metrics *monitoring.MetricsCollector,
	metricsPath string,
	log *logger.Logger,
) *Server {
	router := mux.NewRouter()

	router.Use(loggingMiddleware(log))
	router.Use(metrics.HTTPMiddleware)

	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	if metricsPath != "" {
		router.Handle(metricsPath, metrics.Handler()).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(AuthMiddleware(validator, log))
	handlers.RegisterRoutes(apiRouter)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
		},
		logger: log,
	}
}

// Start begins serving and blocks until the listener closes
func (s *Server) Start() error {
	s.logger.WithComponent("server").WithFields(map[string]interface{}{
		"addr": s.httpServer.Addr,
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			log.WithComponent("server").WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapper.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
