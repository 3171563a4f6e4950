package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	aggregator *usecase.Aggregator
	settings   domain.SettingsRepository
	logger     *zap.Logger
}

func NewServer(
	port int,
	aggregator *usecase.Aggregator,
	settings domain.SettingsRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		aggregator: aggregator,
		settings:   settings,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.withRequestLog(s.router),
	}
	return s
}

func (s *Server) routes() {
	// Levels
	s.router.HandleFunc("GET /api/levels", s.handleAllLevels)
	s.router.HandleFunc("GET /api/levels/visible", s.handleVisibleLevels)
	s.router.HandleFunc("GET /api/levels/unique", s.handleUniqueLevels)
	s.router.HandleFunc("POST /api/levels/{id}/toggle", s.handleToggleLevel)

	// Zones
	s.router.HandleFunc("GET /api/zones", s.handleZones)

	// Per-timeframe metadata (pivots, swing endpoint, errors)
	s.router.HandleFunc("GET /api/timeframes", s.handleTimeframes)

	// Visibility config
	s.router.HandleFunc("GET /api/config", s.handleGetConfig)
	s.router.HandleFunc("PUT /api/config", s.handlePutConfig)
	s.router.HandleFunc("POST /api/config/smart-defaults", s.handleSmartDefaults)

	// Swing settings
	s.router.HandleFunc("GET /api/swing-settings/{timeframe}", s.handleGetSwingSettings)
	s.router.HandleFunc("PUT /api/swing-settings/{timeframe}", s.handlePutSwingSettings)

	// Control
	s.router.HandleFunc("POST /api/symbol", s.handleSetSymbol)
	s.router.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.router.HandleFunc("GET /api/status", s.handleStatus)

	s.router.HandleFunc("GET /healthz", s.handleHealth)
}

// withRequestLog tags each request with an id and logs it on completion.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(started)))
	})
}

// Handler exposes the full middleware-wrapped handler, mainly for tests
// and for embedding under another mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
