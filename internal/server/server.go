// Package server exposes the correction engine over HTTP: batch endpoints
// for whole-text passes, rule store management, autosave and replace state,
// and a WebSocket endpoint for the interactive conversion flow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/lyricsmith/internal/catalog"
	"github.com/raaihank/lyricsmith/internal/config"
	"github.com/raaihank/lyricsmith/internal/editor"
	"github.com/raaihank/lyricsmith/internal/logger"
	"github.com/raaihank/lyricsmith/internal/negotiate"
	"github.com/raaihank/lyricsmith/internal/pipeline"
	"github.com/raaihank/lyricsmith/internal/rulestore"
	"go.uber.org/zap"
)

// SettingsStore persists per-user correction settings.
type SettingsStore interface {
	SaveSettings(ctx context.Context, userID string, settings any) error
	LoadSettings(ctx context.Context, userID string, out any) (bool, error)
}

// Deps carries the stores and clients the server composes. Any nil store
// disables its endpoints with 503 rather than failing startup, so the
// service degrades when Redis or Postgres is absent.
type Deps struct {
	Rules     *rulestore.Store
	Declines  negotiate.DeclineStore
	Autosaves editor.AutosaveStore
	Settings  SettingsStore
	Catalog   *catalog.Client
}

// Server is the HTTP front end.
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	corrector *pipeline.Corrector
	deps      Deps
	router    *mux.Router
	server    *http.Server
	limiter   *ipLimiter

	// Single-slot replace undo state, keyed by normalized page URL.
	replaceMu sync.Mutex
	lastText  map[string]string
}

// New creates a server instance.
func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		corrector: pipeline.NewCorrector(log.WithComponent("pipeline").Logger),
		deps:      deps,
		router:    mux.NewRouter(),
		lastText:  make(map[string]string),
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newIPLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}

	api.HandleFunc("/correct", s.handleCorrect).Methods("POST")
	api.HandleFunc("/convert", s.handleConvert).Methods("POST")
	api.HandleFunc("/candidates", s.handleCandidates).Methods("POST")

	api.HandleFunc("/rules", s.handleRulesExport).Methods("GET")
	api.HandleFunc("/rules", s.handleRulesImport).Methods("POST")
	api.HandleFunc("/rules/catalog", s.handleRulesCatalog).Methods("POST")

	api.HandleFunc("/autosave", s.handleAutosaveLoad).Methods("GET")
	api.HandleFunc("/autosave", s.handleAutosaveSave).Methods("PUT")
	api.HandleFunc("/autosave", s.handleAutosaveClear).Methods("DELETE")

	api.HandleFunc("/replace", s.handleReplace).Methods("POST")
	api.HandleFunc("/replace/undo", s.handleReplaceUndo).Methods("POST")

	api.HandleFunc("/settings", s.handleSettingsLoad).Methods("GET")
	api.HandleFunc("/settings", s.handleSettingsSave).Methods("PUT")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleNegotiateWS).Methods("GET")
	}
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting lyricsmith server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("websocket", s.config.WebSocket.Enabled),
		zap.Bool("rate_limit", s.config.RateLimit.Enabled),
	)
	if s.limiter != nil {
		s.limiter.startCleanup()
	}
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping lyricsmith server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ruleCount := 0
	if s.deps.Rules != nil {
		ruleCount = s.deps.Rules.RuleCount()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"lyricsmith",
		"version":"0.1.0",
		"rules_count":%d,
		"websocket_enabled":%t
	}`, ruleCount, s.config.WebSocket.Enabled)
}
