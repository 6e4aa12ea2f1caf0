package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iacguard/iacguard/internal/ai"
	"github.com/iacguard/iacguard/internal/checkov"
	"github.com/iacguard/iacguard/internal/notify"
	"github.com/iacguard/iacguard/internal/orchestration"
	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/internal/rollup"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/utils"
)

// Config holds the HTTP listener settings.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UploadDir       string        `mapstructure:"upload_dir"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	AuthDisabled    bool          `mapstructure:"auth_disabled"`
	JWTSigningKey   string        `mapstructure:"jwt_signing_key"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Port == 0 {
		out.Port = 8080
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 30 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 120 * time.Second
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = 15 * time.Second
	}
	if out.UploadDir == "" {
		out.UploadDir = "data/uploads"
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 50 << 20
	}
	return out
}

// Server is the REST surface over the scan pipeline and the store.
type Server struct {
	config     Config
	store      *storage.Store
	pipeline   *orchestration.Pipeline
	engine     *reconcile.Engine
	aggregator *rollup.Aggregator
	runner     *checkov.Runner
	aiService  *ai.Service
	notifier   *notify.Notifier
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger
	httpServer *http.Server
}

func New(
	config Config,
	store *storage.Store,
	pipeline *orchestration.Pipeline,
	engine *reconcile.Engine,
	aggregator *rollup.Aggregator,
	runner *checkov.Runner,
	aiService *ai.Service,
	notifier *notify.Notifier,
	metrics *utils.MetricsCollector,
	logger *logrus.Logger,
) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		config:     config.withDefaults(),
		store:      store,
		pipeline:   pipeline,
		engine:     engine,
		aggregator: aggregator,
		runner:     runner,
		aiService:  aiService,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	api := http.NewServeMux()

	api.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	api.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	api.HandleFunc("GET /api/v1/projects/{id}", s.handleGetProject)
	api.HandleFunc("PUT /api/v1/projects/{id}", s.handleUpdateProject)
	api.HandleFunc("DELETE /api/v1/projects/{id}", s.handleDeleteProject)

	api.HandleFunc("POST /api/v1/projects/{id}/scans", s.handleCreateScan)
	api.HandleFunc("GET /api/v1/projects/{id}/scans", s.handleListScans)
	api.HandleFunc("GET /api/v1/scans/{id}", s.handleGetScan)
	api.HandleFunc("POST /api/v1/scans/{id}/cancel", s.handleCancelScan)
	api.HandleFunc("GET /api/v1/scans/active", s.handleActiveScans)

	api.HandleFunc("GET /api/v1/vulnerabilities", s.handleListFindings)
	api.HandleFunc("GET /api/v1/vulnerabilities/{id}", s.handleGetFinding)
	api.HandleFunc("PATCH /api/v1/vulnerabilities/{id}/status", s.handlePatchFindingStatus)

	api.HandleFunc("GET /api/v1/dashboard/overview", s.handleDashboardOverview)
	api.HandleFunc("GET /api/v1/dashboard/severity", s.handleSeverityHistogram)
	api.HandleFunc("GET /api/v1/dashboard/passrate", s.handlePassRateSeries)
	api.HandleFunc("GET /api/v1/dashboard/trend", s.handleDailyTrend)

	api.HandleFunc("GET /api/v1/projects/{id}/notifications/settings", s.handleGetNotificationSettings)
	api.HandleFunc("PUT /api/v1/projects/{id}/notifications/settings", s.handlePutNotificationSettings)
	api.HandleFunc("GET /api/v1/projects/{id}/notifications/history", s.handleNotificationHistory)
	api.HandleFunc("POST /api/v1/projects/{id}/notifications/test", s.handleTestNotification)

	api.HandleFunc("GET /api/v1/policies", s.handleListPolicies)
	api.HandleFunc("POST /api/v1/policies", s.handleCreatePolicy)
	api.HandleFunc("GET /api/v1/policies/{checkID}", s.handleGetPolicy)
	api.HandleFunc("PUT /api/v1/policies/{checkID}", s.handleUpdatePolicy)
	api.HandleFunc("DELETE /api/v1/policies/{checkID}", s.handleDeletePolicy)
	api.HandleFunc("POST /api/v1/policy-configs", s.handleSavePolicyConfig)
	api.HandleFunc("DELETE /api/v1/policy-configs/{id}", s.handleDeletePolicyConfig)

	api.HandleFunc("GET /api/v1/uploads/{uploadID}/files", s.handleListUploadFiles)
	api.HandleFunc("GET /api/v1/uploads/{uploadID}/versions", s.handleFileVersionHistory)
	api.HandleFunc("GET /api/v1/uploads/{uploadID}/diff", s.handleFileVersionDiff)

	api.HandleFunc("POST /api/v1/vulnerabilities/{id}/suggest-fix", s.handleSuggestFix)
	api.HandleFunc("POST /api/v1/ai/edit", s.handleAIEdit)

	api.HandleFunc("POST /api/v1/tokens", s.handleCreateToken)
	api.HandleFunc("GET /api/v1/tokens", s.handleListTokens)
	api.HandleFunc("DELETE /api/v1/tokens/{id}", s.handleRevokeToken)

	mux.Handle("/api/v1/", s.authenticate(api))

	return s.observe(s.recoverPanics(mux))
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("REST API listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("REST API stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if version, err := s.runner.Version(r.Context()); err == nil {
		status["scanner"] = version
	} else {
		status["scanner"] = "unavailable"
	}
	writeJSON(w, http.StatusOK, status)
}
