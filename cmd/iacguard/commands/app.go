package commands

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/iacguard/iacguard/internal/ai"
	"github.com/iacguard/iacguard/internal/checkov"
	"github.com/iacguard/iacguard/internal/normalize"
	"github.com/iacguard/iacguard/internal/notify"
	"github.com/iacguard/iacguard/internal/orchestration"
	"github.com/iacguard/iacguard/internal/reconcile"
	"github.com/iacguard/iacguard/internal/rollup"
	"github.com/iacguard/iacguard/internal/server"
	"github.com/iacguard/iacguard/internal/storage"
	"github.com/iacguard/iacguard/pkg/utils"
)

// app wires the full service graph from viper configuration. Commands that
// only need a subset still build the whole graph; construction is cheap and
// keeps the wiring in one place.
type app struct {
	store      *storage.Store
	runner     *checkov.Runner
	engine     *reconcile.Engine
	pipeline   *orchestration.Pipeline
	aggregator *rollup.Aggregator
	notifier   *notify.Notifier
	aiService  *ai.Service
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger
}

func buildApp(ctx context.Context) (*app, error) {
	logger := logrus.StandardLogger()
	metrics := utils.NewMetricsCollector(true)

	store, err := storage.Open(storage.Config{
		Driver:       viper.GetString("database.driver"),
		DSN:          viper.GetString("database.dsn"),
		MaxOpenConns: viper.GetInt("database.max_open_conns"),
		MaxIdleConns: viper.GetInt("database.max_idle_conns"),
		ConnLifetime: viper.GetDuration("database.conn_lifetime"),
	}, logger)
	if err != nil {
		return nil, err
	}

	runner := checkov.NewRunner(checkov.Config{
		BinaryPath:        viper.GetString("scanner.binary_path"),
		CustomPoliciesDir: viper.GetString("scanner.custom_policies_dir"),
		FileTimeout:       viper.GetDuration("scanner.file_timeout"),
		Concurrency:       viper.GetInt("scanner.concurrency"),
	}, logger)

	engine := reconcile.NewEngine(store, reconcile.NewProjectLocks(), logger)

	mailer := notify.NewMailer(notify.MailConfig{
		Enabled:  viper.GetBool("mail.enabled"),
		Host:     viper.GetString("mail.host"),
		Port:     viper.GetInt("mail.port"),
		Username: viper.GetString("mail.username"),
		Password: viper.GetString("mail.password"),
		From:     viper.GetString("mail.from"),
	}, logger)
	notifier := notify.NewNotifier(store, mailer, metrics, logger)

	aiConfig := ai.Config{
		Provider:    viper.GetString("ai.provider"),
		APIKey:      viper.GetString("ai.api_key"),
		Model:       viper.GetString("ai.model"),
		BaseURL:     viper.GetString("ai.base_url"),
		Timeout:     viper.GetDuration("ai.timeout"),
		RatePerMin:  viper.GetInt("ai.rate_per_minute"),
		MaxFileSize: viper.GetInt("ai.max_file_size"),
	}
	provider, err := ai.NewProvider(ctx, aiConfig)
	if err != nil {
		return nil, err
	}
	aiService := ai.NewService(provider, aiConfig, metrics, logger)

	pipeline := orchestration.NewPipeline(
		runner,
		normalize.NewNormalizer(logger),
		engine,
		notifier,
		store,
		metrics,
		orchestration.PipelineConfig{
			MaxConcurrentScans: viper.GetInt("pipeline.max_concurrent_scans"),
			ScanTimeout:        viper.GetDuration("pipeline.scan_timeout"),
		},
		logger,
	)

	return &app{
		store:      store,
		runner:     runner,
		engine:     engine,
		pipeline:   pipeline,
		aggregator: rollup.NewAggregator(store, logger),
		notifier:   notifier,
		aiService:  aiService,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

func (a *app) newServer() *server.Server {
	return server.New(server.Config{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		UploadDir:       viper.GetString("server.upload_dir"),
		MaxUploadBytes:  viper.GetInt64("server.max_upload_bytes"),
		AuthDisabled:    viper.GetBool("server.auth_disabled"),
		JWTSigningKey:   viper.GetString("server.jwt_signing_key"),
	}, a.store, a.pipeline, a.engine, a.aggregator, a.runner, a.aiService, a.notifier, a.metrics, a.logger)
}

func (a *app) close() {
	if err := a.aiService.Close(); err != nil {
		a.logger.Debugf("AI provider close: %v", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("Database close: %v", err)
	}
}

// startWeeklyTicker drives the weekly digest until ctx ends.
func (a *app) startWeeklyTicker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.notifier.SendWeeklySummaries(now)
			}
		}
	}()
}
