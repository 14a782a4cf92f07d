// Package app wires configuration, storage, the quote provider and the
// analytics services into one process-wide App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/clients/eodhd"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/services/history"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/services/predict"
	"github.com/bobmcallan/folio/internal/services/quote"
	"github.com/bobmcallan/folio/internal/services/recommend"
	"github.com/bobmcallan/folio/internal/services/risk"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Metrics     *metrics.Registry
	Storage     interfaces.StorageManager
	EODHDClient *eodhd.Client

	Quotes      *quote.Service
	History     *history.Service
	Risk        interfaces.RiskEngine
	Predictor   *predict.Service
	Recommender interfaces.Recommender
	Portfolios  *portfolio.Service

	StartupTime time.Time

	scheduler     *cron.Cron
	metricsServer *http.Server
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, FOLIO_CONFIG, next
// to the binary, then config/folio.toml.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}
	return configPath
}

// NewApp loads config, connects storage and builds every service.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	startupStart := time.Now()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	if missing := config.ValidateRequired(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Configuration incomplete - some features may be limited")
	}

	storageManager, err := surrealdb.NewManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := Build(config, logger, storageManager)
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Build wires the services on top of an existing storage manager.
func Build(config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager) *App {
	reg := metrics.NewRegistry()

	client := eodhd.NewClientFromConfig(config.Clients.EODHD, logger.Component("eodhd"),
		eodhd.WithFailureHook(reg.RecordProviderFailure),
	)

	quotes := quote.NewService(client, config.Analytics.GetQuoteTTL(), reg, logger.Component("quote"))
	historySvc := history.NewService(quotes, storageManager.HistoryStore(), storageManager.PortfolioStore(), reg, logger.Component("history"))
	riskSvc := risk.NewService(quotes, config.Analytics, reg, logger.Component("risk"))
	predictor := predict.NewService(quotes, reg, logger.Component("predict"))
	recommender := recommend.NewService(quotes, riskSvc, predictor,
		storageManager.SettingsStore(), storageManager.FeedbackStore(),
		config.Analytics, reg, logger.Component("recommend"))
	portfolios := portfolio.NewService(storageManager.PortfolioStore(), quotes, historySvc, logger.Component("portfolio"))

	return &App{
		Config:      config,
		Logger:      logger,
		Metrics:     reg,
		Storage:     storageManager,
		EODHDClient: client,
		Quotes:      quotes,
		History:     historySvc,
		Risk:        riskSvc,
		Predictor:   predictor,
		Recommender: recommender,
		Portfolios:  portfolios,
		StartupTime: time.Now(),
	}
}

// StartScheduler schedules the daily value snapshot of every portfolio.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler: disabled")
		return nil
	}
	c, err := newRecordScheduler(a.Config.Scheduler.RecordSpec, a.History, a.Logger.Component("scheduler"))
	if err != nil {
		return err
	}
	a.scheduler = c
	c.Start()
	return nil
}

// StartMetricsServer serves Prometheus metrics on the configured address.
func (a *App) StartMetricsServer() {
	addr := a.Config.Scheduler.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())

	a.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, stop metrics server, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		a.metricsServer = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
		a.Storage = nil
	}
}
