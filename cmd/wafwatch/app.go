package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Wikid82/wafwatch/internal/analytics"
	"github.com/Wikid82/wafwatch/internal/analyzer"
	"github.com/Wikid82/wafwatch/internal/api/routes"
	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/classifier"
	"github.com/Wikid82/wafwatch/internal/config"
	"github.com/Wikid82/wafwatch/internal/database"
	"github.com/Wikid82/wafwatch/internal/ingest"
	"github.com/Wikid82/wafwatch/internal/metrics"
	"github.com/Wikid82/wafwatch/internal/notify"
	"github.com/Wikid82/wafwatch/internal/pipeline"
	"github.com/Wikid82/wafwatch/internal/server"
	"github.com/Wikid82/wafwatch/internal/services"
	"github.com/Wikid82/wafwatch/internal/statistics"
	"github.com/Wikid82/wafwatch/internal/storage"
	"github.com/Wikid82/wafwatch/internal/version"
	"github.com/Wikid82/wafwatch/internal/wafv2"
)

// app holds the wired components of one process.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	db       *gorm.DB
	ledger   blacklist.Repository
	history  *services.RunHistoryService
	runner   *services.Runner
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	log.WithFields(logrus.Fields{
		"version": version.Full(),
		"env":     cfg.Environment,
		"storage": cfg.StorageBackend,
		"ledger":  cfg.LedgerBackend,
	}).Info("starting " + version.Name)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	layout := storage.Layout{AccountID: cfg.AWSAccountID, LogsFolder: cfg.LogsPrefix, UploadFolder: cfg.UploadFolder}
	ledger := openLedger(cfg, db, blobs, layout)

	engine := pipeline.NewEngine(classifier.New(analyzer.New(), log), log)
	engine.ChunkSize = cfg.ChunkSize
	engine.MaxConcurrency = cfg.MaxConcurrency
	engine.FailFast = cfg.FailFast

	notifier, err := notify.New(cfg.NotifyURL, log)
	if err != nil {
		return nil, err
	}

	manager := blacklist.NewManager(wafv2.New(awsCfg), ledger, blacklist.Options{
		IPSetName:          cfg.IPSetName,
		Scope:              cfg.IPSetScope,
		TTL:                cfg.BlacklistTTL,
		MaxConflictRetries: cfg.MaxConflictRetries,
	}, log)

	history := services.NewRunHistoryService(db)
	runner := services.NewRunner(services.RunnerDeps{
		Logs:          ingest.NewLogFetcher(blobs, layout, log),
		Pipeline:      engine,
		Statistics:    statistics.NewEngine(cfg.TopItemsCount, cfg.MinRequestsToBlock, log),
		Blacklist:     manager,
		Ledger:        ledger,
		Reports:       storage.NewReportRepository(blobs, layout, log),
		Aggregator:    analytics.NewAggregator(cfg.AnalyticsTopCount, cfg.MaxMessageLength, log),
		Messages:      notify.NewBuilder(cfg.Environment, cfg.MaxMessageLength, cfg.TopItemsCount, cfg.AnalyticsTopCount),
		Notifier:      notifier,
		History:       history,
		UploadResults: cfg.UploadResults,
		ReportsCount:  cfg.AnalyticsReportsCount,
		DailyAt:       cfg.DailyReportTime,
		Location:      cfg.Location(),
	}, log)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		ledger:   ledger,
		history:  history,
		runner:   runner,
		registry: registry,
	}, nil
}

func openBlobStore(cfg config.Config, awsCfg aws.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Store(awsCfg, cfg.LogsBucket), nil
	case config.StorageFS:
		return storage.NewFSStore(cfg.LocalStorageDir)
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.StorageBackend)
	}
}

func openLedger(cfg config.Config, db *gorm.DB, blobs storage.BlobStore, layout storage.Layout) blacklist.Repository {
	if cfg.LedgerBackend == config.LedgerSQLite {
		return storage.NewSQLiteBlacklistRepository(db)
	}
	return storage.NewBlobBlacklistRepository(blobs, layout.LedgerKey())
}

// Serve runs the scheduler and the HTTP server until ctx ends.
func (a *app) Serve(ctx context.Context) error {
	scheduler, err := services.NewScheduler(a.cfg.Schedule, a.runner, a.log)
	if err != nil {
		return err
	}
	srv, err := server.New(a.cfg, routes.Deps{
		Ledger:   a.ledger,
		History:  a.history,
		Trigger:  scheduler,
		Gatherer: a.registry,
	}, a.log)
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
