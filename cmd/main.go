package main

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"warden/internal/alert"
	"warden/internal/backup"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/eventbus"
	"warden/internal/executor"
	"warden/internal/httphandlers"
	dockerclient "warden/internal/integrations/docker"
	"warden/internal/locker"
	"warden/internal/retention"
	"warden/internal/scheduler"
	"warden/internal/service"
	"warden/internal/storage"
	"warden/internal/summary"
	"warden/logger"
)

const shutdownTimeout = 60 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := logger.InitLogger(cfg.Mode); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, svc, teardown, err := setup(ctx, cfg)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving http(s)", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.HasTLSConfig()))
		var err error
		if cfg.HasTLSConfig() {
			err = srv.ListenAndServeTLS(cfg.ServerSSLCertFile, cfg.ServerSSLKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server closed")
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
		}
		if err := svc.Stop(sctx); err != nil {
			logger.Error("backup service did not stop cleanly", zap.Error(err))
		}
		return teardown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("warden exited", zap.Error(err))
	}
}

func setup(ctx context.Context, cfg config.Config) (*http.Server, service.BackupService, func() error, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}
	teardown := func() error {
		err := database.Close(db)
		logger.Info("DB Closed", zap.Error(err))
		return err
	}

	st, err := openStorage(cfg)
	if err != nil {
		_ = teardown()
		return nil, nil, nil, err
	}
	if err := st.Ping(ctx); err != nil {
		logger.Warn("backup storage is not reachable yet", zap.String("storage", st.Type().String()), zap.Error(err))
	}

	docker, err := dockerclient.NewClient()
	if err != nil {
		_ = teardown()
		return nil, nil, nil, err
	}

	jobRepo := database.NewJobRepository(db)
	scheduleRepo := database.NewScheduleRepository(db)
	alertRepo := database.NewAlertRepository(db)

	eventBus := eventbus.New()
	emitter := alert.NewEmitter(alertRepo, eventBus)
	engine := backup.NewGuarded(
		backup.NewEngine(cfg.Catalog, backup.Dumpers(docker), st),
		backup.DefaultBreakerConfig())

	exec := executor.New(executor.Dependencies{
		Jobs:      jobRepo,
		Schedules: scheduleRepo,
		Catalog:   cfg.Catalog,
		Engine:    engine,
		Locker:    locker.New(),
		Alerts:    emitter,
		Bus:       eventBus,
		Storage:   st,
	}, executor.Config{
		JobTimeout:       cfg.JobTimeout,
		StorageThreshold: cfg.StorageThreshold,
	})

	svc, err := service.NewBackupService(service.Dependencies{
		Jobs:      jobRepo,
		Schedules: scheduleRepo,
		Catalog:   cfg.Catalog,
		Executor:  exec,
		Scheduler: scheduler.New(scheduler.Dependencies{
			Schedules: scheduleRepo,
			Jobs:      jobRepo,
			Catalog:   cfg.Catalog,
			Submitter: exec,
			Alerts:    emitter,
		}, cfg.Location),
		Retention: retention.New(retention.Dependencies{
			Schedules: scheduleRepo,
			Jobs:      jobRepo,
			Engine:    engine,
			Alerts:    emitter,
		}),
		Aggregator: summary.New(summary.Dependencies{
			Jobs:      jobRepo,
			Schedules: scheduleRepo,
			Alerts:    alertRepo,
			Storage:   st,
		}, cfg.Health),
		Alerts:  emitter,
		Storage: st,
	}, service.Config{
		TickInterval:      cfg.TickInterval,
		RetentionInterval: cfg.RetentionInterval,
		StorageThreshold:  cfg.StorageThreshold,
	})
	if err != nil {
		_ = teardown()
		return nil, nil, nil, err
	}

	if err := svc.Run(ctx); err != nil {
		_ = teardown()
		return nil, nil, nil, err
	}

	apiHandler := httphandlers.NewApiHandler(svc, eventBus, cfg.AccessKey)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           httphandlers.Routes(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}, svc, teardown, nil
}

func openStorage(cfg config.Config) (storage.Storage, error) {
	if cfg.ObjectStorage != nil {
		return storage.NewObjectStorage(*cfg.ObjectStorage)
	}
	return storage.NewFileStorage(cfg.BackupDir)
}
