// Package app assembles the service from configuration: stores, scheduler,
// simulator, observers and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/InvoiceDrop/internal/config"
	"github.com/dharsanguruparan/InvoiceDrop/internal/events"
	"github.com/dharsanguruparan/InvoiceDrop/internal/filestore"
	"github.com/dharsanguruparan/InvoiceDrop/internal/intake"
	"github.com/dharsanguruparan/InvoiceDrop/internal/metrics"
	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/queue"
	"github.com/dharsanguruparan/InvoiceDrop/internal/random"
	"github.com/dharsanguruparan/InvoiceDrop/internal/s3storage"
	"github.com/dharsanguruparan/InvoiceDrop/internal/server"
	"github.com/dharsanguruparan/InvoiceDrop/internal/signing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/storage"
)

// App is a fully wired service.
type App struct {
	Server    *server.Server
	Store     *storage.MemoryStore
	Simulator *processing.Simulator

	scheduler processing.Scheduler
	publisher *events.Publisher
	log       zerolog.Logger
}

// New builds every dependency. It contacts MinIO (bucket bootstrap) and NATS
// when those backends are configured.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store := storage.NewMemoryStore()
	rnd := random.New(cfg.Processing.Seed)
	rec := metrics.New()

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	observers := processing.Observers{rec}
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = events.Connect(cfg.NATS.URL, cfg.NATS.Subject, events.Options{MaxReconnects: cfg.NATS.MaxReconnects}, log)
		if err != nil {
			return nil, err
		}
		observers = append(observers, publisher)
	}

	scheduler, err := newScheduler(cfg, log)
	if err != nil {
		return nil, err
	}
	sim := processing.NewSimulator(store, scheduler, rnd, processing.Config{
		StartDelay:     cfg.Processing.StartDelay,
		FinishMinDelay: cfg.Processing.FinishMinDelay,
		FinishMaxDelay: cfg.Processing.FinishMaxDelay,
		SuccessRate:    cfg.Processing.SuccessRate,
	}, processing.WithLogger(log), processing.WithObserver(observers))

	srv, err := server.New(server.Deps{
		Config:  cfg,
		Store:   store,
		Intake:  intake.NewService(store, sim, rnd, log, observers),
		Files:   files,
		Signer:  signing.NewSigner([]byte(cfg.Signing.Secret), cfg.Signing.TTL),
		Metrics: rec,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	return &App{
		Server:    srv,
		Store:     store,
		Simulator: sim,
		scheduler: scheduler,
		publisher: publisher,
		log:       log,
	}, nil
}

// Run starts the simulator and serves HTTP until ctx is cancelled. Pending
// transitions are dropped on the way out.
func (a *App) Run(ctx context.Context) error {
	if err := a.Simulator.Run(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.scheduler.Stop()
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				a.log.Warn().Err(err).Msg("close nats publisher")
			}
		}
		return nil
	})
	return g.Wait()
}

func newFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		s3 := cfg.Storage.S3
		store, err := s3storage.New(s3storage.Options{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			Bucket:    s3.Bucket,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return filestore.NewLocal(cfg.Storage.Dir)
	}
}

func newScheduler(cfg *config.Config, log zerolog.Logger) (processing.Scheduler, error) {
	switch cfg.Processing.Scheduler {
	case config.SchedulerAsynq:
		return queue.NewScheduler(queue.Options{
			RedisAddr:     cfg.Redis.Addr,
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Processing.Workers,
		}, log), nil
	case config.SchedulerTimer:
		return processing.NewTimerScheduler(log), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", cfg.Processing.Scheduler)
	}
}
