package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/config"
	"github.com/vitaly-zn/coupons-project-back-end/internal/database"
	"github.com/vitaly-zn/coupons-project-back-end/internal/handler"
	"github.com/vitaly-zn/coupons-project-back-end/internal/inventory"
	"github.com/vitaly-zn/coupons-project-back-end/internal/metrics"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"
	"github.com/vitaly-zn/coupons-project-back-end/internal/router"
	"github.com/vitaly-zn/coupons-project-back-end/internal/seed"
	"github.com/vitaly-zn/coupons-project-back-end/internal/service"
	"github.com/vitaly-zn/coupons-project-back-end/internal/sweeper"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// backend is a repository that serves both coupons and account seeding.
type backend interface {
	repository.CouponRepository
	repository.AccountRepository
}

func run() (err error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("store", cfg.Store.Driver).Msg("starting coupons API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Closers run in reverse order on exit; their errors are combined.
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	repo, closeRepo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	store := inventory.NewStore(repo, logger)
	now := utcNow

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	purchaseService := service.NewPurchaseService(store, now, metrics.NewPurchaseMetrics(reg), logger)
	catalogService := service.NewCatalogService(store, now, logger)
	couponService := service.NewCouponService(store, logger)

	if cfg.Seed.File != "" {
		if err := importSeed(ctx, cfg, repo, couponService, logger); err != nil {
			return err
		}
	}

	lock, closeLock, err := openLock(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeLock)

	sw, err := sweeper.New(store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialise sweeper: %w", err)
	}
	policy := sweeper.RetryNextTick
	if cfg.Sweeper.StopOnFailure {
		policy = sweeper.StopOnFailure
	}
	scheduler, err := sweeper.NewScheduler(sweeper.SchedulerParams{
		Sweeper:  sw,
		Lock:     lock,
		Logger:   logger,
		Metrics:  metrics.NewSweepMetrics(reg),
		Interval: cfg.Sweeper.Interval,
		Policy:   policy,
		Now:      now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise sweep scheduler: %w", err)
	}

	mux := router.New(router.Handlers{
		Coupons:   handler.NewCouponHandler(catalogService, couponService, logger),
		Purchases: handler.NewPurchaseHandler(purchaseService, logger),
		Admin:     handler.NewAdminHandler(scheduler, now, logger),
	}, router.Options{
		APIKey:   cfg.Auth.APIKey,
		AdminKey: cfg.Auth.AdminAPIKey,
		Gatherer: reg,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var sweep func(context.Context) error
	if cfg.Sweeper.Enabled {
		sweep = scheduler.Run
	} else {
		logger.Info().Msg("expiration sweeper disabled")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	return serve(ctx, server, sweep, shutdown, logger)
}

// serve runs the HTTP server and, when sweep is non-nil, the expiration
// sweeper until the server fails, the sweeper stops or a shutdown signal
// arrives. Both are then stopped.
func serve(ctx context.Context, server *http.Server, sweep func(context.Context) error, shutdown <-chan os.Signal, logger zerolog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", server.Addr).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()

	// A nil channel never fires, so a disabled sweeper never ends the select.
	var sweeperDone chan error
	if sweep != nil {
		sweeperDone = make(chan error, 1)
		go func() { sweeperDone <- sweep(sweepCtx) }()
	}

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)

	case err := <-sweeperDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("expiration sweeper stopped: %w", err)
		}
		sweeperDone = nil

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")
	}

	return multierr.Append(runErr, shutdownAll(server, stopSweeper, sweeperDone, logger))
}

// utcNow is the process clock; calendar days are taken in UTC.
func utcNow() time.Time {
	return time.Now().UTC()
}

// shutdownAll stops the HTTP server and waits for an in-flight sweep to finish.
func shutdownAll(server *http.Server, stopSweeper context.CancelFunc, sweeperDone <-chan error, logger zerolog.Logger) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	var errs error
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("failed to shutdown server gracefully")
		errs = multierr.Append(errs, fmt.Errorf("server shutdown failed: %w", err))
		if closeErr := server.Close(); closeErr != nil {
			errs = multierr.Append(errs, closeErr)
		}
	}

	stopSweeper()
	if sweeperDone != nil {
		select {
		case <-sweeperDone:
		case <-shutdownCtx.Done():
			errs = multierr.Append(errs, errors.New("timed out waiting for the expiration sweeper"))
		}
	}

	if errs == nil {
		logger.Info().Msg("server shutdown completed")
	}
	return errs
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (backend, func() error, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return repository.NewMemoryRepository(logger), func() error { return nil }, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return repository.NewPostgresRepository(pool, logger), func() error {
		pool.Close()
		return nil
	}, nil
}

func openLock(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (sweeper.Lock, func() error, error) {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured; using in-process sweeper lock")
		return sweeper.NewLocalLock(), func() error { return nil }, nil
	}

	client, err := sweeper.NewRedisClient(ctx, sweeper.RedisOptions{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	lock, err := sweeper.NewRedisLock(client, cfg.Redis.LockKey, cfg.Redis.LockTTL)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return lock, client.Close, nil
}

func importSeed(ctx context.Context, cfg *config.Config, repo repository.AccountRepository, coupons seed.CouponAdder, logger zerolog.Logger) error {
	fileLoader := seed.NewFileLoader(logger)
	var s3Loader seed.Loader
	if cfg.S3.Enabled {
		l, err := seed.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	}

	loader := seed.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	fixtures, err := loader.Load(ctx, cfg.Seed.File)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	if _, err := seed.NewImporter(repo, coupons, logger).Import(ctx, fixtures); err != nil {
		return fmt.Errorf("failed to import seed data: %w", err)
	}
	return nil
}
