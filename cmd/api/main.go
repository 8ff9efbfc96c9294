package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/adapters/storage"
	"github.com/mfeltenmark/freelance-crm/internal/bookings"
	"github.com/mfeltenmark/freelance-crm/internal/events"
	apphttp "github.com/mfeltenmark/freelance-crm/internal/http"
	"github.com/mfeltenmark/freelance-crm/internal/http/router"
	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/db"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
	"github.com/mfeltenmark/freelance-crm/platform/startup"
	"github.com/mfeltenmark/freelance-crm/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.ValidateAPI(); err != nil {
		panic("invalid config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "timezone", cfg.GetBookingLocation().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := startup.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := startup.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	initPayloadArchive(ctx, cfg, eventBus, log)

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	bookingsModule := bookings.NewModule(pool, eventBus, val, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules:  []apphttp.Module{bookingsModule},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	// Let in-flight event handlers (payload archive) finish before the pool closes.
	eventBus.Wait()
	log.Info("server stopped")
}

// initPayloadArchive subscribes the raw payload archive when MinIO is configured.
func initPayloadArchive(ctx context.Context, cfg *config.Config, bus *events.InMemoryBus, log *logger.Logger) {
	if !cfg.IsMinIOEnabled() {
		log.Info("MINIO_ENDPOINT not configured; raw payload archive disabled")
		return
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return
	}

	bucket := cfg.GetMinioBucketBookingPayloads()
	if err := startup.WithRetry(ctx, log, "ensure booking payload bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists; raw payload archive disabled", "error", err, "bucket", bucket)
		return
	}

	bookings.NewPayloadArchive(storageSvc, bucket, log).Subscribe(bus)
	log.Info("raw payload archive enabled", "bucket", bucket)
}
