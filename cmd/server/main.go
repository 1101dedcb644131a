package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/racetrack/internal/config"
	"github.com/playperu/racetrack/internal/database"
	"github.com/playperu/racetrack/internal/handler/health"
	"github.com/playperu/racetrack/internal/imaging"
	"github.com/playperu/racetrack/internal/ingest"
	"github.com/playperu/racetrack/internal/migrations"
	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/server"
	"github.com/playperu/racetrack/internal/store"
	"github.com/playperu/racetrack/internal/tracker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Snapshot store ---
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	st := store.New(backend, logger)

	// --- Tracker ---
	broker := server.NewBroker()
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{
		Timeout:   cfg.FetchTimeout,
		UserAgent: "racetrack/" + racetrack.Version,
	})

	tr, err := tracker.New(ctx, st, fetcher, logger, tracker.Options{
		Delimiter: cfg.Delimiter(),
		Notifier:  broker,
	})
	if err != nil {
		return fmt.Errorf("starting tracker: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Tracker: tr,
		Broker:  broker,
		Checks:  map[string]health.Checker{"store": backend},
		Images: imaging.Options{
			MaxWidth:  cfg.MapMaxWidth,
			Quality:   cfg.MapJPEGQuality,
			MaxPixels: cfg.MapMaxPixels,
		},
		IconMaxBytes: cfg.IconMaxBytes,
		RefreshRate:  rate.Limit(cfg.RefreshRate),
		SPADir:       cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("polling score feed", "interval", cfg.PollInterval)
		return tr.Run(gctx, cfg.PollInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

type checkedBackend interface {
	store.Backend
	health.Checker
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (checkedBackend, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory store; state is lost on restart")
		return store.NewMemoryBackend(cfg.StoreQuotaBytes), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	if err := migrations.Run(ctx, db, logger); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	return store.NewSQLiteBackend(db, cfg.StoreQuotaBytes), closeDB(db, logger), nil
}

func closeDB(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Error("closing sqlite", "error", err)
		}
	}
}
