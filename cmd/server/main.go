package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/curry-conqueror/NSTEM-Final/internal/config"
	"github.com/curry-conqueror/NSTEM-Final/internal/handler/health"
	"github.com/curry-conqueror/NSTEM-Final/internal/kvstore"
	"github.com/curry-conqueror/NSTEM-Final/internal/party"
	"github.com/curry-conqueror/NSTEM-Final/internal/server"
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
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Party store ---
	store, err := kvstore.Open(ctx, kvstore.Options{
		Remote: kvstore.RemoteOptions{
			URL:       cfg.Remote.URL,
			ProjectID: cfg.Remote.ProjectID,
			APIKey:    cfg.Remote.APIKey,
		},
		LocalPath:    cfg.DBPath,
		PollInterval: cfg.PollInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening party store: %w", err)
	}
	defer store.Close()

	repo := party.NewRepository(store,
		party.WithIDs(party.NewSeededIDs()),
		party.WithLogger(logger),
	)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Repo:      repo,
		SPADir:    cfg.SPADir,
		ScanRate:  rate.Limit(cfg.ScanRate),
		ScanBurst: cfg.ScanBurst,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"store": storeChecker{store},
		}).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "store", store.Kind())
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// storeChecker adapts kvstore.Store to health.Checker.
type storeChecker struct{ store kvstore.Store }

func (s storeChecker) Check(ctx context.Context) error { return s.store.Ping(ctx) }

func (s storeChecker) Kind() string { return s.store.Kind() }
