package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dealscout/dealscout/internal/aggregator"
	"github.com/dealscout/dealscout/internal/config"
	"github.com/dealscout/dealscout/internal/journal"
	"github.com/dealscout/dealscout/internal/marketplace"
	"github.com/dealscout/dealscout/internal/notifier"
	"github.com/dealscout/dealscout/internal/reconciler"
	"github.com/dealscout/dealscout/internal/scheduler"
	"github.com/dealscout/dealscout/internal/storage"
	"github.com/dealscout/dealscout/internal/sweeper"
	"github.com/dealscout/dealscout/internal/validator"
)

func main() {
	_ = godotenv.Load()

	slog.Info("Starting deal synchronization server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	searcher, err := newSearcher(cfg)
	if err != nil {
		slog.Error("Critical error building marketplace client", "error", err)
		os.Exit(1)
	}

	agg := aggregator.New(searcher, cfg.SearchDelay, cfg.SearchTimeout, cfg.SearchLimit)
	engine := reconciler.New(store, cfg.ExecutionStaleCutoff)
	sweep := sweeper.New(store, cfg.SweepMaxAge)
	recorder := journal.NewRecorder(store)
	announcer := notifier.New(cfg.DealWebhookURL)

	sched := scheduler.New(store, agg, engine, sweep, recorder, announcer, cfg.SweepInterval)
	if err := sched.Start(ctx); err != nil {
		slog.Error("Critical error starting scheduler", "error", err)
		os.Exit(1)
	}

	srv := &Server{
		store:    store,
		sched:    sched,
		journal:  recorder,
		validate: validator.New(),
	}
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func newSearcher(cfg *config.Config) (marketplace.Searcher, error) {
	if cfg.MarketplaceMode == config.ModeHTML {
		return marketplace.NewHTMLClient(cfg.MarketplaceBaseURL, cfg.AffiliateCampaignID, cfg.AllowedDomains, cfg.SearchTimeout)
	}
	return marketplace.NewAPIClient(cfg.MarketplaceBaseURL, cfg.MarketplaceToken, cfg.AffiliateCampaignID, cfg.SearchTimeout)
}
