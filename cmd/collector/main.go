package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-stream/internal/api"
	"github.com/rickgao/kalshi-stream/internal/auth"
	"github.com/rickgao/kalshi-stream/internal/book"
	"github.com/rickgao/kalshi-stream/internal/config"
	"github.com/rickgao/kalshi-stream/internal/database"
	"github.com/rickgao/kalshi-stream/internal/lifecycle"
	"github.com/rickgao/kalshi-stream/internal/session"
	"github.com/rickgao/kalshi-stream/internal/store"
	"github.com/rickgao/kalshi-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	events := flag.Args()
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "usage: collector [-config path] EVENT_TICKER [EVENT_TICKER...]")
		os.Exit(2)
	}
	for i, e := range events {
		events[i] = strings.ToUpper(e)
	}

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"events", events,
	)

	if err := run(logger, *configPath, events); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("collector stopped")
			return
		}
		logger.Error("collector failed", "error", err)
		os.Exit(1)
	}

	logger.Info("collector finished, all markets determined")
}

func run(logger *slog.Logger, configPath string, events []string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("configuration loaded",
		"rest_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
	)

	creds, err := auth.Load(cfg.API.KeyID, cfg.API.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve events into market tickers via the REST API.
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithCredentials(creds),
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	status, err := apiClient.GetExchangeStatus(ctx)
	if err != nil {
		return fmt.Errorf("get exchange status: %w", err)
	}
	logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)

	tickers, err := apiClient.MarketTickersForEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("resolve markets: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no markets found for events %v", events)
	}
	logger.Info("markets resolved", "count", len(tickers))

	// Connect to database and prepare the sink.
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := store.InitSchema(ctx, pool); err != nil {
		return err
	}

	sink := store.New(store.Config{
		BatchSize:     cfg.Sink.BatchSize,
		FlushInterval: cfg.Sink.FlushInterval,
	}, pool, logger)
	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}

	// Build the stream session.
	tracker := lifecycle.NewTracker(logger)
	tracker.Track(tickers...)

	sess := session.New(session.Config{
		URL:         cfg.API.WSURL,
		Credentials: creds,
		Session:     cfg.Session,
	}, book.NewRegistry(), tracker, sink, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sess.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := sess.Stats()
				logger.Info("session stats",
					"frames", stats.Frames,
					"snapshots", stats.Snapshots,
					"deltas", stats.Deltas,
					"trades", stats.Trades,
					"lifecycle", stats.Lifecycle,
					"parse_errors", stats.ParseErrors,
					"dropped", stats.Dropped,
					"invalid_deltas", stats.InvalidDeltas,
					"remaining_markets", tracker.Remaining(),
				)
			}
		}
	})

	runErr := g.Wait()

	// Flush remaining records regardless of how the session ended.
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sink.Stop(stopCtx); err != nil {
		logger.Error("sink reported write failures", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	stats := sink.Stats()
	logger.Info("sink totals",
		"trades", stats.TradeInserts,
		"snapshots", stats.SnapshotInserts,
		"flushes", stats.Flushes,
		"flush_errors", stats.FlushErrors,
	)

	return runErr
}
