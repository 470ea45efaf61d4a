package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/bitmex-tools/feedrelay/internal/account"
	"github.com/bitmex-tools/feedrelay/internal/config"
	"github.com/bitmex-tools/feedrelay/internal/database"
	"github.com/bitmex-tools/feedrelay/internal/feed"
	"github.com/bitmex-tools/feedrelay/internal/hub"
	"github.com/bitmex-tools/feedrelay/internal/orders"
	"github.com/bitmex-tools/feedrelay/internal/publisher"
	"github.com/bitmex-tools/feedrelay/internal/registry"
	"github.com/bitmex-tools/feedrelay/internal/session"
	"github.com/bitmex-tools/feedrelay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"upstream_url", cfg.Upstream.URL,
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	accounts := account.NewPGStore(pool)

	// Fan-out hub with optional Kafka tick mirror
	h := hub.New(logger)

	var mirror *publisher.KafkaMirror
	if cfg.Kafka.Enabled {
		mirror = publisher.NewKafkaMirror(publisher.Config{
			Broker:     cfg.Kafka.Broker,
			Topic:      cfg.Kafka.Topic,
			BufferSize: cfg.Kafka.BufferSize,
		}, logger)
		if err := mirror.Start(ctx); err != nil {
			logger.Error("failed to start kafka mirror", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			mirror.Stop(stopCtx)
		}()
		h.AddMirror(mirror)
	}

	// Subscription registry drives one upstream feed per account
	reg := registry.New(feed.Config{
		URL:              cfg.Upstream.URL,
		RetryDelay:       cfg.Upstream.RetryDelay,
		PacingDelay:      cfg.Upstream.PacingDelay,
		HandshakeTimeout: cfg.Upstream.HandshakeTimeout,
	}, accounts, h, logger)
	if err := reg.Start(ctx); err != nil {
		logger.Error("failed to start registry", "error", err)
		os.Exit(1)
	}

	// Exchange REST proxy for order placement
	exchangeClient := orders.NewClient(cfg.Orders.ExchangeURL,
		orders.WithLogger(logger),
		orders.WithTimeout(cfg.Orders.Timeout),
		orders.WithRetries(cfg.Orders.MaxRetries, time.Second),
	)
	orderStore := orders.NewPGStore(pool)

	mux := http.NewServeMux()
	mux.Handle("/instrument", session.NewHandler(reg, session.Config{
		SendBufferSize: cfg.Session.SendBufferSize,
		WriteTimeout:   cfg.Session.WriteTimeout,
	}, logger))
	mux.Handle("/orders", orders.NewHandler(accounts, orderStore, exchangeClient, logger))
	mux.Handle("/healthz", healthHandler(pool, reg))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

// healthHandler reports database connectivity and live feed counts.
func healthHandler(pool *pgxpool.Pool, reg *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		stats := reg.Stats()
		health.Components["registry"] = map[string]any{
			"accounts":      stats.Accounts,
			"subscriptions": stats.Subscriptions,
			"live_feeds":    stats.LiveFeeds,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
