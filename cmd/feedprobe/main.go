// feedprobe connects one upstream feed and prints normalized ticks to
// the console.
// Usage: go run ./cmd/feedprobe --account myaccount
//
// Required environment variables:
//
//	BITMEX_API_KEY    - API key for the probed account
//	BITMEX_API_SECRET - API secret for the probed account
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitmex-tools/feedrelay/internal/config"
	"github.com/bitmex-tools/feedrelay/internal/feed"
	"github.com/bitmex-tools/feedrelay/internal/model"
)

// stdoutPublisher prints every frame the feed produces.
type stdoutPublisher struct{}

func (stdoutPublisher) Publish(account string, frame []byte) int {
	fmt.Printf("[%s] %s\n", account, frame)
	return 1
}

func main() {
	accountName := flag.String("account", "probe", "account name to label ticks with")
	upstreamURL := flag.String("url", config.DefaultUpstreamURL, "upstream streaming endpoint")
	pacing := flag.Duration("pacing", config.DefaultPacingDelay, "delay after each inbound message")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cred := model.AccountCredential{
		Name:      *accountName,
		APIKey:    os.Getenv("BITMEX_API_KEY"),
		APISecret: os.Getenv("BITMEX_API_SECRET"),
	}
	if cred.APIKey == "" || cred.APISecret == "" {
		logger.Error("missing credentials",
			"api_key_set", cred.APIKey != "",
			"api_secret_set", cred.APISecret != "",
		)
		logger.Info("Set environment variables: BITMEX_API_KEY and BITMEX_API_SECRET")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	conn := feed.New(feed.Config{
		URL:              *upstreamURL,
		RetryDelay:       config.DefaultRetryDelay,
		PacingDelay:      *pacing,
		HandshakeTimeout: 10 * time.Second,
	}, cred, stdoutPublisher{}, func() bool { return false }, logger)

	logger.Info("probing upstream feed", "url", *upstreamURL, "account", *accountName)
	conn.Start(ctx)

	<-ctx.Done()
	<-conn.Done()
	logger.Info("feed probe stopped", "state", conn.State().String())
}
