// Command solcast-proxy is a caching reverse proxy that shields the
// rate-limited Solcast API from excessive client traffic. It serves cached
// responses while fresh, throttles upstream calls per rooftop site and
// endpoint, falls back to a secondary account on primary exhaustion, and
// degrades to stale data under failure.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heliotropic/solcast-proxy/internal/config"
	"github.com/heliotropic/solcast-proxy/pkg/cache"
	"github.com/heliotropic/solcast-proxy/pkg/logging"
	"github.com/heliotropic/solcast-proxy/pkg/proxy"
	"github.com/heliotropic/solcast-proxy/pkg/ratelimit"
	"github.com/heliotropic/solcast-proxy/pkg/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger := logging.Setup(logging.DefaultConfig())
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.CacheDir).Msg("Failed to create cache dir")
	}

	store := cache.Open(cfg.CacheDir, logging.NewLogger("cache"))
	tracker := ratelimit.NewTracker(logging.NewLogger("ratelimit"))
	client := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout, logging.NewLogger("upstream"))
	orchestrator := proxy.New(store, tracker, client, proxy.Config{
		TTL:               cfg.TTL,
		RateInterval:      cfg.RateLimit,
		ErrorCooldown:     cfg.ErrorCooldown,
		ExhaustedCooldown: cfg.ExhaustedCooldown,
	}, logging.NewLogger("proxy"))

	srv := &server{
		orchestrator: orchestrator,
		store:        store,
		startTime:    time.Now(),
		logger:       logging.NewLogger("http"),
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: newRouter(srv),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Dur("ttl", cfg.TTL).
			Dur("rate_limit", cfg.RateLimit).
			Str("cache_dir", cfg.CacheDir).
			Msg("Solcast proxy listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}
