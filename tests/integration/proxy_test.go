// Package integration exercises the full proxy stack end to end: config,
// cache store, attempt tracker, upstream client, and orchestrator against a
// mock Solcast server.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliotropic/solcast-proxy/internal/config"
	"github.com/heliotropic/solcast-proxy/internal/testutil"
	"github.com/heliotropic/solcast-proxy/pkg/cache"
	"github.com/heliotropic/solcast-proxy/pkg/proxy"
	"github.com/heliotropic/solcast-proxy/pkg/ratelimit"
	"github.com/heliotropic/solcast-proxy/pkg/upstream"
)

// buildStack assembles the proxy the same way main does.
func buildStack(t *testing.T, cfg config.Config) (*proxy.Orchestrator, *cache.Store) {
	t.Helper()

	store := cache.Open(cfg.CacheDir, zerolog.Nop())
	tracker := ratelimit.NewTracker(zerolog.Nop())
	client := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout, zerolog.Nop())
	orchestrator := proxy.New(store, tracker, client, proxy.Config{
		TTL:               cfg.TTL,
		RateInterval:      cfg.RateLimit,
		ErrorCooldown:     cfg.ErrorCooldown,
		ExhaustedCooldown: cfg.ExhaustedCooldown,
	}, zerolog.Nop())
	return orchestrator, store
}

func TestProxy_SurvivesRestartWithSnapshot(t *testing.T) {
	mock := testutil.NewMockSolcast()
	defer mock.Close()
	mock.SetSiteResponse("site-1", "forecasts", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"forecasts":[{"pv_estimate":1.2}]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.UpstreamURL = mock.URL()
	cfg.UpstreamTimeout = 5 * time.Second

	req := proxy.Request{RooftopID: "site-1", Endpoint: "forecasts", Credential: "Bearer k"}

	// First process: populate the cache.
	first, _ := buildStack(t, cfg)
	if res := first.Handle(context.Background(), req); res.Source != proxy.SourceMiss {
		t.Fatalf("Source = %s, want MISS", res.Source)
	}

	// Second process over the same cache dir: the snapshot serves the hit
	// without touching upstream, even though the attempt tracker reset.
	second, store := buildStack(t, cfg)
	if store.Count() != 1 {
		t.Fatalf("Reloaded store Count() = %d, want 1", store.Count())
	}
	res := second.Handle(context.Background(), req)
	if res.Source != proxy.SourceHit {
		t.Fatalf("Source after restart = %s, want HIT", res.Source)
	}
	if res.Body != `{"forecasts":[{"pv_estimate":1.2}]}` {
		t.Errorf("Body = %q", res.Body)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Upstream called %d times across restart, want 1", mock.RequestCount())
	}
}

func TestProxy_DegradesToStaleWhenUpstreamDies(t *testing.T) {
	mock := testutil.NewMockSolcast()
	mock.SetSiteResponse("site-1", "forecasts", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"forecasts":[]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.UpstreamURL = mock.URL()
	cfg.UpstreamTimeout = time.Second
	cfg.TTL = 10 * time.Millisecond
	cfg.RateLimit = 0 // every call admitted; failures still apply cool-downs

	orchestrator, _ := buildStack(t, cfg)
	req := proxy.Request{RooftopID: "site-1", Endpoint: "forecasts", Credential: "Bearer k"}

	if res := orchestrator.Handle(context.Background(), req); res.Source != proxy.SourceMiss {
		t.Fatalf("Source = %s, want MISS", res.Source)
	}

	// Kill upstream and let the entry go stale.
	mock.Close()
	time.Sleep(20 * time.Millisecond)

	res := orchestrator.Handle(context.Background(), req)
	if res.Source != proxy.SourceStale {
		t.Fatalf("Source = %s, want STALE after upstream death", res.Source)
	}
	if res.Body != `{"forecasts":[]}` {
		t.Errorf("Body = %q, want the cached body", res.Body)
	}
}

func TestProxy_FallbackAccountEndToEnd(t *testing.T) {
	mock := testutil.NewMockSolcast()
	defer mock.Close()
	mock.SetSiteResponse("site-1", "forecasts", testutil.MockResponse{StatusCode: 429})
	mock.SetSiteResponse("fb-9", "forecasts", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"fromFallback":true}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.UpstreamURL = mock.URL()
	cfg.UpstreamTimeout = 5 * time.Second

	orchestrator, store := buildStack(t, cfg)
	req := proxy.Request{
		RooftopID:          "site-1",
		Endpoint:           "forecasts",
		Credential:         "Bearer primary",
		FallbackSiteID:     "fb-9",
		FallbackCredential: "Bearer fallback",
	}

	res := orchestrator.Handle(context.Background(), req)
	if res.Source != proxy.SourceFallback {
		t.Fatalf("Source = %s, want FALLBACK", res.Source)
	}

	// The fallback result landed under the canonical key and persisted.
	restarted := cache.Open(cfg.CacheDir, zerolog.Nop())
	entry, _, ok := restarted.Get(cache.NewKey("site-1", "forecasts", nil))
	if !ok {
		t.Fatal("Fallback result must persist under the canonical key")
	}
	if entry.Body != `{"fromFallback":true}` {
		t.Errorf("Persisted body = %q", entry.Body)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}
