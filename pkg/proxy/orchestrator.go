// Package proxy implements the request decision engine: for every inbound
// request it decides among serving the cache, calling upstream, engaging
// the fallback account, serving stale data, or failing, based on cache
// freshness, per-bucket admission, and the classified upstream outcome.
package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/heliotropic/solcast-proxy/pkg/cache"
	"github.com/heliotropic/solcast-proxy/pkg/ratelimit"
	"github.com/heliotropic/solcast-proxy/pkg/upstream"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solcast_requests_total",
		Help: "Total proxied requests by endpoint and result",
	}, []string{"endpoint", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solcast_request_duration_seconds",
		Help:    "Proxied request duration in seconds by endpoint",
		Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

// Valid upstream endpoints; anything else is NotFound before any upstream
// contact.
const (
	EndpointForecasts        = "forecasts"
	EndpointEstimatedActuals = "estimated_actuals"
)

// ValidEndpoint reports whether the endpoint name is one the proxy serves.
func ValidEndpoint(endpoint string) bool {
	return endpoint == EndpointForecasts || endpoint == EndpointEstimatedActuals
}

// Source tags the provenance of a served body.
type Source string

const (
	// SourceHit is a fresh cache hit.
	SourceHit Source = "HIT"

	// SourceMiss is a fresh fetch through the primary account.
	SourceMiss Source = "MISS"

	// SourceStale is cached data older than the TTL, served because no
	// upstream call was possible or the call failed.
	SourceStale Source = "STALE"

	// SourceFallback is a fresh fetch through the fallback account.
	SourceFallback Source = "FALLBACK"
)

// Request is the core-facing shape of one inbound request.
type Request struct {
	// RooftopID is the rooftop site identifier from the path.
	RooftopID string

	// Endpoint is the endpoint name from the path.
	Endpoint string

	// Params are the query parameters in the order the client sent them.
	Params []cache.Param

	// ForceRefresh bypasses the freshness check but never admission.
	ForceRefresh bool

	// Credential is the primary Authorization header value, verbatim.
	Credential string

	// FallbackSiteID and FallbackCredential identify the fallback account.
	// Both must be set for a fallback attempt to be considered.
	FallbackSiteID     string
	FallbackCredential string
}

// hasFallback reports whether the request supplied a usable fallback account.
func (r Request) hasFallback() bool {
	return r.FallbackSiteID != "" && r.FallbackCredential != ""
}

// Result is the terminal outcome of one request. Source is empty for error
// responses that carry no cached or fetched data.
type Result struct {
	Status      int
	Source      Source
	Body        string
	ContentType string
	AgeSecs     int64

	// RetryAfterSecs is a retry hint, set only on throttled responses.
	RetryAfterSecs int
}

// Fetcher performs one classified upstream attempt. *upstream.Client
// satisfies it; tests substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, account upstream.Account, siteID, endpoint, credential string, params []cache.Param) upstream.Outcome
}

// Config holds the orchestrator's policy knobs.
type Config struct {
	// TTL is the cache freshness window.
	TTL time.Duration

	// RateInterval is the steady-state minimum interval between upstream
	// calls per bucket.
	RateInterval time.Duration

	// ErrorCooldown overrides the next cool-down after a generic upstream
	// or transport failure, so transient failures recover quickly.
	ErrorCooldown time.Duration

	// ExhaustedCooldown overrides the next cool-down after upstream
	// signals rate-limit exhaustion, so an exhausted account is left alone.
	ExhaustedCooldown time.Duration
}

// DefaultConfig returns the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		TTL:               2 * time.Hour,
		RateInterval:      150 * time.Minute,
		ErrorCooldown:     30 * time.Second,
		ExhaustedCooldown: 1 * time.Hour,
	}
}

// Orchestrator drives the per-request decision state machine.
type Orchestrator struct {
	store   *cache.Store
	tracker *ratelimit.Tracker
	client  Fetcher
	cfg     Config
	logger  zerolog.Logger
}

// New creates an orchestrator over the given store, tracker, and upstream
// client.
func New(store *cache.Store, tracker *ratelimit.Tracker, client Fetcher, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		tracker: tracker,
		client:  client,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handle runs one request through the decision state machine and returns
// its terminal result. Every path yields a classified Result; no errors
// escape.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Result {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.Endpoint).Observe(time.Since(start).Seconds())
	}()

	if !ValidEndpoint(req.Endpoint) {
		requestsTotal.WithLabelValues(req.Endpoint, "not_found").Inc()
		return Result{Status: http.StatusNotFound, Body: "Unknown endpoint", ContentType: "text/plain"}
	}

	key := cache.NewKey(req.RooftopID, req.Endpoint, req.Params)
	primary := ratelimit.Bucket(key.String())

	if req.ForceRefresh {
		o.logger.Info().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Msg("Cache bust requested")
	} else if o.store.IsFresh(key, o.cfg.TTL) {
		if entry, age, ok := o.store.Get(key); ok {
			return o.serve(req, SourceHit, entry.Body, entry.ContentType, age)
		}
	}

	// Cache is stale, missing, or bypassed. Admission governs from here;
	// force refresh never bypasses it.
	if !o.tracker.CanFetch(primary, o.cfg.RateInterval) {
		if req.hasFallback() {
			fb := ratelimit.FallbackBucket(req.FallbackSiteID, key.Descriptor)
			if o.tracker.CanFetch(fb, o.cfg.RateInterval) {
				if res, ok := o.fallbackAttempt(ctx, req, key, fb); ok {
					// The forced primary skip counts as an exhaustion
					// signal for the primary bucket.
					o.tracker.MarkFailedAttempt(primary, o.cfg.RateInterval, o.cfg.ExhaustedCooldown, ratelimit.ReasonExhausted)
					return res
				}
			}
		}
		if entry, age, ok := o.store.Get(key); ok {
			return o.serve(req, SourceStale, entry.Body, entry.ContentType, age)
		}
		o.logger.Warn().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Msg("Rate limited, no cached data")
		return o.rateLimited(req)
	}

	o.tracker.MarkAttempt(primary)
	o.logger.Info().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Str("account", string(upstream.AccountPrimary)).Msg("Fetching upstream")
	outcome := o.client.Fetch(ctx, upstream.AccountPrimary, req.RooftopID, req.Endpoint, req.Credential, req.Params)

	switch outcome.Class {
	case upstream.ClassSuccess:
		o.store.Set(key, outcome.Body, outcome.ContentType)
		return o.serve(req, SourceMiss, outcome.Body, outcome.ContentType, 0)

	case upstream.ClassRateLimited:
		o.tracker.MarkFailedAttempt(primary, o.cfg.RateInterval, o.cfg.ExhaustedCooldown, ratelimit.ReasonExhausted)
		if req.hasFallback() {
			fb := ratelimit.FallbackBucket(req.FallbackSiteID, key.Descriptor)
			if o.tracker.CanFetch(fb, o.cfg.RateInterval) {
				if res, ok := o.fallbackAttempt(ctx, req, key, fb); ok {
					return res
				}
			}
		}
		if entry, age, ok := o.store.Get(key); ok {
			return o.serve(req, SourceStale, entry.Body, entry.ContentType, age)
		}
		return o.rateLimited(req)

	case upstream.ClassUpstreamError:
		o.tracker.MarkFailedAttempt(primary, o.cfg.RateInterval, o.cfg.ErrorCooldown, ratelimit.ReasonUpstreamError)
		if entry, age, ok := o.store.Get(key); ok {
			o.logger.Info().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Msg("Serving stale after upstream error")
			return o.serve(req, SourceStale, entry.Body, entry.ContentType, age)
		}
		// Forward upstream's status and body verbatim.
		requestsTotal.WithLabelValues(req.Endpoint, "upstream_error").Inc()
		return Result{Status: outcome.Status, Body: outcome.Body, ContentType: "text/plain"}

	default: // upstream.ClassTransportError
		o.tracker.MarkFailedAttempt(primary, o.cfg.RateInterval, o.cfg.ErrorCooldown, ratelimit.ReasonUpstreamError)
		if entry, age, ok := o.store.Get(key); ok {
			o.logger.Info().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Msg("Serving stale after fetch error")
			return o.serve(req, SourceStale, entry.Body, entry.ContentType, age)
		}
		requestsTotal.WithLabelValues(req.Endpoint, "transport_error").Inc()
		return Result{Status: http.StatusBadGateway, Body: "Upstream fetch failed", ContentType: "text/plain"}
	}
}

// fallbackAttempt performs one admitted call through the fallback account.
// On success the result is stored under the original request's key, so the
// client never sees which account served the data. On failure the matching
// cool-down is applied to the fallback bucket and ok is false.
func (o *Orchestrator) fallbackAttempt(ctx context.Context, req Request, key cache.Key, fb ratelimit.Bucket) (Result, bool) {
	o.tracker.MarkAttempt(fb)
	o.logger.Warn().Str("rooftop", req.RooftopID).Str("endpoint", req.Endpoint).Str("fallback_site", req.FallbackSiteID).Msg("Engaging fallback account")

	outcome := o.client.Fetch(ctx, upstream.AccountFallback, req.FallbackSiteID, req.Endpoint, req.FallbackCredential, req.Params)
	switch outcome.Class {
	case upstream.ClassSuccess:
		o.store.Set(key, outcome.Body, outcome.ContentType)
		return o.serve(req, SourceFallback, outcome.Body, outcome.ContentType, 0), true
	case upstream.ClassRateLimited:
		o.tracker.MarkFailedAttempt(fb, o.cfg.RateInterval, o.cfg.ExhaustedCooldown, ratelimit.ReasonExhausted)
	default:
		o.tracker.MarkFailedAttempt(fb, o.cfg.RateInterval, o.cfg.ErrorCooldown, ratelimit.ReasonUpstreamError)
	}
	return Result{}, false
}

// serve builds a 200 result carrying data and records its provenance.
func (o *Orchestrator) serve(req Request, source Source, body, contentType string, age int64) Result {
	o.logger.Info().
		Str("rooftop", req.RooftopID).
		Str("endpoint", req.Endpoint).
		Str("cache", string(source)).
		Int64("age_secs", age).
		Msg("Request served")
	requestsTotal.WithLabelValues(req.Endpoint, string(source)).Inc()
	return Result{
		Status:      http.StatusOK,
		Source:      source,
		Body:        body,
		ContentType: contentType,
		AgeSecs:     age,
	}
}

// rateLimited builds the terminal 429 with a retry hint.
func (o *Orchestrator) rateLimited(req Request) Result {
	requestsTotal.WithLabelValues(req.Endpoint, "rate_limited").Inc()
	return Result{
		Status:         http.StatusTooManyRequests,
		Body:           "Rate limited and no cached data available",
		ContentType:    "text/plain",
		RetryAfterSecs: int(o.cfg.RateInterval / time.Second),
	}
}
