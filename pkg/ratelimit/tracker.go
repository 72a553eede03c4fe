// Package ratelimit implements per-bucket admission control for upstream
// calls. Every admitted attempt, successful or not, advances the bucket's
// timestamp so the minimum inter-call interval holds even when upstream
// fails. Failed attempts may override the next cool-down: short after a
// generic error so transient failures recover quickly, long after upstream
// reports exhaustion so an already-exhausted account is left alone.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	admissionsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solcast_admissions_denied_total",
		Help: "Total upstream call attempts denied by the inter-call interval",
	})

	cooldownOverrides = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solcast_cooldown_overrides_total",
		Help: "Total failure cool-down overrides applied by reason",
	}, []string{"reason"})
)

// Bucket identifies one rate-limit bucket. The primary account uses the
// cache key string; a fallback account uses its own namespaced bucket so
// the two call budgets never interfere.
type Bucket string

// FallbackBucket builds the bucket for a fallback account crossed with the
// same endpoint descriptor as the original request.
func FallbackBucket(fallbackSiteID, descriptor string) Bucket {
	return Bucket("fallback:" + fallbackSiteID + ":" + descriptor)
}

// CooldownReason labels why a failure cool-down was applied.
type CooldownReason string

const (
	// ReasonUpstreamError covers generic upstream or transport failures.
	ReasonUpstreamError CooldownReason = "upstream_error"

	// ReasonExhausted covers upstream-signalled rate-limit exhaustion.
	ReasonExhausted CooldownReason = "exhausted"
)

// Tracker records the most recent call attempt per bucket. State is
// process-local on purpose: it bounds call rate, not correctness, and
// resetting on restart only makes the service momentarily more permissive.
type Tracker struct {
	mu     sync.Mutex
	last   map[Bucket]time.Time
	logger zerolog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		last:   make(map[Bucket]time.Time),
		logger: logger,
		now:    time.Now,
	}
}

// CanFetch reports whether a new call to the bucket is admitted: true iff
// no attempt was ever recorded or at least minInterval has elapsed since
// the last recorded attempt.
func (t *Tracker) CanFetch(bucket Bucket, minInterval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[bucket]
	if !ok {
		return true
	}
	if t.now().Sub(last) >= minInterval {
		return true
	}
	admissionsDenied.Inc()
	return false
}

// MarkAttempt stamps the bucket's last-attempt time to now. Called for
// every admitted call before the upstream request is made.
func (t *Tracker) MarkAttempt(bucket Bucket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[bucket] = t.now()
}

// MarkFailedAttempt re-stamps the bucket after an admitted call failed so
// that the next eligible instant is now + override instead of the normal
// now + minInterval. The stored timestamp is backdated (or forward-dated)
// by minInterval - override; the override is one-shot because subsequent
// CanFetch checks measure the steady-state interval from the stored
// timestamp.
func (t *Tracker) MarkFailedAttempt(bucket Bucket, minInterval, override time.Duration, reason CooldownReason) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last[bucket] = t.now().Add(override - minInterval)
	cooldownOverrides.WithLabelValues(string(reason)).Inc()

	t.logger.Debug().
		Str("bucket", string(bucket)).
		Dur("cooldown", override).
		Str("reason", string(reason)).
		Msg("Failure cool-down applied")
}

// NextEligible returns the instant at which the bucket becomes admissible
// again under the given interval, and whether an attempt was ever recorded.
func (t *Tracker) NextEligible(bucket Bucket, minInterval time.Duration) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[bucket]
	if !ok {
		return time.Time{}, false
	}
	return last.Add(minInterval), true
}
