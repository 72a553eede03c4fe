// Package upstream performs single-attempt HTTP calls against the Solcast
// API and classifies their outcomes. Retry and back-off policy live in the
// orchestrator and attempt tracker, never here: one call, one attempt.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/heliotropic/solcast-proxy/pkg/cache"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solcast_upstream_requests_total",
		Help: "Total upstream requests by account and outcome class",
	}, []string{"account", "class"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solcast_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by account",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"account"})
)

// Account names which credential set a call uses.
type Account string

const (
	// AccountPrimary is the client-supplied default account.
	AccountPrimary Account = "primary"

	// AccountFallback is the secondary account engaged on primary exhaustion.
	AccountFallback Account = "fallback"
)

// Class classifies the outcome of a single upstream call.
type Class string

const (
	// ClassSuccess is an HTTP success with a readable body.
	ClassSuccess Class = "success"

	// ClassRateLimited is an HTTP 429 from upstream.
	ClassRateLimited Class = "rate_limited"

	// ClassUpstreamError is any other non-success status.
	ClassUpstreamError Class = "upstream_error"

	// ClassTransportError is a connection, timeout, or protocol failure
	// before a status was obtained.
	ClassTransportError Class = "transport_error"
)

// Outcome is the classified result of exactly one upstream attempt.
type Outcome struct {
	Class       Class
	Status      int
	Body        string
	ContentType string
	Err         error
}

// Client calls the Solcast API. It performs exactly one HTTP attempt per
// Fetch; the configured timeout surfaces as a transport error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an upstream client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch performs one call to /rooftop_sites/{siteID}/{endpoint} with the
// given credential and the query parameters in their original order, and
// returns the classified outcome. credential is placed verbatim into the
// Authorization header.
func (c *Client) Fetch(ctx context.Context, account Account, siteID, endpoint, credential string, params []cache.Param) Outcome {
	url := fmt.Sprintf("%s/rooftop_sites/%s/%s", c.baseURL, siteID, endpoint)
	if len(params) > 0 {
		pairs := make([]string, 0, len(params))
		for _, p := range params {
			pairs = append(pairs, p.Name+"="+p.Value)
		}
		url += "?" + strings.Join(pairs, "&")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.transportError(account, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	upstreamRequestDuration.WithLabelValues(string(account)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error().Err(err).Str("account", string(account)).Str("rooftop", siteID).Str("endpoint", endpoint).Msg("Upstream fetch failed")
		return c.transportError(account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// Surface upstream's own rate-limit hints to logs only.
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn().
			Str("account", string(account)).
			Str("rooftop", siteID).
			Str("endpoint", endpoint).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Str("ratelimit_remaining", resp.Header.Get("X-RateLimit-Remaining")).
			Msg("Upstream returned 429")
		upstreamRequestsTotal.WithLabelValues(string(account), string(ClassRateLimited)).Inc()
		return Outcome{Class: ClassRateLimited, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error().Err(err).Str("account", string(account)).Str("endpoint", endpoint).Msg("Failed to read upstream body")
		return c.transportError(account, fmt.Errorf("read upstream body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().
			Str("account", string(account)).
			Str("rooftop", siteID).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Upstream error")
		upstreamRequestsTotal.WithLabelValues(string(account), string(ClassUpstreamError)).Inc()
		return Outcome{
			Class:  ClassUpstreamError,
			Status: resp.StatusCode,
			Body:   string(body),
			Err: &Error{
				StatusCode: resp.StatusCode,
				Class:      ClassUpstreamError,
				Message:    resp.Status,
			},
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	upstreamRequestsTotal.WithLabelValues(string(account), string(ClassSuccess)).Inc()
	return Outcome{
		Class:       ClassSuccess,
		Status:      resp.StatusCode,
		Body:        string(body),
		ContentType: contentType,
	}
}

func (c *Client) transportError(account Account, err error) Outcome {
	upstreamRequestsTotal.WithLabelValues(string(account), string(ClassTransportError)).Inc()
	return Outcome{
		Class: ClassTransportError,
		Err: &Error{
			Class:   ClassTransportError,
			Message: "upstream fetch failed",
			Err:     err,
		},
	}
}
