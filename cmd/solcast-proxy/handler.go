package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/heliotropic/solcast-proxy/pkg/cache"
	"github.com/heliotropic/solcast-proxy/pkg/proxy"
)

// Request headers carrying the fallback account.
const (
	headerFallbackSite = "X-Solcast-Fallback-Site"
	headerFallbackKey  = "X-Solcast-Fallback-Key"
)

// server is the thin HTTP adapter around the orchestrator.
type server struct {
	orchestrator *proxy.Orchestrator
	store        *cache.Store
	startTime    time.Time
	logger       zerolog.Logger
}

// newRouter wires the HTTP surface: the proxied rooftop endpoints, the
// health check, and Prometheus metrics.
func newRouter(s *server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/rooftop_sites/{rooftopID}/{endpoint}", s.handleProxy)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleProxy translates one HTTP request into a core Request and writes
// the core's Result back. All decisions live in the orchestrator.
func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	req := proxy.Request{
		RooftopID:      chi.URLParam(r, "rooftopID"),
		Endpoint:       chi.URLParam(r, "endpoint"),
		Params:         cache.ParseParams(r.URL.RawQuery),
		ForceRefresh:   strings.Contains(r.Header.Get("Cache-Control"), "no-cache"),
		Credential:     r.Header.Get("Authorization"),
		FallbackSiteID: r.Header.Get(headerFallbackSite),
	}
	if key := r.Header.Get(headerFallbackKey); key != "" {
		req.FallbackCredential = "Bearer " + key
	}

	res := s.orchestrator.Handle(r.Context(), req)

	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	if res.Source != "" {
		w.Header().Set("X-Cache", string(res.Source))
		w.Header().Set("X-Cache-Age", strconv.FormatInt(res.AgeSecs, 10))
	}
	if res.RetryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSecs))
	}
	w.WriteHeader(res.Status)
	if res.Body != "" {
		if _, err := w.Write([]byte(res.Body)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cache_entries"`
	UptimeSecs   int64  `json:"uptime_secs"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:       "ok",
		CacheEntries: s.store.Count(),
		UptimeSecs:   int64(time.Since(s.startTime) / time.Second),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write health response")
	}
}
