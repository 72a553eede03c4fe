// Package testutil provides testing utilities for the Solcast proxy.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock upstream endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSolcast is a configurable mock Solcast API server.
type MockSolcast struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount int
	pathCounts   map[string]int
	lastAuth     string
}

// NewMockSolcast creates a new mock upstream server.
func NewMockSolcast() *MockSolcast {
	mock := &MockSolcast{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastAuth = r.Header.Get("Authorization")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSolcast) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSolcast) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSolcast) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastAuth = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSolcast) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSolcast) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSiteResponse configures a response for a rooftop site endpoint.
func (m *MockSolcast) SetSiteResponse(siteID, endpoint string, resp MockResponse) {
	m.SetResponse(fmt.Sprintf("/rooftop_sites/%s/%s", siteID, endpoint), resp)
}

// RequestCount returns the total number of requests seen.
func (m *MockSolcast) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests seen for one path.
func (m *MockSolcast) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastAuthorization returns the Authorization header of the most recent
// request.
func (m *MockSolcast) LastAuthorization() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAuth
}

// defaultHandler returns an empty JSON document for unconfigured paths.
func (m *MockSolcast) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("{}"))
}
