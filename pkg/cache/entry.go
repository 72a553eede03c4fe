package cache

import (
	"time"
)

// Entry represents one cached upstream response. Entries are immutable
// value objects; Set replaces them wholesale and never mutates in place.
type Entry struct {
	// Body is the raw response body. The proxy is payload-agnostic and
	// performs no schema validation.
	Body string `json:"body"`

	// ContentType is the upstream Content-Type header value.
	ContentType string `json:"content_type"`

	// FetchedAt is when the response was fetched, in UTC.
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns the entry's age at the given instant, in whole seconds.
// A negative age means the fetch timestamp lies in the future (clock skew).
func (e Entry) Age(now time.Time) int64 {
	return int64(now.Sub(e.FetchedAt) / time.Second)
}

// FreshAt reports whether the entry is fresh at the given instant for the
// given TTL. The boundary is exclusive: at age == ttl the entry is stale.
// Negative age (clock skew) is treated as not fresh.
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	age := now.Sub(e.FetchedAt)
	return age >= 0 && age < ttl
}
