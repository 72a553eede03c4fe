package cache

import (
	"strings"
)

// Param is a single query parameter. Parameters are kept as an ordered
// slice rather than url.Values because the cache key preserves the exact
// order the client supplied them.
type Param struct {
	Name  string
	Value string
}

// Key identifies one cached response and one primary rate-limit bucket.
type Key struct {
	// RooftopID is the rooftop site identifier from the request path.
	RooftopID string

	// Descriptor is the endpoint name plus the query parameters as
	// received, e.g. "forecasts" or "forecasts?hours=24&format=json".
	Descriptor string
}

// NewKey builds a key from a rooftop site, an endpoint name, and the query
// parameters in the order the client sent them. Two logically identical but
// differently ordered parameter sets produce different keys; this matches
// the upstream call actually made and is a documented limitation, not a
// normalization bug.
func NewKey(rooftopID, endpoint string, params []Param) Key {
	return Key{
		RooftopID:  rooftopID,
		Descriptor: Descriptor(endpoint, params),
	}
}

// Descriptor serializes an endpoint name and ordered query parameters into
// the canonical descriptor form used in cache keys and rate-limit buckets.
func Descriptor(endpoint string, params []Param) string {
	if len(params) == 0 {
		return endpoint
	}
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, p.Name+"="+p.Value)
	}
	return endpoint + "?" + strings.Join(pairs, "&")
}

// String returns the flat "rooftopID:descriptor" form used as the map key
// in memory and in the snapshot file.
func (k Key) String() string {
	return k.RooftopID + ":" + k.Descriptor
}

// ParseParams splits a raw query string into ordered parameters. Unlike
// url.ParseQuery it preserves the order of keys as received. Percent
// escapes are left as-is; the same bytes the client sent are forwarded
// upstream and folded into the key.
func ParseParams(rawQuery string) []Param {
	if rawQuery == "" {
		return nil
	}
	var params []Param
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		params = append(params, Param{Name: name, Value: value})
	}
	return params
}
