package cache

import (
	"reflect"
	"testing"
)

func TestNewKey_String(t *testing.T) {
	tests := []struct {
		name     string
		rooftop  string
		endpoint string
		params   []Param
		want     string
	}{
		{
			name:     "no params",
			rooftop:  "site-1",
			endpoint: "forecasts",
			params:   nil,
			want:     "site-1:forecasts",
		},
		{
			name:     "single param",
			rooftop:  "site-1",
			endpoint: "forecasts",
			params:   []Param{{Name: "hours", Value: "24"}},
			want:     "site-1:forecasts?hours=24",
		},
		{
			name:     "params keep received order",
			rooftop:  "site-1",
			endpoint: "estimated_actuals",
			params:   []Param{{Name: "hours", Value: "24"}, {Name: "format", Value: "json"}},
			want:     "site-1:estimated_actuals?hours=24&format=json",
		},
		{
			name:     "reversed order is a different key",
			rooftop:  "site-1",
			endpoint: "estimated_actuals",
			params:   []Param{{Name: "format", Value: "json"}, {Name: "hours", Value: "24"}},
			want:     "site-1:estimated_actuals?format=json&hours=24",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey(tt.rooftop, tt.endpoint, tt.params)
			if got := key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewKey_DifferentParamSetsAreDifferentKeys(t *testing.T) {
	a := NewKey("site-1", "forecasts", []Param{{Name: "hours", Value: "24"}})
	b := NewKey("site-1", "forecasts", []Param{{Name: "hours", Value: "48"}})
	c := NewKey("site-1", "forecasts", nil)

	if a.String() == b.String() {
		t.Error("Different parameter values must produce different keys")
	}
	if a.String() == c.String() {
		t.Error("Presence of parameters must produce a different key")
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		want     []Param
	}{
		{
			name:     "empty query",
			rawQuery: "",
			want:     nil,
		},
		{
			name:     "single pair",
			rawQuery: "hours=24",
			want:     []Param{{Name: "hours", Value: "24"}},
		},
		{
			name:     "order preserved",
			rawQuery: "b=2&a=1",
			want:     []Param{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}},
		},
		{
			name:     "value-less key",
			rawQuery: "debug",
			want:     []Param{{Name: "debug", Value: ""}},
		},
		{
			name:     "empty segments skipped",
			rawQuery: "a=1&&b=2",
			want:     []Param{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseParams(tt.rawQuery)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseParams(%q) = %v, want %v", tt.rawQuery, got, tt.want)
			}
		})
	}
}
