package domain

import (
	"encoding/json"
	"time"
)

// Freshness classifies a cached entry by age
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessStale   Freshness = "stale"
	FreshnessExpired Freshness = "expired"
)

// ClassifyAge maps an entry age onto the freshness tiers
func ClassifyAge(age, freshTTL, staleTTL time.Duration) Freshness {
	switch {
	case age < freshTTL:
		return FreshnessFresh
	case age < staleTTL:
		return FreshnessStale
	default:
		return FreshnessExpired
	}
}

// CacheEntry is the persisted form of a fetched record
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Result wraps a record with its cache provenance
type Result[T any] struct {
	Data      T
	FetchedAt time.Time
	Age       time.Duration
	Freshness Freshness
	FromCache bool
	Stale     bool
	LastError string // set when a live fetch failed and a cached value was served
}
