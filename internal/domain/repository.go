package domain

import (
	"context"
	"time"
)

// EntryStore defines the interface for cache slot storage
type EntryStore interface {
	Read(ctx context.Context, key string) (*CacheEntry, error)
	Write(ctx context.Context, key string, entry CacheEntry) error
	Delete(ctx context.Context, key string) error
}

// PageFetcher retrieves the raw body of an upstream page
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// GoldHistoryRepository persists gold price snapshots over time
type GoldHistoryRepository interface {
	Append(ctx context.Context, snapshot GoldSnapshot) error
	Prune(ctx context.Context, before time.Time) (int64, error)
	Series(ctx context.Context, key string, since time.Time) ([]GoldPricePoint, error)
}
