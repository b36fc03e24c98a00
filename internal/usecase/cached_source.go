package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/lebanonrates/backend/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Backoff selects how the delay between retry attempts grows
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

const defaultRefreshTimeout = 2 * time.Minute

// RetryPolicy bounds the attempts made for one live fetch
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	Backoff  Backoff
}

func (p RetryPolicy) options(ctx context.Context, onRetry retry.OnRetryFunc) []retry.Option {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(onRetry),
	}

	switch p.Backoff {
	case BackoffExponential:
		opts = append(opts, retry.DelayType(retry.BackOffDelay))
	case BackoffLinear:
		step := p.Delay
		opts = append(opts, retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * step
		}))
	default:
		opts = append(opts, retry.DelayType(retry.FixedDelay))
	}
	return opts
}

// SourceConfig holds the caching and retry settings of one source
type SourceConfig struct {
	Name           string // cache key and log attribute
	FreshTTL       time.Duration
	StaleTTL       time.Duration
	RefreshTimeout time.Duration // bounds one shared live fetch, retries included
	Retry          RetryPolicy
}

// Loader performs one live fetch-and-parse of a source
type Loader[T any] func(ctx context.Context) (T, error)

type cachedValue[T any] struct {
	data      T
	fetchedAt time.Time
}

// CachedSource serves a record from a two-level cache and refreshes it from upstream.
// Entries younger than FreshTTL are served as is, entries younger than StaleTTL are
// served while a background refresh runs, and anything older triggers a live fetch.
// A failed live fetch falls back to the newest cached entry of any age.
type CachedSource[T any] struct {
	cfg     SourceConfig
	memory  domain.EntryStore
	durable domain.EntryStore
	load    Loader[T]
	now     func() time.Time
	logger  *slog.Logger

	group      singleflight.Group
	refreshing atomic.Bool
	wg         sync.WaitGroup
}

// NewCachedSource creates a cache-aware fetcher. durable may be nil.
func NewCachedSource[T any](cfg SourceConfig, memory, durable domain.EntryStore, load Loader[T], logger *slog.Logger) *CachedSource[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}

	return &CachedSource[T]{
		cfg:     cfg,
		memory:  memory,
		durable: durable,
		load:    load,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "cached_source"), slog.String("source", cfg.Name)),
	}
}

// Name returns the source name
func (s *CachedSource[T]) Name() string {
	return s.cfg.Name
}

// Fetch returns the record, consulting the cache unless force is set.
// The only error is one wrapping domain.ErrNoData.
func (s *CachedSource[T]) Fetch(ctx context.Context, force bool) (*domain.Result[T], error) {
	if !force {
		if cached, ok := s.lookup(ctx); ok {
			switch s.classify(cached.fetchedAt) {
			case domain.FreshnessFresh:
				return s.result(cached, true, false, ""), nil
			case domain.FreshnessStale:
				s.refreshInBackground()
				return s.result(cached, true, true, ""), nil
			}
			s.logger.Info("cached entry expired, fetching live", slog.Time("fetched_at", cached.fetchedAt))
		}
	}

	fetched, err := s.fetchShared(ctx)
	if err == nil {
		return s.result(fetched, false, false, ""), nil
	}

	if cached, ok := s.lookup(ctx); ok {
		s.logger.Warn("live fetch failed, serving cached entry",
			slog.Any("error", err),
			slog.Time("fetched_at", cached.fetchedAt),
		)
		return s.result(cached, true, true, err.Error()), nil
	}

	s.logger.Error("live fetch failed and nothing is cached", slog.Any("error", err))
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrNoData, s.cfg.Name, err)
}

// Refresh runs a live fetch and stores the result, without any cache fallback
func (s *CachedSource[T]) Refresh(ctx context.Context) error {
	_, err := s.fetchShared(ctx)
	return err
}

// GetCached returns the cached record of any age without touching upstream
func (s *CachedSource[T]) GetCached(ctx context.Context) (*domain.Result[T], bool) {
	cached, ok := s.lookup(ctx)
	if !ok {
		return nil, false
	}
	fresh := s.classify(cached.fetchedAt) == domain.FreshnessFresh
	return s.result(cached, true, !fresh, ""), true
}

// Invalidate drops the cached record from both stores
func (s *CachedSource[T]) Invalidate(ctx context.Context) error {
	var errs []error
	if err := s.memory.Delete(ctx, s.cfg.Name); err != nil {
		errs = append(errs, err)
	}
	if s.durable != nil {
		if err := s.durable.Delete(ctx, s.cfg.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until background refreshes have finished
func (s *CachedSource[T]) Wait() {
	s.wg.Wait()
}

func (s *CachedSource[T]) classify(fetchedAt time.Time) domain.Freshness {
	return domain.ClassifyAge(s.age(fetchedAt), s.cfg.FreshTTL, s.cfg.StaleTTL)
}

func (s *CachedSource[T]) age(fetchedAt time.Time) time.Duration {
	age := s.now().Sub(fetchedAt)
	if age < 0 {
		return 0
	}
	return age
}

func (s *CachedSource[T]) result(v cachedValue[T], fromCache, stale bool, lastErr string) *domain.Result[T] {
	age := s.age(v.fetchedAt)
	return &domain.Result[T]{
		Data:      v.data,
		FetchedAt: v.fetchedAt,
		Age:       age,
		Freshness: domain.ClassifyAge(age, s.cfg.FreshTTL, s.cfg.StaleTTL),
		FromCache: fromCache,
		Stale:     stale,
		LastError: lastErr,
	}
}

// refreshInBackground starts at most one detached refresh at a time
func (s *CachedSource[T]) refreshInBackground() {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
		defer cancel()

		if _, err := s.fetchShared(ctx); err != nil {
			s.logger.Warn("background refresh failed", slog.Any("error", err))
			return
		}
		s.logger.Debug("background refresh completed")
	}()
}

// fetchShared collapses concurrent live fetches into a single upstream call.
// The shared call runs detached from every caller and is bounded by RefreshTimeout;
// a caller whose ctx ends stops waiting without failing the others.
func (s *CachedSource[T]) fetchShared(ctx context.Context) (cachedValue[T], error) {
	if err := ctx.Err(); err != nil {
		return cachedValue[T]{}, err
	}

	ch := s.group.DoChan(s.cfg.Name, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RefreshTimeout)
		defer cancel()
		return s.fetchLive(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return cachedValue[T]{}, res.Err
		}
		return res.Val.(cachedValue[T]), nil
	case <-ctx.Done():
		return cachedValue[T]{}, ctx.Err()
	}
}

func (s *CachedSource[T]) fetchLive(ctx context.Context) (cachedValue[T], error) {
	var data T
	err := retry.Do(
		func() error {
			v, err := s.load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return err
			}
			data = v
			return nil
		},
		s.cfg.Retry.options(ctx, func(n uint, err error) {
			s.logger.Warn("fetch attempt failed",
				slog.Uint64("attempt", uint64(n+1)),
				slog.Uint64("max_attempts", uint64(s.cfg.Retry.Attempts)),
				slog.Any("error", err),
			)
		})...,
	)
	if err != nil {
		return cachedValue[T]{}, err
	}

	fetched := cachedValue[T]{data: data, fetchedAt: s.now()}
	s.store(ctx, fetched)
	s.logger.Info("fetched live data")
	return fetched, nil
}

// store writes the record to both levels; write failures are logged, not returned
func (s *CachedSource[T]) store(ctx context.Context, v cachedValue[T]) {
	raw, err := json.Marshal(v.data)
	if err != nil {
		s.logger.Error("failed to encode record for cache", slog.Any("error", err))
		return
	}
	entry := domain.CacheEntry{Data: raw, FetchedAt: v.fetchedAt}

	if err := s.memory.Write(ctx, s.cfg.Name, entry); err != nil {
		s.logger.Warn("failed to write memory cache", slog.Any("error", err))
	}
	if s.durable != nil {
		if err := s.durable.Write(ctx, s.cfg.Name, entry); err != nil {
			s.logger.Warn("failed to write durable cache", slog.Any("error", err))
		}
	}
}

// lookup reads memory first, then the durable store, warming memory on a durable hit.
// Unreadable entries are logged and treated as misses.
func (s *CachedSource[T]) lookup(ctx context.Context) (cachedValue[T], bool) {
	if v, _, ok := s.readFrom(ctx, s.memory, "memory"); ok {
		return v, true
	}
	if s.durable == nil {
		return cachedValue[T]{}, false
	}

	v, entry, ok := s.readFrom(ctx, s.durable, "durable")
	if !ok {
		return cachedValue[T]{}, false
	}
	if err := s.memory.Write(ctx, s.cfg.Name, *entry); err != nil {
		s.logger.Warn("failed to warm memory cache", slog.Any("error", err))
	}
	return v, true
}

func (s *CachedSource[T]) readFrom(ctx context.Context, store domain.EntryStore, level string) (cachedValue[T], *domain.CacheEntry, bool) {
	entry, err := store.Read(ctx, s.cfg.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("ignoring unreadable cache entry", slog.String("level", level), slog.Any("error", err))
		}
		return cachedValue[T]{}, nil, false
	}

	var data T
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		s.logger.Warn("ignoring undecodable cache entry", slog.String("level", level), slog.Any("error", err))
		return cachedValue[T]{}, nil, false
	}
	return cachedValue[T]{data: data, fetchedAt: entry.FetchedAt}, entry, true
}
