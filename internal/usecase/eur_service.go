package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/parser"
)

// USDRateSource supplies the USD/LBP rate that the EUR rate is derived from
type USDRateSource interface {
	GetRate(ctx context.Context, force bool) (*domain.Result[domain.ExchangeRate], error)
	CachedRate(ctx context.Context) (*domain.Result[domain.ExchangeRate], bool)
}

// EURService serves EUR/LBP, derived from the USD/LBP market rate and a cached EUR/USD cross rate.
// There is no estimated fallback: when either input is missing the rate is unavailable.
type EURService struct {
	source *CachedSource[float64]
	usd    USDRateSource
}

// NewEURService creates an EUR service that reads the cross rate table at feedURL
func NewEURService(fetcher domain.PageFetcher, feedURL string, usd USDRateSource, memory, durable domain.EntryStore, cfg SourceConfig, logger *slog.Logger) *EURService {
	load := func(ctx context.Context) (float64, error) {
		body, err := fetcher.FetchPage(ctx, feedURL)
		if err != nil {
			return 0, err
		}
		return parser.ParseEURPerUSD(body)
	}

	return &EURService{
		source: NewCachedSource(cfg, memory, durable, load, logger),
		usd:    usd,
	}
}

// GetEURRate returns the derived rate, refreshing either input from upstream when needed
func (s *EURService) GetEURRate(ctx context.Context, force bool) (*domain.Result[domain.EURRate], error) {
	usd, err := s.usd.GetRate(ctx, force)
	if err != nil {
		return nil, fmt.Errorf("usd rate unavailable: %w", err)
	}
	cross, err := s.source.Fetch(ctx, force)
	if err != nil {
		return nil, err
	}
	return combineEUR(usd, cross)
}

// CachedEURRate derives the rate from cached inputs of any age without fetching
func (s *EURService) CachedEURRate(ctx context.Context) (*domain.Result[domain.EURRate], bool) {
	usd, ok := s.usd.CachedRate(ctx)
	if !ok {
		return nil, false
	}
	cross, ok := s.source.GetCached(ctx)
	if !ok {
		return nil, false
	}
	result, err := combineEUR(usd, cross)
	return result, err == nil
}

// Refresh forces a live fetch of the cross rate. The USD rate refreshes on its own schedule.
func (s *EURService) Refresh(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Name returns the cache key of the cross rate source
func (s *EURService) Name() string {
	return s.source.Name()
}

// Wait blocks until background refreshes have finished
func (s *EURService) Wait() {
	s.source.Wait()
}

// combineEUR merges both inputs; the result is as old and as stale as its weakest input
func combineEUR(usd *domain.Result[domain.ExchangeRate], cross *domain.Result[float64]) (*domain.Result[domain.EURRate], error) {
	rate, ok := parser.DeriveEURRate(usd.Data.Rate, cross.Data)
	if !ok {
		return nil, fmt.Errorf("%w: cannot derive EUR rate", domain.ErrNoData)
	}

	result := &domain.Result[domain.EURRate]{
		Data:      rate,
		FetchedAt: usd.FetchedAt,
		Age:       max(usd.Age, cross.Age),
		Freshness: worseFreshness(usd.Freshness, cross.Freshness),
		FromCache: usd.FromCache && cross.FromCache,
		Stale:     usd.Stale || cross.Stale,
		LastError: usd.LastError,
	}
	if cross.FetchedAt.Before(usd.FetchedAt) {
		result.FetchedAt = cross.FetchedAt
	}
	if result.LastError == "" {
		result.LastError = cross.LastError
	}
	return result, nil
}

func worseFreshness(a, b domain.Freshness) domain.Freshness {
	rank := map[domain.Freshness]int{
		domain.FreshnessFresh:   0,
		domain.FreshnessStale:   1,
		domain.FreshnessExpired: 2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
