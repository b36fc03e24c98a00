package usecase

import (
	"context"
	"log/slog"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/parser"
)

// FuelService serves today's regulated fuel prices
type FuelService struct {
	source *CachedSource[domain.FuelPriceSet]
}

// NewFuelService creates a fuel service that scrapes pageURL
func NewFuelService(fetcher domain.PageFetcher, pageURL string, memory, durable domain.EntryStore, cfg SourceConfig, logger *slog.Logger) *FuelService {
	load := func(ctx context.Context) (domain.FuelPriceSet, error) {
		body, err := fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			return domain.FuelPriceSet{}, err
		}
		prices, err := parser.ParseFuelPrices(string(body))
		if err != nil {
			return domain.FuelPriceSet{}, err
		}
		return *prices, nil
	}

	return &FuelService{
		source: NewCachedSource(cfg, memory, durable, load, logger),
	}
}

// GetFuelPrices returns the current prices, refreshing from upstream when needed
func (s *FuelService) GetFuelPrices(ctx context.Context, force bool) (*domain.Result[domain.FuelPriceSet], error) {
	return s.source.Fetch(ctx, force)
}

// CachedFuelPrices returns the cached prices of any age without fetching
func (s *FuelService) CachedFuelPrices(ctx context.Context) (*domain.Result[domain.FuelPriceSet], bool) {
	return s.source.GetCached(ctx)
}

// Refresh forces a live fetch
func (s *FuelService) Refresh(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Name returns the cache key of the source
func (s *FuelService) Name() string {
	return s.source.Name()
}

// Wait blocks until background refreshes have finished
func (s *FuelService) Wait() {
	s.source.Wait()
}
