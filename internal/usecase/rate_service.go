package usecase

import (
	"context"
	"log/slog"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/parser"
)

// RateService serves the USD/LBP market rate
type RateService struct {
	source *CachedSource[domain.ExchangeRate]
}

// NewRateService creates a rate service that scrapes pageURL
func NewRateService(fetcher domain.PageFetcher, pageURL string, memory, durable domain.EntryStore, cfg SourceConfig, logger *slog.Logger) *RateService {
	load := func(ctx context.Context) (domain.ExchangeRate, error) {
		body, err := fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		return parser.ParseExchangeRate(string(body))
	}

	return &RateService{
		source: NewCachedSource(cfg, memory, durable, load, logger),
	}
}

// GetRate returns the current rate, refreshing from upstream when needed
func (s *RateService) GetRate(ctx context.Context, force bool) (*domain.Result[domain.ExchangeRate], error) {
	return s.source.Fetch(ctx, force)
}

// CachedRate returns the cached rate of any age without fetching
func (s *RateService) CachedRate(ctx context.Context) (*domain.Result[domain.ExchangeRate], bool) {
	return s.source.GetCached(ctx)
}

// Refresh forces a live fetch
func (s *RateService) Refresh(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Name returns the cache key of the source
func (s *RateService) Name() string {
	return s.source.Name()
}

// Wait blocks until background refreshes have finished
func (s *RateService) Wait() {
	s.source.Wait()
}
