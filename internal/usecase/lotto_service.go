package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/parser"
)

// LottoService serves the latest Loto draw
type LottoService struct {
	source *CachedSource[domain.LottoDraw]
}

// NewLottoService creates a lotto service. pageURLs are tried in order within
// each attempt; the first one that yields a complete draw wins.
func NewLottoService(fetcher domain.PageFetcher, pageURLs []string, memory, durable domain.EntryStore, cfg SourceConfig, logger *slog.Logger) *LottoService {
	load := func(ctx context.Context) (domain.LottoDraw, error) {
		if len(pageURLs) == 0 {
			return domain.LottoDraw{}, fmt.Errorf("%w: no lotto page configured", domain.ErrUpstreamFailure)
		}

		var errs []error
		for _, pageURL := range pageURLs {
			draw, err := loadDraw(ctx, fetcher, pageURL)
			if err == nil {
				return draw, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", pageURL, err))
			if ctx.Err() != nil {
				break
			}
		}
		return domain.LottoDraw{}, errors.Join(errs...)
	}

	return &LottoService{
		source: NewCachedSource(cfg, memory, durable, load, logger),
	}
}

func loadDraw(ctx context.Context, fetcher domain.PageFetcher, pageURL string) (domain.LottoDraw, error) {
	body, err := fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return domain.LottoDraw{}, err
	}
	draw, err := parser.ParseLottoDraw(string(body))
	if err != nil {
		return domain.LottoDraw{}, err
	}
	draw.SourceURL = pageURL
	return *draw, nil
}

// GetLatestDraw returns the latest draw, refreshing from upstream when needed
func (s *LottoService) GetLatestDraw(ctx context.Context, force bool) (*domain.Result[domain.LottoDraw], error) {
	return s.source.Fetch(ctx, force)
}

// CachedDraw returns the cached draw of any age without fetching
func (s *LottoService) CachedDraw(ctx context.Context) (*domain.Result[domain.LottoDraw], bool) {
	return s.source.GetCached(ctx)
}

// Refresh forces a live fetch
func (s *LottoService) Refresh(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Name returns the cache key of the source
func (s *LottoService) Name() string {
	return s.source.Name()
}

// Wait blocks until background refreshes have finished
func (s *LottoService) Wait() {
	s.source.Wait()
}
