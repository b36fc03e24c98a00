package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/parser"
)

const maxHistoryDays = 30

// RateReader exposes the cached market rate used to price gold in USD
type RateReader interface {
	CachedRate(ctx context.Context) (*domain.Result[domain.ExchangeRate], bool)
}

// GoldService serves normalized gold prices and their recorded history.
// Snapshots are cached in LBP only; the USD rate is applied on read.
type GoldService struct {
	source  *CachedSource[domain.GoldSnapshot]
	rates   RateReader
	history domain.GoldHistoryRepository
	now     func() time.Time
	logger  *slog.Logger
}

// NewGoldService creates a gold service. rates and history may be nil.
func NewGoldService(fetcher domain.PageFetcher, feedURL string, memory, durable domain.EntryStore, rates RateReader, history domain.GoldHistoryRepository, cfg SourceConfig, logger *slog.Logger) *GoldService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &GoldService{
		rates:   rates,
		history: history,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "gold_service")),
	}

	load := func(ctx context.Context) (domain.GoldSnapshot, error) {
		body, err := fetcher.FetchPage(ctx, feedURL)
		if err != nil {
			return domain.GoldSnapshot{}, err
		}
		raw, err := parser.ParseGoldPayload(body)
		if err != nil {
			return domain.GoldSnapshot{}, err
		}

		snapshot := parser.NormalizeGold(raw, 0, s.now())
		if snapshot.PricedCount() == 0 {
			return domain.GoldSnapshot{}, fmt.Errorf("%w: no recognizable gold prices in feed", domain.ErrParseFailed)
		}
		s.record(ctx, snapshot)
		return snapshot, nil
	}

	s.source = NewCachedSource(cfg, memory, durable, load, logger)
	return s
}

// GetGold returns the current gold snapshot. A positive usdRate overrides the
// cached market rate for the USD conversion.
func (s *GoldService) GetGold(ctx context.Context, force bool, usdRate float64) (*domain.Result[domain.GoldSnapshot], error) {
	result, err := s.source.Fetch(ctx, force)
	if err != nil {
		return nil, err
	}

	return s.priced(ctx, result, usdRate), nil
}

// CachedGold returns the cached snapshot of any age without fetching, priced with
// usdRate when positive, else with the cached market rate
func (s *GoldService) CachedGold(ctx context.Context, usdRate float64) (*domain.Result[domain.GoldSnapshot], bool) {
	result, ok := s.source.GetCached(ctx)
	if !ok {
		return nil, false
	}
	return s.priced(ctx, result, usdRate), true
}

// History returns the recorded LBP prices of one gold key over the last days
func (s *GoldService) History(ctx context.Context, key string, days int) ([]domain.GoldPricePoint, error) {
	if !slices.Contains(parser.GoldKeys(), key) {
		return nil, fmt.Errorf("%w: unknown gold key %q", domain.ErrInvalidRequest, key)
	}
	if days < 1 || days > maxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidRequest, maxHistoryDays)
	}
	if s.history == nil {
		return []domain.GoldPricePoint{}, nil
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	points, err := s.history.Series(ctx, key, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read gold history: %w", err)
	}
	return points, nil
}

// Refresh forces a live fetch
func (s *GoldService) Refresh(ctx context.Context) error {
	return s.source.Refresh(ctx)
}

// Name returns the cache key of the source
func (s *GoldService) Name() string {
	return s.source.Name()
}

// Wait blocks until background refreshes have finished
func (s *GoldService) Wait() {
	s.source.Wait()
}

func (s *GoldService) priced(ctx context.Context, result *domain.Result[domain.GoldSnapshot], usdRate float64) *domain.Result[domain.GoldSnapshot] {
	if usdRate <= 0 {
		usdRate = s.marketRate(ctx)
	}
	priced := *result
	priced.Data = result.Data.WithUSDRate(usdRate)
	return &priced
}

func (s *GoldService) marketRate(ctx context.Context) float64 {
	if s.rates == nil {
		return 0
	}
	cached, ok := s.rates.CachedRate(ctx)
	if !ok || cached.Data.Rate <= 0 {
		return 0
	}
	return float64(cached.Data.Rate)
}

// record appends the snapshot, priced with the current market rate, to the history store
func (s *GoldService) record(ctx context.Context, snapshot domain.GoldSnapshot) {
	if s.history == nil {
		return
	}
	priced := snapshot.WithUSDRate(s.marketRate(ctx))
	if err := s.history.Append(ctx, priced); err != nil {
		s.logger.Warn("failed to record gold history", slog.Any("error", err))
	}
}
