package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lebanonrates/backend/internal/domain"
)

const defaultJobTimeout = 2 * time.Minute

// Refresher is a source that can be forced to refetch from upstream
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes every source and prunes recorded gold history
type Scheduler struct {
	sources   []Refresher
	interval  time.Duration
	history   domain.GoldHistoryRepository
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. history may be nil, and a zero retention disables pruning.
func NewScheduler(sources []Refresher, interval time.Duration, history domain.GoldHistoryRepository, retention time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		sources:   sources,
		interval:  interval,
		history:   history,
		retention: retention,
		timeout:   defaultJobTimeout,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "scheduler")),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the refresh loop. A non-positive interval leaves the scheduler idle.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("scheduler disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
}

// Stop ends the refresh loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			s.RunOnce(ctx)
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce refreshes all sources concurrently, then prunes history.
// Failures are logged per source and never stop the other sources.
// It returns the number of sources that refreshed successfully.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for _, src := range s.sources {
		wg.Add(1)
		go func(src Refresher) {
			defer wg.Done()

			start := time.Now()
			if err := src.Refresh(ctx); err != nil {
				s.logger.Warn("scheduled refresh failed", slog.String("source", src.Name()), slog.Any("error", err))
				return
			}
			s.logger.Debug("scheduled refresh completed",
				slog.String("source", src.Name()),
				slog.Duration("took", time.Since(start)),
			)

			mu.Lock()
			ok++
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	s.prune(ctx)
	return ok
}

func (s *Scheduler) prune(ctx context.Context) {
	if s.history == nil || s.retention <= 0 {
		return
	}

	removed, err := s.history.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("failed to prune gold history", slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned gold history", slog.Int64("removed", removed))
	}
}
