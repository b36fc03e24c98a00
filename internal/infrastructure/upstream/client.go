package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lebanonrates/backend/internal/domain"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; several sources reject unknown agents
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultTimeout = 15 * time.Second
	limiterBurst   = 3
)

// Config describes how to talk to a single upstream host
type Config struct {
	Name              string
	Timeout           time.Duration
	RequestsPerMinute int // zero disables outbound limiting
	Headers           map[string]string
}

// Client fetches raw pages from one upstream source
type Client struct {
	name        string
	httpClient  *resty.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new upstream client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", DefaultUserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeaders(cfg.Headers)

	return &Client{
		name:        cfg.Name,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(limit, limiterBurst),
		logger:      logger.With(slog.String("component", "upstream"), slog.String("source", cfg.Name)),
	}
}

// FetchPage performs a single GET and returns the body of a 2xx response
func (c *Client) FetchPage(ctx context.Context, url string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}

	start := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		c.logger.Warn("request failed", slog.String("url", url), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstreamFailure, url, err)
	}

	c.logger.Debug("request completed",
		slog.String("url", url),
		slog.Int("status", res.StatusCode()),
		slog.Int("bytes", len(res.Body())),
		slog.Duration("elapsed", time.Since(start)),
	)

	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamFailure, url, res.StatusCode())
	}
	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", domain.ErrUpstreamFailure, url)
	}
	return res.Body(), nil
}
