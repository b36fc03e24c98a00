package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lebanonrates/backend/internal/domain"
)

const (
	defaultHistoryDays = 7

	cacheControlFresh   = "public, max-age=60, stale-while-revalidate=600"
	cacheControlStale   = "public, max-age=30"
	cacheControlNoStore = "no-store"
)

// RateProvider serves the USD/LBP market rate
type RateProvider interface {
	GetRate(ctx context.Context, force bool) (*domain.Result[domain.ExchangeRate], error)
}

// EURProvider serves the derived EUR/LBP rate
type EURProvider interface {
	GetEURRate(ctx context.Context, force bool) (*domain.Result[domain.EURRate], error)
}

// FuelProvider serves fuel prices
type FuelProvider interface {
	GetFuelPrices(ctx context.Context, force bool) (*domain.Result[domain.FuelPriceSet], error)
}

// LottoProvider serves the latest Loto draw
type LottoProvider interface {
	GetLatestDraw(ctx context.Context, force bool) (*domain.Result[domain.LottoDraw], error)
}

// GoldProvider serves gold prices and their history
type GoldProvider interface {
	GetGold(ctx context.Context, force bool, usdRate float64) (*domain.Result[domain.GoldSnapshot], error)
	History(ctx context.Context, key string, days int) ([]domain.GoldPricePoint, error)
}

// CacheStats reports the size of the in-memory cache
type CacheStats interface {
	Size() int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	rates  RateProvider
	eur    EURProvider
	fuel   FuelProvider
	lotto  LottoProvider
	gold   GoldProvider
	cache  CacheStats
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler. cache may be nil.
func NewHandler(rates RateProvider, eur EURProvider, fuel FuelProvider, lotto LottoProvider, gold GoldProvider, cache CacheStats, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rates:  rates,
		eur:    eur,
		fuel:   fuel,
		lotto:  lotto,
		gold:   gold,
		cache:  cache,
		logger: logger.With(slog.String("component", "http_handler")),
	}
}

// resultResponse is the envelope shared by every data endpoint
type resultResponse[T any] struct {
	Data       T                `json:"data"`
	Source     string           `json:"source"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	FromCache  bool             `json:"fromCache"`
	Stale      bool             `json:"stale"`
	Freshness  domain.Freshness `json:"freshness"`
	AgeSeconds int64            `json:"ageSeconds"`
	LastError  string           `json:"lastError,omitempty"`
}

type historyResponse struct {
	Key    string                  `json:"key"`
	Days   int                     `json:"days"`
	Points []domain.GoldPricePoint `json:"points"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "lebanonrates-backend",
		"version": "1.0.0",
	}
	if h.cache != nil {
		body["cacheEntries"] = h.cache.Size()
	}
	c.JSON(http.StatusOK, body)
}

// GetUSDRate handles GET /api/v1/rates/usd
func (h *Handler) GetUSDRate(c *gin.Context) {
	result, err := h.rates.GetRate(c.Request.Context(), forceRefresh(c))
	if err != nil {
		h.writeError(c, "rate", err)
		return
	}
	writeResult(c, "rate", result)
}

// GetEURRate handles GET /api/v1/rates/eur
func (h *Handler) GetEURRate(c *gin.Context) {
	result, err := h.eur.GetEURRate(c.Request.Context(), forceRefresh(c))
	if err != nil {
		h.writeError(c, "eur", err)
		return
	}
	writeResult(c, "eur", result)
}

// GetFuelPrices handles GET /api/v1/fuel
func (h *Handler) GetFuelPrices(c *gin.Context) {
	result, err := h.fuel.GetFuelPrices(c.Request.Context(), forceRefresh(c))
	if err != nil {
		h.writeError(c, "fuel", err)
		return
	}
	writeResult(c, "fuel", result)
}

// GetLatestLotto handles GET /api/v1/loto/latest
func (h *Handler) GetLatestLotto(c *gin.Context) {
	force := forceRefresh(c) || c.Query("cache") == "false"
	result, err := h.lotto.GetLatestDraw(c.Request.Context(), force)
	if err != nil {
		h.writeError(c, "lotto", err)
		return
	}
	writeResult(c, "lotto", result)
}

// GetGold handles GET /api/v1/gold
func (h *Handler) GetGold(c *gin.Context) {
	var usdRate float64
	if raw := c.Query("usd_rate"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			h.writeError(c, "gold", fmt.Errorf("%w: usd_rate must be a positive number", domain.ErrInvalidRequest))
			return
		}
		usdRate = v
	}

	result, err := h.gold.GetGold(c.Request.Context(), forceRefresh(c), usdRate)
	if err != nil {
		h.writeError(c, "gold", err)
		return
	}
	writeResult(c, "gold", result)
}

// GetGoldHistory handles GET /api/v1/gold/history
func (h *Handler) GetGoldHistory(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		h.writeError(c, "gold", fmt.Errorf("%w: key is required", domain.ErrInvalidRequest))
		return
	}

	days := defaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, "gold", fmt.Errorf("%w: days must be an integer", domain.ErrInvalidRequest))
			return
		}
		days = v
	}

	points, err := h.gold.History(c.Request.Context(), key, days)
	if err != nil {
		h.writeError(c, "gold", err)
		return
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, historyResponse{Key: key, Days: days, Points: points})
}

func forceRefresh(c *gin.Context) bool {
	switch c.Query("refresh") {
	case "true", "1":
		return true
	default:
		return false
	}
}

func writeResult[T any](c *gin.Context, source string, result *domain.Result[T]) {
	xCache := "miss"
	if result.FromCache {
		xCache = string(result.Freshness)
	}
	cacheControl := cacheControlFresh
	if result.Stale {
		cacheControl = cacheControlStale
	}

	c.Header("X-Cache", xCache)
	c.Header("Cache-Control", cacheControl)
	c.JSON(http.StatusOK, resultResponse[T]{
		Data:       result.Data,
		Source:     source,
		FetchedAt:  result.FetchedAt,
		FromCache:  result.FromCache,
		Stale:      result.Stale,
		Freshness:  result.Freshness,
		AgeSeconds: int64(result.Age / time.Second),
		LastError:  result.LastError,
	})
}

func (h *Handler) writeError(c *gin.Context, source string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrNoData):
		h.logger.Warn("no data available", slog.String("source", source), slog.Any("error", err))
		c.Header("Cache-Control", cacheControlNoStore)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "no_data",
			"message": err.Error(),
			"source":  source,
		})
	default:
		h.logger.Error("request failed", slog.String("source", source), slog.Any("error", err))
		c.Header("Cache-Control", cacheControlNoStore)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "internal server error",
		})
	}
}
