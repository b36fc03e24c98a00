package domain

import (
	"math"
	"time"
)

// GoldSourceLebanor identifies the Lebanor price feed
const GoldSourceLebanor = "lebanor"

// GoldItem is one normalized "We Buy" price line
type GoldItem struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	PriceLBP *int64   `json:"priceLbp"`
	PriceUSD *float64 `json:"priceUsd"`
	RawName  *string  `json:"rawName"`
	RawPrice *string  `json:"rawPrice"`
}

// GoldSnapshot is the full set of expected gold items at a point in time
type GoldSnapshot struct {
	Source    string     `json:"source"`
	FetchedAt time.Time  `json:"fetchedAt"`
	USDRate   *float64   `json:"usdRate,omitempty"`
	Items     []GoldItem `json:"items"`
}

// WithUSDRate returns a copy with USD prices derived from rate.
// A non-positive rate clears them.
func (s GoldSnapshot) WithUSDRate(rate float64) GoldSnapshot {
	out := s
	out.Items = make([]GoldItem, len(s.Items))
	out.USDRate = nil
	if rate > 0 {
		r := rate
		out.USDRate = &r
	}

	for i, item := range s.Items {
		item.PriceUSD = nil
		if rate > 0 && item.PriceLBP != nil {
			usd := RoundTo(float64(*item.PriceLBP)/rate, 2)
			item.PriceUSD = &usd
		}
		out.Items[i] = item
	}
	return out
}

// PricedCount returns the number of items that carry an LBP price
func (s GoldSnapshot) PricedCount() int {
	n := 0
	for _, item := range s.Items {
		if item.PriceLBP != nil {
			n++
		}
	}
	return n
}

// GoldPricePoint is a single recorded price for a gold key
type GoldPricePoint struct {
	Key        string    `json:"key"`
	RecordedAt time.Time `json:"timestamp"`
	PriceLBP   int64     `json:"priceLbp"`
	PriceUSD   *float64  `json:"priceUsd"`
}

// RoundTo rounds v half away from zero to the given number of decimals
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
