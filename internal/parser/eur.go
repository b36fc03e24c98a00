package parser

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lebanonrates/backend/internal/domain"
)

// crossRatePayload is the USD-based rate table served by exchangerate-api
type crossRatePayload struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// ParseEURPerUSD reads the EUR entry of a USD-based rate table
func ParseEURPerUSD(body []byte) (float64, error) {
	var payload crossRatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	if payload.Base != "" && payload.Base != "USD" {
		return 0, fmt.Errorf("%w: rate table base is %s, want USD", domain.ErrParseFailed, payload.Base)
	}

	eur, ok := payload.Rates["EUR"]
	if !ok || eur <= 0 || math.IsInf(eur, 0) || math.IsNaN(eur) {
		return 0, fmt.Errorf("%w: no usable EUR rate", domain.ErrParseFailed)
	}
	return eur, nil
}

// DeriveEURRate converts a USD/LBP rate into EUR/LBP. Both inputs must be positive.
func DeriveEURRate(usdRate int64, eurPerUSD float64) (domain.EURRate, bool) {
	if usdRate <= 0 || eurPerUSD <= 0 {
		return domain.EURRate{}, false
	}
	return domain.EURRate{
		Rate:      int64(math.Round(float64(usdRate) / eurPerUSD)),
		USDRate:   usdRate,
		EURPerUSD: eurPerUSD,
	}, true
}
