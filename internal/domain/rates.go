package domain

// ExchangeRate is the USD/LBP parallel-market quote in whole LBP
type ExchangeRate struct {
	Rate int64 `json:"rate"` // buy when known, otherwise sell
	Buy  int64 `json:"buy"`
	Sell int64 `json:"sell"`
}

// FuelPriceSet holds the daily regulated fuel prices. Any field may be missing.
type FuelPriceSet struct {
	UNL95LBP   *int64  `json:"unl95_lbp"`
	UNL98LBP   *int64  `json:"unl98_lbp"`
	LPG10KgLBP *int64  `json:"lpg10kg_lbp"`
	DieselNote *string `json:"diesel_note"`
}

// IsEmpty reports whether no field was extracted
func (f FuelPriceSet) IsEmpty() bool {
	return f.UNL95LBP == nil && f.UNL98LBP == nil && f.LPG10KgLBP == nil && f.DieselNote == nil
}

// LottoDraw is a complete Loto draw result
type LottoDraw struct {
	DrawNumber int    `json:"drawNumber" validate:"gt=0"`
	DrawDate   string `json:"drawDate" validate:"required,datetime=02/01/2006"` // DD/MM/YYYY
	Numbers    []int  `json:"numbers" validate:"len=7,dive,min=1,max=49"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

// EURRate is the EUR/LBP rate derived from the USD/LBP market rate and the EUR/USD cross rate
type EURRate struct {
	Rate      int64   `json:"rate"` // round(usdRate / eurPerUsd)
	USDRate   int64   `json:"usdRate"`
	EURPerUSD float64 `json:"eurPerUsd"`
}
