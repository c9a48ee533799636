package model

import (
	"math"
	"time"
)

// Strategy is the directional hedge for a profitable premium.
type Strategy string

const (
	// StrategySellFuturesBuySpot shorts the expensive futures leg and buys spot.
	StrategySellFuturesBuySpot Strategy = "sell futures, buy spot"
	// StrategyBuyFuturesSellSpot buys the discounted futures leg and sells spot.
	StrategyBuyFuturesSellSpot Strategy = "buy futures, sell spot"
)

// Opportunity is one spot/futures observation for a symbol.
// Immutable once built; the store owns the history of these.
type Opportunity struct {
	Timestamp      time.Time `json:"timestamp"`
	Symbol         string    `json:"symbol"`
	SpotPrice      float64   `json:"spot_price"`
	FuturesPrice   float64   `json:"futures_price"`
	PremiumPercent float64   `json:"premium_percent"`
	FundingRate    *float64  `json:"funding_rate"`
	Profitable     bool      `json:"profitable"`
	Strategy       Strategy  `json:"strategy,omitempty"`
}

// CalculatePremium returns the futures premium over spot as a signed
// percentage, rounded to 4 decimal places. ok is false when spot is zero or
// negative (no premium is defined without a valid spot quote).
func CalculatePremium(spot, futures float64) (premium float64, ok bool) {
	if spot <= 0 {
		return 0, false
	}
	p := ((futures - spot) / spot) * 100
	return math.Round(p*10000) / 10000, true
}

// NewOpportunity classifies one observation against the profit threshold.
// Profitability requires |premium| strictly above the threshold; the strategy
// is set from the premium sign only when profitable.
func NewOpportunity(ts time.Time, symbol string, spot, futures, premium float64, funding *float64, threshold float64) Opportunity {
	o := Opportunity{
		Timestamp:      ts,
		Symbol:         symbol,
		SpotPrice:      spot,
		FuturesPrice:   futures,
		PremiumPercent: premium,
		FundingRate:    funding,
		Profitable:     math.Abs(premium) > threshold,
	}
	if o.Profitable {
		if premium > 0 {
			o.Strategy = StrategySellFuturesBuySpot
		} else {
			o.Strategy = StrategyBuyFuturesSellSpot
		}
	}
	return o
}
