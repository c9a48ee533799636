package port

import "context"

// MarketData supplies the three per-symbol signals. Each call may fail
// independently; callers treat an error as "signal unavailable this cycle".
type MarketData interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
	FuturesPrice(ctx context.Context, symbol string) (float64, error)
	FundingRate(ctx context.Context, symbol string) (float64, error)
}
