package port

import "context"

// Market selects which leg of the venue an order goes to.
type Market string

const (
	MarketSpot    Market = "SPOT"
	MarketFutures Market = "FUTURES"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderResult is the venue acknowledgement for a submitted order.
type OrderResult struct {
	OrderID string
	Status  string
}

// OrderExecutor submits market orders to the trading venue.
type OrderExecutor interface {
	SubmitMarketOrder(ctx context.Context, market Market, symbol string, side Side, quantity float64) (*OrderResult, error)
}
