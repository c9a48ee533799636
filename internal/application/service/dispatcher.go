package service

import (
	"context"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// Dispatcher realizes a profitable opportunity as two offsetting market
// orders, or logs the intent when simulating. A nil executor (no credentials)
// keeps the dispatcher read-only regardless of the simulate flag.
type Dispatcher struct {
	executor port.OrderExecutor
	quantity float64
}

func NewDispatcher(executor port.OrderExecutor, quantity float64) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		quantity: quantity,
	}
}

// Dispatch submits the futures leg first, then the spot leg. A failed leg is
// logged and reported as false; an already-filled first leg is not rolled
// back. Simulate mode performs no venue call and always succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, opp model.Opportunity, simulate bool) bool {
	futuresSide, spotSide := legs(opp.Strategy)

	if simulate || d.executor == nil {
		log.Info().
			Str("symbol", opp.Symbol).
			Str("strategy", string(opp.Strategy)).
			Str("futures_side", string(futuresSide)).
			Str("spot_side", string(spotSide)).
			Float64("quantity", d.quantity).
			Bool("simulate", simulate).
			Msg("dispatch skipped: no live orders")
		return true
	}

	res, err := d.executor.SubmitMarketOrder(ctx, port.MarketFutures, opp.Symbol, futuresSide, d.quantity)
	if err != nil {
		log.Error().Str("symbol", opp.Symbol).Str("side", string(futuresSide)).Err(err).Msg("futures leg failed")
		return false
	}
	log.Info().Str("symbol", opp.Symbol).Str("side", string(futuresSide)).Str("order_id", res.OrderID).Msg("futures leg filled")

	res, err = d.executor.SubmitMarketOrder(ctx, port.MarketSpot, opp.Symbol, spotSide, d.quantity)
	if err != nil {
		// Residual risk: the futures leg is already in; no rollback is attempted.
		log.Error().Str("symbol", opp.Symbol).Str("side", string(spotSide)).Err(err).Msg("spot leg failed")
		return false
	}
	log.Info().Str("symbol", opp.Symbol).Str("side", string(spotSide)).Str("order_id", res.OrderID).Msg("spot leg filled")

	return true
}

func legs(strategy model.Strategy) (futures, spot port.Side) {
	if strategy == model.StrategyBuyFuturesSellSpot {
		return port.SideBuy, port.SideSell
	}
	return port.SideSell, port.SideBuy
}
