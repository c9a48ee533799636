package service

import (
	"context"
	"time"

	"basisd/internal/application/port"
	"basisd/internal/application/store"
	"basisd/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// Detector turns per-symbol quotes into classified opportunities.
// Every created opportunity lands in the store; only profitable ones are
// returned for dispatch.
type Detector struct {
	market    port.MarketData
	store     *store.Store
	repo      port.Repository
	threshold float64
}

func NewDetector(market port.MarketData, st *store.Store, repo port.Repository, threshold float64) *Detector {
	return &Detector{
		market:    market,
		store:     st,
		repo:      repo,
		threshold: threshold,
	}
}

// Detect runs one detection pass over symbols. A failed quote fetch only
// drops that symbol for this cycle; a symbol missing its spot or futures leg
// produces no record at all.
func (d *Detector) Detect(ctx context.Context, symbols []string) []model.Opportunity {
	now := time.Now().UTC()

	created := make([]model.Opportunity, 0, len(symbols))
	profitable := make([]model.Opportunity, 0, len(symbols))

	for _, symbol := range symbols {
		spot, spotErr := d.market.SpotPrice(ctx, symbol)
		if spotErr != nil {
			log.Warn().Str("symbol", symbol).Err(spotErr).Msg("spot quote unavailable")
		}

		futures, futErr := d.market.FuturesPrice(ctx, symbol)
		if futErr != nil {
			log.Warn().Str("symbol", symbol).Err(futErr).Msg("futures quote unavailable")
		}

		var funding *float64
		if rate, err := d.market.FundingRate(ctx, symbol); err != nil {
			log.Debug().Str("symbol", symbol).Err(err).Msg("funding rate unavailable")
		} else {
			funding = &rate
		}

		// Partial data must not produce a misleading signal.
		if spotErr != nil || futErr != nil {
			log.Debug().Str("symbol", symbol).Msg("skipping symbol: incomplete quotes")
			continue
		}

		premium, ok := model.CalculatePremium(spot, futures)
		if !ok {
			log.Warn().Str("symbol", symbol).Float64("spot", spot).Msg("skipping symbol: premium undefined")
			continue
		}

		opp := model.NewOpportunity(now, symbol, spot, futures, premium, funding, d.threshold)
		created = append(created, opp)

		d.archive(ctx, &opp)

		evt := log.Debug()
		if opp.Profitable {
			evt = log.Info()
			profitable = append(profitable, opp)
		}
		evt.Str("symbol", symbol).
			Float64("spot", spot).
			Float64("futures", futures).
			Float64("premium", premium).
			Bool("profitable", opp.Profitable).
			Str("strategy", string(opp.Strategy)).
			Msg("opportunity")
	}

	d.store.Append(created)
	return profitable
}

// archive mirrors the observation into the audit backend. Archive failures
// never gate detection.
func (d *Detector) archive(ctx context.Context, o *model.Opportunity) {
	ts := o.Timestamp.UnixMilli()
	if err := d.repo.UpsertLatestPrice(ctx, string(port.MarketSpot), o.Symbol, o.SpotPrice, ts); err != nil {
		log.Warn().Str("symbol", o.Symbol).Err(err).Msg("archive spot price failed")
	}
	if err := d.repo.UpsertLatestPrice(ctx, string(port.MarketFutures), o.Symbol, o.FuturesPrice, ts); err != nil {
		log.Warn().Str("symbol", o.Symbol).Err(err).Msg("archive futures price failed")
	}
	if err := d.repo.InsertOpportunity(ctx, o); err != nil {
		log.Warn().Str("symbol", o.Symbol).Err(err).Msg("archive opportunity failed")
	}
}
