package port

import (
	"context"

	"basisd/internal/domain/model"
)

// Repository is the optional archive behind the detector and scheduler.
// Backends are audit sinks only: the durable snapshot contract lives in the
// opportunity store, not here.
type Repository interface {
	// Latest quote per (market, symbol)
	UpsertLatestPrice(ctx context.Context, market, symbol string, price float64, ts int64) error

	// Opportunity audit trail
	InsertOpportunity(ctx context.Context, o *model.Opportunity) error

	// Full-history snapshot payloads written on the snapshot cadence
	InsertSnapshot(ctx context.Context, ts int64, payload string) error

	// Connection management
	Close() error
}
