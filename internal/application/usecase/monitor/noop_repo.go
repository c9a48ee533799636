package monitor

import (
	"context"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"
)

type noopRepo struct{}

// NewNoopRepo returns an archive that drops everything, for runs with no
// archive backend configured.
func NewNoopRepo() port.Repository { return &noopRepo{} }

func (n *noopRepo) UpsertLatestPrice(ctx context.Context, market, symbol string, price float64, ts int64) error {
	return nil
}

func (n *noopRepo) InsertOpportunity(ctx context.Context, o *model.Opportunity) error {
	return nil
}

func (n *noopRepo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	return nil
}

func (n *noopRepo) Close() error { return nil }
