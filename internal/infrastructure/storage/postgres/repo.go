package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"
)

// Repo archives observations into postgres.
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_prices (
  market TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  PRIMARY KEY(market, symbol)
);

CREATE TABLE IF NOT EXISTS opportunities (
  id BIGSERIAL PRIMARY KEY,
  ts TIMESTAMPTZ NOT NULL,
  symbol TEXT NOT NULL,
  spot_price DOUBLE PRECISION NOT NULL,
  futures_price DOUBLE PRECISION NOT NULL,
  premium_percent DOUBLE PRECISION NOT NULL,
  funding_rate DOUBLE PRECISION,
  profitable BOOLEAN NOT NULL,
  strategy TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opportunities_symbol ON opportunities(symbol);
CREATE INDEX IF NOT EXISTS idx_opportunities_ts ON opportunities(ts);

CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, market, symbol string, price float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(market, symbol, price, ts_ms)
		VALUES($1, $2, $3, $4)
		ON CONFLICT(market, symbol) DO UPDATE SET
		price=excluded.price, ts_ms=excluded.ts_ms
	`, market, symbol, price, ts)
	return err
}

func (r *Repo) InsertOpportunity(ctx context.Context, o *model.Opportunity) error {
	var funding sql.NullFloat64
	if o.FundingRate != nil {
		funding = sql.NullFloat64{Float64: *o.FundingRate, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opportunities(ts, symbol, spot_price, futures_price, premium_percent, funding_rate, profitable, strategy)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.Timestamp, o.Symbol, o.SpotPrice, o.FuturesPrice, o.PremiumPercent, funding, o.Profitable, string(o.Strategy))
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload) VALUES($1, $2)`, ts, payload)
	return err
}

var _ port.Repository = (*Repo)(nil)
