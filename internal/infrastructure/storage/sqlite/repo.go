package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"
)

// Repo archives observations into a local sqlite file.
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  market TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  UNIQUE(market, symbol)
);
CREATE INDEX IF NOT EXISTS idx_latest_prices_symbol ON latest_prices(symbol);

CREATE TABLE IF NOT EXISTS opportunities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  symbol TEXT NOT NULL,
  spot_price REAL NOT NULL,
  futures_price REAL NOT NULL,
  premium_percent REAL NOT NULL,
  funding_rate REAL,
  profitable INTEGER NOT NULL,
  strategy TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opportunities_symbol ON opportunities(symbol);
CREATE INDEX IF NOT EXISTS idx_opportunities_created ON opportunities(created_at);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, market, symbol string, price float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(market, symbol, price, ts_ms)
		VALUES(?, ?, ?, ?)
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
		INSERT INTO opportunities(ts, symbol, spot_price, futures_price, premium_percent, funding_rate, profitable, strategy, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), o.Symbol, o.SpotPrice, o.FuturesPrice,
		o.PremiumPercent, funding, o.Profitable, string(o.Strategy), o.Timestamp.UnixMilli())
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload) VALUES(?, ?)`, ts, payload)
	return err
}

// CountOpportunities reports archived rows, optionally for one symbol.
func (r *Repo) CountOpportunities(ctx context.Context, symbol string) (int, error) {
	var n int
	var err error
	if symbol == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE symbol=?`, symbol).Scan(&n)
	}
	return n, err
}

var _ port.Repository = (*Repo)(nil)
