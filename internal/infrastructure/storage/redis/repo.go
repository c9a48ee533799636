package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"
)

// Repo archives observations into redis: a latest-price hash plus an
// opportunity stream with a pubsub mirror for live consumers.
type Repo struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	keyLatest  string // prefix + ":latest"
	oppStream  string // prefix + ":opportunities"
	oppChannel string // prefix + ":opportunities:pub"
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Repo {
	return &Repo{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		keyLatest:  prefix + ":latest",
		oppStream:  prefix + ":opportunities",
		oppChannel: prefix + ":opportunities:pub",
	}
}

type latestPrice struct {
	Market string  `json:"market"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Ts     int64   `json:"ts"`
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, market, symbol string, price float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	lp := latestPrice{Market: market, Symbol: symbol, Price: price, Ts: ts}
	b, _ := json.Marshal(lp)

	// Hash: field = "SPOT:BTC" -> json
	field := fmt.Sprintf("%s:%s", market, symbol)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, field, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) InsertOpportunity(ctx context.Context, o *model.Opportunity) error {
	funding := 0.0
	if o.FundingRate != nil {
		funding = *o.FundingRate
	}

	// 1) Stream: XADD <stream> * ...
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.oppStream,
		Values: map[string]any{
			"ts_ms":      o.Timestamp.UnixMilli(),
			"symbol":     o.Symbol,
			"spot":       o.SpotPrice,
			"futures":    o.FuturesPrice,
			"premium":    o.PremiumPercent,
			"funding":    funding,
			"profitable": o.Profitable,
			"strategy":   string(o.Strategy),
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, _ := json.Marshal(o)
	return r.rdb.Publish(ctx, r.oppChannel, string(b)).Err()
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	// snapshots live in the flat file and sql backends; redis keeps the live view
	return nil
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.Repository = (*Repo)(nil)
