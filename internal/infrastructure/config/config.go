package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		IntervalSec int    `toml:"interval_sec"`
		DurationSec int    `toml:"duration_sec"` // 0 = run until interrupted
		Simulate    bool   `toml:"simulate"`
		LogLevel    string `toml:"log_level"`
	} `toml:"app"`

	Symbols struct {
		List  []string `toml:"list"`
		Quote string   `toml:"quote"`
	} `toml:"symbols"`

	Arbitrage struct {
		MinProfitPercent float64 `toml:"min_profit_percent"`
		TradeAmount      float64 `toml:"trade_amount"`
	} `toml:"arbitrage"`

	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`

	Exchange struct {
		Binance struct {
			SpotRestURL    string `toml:"spot_rest_url"`
			FuturesRestURL string `toml:"futures_rest_url"`
			SpotWsURL      string `toml:"spot_ws_url"`
			FuturesWsURL   string `toml:"futures_ws_url"`
			MarketData     string `toml:"market_data"` // "rest" or "websocket"
		} `toml:"binance"`
	} `toml:"exchange"`

	Archive struct {
		Backends    []string `toml:"backends"` // any of: sqlite, postgres, redis
		SqlitePath  string   `toml:"sqlite_path"`
		PostgresDSN string   `toml:"postgres_dsn"`
		RedisAddr   string   `toml:"redis_addr"`
		RedisPrefix string   `toml:"redis_prefix"`
		RedisTTLSec int      `toml:"redis_ttl_sec"`
	} `toml:"archive"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.IntervalSec <= 0 {
		cfg.App.IntervalSec = 10
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Symbols.Quote == "" {
		cfg.Symbols.Quote = "USDT"
	}
	if cfg.Arbitrage.MinProfitPercent <= 0 {
		cfg.Arbitrage.MinProfitPercent = 0.5
	}
	if cfg.Arbitrage.TradeAmount <= 0 {
		cfg.Arbitrage.TradeAmount = 0.01
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/opportunities.json"
	}
	if cfg.Exchange.Binance.SpotRestURL == "" {
		cfg.Exchange.Binance.SpotRestURL = "https://api.binance.com"
	}
	if cfg.Exchange.Binance.FuturesRestURL == "" {
		cfg.Exchange.Binance.FuturesRestURL = "https://fapi.binance.com"
	}
	if cfg.Exchange.Binance.SpotWsURL == "" {
		cfg.Exchange.Binance.SpotWsURL = "wss://stream.binance.com:9443"
	}
	if cfg.Exchange.Binance.FuturesWsURL == "" {
		cfg.Exchange.Binance.FuturesWsURL = "wss://fstream.binance.com"
	}
	if cfg.Exchange.Binance.MarketData == "" {
		cfg.Exchange.Binance.MarketData = "rest"
	}
	if cfg.Archive.SqlitePath == "" {
		cfg.Archive.SqlitePath = "data/basisd.db"
	}
	if cfg.Archive.RedisPrefix == "" {
		cfg.Archive.RedisPrefix = "basisd"
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	if len(cfg.Symbols.List) == 0 {
		return errors.New("symbols.list is empty")
	}

	if md := cfg.Exchange.Binance.MarketData; md != "rest" && md != "websocket" {
		return fmt.Errorf("exchange.binance.market_data must be rest or websocket, got %q", md)
	}

	for _, b := range cfg.Archive.Backends {
		switch b {
		case "sqlite", "postgres", "redis":
		default:
			return fmt.Errorf("unknown archive backend %q", b)
		}
	}
	if contains(cfg.Archive.Backends, "postgres") && strings.TrimSpace(cfg.Archive.PostgresDSN) == "" {
		return errors.New("archive.postgres_dsn empty but postgres backend enabled")
	}
	if contains(cfg.Archive.Backends, "redis") && strings.TrimSpace(cfg.Archive.RedisAddr) == "" {
		return errors.New("archive.redis_addr empty but redis backend enabled")
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
