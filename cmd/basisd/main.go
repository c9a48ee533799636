package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basisd/internal/application/port"
	"basisd/internal/application/service"
	"basisd/internal/application/store"
	"basisd/internal/application/usecase/monitor"
	"basisd/internal/infrastructure/config"
	"basisd/internal/infrastructure/exchange/binance"
	"basisd/internal/infrastructure/logger"
	"basisd/internal/infrastructure/storage/composite"
	"basisd/internal/infrastructure/storage/postgres"
	redisrepo "basisd/internal/infrastructure/storage/redis"
	"basisd/internal/infrastructure/storage/sqlite"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	// credentials may live in a local .env
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bn := cfg.Exchange.Binance
	restClient := binance.NewMarketClient(bn.SpotRestURL, bn.FuturesRestURL, cfg.Symbols.Quote)

	var market port.MarketData = restClient
	if bn.MarketData == "websocket" {
		feed := binance.NewTickerFeed(bn.SpotWsURL, bn.FuturesWsURL, cfg.Symbols.Quote, restClient)
		if err := feed.Start(ctx, cfg.Symbols.List); err != nil {
			log.Fatal().Err(err).Msg("start ticker feed failed")
		}
		market = feed
	}

	// live orders need credentials; without them dispatch stays read-only
	var executor port.OrderExecutor
	apiKey, apiSecret := os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")
	if apiKey != "" && apiSecret != "" {
		executor = binance.NewOrderClient(binance.NewCredentials(apiKey, apiSecret), bn.SpotRestURL, bn.FuturesRestURL, cfg.Symbols.Quote)
	} else {
		log.Warn().Msg("no venue credentials: dispatch is read-only")
	}

	repo := buildArchive(cfg)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("archive close failed")
		}
	}()

	st := store.New()
	detector := service.NewDetector(market, st, repo, cfg.Arbitrage.MinProfitPercent)
	dispatcher := service.NewDispatcher(executor, cfg.Arbitrage.TradeAmount)

	svc := monitor.NewService(monitor.ServiceDeps{
		Detector:     detector,
		Dispatcher:   dispatcher,
		Store:        st,
		Repo:         repo,
		Symbols:      cfg.Symbols.List,
		Interval:     time.Duration(cfg.App.IntervalSec) * time.Second,
		Duration:     time.Duration(cfg.App.DurationSec) * time.Second,
		Simulate:     cfg.App.Simulate,
		SnapshotPath: cfg.Store.Path,
	})

	log.Info().
		Str("config", *configPath).
		Int("symbols", len(cfg.Symbols.List)).
		Int("interval_sec", cfg.App.IntervalSec).
		Int("duration_sec", cfg.App.DurationSec).
		Float64("min_profit_percent", cfg.Arbitrage.MinProfitPercent).
		Bool("simulate", cfg.App.Simulate).
		Msg("basisd started")

	if err := svc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("monitor service exited")
	}
}

func buildArchive(cfg *config.Config) port.Repository {
	var repos []port.Repository

	for _, backend := range cfg.Archive.Backends {
		switch backend {
		case "sqlite":
			r, err := sqlite.New(cfg.Archive.SqlitePath)
			if err != nil {
				log.Fatal().Err(err).Str("path", cfg.Archive.SqlitePath).Msg("open sqlite archive failed")
			}
			repos = append(repos, r)
		case "postgres":
			r, err := postgres.New(cfg.Archive.PostgresDSN)
			if err != nil {
				log.Fatal().Err(err).Msg("open postgres archive failed")
			}
			repos = append(repos, r)
		case "redis":
			rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Archive.RedisAddr})
			ttl := time.Duration(cfg.Archive.RedisTTLSec) * time.Second
			repos = append(repos, redisrepo.New(rdb, cfg.Archive.RedisPrefix, ttl))
		}
	}

	switch len(repos) {
	case 0:
		return monitor.NewNoopRepo()
	case 1:
		return repos[0]
	default:
		return composite.New(repos...)
	}
}
