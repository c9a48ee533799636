package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"basisd/internal/application/port"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TickerFeed serves the MarketData port from cached websocket miniTicker
// streams, one connection per market. Funding rates stay on REST; the
// miniTicker stream does not carry them.
type TickerFeed struct {
	spotWsURL    string
	futuresWsURL string
	quote        string
	rest         *MarketClient

	mu      sync.RWMutex
	spot    map[string]float64
	futures map[string]float64
}

func NewTickerFeed(spotWsURL, futuresWsURL, quote string, rest *MarketClient) *TickerFeed {
	return &TickerFeed{
		spotWsURL:    strings.TrimSpace(spotWsURL),
		futuresWsURL: strings.TrimSpace(futuresWsURL),
		quote:        quote,
		rest:         rest,
		spot:         make(map[string]float64),
		futures:      make(map[string]float64),
	}
}

type combinedMsg struct {
	Stream string        `json:"stream"`
	Data   miniTickerMsg `json:"data"`
}

type miniTickerMsg struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// Start opens both stream connections and keeps them alive until ctx ends.
func (f *TickerFeed) Start(ctx context.Context, symbols []string) error {
	spotURL, err := buildCombinedURL(f.spotWsURL, symbols, f.quote)
	if err != nil {
		return fmt.Errorf("spot stream: %w", err)
	}
	futuresURL, err := buildCombinedURL(f.futuresWsURL, symbols, f.quote)
	if err != nil {
		return fmt.Errorf("futures stream: %w", err)
	}

	go f.run(ctx, "SPOT", spotURL, f.spot)
	go f.run(ctx, "FUTURES", futuresURL, f.futures)
	return nil
}

func buildCombinedURL(base string, symbols []string, quote string) (string, error) {
	if base == "" {
		return "", errors.New("ws base empty")
	}
	if len(symbols) == 0 {
		return "", errors.New("symbols empty")
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		pair := strings.ToLower(pairSymbol(s, quote))
		if pair == "" {
			continue
		}
		streams = append(streams, fmt.Sprintf("%s@miniTicker", pair))
	}
	if len(streams) == 0 {
		return "", errors.New("no valid symbols")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

func (f *TickerFeed) run(ctx context.Context, market, wsURL string, cache map[string]float64) {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			log.Warn().Str("market", market).Err(err).Dur("backoff", backoff).Msg("ws dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		log.Info().Str("market", market).Msg("ws connected")
		backoff = 500 * time.Millisecond

		f.readLoop(ctx, market, conn, cache)
		_ = conn.Close()
	}
}

func (f *TickerFeed) readLoop(ctx context.Context, market string, conn *websocket.Conn, cache map[string]float64) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Str("market", market).Err(err).Msg("ws read failed, reconnecting")
			}
			return
		}

		var msg combinedMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Close, 64)
		if err != nil || price <= 0 {
			continue
		}

		coin := coinFromPair(msg.Data.Symbol, f.quote)
		if coin == "" {
			continue
		}

		f.mu.Lock()
		cache[coin] = price
		f.mu.Unlock()
	}
}

func coinFromPair(pair, quote string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	q := strings.ToUpper(strings.TrimSpace(quote))
	if q == "" || !strings.HasSuffix(p, q) || len(p) == len(q) {
		return ""
	}
	return strings.TrimSuffix(p, q)
}

// SpotPrice returns the cached spot quote, or an error until the stream has
// delivered one for this symbol.
func (f *TickerFeed) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	return f.cached(f.spot, symbol, "spot")
}

// FuturesPrice returns the cached futures quote.
func (f *TickerFeed) FuturesPrice(ctx context.Context, symbol string) (float64, error) {
	return f.cached(f.futures, symbol, "futures")
}

// FundingRate goes to REST; see type comment.
func (f *TickerFeed) FundingRate(ctx context.Context, symbol string) (float64, error) {
	return f.rest.FundingRate(ctx, symbol)
}

func (f *TickerFeed) cached(cache map[string]float64, symbol, market string) (float64, error) {
	f.mu.RLock()
	price, ok := cache[strings.ToUpper(strings.TrimSpace(symbol))]
	f.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no cached %s quote for %s", market, symbol)
	}
	return price, nil
}

var _ port.MarketData = (*TickerFeed)(nil)
