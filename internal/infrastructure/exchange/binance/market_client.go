package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"basisd/internal/application/port"
)

// pairSymbol joins a coin and quote currency into the venue's pair format,
// e.g. ("BTC", "USDT") -> "BTCUSDT".
func pairSymbol(symbol, quote string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + strings.ToUpper(strings.TrimSpace(quote))
}

// MarketClient reads public spot and futures quotes over REST.
type MarketClient struct {
	spotURL    string
	futuresURL string
	quote      string
	client     *http.Client
}

func NewMarketClient(spotURL, futuresURL, quote string) *MarketClient {
	if spotURL == "" {
		spotURL = "https://api.binance.com"
	}
	if futuresURL == "" {
		futuresURL = "https://fapi.binance.com"
	}
	return &MarketClient{
		spotURL:    strings.TrimRight(spotURL, "/"),
		futuresURL: strings.TrimRight(futuresURL, "/"),
		quote:      quote,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type tickerPriceResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type premiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
}

// SpotPrice fetches the last traded spot price for symbol.
func (c *MarketClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.spotURL, pairSymbol(symbol, c.quote))

	var result tickerPriceResp
	if err := c.getJSON(ctx, url, &result); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result.Price, 64)
}

// FuturesPrice fetches the perpetual mark price for symbol.
func (c *MarketClient) FuturesPrice(ctx context.Context, symbol string) (float64, error) {
	result, err := c.premiumIndex(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result.MarkPrice, 64)
}

// FundingRate fetches the last funding rate for symbol's perpetual.
func (c *MarketClient) FundingRate(ctx context.Context, symbol string) (float64, error) {
	result, err := c.premiumIndex(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result.LastFundingRate, 64)
}

func (c *MarketClient) premiumIndex(ctx context.Context, symbol string) (*premiumIndexResp, error) {
	url := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", c.futuresURL, pairSymbol(symbol, c.quote))

	var result premiumIndexResp
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *MarketClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("binance api error: %d %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

var _ port.MarketData = (*MarketClient)(nil)
