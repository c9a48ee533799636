package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"basisd/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Credentials holds the API key pair and signs request payloads.
type Credentials struct {
	apiKey    string
	apiSecret string
}

func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign computes the HMAC-SHA256 signature over the query string.
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Credentials) APIKey() string {
	return c.apiKey
}

// OrderClient submits signed market orders to the spot and futures endpoints.
type OrderClient struct {
	credentials *Credentials
	spotURL     string
	futuresURL  string
	quote       string
	httpClient  *http.Client
}

func NewOrderClient(credentials *Credentials, spotURL, futuresURL, quote string) *OrderClient {
	return &OrderClient{
		credentials: credentials,
		spotURL:     strings.TrimRight(spotURL, "/"),
		futuresURL:  strings.TrimRight(futuresURL, "/"),
		quote:       quote,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// SubmitMarketOrder places one market order on the requested leg.
func (c *OrderClient) SubmitMarketOrder(ctx context.Context, market port.Market, symbol string, side port.Side, quantity float64) (*port.OrderResult, error) {
	base, path := c.spotURL, "/api/v3/order"
	if market == port.MarketFutures {
		base, path = c.futuresURL, "/fapi/v1/order"
	}

	params := url.Values{}
	params.Set("symbol", pairSymbol(symbol, c.quote))
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", fmt.Sprintf("%.8g", quantity))

	body, err := c.signedRequest(ctx, http.MethodPost, base, path, params)
	if err != nil {
		return nil, fmt.Errorf("place order failed: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response failed: %w", err)
	}
	if resp.OrderID == 0 {
		return nil, fmt.Errorf("order failed: %s", string(body))
	}

	log.Info().
		Str("market", string(market)).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", quantity).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return &port.OrderResult{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:  resp.Status,
	}, nil
}

// signedRequest is the shared helper for signed REST calls.
func (c *OrderClient) signedRequest(ctx context.Context, method, base, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if params.Get("recvWindow") == "" {
		params.Set("recvWindow", "5000")
	}

	query := params.Encode()
	signature := c.credentials.Sign(query)
	endpoint := fmt.Sprintf("%s%s?%s&signature=%s", base, path, query, signature)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.credentials.APIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order http %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

var _ port.OrderExecutor = (*OrderClient)(nil)
