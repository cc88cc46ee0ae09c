package delta

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"straddle-bot-go/internal/config"
	"straddle-bot-go/internal/models"
)

const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
	OrderSideBuy    = "buy"
	OrderSideSell   = "sell"

	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// Gateway is the exchange surface the engine consumes. The concrete client
// talks to Delta Exchange; tests substitute a mock.
type Gateway interface {
	PlaceOrder(productID int, side string, quantity, price float64, orderType string) (*Order, error)
	CancelOrder(orderID string) error
	GetOrderStatus(orderID string) (*Order, error)
	GetProductByStrike(strike float64, isCall bool, expiry string) (*Product, error)
	GetMarketPrice(productID int) (float64, error)
	GetWalletBalance() (*models.WalletBalance, error)
	GetPositions() ([]Position, error)
}

// Order is an exchange-side order. The engine keeps it only long enough to
// correlate it to a trade.
type Order struct {
	ID           string `json:"id"`
	ProductID    int    `json:"product_id"`
	LimitPrice   string `json:"limit_price"`
	Size         string `json:"size"`
	FilledSize   string `json:"filled_quantity"`
	OrderType    string `json:"order_type"`
	Side         string `json:"side"`
	Status       string `json:"status"`
	AveragePrice string `json:"average_price"`
}

// EntryPrice returns the fill price of the order, falling back to the limit
// price when the exchange does not report an average.
func (o *Order) EntryPrice() float64 {
	if p, err := strconv.ParseFloat(o.AveragePrice, 64); err == nil && p > 0 {
		return p
	}
	p, _ := strconv.ParseFloat(o.LimitPrice, 64)
	return p
}

// Product is a tradeable options contract.
type Product struct {
	ID           int     `json:"id"`
	Symbol       string  `json:"symbol"`
	Strike       float64 `json:"strike"`
	ContractType string  `json:"contract_type"`
	Expiry       string  `json:"expiry"`
}

// Position is an open exchange position as reported by /positions.
type Position struct {
	ProductID  int     `json:"product_id"`
	Size       float64 `json:"size"`
	EntryPrice string  `json:"entry_price"`
	MarkPrice  string  `json:"mark_price"`
}

// apiResponse is the common envelope Delta wraps every result in.
type apiResponse[T any] struct {
	Success bool `json:"success"`
	Result  T    `json:"result"`
}

// RestClient is a client for the Delta Exchange REST API. It implements
// the Gateway interface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	apiSecret string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ Gateway = (*RestClient)(nil)

// NewRestClient creates a new Delta Exchange REST API client.
func NewRestClient(cfg *config.Delta, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		apiSecret: cfg.ApiSecret,
		logger:    logger,
		limiter:   limiter,
	}
}

// sign creates the HMAC-SHA256 signature over timestamp+method+path+body.
func (c *RestClient) sign(method, path, timestamp, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(h.Sum(nil))
}

// newRequest prepares a signed request for the given method and path.
func (c *RestClient) newRequest(method, path, body string) *resty.Request {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return c.client.R().
		SetHeader("api-key", c.apiKey).
		SetHeader("timestamp", timestamp).
		SetHeader("signature", c.sign(method, path, timestamp, body)).
		SetHeader("Content-Type", "application/json")
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// placeOrderRequest is the body of POST /v2/orders.
type placeOrderRequest struct {
	ProductID     int    `json:"product_id"`
	Size          string `json:"size"`
	LimitPrice    string `json:"limit_price,omitempty"`
	OrderType     string `json:"order_type"`
	Side          string `json:"side"`
	ClientOrderID string `json:"client_order_id"`
}

// PlaceOrder submits an order. A zero price with OrderTypeMarket places a
// market order; anything else is a resting limit order.
func (c *RestClient) PlaceOrder(productID int, side string, quantity, price float64, orderType string) (*Order, error) {
	body := placeOrderRequest{
		ProductID:     productID,
		Size:          strconv.FormatFloat(quantity, 'f', -1, 64),
		OrderType:     orderType,
		Side:          side,
		ClientOrderID: uuid.New().String(), // dedupe-safe ID for retries
	}
	if orderType == OrderTypeLimit {
		body.LimitPrice = strconv.FormatFloat(price, 'f', -1, 64)
	}

	// The body participates in the signature, so it is serialized once and
	// sent verbatim.
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	req := c.newRequest("POST", "/v2/orders", string(raw)).
		SetBody(raw).
		SetResult(&apiResponse[Order]{})

	resp, err := c.doRequest(context.Background(), "POST", "/v2/orders", req)
	if err != nil {
		c.logger.Error("Failed to place order",
			zap.Error(err),
			zap.Int("product_id", productID),
			zap.String("side", side),
		)
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	result := resp.Result().(*apiResponse[Order])
	c.logger.Info("Successfully placed order", zap.Any("order", result.Result))
	return &result.Result, nil
}

// CancelOrder cancels a resting order.
func (c *RestClient) CancelOrder(orderID string) error {
	path := "/v2/orders/" + orderID
	req := c.newRequest("DELETE", path, "")

	if _, err := c.doRequest(context.Background(), "DELETE", path, req); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetOrderStatus fetches the current state of an order.
func (c *RestClient) GetOrderStatus(orderID string) (*Order, error) {
	path := "/v2/orders/" + orderID
	req := c.newRequest("GET", path, "").
		SetResult(&apiResponse[Order]{})

	resp, err := c.doRequest(context.Background(), "GET", path, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}

	result := resp.Result().(*apiResponse[Order])
	return &result.Result, nil
}

// GetProducts fetches all BTC options contracts.
func (c *RestClient) GetProducts() ([]Product, error) {
	req := c.newRequest("GET", "/v2/products", "").
		SetResult(&apiResponse[[]Product]{})

	resp, err := c.doRequest(context.Background(), "GET", "/v2/products", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	result := resp.Result().(*apiResponse[[]Product])
	products := make([]Product, 0, len(result.Result))
	for _, p := range result.Result {
		if p.ContractType == "options_contract" {
			products = append(products, p)
		}
	}
	return products, nil
}

// GetProductByStrike resolves an abstract strike to a tradeable contract.
// Returns an error when no contract matches.
func (c *RestClient) GetProductByStrike(strike float64, isCall bool, expiry string) (*Product, error) {
	products, err := c.GetProducts()
	if err != nil {
		return nil, err
	}

	optionType := "P"
	if isCall {
		optionType = "C"
	}
	for i := range products {
		p := &products[i]
		if p.Strike == strike && p.Expiry == expiry && len(p.Symbol) > 0 && p.Symbol[:1] == optionType {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no product found for strike %.0f expiry %s", strike, expiry)
}

// ticker is one entry from /v2/tickers.
type ticker struct {
	ProductID int    `json:"product_id"`
	MarkPrice string `json:"mark_price"`
}

// GetMarketPrice fetches the current mark price for a product.
func (c *RestClient) GetMarketPrice(productID int) (float64, error) {
	path := fmt.Sprintf("/v2/tickers?product_ids=%d", productID)
	req := c.newRequest("GET", path, "").
		SetResult(&apiResponse[[]ticker]{})

	resp, err := c.doRequest(context.Background(), "GET", path, req)
	if err != nil {
		return 0, fmt.Errorf("failed to get market price for product %d: %w", productID, err)
	}

	result := resp.Result().(*apiResponse[[]ticker])
	if len(result.Result) == 0 {
		return 0, fmt.Errorf("no ticker returned for product %d", productID)
	}
	price, err := strconv.ParseFloat(result.Result[0].MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse mark price %q: %w", result.Result[0].MarkPrice, err)
	}
	return price, nil
}

// walletEntry is one asset row from /v2/wallet/balances.
type walletEntry struct {
	AssetSymbol      string `json:"asset_symbol"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
}

// GetWalletBalance returns the USDT wallet snapshot.
func (c *RestClient) GetWalletBalance() (*models.WalletBalance, error) {
	req := c.newRequest("GET", "/v2/wallet/balances", "").
		SetResult(&apiResponse[[]walletEntry]{})

	resp, err := c.doRequest(context.Background(), "GET", "/v2/wallet/balances", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balances: %w", err)
	}

	result := resp.Result().(*apiResponse[[]walletEntry])
	for _, entry := range result.Result {
		if entry.AssetSymbol != "USDT" {
			continue
		}
		total, _ := strconv.ParseFloat(entry.Balance, 64)
		available, _ := strconv.ParseFloat(entry.AvailableBalance, 64)
		return &models.WalletBalance{Total: total, Available: available, Currency: "USDT"}, nil
	}
	return nil, fmt.Errorf("no USDT balance in wallet response")
}

// GetPositions returns all open positions.
func (c *RestClient) GetPositions() ([]Position, error) {
	req := c.newRequest("GET", "/v2/positions", "").
		SetResult(&apiResponse[[]Position]{})

	resp, err := c.doRequest(context.Background(), "GET", "/v2/positions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	result := resp.Result().(*apiResponse[[]Position])
	return result.Result, nil
}
