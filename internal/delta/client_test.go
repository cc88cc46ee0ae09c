package delta

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		apiSecret: "test_api_secret",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // allow all requests in tests
	}

	return rc, server
}

func TestPlaceOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/v2/orders", r.URL.Path)
			// Every request carries the signing headers.
			assert.NotEmpty(t, r.Header.Get("api-key"))
			assert.NotEmpty(t, r.Header.Get("timestamp"))
			assert.NotEmpty(t, r.Header.Get("signature"))

			var body placeOrderRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 42, body.ProductID)
			assert.Equal(t, OrderSideSell, body.Side)
			assert.Equal(t, "400", body.LimitPrice)
			assert.NotEmpty(t, body.ClientOrderID)

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success": true, "result": {"id": "ord-1", "product_id": 42, "status": "open", "limit_price": "400"}}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		order, err := rc.PlaceOrder(42, OrderSideSell, 1, 400, OrderTypeLimit)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, "ord-1", order.ID)
		assert.Equal(t, OrderStatusOpen, order.Status)
	})

	t.Run("MarketOrderOmitsLimitPrice", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, hasLimit := body["limit_price"]
			assert.False(t, hasLimit)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success": true, "result": {"id": "ord-2", "status": "open"}}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		order, err := rc.PlaceOrder(42, OrderSideBuy, 1, 0, OrderTypeMarket)
		assert.NoError(t, err)
		assert.Equal(t, "ord-2", order.ID)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success": false, "error": "insufficient margin"}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		order, err := rc.PlaceOrder(42, OrderSideSell, 1, 400, OrderTypeLimit)
		assert.Error(t, err)
		assert.Nil(t, order)
		assert.Contains(t, err.Error(), "failed to place order")
	})
}

func TestGetOrderStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders/ord-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "result": {"id": "ord-1", "status": "filled", "average_price": "398.5"}}`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	order, err := rc.GetOrderStatus("ord-1")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusFilled, order.Status)
	assert.Equal(t, 398.5, order.EntryPrice())
}

func TestGetProductByStrike(t *testing.T) {
	products := `{"success": true, "result": [
		{"id": 1, "symbol": "C-BTC-50000-260827", "strike": 50000, "contract_type": "options_contract", "expiry": "2026-08-27"},
		{"id": 2, "symbol": "P-BTC-50000-260827", "strike": 50000, "contract_type": "options_contract", "expiry": "2026-08-27"},
		{"id": 3, "symbol": "BTCUSDT", "strike": 0, "contract_type": "perpetual_futures", "expiry": ""}
	]}`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, products)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	t.Run("FindsCall", func(t *testing.T) {
		product, err := rc.GetProductByStrike(50000, true, "2026-08-27")
		assert.NoError(t, err)
		assert.Equal(t, 1, product.ID)
	})

	t.Run("FindsPut", func(t *testing.T) {
		product, err := rc.GetProductByStrike(50000, false, "2026-08-27")
		assert.NoError(t, err)
		assert.Equal(t, 2, product.ID)
	})

	t.Run("NoMatch", func(t *testing.T) {
		product, err := rc.GetProductByStrike(60000, true, "2026-08-27")
		assert.Error(t, err)
		assert.Nil(t, product)
		assert.Contains(t, err.Error(), "no product found")
	})
}

func TestGetMarketPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/tickers", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("product_ids"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "result": [{"product_id": 42, "mark_price": "417.25"}]}`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	price, err := rc.GetMarketPrice(42)
	assert.NoError(t, err)
	assert.Equal(t, 417.25, price)
}

func TestGetWalletBalance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "result": [
			{"asset_symbol": "BTC", "balance": "0.5", "available_balance": "0.5"},
			{"asset_symbol": "USDT", "balance": "10000", "available_balance": "8200.50"}
		]}`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	balance, err := rc.GetWalletBalance()
	assert.NoError(t, err)
	assert.Equal(t, 10000.0, balance.Total)
	assert.Equal(t, 8200.5, balance.Available)
	assert.Equal(t, "USDT", balance.Currency)
}

func TestSign_Deterministic(t *testing.T) {
	rc := &RestClient{apiSecret: "secret"}
	a := rc.sign("GET", "/v2/orders/1", "1700000000000", "")
	b := rc.sign("GET", "/v2/orders/1", "1700000000000", "")
	c := rc.sign("GET", "/v2/orders/2", "1700000000000", "")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded SHA256
}
