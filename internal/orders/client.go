package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/bitmex-tools/feedrelay/internal/model"
	"github.com/bitmex-tools/feedrelay/internal/signer"
)

// Client talks to the exchange trading REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a trading API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// APIError represents an error response from the exchange API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// PlaceRequest describes one order to submit.
type PlaceRequest struct {
	Symbol string
	Volume int64
	Side   string
	Price  float64
}

// placeBody is the exchange wire format for order submission.
type placeBody struct {
	Symbol   string  `json:"symbol"`
	OrderQty int64   `json:"orderQty"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	OrdType  string  `json:"ordType"`
}

// orderResponse is the exchange wire format for an accepted order.
type orderResponse struct {
	OrderID   string  `json:"orderID"`
	Symbol    string  `json:"symbol"`
	OrderQty  int64   `json:"orderQty"`
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
}

// PlaceOrder submits a limit order under the account's credentials and
// returns the local record of the accepted order.
func (c *Client) PlaceOrder(ctx context.Context, cred model.AccountCredential, req PlaceRequest) (model.Order, error) {
	body, err := json.Marshal(placeBody{
		Symbol:   req.Symbol,
		OrderQty: req.Volume,
		Side:     req.Side,
		Price:    req.Price,
		OrdType:  "Limit",
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("marshal order: %w", err)
	}

	raw, err := c.doWithRetry(ctx, cred, http.MethodPost, "/api/v1/order", nil, body)
	if err != nil {
		return model.Order{}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.Order{}, fmt.Errorf("unmarshal order response: %w", err)
	}

	return model.Order{
		OrderID:   resp.OrderID,
		Symbol:    resp.Symbol,
		Volume:    resp.OrderQty,
		Timestamp: resp.Timestamp,
		Side:      resp.Side,
		Price:     resp.Price,
		Account:   cred.Name,
	}, nil
}

// CancelOrder cancels a previously placed order by exchange ID.
func (c *Client) CancelOrder(ctx context.Context, cred model.AccountCredential, orderID string) error {
	query := url.Values{"orderID": {orderID}}
	_, err := c.doWithRetry(ctx, cred, http.MethodDelete, "/api/v1/order", query, nil)
	return err
}

// doRequest performs one signed HTTP request against the exchange.
func (c *Client) doRequest(ctx context.Context, cred model.AccountCredential, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	auth, err := signer.Headers(cred, method, fullURL)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	for key, values := range auth {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       raw,
		}
	}

	return raw, nil
}

// doWithRetry performs a request with exponential backoff retry.
// Headers are re-signed on every attempt so a retry never carries a
// stale expiry.
func (c *Client) doWithRetry(ctx context.Context, cred model.AccountCredential, method, path string, query url.Values, body []byte) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		raw, err := c.doRequest(ctx, cred, method, path, query, body)
		if err == nil {
			return raw, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
