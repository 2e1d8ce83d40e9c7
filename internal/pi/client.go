package pi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/market"
)

// Client wraps the Pi platform payments API (/v2/payments). It holds no
// business logic: callers decide what a payment means.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type Payment struct {
	Identifier string          `json:"identifier"`
	UserUID    string          `json:"user_uid"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	Metadata   PaymentMetadata `json:"metadata"`
}

// PaymentMetadata is set by the storefront when it creates the payment:
// either a checkout order to bind to, or a direct product purchase.
type PaymentMetadata struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var p Payment
	err := c.do(ctx, http.MethodGet, "/v2/payments/"+paymentID, nil, &p)
	return p, err
}

func (c *Client) ApprovePayment(ctx context.Context, paymentID string) error {
	return c.do(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/approve", nil, nil)
}

func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) error {
	body := map[string]string{"txid": txid}
	return c.do(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/complete", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: platform %s %s: %v", market.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: platform %s %s: status %d: %s", market.ErrUpstream, method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: platform %s %s: decode: %v", market.ErrUpstream, method, path, err)
	}
	return nil
}
