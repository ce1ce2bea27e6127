package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const apiVersion = "2022-09-01"

// Client talks to a Cashfree-style payment-session API. Session creation is
// POST /pg/orders; payment lookup is GET /pg/orders/{id}/payments.
type Client struct {
	baseURL string
	appID   string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, appID, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		appID:   appID,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

type createOrderBody struct {
	OrderID         string  `json:"order_id"`
	OrderAmount     float64 `json:"order_amount"`
	OrderCurrency   string  `json:"order_currency"`
	CustomerDetails struct {
		CustomerID    string `json:"customer_id"`
		CustomerPhone string `json:"customer_phone"`
	} `json:"customer_details"`
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body := createOrderBody{
		OrderID:       req.OrderID,
		OrderAmount:   float64(req.AmountCents) / 100,
		OrderCurrency: "INR",
	}
	body.CustomerDetails.CustomerID = req.UserID
	body.CustomerDetails.CustomerPhone = req.Phone

	raw, status, err := c.do(ctx, http.MethodPost, "/pg/orders", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("gateway create session: status %d: %s", status, raw)
	}

	var resp struct {
		PaymentSessionID string `json:"payment_session_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gateway create session: decode: %w", err)
	}
	if resp.PaymentSessionID == "" {
		return nil, fmt.Errorf("gateway create session: no payment_session_id in response")
	}
	return &Session{SessionID: resp.PaymentSessionID, Raw: raw}, nil
}

func (c *Client) FetchPaymentStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	raw, status, err := c.do(ctx, http.MethodGet, "/pg/orders/"+orderID+"/payments", nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrSessionNotFound
	default:
		return nil, fmt.Errorf("gateway fetch status: status %d: %s", status, raw)
	}

	// Payments come newest first; an empty list means the session was opened
	// but never attempted, which the sweeper also treats as no record.
	var payments []struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(raw, &payments); err != nil {
		return nil, fmt.Errorf("gateway fetch status: decode: %w", err)
	}
	if len(payments) == 0 {
		return nil, ErrSessionNotFound
	}
	return &StatusResult{Status: payments[0].PaymentStatus, Raw: raw}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-client-id", c.appID)
	req.Header.Set("x-client-secret", c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, 0, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
