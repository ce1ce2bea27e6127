package payment

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConfigured: no gateway credentials were provided. Checkout treats
	// this the same as any other gateway failure (degraded mode).
	ErrNotConfigured = errors.New("payment gateway not configured")

	// ErrSessionNotFound: the gateway has no record for the order. For the
	// sweeper this is the abandonment signal.
	ErrSessionNotFound = errors.New("payment session not found")

	ErrTimeout = errors.New("payment gateway timeout")
)

// Session is the handle returned when a payment session is opened. Raw keeps
// the gateway's response verbatim for audit.
type Session struct {
	SessionID string
	Raw       json.RawMessage
}

// StatusResult is the gateway's view of a payment. Status is the gateway's
// own string; callers map it onto the order's payment status enum.
type StatusResult struct {
	Status string
	Raw    json.RawMessage
}

type CreateSessionRequest struct {
	OrderID     string
	UserID      string
	AmountCents int64
	Phone       string
}

type Gateway interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
	FetchPaymentStatus(ctx context.Context, orderID string) (*StatusResult, error)
}
