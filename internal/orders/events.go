package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced          = "OrderPlaced"
	EventOrderAbandoned       = "OrderAbandoned"
	EventPaymentStatusUpdated = "PaymentStatusUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID        string     `json:"order_id"`
	UserID         string     `json:"user_id"`
	Items          []LineItem `json:"items"`
	TotalCents     int64      `json:"total_cents"`
	PaymentSession *string    `json:"payment_session,omitempty"`
}

type OrderAbandonedPayload struct {
	OrderID  string     `json:"order_id"`
	UserID   string     `json:"user_id"`
	Restored []LineItem `json:"restored"`
}

type PaymentStatusUpdatedPayload struct {
	OrderID       string        `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   Status        `json:"order_status,omitempty"`
}
