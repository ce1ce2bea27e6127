package orders

import "time"

type Product struct {
	ID         string
	SKU        string
	Name       string
	Stock      int
	PriceCents int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ShippingDetails is captured verbatim on the order. FullName, Address, City,
// State and Phone are required; AltPhone is optional.
type ShippingDetails struct {
	FullName string `json:"full_name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Phone    string `json:"phone"`
	AltPhone string `json:"alt_phone,omitempty"`
}

// LineItem is immutable once the order exists. PriceCents is the unit price
// read at the moment stock was decremented, not the current catalog price.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type Order struct {
	ID               string
	UserID           string
	Status           Status
	PaymentStatus    PaymentStatus
	Items            []LineItem
	TotalCents       int64
	Shipping         ShippingDetails
	PaymentSessionID *string
	GatewayResponse  []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CartItem is one entry of the buyer's cart snapshot at checkout time.
type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Draft is the input to the atomic placement: everything known before prices
// are read and stock is reserved.
type Draft struct {
	UserID   string
	Shipping ShippingDetails
	Items    []CartItem
}
