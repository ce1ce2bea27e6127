package redisx

import "time"

const (
	// Cart snapshot per buyer: cart:{user_id} -> JSON array of line items.
	KeyCart = "cart:%s"

	// Cached order status: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Carts are short-lived working state; anything older than a week is dead weight.
	TTLCart        = 7 * 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
