package orders

import "strings"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentInitialized  PaymentStatus = "INITIALIZED"
	PaymentAbandoned    PaymentStatus = "ABANDONED"
	PaymentSuccess      PaymentStatus = "SUCCESS"
	PaymentFailed       PaymentStatus = "FAILED"
	PaymentNotAttempted PaymentStatus = "NOT_ATTEMPTED"
	PaymentPending      PaymentStatus = "PENDING"
	PaymentFlagged      PaymentStatus = "FLAGGED"
	PaymentCancelled    PaymentStatus = "CANCELLED"
	PaymentVoid         PaymentStatus = "VOID"
	PaymentUserDropped  PaymentStatus = "USER_DROPPED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true, StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

var knownPaymentStatuses = map[PaymentStatus]bool{
	PaymentInitialized:  true,
	PaymentAbandoned:    true,
	PaymentSuccess:      true,
	PaymentFailed:       true,
	PaymentNotAttempted: true,
	PaymentPending:      true,
	PaymentFlagged:      true,
	PaymentCancelled:    true,
	PaymentVoid:         true,
	PaymentUserDropped:  true,
}

// ParsePaymentStatus maps a gateway-reported status string onto our enum.
// Unknown strings come back as PENDING rather than failing the caller.
func ParsePaymentStatus(s string) PaymentStatus {
	ps := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if knownPaymentStatuses[ps] {
		return ps
	}
	return PaymentPending
}

// OrderStatusForPayment maps a gateway-reported payment status to the order
// status it implies, or "" when the order status should not change.
func OrderStatusForPayment(ps PaymentStatus) Status {
	switch ps {
	case PaymentSuccess:
		return StatusInProgress
	case PaymentFailed, PaymentCancelled, PaymentVoid, PaymentUserDropped:
		return StatusFailed
	default:
		return ""
	}
}
