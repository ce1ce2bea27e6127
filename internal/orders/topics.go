package orders

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderAbandoned = "order.abandoned"
	TopicPaymentUpdated = "order.payment.updated"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
