package market

const (
	TopicOrderCreated    = "order.created"
	TopicPaymentApproved = "payment.approved"
	TopicOrderPaid       = "order.paid"
	TopicOrderCancelled  = "order.cancelled"
	TopicReconcileFailed = "reconcile.failed"
)

// Partition key = payment_id (order_id before a payment exists), so every
// event of one payment keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
