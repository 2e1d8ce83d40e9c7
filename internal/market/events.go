package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventPaymentApproved = "PaymentApproved"
	EventOrderPaid       = "OrderPaid"
	EventOrderCancelled  = "OrderCancelled"
	EventReconcileFailed = "ReconcileFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "market-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or payment_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type PaymentApprovedPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	UserID    string `json:"user_id"`
}

type OrderPaidPayload struct {
	OrderID     string          `json:"order_id"`
	PaymentID   string          `json:"payment_id"`
	Txid        string          `json:"txid"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderCancelledPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// ReconcileFailedPayload flags an order whose settlement could not honor
// stock; funds already moved, so an operator has to resolve it.
type ReconcileFailedPayload struct {
	OrderID   string           `json:"order_id"`
	PaymentID string           `json:"payment_id"`
	Txid      string           `json:"txid"`
	Reason    string           `json:"reason"` // e.g., STOCK_EXHAUSTED
	Details   []StockShortfall `json:"details,omitempty"`
}
