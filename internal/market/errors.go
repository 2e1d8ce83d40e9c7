package market

import "errors"

var (
	// ErrValidation: bad or missing input, user-correctable.
	ErrValidation = errors.New("invalid input")

	// ErrOrderNotFound / ErrProductNotFound: unknown entity. For replayed
	// payment webhooks this is non-fatal and handled at the edge.
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrShopNotFound    = errors.New("shop not found")

	// ErrConflict: illegal state transition (double-complete with a different
	// txid, cancel after settlement). Always surfaced, never auto-resolved.
	ErrConflict = errors.New("conflicting state transition")

	// ErrDuplicatePayment: an order already exists for this payment id.
	ErrDuplicatePayment = errors.New("payment id already bound to an order")

	// ErrPaymentMismatch: the on-chain memo (or platform amount) does not
	// match the order the payment claims to settle. Security-relevant.
	ErrPaymentMismatch = errors.New("payment does not match order")

	// ErrStockExhausted: settlement-time decrement would go negative. Money
	// already moved, so this needs operator attention, not a retry.
	ErrStockExhausted = errors.New("available stock exhausted")

	// ErrUpstream: platform or chain unreachable / timed out. Retryable,
	// no local state was changed.
	ErrUpstream = errors.New("upstream unavailable")

	ErrEmptyCart  = errors.New("cart is empty")
	ErrOutOfStock = errors.New("one or more items are out of stock")
)

// StockShortfall details an out-of-stock rejection per product.
type StockShortfall struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}
