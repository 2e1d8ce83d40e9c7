package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/siibarnut/pimarket/internal/kafka"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/pi"
)

// Ledger is the slice of the order store the engine drives. Status
// transitions and stock decrements happen nowhere else.
type Ledger interface {
	OrderByID(ctx context.Context, id string) (market.Order, error)
	OrderByPaymentID(ctx context.Context, paymentID string) (market.Order, error)
	ProductByID(ctx context.Context, id string) (market.Product, error)
	CreateOrder(ctx context.Context, o market.Order) error
	AttachPayment(ctx context.Context, orderID, paymentID string) error
	SettleOrder(ctx context.Context, orderID, txid string) ([]market.StockShortfall, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Platform is the payment authority. All three calls are idempotent on the
// platform side.
type Platform interface {
	GetPayment(ctx context.Context, paymentID string) (pi.Payment, error)
	ApprovePayment(ctx context.Context, paymentID string) error
	CompletePayment(ctx context.Context, paymentID, txid string) error
}

// Chain fetches the on-chain transaction a payment claims settled it.
type Chain interface {
	Transaction(ctx context.Context, txURL string) (pi.ChainTx, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Engine owns the order/payment state machine:
//
//	PENDING_PAYMENT -> PAID        (Complete / ReconcileIncomplete)
//	PENDING_PAYMENT -> CANCELLED   (Cancel)
//
// Every transition is serialized per payment id and backed by conditional
// store writes, so replayed and racing webhooks cannot corrupt state.
type Engine struct {
	ledger   Ledger
	platform Platform
	chain    Chain

	ProducerApproved  Publisher
	ProducerPaid      Publisher
	ProducerCancelled Publisher
	ProducerFailed    Publisher

	ServiceName string

	locks *keyLock
	log   *zap.Logger
}

func NewEngine(ledger Ledger, platform Platform, chain Chain, log *zap.Logger) *Engine {
	return &Engine{
		ledger:   ledger,
		platform: platform,
		chain:    chain,
		locks:    newKeyLock(),
		log:      log,
	}
}

// Approve handles a user's request to approve a platform-issued payment.
// The payment's metadata either names a checkout order to bind to or a
// product for a direct one-item order. Re-approval is a no-op success.
func (e *Engine) Approve(ctx context.Context, paymentID, userID string) error {
	if paymentID == "" || userID == "" {
		return fmt.Errorf("%w: paymentId and user are required", market.ErrValidation)
	}
	unlock := e.locks.Lock(paymentID)
	defer unlock()

	p, err := e.platform.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if _, err := e.ledger.OrderByPaymentID(ctx, paymentID); err == nil {
		// already approved earlier; just re-send the ack
		e.approvePlatform(ctx, paymentID)
		return nil
	} else if !errors.Is(err, market.ErrOrderNotFound) {
		return err
	}

	var o market.Order
	switch {
	case p.Metadata.OrderID != "":
		o, err = e.ledger.OrderByID(ctx, p.Metadata.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("%w: order %s does not belong to caller", market.ErrConflict, o.ID)
		}
		if o.Status != market.StatusPendingPayment {
			return fmt.Errorf("%w: order %s is %s", market.ErrConflict, o.ID, o.Status)
		}
		// the frozen checkout total is authoritative for the amount check
		if !p.Amount.Equal(o.TotalAmount) {
			return fmt.Errorf("%w: payment amount %s != order total %s",
				market.ErrPaymentMismatch, p.Amount, o.TotalAmount)
		}
		if err := e.ledger.AttachPayment(ctx, o.ID, paymentID); err != nil {
			return err
		}
		o.PaymentID = paymentID

	case p.Metadata.ProductID != "":
		prod, err := e.ledger.ProductByID(ctx, p.Metadata.ProductID)
		if err != nil {
			return err
		}
		o = market.Order{
			ID:        uuid.NewString(),
			UserID:    userID,
			PaymentID: paymentID,
			Status:    market.StatusPendingPayment,
			Items: []market.OrderItem{
				{ProductID: prod.ID, Qty: 1, UnitPrice: p.Amount},
			},
			TotalAmount: p.Amount,
			CreatedAt:   time.Now().UTC(),
		}
		if err := e.ledger.CreateOrder(ctx, o); err != nil {
			if errors.Is(err, market.ErrDuplicatePayment) {
				// concurrent Approve won the insert; same outcome
				e.approvePlatform(ctx, paymentID)
				return nil
			}
			return err
		}

	default:
		return fmt.Errorf("%w: payment %s carries no order or product reference", market.ErrValidation, paymentID)
	}

	e.approvePlatform(ctx, paymentID)
	e.publishApproved(o)
	return nil
}

// approvePlatform is best-effort: the local order row is already durable and
// a later retry of Approve re-sends the call.
func (e *Engine) approvePlatform(ctx context.Context, paymentID string) {
	if err := e.platform.ApprovePayment(ctx, paymentID); err != nil {
		e.log.Warn("platform approve", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

// Complete records settlement reported by the platform. Unknown payments
// surface market.ErrOrderNotFound; the caller decides whether that is fatal
// (webhook replays for payments we never created are expected).
func (e *Engine) Complete(ctx context.Context, paymentID, txid string) error {
	if paymentID == "" || txid == "" {
		return fmt.Errorf("%w: paymentId and txid are required", market.ErrValidation)
	}
	unlock := e.locks.Lock(paymentID)
	defer unlock()

	o, err := e.ledger.OrderByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	return e.settle(ctx, o, txid)
}

// ReconcileIncomplete verifies a stuck payment against the chain before
// settling it: the tx memo must name this exact payment.
func (e *Engine) ReconcileIncomplete(ctx context.Context, p market.IncompletePayment) error {
	if p.Identifier == "" || p.Txid == "" || p.TxURL == "" {
		return fmt.Errorf("%w: payment identifier, txid and tx link are required", market.ErrValidation)
	}
	unlock := e.locks.Lock(p.Identifier)
	defer unlock()

	o, err := e.ledger.OrderByPaymentID(ctx, p.Identifier)
	if err != nil {
		return err
	}
	// replayed report for an already settled payment: skip the chain lookup
	if o.Status == market.StatusPaid && o.Txid == p.Txid {
		return nil
	}

	tx, err := e.chain.Transaction(ctx, p.TxURL)
	if err != nil {
		return err
	}
	if tx.Memo != o.PaymentID {
		return fmt.Errorf("%w: chain memo %q does not name payment %q",
			market.ErrPaymentMismatch, tx.Memo, o.PaymentID)
	}

	return e.settle(ctx, o, p.Txid)
}

// Cancel is legal only while the order still awaits payment.
func (e *Engine) Cancel(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return fmt.Errorf("%w: paymentId is required", market.ErrValidation)
	}
	unlock := e.locks.Lock(paymentID)
	defer unlock()

	o, err := e.ledger.OrderByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	switch o.Status {
	case market.StatusCancelled:
		return nil // replay
	case market.StatusPaid:
		return fmt.Errorf("%w: payment %s already settled, cannot cancel", market.ErrConflict, paymentID)
	}

	if err := e.ledger.CancelOrder(ctx, o.ID); err != nil {
		return err
	}
	e.publishCancelled(o)
	return nil
}

// settle moves o into PAID with txid, decrementing stock in the same store
// transaction. The platform ack and event publish happen after commit and
// are best-effort.
func (e *Engine) settle(ctx context.Context, o market.Order, txid string) error {
	switch o.Status {
	case market.StatusPaid:
		if o.Txid == txid {
			return nil // duplicate delivery
		}
		return fmt.Errorf("%w: payment %s already settled with txid %s",
			market.ErrConflict, o.PaymentID, o.Txid)
	case market.StatusCancelled:
		return fmt.Errorf("%w: payment %s was cancelled", market.ErrConflict, o.PaymentID)
	}

	shortfalls, err := e.ledger.SettleOrder(ctx, o.ID, txid)
	if err != nil {
		if errors.Is(err, market.ErrStockExhausted) {
			// Funds moved but stock cannot be honored. Flag for an operator
			// and keep serving.
			e.log.Error("settlement cannot honor stock, manual reconciliation required",
				zap.String("order_id", o.ID),
				zap.String("payment_id", o.PaymentID),
				zap.String("txid", txid),
				zap.Any("shortfalls", shortfalls))
			e.publishReconcileFailed(o, txid, shortfalls)
		}
		return err
	}

	if err := e.platform.CompletePayment(ctx, o.PaymentID, txid); err != nil {
		// committed locally; the ack is re-sent when the platform retries
		e.log.Warn("platform complete ack", zap.String("payment_id", o.PaymentID), zap.Error(err))
	}
	e.publishPaid(o, txid)
	return nil
}

func (e *Engine) publish(p Publisher, eventType, correlationID string, payload any) {
	if p == nil {
		return
	}
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.ServiceName,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(market.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *Engine) publishApproved(o market.Order) {
	e.publish(e.ProducerApproved, market.EventPaymentApproved, o.PaymentID, market.PaymentApprovedPayload{
		OrderID: o.ID, PaymentID: o.PaymentID, UserID: o.UserID,
	})
}

func (e *Engine) publishPaid(o market.Order, txid string) {
	e.publish(e.ProducerPaid, market.EventOrderPaid, o.PaymentID, market.OrderPaidPayload{
		OrderID: o.ID, PaymentID: o.PaymentID, Txid: txid, TotalAmount: o.TotalAmount,
	})
}

func (e *Engine) publishCancelled(o market.Order) {
	e.publish(e.ProducerCancelled, market.EventOrderCancelled, o.PaymentID, market.OrderCancelledPayload{
		OrderID: o.ID, PaymentID: o.PaymentID,
	})
}

func (e *Engine) publishReconcileFailed(o market.Order, txid string, shortfalls []market.StockShortfall) {
	e.publish(e.ProducerFailed, market.EventReconcileFailed, o.PaymentID, market.ReconcileFailedPayload{
		OrderID: o.ID, PaymentID: o.PaymentID, Txid: txid,
		Reason: "STOCK_EXHAUSTED", Details: shortfalls,
	})
}
