package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/siibarnut/pimarket/internal/kafka"
	"github.com/siibarnut/pimarket/internal/market"
)

// Carts is the slice of the cart store checkout consumes.
type Carts interface {
	Get(ctx context.Context, userID string) (market.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Ledger is the slice of the order store checkout writes.
type Ledger interface {
	ProductByID(ctx context.Context, id string) (market.Product, error)
	CreateOrder(ctx context.Context, o market.Order) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service turns a cart into a pending order. It owns order creation and
// cart consumption; everything after that belongs to the reconcile engine.
type Service struct {
	Carts       Carts
	Ledger      Ledger
	Producer    Publisher
	ServiceName string
	Log         *zap.Logger
}

// Checkout re-reads current product records, freezes the total into a new
// PENDING_PAYMENT order, and then empties the cart. The stock check here is
// advisory only: nothing is reserved until settlement decrements for real.
// On err == market.ErrOutOfStock the returned shortfalls name the products.
func (s *Service) Checkout(ctx context.Context, userID string) (market.Order, []market.StockShortfall, error) {
	c, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return market.Order{}, nil, err
	}
	if len(c.Items) == 0 {
		return market.Order{}, nil, market.ErrEmptyCart
	}

	var (
		items      []market.OrderItem
		shortfalls []market.StockShortfall
		total      decimal.Decimal
	)
	for _, it := range c.Items {
		p, err := s.Ledger.ProductByID(ctx, it.ProductID)
		if err != nil {
			return market.Order{}, nil, err
		}
		if it.Quantity > p.AvailableStock {
			shortfalls = append(shortfalls, market.StockShortfall{
				ProductID: p.ID, Required: it.Quantity, Available: p.AvailableStock,
			})
			continue
		}
		items = append(items, market.OrderItem{
			ProductID: p.ID,
			Qty:       it.Quantity,
			UnitPrice: p.Price,
		})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if len(shortfalls) > 0 {
		return market.Order{}, shortfalls, market.ErrOutOfStock
	}

	o := market.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      market.StatusPendingPayment,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Ledger.CreateOrder(ctx, o); err != nil {
		return market.Order{}, nil, err
	}

	// Order first, cart second. If the clear fails the customer may see a
	// stale cart, but the order is durable; the reverse would lose intent.
	if err := s.Carts.Clear(ctx, userID); err != nil {
		s.Log.Warn("cart clear after checkout", zap.String("user_id", userID), zap.String("order_id", o.ID), zap.Error(err))
	}

	s.publishCreated(o)
	return o, nil, nil
}

func (s *Service) publishCreated(o market.Order) {
	if s.Producer == nil {
		return
	}
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(market.OrderCreatedPayload{
			OrderID:     o.ID,
			UserID:      o.UserID,
			Items:       o.Items,
			TotalAmount: o.TotalAmount,
		}),
	}
	s.Producer.Publish(market.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
