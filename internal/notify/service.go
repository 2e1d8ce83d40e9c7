package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/siibarnut/pimarket/internal/kafka"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/redisx"
)

// Service fans settlement events out to buyers and shops. The delivery
// channel here is the log; the consumer loop, dedup and decode are the part
// that matters for correctness.
type Service struct {
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleOrderPaid is mounted as the consumer handler for order.paid.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != market.EventOrderPaid {
		return nil // ignore
	}

	// dedup via Redis (by event_id): settlement events may be re-published
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[market.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	s.Log.Info("order settled",
		zap.String("order_id", p.OrderID),
		zap.String("payment_id", p.PaymentID),
		zap.String("txid", p.Txid),
		zap.String("total_amount", p.TotalAmount.String()),
	)
	return nil
}
