package statuscache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/sanviii19/My-Shopping-App-sub000/internal/kafka"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/redisx"
)

// Service consumes order lifecycle events and keeps the redis order-status
// cache warm so GET /orders/{id} rarely has to touch Postgres.
type Service struct {
	Redis *redis.Client
	Log   *zap.Logger
}

type cachedStatus struct {
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

// HandleEvent is wired as the kafka consumer handler for all order.* topics.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id; replays are expected with manual offset commits
	dkey := fmt.Sprintf(redisx.KeyDedup, "statuscache", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.put(ctx, p.OrderID, cachedStatus{
			Status:        orders.StatusPending,
			PaymentStatus: orders.PaymentInitialized,
		})

	case orders.EventOrderAbandoned:
		p, err := kafkax.UnwrapPayload[orders.OrderAbandonedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.put(ctx, p.OrderID, cachedStatus{
			Status:        orders.StatusCancelled,
			PaymentStatus: orders.PaymentAbandoned,
		})

	case orders.EventPaymentStatusUpdated:
		p, err := kafkax.UnwrapPayload[orders.PaymentStatusUpdatedPayload](env.Payload)
		if err != nil {
			return err
		}
		cs := cachedStatus{Status: p.OrderStatus, PaymentStatus: p.PaymentStatus}
		if cs.Status == "" {
			cs.Status = orders.StatusPending
		}
		return s.put(ctx, p.OrderID, cs)

	default:
		s.Log.Debug("ignoring event", zap.String("event_type", env.EventType))
		return nil
	}
}

func (s *Service) put(ctx context.Context, orderID string, cs cachedStatus) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		return fmt.Errorf("cache order status %s: %w", orderID, err)
	}
	return nil
}
