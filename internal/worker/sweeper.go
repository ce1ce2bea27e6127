package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/sanviii19/My-Shopping-App-sub000/internal/kafka"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/payment"
)

// batch size per sweep; leftovers wait for the next tick
const sweepLimit = 100

type Store interface {
	FindStaleInitialized(ctx context.Context, olderThan time.Duration, limit int) ([]orders.Order, error)
	RecordPaymentStatus(ctx context.Context, orderID string, ps orders.PaymentStatus, raw []byte) (bool, error)
	Abandon(ctx context.Context, o *orders.Order) (bool, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Sweeper reconciles orders stuck in INITIALIZED payment state. When the
// gateway reports a definitive status the order is updated to match; when
// the gateway has no record at all the order is abandoned and its reserved
// stock restored.
type Sweeper struct {
	Store             Store
	Gateway           payment.Gateway
	ProducerAbandoned Publisher // publishes order.abandoned
	ProducerUpdated   Publisher // publishes order.payment.updated
	Log               *zap.Logger
	ServiceName       string
	Interval          time.Duration
	StaleAfter        time.Duration
	GatewayTimeout    time.Duration
}

func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	sw.Log.Info("sweeper started",
		zap.Duration("interval", sw.Interval),
		zap.Duration("stale_after", sw.StaleAfter))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Errors are logged and swallowed: a failed sweep must
// never take the process down, the next tick simply retries.
func (sw *Sweeper) Sweep(ctx context.Context) {
	stale, err := sw.Store.FindStaleInitialized(ctx, sw.StaleAfter, sweepLimit)
	if err != nil {
		sw.Log.Error("find stale orders failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}
	sw.Log.Info("sweeping stale orders", zap.Int("count", len(stale)))

	for i := range stale {
		if err := sw.sweepOne(ctx, &stale[i]); err != nil {
			sw.Log.Error("sweep order failed",
				zap.String("order_id", stale[i].ID), zap.Error(err))
		}
	}
}

func (sw *Sweeper) sweepOne(ctx context.Context, o *orders.Order) error {
	gctx := ctx
	if sw.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, sw.GatewayTimeout)
		defer cancel()
	}

	res, err := sw.Gateway.FetchPaymentStatus(gctx, o.ID)
	switch {
	case errors.Is(err, payment.ErrSessionNotFound), errors.Is(err, payment.ErrNotConfigured):
		// No record at the gateway: no payment will ever arrive for this
		// order. Put the stock back and mark it abandoned.
		changed, aerr := sw.Store.Abandon(ctx, o)
		if aerr != nil {
			return aerr
		}
		if changed {
			sw.Log.Info("order abandoned, stock restored", zap.String("order_id", o.ID))
			sw.publishAbandoned(o)
		}
		return nil

	case err != nil:
		// Transient gateway trouble; leave the order for the next pass.
		return err
	}

	ps := orders.ParsePaymentStatus(res.Status)
	changed, err := sw.Store.RecordPaymentStatus(ctx, o.ID, ps, res.Raw)
	if err != nil {
		return err
	}
	if changed {
		sw.Log.Info("payment status reconciled",
			zap.String("order_id", o.ID), zap.String("payment_status", string(ps)))
		sw.publishUpdated(o.ID, ps)
	}
	return nil
}

func (sw *Sweeper) publishAbandoned(o *orders.Order) {
	if sw.ProducerAbandoned == nil {
		return
	}
	ev := sw.envelope(orders.EventOrderAbandoned, o.ID, kafkax.MustMarshal(orders.OrderAbandonedPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Restored: o.Items,
	}))
	sw.ProducerAbandoned.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderAbandoned)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (sw *Sweeper) publishUpdated(orderID string, ps orders.PaymentStatus) {
	if sw.ProducerUpdated == nil {
		return
	}
	ev := sw.envelope(orders.EventPaymentStatusUpdated, orderID, kafkax.MustMarshal(orders.PaymentStatusUpdatedPayload{
		OrderID:       orderID,
		PaymentStatus: ps,
		OrderStatus:   orders.OrderStatusForPayment(ps),
	}))
	sw.ProducerUpdated.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentStatusUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (sw *Sweeper) envelope(eventType, orderID string, payload []byte) orders.Envelope {
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      sw.ServiceName,
		CorrelationID: orderID,
		Payload:       payload,
	}
}
