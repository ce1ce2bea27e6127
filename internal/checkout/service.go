package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/sanviii19/My-Shopping-App-sub000/internal/kafka"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/payment"
)

// Store is the slice of the order repository the coordinator needs.
// PlaceOrder is the atomic unit: stock check-and-decrement plus order
// creation commit together or not at all.
type Store interface {
	PlaceOrder(ctx context.Context, d orders.Draft) (*orders.Order, error)
	AttachPaymentSession(ctx context.Context, orderID, sessionID string, raw []byte) error
	MarkPaymentSkipped(ctx context.Context, orderID string, marker []byte) error
}

type CartStore interface {
	Get(ctx context.Context, userID string) ([]orders.CartItem, error)
	Clear(ctx context.Context, userID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Result carries the placed order and whatever payment session was obtained.
// Session == nil with a non-empty Note is the degraded-mode outcome: the
// order stands, payment was skipped.
type Result struct {
	Order   *orders.Order
	Session *payment.Session
	Note    string
}

type Service struct {
	Store          Store
	Cart           CartStore
	Gateway        payment.Gateway
	Producer       Publisher
	Log            *zap.Logger
	ServiceName    string
	GatewayTimeout time.Duration
}

// PlaceOrder validates the shipping details, reads the buyer's cart snapshot,
// atomically reserves stock and creates the order, then best-effort opens a
// payment session. A gateway failure never rolls anything back: stock is
// already reserved and the sweeper will reconcile the order later.
func (s *Service) PlaceOrder(ctx context.Context, userID string, shipping orders.ShippingDetails) (*Result, error) {
	if err := validateShipping(shipping); err != nil {
		return nil, err
	}

	items, err := s.Cart.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, orders.ErrEmptyCart
	}

	order, err := s.Store.PlaceOrder(ctx, orders.Draft{
		UserID:   userID,
		Shipping: shipping,
		Items:    items,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Order: order}
	s.openPaymentSession(ctx, res)

	// The order is committed; from here on failures are logged, not surfaced.
	if err := s.Cart.Clear(ctx, userID); err != nil {
		s.Log.Warn("clear cart failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.publishPlaced(res)

	return res, nil
}

func (s *Service) openPaymentSession(ctx context.Context, res *Result) {
	order := res.Order

	gctx := ctx
	if s.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.GatewayTimeout)
		defer cancel()
	}

	sess, err := s.Gateway.CreateSession(gctx, payment.CreateSessionRequest{
		OrderID:     order.ID,
		UserID:      order.UserID,
		AmountCents: order.TotalCents,
		Phone:       order.Shipping.Phone,
	})
	if err != nil {
		s.Log.Warn("payment session skipped",
			zap.String("order_id", order.ID), zap.Error(err))
		marker, _ := json.Marshal(map[string]string{
			"note":  "payment session skipped",
			"error": err.Error(),
		})
		if merr := s.Store.MarkPaymentSkipped(ctx, order.ID, marker); merr != nil {
			s.Log.Error("mark payment skipped failed",
				zap.String("order_id", order.ID), zap.Error(merr))
		}
		res.Note = "payment processing skipped"
		return
	}

	if aerr := s.Store.AttachPaymentSession(ctx, order.ID, sess.SessionID, sess.Raw); aerr != nil {
		s.Log.Error("attach payment session failed",
			zap.String("order_id", order.ID), zap.Error(aerr))
	}
	order.PaymentSessionID = &sess.SessionID
	res.Session = sess
}

func (s *Service) publishPlaced(res *Result) {
	if s.Producer == nil {
		return
	}
	order := res.Order
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:        order.ID,
			UserID:         order.UserID,
			Items:          order.Items,
			TotalCents:     order.TotalCents,
			PaymentSession: order.PaymentSessionID,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func validateShipping(sd orders.ShippingDetails) error {
	switch {
	case sd.FullName == "":
		return &orders.ValidationError{Field: "full_name"}
	case sd.Address == "":
		return &orders.ValidationError{Field: "address"}
	case sd.City == "":
		return &orders.ValidationError{Field: "city"}
	case sd.State == "":
		return &orders.ValidationError{Field: "state"}
	case sd.Phone == "":
		return &orders.ValidationError{Field: "phone"}
	}
	return nil
}
