package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/payment"
)

type fakeProduct struct {
	stock int
	price int64
}

// fakeStore mirrors the repo's transaction semantics in memory: the mutex is
// the isolation boundary, and a failure mid-loop undoes every decrement of
// the attempt.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]*fakeProduct
	orders   map[string]*orders.Order
	attached map[string]string
	skipped  map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]*fakeProduct{},
		orders:   map[string]*orders.Order{},
		attached: map[string]string{},
		skipped:  map[string][]byte{},
	}
}

func (f *fakeStore) PlaceOrder(_ context.Context, d orders.Draft) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(d.Items) == 0 {
		return nil, orders.ErrEmptyCart
	}

	type applied struct {
		id  string
		qty int
	}
	var done []applied
	rollback := func() {
		for _, a := range done {
			f.products[a.id].stock += a.qty
		}
	}

	order := &orders.Order{
		ID:            uuid.NewString(),
		UserID:        d.UserID,
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentInitialized,
		Shipping:      d.Shipping,
	}
	for _, it := range d.Items {
		p, ok := f.products[it.ProductID]
		if !ok {
			rollback()
			return nil, &orders.ProductNotFoundError{ProductID: it.ProductID}
		}
		if it.Qty > p.stock {
			rollback()
			return nil, &orders.InsufficientStockError{ProductID: it.ProductID, Requested: it.Qty, Available: p.stock}
		}
		p.stock -= it.Qty
		done = append(done, applied{it.ProductID, it.Qty})
		order.Items = append(order.Items, orders.LineItem{ProductID: it.ProductID, Qty: it.Qty, PriceCents: p.price})
		order.TotalCents += int64(it.Qty) * p.price
	}

	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeStore) AttachPaymentSession(_ context.Context, orderID, sessionID string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[orderID] = sessionID
	return nil
}

func (f *fakeStore) MarkPaymentSkipped(_ context.Context, orderID string, marker []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped[orderID] = marker
	return nil
}

func (f *fakeStore) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].stock
}

type fakeCart struct {
	mu      sync.Mutex
	items   map[string][]orders.CartItem
	cleared map[string]bool
}

func newFakeCart() *fakeCart {
	return &fakeCart{items: map[string][]orders.CartItem{}, cleared: map[string]bool{}}
}

func (f *fakeCart) Get(_ context.Context, userID string) ([]orders.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[userID], nil
}

func (f *fakeCart) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, userID)
	f.cleared[userID] = true
	return nil
}

type fakeGateway struct {
	session   *payment.Session
	createErr error
	calls     int
}

func (f *fakeGateway) CreateSession(_ context.Context, _ payment.CreateSessionRequest) (*payment.Session, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.session == nil {
		return nil, payment.ErrNotConfigured
	}
	return f.session, nil
}

func (f *fakeGateway) FetchPaymentStatus(_ context.Context, _ string) (*payment.StatusResult, error) {
	return nil, payment.ErrSessionNotFound
}

func validShipping() orders.ShippingDetails {
	return orders.ShippingDetails{
		FullName: "Asha Rao",
		Address:  "12 MG Road",
		City:     "Bengaluru",
		State:    "KA",
		Phone:    "9900112233",
	}
}

func newService(store *fakeStore, carts *fakeCart, gw payment.Gateway) *Service {
	return &Service{
		Store:       store,
		Cart:        carts,
		Gateway:     gw,
		Log:         zap.NewNop(),
		ServiceName: "test",
	}
}

func TestPlaceOrder_TotalsAndStock(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 5, price: 10000}
	store.products["B"] = &fakeProduct{stock: 5, price: 5000}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 2}, {ProductID: "B", Qty: 1}}
	gw := &fakeGateway{session: &payment.Session{SessionID: "sess-1", Raw: json.RawMessage(`{}`)}}

	res, err := newService(store, carts, gw).PlaceOrder(context.Background(), "u1", validShipping())
	require.NoError(t, err)
	require.Equal(t, int64(25000), res.Order.TotalCents)
	require.Equal(t, 3, store.stock("A"))
	require.Equal(t, 4, store.stock("B"))
	require.Equal(t, []orders.LineItem{
		{ProductID: "A", Qty: 2, PriceCents: 10000},
		{ProductID: "B", Qty: 1, PriceCents: 5000},
	}, res.Order.Items)

	// sum(qty * unit price) must equal the amount sent to the gateway
	var sum int64
	for _, it := range res.Order.Items {
		sum += int64(it.Qty) * it.PriceCents
	}
	require.Equal(t, res.Order.TotalCents, sum)

	require.Equal(t, "sess-1", store.attached[res.Order.ID])
	require.NotNil(t, res.Session)
	require.True(t, carts.cleared["u1"])
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 5, price: 100}
	store.products["B"] = &fakeProduct{stock: 2, price: 100}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 3}, {ProductID: "B", Qty: 10}}

	_, err := newService(store, carts, &fakeGateway{}).PlaceOrder(context.Background(), "u1", validShipping())

	var ins *orders.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	require.Equal(t, "B", ins.ProductID)
	// item A's decrement from this attempt is undone, no order exists
	require.Equal(t, 5, store.stock("A"))
	require.Equal(t, 2, store.stock("B"))
	require.Empty(t, store.orders)
	require.False(t, carts.cleared["u1"])
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	store := newFakeStore()
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "ghost", Qty: 1}}

	_, err := newService(store, carts, &fakeGateway{}).PlaceOrder(context.Background(), "u1", validShipping())

	var pnf *orders.ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	require.Empty(t, store.orders)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	store := newFakeStore()
	carts := newFakeCart()
	gw := &fakeGateway{}

	_, err := newService(store, carts, gw).PlaceOrder(context.Background(), "u1", validShipping())
	require.ErrorIs(t, err, orders.ErrEmptyCart)
	require.Zero(t, gw.calls)
}

func TestPlaceOrder_Validation(t *testing.T) {
	store := newFakeStore()
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	svc := newService(store, carts, &fakeGateway{})

	for _, tc := range []struct {
		field string
		mut   func(*orders.ShippingDetails)
	}{
		{"full_name", func(sd *orders.ShippingDetails) { sd.FullName = "" }},
		{"address", func(sd *orders.ShippingDetails) { sd.Address = "" }},
		{"city", func(sd *orders.ShippingDetails) { sd.City = "" }},
		{"state", func(sd *orders.ShippingDetails) { sd.State = "" }},
		{"phone", func(sd *orders.ShippingDetails) { sd.Phone = "" }},
	} {
		t.Run(tc.field, func(t *testing.T) {
			sd := validShipping()
			tc.mut(&sd)
			_, err := svc.PlaceOrder(context.Background(), "u1", sd)
			var ve *orders.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.field, ve.Field)
		})
	}

	t.Run("alt phone optional", func(t *testing.T) {
		store.products["A"] = &fakeProduct{stock: 1, price: 100}
		sd := validShipping()
		sd.AltPhone = ""
		_, err := svc.PlaceOrder(context.Background(), "u1", sd)
		require.NoError(t, err)
	})
}

func TestPlaceOrder_DegradedModeOnGatewayFailure(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 5, price: 100}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	gw := &fakeGateway{createErr: errors.New("gateway down")}

	res, err := newService(store, carts, gw).PlaceOrder(context.Background(), "u1", validShipping())

	// order placement still succeeds: stock reserved, cart cleared
	require.NoError(t, err)
	require.NotEmpty(t, res.Order.ID)
	require.Nil(t, res.Session)
	require.Equal(t, "payment processing skipped", res.Note)
	require.Equal(t, 4, store.stock("A"))
	require.True(t, carts.cleared["u1"])
	require.Equal(t, orders.PaymentInitialized, res.Order.PaymentStatus)
	require.Nil(t, res.Order.PaymentSessionID)
	require.Contains(t, string(store.skipped[res.Order.ID]), "payment session skipped")
}

func TestPlaceOrder_NotConfiguredIsDegradedToo(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 1, price: 100}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	gw := &fakeGateway{createErr: payment.ErrNotConfigured}

	res, err := newService(store, carts, gw).PlaceOrder(context.Background(), "u1", validShipping())
	require.NoError(t, err)
	require.Nil(t, res.Session)
	require.Equal(t, 0, store.stock("A"))
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 1, price: 100}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	carts.items["u2"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	svc := newService(store, carts, &fakeGateway{session: &payment.Session{SessionID: "s"}})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), user, validShipping())
		}(i, user)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var ins *orders.InsufficientStockError
		require.ErrorAs(t, err, &ins)
		insufficient++
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)
	require.Equal(t, 0, store.stock("A"))
	require.Len(t, store.orders, 1)
}

func TestPlaceOrder_PriceCapturedAtPlacement(t *testing.T) {
	store := newFakeStore()
	store.products["A"] = &fakeProduct{stock: 10, price: 100}
	carts := newFakeCart()
	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	svc := newService(store, carts, &fakeGateway{session: &payment.Session{SessionID: "s"}})

	res1, err := svc.PlaceOrder(context.Background(), "u1", validShipping())
	require.NoError(t, err)

	// catalog price changes after the first order
	store.mu.Lock()
	store.products["A"].price = 999
	store.mu.Unlock()

	carts.items["u1"] = []orders.CartItem{{ProductID: "A", Qty: 1}}
	res2, err := svc.PlaceOrder(context.Background(), "u1", validShipping())
	require.NoError(t, err)

	require.Equal(t, int64(100), res1.Order.Items[0].PriceCents)
	require.Equal(t, int64(999), res2.Order.Items[0].PriceCents)
}
