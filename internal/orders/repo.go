package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// PlaceOrder runs the whole stock-and-order unit in one transaction:
// per line item (in snapshot order) lock the product row, check stock,
// decrement, capture the unit price; then insert the order and its items.
// Any failure rolls the whole thing back — no partial orders, no partial
// decrements.
func (r *Repo) PlaceOrder(ctx context.Context, d Draft) (*Order, error) {
	if len(d.Items) == 0 {
		return nil, ErrEmptyCart
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	order := &Order{
		ID:            uuid.NewString(),
		UserID:        d.UserID,
		Status:        StatusPending,
		PaymentStatus: PaymentInitialized,
		Shipping:      d.Shipping,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, it := range d.Items {
		if it.Qty < 1 {
			return nil, &ValidationError{Field: "qty"}
		}
		var price int64
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT price_cents, stock FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID,
		).Scan(&price, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if it.Qty > stock {
			return nil, &InsufficientStockError{ProductID: it.ProductID, Requested: it.Qty, Available: stock}
		}

		// The row lock above makes this the controlling check; the stock >= qty
		// guard is a belt against anything that slipped past it.
		ct, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1 AND stock >= $2`,
			it.ProductID, it.Qty,
		)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			return nil, &InsufficientStockError{ProductID: it.ProductID, Requested: it.Qty, Available: stock}
		}

		order.Items = append(order.Items, LineItem{ProductID: it.ProductID, Qty: it.Qty, PriceCents: price})
		order.TotalCents += int64(it.Qty) * price
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, payment_status, total_cents,
		                   full_name, address, city, state, phone, alt_phone,
		                   created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		order.ID, order.UserID, order.Status, order.PaymentStatus, order.TotalCents,
		d.Shipping.FullName, d.Shipping.Address, d.Shipping.City, d.Shipping.State,
		d.Shipping.Phone, nullIfEmpty(d.Shipping.AltPhone), now,
	)
	if err != nil {
		return nil, err
	}

	for _, it := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4)`,
			order.ID, it.ProductID, it.Qty, it.PriceCents,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	}
	return order, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Order, error) {
	o := &Order{}
	var altPhone *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, payment_status, total_cents,
		       full_name, address, city, state, phone, alt_phone,
		       payment_session_id, gateway_response, created_at, updated_at
		FROM orders WHERE id=$1`, id,
	).Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents,
		&o.Shipping.FullName, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.Phone, &altPhone,
		&o.PaymentSessionID, &o.GatewayResponse, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if altPhone != nil {
		o.Shipping.AltPhone = *altPhone
	}

	o.Items, err = r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT product_id, qty, price_cents FROM order_items WHERE order_id=$1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AttachPaymentSession is a non-atomic follow-up: the order already exists,
// we are just recording what the gateway gave us.
func (r *Repo) AttachPaymentSession(ctx context.Context, orderID, sessionID string, raw []byte) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_session_id = $2, gateway_response = $3, updated_at = now()
		WHERE id = $1`,
		orderID, sessionID, raw,
	)
	return err
}

// MarkPaymentSkipped records that no payment session was opened for the
// order. The session reference stays NULL and payment status stays
// INITIALIZED so the sweeper picks the order up later.
func (r *Repo) MarkPaymentSkipped(ctx context.Context, orderID string, marker []byte) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_session_id = NULL, gateway_response = $2, updated_at = now()
		WHERE id = $1`,
		orderID, marker,
	)
	return err
}

// RecordPaymentStatus applies a gateway-reported payment status to an order
// still in INITIALIZED state. Returns false when the order was already
// resolved by a concurrent sweep or webhook, which makes repeats no-ops.
func (r *Repo) RecordPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus, raw []byte) (bool, error) {
	next := OrderStatusForPayment(ps)
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2,
		    gateway_response = $3,
		    status = COALESCE(NULLIF($4, ''), status),
		    updated_at = now()
		WHERE id = $1 AND payment_status = 'INITIALIZED'`,
		orderID, ps, raw, string(next),
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// FindStaleInitialized returns orders whose payment status has stayed
// INITIALIZED past the threshold, items included (the sweeper needs them to
// restore stock).
func (r *Repo) FindStaleInitialized(ctx context.Context, olderThan time.Duration, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, payment_status, total_cents, created_at, updated_at
		FROM orders
		WHERE payment_status = 'INITIALIZED' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`,
		time.Now().UTC().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// Abandon marks the order ABANDONED and puts its reserved stock back, in one
// transaction. The payment_status guard makes it idempotent: a second sweep
// (or a race with RecordPaymentStatus) affects zero rows and restores nothing.
func (r *Repo) Abandon(ctx context.Context, o *Order) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'ABANDONED', status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND payment_status = 'INITIALIZED'`,
		o.ID,
	)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Qty,
		); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	}
	return true, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
