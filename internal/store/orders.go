package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/market"
)

// Store is the ledger: orders plus the stock counters they settle against.
type Store struct{ DB *pgxpool.Pool }

const orderCols = `id, user_id, COALESCE(payment_id,''), COALESCE(txid,''), status, total_amount::text, created_at, updated_at`

func scanOrder(row pgx.Row) (market.Order, error) {
	var (
		o     market.Order
		total string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.PaymentID, &o.Txid, &o.Status, &total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, market.ErrOrderNotFound
		}
		return o, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return o, fmt.Errorf("total_amount: %w", err)
	}
	return o, nil
}

func (s *Store) loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]market.OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT product_id, qty, unit_price::text FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []market.OrderItem
	for rows.Next() {
		var (
			it    market.OrderItem
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("unit_price: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) OrderByID(ctx context.Context, id string) (market.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return o, err
	}
	o.Items, err = s.loadItems(ctx, s.DB, o.ID)
	return o, err
}

func (s *Store) OrderByPaymentID(ctx context.Context, paymentID string) (market.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE payment_id=$1`, paymentID))
	if err != nil {
		return o, err
	}
	o.Items, err = s.loadItems(ctx, s.DB, o.ID)
	return o, err
}

// CreateOrder inserts the order and its line items in one tx. A duplicate
// payment_id fails with market.ErrDuplicatePayment.
func (s *Store) CreateOrder(ctx context.Context, o market.Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var paymentID any
	if o.PaymentID != "" {
		paymentID = o.PaymentID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, payment_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, o.ID, o.UserID, paymentID, o.Status, o.TotalAmount.String(), o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return market.ErrDuplicatePayment
		}
		return err
	}

	for _, it := range o.Items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, unit_price)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.UnitPrice.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// AttachPayment binds a platform payment to an existing order. Conditional on
// payment_id still being unset; re-attaching the same payment is a no-op.
func (s *Store) AttachPayment(ctx context.Context, orderID, paymentID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET payment_id=$2, updated_at=now()
		WHERE id=$1 AND payment_id IS NULL`, orderID, paymentID)
	if err != nil {
		if isUniqueViolation(err) {
			return market.ErrDuplicatePayment
		}
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	o, err := s.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentID == paymentID {
		return nil
	}
	return fmt.Errorf("%w: order %s already bound to payment %s", market.ErrConflict, orderID, o.PaymentID)
}

// SettleOrder moves an order into PAID and decrements stock for every line
// item, all in one tx. Either the full transition commits or nothing does.
func (s *Store) SettleOrder(ctx context.Context, orderID, txid string) ([]market.StockShortfall, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3, txid=$2, updated_at=now()
		WHERE id=$1 AND status=$4`,
		orderID, txid, market.StatusPaid, market.StatusPendingPayment)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() != 1 {
		// lost the race: some other writer already moved this order
		return nil, market.ErrConflict
	}

	items, err := s.loadItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	var shortfalls []market.StockShortfall
	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET available_stock = available_stock - $2
			WHERE id=$1 AND available_stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			var avail int
			if err := tx.QueryRow(ctx, `SELECT available_stock FROM products WHERE id=$1`, it.ProductID).Scan(&avail); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, err
			}
			shortfalls = append(shortfalls, market.StockShortfall{
				ProductID: it.ProductID, Required: it.Qty, Available: avail,
			})
		}
	}
	if len(shortfalls) > 0 {
		return shortfalls, market.ErrStockExhausted // rollback via defer
	}

	return nil, tx.Commit(ctx)
}

// CancelOrder is conditional on the order still awaiting payment.
func (s *Store) CancelOrder(ctx context.Context, orderID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, market.StatusCancelled, market.StatusPendingPayment)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return market.ErrConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
