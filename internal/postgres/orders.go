package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// OrderStore is an orders.Store on Postgres. Items are rewritten as a whole
// on every save, inside the same transaction as the order row.
type OrderStore struct{ DB *pgxpool.Pool }

const orderColumns = `id, customer_id, status, total::text, currency, payment_method, priority, created_at, processed_at`

func (s *OrderStore) Save(ctx context.Context, o *orders.Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", orders.ErrInvalidOrder)
	}
	return s.write(ctx, o.Snapshot(), true)
}

func (s *OrderStore) Update(ctx context.Context, o *orders.Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", orders.ErrInvalidOrder)
	}
	return s.write(ctx, o.Snapshot(), false)
}

func (s *OrderStore) write(ctx context.Context, snap orders.Snapshot, upsert bool) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	args := []any{
		snap.ID, snap.CustomerID, string(snap.Status), snap.Total.Amount.String(), snap.Total.Currency,
		string(snap.PaymentMethod), snap.Priority, snap.CreatedAt, snap.ProcessedAt,
	}
	if upsert {
		_, err = tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, status, total, currency, payment_method, priority, created_at, processed_at)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				customer_id = EXCLUDED.customer_id, status = EXCLUDED.status, total = EXCLUDED.total,
				currency = EXCLUDED.currency, payment_method = EXCLUDED.payment_method,
				priority = EXCLUDED.priority, created_at = EXCLUDED.created_at, processed_at = EXCLUDED.processed_at`,
			args...)
	} else {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, `
			UPDATE orders SET customer_id = $2, status = $3, total = $4::numeric, currency = $5,
				payment_method = $6, priority = $7, created_at = $8, processed_at = $9
			WHERE id = $1`,
			args...)
		if err == nil && tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", orders.ErrOrderNotFound, snap.ID)
		}
	}
	if err != nil {
		return fmt.Errorf("write order %s: %w", snap.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("clear items of %s: %w", snap.ID, err)
	}
	for i, it := range snap.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, line, product_id, product_name, unit_price, currency, quantity)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
			snap.ID, i, it.ProductID, it.ProductName, it.UnitPrice.Amount.String(), it.UnitPrice.Currency, it.Quantity)
		if err != nil {
			return fmt.Errorf("insert item %d of %s: %w", i, snap.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*orders.Order, error) {
	out, err := s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	return out[0], nil
}

func (s *OrderStore) FindByCustomer(ctx context.Context, customerID string) ([]*orders.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at, id`, customerID)
}

func (s *OrderStore) FindPending(ctx context.Context) ([]*orders.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at, id`, string(orders.StatusPending))
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (s *OrderStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *OrderStore) query(ctx context.Context, sql string, args ...any) ([]*orders.Order, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var snaps []orders.Snapshot
	for rows.Next() {
		var (
			snap      orders.Snapshot
			status    string
			total     string
			currency  string
			method    string
			processed *time.Time
		)
		if err := rows.Scan(&snap.ID, &snap.CustomerID, &status, &total, &currency, &method,
			&snap.Priority, &snap.CreatedAt, &processed); err != nil {
			rows.Close()
			return nil, err
		}
		amount, err := decimal.NewFromString(total)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("order %s total %q: %w", snap.ID, total, err)
		}
		snap.Status = orders.Status(status)
		snap.Total = orders.NewMoney(amount, currency)
		snap.PaymentMethod = orders.PaymentMethod(method)
		snap.ProcessedAt = processed
		snaps = append(snaps, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	ids := make([]string, len(snaps))
	for i, sn := range snaps {
		ids[i] = sn.ID
	}
	items, err := s.items(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*orders.Order, 0, len(snaps))
	for _, sn := range snaps {
		sn.Items = items[sn.ID]
		o, err := orders.FromSnapshot(sn)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *OrderStore) items(ctx context.Context, orderIDs []string) (map[string][]orders.Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT order_id, product_id, product_name, unit_price::text, currency, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]orders.Item, len(orderIDs))
	for rows.Next() {
		var (
			orderID, price, currency string
			it                       orders.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &price, &currency, &it.Quantity); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("item %s of %s price %q: %w", it.ProductID, orderID, price, err)
		}
		it.UnitPrice = orders.NewMoney(amount, currency)
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
