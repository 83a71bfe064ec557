package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

const orderColumns = `id, customer_phone, parsed, total, status, delivery_status, meta,
	created_at, updated_at, paid_at, delivered_at`

// PersistOrder inserts a new order and returns it with its generated id.
// Status defaults to PENDING; delivery always starts at PENDING.
func (s *Store) PersistOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error) {
	if in.From == "" {
		return nil, fmt.Errorf("persist order: customer is required")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}

	parsedJSON, err := marshalParsed(in.Parsed)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	metaJSON, err := marshalMeta(in.Meta)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	id := s.ids.Generate()
	now := formatTime(s.clock.Now())

	var paidAt sql.NullString
	if status == domain.StatusPaid {
		paidAt = sql.NullString{String: now, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders
		(id, customer_phone, parsed, total, status, delivery_status, meta, created_at, updated_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		in.From,
		parsedJSON,
		in.Total.String(),
		string(status),
		string(domain.DeliveryPending),
		metaJSON,
		now,
		now,
		paidAt,
	)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	return s.GetOrder(ctx, id)
}

// GetOrder retrieves an order by id.
// Returns domain.ErrOrderNotFound if it does not exist.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// GetLastOrderByCustomer returns the customer's most recent order.
// Returns domain.ErrOrderNotFound if the customer has none.
func (s *Store) GetLastOrderByCustomer(ctx context.Context, phone string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_phone = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, phone)
	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("last order for %s: %w", phone, err)
	}
	return o, nil
}

// ListOrdersByCustomer returns the customer's orders, newest first.
func (s *Store) ListOrdersByCustomer(ctx context.Context, phone string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_phone = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateDeliveryStatus moves an order to the given logistics state.
//
// DELIVERED also settles payment: status becomes PAID, paid_at is set if
// unset and delivered_at is set only on the first transition to DELIVERED.
// Returns domain.ErrOrderNotFound without touching anything for unknown ids.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) (*domain.Order, error) {
	if _, err := domain.ParseDeliveryStatus(string(status)); err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}
	now := formatTime(s.clock.Now())

	var (
		res sql.Result
		err error
	)
	if status == domain.DeliveryDelivered {
		res, err = s.db.ExecContext(ctx, `
			UPDATE orders SET
				delivery_status = ?,
				status          = 'PAID',
				paid_at         = COALESCE(paid_at, ?),
				delivered_at    = COALESCE(delivered_at, ?),
				updated_at      = ?
			WHERE id = ?
		`, string(status), now, now, now, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE orders SET delivery_status = ?, updated_at = ?
			WHERE id = ?
		`, string(status), now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, fmt.Errorf("update delivery status %s: %w", id, err)
	}

	return s.GetOrder(ctx, id)
}

// MarkPaid sets the order status to PAID and merges meta into the order's
// meta bag. Calling it on an already paid order only merges meta; paid_at
// keeps its first value.
func (s *Store) MarkPaid(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error) {
	return s.updateWithMeta(ctx, id, meta, true)
}

// MergeMeta merges keys into the order's meta bag.
func (s *Store) MergeMeta(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error) {
	return s.updateWithMeta(ctx, id, meta, false)
}

func (s *Store) updateWithMeta(ctx context.Context, id string, meta domain.Meta, paid bool) (*domain.Order, error) {
	op := "merge meta"
	if paid {
		op = "mark paid"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	var metaJSON string
	err = tx.QueryRowContext(ctx, `SELECT meta FROM orders WHERE id = ?`, id).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", op, id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: select meta: %w", op, err)
	}

	current, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	merged, err := marshalMeta(current.Merge(meta))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := formatTime(s.clock.Now())
	if paid {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET
				status     = 'PAID',
				paid_at    = COALESCE(paid_at, ?),
				meta       = ?,
				updated_at = ?
			WHERE id = ?
		`, now, merged, now, id)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET meta = ?, updated_at = ? WHERE id = ?
		`, merged, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: update: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return s.GetOrder(ctx, id)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                      domain.Order
		parsedJSON, metaJSON   string
		total                  string
		status, deliveryStatus string
		createdAt, updatedAt   string
		paidAt, deliveredAt    sql.NullString
	)
	err := row.Scan(&o.ID, &o.From, &parsedJSON, &total, &status, &deliveryStatus, &metaJSON,
		&createdAt, &updatedAt, &paidAt, &deliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if o.Parsed, err = unmarshalParsed(parsedJSON); err != nil {
		return nil, err
	}
	if o.Meta, err = unmarshalMeta(metaJSON); err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	o.Status = domain.Status(status)
	o.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)

	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if o.PaidAt, err = parseNullTime(paidAt); err != nil {
		return nil, err
	}
	if o.DeliveredAt, err = parseNullTime(deliveredAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
