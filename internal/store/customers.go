package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pamperito/internal/domain"
)

// GetCustomer looks a customer up by phone.
// Returns domain.ErrCustomerNotFound if there is none.
func (s *Store) GetCustomer(ctx context.Context, phone string) (*domain.Customer, error) {
	var (
		c                    domain.Customer
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT phone, name, address, zone, created_at, updated_at
		FROM customers
		WHERE phone = ?
	`, phone).Scan(&c.Phone, &c.Name, &c.Address, &c.Zone, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get customer %s: %w", phone, domain.ErrCustomerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCustomer inserts the customer or updates the non-empty fields of
// the patch. Empty patch fields never overwrite stored values.
func (s *Store) UpsertCustomer(ctx context.Context, p domain.CustomerPatch) (*domain.Customer, error) {
	if p.Phone == "" {
		return nil, fmt.Errorf("upsert customer: phone is required")
	}
	now := formatTime(s.clock.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (phone, name, address, zone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name       = COALESCE(NULLIF(excluded.name, ''), customers.name),
			address    = COALESCE(NULLIF(excluded.address, ''), customers.address),
			zone       = COALESCE(NULLIF(excluded.zone, ''), customers.zone),
			updated_at = excluded.updated_at
	`, p.Phone, p.Name, p.Address, p.Zone, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	return s.GetCustomer(ctx, p.Phone)
}
