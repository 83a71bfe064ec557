package store

import (
	"context"
	"fmt"
)

// MarkPaymentProcessed records a payment notification id.
// Returns first=true only for the call that inserted the id; repeats are
// silently ignored (ON CONFLICT DO NOTHING).
func (s *Store) MarkPaymentProcessed(ctx context.Context, paymentID string) (first bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_notifications (payment_id, received_at)
		VALUES (?, ?)
		ON CONFLICT(payment_id) DO NOTHING
	`, paymentID, formatTime(s.clock.Now()))
	if err != nil {
		return false, fmt.Errorf("mark payment processed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment processed: rows affected: %w", err)
	}
	return n > 0, nil
}
