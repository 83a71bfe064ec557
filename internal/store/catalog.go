package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

// LoadCatalog returns the active catalog items ordered by sort_order, id.
// An empty table yields an empty catalog, not an error.
func (s *Store) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, unit, section, description, price_1_9, price_10_19, price_20_plus
		FROM catalog_items
		WHERE is_active = 1
		ORDER BY sort_order ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	cat := domain.Catalog{Products: []domain.Product{}}
	for rows.Next() {
		var (
			p              domain.Product
			base, mid, top sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Label, &p.Unit, &p.Section, &p.Description, &base, &mid, &top); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan catalog item: %w", err)
		}
		p.Pricing = domain.Pricing{Base: nullPrice(base), Mid: nullPrice(mid), Top: nullPrice(top)}
		cat.Products = append(cat.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("iterate catalog: %w", err)
	}
	return cat, nil
}

// ReplaceCatalog atomically replaces every catalog item. Product order is
// kept through sort_order.
func (s *Store) ReplaceCatalog(ctx context.Context, cat domain.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace catalog: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items`); err != nil {
		return fmt.Errorf("replace catalog: delete: %w", err)
	}

	for i, p := range cat.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_items
			(id, label, unit, section, description, price_1_9, price_10_19, price_20_plus, is_active, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`,
			p.ID, p.Label, p.Unit, p.Section, p.Description,
			priceValue(p.Pricing.Base), priceValue(p.Pricing.Mid), priceValue(p.Pricing.Top),
			i,
		)
		if err != nil {
			return fmt.Errorf("replace catalog: insert %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace catalog: commit: %w", err)
	}
	return nil
}

func nullPrice(v sql.NullInt64) decimal.NullDecimal {
	if !v.Valid {
		return decimal.NullDecimal{}
	}
	return domain.Price(v.Int64)
}

// priceValue stores whole currency units; catalog prices carry no cents.
func priceValue(d decimal.NullDecimal) sql.NullInt64 {
	if !d.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: d.Decimal.IntPart(), Valid: true}
}
