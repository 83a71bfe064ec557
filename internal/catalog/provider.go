package catalog

import (
	"context"
	"log/slog"

	"github.com/roach88/pamperito/internal/domain"
)

// Source loads the current catalog.
type Source interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// Static serves a fixed catalog.
type Static domain.Catalog

// LoadCatalog returns the fixed catalog.
func (s Static) LoadCatalog(context.Context) (domain.Catalog, error) {
	return domain.Catalog(s), nil
}

// Fallback serves Primary and degrades to Secondary when Primary fails or
// has no active products.
type Fallback struct {
	Primary   Source
	Secondary domain.Catalog
	Logger    *slog.Logger
}

// LoadCatalog never fails while Secondary is non-empty.
func (f *Fallback) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	if f.Primary == nil {
		return f.Secondary, nil
	}

	cat, err := f.Primary.LoadCatalog(ctx)
	if err != nil {
		f.logger().Warn("catalog source failed, using fallback", "error", err, "products", f.Secondary.Len())
		if f.Secondary.Len() == 0 {
			return domain.Catalog{}, err
		}
		return f.Secondary, nil
	}
	if cat.Len() == 0 {
		f.logger().Debug("catalog source empty, using fallback", "products", f.Secondary.Len())
		return f.Secondary, nil
	}
	return cat, nil
}

func (f *Fallback) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
