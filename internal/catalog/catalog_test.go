package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamperito/internal/domain"
)

func TestLoadFile_ValidCatalog(t *testing.T) {
	cat, err := LoadFile(filepath.Join("testdata", "catalog.cue"))
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	// Ordered by sort field, not by id.
	assert.Equal(t, "lenia_10kg", cat.Products[0].ID)
	assert.Equal(t, "carbon_5kg", cat.Products[1].ID)
	assert.Equal(t, "pastilla_encendido", cat.Products[2].ID)

	carbon := cat.Products[1]
	assert.Equal(t, "Carbón - bolsa 5kg", carbon.Label)
	assert.Equal(t, "Carbones", carbon.Section)
	assert.True(t, decimal.NewFromInt(4700).Equal(carbon.Pricing.Mid.Decimal))

	pastilla := cat.Products[2]
	assert.Equal(t, "unidad", pastilla.Unit, "unit defaults to unidad")
	assert.True(t, pastilla.Pricing.Base.Valid)
	assert.False(t, pastilla.Pricing.Mid.Valid)
	assert.False(t, pastilla.Pricing.Top.Valid)
}

func TestParse_RejectsNegativePrice(t *testing.T) {
	src := []byte(`products: bad: {
	label: "Bad"
	pricing: base: -10
}`)

	_, err := Parse("bad.cue", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate bad.cue")
}

func TestParse_RejectsMissingLabel(t *testing.T) {
	src := []byte(`products: nolabel: pricing: base: 10`)

	_, err := Parse("nolabel.cue", src)
	require.Error(t, err)
}

func TestParse_RejectsSyntaxError(t *testing.T) {
	_, err := Parse("broken.cue", []byte(`products: {`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile broken.cue")
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSeed_HasTieredPrices(t *testing.T) {
	cat := Seed()
	require.Equal(t, 8, cat.Len())

	for _, p := range cat.Products {
		assert.True(t, p.Pricing.Base.Valid, "%s base", p.ID)
		assert.NotEmpty(t, p.Label)
		assert.NotEmpty(t, p.Unit)
	}
}

type failingSource struct{ err error }

func (f failingSource) LoadCatalog(context.Context) (domain.Catalog, error) {
	return domain.Catalog{}, f.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	primary := domain.Catalog{Products: []domain.Product{{ID: "only", Label: "Only"}}}

	t.Run("primary wins", func(t *testing.T) {
		f := &Fallback{Primary: Static(primary), Secondary: Seed()}
		cat, err := f.LoadCatalog(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, cat.Len())
	})

	t.Run("empty primary uses secondary", func(t *testing.T) {
		f := &Fallback{Primary: Static(domain.Catalog{}), Secondary: Seed()}
		cat, err := f.LoadCatalog(ctx)
		require.NoError(t, err)
		assert.Equal(t, Seed().Len(), cat.Len())
	})

	t.Run("failing primary uses secondary", func(t *testing.T) {
		f := &Fallback{Primary: failingSource{errors.New("db down")}, Secondary: Seed()}
		cat, err := f.LoadCatalog(ctx)
		require.NoError(t, err)
		assert.Equal(t, Seed().Len(), cat.Len())
	})

	t.Run("failing primary without secondary errors", func(t *testing.T) {
		f := &Fallback{Primary: failingSource{errors.New("db down")}}
		_, err := f.LoadCatalog(ctx)
		require.Error(t, err)
	})

	t.Run("no primary", func(t *testing.T) {
		f := &Fallback{Secondary: Seed()}
		cat, err := f.LoadCatalog(ctx)
		require.NoError(t, err)
		assert.Equal(t, Seed().Len(), cat.Len())
	})
}
