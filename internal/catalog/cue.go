package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

//go:embed schema.cue
var schemaCUE string

// fileProduct mirrors one entry of the products map in a catalog file.
type fileProduct struct {
	Label       string `json:"label"`
	Unit        string `json:"unit"`
	Section     string `json:"section"`
	Description string `json:"description"`
	Sort        int    `json:"sort"`
	Pricing     struct {
		Base *int64 `json:"base"`
		Mid  *int64 `json:"mid"`
		Top  *int64 `json:"top"`
	} `json:"pricing"`
}

type file struct {
	Products map[string]fileProduct `json:"products"`
}

// LoadFile reads and validates a CUE catalog file.
func LoadFile(path string) (domain.Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src against the catalog schema and converts it.
// Products are ordered by their sort field, then by id.
//
// Example:
//
//	products: carbon_5kg: {
//		label: "Carbón - bolsa 5kg"
//		unit:  "bolsa"
//		pricing: {base: 5000, mid: 4700, top: 3500}
//	}
func Parse(filename string, src []byte) (domain.Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("compile catalog schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("compile %s: %w", filename, err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return domain.Catalog{}, fmt.Errorf("validate %s: %w", filename, err)
	}

	var f file
	if err := v.Decode(&f); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode %s: %w", filename, err)
	}

	return f.toCatalog(), nil
}

func (f file) toCatalog() domain.Catalog {
	ids := make([]string, 0, len(f.Products))
	for id := range f.Products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.Products[ids[i]], f.Products[ids[j]]
		if a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		return ids[i] < ids[j]
	})

	out := domain.Catalog{Products: make([]domain.Product, 0, len(ids))}
	for _, id := range ids {
		fp := f.Products[id]
		unit := fp.Unit
		if unit == "" {
			unit = "unidad"
		}
		out.Products = append(out.Products, domain.Product{
			ID:          id,
			Label:       fp.Label,
			Unit:        unit,
			Section:     fp.Section,
			Description: fp.Description,
			Pricing: domain.Pricing{
				Base: tier(fp.Pricing.Base),
				Mid:  tier(fp.Pricing.Mid),
				Top:  tier(fp.Pricing.Top),
			},
		})
	}
	return out
}

func tier(v *int64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return domain.Price(*v)
}
