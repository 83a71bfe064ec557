package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pamperito/internal/catalog"
	"github.com/roach88/pamperito/internal/domain"
)

// CatalogOptions holds flags for the catalog subcommands.
type CatalogOptions struct {
	*RootOptions
	Database string
	DryRun   bool
}

// productView is the JSON shape of a catalog product.
type productView struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Unit    string `json:"unit"`
	Section string `json:"section,omitempty"`
	Base    string `json:"price_1_9,omitempty"`
	Mid     string `json:"price_10_19,omitempty"`
	Top     string `json:"price_20_plus,omitempty"`
}

func newProductView(p domain.Product) productView {
	return productView{
		ID:      p.ID,
		Label:   p.Label,
		Unit:    p.Unit,
		Section: p.Section,
		Base:    tierString(p.Pricing.Base.Decimal.String(), p.Pricing.Base.Valid),
		Mid:     tierString(p.Pricing.Mid.Decimal.String(), p.Pricing.Mid.Valid),
		Top:     tierString(p.Pricing.Top.Decimal.String(), p.Pricing.Top.Valid),
	}
}

func tierString(s string, ok bool) string {
	if !ok {
		return ""
	}
	return s
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
		Long: `Manage the products the bot offers.

Catalog files are CUE and are validated against the built-in schema
before anything is written. Importing replaces every product.

Examples:
  pamperito catalog import ./catalog.cue
  pamperito catalog import ./catalog.cue --dry-run
  pamperito catalog show --format json`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	importCmd := &cobra.Command{
		Use:   "import <file.cue>",
		Short: "Validate a catalog file and replace the stored catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(opts, args[0], cmd)
		},
	}
	importCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate only, do not write")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the stored catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogShow(opts, cmd)
		},
	}

	cmd.AddCommand(importCmd, show)
	return cmd
}

func runCatalogImport(opts *CatalogOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cat, err := catalog.LoadFile(path)
	if err != nil {
		return reportError(out, "E_CATALOG", WrapExitError(ExitCommandError, "invalid catalog", err))
	}
	out.VerboseLog("parsed %d products from %s", cat.Len(), path)

	if opts.DryRun {
		return out.Success(fmt.Sprintf("Catalog valid: %d products", cat.Len()))
	}

	st, _, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ReplaceCatalog(cmd.Context(), cat); err != nil {
		return WrapExitError(ExitFailure, "failed to store catalog", err)
	}
	if opts.Format == "json" {
		return out.Success(map[string]int{"products": cat.Len()})
	}
	return out.Success(fmt.Sprintf("Catalog imported: %d products", cat.Len()))
}

func runCatalogShow(opts *CatalogOptions, cmd *cobra.Command) error {
	st, _, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := st.LoadCatalog(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load catalog", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		views := make([]productView, 0, cat.Len())
		for _, p := range cat.Products {
			views = append(views, newProductView(p))
		}
		return out.Success(views)
	}
	if cat.Len() == 0 {
		return out.Success("Catalog is empty; the bot falls back to the built-in products.")
	}

	var b strings.Builder
	for i, p := range cat.Products {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-20s %-28s %s", p.ID, p.Label, priceLine(p.Pricing))
	}
	return out.Success(b.String())
}

func priceLine(pr domain.Pricing) string {
	tiers := []struct {
		name string
		v    string
		ok   bool
	}{
		{"1-9", domain.FormatMoney(pr.Base.Decimal), pr.Base.Valid},
		{"10-19", domain.FormatMoney(pr.Mid.Decimal), pr.Mid.Valid},
		{"20+", domain.FormatMoney(pr.Top.Decimal), pr.Top.Valid},
	}
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		if t.ok {
			parts = append(parts, t.name+": "+t.v)
		}
	}
	if len(parts) == 0 {
		return "(no price)"
	}
	return strings.Join(parts, "  ")
}
