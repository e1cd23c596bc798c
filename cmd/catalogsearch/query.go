package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	recommenduc "github.com/kailas-cloud/catalogsearch/internal/usecase/recommend"
)

type queryFlags struct {
	priceMin    float64
	priceMax    float64
	categoryID  int64
	brandID     int64
	inStockOnly bool
}

func newQueryCmd(root *rootFlags) *cobra.Command {
	var qf *queryFlags

	cmd := &cobra.Command{
		Use:   `query "<text>"`,
		Short: "Answer one chat query and print the JSON response",
		Example: `  catalogsearch query "холодильник до 200 тыс"
  catalogsearch query "кофемашина" --price-max 150000 --in-stock-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.env)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.checkSnapshot(ctx); err != nil {
				return err
			}

			out, err := a.chat.Run(ctx, qf.input(cmd, strings.Join(args, " ")))
			if err != nil {
				return fmt.Errorf("run query: %w", err)
			}
			if out.Products == nil {
				out.Products = []recommenduc.Product{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			return nil
		},
	}

	qf = bindQueryFlags(cmd)
	return cmd
}

func bindQueryFlags(cmd *cobra.Command) *queryFlags {
	qf := &queryFlags{}
	f := cmd.Flags()
	f.Float64Var(&qf.priceMin, "price-min", 0, "minimum price (overrides the budget parsed from text)")
	f.Float64Var(&qf.priceMax, "price-max", 0, "maximum price (overrides the budget parsed from text)")
	f.Int64Var(&qf.categoryID, "category-id", 0, "restrict to one category id (disables category matching)")
	f.Int64Var(&qf.brandID, "brand-id", 0, "restrict to one brand id")
	f.BoolVar(&qf.inStockOnly, "in-stock-only", false, "only items with quantity > 0")
	return qf
}

// input maps flags to the chat input; only flags given on the command line are set.
func (qf *queryFlags) input(cmd *cobra.Command, query string) recommenduc.Input {
	in := recommenduc.Input{Query: query, InStockOnly: qf.inStockOnly}
	if cmd.Flags().Changed("price-min") {
		in.PriceMin = &qf.priceMin
	}
	if cmd.Flags().Changed("price-max") {
		in.PriceMax = &qf.priceMax
	}
	if cmd.Flags().Changed("category-id") {
		in.CategoryID = &qf.categoryID
	}
	if cmd.Flags().Changed("brand-id") {
		in.BrandID = &qf.brandID
	}
	return in
}
