package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/pkg/bom"
	"github.com/partscope/partscope/pkg/datasheets"
	"github.com/partscope/partscope/pkg/match"
	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/storage"
)

// matchCmd implements: partscope match
//
// Parses a BOM file, matches every line against the parts cache, and prints
// a ranked table (or writes a CSV with --out). Matching never scrapes; run
// 'partscope scrape' first to populate the cache.
var matchCmd = &cobra.Command{
	Use:   "match <bom-file>",
	Short: "Match a BOM against the cached parts catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := bom.Parse(args[0])
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			return fmt.Errorf("no usable rows in %s", args[0])
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		opts := storage.QueryOptions{StaleAfter: staleness()}
		opts.InStockOnly, _ = cmd.Flags().GetBool("in-stock")
		opts.IncludeStale, _ = cmd.Flags().GetBool("include-stale")
		if supplier, _ := cmd.Flags().GetString("supplier"); supplier != "" {
			opts.Suppliers = splitList(supplier)
		}

		catalog, err := db.QueryParts(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(catalog) == 0 {
			fmt.Println("Parts cache is empty for this filter. Run 'partscope scrape' first.")
			return nil
		}

		topK, _ := cmd.Flags().GetInt("top")
		engine := matchEngine()

		ds := &datasheets.Client{
			Endpoint:   viper.GetString("datasheet.endpoint"),
			ResultPath: viper.GetString("datasheet.result_path"),
			URLField:   viper.GetString("datasheet.url_field"),
		}

		type line struct {
			query   parts.Query
			results []match.Result
		}
		var lines []line
		for _, q := range queries {
			results := engine.Match(q, catalog, topK)
			for i := range results {
				if results[i].Record.DatasheetURL == "" {
					results[i].Record.DatasheetURL = ds.Lookup(cmd.Context(), results[i].Record.MPN)
				}
			}
			lines = append(lines, line{query: q, results: results})
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w := csv.NewWriter(f)
			w.Write([]string{"query_part_number", "query_description", "quantity", "rank", "supplier", "part_number", "score", "exact", "price", "currency", "line_total", "stock", "purchase_url", "datasheet_url"})
			// Budget estimate sums the best candidate's line total per BOM line.
			budget := 0.0
			budgetComplete := true
			for _, l := range lines {
				if len(l.results) == 0 {
					budgetComplete = false
				}
				for i, r := range l.results {
					stock := ""
					if r.Record.Qty != parts.QtyUnknown {
						stock = fmt.Sprintf("%d", r.Record.Qty)
					}
					formatted, total, ok := lineTotal(r.Record.Price, l.query.Quantity)
					if ok && i == 0 {
						budget += total
					}
					if !ok && i == 0 {
						budgetComplete = false
					}
					w.Write([]string{
						l.query.PartNumber, l.query.Description, fmt.Sprintf("%d", l.query.Quantity), fmt.Sprintf("%d", i+1),
						r.Record.SupplierID, r.Record.PartNumber,
						fmt.Sprintf("%.3f", r.Score), fmt.Sprintf("%t", r.IsExact),
						r.Record.Price, r.Record.Currency, formatted, stock,
						r.Record.PurchaseURL, r.Record.DatasheetURL,
					})
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
			fmt.Printf("Wrote matches for %d BOM lines to %s\n", len(lines), out)
			if budget > 0 {
				qualifier := ""
				if !budgetComplete {
					qualifier = " (partial: some lines had no priced match)"
				}
				fmt.Printf("Estimated budget from top candidates: %.2f%s\n", budget, qualifier)
			}
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, l := range lines {
			label := l.query.PartNumber
			if label == "" {
				label = l.query.Description
			}
			if len(l.results) == 0 {
				fmt.Fprintf(tw, "%s\t(no match)\t\t\t\t\n", label)
				continue
			}
			for i, r := range l.results {
				exact := ""
				if r.IsExact {
					exact = "exact"
				}
				price := r.Record.Price
				if price != "" && r.Record.Currency != "" {
					price += " " + r.Record.Currency
				}
				fmt.Fprintf(tw, "%s\t#%d\t%s/%s\t%.3f %s\t%s\t%s\n",
					label, i+1, r.Record.SupplierID, r.Record.PartNumber, r.Score, exact, price, r.Record.Description)
			}
		}
		tw.Flush()
		return nil
	},
}

// lineTotal computes quantity x unit price for the budget columns. ok
// reports whether both the price and a positive quantity were known.
func lineTotal(price string, qty int) (formatted string, total float64, ok bool) {
	unit, err := strconv.ParseFloat(price, 64)
	if err != nil || qty <= 0 {
		return "", 0, false
	}
	total = unit * float64(qty)
	return fmt.Sprintf("%.2f", total), total, true
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().IntP("top", "t", 3, "Candidates to keep per BOM line")
	matchCmd.Flags().StringP("supplier", "s", "", "Restrict matching to these suppliers (comma-separated)")
	matchCmd.Flags().Bool("in-stock", false, "Only match against records with known stock > 0")
	matchCmd.Flags().Bool("include-stale", false, "Include cache records older than the staleness window")
	matchCmd.Flags().StringP("out", "o", "", "Write results to a CSV file instead of stdout")
}
