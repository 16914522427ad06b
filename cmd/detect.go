package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/whttp"
)

// detectCmd implements: partscope detect
//
// Fetches a sample search-results page for a supplier (or reads one from
// disk), auto-detects a selector strategy from its repeated structure, and
// stores it as the supplier's active strategy unless a manual override is
// already in place.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Auto-detect a supplier's result-page selectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		supplierID, _ := cmd.Flags().GetString("supplier")
		urlTemplate, _ := cmd.Flags().GetString("url")
		sampleQuery, _ := cmd.Flags().GetString("sample-query")
		sampleFile, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if supplierID == "" {
			return fmt.Errorf("--supplier is required")
		}
		if urlTemplate == "" && sampleFile == "" {
			return fmt.Errorf("--url or --file is required")
		}

		var sampleHTML string
		if sampleFile != "" {
			data, err := os.ReadFile(sampleFile)
			if err != nil {
				return err
			}
			sampleHTML = string(data)
		} else {
			searchURL := strings.ReplaceAll(urlTemplate, "{query}", url.QueryEscape(sampleQuery))
			client := whttp.NewClient(scrapeOptions().Timeout)
			if proxy, _ := cmd.Flags().GetString("proxy"); proxy != "" {
				if err := whttp.SetupProxy(client, proxy); err != nil {
					return err
				}
			}
			res, err := whttp.Fetch(cmd.Context(), &whttp.Request{URL: searchURL}, client)
			if err != nil {
				return fmt.Errorf("fetching sample page: %w", err)
			}
			sampleHTML = res.Body
		}

		st, err := strategy.Detect(sampleHTML, supplierID, urlTemplate, strategy.DetectOptions{
			ConfidenceFloor: viper.GetFloat64("detect.confidence_floor"),
		})
		if err != nil {
			return err
		}

		printStrategy(st)
		if dryRun {
			return nil
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		version, err := db.SetStrategy(cmd.Context(), st)
		if err != nil {
			return err
		}
		fmt.Printf("Stored as version %d for supplier %s\n", version, supplierID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringP("supplier", "s", "", "Supplier ID to detect selectors for")
	detectCmd.Flags().StringP("url", "u", "", "Search URL template containing {query}")
	detectCmd.Flags().StringP("sample-query", "q", "resistor", "Query used to fetch the sample page")
	detectCmd.Flags().StringP("file", "f", "", "Detect from a local HTML file instead of fetching")
	detectCmd.Flags().Bool("dry-run", false, "Print the detected strategy without storing it")
}

func printStrategy(st strategy.Strategy) {
	kind := "auto"
	if st.Manual {
		kind = "manual"
	}
	fmt.Printf("Strategy for %s (%s, confidence %.2f):\n", st.SupplierID, kind, st.Confidence)
	fmt.Printf("  url:         %s\n", st.SearchURLTemplate)
	fmt.Printf("  container:   %s\n", st.Container)
	fmt.Printf("  part number: %s\n", st.Fields.PartNumber)
	fmt.Printf("  description: %s\n", st.Fields.Description)
	fmt.Printf("  price:       %s\n", st.Fields.Price)
	fmt.Printf("  quantity:    %s\n", st.Fields.Quantity)
	fmt.Printf("  link:        %s\n", st.Fields.PurchaseLink)
}
