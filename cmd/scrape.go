package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/internal/utils"
	"github.com/partscope/partscope/pkg/bom"
	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/runner"
	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/suppliers"
)

// scrapeCmd implements: partscope scrape
//
// Builds a work list (either ad-hoc --query values or the part numbers of a
// BOM file) crossed with the requested suppliers, then drives a batch run to
// completion, streaming per-batch progress.
var scrapeCmd = &cobra.Command{
	Use:   "scrape [bom-file]",
	Short: "Scrape suppliers for part pricing and availability",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		supplierList, _ := cmd.Flags().GetString("supplier")
		if supplierList == "" {
			return fmt.Errorf("--supplier is required (comma-separated, e.g. lcsc,tronic)")
		}
		supplierIDs := splitList(supplierList)

		queries, _ := cmd.Flags().GetStringArray("query")
		if len(args) == 1 {
			lines, err := bom.Parse(args[0])
			if err != nil {
				return err
			}
			for _, q := range lines {
				if q.PartNumber != "" {
					queries = append(queries, q.PartNumber)
				} else {
					queries = append(queries, q.Description)
				}
			}
		}
		if len(queries) == 0 {
			return fmt.Errorf("nothing to scrape: pass --query or a BOM file")
		}

		var work []parts.WorkItem
		for _, id := range supplierIDs {
			for _, q := range queries {
				work = append(work, parts.WorkItem{SupplierID: id, Query: q})
			}
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		scrapers := map[string]suppliers.Scraper{}
		for _, id := range supplierIDs {
			scrapers[id] = scraperFor(id)
		}

		tracker := progress.New(db)
		mgr := runner.NewManager(runner.Config{
			Store:         db,
			Tracker:       tracker,
			Scrapers:      scrapers,
			BatchSize:     viper.GetInt("runner.batch_size"),
			Concurrency:   viper.GetInt("runner.concurrency"),
			ScrapeOptions: scrapeOptions(),
			Log:           utils.Log,
			OnBatchDone: func(runID, supplierID string, batchQueries, recordsStored int) {
				fmt.Printf("  %s: batch of %d queries done, %d records stored\n", supplierID, batchQueries, recordsStored)
			},
		})

		runID, err := mgr.StartRun(cmd.Context(), work)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s started: %d queries across %d suppliers\n", runID, len(work), len(supplierIDs))

		run, err := waitForRun(cmd.Context(), tracker, runID)
		if err != nil {
			return err
		}
		printRun(run)
		if run.Status == storage.RunFailed {
			return fmt.Errorf("run %s failed: every supplier was irrecoverable", runID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().StringP("supplier", "s", "", "Comma-separated supplier IDs (lcsc, mouser, tronic, or any with a stored strategy)")
	scrapeCmd.Flags().StringArrayP("query", "q", nil, "Part number or search term (repeatable)")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// waitForRun polls the tracker until the run reaches a terminal status.
func waitForRun(ctx context.Context, tracker *progress.Tracker, runID string) (storage.Run, error) {
	for {
		run, err := tracker.Snapshot(ctx, runID)
		if err != nil {
			return run, err
		}
		switch run.Status {
		case storage.RunCompleted, storage.RunFailed, storage.RunCancelled:
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func printRun(run storage.Run) {
	fmt.Printf("Run %s: %s (%d queries requested)\n", run.RunID, run.Status, run.Requested)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SUPPLIER\tREQUESTED\tSCRAPED\tSTORED\tERRORS\tSTATE\t")
	for _, s := range run.Suppliers {
		state := "ok"
		if s.Failed {
			state = "failed"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t\n", s.SupplierID, s.Requested, s.Scraped, s.Stored, s.Errors, state)
	}
	w.Flush()
}
