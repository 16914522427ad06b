package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/storage"
)

// statusCmd implements: partscope status [run-id]
//
// Without arguments it lists runs still marked running whose counters have
// gone quiet, which usually means a crashed process. With a run ID it prints
// that run's counters.
var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show batch run progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		tracker := progress.New(db)

		if len(args) == 1 {
			run, err := tracker.Snapshot(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, storage.ErrRunNotFound) {
					return fmt.Errorf("no run with ID %s", args[0])
				}
				return err
			}
			printRun(run)
			return nil
		}

		staleAfter, _ := cmd.Flags().GetInt("stale-minutes")
		stale, err := tracker.Stale(cmd.Context(), time.Duration(staleAfter)*time.Minute)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Println("No stale runs.")
			return nil
		}
		fmt.Printf("%d run(s) look abandoned (no progress for %dm):\n", len(stale), staleAfter)
		for _, run := range stale {
			fmt.Printf("  %s  started %s  last update %s\n",
				run.RunID, run.StartedAt.Format(time.RFC3339), run.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Int("stale-minutes", 30, "Minutes without progress before a running run counts as stale")
}
