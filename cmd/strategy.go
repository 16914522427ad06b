package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/strategy"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Inspect and configure supplier selector strategies",
}

var strategyShowCmd = &cobra.Command{
	Use:   "show <supplier>",
	Short: "Show a supplier's strategy versions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		supplierID := args[0]
		active, err := db.ActiveStrategy(cmd.Context(), supplierID)
		if err != nil && !errors.Is(err, storage.ErrNoStrategy) {
			return err
		}

		all, err := db.ListStrategies(cmd.Context(), supplierID)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Printf("No strategies stored for %s. Run 'partscope detect' or 'partscope strategy set'.\n", supplierID)
			return nil
		}

		for _, st := range all {
			marker := " "
			if st.Version == active.Version {
				marker = "*"
			}
			kind := "auto"
			if st.Manual {
				kind = "manual"
			}
			fmt.Printf("%s v%d  %-6s  confidence %.2f  container %q\n", marker, st.Version, kind, st.Confidence, st.Container)
		}
		return nil
	},
}

// strategySetCmd installs a manual override. Manual strategies displace the
// active one and keep winning over later auto-detections until replaced.
var strategySetCmd = &cobra.Command{
	Use:   "set <supplier>",
	Short: "Set a manual selector strategy for a supplier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urlTemplate, _ := cmd.Flags().GetString("url")
		container, _ := cmd.Flags().GetString("container")
		if container == "" {
			return fmt.Errorf("--container is required")
		}

		fields := strategy.FieldSelectors{}
		fields.PartNumber, _ = cmd.Flags().GetString("part-number")
		fields.Description, _ = cmd.Flags().GetString("description")
		fields.Price, _ = cmd.Flags().GetString("price")
		fields.Quantity, _ = cmd.Flags().GetString("quantity")
		fields.PurchaseLink, _ = cmd.Flags().GetString("link")

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		st := strategy.Manual(args[0], urlTemplate, container, fields)
		version, err := db.SetStrategy(cmd.Context(), st)
		if err != nil {
			return err
		}
		fmt.Printf("Stored manual strategy v%d for %s\n", version, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyShowCmd)
	strategyCmd.AddCommand(strategySetCmd)

	strategySetCmd.Flags().StringP("url", "u", "", "Search URL template containing {query}")
	strategySetCmd.Flags().String("container", "", "CSS selector for the repeated result block")
	strategySetCmd.Flags().String("part-number", "", "Selector for the part number, relative to the container")
	strategySetCmd.Flags().String("description", "", "Selector for the description")
	strategySetCmd.Flags().String("price", "", "Selector for the unit price")
	strategySetCmd.Flags().String("quantity", "", "Selector for the stock quantity")
	strategySetCmd.Flags().String("link", "", "Selector for the purchase link")
}
