package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/internal/server"
	"github.com/partscope/partscope/internal/utils"
	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/runner"
	"github.com/partscope/partscope/pkg/suppliers"
)

// serveCmd starts the JSON API: runs can be started, polled, and cancelled
// over HTTP, and the cache queried and matched without the CLI.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the partscope API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		tracker := progress.New(db)

		mgr := runner.NewManager(runner.Config{
			Store:    db,
			Tracker:  tracker,
			Scrapers: builtinScrapers(),
			// The API accepts work for arbitrary supplier IDs; unknown
			// ones get the generic scraper and need a stored strategy.
			NewScraper:    func(id string) suppliers.Scraper { return suppliers.NewGeneric(id) },
			BatchSize:     viper.GetInt("runner.batch_size"),
			Concurrency:   viper.GetInt("runner.concurrency"),
			ScrapeOptions: scrapeOptions(),
			Log:           utils.Log,
		})

		listenAddr, _ := cmd.Flags().GetString("listen")
		srv := server.New(db, tracker, mgr,
			matchEngine(),
			viper.GetString("server.username"),
			viper.GetString("server.password"))
		return srv.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:7070", "HTTP listen address")
}
