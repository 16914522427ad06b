package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/internal/utils"
)

var cfgFile string

const (
	LOGO = `                    _
   _ __   __ _ _ __| |_ ___  ___ ___  _ __   ___
  | '_ \ / _` + "`" + ` | '__| __/ __|/ __/ _ \| '_ \ / _ \
  | |_) | (_| | |  | |_\__ \ (_| (_) | |_) |  __/
  | .__/ \__,_|_|   \__|___/\___\___/| .__/ \___|
  |_|                                |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "partscope",
	Short: "Electronic component price and availability aggregator.",
	Long: LOGO + `partscope scrapes supplier catalogs for component pricing and stock,
caches the results locally, and matches your BOM lines against the cache.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.partscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "partscope.sqlite", "Path to SQLite cache file")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".partscope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.partscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	viper.SetDefault("scrape.timeout_seconds", 20)
	viper.SetDefault("scrape.max_results", 20)
	viper.SetDefault("runner.batch_size", 100)
	viper.SetDefault("runner.concurrency", 4)
	viper.SetDefault("match.token_weight", 0.6)
	viper.SetDefault("match.tfidf_weight", 0.4)
	viper.SetDefault("match.min_score", 0.3)
	viper.SetDefault("cache.staleness_days", 7)
	viper.SetDefault("detect.confidence_floor", 0.35)
	viper.SetDefault("lcsc.enabled", true)
	viper.SetDefault("mouser.enabled", true)
	viper.SetDefault("tronic.enabled", true)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
	viper.SetDefault("datasheet.endpoint", "")
	viper.SetDefault("datasheet.result_path", "results.0")
	viper.SetDefault("datasheet.url_field", "datasheet_url")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
