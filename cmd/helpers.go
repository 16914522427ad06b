package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partscope/partscope/pkg/match"
	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/suppliers"
	"github.com/partscope/partscope/pkg/suppliers/lcsc"
	"github.com/partscope/partscope/pkg/suppliers/mouser"
	"github.com/partscope/partscope/pkg/suppliers/tronic"
)

func openDB(cmd *cobra.Command) (*storage.DB, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	if dbPath == "" {
		dbPath = "partscope.sqlite"
	}
	return storage.Open(dbPath)
}

// builtinScrapers returns the supplier variants with dedicated scrapers,
// minus any disabled in config. Any other supplier ID gets the
// strategy-driven generic scraper.
func builtinScrapers() map[string]suppliers.Scraper {
	out := map[string]suppliers.Scraper{}
	if viper.GetBool("lcsc.enabled") {
		out[lcsc.SupplierID] = lcsc.New()
	}
	if viper.GetBool("mouser.enabled") {
		out[mouser.SupplierID] = mouser.New()
	}
	if viper.GetBool("tronic.enabled") {
		out[tronic.SupplierID] = tronic.New()
	}
	return out
}

func scraperFor(supplierID string) suppliers.Scraper {
	switch {
	case supplierID == lcsc.SupplierID && viper.GetBool("lcsc.enabled"):
		return lcsc.New()
	case supplierID == mouser.SupplierID && viper.GetBool("mouser.enabled"):
		return mouser.New()
	case supplierID == tronic.SupplierID && viper.GetBool("tronic.enabled"):
		return tronic.New()
	}
	return suppliers.NewGeneric(supplierID)
}

func scrapeOptions() suppliers.Options {
	return suppliers.Options{
		Timeout:    time.Duration(viper.GetInt("scrape.timeout_seconds")) * time.Second,
		MaxResults: viper.GetInt("scrape.max_results"),
	}
}

func matchEngine() match.Engine {
	return match.Engine{
		TokenWeight: viper.GetFloat64("match.token_weight"),
		TFIDFWeight: viper.GetFloat64("match.tfidf_weight"),
		MinScore:    viper.GetFloat64("match.min_score"),
	}
}

func staleness() time.Duration {
	return time.Duration(viper.GetInt("cache.staleness_days")) * 24 * time.Hour
}
