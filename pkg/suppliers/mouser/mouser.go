// Package mouser scrapes Mouser search-result pages. Mouser serves a plain
// HTML table when the request looks like a browser, so this variant is the
// generic HTML scraper plus the headers Mouser insists on and a fallback
// strategy for when none has been configured.
package mouser

import (
	"context"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/suppliers"
	"github.com/partscope/partscope/pkg/whttp"
)

const SupplierID = "mouser"

var defaultStrategy = strategy.Manual(
	SupplierID,
	"https://www.mouser.com/c/?q={query}",
	".search-results-products tr.search-result-row",
	strategy.FieldSelectors{
		PartNumber:   "a.mfr-part-num",
		Description:  "td.description",
		Price:        "td.price",
		Quantity:     "td.availability",
		PurchaseLink: "a.mfr-part-num",
	},
)

type Scraper struct {
	generic *suppliers.Generic
}

func New() *Scraper {
	g := suppliers.NewGeneric(SupplierID)
	g.Headers = []whttp.Header{
		{Name: "Accept", Value: "text/html,application/xhtml+xml"},
		{Name: "Upgrade-Insecure-Requests", Value: "1"},
	}
	return &Scraper{generic: g}
}

func (s *Scraper) Name() string { return SupplierID }

func (s *Scraper) Scrape(ctx context.Context, query string, st strategy.Strategy, opts suppliers.Options) ([]parts.Record, error) {
	if st.Container == "" {
		st = defaultStrategy
	}
	return s.generic.Scrape(ctx, query, st, opts)
}
