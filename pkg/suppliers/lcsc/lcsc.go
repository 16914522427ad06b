// Package lcsc scrapes LCSC through its JSON search endpoint, which is far
// more stable than the rendered HTML.
package lcsc

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/suppliers"
	"github.com/partscope/partscope/pkg/whttp"
)

const (
	SupplierID = "lcsc"

	searchEndpoint = "https://wmsc.lcsc.com/wmsc/search/global?keyword=%s"
	productURL     = "https://www.lcsc.com/product-detail/%s.html"
)

type Scraper struct{}

func New() *Scraper { return &Scraper{} }

func (s *Scraper) Name() string { return SupplierID }

// Scrape queries the JSON endpoint. The selector strategy only contributes
// its version tag here; LCSC records don't go through HTML selectors.
func (s *Scraper) Scrape(ctx context.Context, query string, st strategy.Strategy, opts suppliers.Options) ([]parts.Record, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = suppliers.DefaultTimeout
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = suppliers.DefaultMaxResults
	}

	res, err := whttp.Fetch(ctx, &whttp.Request{
		URL:     fmt.Sprintf(searchEndpoint, url.QueryEscape(query)),
		Headers: []whttp.Header{{Name: "Accept", Value: "application/json"}},
		Timeout: opts.Timeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("lcsc: search %q: %w", query, err)
	}

	now := time.Now().UTC()
	var out []parts.Record
	for _, item := range gjson.Get(res.Body, "result.productSearchResultVO.productList").Array() {
		if len(out) >= opts.MaxResults {
			break
		}
		code := item.Get("productCode").String()
		if code == "" {
			continue
		}
		rec := parts.Record{
			SupplierID:      SupplierID,
			PartNumber:      code,
			MPN:             item.Get("productModel").String(),
			Description:     item.Get("productIntroEn").String(),
			Qty:             int(item.Get("stockNumber").Int()),
			PurchaseURL:     fmt.Sprintf(productURL, code),
			DatasheetURL:    item.Get("pdfUrl").String(),
			ObservedAt:      now,
			StrategyVersion: st.Version,
		}
		if !item.Get("stockNumber").Exists() {
			rec.Qty = parts.QtyUnknown
		}
		if price := item.Get("productPriceList.0.usdPrice"); price.Exists() {
			rec.Price = price.String()
			rec.Currency = "USD"
		}
		out = append(out, rec)
	}
	return out, nil
}
