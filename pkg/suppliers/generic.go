package suppliers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/partscope/partscope/internal/utils"
	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/whttp"
)

// Generic scrapes any supplier that has a selector strategy, detected or
// manual. Supplier-specific variants wrap it with their own headers, rate
// limits, or API endpoints.
type Generic struct {
	SupplierID string
	Headers    []whttp.Header
	Client     *retryablehttp.Client
}

func NewGeneric(supplierID string) *Generic {
	return &Generic{SupplierID: supplierID}
}

func (g *Generic) Name() string { return g.SupplierID }

func (g *Generic) Scrape(ctx context.Context, query string, st strategy.Strategy, opts Options) ([]parts.Record, error) {
	opts = opts.withDefaults()

	if st.SearchURLTemplate == "" {
		return nil, fmt.Errorf("supplier %s: %w", g.SupplierID, ErrStrategyRequired)
	}
	searchURL := strings.ReplaceAll(st.SearchURLTemplate, "{query}", url.QueryEscape(query))

	res, err := whttp.Fetch(ctx, &whttp.Request{
		URL:     searchURL,
		Headers: g.Headers,
		Timeout: opts.Timeout,
	}, g.Client)
	if err != nil {
		return nil, fmt.Errorf("supplier %s: fetch %s: %w", g.SupplierID, searchURL, err)
	}

	return ParseResults(res.Body, searchURL, g.SupplierID, st, opts.MaxResults), nil
}

// ParseResults extracts part records from a search-results page using the
// strategy's selectors. Blocks without a usable part number are skipped and
// logged at debug level; missing optional fields are tolerated.
func ParseResults(body, pageURL, supplierID string, st strategy.Strategy, maxResults int) []parts.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		utils.Log.Debugf("%s: unparseable results page: %v", supplierID, err)
		return nil
	}

	base, _ := url.Parse(pageURL)
	now := time.Now().UTC()

	var out []parts.Record
	doc.Find(st.Container).EachWithBreak(func(i int, block *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}

		pn := selectText(block, st.Fields.PartNumber)
		if pn == "" {
			// Fall back to the first token of the description when the
			// page has no dedicated part-number element.
			if fields := strings.Fields(selectText(block, st.Fields.Description)); len(fields) > 0 && parts.NormalizePartNumber(fields[0]) != "" {
				pn = fields[0]
			}
		}
		if pn == "" {
			utils.Log.Debugf("%s: skipping result block %d: no usable part number", supplierID, i)
			return true
		}

		rec := parts.Record{
			SupplierID:      supplierID,
			PartNumber:      pn,
			MPN:             pn,
			Description:     selectText(block, st.Fields.Description),
			Qty:             parts.ParseQty(selectText(block, st.Fields.Quantity)),
			ObservedAt:      now,
			StrategyVersion: st.Version,
		}
		rec.Price, rec.Currency = parts.ParsePrice(selectText(block, st.Fields.Price))
		if href := selectHref(block, st.Fields.PurchaseLink); href != "" {
			rec.PurchaseURL = absoluteURL(base, href)
		}
		out = append(out, rec)
		return true
	})
	return out
}

func selectText(block *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(block.Find(selector).First().Text())
}

func selectHref(block *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	href, _ := block.Find(selector).First().Attr("href")
	return href
}

func absoluteURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
