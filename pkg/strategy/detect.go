package strategy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MinRepeatedBlocks is how many times a result-block structure must
	// recur on the sample page before it is considered a listing.
	MinRepeatedBlocks = 3

	// DefaultConfidenceFloor rejects detections whose mean field score is
	// below it; configurable by callers via DetectOptions.
	DefaultConfidenceFloor = 0.35
)

// Common result-container shapes seen across supplier storefronts
// (WooCommerce, generic cards, tabular listings). Tried before the generic
// repeated-signature scan so well-known layouts get stable selectors.
var commonContainers = []string{
	"ul.products li.product",
	"li.product",
	"div.product-item",
	"div.product-card",
	"div.product",
	"div.search-result",
	"div.card",
	"table tr",
}

var (
	priceRe = regexp.MustCompile(`(?i)([$€£¥]|Rs\.?|USD|EUR|GBP|LKR|CNY)\s*[\d,]+(\.\d+)?`)
	qtyRe   = regexp.MustCompile(`(?i)(\b[\d,]{1,9}\+?\s*(pcs|pieces|available|in stock)\b|\bstock\b.*?\d)`)
	pnRe    = regexp.MustCompile(`\b[A-Z][A-Z0-9._/-]{2,}\d[A-Z0-9._/-]*\b|\b\d{2,}[A-Z][A-Z0-9._/-]*\b`)
)

// Candidate selectors tried per field, in preference order.
var (
	pnSelectors    = []string{"span.part-number", "td.part-number", ".sku", "code", "h3", "h2", "a"}
	descSelectors  = []string{".description", "p.desc", "h2", "h3", "a.product-title", "a"}
	priceSelectors = []string{"span.price", ".price", "span.amount", "p.price", "td.price", "bdi"}
	qtySelectors   = []string{"span.stock", ".stock", ".availability", "td.stock", "p.stock"}
	linkSelectors  = []string{"a.product-link", "h2 a", "h3 a", "a"}
)

// DetectOptions tune the heuristics; zero values fall back to defaults.
type DetectOptions struct {
	MinBlocks       int
	ConfidenceFloor float64
}

// Detect scans a sample search-results page and derives a selector strategy
// for the supplier. The page must contain a structure that repeats at least
// MinBlocks times; each field selector is scored by how often it yields a
// field-shaped value across the repeated blocks, and the strategy's
// confidence is the mean of the per-field scores.
func Detect(sampleHTML, supplierID, searchURLTemplate string, opts DetectOptions) (Strategy, error) {
	minBlocks := opts.MinBlocks
	if minBlocks <= 0 {
		minBlocks = MinRepeatedBlocks
	}
	floor := opts.ConfidenceFloor
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sampleHTML))
	if err != nil {
		return Strategy{}, fmt.Errorf("%w: %v", ErrDetectionFailed, err)
	}

	container, blocks := findRepeatedBlocks(doc, minBlocks)
	if container == "" {
		return Strategy{}, fmt.Errorf("%w: fewer than %d repeated result blocks on sample page for %s", ErrDetectionFailed, minBlocks, supplierID)
	}

	fields, confidence := scoreFields(blocks)
	if confidence < floor {
		return Strategy{}, fmt.Errorf("%w: confidence %.2f below floor %.2f for %s", ErrDetectionFailed, confidence, floor, supplierID)
	}

	return Strategy{
		SupplierID:        supplierID,
		SearchURLTemplate: searchURLTemplate,
		Container:         container,
		Fields:            fields,
		Confidence:        confidence,
	}, nil
}

// findRepeatedBlocks returns the best container selector and its matched
// blocks. Known layouts are tried first; otherwise elements are grouped by
// tag+class signature under a shared parent and the most frequent recurring
// signature wins.
func findRepeatedBlocks(doc *goquery.Document, minBlocks int) (string, []*goquery.Selection) {
	for _, sel := range commonContainers {
		if s := doc.Find(sel); s.Length() >= minBlocks {
			return sel, collect(s)
		}
	}

	counts := map[string]int{}
	weight := map[string]int{}
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if sig := signature(s); sig != "" {
			counts[sig]++
			weight[sig] += len(strings.TrimSpace(s.Text()))
		}
	})

	// Prefer the most frequent signature; on ties, the one holding more
	// text, so a result row wins over a leaf span nested inside it.
	best := ""
	bestCount := 0
	for sig, n := range counts {
		if n < minBlocks {
			continue
		}
		if n > bestCount || (n == bestCount && weight[sig] > weight[best]) {
			best, bestCount = sig, n
		}
	}
	if best == "" {
		return "", nil
	}
	return best, collect(doc.Find(best))
}

// signature builds a "div.product-row" style selector for elements that
// carry a class and hold enough text to plausibly be a result row.
func signature(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok {
		return ""
	}
	names := strings.Fields(class)
	if len(names) == 0 {
		return ""
	}
	if len(strings.TrimSpace(s.Text())) < 10 {
		return ""
	}
	return goquery.NodeName(s) + "." + names[0]
}

func collect(s *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, s.Length())
	s.Each(func(_ int, b *goquery.Selection) { out = append(out, b) })
	return out
}

// scoreFields picks, per field, the candidate sub-selector whose extracted
// values look field-shaped in the largest share of blocks. Unmatched fields
// are left empty and contribute zero to confidence.
func scoreFields(blocks []*goquery.Selection) (FieldSelectors, float64) {
	var f FieldSelectors
	var scores [5]float64

	f.PartNumber, scores[0] = bestSelector(blocks, pnSelectors, func(s string) bool {
		return pnRe.MatchString(strings.ToUpper(s))
	})
	f.Description, scores[1] = bestSelector(blocks, descSelectors, func(s string) bool {
		return len(s) >= 8
	})
	f.Price, scores[2] = bestSelector(blocks, priceSelectors, func(s string) bool {
		return priceRe.MatchString(s)
	})
	f.Quantity, scores[3] = bestSelector(blocks, qtySelectors, func(s string) bool {
		return qtyRe.MatchString(s)
	})
	f.PurchaseLink, scores[4] = bestLinkSelector(blocks)

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return f, total / float64(len(scores))
}

func bestSelector(blocks []*goquery.Selection, candidates []string, ok func(string) bool) (string, float64) {
	bestSel := ""
	bestScore := 0.0
	for _, sel := range candidates {
		hits := 0
		for _, b := range blocks {
			if text := strings.TrimSpace(b.Find(sel).First().Text()); text != "" && ok(text) {
				hits++
			}
		}
		score := float64(hits) / float64(len(blocks))
		if score > bestScore {
			bestSel, bestScore = sel, score
		}
	}
	if bestScore == 0 {
		return "", 0
	}
	return bestSel, bestScore
}

func bestLinkSelector(blocks []*goquery.Selection) (string, float64) {
	bestSel := ""
	bestScore := 0.0
	for _, sel := range linkSelectors {
		hits := 0
		for _, b := range blocks {
			if href, ok := b.Find(sel).First().Attr("href"); ok && href != "" && href != "#" {
				hits++
			}
		}
		score := float64(hits) / float64(len(blocks))
		if score > bestScore {
			bestSel, bestScore = sel, score
		}
	}
	if bestScore == 0 {
		return "", 0
	}
	return bestSel, bestScore
}
