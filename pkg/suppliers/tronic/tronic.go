// Package tronic scrapes Tronic.lk. The site bans aggressive clients, so
// all requests for this supplier funnel through a single worker capped at
// one request per second.
package tronic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/suppliers"
)

const SupplierID = "tronic"

var defaultStrategy = strategy.Manual(
	SupplierID,
	"https://tronic.lk/?s={query}&post_type=product",
	"ul.products li.product",
	strategy.FieldSelectors{
		Description:  "h2.woocommerce-loop-product__title",
		Price:        "span.price bdi",
		Quantity:     "span.stock",
		PurchaseLink: "a.woocommerce-LoopProduct-link",
	},
)

type scrapeResult struct {
	records []parts.Record
	err     error
}

type scrapeRequest struct {
	ctx        context.Context
	query      string
	st         strategy.Strategy
	opts       suppliers.Options
	resultChan chan scrapeResult
}

type Scraper struct {
	generic   *suppliers.Generic
	reqChan   chan scrapeRequest
	done      chan struct{}
	closeOnce sync.Once
}

// ErrClosed is returned by Scrape after Close.
var ErrClosed = errors.New("tronic: scraper closed")

func New() *Scraper {
	s := &Scraper{
		generic: suppliers.NewGeneric(SupplierID),
		reqChan: make(chan scrapeRequest),
		done:    make(chan struct{}),
	}
	go s.rateLimitedWorker()
	return s
}

func (s *Scraper) rateLimitedWorker() {
	ticker := time.NewTicker(1 * time.Second) // more gets us blocked
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case r := <-s.reqChan:
			<-ticker.C
			records, err := s.generic.Scrape(r.ctx, r.query, r.st, r.opts)
			r.resultChan <- scrapeResult{records: records, err: err}
		}
	}
}

// Close stops the rate-limit worker and releases its ticker. Safe to call
// more than once; Scrape calls after Close fail with ErrClosed.
func (s *Scraper) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Scraper) Name() string { return SupplierID }

func (s *Scraper) Scrape(ctx context.Context, query string, st strategy.Strategy, opts suppliers.Options) ([]parts.Record, error) {
	if st.Container == "" {
		st = defaultStrategy
	}
	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}
	resultChan := make(chan scrapeResult, 1)
	select {
	case s.reqChan <- scrapeRequest{ctx: ctx, query: query, st: st, opts: opts, resultChan: resultChan}:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-resultChan:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
