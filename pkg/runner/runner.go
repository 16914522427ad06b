// Package runner drives scraping across suppliers and work lists in bounded
// batches, isolating failures per supplier and reporting live progress.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/suppliers"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds everything a run needs.
type Config struct {
	Store   *storage.DB
	Tracker *progress.Tracker

	// Scrapers maps supplier IDs to their scraper variants. Work items for
	// unknown suppliers fail that supplier, not the run, unless
	// NewScraper provides a fallback.
	Scrapers map[string]suppliers.Scraper

	// NewScraper, when set, builds a scraper for supplier IDs missing from
	// Scrapers. The server uses it so any supplier with a stored strategy
	// is scrapeable without registration.
	NewScraper func(supplierID string) suppliers.Scraper

	BatchSize     int // queries per batch; defaults to 100 if <= 0
	Concurrency   int // suppliers scraped at once; defaults to 4 if <= 0
	ScrapeOptions suppliers.Options

	Log Logger // optional; nil = no logging

	// OnBatchDone is called after each batch's upsert (from worker
	// goroutines). Lets the CLI stream progress. Nil = no callback.
	OnBatchDone func(runID, supplierID string, batchQueries, recordsStored int)
}

// Run executes a batch run to completion. It assumes the run was already
// created and started on the tracker (the Manager does this so callers see a
// pending run immediately). Cancellation is cooperative: it is checked
// between batches only, so in-flight scrape calls complete and no new batch
// starts.
func Run(ctx context.Context, cfg Config, runID string, work []parts.WorkItem) error {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	bySupplier := map[string][]string{}
	for _, w := range work {
		bySupplier[w.SupplierID] = append(bySupplier[w.SupplierID], w.Query)
	}

	supplierChan := make(chan string, len(bySupplier))
	var mu sync.Mutex
	failedSuppliers := 0

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for supplierID := range supplierChan {
				if err := runSupplier(ctx, cfg, log, runID, supplierID, bySupplier[supplierID], batchSize); err != nil {
					log.Errorf("Run %s: supplier %s failed: %v", runID, supplierID, err)
					if terr := cfg.Tracker.MarkSupplierFailed(context.WithoutCancel(ctx), runID, supplierID); terr != nil {
						log.Warnf("Run %s: could not mark %s failed: %v", runID, supplierID, terr)
					}
					mu.Lock()
					failedSuppliers++
					mu.Unlock()
				}
			}
		}()
	}
	for supplierID := range bySupplier {
		supplierChan <- supplierID
	}
	close(supplierChan)
	wg.Wait()

	// The tracker outlives the triggering context so a cancelled run still
	// records its terminal status.
	finishCtx := context.WithoutCancel(ctx)
	switch {
	case ctx.Err() != nil:
		return cfg.Tracker.Finish(finishCtx, runID, storage.RunCancelled)
	case failedSuppliers == len(bySupplier) && len(bySupplier) > 0:
		return cfg.Tracker.Finish(finishCtx, runID, storage.RunFailed)
	default:
		return cfg.Tracker.Finish(finishCtx, runID, storage.RunCompleted)
	}
}

// runSupplier processes one supplier's queries in batches. A returned error
// means the supplier is irrecoverable for this run; transient scrape
// failures are absorbed into the error counter.
func runSupplier(ctx context.Context, cfg Config, log Logger, runID, supplierID string, queries []string, batchSize int) error {
	scraper, ok := cfg.Scrapers[supplierID]
	if !ok {
		if cfg.NewScraper == nil {
			return errors.New("no scraper registered")
		}
		scraper = cfg.NewScraper(supplierID)
	}

	// Accounting and persistence survive cancellation: a batch that already
	// completed its scrape calls still gets stored and counted. Only the
	// batch-boundary check below observes the run context.
	acctCtx := context.WithoutCancel(ctx)

	st, err := cfg.Store.ActiveStrategy(acctCtx, supplierID)
	if err != nil && !errors.Is(err, storage.ErrNoStrategy) {
		return err
	}
	// No stored strategy: variants with builtin defaults proceed with a
	// zero strategy; the generic scraper rejects it as ErrStrategyRequired
	// on the first call below.

	for start := 0; start < len(queries); start += batchSize {
		if ctx.Err() != nil {
			log.Infof("Run %s: cancelled, supplier %s stopping before next batch", runID, supplierID)
			return nil
		}

		end := start + batchSize
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[start:end]

		if err := cfg.Tracker.Advance(acctCtx, runID, supplierID, len(batch), 0, 0, 0); err != nil {
			return err
		}

		scrapedQueries := 0
		scrapeErrors := 0
		var records []parts.Record
		var batchRecords []int // records per scraped query, for stored accounting
		for _, q := range batch {
			recs, err := scraper.Scrape(ctx, q, st, cfg.ScrapeOptions)
			if err != nil {
				if errors.Is(err, suppliers.ErrStrategyRequired) {
					// Count what this batch consumed, then give up on the
					// supplier for the rest of the run.
					_ = cfg.Tracker.Advance(acctCtx, runID, supplierID, 0, scrapedQueries, 0, scrapeErrors+1)
					return err
				}
				log.Warnf("Run %s: %s scrape %q: %v", runID, supplierID, q, err)
				scrapeErrors++
				continue
			}
			scrapedQueries++
			records = append(records, recs...)
			batchRecords = append(batchRecords, len(recs))
		}

		storedQueries, recordsStored := persistBatch(acctCtx, cfg, log, runID, supplierID, records, batchRecords)

		if err := cfg.Tracker.Advance(acctCtx, runID, supplierID, 0, scrapedQueries, storedQueries, scrapeErrors); err != nil {
			return err
		}
		if cfg.OnBatchDone != nil {
			cfg.OnBatchDone(runID, supplierID, len(batch), recordsStored)
		}
	}
	return nil
}

// persistBatch upserts a batch's records, retrying once with backoff. On a
// persistent storage failure the batch is reported failed (zero stored) and
// the run continues; per-row idempotency makes the retry safe.
func persistBatch(ctx context.Context, cfg Config, log Logger, runID, supplierID string, records []parts.Record, batchRecords []int) (storedQueries, recordsStored int) {
	if len(records) == 0 {
		return len(batchRecords), 0
	}

	n, err := cfg.Store.UpsertParts(ctx, records)
	if err != nil {
		log.Warnf("Run %s: %s upsert failed, retrying: %v", runID, supplierID, err)
		time.Sleep(2 * time.Second)
		n, err = cfg.Store.UpsertParts(ctx, records)
	}
	if err != nil {
		log.Errorf("Run %s: %s batch dropped after retry: %v", runID, supplierID, err)
		return 0, 0
	}
	return len(batchRecords), n
}
