// Package suppliers defines the scraper capability set: every supplier,
// whatever its quirks, turns a query plus a selector strategy into part
// records behind the same contract, so orchestration never branches on
// supplier identity.
package suppliers

import (
	"context"
	"errors"
	"time"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
)

// ErrStrategyRequired marks a supplier that cannot operate without a
// configured selector strategy. Unlike a transient fetch error, it is
// irrecoverable within a run: the orchestrator excludes the supplier until a
// strategy is detected or configured.
var ErrStrategyRequired = errors.New("supplier requires a selector strategy")

// Options bound the work done by a single scrape call.
type Options struct {
	Timeout    time.Duration
	MaxResults int
}

const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxResults = 20
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o
}

// Scraper fetches and parses one supplier's search results. A fetch failure
// (network error, non-2xx, timeout) is returned as an error; an individual
// result block that yields no usable part number is skipped, never fatal.
// Zero results with a nil error is a valid outcome.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, query string, st strategy.Strategy, opts Options) ([]parts.Record, error)
}
