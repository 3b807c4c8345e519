package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/shelf/models"
)

// DefaultSelectorTimeout is the signature wait used when the chain is built
// without one.
const DefaultSelectorTimeout = 10 * time.Second

// errNoRecords marks an attempt whose layout was present but yielded nothing.
var errNoRecords = errors.New("layout matched but no container had a title")

// Attempt is the diagnostic record of one strategy run.
type Attempt struct {
	Strategy string
	Records  int
	Elapsed  time.Duration

	// Err is the reason the attempt produced nothing; nil on success.
	Err error
}

// Result is the outcome of a chain run.
type Result struct {
	// Products is never nil. It is empty when no layout matched.
	Products []models.Product

	// Strategy names the layout that produced Products, or "".
	Strategy string

	Attempts []Attempt
}

// Chain tries strategies in order and keeps the first non-empty result.
// A Chain is immutable and safe for concurrent use.
type Chain struct {
	strategies []*Strategy
	timeout    time.Duration
}

// NewChain builds a chain. Order is significant: earlier strategies win.
// A non-positive timeout selects DefaultSelectorTimeout.
func NewChain(timeout time.Duration, strategies ...*Strategy) *Chain {
	if timeout <= 0 {
		timeout = DefaultSelectorTimeout
	}
	return &Chain{
		strategies: append([]*Strategy(nil), strategies...),
		timeout:    timeout,
	}
}

// Strategies returns the strategies in the order they are tried.
func (c *Chain) Strategies() []*Strategy {
	return append([]*Strategy(nil), c.strategies...)
}

// Run executes the chain against page.
//
// Selector misses are absorbed and recorded in Result.Attempts. Any other
// error from the page aborts the run and is returned together with the
// attempts made so far.
func (c *Chain) Run(ctx context.Context, page Page) (*Result, error) {
	res := &Result{
		Products: make([]models.Product, 0),
		Attempts: make([]Attempt, 0, len(c.strategies)),
	}

	for _, s := range c.strategies {
		start := time.Now()
		products, err := s.Extract(ctx, page, c.timeout)
		attempt := Attempt{
			Strategy: s.Name(),
			Records:  len(products),
			Elapsed:  time.Since(start),
			Err:      err,
		}

		switch {
		case err != nil && IsMiss(err):
			slog.Debug("strategy did not match", "strategy", s.Name(), "reason", err)
			res.Attempts = append(res.Attempts, attempt)
			continue
		case err != nil:
			res.Attempts = append(res.Attempts, attempt)
			return res, err
		case len(products) == 0:
			attempt.Err = errNoRecords
			slog.Debug("strategy matched without records", "strategy", s.Name())
			res.Attempts = append(res.Attempts, attempt)
			continue
		}

		res.Attempts = append(res.Attempts, attempt)
		res.Products = products
		res.Strategy = s.Name()
		return res, nil
	}

	return res, nil
}
