// Package router implements the DEX router (spec.md §4.3): concurrent
// per-venue quoting bounded by a deadline and best-price selection with a
// stable tie-break; the returned Decision carries the winning venue so the
// caller can build the swap. Structured after the teacher's
// fan-out-then-collect pattern in internal/marketdata/publisher.go and
// internal/risk/checker.go, generalized from a single mutex-guarded
// aggregate to a one-goroutine-per-venue golang.org/x/sync/errgroup.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/dexvenue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/metrics"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// Decision is the router's output: the winning venue's name, its quote, and
// a reference to the venue so the caller can later build the swap.
type Decision struct {
	Venue      dexvenue.Venue
	VenueName  string
	Quote      order.QuoteResponse
	Candidates []CandidateResult
}

// CandidateResult records one venue's outcome for the routing-decision event
// (spec.md §4.3), win or lose.
type CandidateResult struct {
	VenueName string
	Quote     order.QuoteResponse
	Err       error
}

// Router holds the registered venues in stable registration order: ties in
// estimatedOut are broken in favor of the earlier-registered venue.
type Router struct {
	venues  []dexvenue.Venue
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New constructs a Router. venues is retained in the order given; that
// order is the tie-break order.
func New(venues []dexvenue.Venue, timeout time.Duration, logger *zap.Logger) *Router {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{venues: venues, timeout: timeout, logger: logger}
}

// UseMetrics attaches m so Route records routing latency and venue win
// counts. Safe to call once before the router starts serving; a nil m
// (the default) disables instrumentation.
func (r *Router) UseMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Route fans out req to every registered venue with a shared deadline,
// selects the highest estimatedOut, and breaks ties by registration order
// (spec.md §4.3's determinism invariant). It fails with KindRoutingNoQuotes
// if every venue errors, or KindRoutingTimeout if the deadline elapses
// before any venue responds.
func (r *Router) Route(ctx context.Context, req order.QuoteRequest) (Decision, error) {
	start := time.Now()
	if len(r.venues) == 0 {
		r.observeOutcome("no-quotes", start)
		return Decision{}, apperrors.New(apperrors.KindRoutingNoQuotes, "no venues registered")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]CandidateResult, len(r.venues))
	group, gctx := errgroup.WithContext(ctx)

	for i, v := range r.venues {
		i, v := i, v
		group.Go(func() error {
			quote, err := v.Quote(gctx, req)
			results[i] = CandidateResult{VenueName: v.Name(), Quote: quote, Err: err}
			return nil // per-venue errors are recorded, not propagated as group failures
		})
	}

	// group.Wait always returns nil here: every goroutine returns nil and
	// individual quote failures are captured in results.
	_ = group.Wait()

	bestIdx := -1
	for i, res := range results {
		if res.Err != nil {
			r.logger.Debug("venue quote failed", zap.String("venue", res.VenueName), zap.Error(res.Err))
			continue
		}
		if bestIdx == -1 || res.Quote.EstimatedOut > results[bestIdx].Quote.EstimatedOut {
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		if ctx.Err() == context.DeadlineExceeded {
			r.observeOutcome("timeout", start)
			return Decision{Candidates: results}, apperrors.New(apperrors.KindRoutingTimeout, "routing deadline exceeded before any venue responded")
		}
		r.observeOutcome("no-quotes", start)
		return Decision{Candidates: results}, apperrors.New(apperrors.KindRoutingNoQuotes, "no venue returned a quote")
	}

	r.observeOutcome("won", start)
	if r.metrics != nil {
		r.metrics.VenueQuoteWins.WithLabelValues(results[bestIdx].VenueName).Inc()
	}

	return Decision{
		Venue:      r.venues[bestIdx],
		VenueName:  results[bestIdx].VenueName,
		Quote:      results[bestIdx].Quote,
		Candidates: results,
	}, nil
}

func (r *Router) observeOutcome(outcome string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RouteLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
