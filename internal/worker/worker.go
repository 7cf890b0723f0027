// Package worker implements the execution worker (spec.md §4.7): drains
// jobs from the queue, drives the lifecycle state machine, coordinates the
// router and chain submission, rate-limits routing, and emits status to
// history and the subscriber hub. This is the core's orchestration layer;
// every collaborator it depends on (router.Router, chain.Client,
// history.Store, hub.Hub, ratelimit.Limiter) is injected so it can be
// exercised against fakes in tests, per the teacher's own
// constructor-injection style in internal/settlement/clearing.go.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gagliardetto/solana-go"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/dexvenue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/metrics"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/ratelimit"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/router"
)

// rateLimitRetryInterval is spec.md §4.7 step 2's default yield-and-retry
// interval when the fixed window has no free slot.
const rateLimitRetryInterval = 200 * time.Millisecond

// Chain is the subset of chain.Client the worker depends on. Declared as an
// interface so tests can substitute a fake chain without a live RPC
// endpoint.
type Chain interface {
	Submit(ctx context.Context, built order.BuiltTransaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Config configures a Worker.
type Config struct {
	Router        *router.Router
	Chain         Chain
	History       history.Store
	Hub           *hub.Hub
	Limiter       *ratelimit.Limiter
	SignerKey     solana.PrivateKey
	ChainExplorer string
	Cluster       string
	SlippageBps   int
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Worker drives one order.Job through the lifecycle state machine
// (spec.md §4.7's per-job algorithm).
type Worker struct {
	router        *router.Router
	chain         Chain
	history       history.Store
	hub           *hub.Hub
	limiter       *ratelimit.Limiter
	signerKey     solana.PrivateKey
	chainExplorer string
	cluster       string
	slippageBps   int
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// New constructs a Worker from cfg.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		router:        cfg.Router,
		chain:         cfg.Chain,
		history:       cfg.History,
		hub:           cfg.Hub,
		limiter:       cfg.Limiter,
		signerKey:     cfg.SignerKey,
		chainExplorer: cfg.ChainExplorer,
		cluster:       cfg.Cluster,
		slippageBps:   cfg.SlippageBps,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// Process runs job through the full lifecycle, returning the final error
// (if any) so a queue adapter can apply its retry policy. It matches
// queue.Processor's signature.
func (w *Worker) Process(ctx context.Context, job *order.Job) error {
	w.emit(ctx, job, order.StatusQueued, "", "")
	w.emit(ctx, job, order.StatusRouting, "", "")

	if err := w.awaitRateLimitSlot(ctx); err != nil {
		return w.fail(ctx, job, err)
	}

	quoteReq := order.QuoteRequest{
		TokenIn:     job.TokenIn,
		TokenOut:    job.TokenOut,
		Amount:      job.Amount,
		SlippageBps: w.slippageBps,
	}
	decision, err := w.router.Route(ctx, quoteReq)
	if err != nil {
		return w.fail(ctx, job, err)
	}

	if err := w.history.RecordRoutingDecision(ctx, job.OrderID, decision.VenueName, decision.Quote); err != nil {
		w.logger.Warn("failed to record routing decision", zap.String("orderId", job.OrderID), zap.Error(err))
	}

	w.emit(ctx, job, order.StatusBuilding, "", "")

	built, err := decision.Venue.BuildSwap(ctx, dexvenue.BuildSwapInput{
		OrderID:   job.OrderID,
		Order:     job.Request,
		Quote:     decision.Quote,
		SignerKey: w.signerKey,
	})
	if err != nil {
		return w.fail(ctx, job, err)
	}

	sig, err := w.chain.Submit(ctx, built)
	if err != nil {
		return w.fail(ctx, job, err)
	}
	job.LastTxSignature = sig.String()
	link := w.explorerLink(sig.String())

	if err := w.history.RecordSubmission(ctx, job.OrderID, sig.String(), link); err != nil {
		w.logger.Warn("failed to record submission", zap.String("orderId", job.OrderID), zap.Error(err))
	}
	w.emit(ctx, job, order.StatusSubmitted, sig.String(), link)

	if err := w.chain.Confirm(ctx, sig); err != nil {
		return w.fail(ctx, job, err)
	}

	if err := w.history.RecordConfirmation(ctx, job.OrderID, decision.Quote.EstimatedOut); err != nil {
		w.logger.Warn("failed to record confirmation", zap.String("orderId", job.OrderID), zap.Error(err))
	}
	w.emit(ctx, job, order.StatusConfirmed, sig.String(), link)

	if w.metrics != nil {
		w.metrics.OrdersConfirmed.Inc()
	}

	return nil
}

// awaitRateLimitSlot blocks until a fixed-window slot is free or ctx is
// canceled (spec.md §4.7 step 2).
func (w *Worker) awaitRateLimitSlot(ctx context.Context) error {
	for {
		if w.limiter.Allow().Allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rateLimitRetryInterval):
		}
	}
}

// fail records job's terminal failure and returns the error so the caller
// (the queue) applies its retry policy (spec.md §4.7 step 8).
func (w *Worker) fail(ctx context.Context, job *order.Job, cause error) error {
	job.LastError = cause.Error()
	if err := w.history.RecordFailure(ctx, job.OrderID, cause.Error()); err != nil {
		w.logger.Warn("failed to record failure", zap.String("orderId", job.OrderID), zap.Error(err))
	}
	w.emit(ctx, job, order.StatusFailed, cause.Error(), "")
	if w.metrics != nil {
		w.metrics.OrdersFailed.WithLabelValues(string(apperrors.KindOf(cause))).Inc()
	}
	return cause
}

// emit appends status to history and broadcasts it via the hub, honoring
// the emittedStatuses idempotence rule: every status except submitted and
// confirmed fires at most once per order.
func (w *Worker) emit(ctx context.Context, job *order.Job, status order.Status, detail, link string) {
	if !status.Repeatable() && job.HasEmitted(status) {
		return
	}
	job.MarkEmitted(status)

	entry := order.StatusHistoryEntry{Status: status, Detail: detail, Link: link, RecordedAt: time.Now()}
	if err := w.history.AppendStatus(ctx, job.OrderID, entry); err != nil {
		w.logger.Warn("failed to append status history", zap.String("orderId", job.OrderID), zap.Error(err))
	}
	w.hub.Publish(job.OrderID, order.StatusMessage{OrderID: job.OrderID, Status: status, Detail: detail, Link: link})
}

func (w *Worker) explorerLink(signature string) string {
	if w.chainExplorer == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s?cluster=%s", w.chainExplorer, signature, w.cluster)
}
