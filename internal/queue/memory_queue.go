package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// MemQueue is a deterministic, in-process Queue implementation used by
// tests that exercise worker/intake wiring without a live Redis instance.
// It honors the same at-least-once, bounded-concurrency, exponential
// backoff, and dead-lettering semantics as RedisQueue.
type MemQueue struct {
	mu        sync.Mutex
	pending   []envelope
	delayed   []delayedEnvelope
	dead      []envelope
	completed []envelope
	failed    []envelope
	retry          RetryPolicy
	notify         chan struct{}
	now            func() time.Time
	promoteLimiter *rate.Limiter
}

type delayedEnvelope struct {
	env   envelope
	readyAt time.Time
}

// NewMemQueue constructs a MemQueue with the given retry policy.
func NewMemQueue(retry RetryPolicy) *MemQueue {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &MemQueue{
		retry:          retry,
		notify:         make(chan struct{}, 1),
		now:            time.Now,
		promoteLimiter: rate.NewLimiter(rate.Limit(50), 50),
	}
}

func (q *MemQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Enqueue submits job as a first-attempt envelope.
func (q *MemQueue) Enqueue(ctx context.Context, job *order.Job) error {
	q.mu.Lock()
	q.pending = append(q.pending, envelope{Job: job, Attempt: 1})
	q.mu.Unlock()
	q.wake()
	return nil
}

// Start runs concurrency consumer goroutines plus a delayed-retry promoter
// until ctx is canceled.
func (q *MemQueue) Start(ctx context.Context, concurrency int, processor Processor) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.runPromoter(ctx)
	}()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.runConsumer(ctx, processor)
		}()
	}

	wg.Wait()
	return nil
}

func (q *MemQueue) runPromoter(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.promoteDue()
		}
	}
}

// promoteDue moves delayed retries whose backoff has elapsed back onto the
// pending list, rate-limited so a burst of simultaneously-due retries
// doesn't flood the consumers in one tick.
func (q *MemQueue) promoteDue() {
	q.mu.Lock()
	now := q.now()
	var stillWaiting []delayedEnvelope
	var toPromote []envelope
	for _, d := range q.delayed {
		if !now.Before(d.readyAt) && q.promoteLimiter.Allow() {
			toPromote = append(toPromote, d.env)
			continue
		}
		stillWaiting = append(stillWaiting, d)
	}
	q.pending = append(q.pending, toPromote...)
	q.delayed = stillWaiting
	q.mu.Unlock()
	if len(toPromote) > 0 {
		q.wake()
	}
}

func (q *MemQueue) runConsumer(ctx context.Context, processor Processor) {
	for {
		if ctx.Err() != nil {
			return
		}

		env, ok := q.popPending()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			case <-time.After(20 * time.Millisecond):
				continue
			}
		}

		if err := processor(ctx, env.Job); err != nil {
			q.handleFailure(env, err)
			continue
		}
		q.handleSuccess(env)
	}
}

func (q *MemQueue) popPending() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return envelope{}, false
	}
	env := q.pending[0]
	q.pending = q.pending[1:]
	return env, true
}

func (q *MemQueue) handleSuccess(env envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, env)
}

// handleFailure dead-letters env immediately when cause isn't retryable
// (spec.md §7: validation and invalid-direction failures are not worth
// retrying — the job would fail the same way every time), otherwise applies
// the exponential backoff schedule up to MaxAttempts.
func (q *MemQueue) handleFailure(env envelope, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !apperrors.Retryable(cause) || env.Attempt >= q.retry.MaxAttempts {
		q.dead = append(q.dead, env)
		q.failed = append(q.failed, env)
		return
	}
	backoff := q.retry.backoffFor(env.Attempt)
	env.Attempt++
	q.delayed = append(q.delayed, delayedEnvelope{env: env, readyAt: q.now().Add(backoff)})
}

// CompletedCount reports the retained completed-job record count.
func (q *MemQueue) CompletedCount(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.completed)), nil
}

// DeadLetterCount reports the retained dead-lettered job record count.
func (q *MemQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.dead)), nil
}

// Close is a no-op for the in-memory fake.
func (q *MemQueue) Close() error { return nil }
