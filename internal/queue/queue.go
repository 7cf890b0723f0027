// Package queue implements the reliable queue adapter (spec.md §4.6): at
// least-once delivery, bounded consumer concurrency, exponential backoff
// retries, dead-lettering, and retention of completed/failed job records.
// The core depends only on the Queue interface; RedisQueue is the
// production adapter and MemQueue (memory_queue.go) is a deterministic
// fake for tests, mirroring the teacher's pattern of keeping the Redis
// wire format (rate-limiter/gateway/ratelimiter/token_bucket.go) isolated
// behind a narrow interface.
package queue

import (
	"context"
	"time"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// Processor handles one dequeued job. Returning an error applies the
// queue's retry policy; returning nil acknowledges the job as complete.
type Processor func(ctx context.Context, job *order.Job) error

// RetryPolicy configures the adapter's exponential backoff (spec.md §4.6
// default: up to 3 attempts, initial 2000ms, exponent 2).
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Exponent       float64
}

// DefaultRetryPolicy returns spec.md §4.6's default backoff schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, Exponent: 2}
}

// backoffFor returns the delay before the (1-indexed) attempt-th retry.
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	delay := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= p.Exponent
	}
	return time.Duration(delay)
}

// Queue is the reliable queue adapter's capability surface. Enqueue and
// Start are the only operations the core depends on (spec.md §4.6);
// the retention accessors exist for operational inspection.
type Queue interface {
	// Enqueue submits job for at-least-once delivery.
	Enqueue(ctx context.Context, job *order.Job) error
	// Start runs a consumer loop with the given bounded concurrency until
	// ctx is canceled. It blocks until all consumer goroutines exit.
	Start(ctx context.Context, concurrency int, processor Processor) error
	// CompletedCount reports how many job records are retained as completed.
	CompletedCount(ctx context.Context) (int64, error)
	// DeadLetterCount reports how many job records have exhausted retries.
	DeadLetterCount(ctx context.Context) (int64, error)
	// Close releases the adapter's resources.
	Close() error
}
