package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// envelope is the wire record stored in Redis: the job plus retry
// bookkeeping the adapter needs but the core never sees.
type envelope struct {
	Job     *order.Job `json:"job"`
	Attempt int        `json:"attempt"`
}

// promoteDueScript atomically moves delayed retries whose backoff has
// elapsed back onto the pending list, mirroring the teacher's pattern of
// doing read-modify-write as a single Lua script
// (rate-limiter/gateway/ratelimiter/token_bucket.go) to avoid a race between
// two promoter instances double-delivering the same retry.
var promoteDueScript = redis.NewScript(`
local delayed_key = KEYS[1]
local pending_key = KEYS[2]
local now = tonumber(ARGV[1])
local batch = tonumber(ARGV[2])

local due = redis.call('ZRANGEBYSCORE', delayed_key, '-inf', now, 'LIMIT', 0, batch)
for _, item in ipairs(due) do
    redis.call('ZREM', delayed_key, item)
    redis.call('RPUSH', pending_key, item)
end
return #due
`)

// RedisQueue is the production Queue adapter, built directly on
// go-redis/v9 the way the teacher builds ratelimiter.TokenBucket: plain
// list/sorted-set primitives plus one Lua script for the one operation that
// must be atomic, rather than a separate task-queue framework.
type RedisQueue struct {
	client    redis.Cmdable
	prefix    string
	retry     RetryPolicy
	retention int64

	pendingKey   string
	delayedKey   string
	deadKey      string
	completedKey string
	failedKey    string

	promoteEvery   time.Duration
	promoteLimiter *rate.Limiter
}

// NewRedisQueue constructs a RedisQueue namespaced under prefix.
func NewRedisQueue(client redis.Cmdable, prefix string, retry RetryPolicy, retention int64) *RedisQueue {
	if retention <= 0 {
		retention = 500
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &RedisQueue{
		client:       client,
		prefix:       prefix,
		retry:        retry,
		retention:    retention,
		pendingKey:   prefix + ":pending",
		delayedKey:   prefix + ":delayed",
		deadKey:      prefix + ":dead",
		completedKey: prefix + ":completed",
		failedKey:    prefix + ":failed",
		promoteEvery: 250 * time.Millisecond,
		// Gates each promotion pass; a pass moves at most 100 due retries
		// back onto the pending list.
		promoteLimiter: rate.NewLimiter(rate.Limit(50), 50),
	}
}

// Enqueue submits job as a first-attempt envelope onto the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, job *order.Job) error {
	data, err := json.Marshal(envelope{Job: job, Attempt: 1})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.pendingKey, data).Err()
}

// Start runs concurrency consumer goroutines plus one delayed-retry
// promoter goroutine until ctx is canceled.
func (q *RedisQueue) Start(ctx context.Context, concurrency int, processor Processor) error {
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

func (q *RedisQueue) runPromoter(ctx context.Context) {
	ticker := time.NewTicker(q.promoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.promoteLimiter.Wait(ctx); err != nil {
				continue
			}
			now := float64(time.Now().UnixMilli())
			promoteDueScript.Run(ctx, q.client, []string{q.delayedKey, q.pendingKey}, now, 100)
		}
	}
}

func (q *RedisQueue) runConsumer(ctx context.Context, processor Processor) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := q.client.BRPop(ctx, time.Second, q.pendingKey).Result()
		if err == redis.Nil || (err != nil && ctx.Err() != nil) {
			continue
		}
		if err != nil {
			continue
		}
		if len(res) < 2 {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			continue
		}

		if perr := processor(ctx, env.Job); perr != nil {
			q.handleFailure(ctx, env, perr)
			continue
		}
		q.handleSuccess(ctx, env)
	}
}

func (q *RedisQueue) handleSuccess(ctx context.Context, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	pipe := q.client.Pipeline()
	pipe.RPush(ctx, q.completedKey, data)
	pipe.LTrim(ctx, q.completedKey, -q.retention, -1)
	pipe.Exec(ctx)
}

// handleFailure dead-letters env immediately when cause isn't retryable
// (spec.md §7: validation and invalid-direction failures are not worth
// retrying), otherwise applies the exponential backoff schedule up to
// MaxAttempts.
func (q *RedisQueue) handleFailure(ctx context.Context, env envelope, cause error) {
	if !apperrors.Retryable(cause) || env.Attempt >= q.retry.MaxAttempts {
		data, err := json.Marshal(env)
		if err != nil {
			return
		}
		pipe := q.client.Pipeline()
		pipe.RPush(ctx, q.deadKey, data)
		pipe.LTrim(ctx, q.deadKey, -q.retention, -1)
		pipe.RPush(ctx, q.failedKey, data)
		pipe.LTrim(ctx, q.failedKey, -q.retention, -1)
		pipe.Exec(ctx)
		return
	}

	backoff := q.retry.backoffFor(env.Attempt)
	env.Attempt++
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	score := float64(time.Now().Add(backoff).UnixMilli())
	q.client.ZAdd(ctx, q.delayedKey, redis.Z{Score: score, Member: data})
}

// CompletedCount reports the retained completed-job record count.
func (q *RedisQueue) CompletedCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.completedKey).Result()
}

// DeadLetterCount reports the retained dead-lettered job record count.
func (q *RedisQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadKey).Result()
}

// Close is a no-op: the Redis client's lifecycle is owned by the caller
// that constructed it.
func (q *RedisQueue) Close() error { return nil }
