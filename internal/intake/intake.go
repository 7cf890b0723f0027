// Package intake implements order intake (spec.md §4.8): validate the
// client request, assign an order ID, write the initial history row,
// publish the pending status, and enqueue the job for the worker pool.
// Grounded on the teacher's internal/gateway accept-then-enqueue shape —
// the same validate/stamp/persist/enqueue sequence, generalized from an
// equities order ticket to a DEX swap request.
package intake

import (
	"context"
	"strings"
	"time"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/ids"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/metrics"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/queue"
)

// Service accepts client requests, validates them, and hands them off to
// the queue for asynchronous execution.
type Service struct {
	history history.Store
	queue   queue.Queue
	hub     *hub.Hub
	metrics *metrics.Metrics
	now     func() time.Time
}

// New constructs a Service.
func New(store history.Store, q queue.Queue, h *hub.Hub) *Service {
	return &Service{history: store, queue: q, hub: h, now: time.Now}
}

// UseMetrics attaches m so Submit counts accepted orders. A nil m (the
// default) disables instrumentation.
func (s *Service) UseMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Submit validates req, assigns an order ID, persists the initial history
// row, publishes the pending status to the hub, and enqueues the job. It
// returns the order's ID on success.
//
// Callers must not treat a successful return as confirmation that the swap
// executed — it only means the order was accepted for asynchronous
// processing (spec.md §4.8, §6).
func (s *Service) Submit(ctx context.Context, req order.Request) (string, error) {
	req.TokenIn = strings.TrimSpace(req.TokenIn)
	req.TokenOut = strings.TrimSpace(req.TokenOut)
	if req.Type == "" {
		req.Type = order.TypeMarket
	}

	if issues := req.Validate(); len(issues) > 0 {
		return "", &ValidationError{Issues: issues}
	}

	orderID, err := ids.NewOrderID()
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "intake: failed to assign order id")
	}

	job := order.NewJob(orderID, req, s.now())

	if err := s.history.Create(ctx, job, "accepted for execution"); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "intake: failed to persist initial history row")
	}

	s.hub.Publish(orderID, order.StatusMessage{OrderID: orderID, Status: order.StatusPending})

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "intake: failed to enqueue job")
	}

	if s.metrics != nil {
		s.metrics.OrdersAccepted.Inc()
	}

	return orderID, nil
}

// ValidationError reports the schema issues found in Submit's req
// (spec.md §6's 400 response shape: {message, issues}).
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid order request"
}
