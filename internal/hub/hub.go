// Package hub implements the subscriber hub (spec.md §3's Ownership note,
// §8's subscriber-delivery invariant): per-order pub/sub with a backlog so a
// subscriber attaching after the first few status messages still receives
// every prior message for its order. Grounded directly on the teacher's
// internal/marketdata/publisher.go — same map-of-channels-under-a-mutex
// shape, non-blocking sends — generalized from per-symbol market data
// fan-out to per-orderId status fan-out, and extended with the backlog the
// spec requires (the teacher's publisher has none; late subscribers there
// simply miss history).
package hub

import (
	"sync"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

const subscriberBufferSize = 32

// Hub fans out order.StatusMessage values to subscribers of a given
// orderId, retaining a backlog so late subscribers can catch up.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string][]chan order.StatusMessage
	backlog map[string][]order.StatusMessage
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{
		subs:    make(map[string][]chan order.StatusMessage),
		backlog: make(map[string][]order.StatusMessage),
	}
}

// Subscribe attaches a new subscriber to orderId and immediately replays
// the backlog of messages already sent for that order, in emission order,
// before returning the channel for live delivery.
func (h *Hub) Subscribe(orderID string) <-chan order.StatusMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan order.StatusMessage, subscriberBufferSize)
	for _, msg := range h.backlog[orderID] {
		ch <- msg
	}
	h.subs[orderID] = append(h.subs[orderID], ch)
	return ch
}

// Publish records msg in orderId's backlog and delivers it to every current
// subscriber. Delivery is non-blocking: a slow subscriber drops the update
// rather than stalling the worker (mirrors the teacher's PublishL1).
func (h *Hub) Publish(orderID string, msg order.StatusMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.backlog[orderID] = append(h.backlog[orderID], msg)

	for _, ch := range h.subs[orderID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Unsubscribe detaches ch from orderId and closes it. It is a no-op if ch
// is not currently subscribed.
func (h *Hub) Unsubscribe(orderID string, ch <-chan order.StatusMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[orderID]
	for i, sub := range subs {
		if sub == ch {
			h.subs[orderID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Forget drops the backlog and any remaining subscriber channels for
// orderId once its lifecycle has reached a terminal state and no further
// messages will be published.
func (h *Hub) Forget(orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[orderID] {
		close(ch)
	}
	delete(h.subs, orderID)
	delete(h.backlog, orderID)
}
