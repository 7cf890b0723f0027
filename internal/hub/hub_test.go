package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

func TestSubscriberAttachedBeforeEmissionReceivesEveryMessageInOrder(t *testing.T) {
	h := New()
	ch := h.Subscribe("ORDER1")

	h.Publish("ORDER1", order.StatusMessage{OrderID: "ORDER1", Status: order.StatusPending})
	h.Publish("ORDER1", order.StatusMessage{OrderID: "ORDER1", Status: order.StatusQueued})

	first := recv(t, ch)
	second := recv(t, ch)
	assert.Equal(t, order.StatusPending, first.Status)
	assert.Equal(t, order.StatusQueued, second.Status)
}

func TestLateSubscriberReceivesFullBacklogOnAttach(t *testing.T) {
	h := New()
	h.Publish("ORDER2", order.StatusMessage{OrderID: "ORDER2", Status: order.StatusPending})
	h.Publish("ORDER2", order.StatusMessage{OrderID: "ORDER2", Status: order.StatusQueued})

	ch := h.Subscribe("ORDER2")
	first := recv(t, ch)
	second := recv(t, ch)
	assert.Equal(t, order.StatusPending, first.Status)
	assert.Equal(t, order.StatusQueued, second.Status)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	ch := h.Subscribe("ORDER3")
	h.Unsubscribe("ORDER3", ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishIsIsolatedPerOrder(t *testing.T) {
	h := New()
	chA := h.Subscribe("A")
	h.Publish("B", order.StatusMessage{OrderID: "B", Status: order.StatusPending})

	select {
	case <-chA:
		t.Fatal("subscriber to A must not receive B's messages")
	case <-time.After(10 * time.Millisecond):
	}
}

func recv(t *testing.T, ch <-chan order.StatusMessage) order.StatusMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for message")
		return order.StatusMessage{}
	}
}
