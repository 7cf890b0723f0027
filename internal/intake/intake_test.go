package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/queue"
)

func TestSubmitPersistsPublishesAndEnqueues(t *testing.T) {
	store := history.NewMemStore()
	q := queue.NewMemQueue(queue.DefaultRetryPolicy())
	h := hub.New()
	svc := New(store, q, h)

	sub := h.Subscribe("placeholder")
	_ = sub

	orderID, err := svc.Submit(context.Background(), order.Request{
		TokenIn:  "SOL",
		TokenOut: "USDC",
		Amount:   1_000_000_000,
		Type:     order.TypeMarket,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)

	rec, ok, err := store.Get(context.Background(), orderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusPending, rec.Status)
	assert.Equal(t, "SOL", rec.TokenIn)

	liveSub := h.Subscribe(orderID)
	select {
	case msg := <-liveSub:
		assert.Equal(t, order.StatusPending, msg.Status)
	case <-time.After(time.Second):
		t.Fatal("expected the pending status to already be in the backlog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	delivered := make(chan string, 1)
	go q.Start(ctx, 1, func(ctx context.Context, j *order.Job) error {
		delivered <- j.OrderID
		return nil
	})
	select {
	case id := <-delivered:
		assert.Equal(t, orderID, id)
	case <-time.After(time.Second):
		t.Fatal("expected the job to have been enqueued")
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	store := history.NewMemStore()
	q := queue.NewMemQueue(queue.DefaultRetryPolicy())
	h := hub.New()
	svc := New(store, q, h)

	_, err := svc.Submit(context.Background(), order.Request{TokenIn: "SOL", TokenOut: "SOL", Amount: 0})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Issues)
}

func TestSubmitDefaultsOrderType(t *testing.T) {
	store := history.NewMemStore()
	q := queue.NewMemQueue(queue.DefaultRetryPolicy())
	h := hub.New()
	svc := New(store, q, h)

	orderID, err := svc.Submit(context.Background(), order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.NoError(t, err)

	rec, _, err := store.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.TypeMarket, rec.OrderType)
}
