package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/dexvenue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/ratelimit"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/router"
)

type fakeVenue struct {
	name string
	out  uint64
}

func (v *fakeVenue) Name() string { return v.name }

func (v *fakeVenue) Quote(ctx context.Context, req order.QuoteRequest) (order.QuoteResponse, error) {
	return order.QuoteResponse{
		Venue:        v.name,
		EstimatedOut: v.out,
		MinOut:       order.MinOutFor(v.out, req.SlippageBps),
		Request:      req,
	}, nil
}

func (v *fakeVenue) BuildSwap(ctx context.Context, in dexvenue.BuildSwapInput) (order.BuiltTransaction, error) {
	return order.BuiltTransaction{Transaction: []byte("built:" + in.OrderID)}, nil
}

type fakeChain struct {
	submitErr  error
	confirmErr error
	submitted  []order.BuiltTransaction
}

func (c *fakeChain) Submit(ctx context.Context, built order.BuiltTransaction) (solana.Signature, error) {
	if c.submitErr != nil {
		return solana.Signature{}, c.submitErr
	}
	c.submitted = append(c.submitted, built)
	var sig solana.Signature
	sig[0] = byte(len(c.submitted))
	return sig, nil
}

func (c *fakeChain) Confirm(ctx context.Context, sig solana.Signature) error {
	return c.confirmErr
}

func newTestWorker(t *testing.T, venue dexvenue.Venue, ch Chain) (*Worker, history.Store, *hub.Hub) {
	t.Helper()
	r := router.New([]dexvenue.Venue{venue}, time.Second, nil)
	store := history.NewMemStore()
	h := hub.New()
	limiter := ratelimit.New(1000, time.Minute)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w := New(Config{
		Router:        r,
		Chain:         ch,
		History:       store,
		Hub:           h,
		Limiter:       limiter,
		SignerKey:     key,
		ChainExplorer: "https://explorer.solana.com",
		Cluster:       "devnet",
		SlippageBps:   50,
	})
	return w, store, h
}

func TestProcessConfirmsAndRecordsFullLifecycle(t *testing.T) {
	venue := &fakeVenue{name: "raydium", out: 1_000_000}
	chainFake := &fakeChain{}
	w, store, h := newTestWorker(t, venue, chainFake)

	req := order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1_000_000_000, Type: order.TypeMarket}
	job := order.NewJob("ORDER1", req, time.Now())
	require.NoError(t, store.Create(context.Background(), job, "accepted"))

	sub := h.Subscribe("ORDER1")

	err := w.Process(context.Background(), job)
	require.NoError(t, err)

	rec, ok, err := store.Get(context.Background(), "ORDER1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusConfirmed, rec.Status)
	assert.Equal(t, "raydium", rec.Venue)
	assert.Equal(t, uint64(1_000_000), rec.ExecutedAmount)
	assert.NotEmpty(t, rec.TxHash)
	assert.Contains(t, rec.ExplorerLink, rec.TxHash)

	var statuses []order.Status
	for i := 0; i < 5; i++ {
		select {
		case msg := <-sub:
			statuses = append(statuses, msg.Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for status %d", i)
		}
	}
	assert.Equal(t, []order.Status{
		order.StatusQueued,
		order.StatusRouting,
		order.StatusBuilding,
		order.StatusSubmitted,
		order.StatusConfirmed,
	}, statuses)
}

func TestProcessFailsAndRecordsWhenSubmitErrors(t *testing.T) {
	venue := &fakeVenue{name: "raydium", out: 1_000_000}
	chainFake := &fakeChain{submitErr: errors.New("rpc unavailable")}
	w, store, _ := newTestWorker(t, venue, chainFake)

	req := order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1_000_000_000, Type: order.TypeMarket}
	job := order.NewJob("ORDER2", req, time.Now())
	require.NoError(t, store.Create(context.Background(), job, "accepted"))

	err := w.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, "rpc unavailable", job.LastError)

	rec, ok, err := store.Get(context.Background(), "ORDER2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusFailed, rec.Status)
	assert.Equal(t, "rpc unavailable", rec.LastError)
}

func TestProcessIsIdempotentAboutNonRepeatableStatusesOnRetry(t *testing.T) {
	venue := &fakeVenue{name: "raydium", out: 1_000_000}
	chainFake := &fakeChain{confirmErr: errors.New("confirm timed out")}
	w, store, _ := newTestWorker(t, venue, chainFake)

	req := order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1_000_000_000, Type: order.TypeMarket}
	job := order.NewJob("ORDER3", req, time.Now())
	require.NoError(t, store.Create(context.Background(), job, "accepted"))

	require.Error(t, w.Process(context.Background(), job))
	require.True(t, job.HasEmitted(order.StatusRouting))

	chainFake.confirmErr = nil
	require.NoError(t, w.Process(context.Background(), job))

	rec, ok, err := store.Get(context.Background(), "ORDER3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusConfirmed, rec.Status)

	queuedCount := 0
	for _, entry := range rec.StatusHistory {
		if entry.Status == order.StatusQueued {
			queuedCount++
		}
	}
	assert.Equal(t, 1, queuedCount, "queued must be recorded exactly once across retries")
}
