package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/dexvenue"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

type fakeVenue struct {
	name  string
	out   uint64
	delay time.Duration
	err   error
}

func (f fakeVenue) Name() string { return f.name }

func (f fakeVenue) Quote(ctx context.Context, req order.QuoteRequest) (order.QuoteResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return order.QuoteResponse{}, ctx.Err()
		}
	}
	if f.err != nil {
		return order.QuoteResponse{}, f.err
	}
	return order.QuoteResponse{Venue: f.name, EstimatedOut: f.out, Request: req}, nil
}

func (f fakeVenue) BuildSwap(ctx context.Context, in dexvenue.BuildSwapInput) (order.BuiltTransaction, error) {
	return order.BuiltTransaction{}, nil
}

func TestRoutePicksHighestEstimatedOut(t *testing.T) {
	r := New([]dexvenue.Venue{
		fakeVenue{name: "low", out: 100},
		fakeVenue{name: "high", out: 200},
	}, time.Second, nil)

	decision, err := r.Route(context.Background(), order.QuoteRequest{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, "high", decision.VenueName)
	assert.Len(t, decision.Candidates, 2)
}

func TestRouteTieBreaksByRegistrationOrder(t *testing.T) {
	r := New([]dexvenue.Venue{
		fakeVenue{name: "first", out: 150},
		fakeVenue{name: "second", out: 150},
	}, time.Second, nil)

	decision, err := r.Route(context.Background(), order.QuoteRequest{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, "first", decision.VenueName)
}

func TestRouteFailsWithNoQuotesWhenAllVenuesError(t *testing.T) {
	r := New([]dexvenue.Venue{
		fakeVenue{name: "a", err: errors.New("boom")},
		fakeVenue{name: "b", err: errors.New("boom")},
	}, time.Second, nil)

	_, err := r.Route(context.Background(), order.QuoteRequest{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRoutingNoQuotes, apperrors.KindOf(err))
}

func TestRouteFailsWithTimeoutWhenDeadlineElapses(t *testing.T) {
	r := New([]dexvenue.Venue{
		fakeVenue{name: "slow", out: 999, delay: 50 * time.Millisecond},
	}, 5*time.Millisecond, nil)

	_, err := r.Route(context.Background(), order.QuoteRequest{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRoutingTimeout, apperrors.KindOf(err))
}
