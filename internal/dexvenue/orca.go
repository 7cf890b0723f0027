package dexvenue

import (
	"context"
	"fmt"
	"sync"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// OrcaVenue simulates an Orca-style constant-product AMM. Structurally it
// mirrors RaydiumVenue; it is a separate type so the router's tagged union
// of venue handles has a genuine second case rather than a cloned instance
// of the same concrete type.
type OrcaVenue struct {
	mu        sync.RWMutex
	pools     []Pool
	maxFanOut int
}

// NewOrcaVenue constructs an OrcaVenue seeded with pools.
func NewOrcaVenue(pools []Pool) *OrcaVenue {
	return &OrcaVenue{pools: pools, maxFanOut: 3}
}

func (v *OrcaVenue) Name() string { return "orca" }

func (v *OrcaVenue) Quote(ctx context.Context, req order.QuoteRequest) (order.QuoteResponse, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pool, out, impact, ok := bestPool(v.pools, req.TokenIn, req.TokenOut, req.Amount, v.maxFanOut)
	if !ok {
		return order.QuoteResponse{}, apperrors.Wrap(apperrors.KindRoutingNoQuotes, ErrNoPool,
			fmt.Sprintf("orca: no pool for %s->%s", req.TokenIn, req.TokenOut))
	}
	return quoteFromPool(v.Name(), pool, out, impact, req), nil
}

func (v *OrcaVenue) BuildSwap(ctx context.Context, in BuildSwapInput) (order.BuiltTransaction, error) {
	if in.Quote.Request.TokenIn != in.Order.TokenIn || in.Quote.Request.TokenOut != in.Order.TokenOut {
		return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrInvalidDirection)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, p := range v.pools {
		if p.ID.String() != in.Quote.PoolID {
			continue
		}
		out := in.Quote.EstimatedOut
		if out < in.Quote.MinOut {
			return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrPoolChanged)
		}
		v.pools[i].ReserveIn += in.Order.Amount
		if v.pools[i].ReserveOut < out {
			return order.BuiltTransaction{}, ErrInsufficientBalance
		}
		v.pools[i].ReserveOut -= out

		payload := fmt.Sprintf("orca-swap:%s:%s->%s:%d:min=%d",
			in.OrderID, in.Order.TokenIn, in.Order.TokenOut, in.Order.Amount, in.Quote.MinOut)
		return order.BuiltTransaction{Transaction: []byte(payload), ExtraSigners: 0}, nil
	}
	return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrPoolChanged)
}

// DefaultOrcaPools returns a representative seed pool set distinct from
// Raydium's, giving the router a genuine second price to compare.
func DefaultOrcaPools() []Pool {
	return []Pool{
		{
			ID:         mustPk("orca-pool-sol-usdc"),
			MintIn:     mustPk("So11111111111111111111111111111111111111"),
			MintOut:    mustPk("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			TokenIn:    "SOL",
			TokenOut:   "USDC",
			ReserveIn:  420_000_000_000,
			ReserveOut: 43_000_000_000_000,
			FeeBps:     30,
		},
	}
}
