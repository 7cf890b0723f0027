package dexvenue

import (
	"context"
	"fmt"
	"sync"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// RaydiumVenue simulates a Raydium-style constant-product AMM. It holds its
// own pool set and is safe for concurrent Quote/BuildSwap calls.
type RaydiumVenue struct {
	mu        sync.RWMutex
	pools     []Pool
	maxFanOut int
}

// NewRaydiumVenue constructs a RaydiumVenue seeded with pools.
func NewRaydiumVenue(pools []Pool) *RaydiumVenue {
	return &RaydiumVenue{pools: pools, maxFanOut: 3}
}

func (v *RaydiumVenue) Name() string { return "raydium" }

func (v *RaydiumVenue) Quote(ctx context.Context, req order.QuoteRequest) (order.QuoteResponse, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pool, out, impact, ok := bestPool(v.pools, req.TokenIn, req.TokenOut, req.Amount, v.maxFanOut)
	if !ok {
		return order.QuoteResponse{}, apperrors.Wrap(apperrors.KindRoutingNoQuotes, ErrNoPool,
			fmt.Sprintf("raydium: no pool for %s->%s", req.TokenIn, req.TokenOut))
	}
	return quoteFromPool(v.Name(), pool, out, impact, req), nil
}

func (v *RaydiumVenue) BuildSwap(ctx context.Context, in BuildSwapInput) (order.BuiltTransaction, error) {
	if in.Quote.Request.TokenIn != in.Order.TokenIn || in.Quote.Request.TokenOut != in.Order.TokenOut {
		return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrInvalidDirection)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, p := range v.pools {
		if p.ID.String() != in.Quote.PoolID {
			continue
		}
		// Apply the swap against the simulated reserves, embedding the
		// quote's MinOut as the on-chain floor without re-deriving slippage.
		out := in.Quote.EstimatedOut
		if out < in.Quote.MinOut {
			return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrPoolChanged)
		}
		v.pools[i].ReserveIn += in.Order.Amount
		if v.pools[i].ReserveOut < out {
			return order.BuiltTransaction{}, ErrInsufficientBalance
		}
		v.pools[i].ReserveOut -= out

		payload := fmt.Sprintf("raydium-swap:%s:%s->%s:%d:min=%d",
			in.OrderID, in.Order.TokenIn, in.Order.TokenOut, in.Order.Amount, in.Quote.MinOut)
		return order.BuiltTransaction{Transaction: []byte(payload), ExtraSigners: 0}, nil
	}
	return order.BuiltTransaction{}, asRoutingError(v.Name(), ErrPoolChanged)
}

// DefaultRaydiumPools returns a representative seed pool set for devnet-style
// smoke testing; production deployments replace this with pools discovered
// from on-chain state.
func DefaultRaydiumPools() []Pool {
	return []Pool{
		{
			ID:         mustPk("RaydiumPoo1111111111111111111111111111111"),
			MintIn:     mustPk("So11111111111111111111111111111111111111"),
			MintOut:    mustPk("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			TokenIn:    "SOL",
			TokenOut:   "USDC",
			ReserveIn:  500_000_000_000,
			ReserveOut: 50_000_000_000_000,
			FeeBps:     25,
		},
	}
}

