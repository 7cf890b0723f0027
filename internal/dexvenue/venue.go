// Package dexvenue declares the DEX client interface (spec.md §4.2): the
// capability every venue backend exposes to the router, and two concrete
// constant-product AMM variants standing in for Raydium- and Orca-style
// pools. New venues are new variants registered with the router; the
// interface never grows a branch for them.
package dexvenue

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// Quote errors (spec.md §4.2).
var (
	ErrNoPool      = errors.New("no-pool")
	ErrStaleData   = errors.New("stale-data")
	ErrTransport   = errors.New("transport-error")
)

// Build errors (spec.md §4.2).
var (
	ErrPoolChanged          = errors.New("pool-changed")
	ErrInvalidDirection     = errors.New("invalid-direction")
	ErrInsufficientBalance  = errors.New("insufficient-balance")
)

// BuildSwapInput is everything a venue needs to build the winning
// transaction for an order that already has a quote in hand.
type BuildSwapInput struct {
	OrderID   string
	Order     order.Request
	Quote     order.QuoteResponse
	SignerKey solana.PrivateKey
}

// Venue is the capability every DEX backend exposes. Implementations must
// be safe for concurrent Quote calls; the router fans out to every
// registered venue at once.
type Venue interface {
	// Name identifies the venue in routing decisions and history rows.
	Name() string
	// Quote prices req against the venue's current pools. May fail with
	// ErrNoPool, ErrStaleData, or ErrTransport (wrapped in an
	// *apperrors.Error where the caller needs a Kind).
	Quote(ctx context.Context, req order.QuoteRequest) (order.QuoteResponse, error)
	// BuildSwap constructs the transaction for a previously returned quote.
	// It must embed quote.MinOut as the on-chain minimum-output floor and
	// must not re-apply slippage.
	BuildSwap(ctx context.Context, in BuildSwapInput) (order.BuiltTransaction, error)
}

// asRoutingError wraps a sentinel quote/build error in an *apperrors.Error
// with the appropriate Kind for propagation up through the router/worker.
func asRoutingError(venue string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidDirection):
		return apperrors.Wrap(apperrors.KindBuildInvalidDirection, err, venue)
	default:
		return apperrors.Wrap(apperrors.KindInternal, err, venue)
	}
}
