package dexvenue

import (
	"crypto/sha256"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// mustPk derives a deterministic, valid-by-construction public key from an
// arbitrary seed string. Seed pool identifiers below read as mnemonic
// labels; hashing sidesteps hand-computing valid base58 public keys for
// fixture data.
func mustPk(seed string) solana.PublicKey {
	digest := sha256.Sum256([]byte(seed))
	return solana.PublicKeyFromBytes(digest[:])
}

// Pool is a single constant-product liquidity reserve pair.
type Pool struct {
	ID         solana.PublicKey
	MintIn     solana.PublicKey
	MintOut    solana.PublicKey
	TokenIn    string
	TokenOut   string
	ReserveIn  uint64
	ReserveOut uint64
	FeeBps     int
}

// matches reports whether the pool can price tokenIn -> tokenOut directly.
func (p Pool) matches(tokenIn, tokenOut string) bool {
	return p.TokenIn == tokenIn && p.TokenOut == tokenOut
}

// priceConstantProduct prices amountIn against a constant-product pool
// (x*y=k) net of the pool's fee, per spec.md §4.2's per-venue invariant for
// constant-product-style venues.
func priceConstantProduct(p Pool, amountIn uint64) (estimatedOut uint64, priceImpactBps int, ok bool) {
	if p.ReserveIn == 0 || p.ReserveOut == 0 || amountIn == 0 {
		return 0, 0, false
	}
	amountInAfterFee := amountIn * uint64(10000-p.FeeBps) / 10000
	// out = reserveOut * amountInAfterFee / (reserveIn + amountInAfterFee)
	hi, lo := bits.Mul64(p.ReserveOut, amountInAfterFee)
	denominator := p.ReserveIn + amountInAfterFee
	if denominator == 0 || hi >= denominator {
		return 0, 0, false
	}
	out, _ := bits.Div64(hi, lo, denominator)
	if out == 0 || out >= p.ReserveOut {
		return 0, 0, false
	}

	// priceImpactBps approximates the deviation of the executed price from
	// the pre-trade spot price, expressed in bps.
	var spotOut uint64
	if spotHi, spotLo := bits.Mul64(amountIn, p.ReserveOut); spotHi < p.ReserveIn {
		spotOut, _ = bits.Div64(spotHi, spotLo, p.ReserveIn)
	}
	if spotOut > 0 && spotOut > out {
		impact := (spotOut - out) * 10000 / spotOut
		priceImpactBps = int(impact)
	}
	return out, priceImpactBps, true
}

// bestPool evaluates up to maxFanOut matching pools and returns the one with
// the highest estimatedOut, per spec.md §4.2's bounded fan-out of 3.
func bestPool(pools []Pool, tokenIn, tokenOut string, amountIn uint64, maxFanOut int) (Pool, uint64, int, bool) {
	if maxFanOut <= 0 {
		maxFanOut = 3
	}
	var (
		best       Pool
		bestOut    uint64
		bestImpact int
		found      bool
		evaluated  int
	)
	for _, p := range pools {
		if !p.matches(tokenIn, tokenOut) {
			continue
		}
		if evaluated >= maxFanOut {
			break
		}
		evaluated++
		out, impact, ok := priceConstantProduct(p, amountIn)
		if !ok {
			continue
		}
		if !found || out > bestOut {
			best, bestOut, bestImpact, found = p, out, impact, true
		}
	}
	return best, bestOut, bestImpact, found
}

// quoteFromPool assembles an order.QuoteResponse from a priced pool.
func quoteFromPool(venue string, p Pool, estimatedOut uint64, priceImpactBps int, req order.QuoteRequest) order.QuoteResponse {
	return order.QuoteResponse{
		Venue:          venue,
		EstimatedOut:   estimatedOut,
		MinOut:         order.MinOutFor(estimatedOut, req.SlippageBps),
		PriceImpactBps: priceImpactBps,
		FeeBps:         p.FeeBps,
		PoolID:         p.ID.String(),
		RouteMeta: map[string]string{
			"mintIn":  p.MintIn.String(),
			"mintOut": p.MintOut.String(),
		},
		Request: req,
	}
}
