package dexvenue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceConstantProductAppliesFee(t *testing.T) {
	p := Pool{
		TokenIn:    "SOL",
		TokenOut:   "USDC",
		ReserveIn:  1_000_000,
		ReserveOut: 100_000_000,
		FeeBps:     30,
	}
	out, impact, ok := priceConstantProduct(p, 10_000)
	require.True(t, ok)
	assert.Greater(t, out, uint64(0))
	assert.GreaterOrEqual(t, impact, 0)

	outNoFee, _, _ := priceConstantProduct(Pool{
		TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1_000_000, ReserveOut: 100_000_000, FeeBps: 0,
	}, 10_000)
	assert.Greater(t, outNoFee, out, "a pool with no fee must yield strictly more output")
}

func TestPriceConstantProductRejectsEmptyReserves(t *testing.T) {
	_, _, ok := priceConstantProduct(Pool{TokenIn: "SOL", TokenOut: "USDC"}, 1000)
	assert.False(t, ok)
}

func TestBestPoolHonorsFanOutBound(t *testing.T) {
	pools := []Pool{
		{TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1_000_000, ReserveOut: 10_000_000, FeeBps: 25},
		{TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1_000_000, ReserveOut: 90_000_000, FeeBps: 25},
		{TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1_000_000, ReserveOut: 20_000_000, FeeBps: 25},
		// Fourth pool has the best price but sits past the default fan-out of 3.
		{TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1_000_000, ReserveOut: 999_000_000, FeeBps: 25},
	}
	_, out, _, ok := bestPool(pools, "SOL", "USDC", 10_000, 3)
	require.True(t, ok)

	_, outUnbounded, _, _ := bestPool(pools, "SOL", "USDC", 10_000, 4)
	assert.Greater(t, outUnbounded, out, "unbounded fan-out should find the better-priced fourth pool")
}

func TestBestPoolNoMatch(t *testing.T) {
	pools := []Pool{{TokenIn: "SOL", TokenOut: "USDC", ReserveIn: 1, ReserveOut: 1, FeeBps: 0}}
	_, _, _, ok := bestPool(pools, "ETH", "USDC", 100, 3)
	assert.False(t, ok)
}

func TestMustPkIsDeterministic(t *testing.T) {
	a := mustPk("seed-1")
	b := mustPk("seed-1")
	c := mustPk("seed-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
