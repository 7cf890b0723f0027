package chain

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func TestParseWalletPrivateKeyBase58(t *testing.T) {
	key := sampleKey(t)
	encoded := base58.Encode(key)

	parsed, err := ParseWalletPrivateKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseWalletPrivateKeyBase64(t *testing.T) {
	key := sampleKey(t)
	// The standard base64 encoding of a 64-byte key always ends in "=="
	// padding, which base58's alphabet excludes, so the fixture never also
	// parses as base58.
	encoded := base64.StdEncoding.EncodeToString(key)

	_, err := base58.Decode(encoded)
	require.Error(t, err, "fixture must not be valid base58 to isolate the base64 path")

	parsed, err := ParseWalletPrivateKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseWalletPrivateKeyJSONByteArray(t *testing.T) {
	key := sampleKey(t)
	asInts := make([]int, len(key))
	for i, b := range key {
		asInts[i] = int(b)
	}
	raw, err := json.Marshal(asInts)
	require.NoError(t, err)

	parsed, err := ParseWalletPrivateKey(string(raw))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseWalletPrivateKeyRejectsEmpty(t *testing.T) {
	_, err := ParseWalletPrivateKey("")
	assert.Error(t, err)
}

func TestParseWalletPrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParseWalletPrivateKey("not-a-key-in-any-format!!!")
	assert.Error(t, err)
}
