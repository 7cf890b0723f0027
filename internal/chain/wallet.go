// Package chain wraps gagliardetto/solana-go's rpc.Client for transaction
// submission and confirmation (spec.md §4.7 steps 6-7), and decodes the
// signer's private key from any of the three formats operators commonly
// paste into WALLET_PRIVATE_KEY (spec.md §6): base58, base64, or a JSON
// byte array. Grounded on the solana-go usage in
// DimaJoyti-ai-agentic-crypto-browser's internal/web3/solana package
// (solana.PublicKey/solana.Signature as first-class wire types) and the
// VladislavFirsov-solana-token-lab manifest's pairing of solana-go with
// mr-tron/base58 for key decoding.
package chain

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
)

// ParseWalletPrivateKey decodes raw into a solana.PrivateKey, trying
// base58, then base64, then a JSON byte array, in that order — base58 is
// tried first because it's the format solana-go's own CLI and SDKs emit by
// default.
func ParseWalletPrivateKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.New(apperrors.KindValidation, "WALLET_PRIVATE_KEY is empty")
	}

	if key, err := parseBase58Key(raw); err == nil {
		return key, nil
	}
	if key, err := parseBase64Key(raw); err == nil {
		return key, nil
	}
	if key, err := parseJSONByteArrayKey(raw); err == nil {
		return key, nil
	}
	return nil, apperrors.New(apperrors.KindValidation, "WALLET_PRIVATE_KEY is not valid base58, base64, or a JSON byte array")
}

func parseBase58Key(raw string) (solana.PrivateKey, error) {
	decoded, err := base58.Decode(raw)
	if err != nil {
		return nil, err
	}
	return solana.PrivateKey(decoded), validateKeyLength(decoded)
}

func parseBase64Key(raw string) (solana.PrivateKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return solana.PrivateKey(decoded), validateKeyLength(decoded)
}

func parseJSONByteArrayKey(raw string) (solana.PrivateKey, error) {
	var bytes []byte
	if err := json.Unmarshal([]byte(raw), &bytes); err != nil {
		return nil, err
	}
	return solana.PrivateKey(bytes), validateKeyLength(bytes)
}

func validateKeyLength(decoded []byte) error {
	if len(decoded) != solana.PrivateKeyLen {
		return apperrors.Newf(apperrors.KindValidation, "decoded key has length %d, want %d", len(decoded), solana.PrivateKeyLen)
	}
	return nil
}
