package chain

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// Commitment mirrors internal/config's commitment level so this package
// doesn't import config and create a cycle.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rpcCommitment() rpc.CommitmentType {
	switch c {
	case CommitmentProcessed:
		return rpc.CommitmentProcessed
	case CommitmentFinalized:
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

const confirmPollInterval = 400 * time.Millisecond

// Client submits built transactions and polls for confirmation at a
// configured commitment level.
type Client struct {
	rpc         *rpc.Client
	commitment  Commitment
	pollTimeout time.Duration
}

// New constructs a Client against rpcURL.
func New(rpcURL string, commitment Commitment, pollTimeout time.Duration) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Client{rpc: rpc.New(rpcURL), commitment: commitment, pollTimeout: pollTimeout}
}

// Submit sends built's opaque wire bytes to the cluster and returns the
// transaction signature. built.Transaction is treated as an
// already-signed, base64-ready payload — the venue that produced it owns
// signing (spec.md §4.2).
func (c *Client) Submit(ctx context.Context, built order.BuiltTransaction) (solana.Signature, error) {
	encoded := base64.StdEncoding.EncodeToString(built.Transaction)
	sig, err := c.rpc.SendEncodedTransactionWithOpts(ctx, encoded, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment.rpcCommitment(),
	})
	if err != nil {
		return solana.Signature{}, apperrors.Wrap(apperrors.KindSubmitChainError, err, "chain: submit failed")
	}
	return sig, nil
}

// Confirm polls GetSignatureStatuses until sig reaches the configured
// commitment level, ctx is canceled, or pollTimeout elapses.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return apperrors.Wrap(apperrors.KindSubmitChainError, err, "chain: confirm status lookup failed")
		}
		if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return apperrors.Newf(apperrors.KindSubmitChainError, "chain: transaction failed on-chain: %v", status.Err)
			}
			if c.atOrPastCommitment(status.ConfirmationStatus) {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return apperrors.New(apperrors.KindSubmitChainError, "chain: confirmation timed out")
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.KindSubmitChainError, ctx.Err(), "chain: confirm canceled")
		case <-ticker.C:
		}
	}
}

func (c *Client) atOrPastCommitment(status rpc.ConfirmationStatusType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 0,
		rpc.ConfirmationStatusConfirmed: 1,
		rpc.ConfirmationStatusFinalized: 2,
	}
	want := map[Commitment]int{
		CommitmentProcessed: 0,
		CommitmentConfirmed: 1,
		CommitmentFinalized: 2,
	}[c.commitment]
	return rank[status] >= want
}
