// Package chain is the thin Solana RPC layer shared by the wallet and the
// minter.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DevnetRPC is the public devnet endpoint.
const DevnetRPC = rpc.DevNet_RPC

// ErrConfirmTimeout is returned when a signature is not confirmed in time.
var ErrConfirmTimeout = errors.New("transaction was not confirmed in time")

// Client wraps a solana-go RPC client.
type Client struct {
	rpc          *rpc.Client
	pollInterval time.Duration
	confirmWait  time.Duration
}

// New dials endpoint (devnet when empty).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DevnetRPC
	}
	return &Client{
		rpc:          rpc.New(endpoint),
		pollInterval: 500 * time.Millisecond,
		confirmWait:  90 * time.Second,
	}
}

// WithPolling overrides the confirmation poll interval and deadline.
func (c *Client) WithPolling(interval, wait time.Duration) *Client {
	c.pollInterval = interval
	c.confirmWait = wait
	return c
}

// Balance returns the account balance in lamports.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

// RequestAirdrop asks the faucet for lamports.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("request airdrop: %w", err)
	}
	return sig, nil
}

// LatestBlockhash returns a recent blockhash for a new transaction.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// RentExemption returns the minimum balance for an account of size bytes.
func (c *Client) RentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get rent exemption: %w", err)
	}
	return lamports, nil
}

// Send submits a signed transaction.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// Confirm polls until sig reaches confirmed commitment, fails, or the
// deadline passes.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
