package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// LowBalance is the threshold under which a faucet top-up is requested.
	LowBalance = solana.LAMPORTS_PER_SOL / 20
	// AirdropAmount is what one top-up requests.
	AirdropAmount = solana.LAMPORTS_PER_SOL
)

// Chain is the RPC surface funding needs.
type Chain interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Balance returns the wallet balance in lamports.
func (m *Manager) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return m.chain.Balance(ctx, account)
}

// Airdrop requests lamports and waits for confirmation.
func (m *Manager) Airdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := m.chain.RequestAirdrop(ctx, account, lamports)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := m.chain.Confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// EnsureFunded requests an airdrop when the balance is under LowBalance.
// It reports whether an airdrop happened.
func (m *Manager) EnsureFunded(ctx context.Context, account solana.PublicKey) (bool, error) {
	balance, err := m.chain.Balance(ctx, account)
	if err != nil {
		return false, err
	}
	m.log.DebugContext(ctx, "wallet balance", "address", account.String(), "sol", lamportsToSOL(balance))
	if balance >= LowBalance {
		return false, nil
	}

	m.log.InfoContext(ctx, "balance is low, requesting airdrop", "address", account.String())
	if _, err := m.Airdrop(ctx, account, AirdropAmount); err != nil {
		return false, fmt.Errorf("Failed to get devnet SOL. Please request SOL from a devnet faucet manually: %w", err)
	}
	if after, err := m.chain.Balance(ctx, account); err == nil {
		m.log.InfoContext(ctx, "airdrop successful", "balance_sol", lamportsToSOL(after))
	}
	return true, nil
}

// FundInBackground runs EnsureFunded on its own goroutine. Failures are
// logged only; Wait blocks until pending attempts finish.
func (m *Manager) FundInBackground(ctx context.Context, account solana.PublicKey) {
	if m.chain == nil {
		return
	}
	m.funding.Add(1)
	go func() {
		defer m.funding.Done()
		if _, err := m.EnsureFunded(ctx, account); err != nil {
			m.log.WarnContext(ctx, "error checking wallet balance or requesting airdrop", "err", err)
		}
	}()
}

// Wait blocks until background funding attempts have finished.
func (m *Manager) Wait() {
	m.funding.Wait()
}

func lamportsToSOL(l uint64) float64 {
	return float64(l) / float64(solana.LAMPORTS_PER_SOL)
}
