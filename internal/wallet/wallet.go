// Package wallet manages the burner wallet that pays for minting. The key
// lives in the secret store and the wallet is topped up from the devnet
// faucet whenever its balance runs low.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"

	"github.com/moasq/submint/internal/secrets"
	"github.com/moasq/submint/internal/store"
)

// ErrInvalidMnemonic is returned by Restore for a bad recovery phrase.
var ErrInvalidMnemonic = errors.New("invalid recovery phrase")

// Wallet is a loaded burner keypair. Mnemonic is empty for wallets imported
// from a raw secret key.
type Wallet struct {
	Key      solana.PrivateKey
	Mnemonic string
}

// Address is the wallet's public key.
func (w *Wallet) Address() solana.PublicKey {
	return w.Key.PublicKey()
}

// Manager loads, creates and funds the burner wallet.
type Manager struct {
	secrets secrets.SecretStore
	chain   Chain
	users   store.Store
	log     *slog.Logger

	// keyMu serializes reads and replacements of the stored key pair.
	keyMu   sync.Mutex
	funding sync.WaitGroup
}

// NewManager creates a Manager. users may be nil when no profile row should
// be kept in sync.
func NewManager(ss secrets.SecretStore, chain Chain, users store.Store, log *slog.Logger) *Manager {
	return &Manager{secrets: ss, chain: chain, users: users, log: log}
}

// LoadOrCreate returns the stored wallet, generating and storing a new one
// on first use. A background faucet top-up is started either way.
func (m *Manager) LoadOrCreate(ctx context.Context) (*Wallet, error) {
	m.keyMu.Lock()
	w, err := m.load()
	if errors.Is(err, secrets.ErrNotFound) {
		w, err = m.create()
	}
	m.keyMu.Unlock()
	if err != nil {
		return nil, err
	}
	m.FundInBackground(context.WithoutCancel(ctx), w.Address())
	return w, nil
}

// Load reads the stored wallet without creating one.
func (m *Manager) Load() (*Wallet, error) {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()
	return m.load()
}

func (m *Manager) load() (*Wallet, error) {
	raw, err := m.secrets.Get(secrets.KeyBurnerWallet)
	if err != nil {
		return nil, err
	}
	key, err := ParseSecretKey(raw)
	if err != nil {
		return nil, fmt.Errorf("stored burner wallet: %w", err)
	}
	mnemonic, err := m.secrets.Get(secrets.KeyBurnerMnemonic)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return nil, err
	}
	return &Wallet{Key: key, Mnemonic: mnemonic}, nil
}

func (m *Manager) create() (*Wallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	w, err := FromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	if err := m.save(w); err != nil {
		return nil, err
	}
	m.log.Info("created burner wallet", "address", w.Address().String())
	return w, nil
}

func (m *Manager) save(w *Wallet) error {
	if err := m.secrets.Set(secrets.KeyBurnerWallet, w.Key.String()); err != nil {
		return fmt.Errorf("store burner wallet: %w", err)
	}
	if w.Mnemonic == "" {
		return m.secrets.Delete(secrets.KeyBurnerMnemonic)
	}
	if err := m.secrets.Set(secrets.KeyBurnerMnemonic, w.Mnemonic); err != nil {
		return fmt.Errorf("store recovery phrase: %w", err)
	}
	return nil
}

// Reset replaces the stored wallet with a freshly generated one. When userID
// is set the user's profile row is pointed at the new address.
func (m *Manager) Reset(ctx context.Context, userID string) (*Wallet, error) {
	m.keyMu.Lock()
	w, err := m.create()
	m.keyMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := m.linkUser(ctx, userID, w); err != nil {
		return nil, err
	}
	m.FundInBackground(context.WithoutCancel(ctx), w.Address())
	return w, nil
}

// Restore replaces the stored wallet with the one derived from mnemonic.
func (m *Manager) Restore(ctx context.Context, userID, mnemonic string) (*Wallet, error) {
	w, err := FromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	m.keyMu.Lock()
	err = m.save(w)
	m.keyMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := m.linkUser(ctx, userID, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (m *Manager) linkUser(ctx context.Context, userID string, w *Wallet) error {
	if userID == "" || m.users == nil {
		return nil
	}
	if err := m.users.UpdateUserWallet(ctx, userID, w.Address().String()); err != nil {
		return fmt.Errorf("update user wallet: %w", err)
	}
	return nil
}

// FromMnemonic derives the keypair from the first 32 bytes of the BIP-39
// seed (empty passphrase).
func FromMnemonic(mnemonic string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return &Wallet{Key: solana.PrivateKey(priv), Mnemonic: mnemonic}, nil
}

// ParseSecretKey accepts a base58 secret key or the JSON byte array written
// by the Solana CLI and web3.js.
func ParseSecretKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("parse key array: %w", err)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("key array value %d out of range", v)
			}
			raw = append(raw, byte(v))
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("key array has %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
		}
		return solana.PrivateKey(raw), nil
	}
	key, err := solana.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, fmt.Errorf("parse base58 key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key has %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return key, nil
}
