package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/moasq/submint/internal/secrets"
	"github.com/moasq/submint/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// abandon x11 + about is the standard BIP-39 test vector.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type mapSecrets struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapSecrets() *mapSecrets { return &mapSecrets{m: map[string]string{}} }

func (s *mapSecrets) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return v, nil
}

func (s *mapSecrets) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *mapSecrets) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

type fakeChain struct {
	mu         sync.Mutex
	balance    uint64
	airdrops   []uint64
	airdropErr error
}

func (c *fakeChain) Balance(context.Context, solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, nil
}

func (c *fakeChain) RequestAirdrop(_ context.Context, _ solana.PublicKey, lamports uint64) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.airdropErr != nil {
		return solana.Signature{}, c.airdropErr
	}
	c.airdrops = append(c.airdrops, lamports)
	c.balance += lamports
	return solana.Signature{1}, nil
}

func (c *fakeChain) Confirm(context.Context, solana.Signature) error { return nil }

func (c *fakeChain) airdropCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.airdrops)
}

func TestLoadOrCreate_PersistsAndFunds(t *testing.T) {
	ss := newMapSecrets()
	chain := &fakeChain{}
	m := NewManager(ss, chain, nil, slogt.New(t))

	w1, err := m.LoadOrCreate(context.Background())
	require.NoError(t, err)
	m.Wait()
	assert.NotEmpty(t, w1.Mnemonic)
	assert.Equal(t, 1, chain.airdropCount())

	w2, err := m.LoadOrCreate(context.Background())
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, w1.Address(), w2.Address())
	assert.Equal(t, w1.Mnemonic, w2.Mnemonic)
	assert.Equal(t, 1, chain.airdropCount(), "funded wallet must not request another airdrop")
}

func TestReset_ConcurrentWithLoadOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMapSecrets(), &fakeChain{balance: solana.LAMPORTS_PER_SOL}, nil, slogt.New(t))
	initial, err := m.LoadOrCreate(ctx)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		issued = map[solana.PublicKey]bool{initial.Address(): true}
		seen   []solana.PublicKey
		wg     sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := m.Reset(ctx, "")
			assert.NoError(t, err)
			mu.Lock()
			issued[w.Address()] = true
			mu.Unlock()
		}()
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := m.LoadOrCreate(ctx)
			assert.NoError(t, err)
			mu.Lock()
			seen = append(seen, w.Address())
			mu.Unlock()
		}()
	}
	wg.Wait()
	m.Wait()

	for _, addr := range seen {
		assert.True(t, issued[addr], "payer %s was never the stored wallet", addr)
	}
	final, err := m.Load()
	require.NoError(t, err)
	assert.True(t, issued[final.Address()])
	assert.Len(t, issued, 6)
}

func TestEnsureFunded_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		balance uint64
		want    bool
	}{
		{"empty", 0, true},
		{"just under", LowBalance - 1, true},
		{"at threshold", LowBalance, false},
		{"rich", 3 * solana.LAMPORTS_PER_SOL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &fakeChain{balance: tt.balance}
			m := NewManager(newMapSecrets(), chain, nil, slogt.New(t))
			got, err := m.EnsureFunded(context.Background(), solana.NewWallet().PublicKey())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.Equal(t, []uint64{AirdropAmount}, chain.airdrops)
			}
		})
	}
}

func TestFundInBackground_SwallowsErrors(t *testing.T) {
	chain := &fakeChain{airdropErr: errors.New("faucet dry")}
	m := NewManager(newMapSecrets(), chain, nil, slogt.New(t))

	_, err := m.EnsureFunded(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devnet faucet")

	m.FundInBackground(context.Background(), solana.NewWallet().PublicKey())
	m.Wait()
}

func TestFromMnemonic(t *testing.T) {
	w, err := FromMnemonic("  " + testMnemonic + "\n")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, w.Mnemonic)

	again, err := FromMnemonic(testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), again.Address())

	_, err = FromMnemonic("abandon abandon abandon")
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestResetAndRestore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemory()
	require.NoError(t, users.UpsertUser(ctx, store.User{ID: "u1", Name: "Ann"}))

	ss := newMapSecrets()
	m := NewManager(ss, nil, users, slogt.New(t))

	old, err := m.LoadOrCreate(ctx)
	require.NoError(t, err)

	fresh, err := m.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, old.Address(), fresh.Address())
	u, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, fresh.Address().String(), u.WalletAddress)

	restored, err := m.Restore(ctx, "u1", testMnemonic)
	require.NoError(t, err)
	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, restored.Address(), loaded.Address())
	u, err = users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, restored.Address().String(), u.WalletAddress)
}

func TestParseSecretKey(t *testing.T) {
	w := solana.NewWallet()

	fromBase58, err := ParseSecretKey(w.PrivateKey.String())
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), fromBase58.PublicKey())

	ints := make([]int, len(w.PrivateKey))
	for i, b := range w.PrivateKey {
		ints[i] = int(b)
	}
	arr, err := json.Marshal(ints)
	require.NoError(t, err)
	fromArray, err := ParseSecretKey(string(arr))
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), fromArray.PublicKey())

	_, err = ParseSecretKey("[1,2,3]")
	require.Error(t, err)
	_, err = ParseSecretKey("[1,2,300]")
	require.Error(t, err)
}
