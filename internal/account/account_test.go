package account

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/supabase"
	"github.com/moasq/submint/internal/wallet"
)

type fakeAuth struct {
	meta map[string]any
	err  error
}

func (a *fakeAuth) SignUp(_ context.Context, email, _, fullName string) (*supabase.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &supabase.Session{User: supabase.AuthUser{ID: "u1", Email: email, UserMetadata: map[string]any{"full_name": fullName}}}, nil
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) (*supabase.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &supabase.Session{AccessToken: "tok", User: supabase.AuthUser{ID: "u1", Email: email, UserMetadata: a.meta}}, nil
}

type fixedWallet struct {
	w   *wallet.Wallet
	err error
}

func (f fixedWallet) LoadOrCreate(context.Context) (*wallet.Wallet, error) {
	return f.w, f.err
}

func TestSignUpCreatesProfile(t *testing.T) {
	st := store.NewMemory()
	w := &wallet.Wallet{Key: solana.NewWallet().PrivateKey}
	svc := New(&fakeAuth{}, st, fixedWallet{w: w}, slogt.New(t))
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, " ada@example.com ", "secret", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	u, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, w.Address().String(), u.WalletAddress)
	assert.Equal(t, []string{}, u.NFTAddresses)
}

func TestSignInUpdatesExistingProfile(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, store.User{ID: "u1", Name: "Old"}))
	require.NoError(t, st.UpdateUserNFTs(ctx, "u1", store.UserNFTUpdate{MintAddresses: []string{"m"}, MetadataURI: "uri"}))

	svc := New(&fakeAuth{meta: map[string]any{"name": "Grace"}}, st, nil, slogt.New(t))
	_, err := svc.SignIn(ctx, "grace@example.com", "pw")
	require.NoError(t, err)

	u, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Name)
	assert.Equal(t, []string{"uri"}, u.MetadataURIs, "existing NFTs are kept")
}

func TestSignIn_Errors(t *testing.T) {
	svc := New(&fakeAuth{err: errors.New("Invalid login credentials")}, store.NewMemory(), nil, slogt.New(t))

	_, err := svc.SignIn(context.Background(), "", "pw")
	require.ErrorIs(t, err, ErrCredentials)

	_, err = svc.SignIn(context.Background(), "a@b.c", "pw")
	require.EqualError(t, err, "Invalid login credentials")
}

func TestSignUp_WalletFailureStillSignsUp(t *testing.T) {
	st := store.NewMemory()
	svc := New(&fakeAuth{}, st, fixedWallet{err: errors.New("keychain locked")}, slogt.New(t))

	sess, err := svc.SignUp(context.Background(), "a@b.c", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	_, err = st.GetUser(context.Background(), "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
