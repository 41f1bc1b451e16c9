package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moasq/submint/internal/store"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "service-role", slogt.New(t))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New("", "key", nil)
	require.Error(t, err)
	_, err = New("https://x.supabase.co", "", nil)
	require.Error(t, err)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/user", r.URL.Path)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"id": "u1",
			"email_address": "a@b.c",
			"name": "Ann",
			"burner_wallet_address": "W",
			"nft_address": ["m1"],
			"metadata_uris": ["https://gw/ipfs/cid"],
			"subscription_shared_users": "[{\"mint_address\":\"m1\",\"user_ids\":[\"p1\"]}]"
		}]`))
	})

	u, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, []string{"m1"}, u.NFTAddresses)
	require.Len(t, u.SubscriptionSharedUsers, 1)
	assert.Equal(t, []string{"p1"}, u.SubscriptionSharedUsers[0].UserIDs)
}

func TestGetUser_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.GetUser(context.Background(), "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListPaymentUsers_FiltersByOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/payment_users", r.URL.Path)
		assert.Equal(t, "eq.owner-1", r.URL.Query().Get("owner_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"p1","user_name":"alice","email":null,"wallet_address":"W1","from_metadata":false}]`))
	})
	users, err := c.ListPaymentUsers(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "W1", users[0].Wallet())
	assert.Nil(t, users[0].Email)
}

func TestFindPaymentUserByName_ScopedToOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/payment_users", r.URL.Path)
		assert.Equal(t, "eq.owner-1", r.URL.Query().Get("owner_id"))
		assert.Equal(t, "eq.alice", r.URL.Query().Get("user_name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.FindPaymentUserByName(context.Background(), "owner-1", "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}
