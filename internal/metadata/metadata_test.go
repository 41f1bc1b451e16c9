package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traitNames(m *Metadata) []string {
	var out []string
	for _, a := range m.Attributes {
		out = append(out, a.TraitType)
	}
	return out
}

func TestBuildSubscription(t *testing.T) {
	m := BuildSubscription(SubscriptionRequest{
		Title:         "Netflix",
		Description:   "Netflix: 15.99/mo (01/01/2025 to 31/12/2025)",
		ImageURI:      "https://gw/ipfs/img",
		Price:         "15.99",
		RecurringDate: "15/01/2025",
		StartDate:     "01/01/2025",
		EndDate:       "31/12/2025",
	})
	assert.Equal(t, []string{TraitPrice, TraitPaymentDate, TraitStartDate, TraitEndDate, TraitProof}, traitNames(m))
	assert.Equal(t, "N/A", m.AttributeOr(TraitProof, ""))
	assert.NotNil(t, m.SharedUsers)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shared_users":[]`)
}

func TestBuildSubscription_SharedWith(t *testing.T) {
	m := BuildSubscription(SubscriptionRequest{
		Title: "Spotify",
		Price: 9.99,
		Proof: "receipt",
		SharedUsers: []SharedUserRef{
			{Name: "alice", WalletAddress: "None"},
			{Name: "bob", WalletAddress: "Wbob"},
		},
	})
	assert.Equal(t, []string{TraitPrice, TraitPaymentDate, TraitStartDate, TraitEndDate, TraitProof, TraitSharedWith}, traitNames(m))
	v, _ := m.Attribute(TraitSharedWith)
	assert.Equal(t, "alice, bob", v)
	assert.Equal(t, "receipt", m.AttributeOr(TraitProof, ""))
	assert.Equal(t, "9.99", m.Price().String())
}

func TestChildOf(t *testing.T) {
	parent := BuildSubscription(SubscriptionRequest{
		Title:         "Disney Plus Premium Family",
		ImageURI:      "https://gw/ipfs/img",
		Price:         "20",
		WalletAddress: "parent-wallet",
		NFTType:       "Parent",
	})

	child := ChildOf(parent, parent.Name, ChildUser{Name: "Christopher Robin"})
	assert.Equal(t, "Disney Plus Premi... - Christophe", child.Name)
	assert.Equal(t, "Shared access for Christopher Robin", child.Description)
	assert.Equal(t, parent.Image, child.Image)
	assert.Equal(t, "Not specified", child.AttributeOr(TraitWalletAddress, ""))
	assert.Equal(t, "Child NFT", child.AttributeOr(TraitNFTType, ""))

	count := 0
	for _, a := range child.Attributes {
		if a.TraitType == TraitWalletAddress {
			count++
		}
	}
	assert.Equal(t, 1, count)

	anon := ChildOf(parent, "Hulu", ChildUser{WalletAddress: "W"})
	assert.Equal(t, "Hulu - User", anon.Name)
	assert.Equal(t, "W", anon.AttributeOr(TraitWalletAddress, ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 32))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Len(t, Truncate("A very long subscription title - Shared Access", 32), 32)

	// Each of these characters is three bytes in UTF-8.
	got := Truncate("月額サブスクリプションの共有アクセス", 32)
	assert.LessOrEqual(t, len(got), 32)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "月額サブスクリプシ...", got)
	assert.Equal(t, "月", Truncate("月額", 3))
}

func TestSubscriptionView_Defaults(t *testing.T) {
	v := SubscriptionView("uri", &Metadata{Attributes: []Attribute{{TraitType: TraitPrice, Value: "abc"}}})
	assert.Equal(t, "Premium Subscription", v.Title)
	assert.Equal(t, "Monthly", v.BillingCycle)
	assert.Equal(t, "active", v.Status)
	assert.Equal(t, "Unknown", v.StartDate)
	assert.Equal(t, "N/A", v.Proof)
	assert.True(t, v.Price.IsZero())
}

func TestFetcher_UsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"name":"Netflix","image":"img","attributes":[{"trait_type":"Price","value":12.5}]}`))
	}))
	defer srv.Close()

	cache, err := OpenCache(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	defer cache.Close()

	f := NewFetcher(cache, slogt.New(t))
	for i := 0; i < 3; i++ {
		m, err := f.Fetch(context.Background(), srv.URL+"/ipfs/cid")
		require.NoError(t, err)
		assert.Equal(t, "Netflix", m.Name)
		assert.Equal(t, "12.5", m.Price().String())
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(nil, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestUploadRequest_ChildRoundTrip(t *testing.T) {
	parent := BuildSubscription(SubscriptionRequest{
		Title:       "Netflix",
		ImageURI:    "img",
		Price:       15.5,
		StartDate:   "01/01/2025",
		EndDate:     "01/01/2026",
		SharedUsers: []SharedUserRef{{Name: "bob"}},
	})
	child := ChildOf(parent, "Netflix", ChildUser{Name: "bob", WalletAddress: "Wbob"})
	pinned := BuildSubscription(UploadRequest(child))

	assert.Equal(t, []string{TraitPrice, TraitPaymentDate, TraitStartDate, TraitEndDate, TraitProof, TraitWalletAddress, TraitNFTType}, traitNames(pinned))
	assert.Equal(t, "15.5", pinned.AttributeOr(TraitPrice, ""))
	assert.Equal(t, "Wbob", pinned.AttributeOr(TraitWalletAddress, ""))
	assert.Equal(t, "Child NFT", pinned.AttributeOr(TraitNFTType, ""))
	assert.Empty(t, pinned.SharedUsers)
	assert.Equal(t, "Netflix - bob", pinned.Name)

	assert.Equal(t, "0", UploadRequest(&Metadata{}).Price)
}
