package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Rows are copied in and out so callers never
// share state with the store.
type Memory struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[string]User
	paymentUsers  map[string]PaymentUser
	records       map[string]PaymentRecord
	relationships []NFTRelationship
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		users:        make(map[string]User),
		paymentUsers: make(map[string]PaymentUser),
		records:      make(map[string]PaymentRecord),
	}
}

func (m *Memory) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) UpsertUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.users[u.ID]
	if !ok {
		u.CreatedAt = &now
		u.UpdatedAt = &now
		if u.NFTAddresses == nil {
			u.NFTAddresses = []string{}
		}
		m.users[u.ID] = *cloneUser(u)
		return nil
	}

	existing.Email = u.Email
	existing.Name = u.Name
	existing.WalletAddress = u.WalletAddress
	existing.UpdatedAt = &now
	m.users[u.ID] = existing
	return nil
}

func (m *Memory) UpdateUserWallet(ctx context.Context, id, walletAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	u.WalletAddress = walletAddress
	u.UpdatedAt = &now
	m.users[id] = u
	return nil
}

func (m *Memory) UpdateUserNFTs(ctx context.Context, id string, upd UserNFTUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	u.NFTAddresses = AppendUnique(u.NFTAddresses, upd.MintAddresses...)
	u.MetadataURIs = AppendUnique(u.MetadataURIs, upd.MetadataURI)
	if upd.Shared != nil {
		u.SubscriptionSharedUsers = append(u.SubscriptionSharedUsers, *upd.Shared)
	}
	u.UpdatedAt = &now
	m.users[id] = u
	return nil
}

func (m *Memory) InsertPaymentUser(ctx context.Context, u PaymentUser) (*PaymentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	u.ID = uuid.NewString()
	u.CreatedAt = &now
	m.paymentUsers[u.ID] = u
	return &u, nil
}

func (m *Memory) GetPaymentUser(ctx context.Context, id string) (*PaymentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.paymentUsers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) FindPaymentUserByName(ctx context.Context, ownerID, name string) (*PaymentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.sortedPaymentUsers(ownerID) {
		if u.UserName == name {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdatePaymentUserWallet(ctx context.Context, id, walletAddress string) (*PaymentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.paymentUsers[id]
	if !ok {
		return nil, ErrNotFound
	}
	w := walletAddress
	u.WalletAddress = &w
	m.paymentUsers[id] = u
	return &u, nil
}

func (m *Memory) ListPaymentUsers(ctx context.Context, ownerID string) ([]PaymentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sortedPaymentUsers(ownerID), nil
}

func (m *Memory) sortedPaymentUsers(ownerID string) []PaymentUser {
	out := make([]PaymentUser, 0, len(m.paymentUsers))
	for _, u := range m.paymentUsers {
		if ownerID != "" && (u.OwnerID == nil || *u.OwnerID != ownerID) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName == out[j].UserName {
			return out[i].ID < out[j].ID
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}

func (m *Memory) ListPaymentRecords(ctx context.Context, filter RecordFilter) ([]PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []PaymentRecord{}
	for _, r := range m.records {
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate == out[j].PaymentDate {
			return out[i].ID < out[j].ID
		}
		return out[i].PaymentDate < out[j].PaymentDate
	})
	return out, nil
}

func (m *Memory) InsertPaymentRecord(ctx context.Context, r PaymentRecord) (*PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r.ID = uuid.NewString()
	r.CreatedAt = &now
	if r.UpdatedAt == nil {
		r.UpdatedAt = &now
	}
	m.records[r.ID] = r
	return &r, nil
}

func (m *Memory) UpdatePaymentRecord(ctx context.Context, r PaymentRecord) (*PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[r.ID]
	if !ok {
		return nil, ErrNotFound
	}
	existing.PaymentStatus = r.PaymentStatus
	existing.PaidDate = r.PaidDate
	existing.UpdatedAt = r.UpdatedAt
	if r.MetadataURI != "" {
		existing.MetadataURI = r.MetadataURI
	}
	m.records[r.ID] = existing
	return &existing, nil
}

func (m *Memory) InsertNFTRelationships(ctx context.Context, rels []NFTRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.relationships = append(m.relationships, rels...)
	return nil
}

// Relationships returns the stored parent/child rows for parentMint.
func (m *Memory) Relationships(parentMint string) []NFTRelationship {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []NFTRelationship{}
	for _, r := range m.relationships {
		if r.ParentMintAddress == parentMint {
			out = append(out, r)
		}
	}
	return out
}

func cloneUser(u User) *User {
	c := u
	c.NFTAddresses = cloneStrings(u.NFTAddresses)
	c.MetadataURIs = cloneStrings(u.MetadataURIs)
	if u.SubscriptionSharedUsers != nil {
		c.SubscriptionSharedUsers = append(SharedSubscriptions{}, u.SubscriptionSharedUsers...)
	}
	return &c
}

// cloneStrings copies s, keeping nil and empty apart.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
