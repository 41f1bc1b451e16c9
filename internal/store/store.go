// Package store defines the SubMint records and the persistence contract the
// rest of the application codes against. The production implementation talks
// to Supabase (see internal/supabase); Memory backs tests and offline runs.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the set of table operations SubMint performs.
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	// UpsertUser creates the user row or updates profile columns of an
	// existing one. NFT columns are left untouched on update.
	UpsertUser(ctx context.Context, u User) error
	UpdateUserWallet(ctx context.Context, id, walletAddress string) error
	// UpdateUserNFTs appends mint addresses, the metadata URI and the shared
	// subscription entry to the user's array columns.
	UpdateUserNFTs(ctx context.Context, id string, upd UserNFTUpdate) error

	InsertPaymentUser(ctx context.Context, u PaymentUser) (*PaymentUser, error)
	GetPaymentUser(ctx context.Context, id string) (*PaymentUser, error)
	// FindPaymentUserByName looks the name up among ownerID's co-payers.
	FindPaymentUserByName(ctx context.Context, ownerID, name string) (*PaymentUser, error)
	UpdatePaymentUserWallet(ctx context.Context, id, walletAddress string) (*PaymentUser, error)
	// ListPaymentUsers returns payment users ordered by name. An empty
	// ownerID lists every row.
	ListPaymentUsers(ctx context.Context, ownerID string) ([]PaymentUser, error)

	ListPaymentRecords(ctx context.Context, filter RecordFilter) ([]PaymentRecord, error)
	InsertPaymentRecord(ctx context.Context, r PaymentRecord) (*PaymentRecord, error)
	UpdatePaymentRecord(ctx context.Context, r PaymentRecord) (*PaymentRecord, error)

	InsertNFTRelationships(ctx context.Context, rels []NFTRelationship) error
}

// AppendUnique appends values to dst in order, dropping ones already present.
func AppendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
