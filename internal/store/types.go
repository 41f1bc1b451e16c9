package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is a row of the "user" table. NFT bookkeeping lives in the array
// columns: every minted mint address, every parent metadata URI and one
// SharedSubscription entry per subscription that has co-payers.
type User struct {
	ID                      string              `json:"id"`
	Email                   string              `json:"email_address"`
	Name                    string              `json:"name"`
	WalletAddress           string              `json:"burner_wallet_address"`
	NFTAddresses            []string            `json:"nft_address"`
	MetadataURIs            []string            `json:"metadata_uris"`
	SubscriptionSharedUsers SharedSubscriptions `json:"subscription_shared_users"`
	CreatedAt               *time.Time          `json:"created_at,omitempty"`
	UpdatedAt               *time.Time          `json:"updated_at,omitempty"`
}

// SharedSubscription links a parent mint to the payment users sharing it and
// the child NFTs minted for them.
type SharedSubscription struct {
	MintAddress string        `json:"mint_address"`
	UserIDs     []string      `json:"user_ids"`
	MetadataURI string        `json:"metadata_uri"`
	ChildNFTs   []ChildNFTRef `json:"child_nfts"`
}

// ChildNFTRef is a child mint and the payment user it was minted for.
type ChildNFTRef struct {
	MintAddress string `json:"mint_address"`
	UserID      string `json:"user_id"`
}

// SharedSubscriptions tolerates the column holding a JSON-encoded string, an
// object or null. Anything that does not decode to an array becomes empty.
type SharedSubscriptions []SharedSubscription

func (s *SharedSubscriptions) UnmarshalJSON(data []byte) error {
	*s = SharedSubscriptions{}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		trimmed = strings.TrimSpace(inner)
	}

	if !strings.HasPrefix(trimmed, "[") {
		return nil
	}

	var items []SharedSubscription
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil
	}
	*s = items
	return nil
}

// PaymentUser is a co-payer on a subscription ("payment_users" table).
type PaymentUser struct {
	ID            string     `json:"id,omitempty"`
	UserName      string     `json:"user_name"`
	Email         *string    `json:"email"`
	WalletAddress *string    `json:"wallet_address"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	FromMetadata  bool       `json:"from_metadata"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Wallet returns the wallet address or "".
func (u PaymentUser) Wallet() string {
	if u.WalletAddress == nil {
		return ""
	}
	return *u.WalletAddress
}

// PaymentRecord tracks whether a payment user paid their share for a month.
// PaymentDate is formatted YYYY-MM.
type PaymentRecord struct {
	ID            string          `json:"id,omitempty"`
	SharedUserID  string          `json:"shared_user_id"`
	PaymentDate   string          `json:"payment_date"`
	PaymentStatus bool            `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaidDate      *time.Time      `json:"paid_date"`
	MetadataURI   string          `json:"metadata_uri,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`

	// Snapshot of the subscription and payer, written with the first
	// record of a new shared subscription.
	SubscriptionTitle string  `json:"subscription_title,omitempty"`
	SubscriptionImage string  `json:"subscription_image,omitempty"`
	MintAddress       string  `json:"mint_address,omitempty"`
	UserName          string  `json:"user_name,omitempty"`
	UserEmail         *string `json:"user_email,omitempty"`
	UserWallet        *string `json:"user_wallet,omitempty"`
}

// NFTRelationship is a row of "nft_relationships".
type NFTRelationship struct {
	ParentMintAddress string `json:"parent_mint_address"`
	ChildMintAddress  string `json:"child_mint_address"`
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name"`
}

// UserNFTUpdate appends a freshly minted subscription to a user row.
type UserNFTUpdate struct {
	MintAddresses []string
	MetadataURI   string
	Shared        *SharedSubscription
}

// RecordFilter narrows ListPaymentRecords. Empty fields match everything.
type RecordFilter struct {
	SharedUserID string
	PaymentDate  string
	MetadataURI  string
}

func (f RecordFilter) matches(r PaymentRecord) bool {
	if f.SharedUserID != "" && r.SharedUserID != f.SharedUserID {
		return false
	}
	if f.PaymentDate != "" && r.PaymentDate != f.PaymentDate {
		return false
	}
	if f.MetadataURI != "" && r.MetadataURI != f.MetadataURI {
		return false
	}
	return true
}
