// Package metadata builds, reads and caches the Metaplex-style JSON documents
// that describe a subscription NFT.
package metadata

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Trait names written into every subscription document.
const (
	TraitPrice         = "Price"
	TraitPaymentDate   = "Payment Date"
	TraitStartDate     = "Start Date"
	TraitEndDate       = "End Date"
	TraitProof         = "Proof"
	TraitSharedWith    = "Shared With"
	TraitWalletAddress = "Wallet Address"
	TraitNFTType       = "NFT Type"
	TraitBillingCycle  = "Billing Cycle"
	TraitCategory      = "Category"
)

const childNFTType = "Child NFT"

// Attribute is one trait_type/value pair. Value holds whatever JSON type the
// uploader sent (prices arrive as numbers or strings).
type Attribute struct {
	TraitType string `json:"trait_type" cbor:"1,keyasint"`
	Value     any    `json:"value" cbor:"2,keyasint"`
}

// SharedUserRef names a co-payer inside a parent document.
type SharedUserRef struct {
	Name          string `json:"name" cbor:"1,keyasint"`
	WalletAddress string `json:"wallet_address,omitempty" cbor:"2,keyasint,omitempty"`
}

// Metadata is the document pinned to IPFS and referenced by the on-chain
// metadata account.
type Metadata struct {
	Name        string          `json:"name" cbor:"1,keyasint"`
	Description string          `json:"description" cbor:"2,keyasint"`
	Image       string          `json:"image" cbor:"3,keyasint"`
	Attributes  []Attribute     `json:"attributes" cbor:"4,keyasint"`
	SharedUsers []SharedUserRef `json:"shared_users" cbor:"5,keyasint"`
}

// Attribute returns the value of the named trait as a string.
func (m *Metadata) Attribute(name string) (string, bool) {
	for _, a := range m.Attributes {
		if a.TraitType == name {
			if a.Value == nil {
				return "", false
			}
			return valueString(a.Value), true
		}
	}
	return "", false
}

// AttributeOr returns the trait value, or def when it is missing or empty.
func (m *Metadata) AttributeOr(name, def string) string {
	if v, ok := m.Attribute(name); ok && v != "" {
		return v
	}
	return def
}

// Price parses the Price trait. Missing or unparseable prices are zero.
func (m *Metadata) Price() decimal.Decimal {
	v, ok := m.Attribute(TraitPrice)
	if !ok {
		return decimal.Zero
	}
	p, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(v, "$")))
	if err != nil {
		return decimal.Zero
	}
	return p
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// SubscriptionRequest is the body accepted by the metadata upload endpoint.
type SubscriptionRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ImageURI      string          `json:"imageUri"`
	Price         any             `json:"price"`
	RecurringDate string          `json:"recurringDate"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
	Proof         string          `json:"proof"`
	SharedUsers   []SharedUserRef `json:"shared_users"`

	// Set only for child documents.
	WalletAddress string `json:"wallet_address,omitempty"`
	NFTType       string `json:"nft_type,omitempty"`
}

// BuildSubscription assembles a document from an upload request.
func BuildSubscription(req SubscriptionRequest) *Metadata {
	proof := req.Proof
	if proof == "" {
		proof = "N/A"
	}
	attrs := []Attribute{
		{TraitType: TraitPrice, Value: req.Price},
		{TraitType: TraitPaymentDate, Value: req.RecurringDate},
		{TraitType: TraitStartDate, Value: req.StartDate},
		{TraitType: TraitEndDate, Value: req.EndDate},
		{TraitType: TraitProof, Value: proof},
	}
	if len(req.SharedUsers) > 0 {
		names := make([]string, 0, len(req.SharedUsers))
		for _, u := range req.SharedUsers {
			names = append(names, u.Name)
		}
		attrs = append(attrs, Attribute{TraitType: TraitSharedWith, Value: strings.Join(names, ", ")})
	}
	if req.WalletAddress != "" {
		attrs = append(attrs, Attribute{TraitType: TraitWalletAddress, Value: req.WalletAddress})
	}
	if req.NFTType != "" {
		attrs = append(attrs, Attribute{TraitType: TraitNFTType, Value: req.NFTType})
	}

	shared := req.SharedUsers
	if shared == nil {
		shared = []SharedUserRef{}
	}
	return &Metadata{
		Name:        req.Title,
		Description: req.Description,
		Image:       req.ImageURI,
		Attributes:  attrs,
		SharedUsers: shared,
	}
}

// ChildUser identifies the co-payer a child document is derived for.
type ChildUser struct {
	Name          string
	WalletAddress string
}

// ChildOf derives the document of a shared-access child NFT from its parent.
func ChildOf(parent *Metadata, title string, user ChildUser) *Metadata {
	name := user.Name
	if name == "" {
		name = "User"
	}
	wallet := user.WalletAddress
	if wallet == "" {
		wallet = "Not specified"
	}

	attrs := make([]Attribute, 0, len(parent.Attributes)+2)
	for _, a := range parent.Attributes {
		if a.TraitType == TraitWalletAddress || a.TraitType == TraitNFTType {
			continue
		}
		attrs = append(attrs, a)
	}
	attrs = append(attrs,
		Attribute{TraitType: TraitWalletAddress, Value: wallet},
		Attribute{TraitType: TraitNFTType, Value: childNFTType},
	)

	return &Metadata{
		Name:        Truncate(title, 20) + " - " + prefix(name, 10),
		Description: "Shared access for " + name,
		Image:       parent.Image,
		Attributes:  attrs,
		SharedUsers: []SharedUserRef{},
	}
}

// Truncate shortens s to at most max bytes, replacing the tail with "..."
// when cut. Multibyte characters are never split.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return prefix(s, max)
	}
	return prefix(s, max-3) + "..."
}

// prefix returns the longest leading part of s that fits in n bytes and
// ends on a character boundary.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Subscription is the read model shown on a profile page.
type Subscription struct {
	MetadataURI  string          `json:"metadataUri"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"paymentAmount"`
	BillingCycle string          `json:"billingCycle"`
	Status       string          `json:"status"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	PaymentDate  string          `json:"paymentDate"`
	Proof        string          `json:"proof"`
	Category     string          `json:"category"`
}

// SubscriptionView projects a document onto the profile read model.
func SubscriptionView(uri string, m *Metadata) Subscription {
	title := m.Name
	if title == "" {
		title = "Premium Subscription"
	}
	desc := m.Description
	if desc == "" {
		desc = "Monthly access to exclusive content"
	}
	return Subscription{
		MetadataURI:  uri,
		Title:        title,
		Description:  desc,
		Image:        m.Image,
		Price:        m.Price(),
		BillingCycle: m.AttributeOr(TraitBillingCycle, "Monthly"),
		Status:       "active",
		StartDate:    m.AttributeOr(TraitStartDate, "Unknown"),
		EndDate:      m.AttributeOr(TraitEndDate, "Unknown"),
		PaymentDate:  m.AttributeOr(TraitPaymentDate, "Unknown"),
		Proof:        m.AttributeOr(TraitProof, "N/A"),
		Category:     m.AttributeOr(TraitCategory, "Unknown"),
	}
}

// UploadRequest converts a derived document back into the upload request
// that pins it. Child documents go through the same builder as parents, so
// the Shared With trait and shared users are dropped on the way.
func UploadRequest(m *Metadata) SubscriptionRequest {
	price := any("0")
	for _, a := range m.Attributes {
		if a.TraitType == TraitPrice && a.Value != nil && valueString(a.Value) != "" {
			price = a.Value
		}
	}
	return SubscriptionRequest{
		Title:         m.Name,
		Description:   m.Description,
		ImageURI:      m.Image,
		Price:         price,
		RecurringDate: m.AttributeOr(TraitPaymentDate, ""),
		StartDate:     m.AttributeOr(TraitStartDate, ""),
		EndDate:       m.AttributeOr(TraitEndDate, ""),
		Proof:         m.AttributeOr(TraitProof, ""),
		WalletAddress: m.AttributeOr(TraitWalletAddress, ""),
		NFTType:       m.AttributeOr(TraitNFTType, ""),
	}
}
