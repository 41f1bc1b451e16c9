// Package subscription runs the subscription minting flow and keeps the
// shared payment ledger.
package subscription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/mint"
	"github.com/moasq/submint/internal/store"
)

const maxImageSize = 10 << 20

// Pinner uploads files to IPFS.
type Pinner interface {
	PinFile(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	PinJSON(ctx context.Context, name string, v any) (string, error)
}

// Minter mints parent and child NFTs.
type Minter interface {
	MintSubscription(ctx context.Context, req mint.Request) (*mint.Result, error)
	MintChildren(ctx context.Context, req mint.ChildrenRequest) (*mint.ChildrenResult, error)
}

// MetadataSource fetches documents.
type MetadataSource interface {
	Fetch(ctx context.Context, uri string) (*metadata.Metadata, error)
}

// Service orchestrates subscriptions for signed-in users.
type Service struct {
	store      store.Store
	pin        Pinner
	minter     Minter
	docs       MetadataSource
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
}

// New creates a Service.
func New(st store.Store, pin Pinner, minter Minter, docs MetadataSource, log *slog.Logger) *Service {
	return &Service{
		store:      st,
		pin:        pin,
		minter:     minter,
		docs:       docs,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
		now:        time.Now,
	}
}

// Created is the outcome of Create.
type Created struct {
	Signature   string             `json:"signature"`
	MintAddress string             `json:"mintAddress"`
	MetadataURI string             `json:"metadataUri"`
	ImageURI    string             `json:"imageUri"`
	Children    []mint.ChildResult `json:"childNfts"`
	ChildErrors []mint.ChildError  `json:"childErrors,omitempty"`
}

// Create pins the image and metadata, mints the parent and one child per
// shared user, then records everything on the user's profile. Bookkeeping
// failures after a successful mint are logged, not returned.
func (s *Service) Create(ctx context.Context, userID string, f Form) (*Created, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.ImageURL == "" {
		f.ImageURL = imagegen.FallbackImageURL
	}

	imageURI, err := s.pinImage(ctx, f.ImageURL)
	if err != nil {
		return nil, err
	}

	payers := s.insertPaymentUsers(ctx, userID, f.SharedUsers)

	refs := make([]metadata.SharedUserRef, 0, len(f.SharedUsers))
	for _, u := range f.SharedUsers {
		wallet := u.WalletAddress
		if wallet == "" {
			wallet = "None"
		}
		refs = append(refs, metadata.SharedUserRef{Name: u.Name, WalletAddress: wallet})
	}
	doc := metadata.BuildSubscription(metadata.SubscriptionRequest{
		Title:         f.Title,
		Description:   f.Description(),
		ImageURI:      imageURI,
		Price:         f.Price,
		RecurringDate: f.RecurringDate,
		StartDate:     FormatDate(f.StartDate.Time),
		EndDate:       FormatDate(f.EndDate.Time),
		Proof:         f.Proof,
		SharedUsers:   refs,
	})
	metadataURI, err := s.pin.PinJSON(ctx, "metadata.json", doc)
	if err != nil {
		return nil, fmt.Errorf("upload metadata: %w", err)
	}

	parent, err := s.minter.MintSubscription(ctx, mint.Request{Title: f.Title, MetadataURI: metadataURI})
	if err != nil {
		return nil, err
	}
	out := &Created{
		Signature:   parent.Signature,
		MintAddress: parent.MintAddress,
		MetadataURI: metadataURI,
		ImageURI:    imageURI,
		Children:    []mint.ChildResult{},
	}

	if len(payers) > 0 {
		users := make([]mint.SharedUser, 0, len(payers))
		for _, p := range payers {
			users = append(users, mint.SharedUser{ID: p.ID, Name: p.UserName, WalletAddress: p.Wallet()})
		}
		children, err := s.minter.MintChildren(ctx, mint.ChildrenRequest{
			ParentMint:  parent.MintAddress,
			Title:       f.Title,
			MetadataURI: metadataURI,
			Users:       users,
		})
		switch {
		case err != nil:
			s.log.ErrorContext(ctx, "child NFTs were not minted", "parent", parent.MintAddress, "err", err)
		default:
			out.Children = children.Results
			out.ChildErrors = children.Errors
			if len(children.Errors) > 0 {
				s.log.WarnContext(ctx, "some child NFTs failed to mint", "failed", len(children.Errors))
			}
		}
	}

	s.recordMint(ctx, userID, out, payers)
	if len(payers) > 0 {
		s.createInitialPayments(ctx, f, out, payers)
	}
	return out, nil
}

func (s *Service) pinImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", ErrImage
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "error fetching image", "url", url, "err", err)
		return "", ErrImage
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.ErrorContext(ctx, "error fetching image", "url", url, "status", resp.StatusCode)
		return "", ErrImage
	}

	if resp.ContentLength > maxImageSize {
		return "", ErrImageTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		s.log.ErrorContext(ctx, "error reading image", "url", url, "err", err)
		return "", ErrImage
	}
	if len(body) > maxImageSize {
		return "", ErrImageTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	uri, err := s.pin.PinFile(ctx, "subscription-image.jpg", contentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("Failed to upload image to Pinata: %w", err)
	}
	return uri, nil
}

// insertPaymentUsers stores each co-payer owned by userID. Rows that fail
// to insert are skipped.
func (s *Service) insertPaymentUsers(ctx context.Context, userID string, in []SharedUserInput) []store.PaymentUser {
	out := make([]store.PaymentUser, 0, len(in))
	if userID == "" {
		return out
	}
	for _, u := range in {
		owner := userID
		row, err := s.store.InsertPaymentUser(ctx, store.PaymentUser{
			UserName:      u.Name,
			Email:         optional(u.Email),
			WalletAddress: optional(u.WalletAddress),
			OwnerID:       &owner,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "error adding shared user", "name", u.Name, "err", err)
			continue
		}
		out = append(out, *row)
	}
	return out
}

func (s *Service) recordMint(ctx context.Context, userID string, c *Created, payers []store.PaymentUser) {
	if userID == "" {
		return
	}
	mints := []string{c.MintAddress}
	childRefs := make([]store.ChildNFTRef, 0, len(c.Children))
	rels := make([]store.NFTRelationship, 0, len(c.Children))
	for _, ch := range c.Children {
		mints = append(mints, ch.MintAddress)
		childRefs = append(childRefs, store.ChildNFTRef{MintAddress: ch.MintAddress, UserID: ch.UserID})
		rels = append(rels, store.NFTRelationship{
			ParentMintAddress: c.MintAddress,
			ChildMintAddress:  ch.MintAddress,
			UserID:            ch.UserID,
			UserName:          ch.UserName,
		})
	}
	ids := make([]string, 0, len(payers))
	for _, p := range payers {
		ids = append(ids, p.ID)
	}

	err := s.store.UpdateUserNFTs(ctx, userID, store.UserNFTUpdate{
		MintAddresses: mints,
		MetadataURI:   c.MetadataURI,
		Shared: &store.SharedSubscription{
			MintAddress: c.MintAddress,
			UserIDs:     ids,
			MetadataURI: c.MetadataURI,
			ChildNFTs:   childRefs,
		},
	})
	if err != nil {
		s.log.ErrorContext(ctx, "error updating user profile with NFT", "user", userID, "err", err)
	}
	if len(rels) > 0 {
		if err := s.store.InsertNFTRelationships(ctx, rels); err != nil {
			s.log.ErrorContext(ctx, "error storing NFT relationships", "err", err)
		}
	}
}

// createInitialPayments opens an unpaid record for the current month for
// every co-payer.
func (s *Service) createInitialPayments(ctx context.Context, f Form, c *Created, payers []store.PaymentUser) {
	period := PeriodOf(s.now())
	for _, p := range payers {
		_, err := s.store.InsertPaymentRecord(ctx, store.PaymentRecord{
			SharedUserID:      p.ID,
			PaymentDate:       period.String(),
			PaymentStatus:     false,
			PaymentAmount:     f.PriceDecimal(),
			MetadataURI:       c.MetadataURI,
			SubscriptionTitle: f.Title,
			SubscriptionImage: c.ImageURI,
			MintAddress:       c.MintAddress,
			UserName:          p.UserName,
			UserEmail:         p.Email,
			UserWallet:        p.WalletAddress,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "error creating payment record", "user", p.UserName, "err", err)
		}
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
