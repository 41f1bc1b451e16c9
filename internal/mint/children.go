package mint

import (
	"context"
	"errors"

	"github.com/moasq/submint/internal/metadata"
)

// ErrParentMetadata is returned when the parent document cannot be loaded.
var ErrParentMetadata = errors.New("Could not fetch parent metadata")

// SharedUser is a co-payer who receives a child NFT.
type SharedUser struct {
	ID            string
	Name          string
	WalletAddress string
}

// ChildrenRequest mints one child per user under ParentMint.
type ChildrenRequest struct {
	ParentMint  string
	Title       string
	MetadataURI string
	Users       []SharedUser
}

// ChildResult is a successfully minted child.
type ChildResult struct {
	Result
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ChildError records a user whose child could not be minted.
type ChildError struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Error    string `json:"error"`
}

// ChildrenResult collects per-user outcomes.
type ChildrenResult struct {
	Results []ChildResult `json:"results"`
	Errors  []ChildError  `json:"errors"`
}

// MintChildren derives, pins and mints a child NFT for every user. A failure
// for one user is recorded and the rest continue.
func (m *Minter) MintChildren(ctx context.Context, req ChildrenRequest) (*ChildrenResult, error) {
	parent, err := m.docs.Fetch(ctx, req.MetadataURI)
	if err != nil {
		m.log.ErrorContext(ctx, "error fetching parent metadata", "uri", req.MetadataURI, "err", err)
		return nil, ErrParentMetadata
	}

	out := &ChildrenResult{Results: []ChildResult{}, Errors: []ChildError{}}
	for _, u := range req.Users {
		res, err := m.mintChild(ctx, parent, req, u)
		if err != nil {
			m.log.WarnContext(ctx, "error minting child NFT", "user", u.Name, "err", err)
			out.Errors = append(out.Errors, ChildError{UserID: u.ID, UserName: u.Name, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, ChildResult{Result: *res, UserID: u.ID, UserName: u.Name})
	}
	return out, nil
}

func (m *Minter) mintChild(ctx context.Context, parent *metadata.Metadata, req ChildrenRequest, u SharedUser) (*Result, error) {
	child := metadata.ChildOf(parent, req.Title, metadata.ChildUser{Name: u.Name, WalletAddress: u.WalletAddress})
	doc := metadata.BuildSubscription(metadata.UploadRequest(child))

	uri, err := m.pin.PinJSON(ctx, "metadata.json", doc)
	if err != nil {
		return nil, err
	}
	return m.MintSubscription(ctx, Request{
		Title:       child.Name,
		MetadataURI: uri,
		ParentMint:  req.ParentMint,
	})
}
