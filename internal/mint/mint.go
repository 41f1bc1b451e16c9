// Package mint mints subscription NFTs on Solana with the Metaplex Token
// Metadata program: one transaction creates the mint, the owner's token
// account, the metadata account and a one-of-one master edition.
package mint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/moasq/submint/internal/metadata"
)

const (
	maxNameLength = 32
	mintSize      = 82

	symbolParent = "SUB"
	symbolChild  = "SUBSHR"
	sharedSuffix = " - Shared Access"

	noPriorCredit = "Attempt to debit an account but found no record of a prior credit"
)

// ErrInsufficientFunds is returned when the payer cannot cover the mint.
var ErrInsufficientFunds = errors.New("Your wallet doesn't have enough SOL. Please fund your wallet with devnet SOL.")

// Chain is the RPC surface the minter needs.
type Chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	RentExemption(ctx context.Context, size uint64) (uint64, error)
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// PayerFunc returns the key that pays for and owns new NFTs.
type PayerFunc func(ctx context.Context) (solana.PrivateKey, error)

// MetadataSource fetches documents.
type MetadataSource interface {
	Fetch(ctx context.Context, uri string) (*metadata.Metadata, error)
}

// Pinner uploads JSON documents and returns their public URL.
type Pinner interface {
	PinJSON(ctx context.Context, name string, v any) (string, error)
}

// Minter mints parent and child subscription NFTs.
type Minter struct {
	chain Chain
	payer PayerFunc
	docs  MetadataSource
	pin   Pinner
	log   *slog.Logger

	newMint func() solana.PrivateKey
}

// New creates a Minter.
func New(chain Chain, payer PayerFunc, docs MetadataSource, pin Pinner, log *slog.Logger) *Minter {
	return &Minter{
		chain: chain,
		payer: payer,
		docs:  docs,
		pin:   pin,
		log:   log,
		newMint: func() solana.PrivateKey {
			return solana.NewWallet().PrivateKey
		},
	}
}

// Request describes one NFT. ParentMint is set for shared-access children.
type Request struct {
	Title       string
	MetadataURI string
	ParentMint  string
}

// Result identifies a minted NFT.
type Result struct {
	Signature   string `json:"signature"`
	MintAddress string `json:"mintAddress"`
}

// NameAndSymbol returns the on-chain name and symbol for a request.
func NameAndSymbol(title string, child bool) (string, string) {
	if child {
		return metadata.Truncate(title+sharedSuffix, maxNameLength), symbolChild
	}
	return metadata.Truncate(title, maxNameLength), symbolParent
}

// MintSubscription mints one NFT to the payer and waits for confirmation.
func (m *Minter) MintSubscription(ctx context.Context, req Request) (*Result, error) {
	payer, err := m.payer(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payer: %w", err)
	}
	mintKey := m.newMint()
	name, symbol := NameAndSymbol(req.Title, req.ParentMint != "")

	m.log.InfoContext(ctx, "starting NFT mint", "name", name, "symbol", symbol, "mint", mintKey.PublicKey().String())

	tx, err := m.buildTransaction(ctx, payer, mintKey, DataV2{
		Name:   name,
		Symbol: symbol,
		URI:    req.MetadataURI,
		Creators: &[]Creator{
			{Address: payer.PublicKey(), Verified: true, Share: 100},
		},
	})
	if err != nil {
		return nil, err
	}

	sig, err := m.chain.Send(ctx, tx)
	if err != nil {
		return nil, mapError(err)
	}
	if err := m.chain.Confirm(ctx, sig); err != nil {
		return nil, mapError(err)
	}

	m.log.InfoContext(ctx, "NFT created", "mint", mintKey.PublicKey().String(), "signature", sig.String())
	return &Result{Signature: sig.String(), MintAddress: mintKey.PublicKey().String()}, nil
}

func (m *Minter) buildTransaction(ctx context.Context, payer, mintKey solana.PrivateKey, data DataV2) (*solana.Transaction, error) {
	owner := payer.PublicKey()
	mint := mintKey.PublicKey()

	rent, err := m.chain.RentExemption(ctx, mintSize)
	if err != nil {
		return nil, err
	}
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}
	metadataAccount, err := MetadataPDA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata account: %w", err)
	}
	edition, err := MasterEditionPDA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive master edition: %w", err)
	}

	createMetadata, err := createMetadataInstruction(metadataAccount, mint, owner, data)
	if err != nil {
		return nil, err
	}
	createEdition, err := createMasterEditionInstruction(edition, mint, owner, metadataAccount)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{
		system.NewCreateAccountInstruction(rent, mintSize, solana.TokenProgramID, owner, mint).Build(),
		token.NewInitializeMintInstruction(0, owner, owner, mint, solana.SysVarRentPubkey).Build(),
		ata.NewCreateInstruction(owner, owner, mint).Build(),
		token.NewMintToInstruction(1, mint, tokenAccount, owner, nil).Build(),
		createMetadata,
		createEdition,
	}

	blockhash, err := m.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		switch {
		case key.Equals(owner):
			return &payer
		case key.Equals(mint):
			return &mintKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func mapError(err error) error {
	if strings.Contains(err.Error(), noPriorCredit) {
		return fmt.Errorf("%w (%v)", ErrInsufficientFunds, err)
	}
	return err
}
