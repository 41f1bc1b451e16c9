package mint

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Token Metadata instruction discriminators.
const (
	ixCreateMetadataAccountV3 uint8 = 33
	ixCreateMasterEditionV3   uint8 = 17
)

// Creator is a verified or unverified creator entry.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Collection links an NFT to a collection mint.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// Uses limits how often an NFT can be used.
type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// DataV2 is the on-chain metadata body.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator  `bin:"optional"`
	Collection           *Collection `bin:"optional"`
	Uses                 *Uses       `bin:"optional"`
}

// CollectionDetails marks a sized collection parent.
type CollectionDetails struct {
	Size uint64
}

type createMetadataAccountArgsV3 struct {
	Data              DataV2
	IsMutable         bool
	CollectionDetails *CollectionDetails `bin:"optional"`
}

type createMasterEditionArgs struct {
	MaxSupply *uint64 `bin:"optional"`
}

func encodeInstruction(discriminator uint8, args any) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint8(discriminator); err != nil {
		return nil, err
	}
	if err := enc.Encode(args); err != nil {
		return nil, fmt.Errorf("encode instruction %d: %w", discriminator, err)
	}
	return buf.Bytes(), nil
}

// MetadataPDA derives the metadata account of mint.
func MetadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		solana.TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
	}, solana.TokenMetadataProgramID)
	return addr, err
}

// MasterEditionPDA derives the master edition account of mint.
func MasterEditionPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		solana.TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
		[]byte("edition"),
	}, solana.TokenMetadataProgramID)
	return addr, err
}

// createMetadataInstruction builds CreateMetadataAccountV3 with the payer as
// mint authority, update authority and sole verified creator.
func createMetadataInstruction(metadata, mint, payer solana.PublicKey, data DataV2) (solana.Instruction, error) {
	raw, err := encodeInstruction(ixCreateMetadataAccountV3, createMetadataAccountArgsV3{
		Data:      data,
		IsMutable: true,
	})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(metadata).WRITE(),
		solana.Meta(mint),
		solana.Meta(payer).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(payer).SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(solana.TokenMetadataProgramID, accounts, raw), nil
}

// createMasterEditionInstruction builds CreateMasterEditionV3 with a zero max
// supply, making the NFT one of one.
func createMasterEditionInstruction(edition, mint, payer, metadata solana.PublicKey) (solana.Instruction, error) {
	var zero uint64
	raw, err := encodeInstruction(ixCreateMasterEditionV3, createMasterEditionArgs{MaxSupply: &zero})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(edition).WRITE(),
		solana.Meta(mint).WRITE(),
		solana.Meta(payer).SIGNER(),
		solana.Meta(payer).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(metadata).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(solana.TokenMetadataProgramID, accounts, raw), nil
}
