// Package mcpserver exposes SubMint operations as MCP tools so an agent can
// generate artwork, pin metadata and keep the payment ledger.
package mcpserver

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/subscription"
	"github.com/moasq/submint/internal/wallet"
)

// ImageGenerator produces subscription artwork.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (imagegen.Result, error)
}

// JSONPinner uploads metadata documents.
type JSONPinner interface {
	PinJSON(ctx context.Context, name string, v any) (string, error)
}

// HealthChecker runs the subscription review.
type HealthChecker interface {
	HealthCheck(ctx context.Context, userID string) (*advisor.Report, error)
}

// Ledger is the payment surface the tools use.
type Ledger interface {
	ListSharedUsers(ctx context.Context, ownerID string) ([]store.PaymentUser, error)
	SetPayment(ctx context.Context, ownerID string, upd subscription.PaymentUpdate) (*store.PaymentRecord, error)
}

// Wallets reads the burner wallet.
type Wallets interface {
	Load() (*wallet.Wallet, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Deps are the services behind the tools. A nil dependency makes its tools
// report that the service is not configured.
type Deps struct {
	Images  ImageGenerator
	Pinata  JSONPinner
	Advisor HealthChecker
	Ledger  Ledger
	Wallets Wallets
}

// New registers every tool on a fresh server.
func New(deps Deps, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "submint",
			Version: version,
		},
		nil,
	)
	t := &tools{deps: deps}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate subscription artwork from a text prompt. Returns the image URL; falls back to a stock image when generation fails.",
	}, t.generateImage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_metadata",
		Description: "Build a subscription NFT metadata document (price, payment day, dates, proof, shared users) and pin it to IPFS. Returns the gateway URL.",
	}, t.uploadMetadata)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "subscription_health_check",
		Description: "Analyse a user's subscriptions and return scored cost-saving recommendations.",
	}, t.healthCheck)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_payment_users",
		Description: "List the people sharing subscriptions with a user, ordered by name.",
	}, t.listPaymentUsers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_payment_status",
		Description: "Mark a shared user's payment for a month as paid or unpaid. Creates the payment record when it does not exist.",
	}, t.setPaymentStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wallet_address",
		Description: "Show the burner wallet address that pays for minting and its devnet balance in SOL.",
	}, t.walletAddress)

	return server
}

// Run serves the tools over stdio until the client disconnects or ctx is
// cancelled.
func Run(ctx context.Context, deps Deps, version string) error {
	return New(deps, version).Run(ctx, &mcp.StdioTransport{})
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
