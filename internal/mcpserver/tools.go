package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/subscription"
)

var errNotConfigured = errors.New("service is not configured")

type textOutput struct {
	Message string `json:"message"`
}

type tools struct {
	deps Deps
}

func jsonOutput(v any) (textOutput, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textOutput{}, err
	}
	return textOutput{Message: string(raw)}, nil
}

// --- generate_image ---

type generateImageInput struct {
	Prompt string `json:"prompt" jsonschema:"Description of the image to generate"`
}

func (t *tools) generateImage(ctx context.Context, req *mcp.CallToolRequest, input generateImageInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Images == nil {
		return nil, textOutput{}, errNotConfigured
	}
	res, err := t.deps.Images.Generate(ctx, input.Prompt)
	if err != nil {
		return nil, textOutput{}, err
	}
	out, err := jsonOutput(res)
	return nil, out, err
}

// --- upload_metadata ---

type sharedUserInput struct {
	Name          string `json:"name" jsonschema:"Display name of the co-payer"`
	WalletAddress string `json:"wallet_address,omitempty" jsonschema:"Solana address of the co-payer"`
}

type uploadMetadataInput struct {
	Title         string            `json:"title" jsonschema:"Subscription name"`
	Description   string            `json:"description,omitempty" jsonschema:"Free-text description"`
	ImageURI      string            `json:"image_uri,omitempty" jsonschema:"URL of the subscription artwork"`
	Price         string            `json:"price" jsonschema:"Monthly price"`
	RecurringDate string            `json:"recurring_date,omitempty" jsonschema:"Day of the month the payment is due"`
	StartDate     string            `json:"start_date,omitempty" jsonschema:"Start date (dd/MM/yyyy)"`
	EndDate       string            `json:"end_date,omitempty" jsonschema:"End date (dd/MM/yyyy)"`
	Proof         string            `json:"proof,omitempty" jsonschema:"Proof of payment reference"`
	SharedUsers   []sharedUserInput `json:"shared_users,omitempty" jsonschema:"People sharing the subscription"`
}

func (t *tools) uploadMetadata(ctx context.Context, req *mcp.CallToolRequest, input uploadMetadataInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Pinata == nil {
		return nil, textOutput{}, errNotConfigured
	}
	if input.Title == "" {
		return nil, textOutput{}, fmt.Errorf("title is required")
	}
	refs := make([]metadata.SharedUserRef, 0, len(input.SharedUsers))
	for _, u := range input.SharedUsers {
		refs = append(refs, metadata.SharedUserRef{Name: u.Name, WalletAddress: u.WalletAddress})
	}
	doc := metadata.BuildSubscription(metadata.SubscriptionRequest{
		Title:         input.Title,
		Description:   input.Description,
		ImageURI:      input.ImageURI,
		Price:         input.Price,
		RecurringDate: input.RecurringDate,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Proof:         input.Proof,
		SharedUsers:   refs,
	})
	uri, err := t.deps.Pinata.PinJSON(ctx, "metadata.json", doc)
	if err != nil {
		return nil, textOutput{}, err
	}
	return nil, textOutput{Message: uri}, nil
}

// --- subscription_health_check ---

type healthCheckInput struct {
	UserID string `json:"user_id" jsonschema:"SubMint user ID"`
}

func (t *tools) healthCheck(ctx context.Context, req *mcp.CallToolRequest, input healthCheckInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Advisor == nil {
		return nil, textOutput{}, errNotConfigured
	}
	if input.UserID == "" {
		return nil, textOutput{}, fmt.Errorf("user_id is required")
	}
	report, err := t.deps.Advisor.HealthCheck(ctx, input.UserID)
	if err != nil {
		return nil, textOutput{}, err
	}
	out, err := jsonOutput(report)
	return nil, out, err
}

// --- list_payment_users ---

type listPaymentUsersInput struct {
	OwnerID string `json:"owner_id,omitempty" jsonschema:"Only list co-payers added by this user"`
}

func (t *tools) listPaymentUsers(ctx context.Context, req *mcp.CallToolRequest, input listPaymentUsersInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Ledger == nil {
		return nil, textOutput{}, errNotConfigured
	}
	users, err := t.deps.Ledger.ListSharedUsers(ctx, input.OwnerID)
	if err != nil {
		return nil, textOutput{}, err
	}
	out, err := jsonOutput(users)
	return nil, out, err
}

// --- set_payment_status ---

type setPaymentStatusInput struct {
	OwnerID     string `json:"owner_id" jsonschema:"SubMint user who added the co-payer"`
	UserID      string `json:"user_id" jsonschema:"Payment user ID"`
	Year        int    `json:"year" jsonschema:"Payment year, e.g. 2025"`
	Month       int    `json:"month" jsonschema:"Payment month, 1-12"`
	Paid        bool   `json:"paid" jsonschema:"Whether the month is paid"`
	MetadataURI string `json:"metadata_uri,omitempty" jsonschema:"Metadata URI of the subscription"`
	Amount      string `json:"amount,omitempty" jsonschema:"Amount paid; defaults to the subscription price"`
}

func (t *tools) setPaymentStatus(ctx context.Context, req *mcp.CallToolRequest, input setPaymentStatusInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Ledger == nil {
		return nil, textOutput{}, errNotConfigured
	}
	if input.OwnerID == "" {
		return nil, textOutput{}, fmt.Errorf("owner_id is required")
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, textOutput{}, fmt.Errorf("invalid amount %q", input.Amount)
	}
	rec, err := t.deps.Ledger.SetPayment(ctx, input.OwnerID, subscription.PaymentUpdate{
		UserID:      input.UserID,
		Year:        input.Year,
		Month:       input.Month,
		Paid:        input.Paid,
		MetadataURI: input.MetadataURI,
		Amount:      amount,
	})
	if err != nil {
		return nil, textOutput{}, err
	}
	state := "unpaid"
	if rec.PaymentStatus {
		state = "paid"
	}
	return nil, textOutput{Message: fmt.Sprintf("Payment for %s marked %s.", rec.PaymentDate, state)}, nil
}

// --- wallet_address ---

type walletAddressInput struct{}

func (t *tools) walletAddress(ctx context.Context, req *mcp.CallToolRequest, input walletAddressInput) (*mcp.CallToolResult, textOutput, error) {
	if t.deps.Wallets == nil {
		return nil, textOutput{}, errNotConfigured
	}
	w, err := t.deps.Wallets.Load()
	if err != nil {
		return nil, textOutput{}, err
	}
	lamports, err := t.deps.Wallets.Balance(ctx, w.Address())
	if err != nil {
		return nil, textOutput{Message: w.Address().String()}, nil
	}
	sol := float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
	return nil, textOutput{Message: fmt.Sprintf("%s (%.4f SOL)", w.Address(), sol)}, nil
}
