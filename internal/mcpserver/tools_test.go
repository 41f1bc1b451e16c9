package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/subscription"
	"github.com/moasq/submint/internal/wallet"
)

type stubPinner struct{ doc *metadata.Metadata }

func (p *stubPinner) PinJSON(_ context.Context, _ string, v any) (string, error) {
	p.doc = v.(*metadata.Metadata)
	return "https://gw/ipfs/meta", nil
}

type stubImages struct{}

func (stubImages) Generate(_ context.Context, prompt string) (imagegen.Result, error) {
	if prompt == "" {
		return imagegen.Result{}, imagegen.ErrPromptRequired
	}
	return imagegen.Result{ImageURL: "https://img/" + prompt}, nil
}

type stubAdvisor struct{}

func (stubAdvisor) HealthCheck(context.Context, string) (*advisor.Report, error) {
	return &advisor.Report{OverallScore: 8, Categories: []advisor.Category{}}, nil
}

type stubLedger struct {
	owner string
	last  subscription.PaymentUpdate
}

func (l *stubLedger) ListSharedUsers(context.Context, string) ([]store.PaymentUser, error) {
	return []store.PaymentUser{{ID: "p1", UserName: "alice"}}, nil
}

func (l *stubLedger) SetPayment(_ context.Context, ownerID string, upd subscription.PaymentUpdate) (*store.PaymentRecord, error) {
	l.owner = ownerID
	l.last = upd
	p := subscription.Period{Year: upd.Year, Month: 3}
	return &store.PaymentRecord{PaymentDate: p.String(), PaymentStatus: upd.Paid}, nil
}

type stubWallets struct {
	w       *wallet.Wallet
	balance uint64
	err     error
}

func (s stubWallets) Load() (*wallet.Wallet, error) { return s.w, nil }

func (s stubWallets) Balance(context.Context, solana.PublicKey) (uint64, error) {
	return s.balance, s.err
}

func TestNewRegistersTools(t *testing.T) {
	if New(Deps{}, "test") == nil {
		t.Fatal("New returned nil server")
	}
}

func TestGenerateImage(t *testing.T) {
	tl := &tools{deps: Deps{Images: stubImages{}}}
	_, out, err := tl.generateImage(context.Background(), nil, generateImageInput{Prompt: "cat"})
	if err != nil {
		t.Fatalf("generateImage: %v", err)
	}
	if !strings.Contains(out.Message, "https://img/cat") {
		t.Errorf("message = %q, want image url", out.Message)
	}

	if _, _, err := tl.generateImage(context.Background(), nil, generateImageInput{}); !errors.Is(err, imagegen.ErrPromptRequired) {
		t.Errorf("empty prompt error = %v", err)
	}
}

func TestUploadMetadata(t *testing.T) {
	pin := &stubPinner{}
	tl := &tools{deps: Deps{Pinata: pin}}

	_, out, err := tl.uploadMetadata(context.Background(), nil, uploadMetadataInput{
		Title:       "Netflix",
		Price:       "18",
		SharedUsers: []sharedUserInput{{Name: "alice"}, {Name: "bob"}},
	})
	if err != nil {
		t.Fatalf("uploadMetadata: %v", err)
	}
	if out.Message != "https://gw/ipfs/meta" {
		t.Errorf("message = %q", out.Message)
	}
	if got := pin.doc.AttributeOr(metadata.TraitSharedWith, ""); got != "alice, bob" {
		t.Errorf("Shared With = %q", got)
	}

	if _, _, err := tl.uploadMetadata(context.Background(), nil, uploadMetadataInput{}); err == nil {
		t.Error("expected error for missing title")
	}
}

func TestSetPaymentStatus(t *testing.T) {
	ledger := &stubLedger{}
	tl := &tools{deps: Deps{Ledger: ledger}}

	_, out, err := tl.setPaymentStatus(context.Background(), nil, setPaymentStatusInput{
		OwnerID: "u1", UserID: "p1", Year: 2025, Month: 3, Paid: true, Amount: "9.50",
	})
	if err != nil {
		t.Fatalf("setPaymentStatus: %v", err)
	}
	if out.Message != "Payment for 2025-03 marked paid." {
		t.Errorf("message = %q", out.Message)
	}
	if ledger.last.Amount.String() != "9.5" {
		t.Errorf("amount = %s", ledger.last.Amount)
	}
	if ledger.owner != "u1" {
		t.Errorf("owner = %q", ledger.owner)
	}

	if _, _, err := tl.setPaymentStatus(context.Background(), nil, setPaymentStatusInput{OwnerID: "u1", Amount: "lots"}); err == nil {
		t.Error("expected error for invalid amount")
	}
	if _, _, err := tl.setPaymentStatus(context.Background(), nil, setPaymentStatusInput{UserID: "p1", Year: 2025, Month: 3}); err == nil {
		t.Error("expected error for missing owner")
	}
}

func TestListPaymentUsersAndHealthCheck(t *testing.T) {
	tl := &tools{deps: Deps{Ledger: &stubLedger{}, Advisor: stubAdvisor{}}}

	_, out, err := tl.listPaymentUsers(context.Background(), nil, listPaymentUsersInput{})
	if err != nil || !strings.Contains(out.Message, `"user_name": "alice"`) {
		t.Errorf("listPaymentUsers = %q, %v", out.Message, err)
	}

	if _, _, err := tl.healthCheck(context.Background(), nil, healthCheckInput{}); err == nil {
		t.Error("expected error for missing user_id")
	}
	_, out, err = tl.healthCheck(context.Background(), nil, healthCheckInput{UserID: "u1"})
	if err != nil || !strings.Contains(out.Message, `"overallScore": 8`) {
		t.Errorf("healthCheck = %q, %v", out.Message, err)
	}
}

func TestWalletAddress(t *testing.T) {
	w := &wallet.Wallet{Key: solana.NewWallet().PrivateKey}
	tl := &tools{deps: Deps{Wallets: stubWallets{w: w, balance: solana.LAMPORTS_PER_SOL / 2}}}

	_, out, err := tl.walletAddress(context.Background(), nil, walletAddressInput{})
	if err != nil {
		t.Fatalf("walletAddress: %v", err)
	}
	want := w.Address().String() + " (0.5000 SOL)"
	if out.Message != want {
		t.Errorf("message = %q, want %q", out.Message, want)
	}

	tl.deps.Wallets = stubWallets{w: w, err: errors.New("rpc down")}
	_, out, _ = tl.walletAddress(context.Background(), nil, walletAddressInput{})
	if out.Message != w.Address().String() {
		t.Errorf("message without balance = %q", out.Message)
	}
}

func TestUnconfigured(t *testing.T) {
	tl := &tools{}
	if _, _, err := tl.walletAddress(context.Background(), nil, walletAddressInput{}); !errors.Is(err, errNotConfigured) {
		t.Errorf("err = %v", err)
	}
}
