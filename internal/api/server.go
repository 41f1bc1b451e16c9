// Package api serves the SubMint HTTP API.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/subscription"
	"github.com/moasq/submint/internal/supabase"
	"github.com/moasq/submint/internal/wallet"
)

// Config controls origin and key checks.
type Config struct {
	AllowedOrigins []string
	APIKeys        []string
	// Development echoes any Origin back.
	Development bool
}

// TokenVerifier validates Supabase access tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*supabase.Identity, error)
}

// Pinner uploads to IPFS.
type Pinner interface {
	PinFile(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	PinJSON(ctx context.Context, name string, v any) (string, error)
}

// ImageGenerator produces subscription artwork.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (imagegen.Result, error)
}

// HealthChecker runs the AI subscription review.
type HealthChecker interface {
	HealthCheck(ctx context.Context, userID string) (*advisor.Report, error)
}

// Accounts signs users in and reads profiles.
type Accounts interface {
	SignUp(ctx context.Context, email, password, name string) (*supabase.Session, error)
	SignIn(ctx context.Context, email, password string) (*supabase.Session, error)
	Profile(ctx context.Context, userID string) (*store.User, error)
}

// WalletResetter replaces the burner wallet.
type WalletResetter interface {
	Reset(ctx context.Context, userID string) (*wallet.Wallet, error)
}

// Subscriptions is the minting and payment ledger surface.
type Subscriptions interface {
	Create(ctx context.Context, userID string, f subscription.Form) (*subscription.Created, error)
	Subscriptions(ctx context.Context, userID string) ([]metadata.Subscription, error)
	ListSharedUsers(ctx context.Context, ownerID string) ([]store.PaymentUser, error)
	AddSharedUser(ctx context.Context, ownerID string, in subscription.SharedUserInput) (*store.PaymentUser, error)
	SyncSharedUsers(ctx context.Context, ownerID, metadataURI string) ([]store.PaymentUser, error)
	SetPayment(ctx context.Context, ownerID string, upd subscription.PaymentUpdate) (*store.PaymentRecord, error)
	Ledger(ctx context.Context, ownerID, metadataURI string) (*subscription.Ledger, error)
	MonthlyStatus(ctx context.Context, ownerID, metadataURI string, p subscription.Period) ([]subscription.PayerStatus, error)
}

// Deps are the services behind the routes. Nil services leave their routes
// answering 503.
type Deps struct {
	Tokens        TokenVerifier
	Pinata        Pinner
	Images        ImageGenerator
	Advisor       HealthChecker
	Accounts      Accounts
	Wallets       WalletResetter
	Subscriptions Subscriptions
}

// Server holds the router and its dependencies.
type Server struct {
	cfg    Config
	tokens TokenVerifier
	pin    Pinner
	images ImageGenerator
	advice HealthChecker
	accts  Accounts
	wallet WalletResetter
	subs   Subscriptions
	log    *slog.Logger
	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps, log *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		tokens: deps.Tokens,
		pin:    deps.Pinata,
		images: deps.Images,
		advice: deps.Advisor,
		accts:  deps.Accounts,
		wallet: deps.Wallets,
		subs:   deps.Subscriptions,
		log:    log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/files", s.handleUploadFile)
			r.Post("/metadata-to-pinata", s.handleUploadMetadata)
		})
		r.Post("/generate-image", s.handleGenerateImage)
		r.Post("/subscription-health-check", s.handleHealthCheck)

		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/login", s.handleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/profile", s.handleProfile)
			r.Post("/profile/wallet/reset", s.handleWalletReset)
			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Post("/subscriptions", s.handleCreateSubscription)
			r.Get("/subscriptions/stats", s.handleStats)
			r.Get("/payment-users", s.handleListPaymentUsers)
			r.Post("/payment-users", s.handleAddPaymentUser)
			r.Post("/payment-users/sync", s.handleSyncPaymentUsers)
			r.Get("/payments", s.handleMonthlyPayments)
			r.Put("/payments", s.handleSetPayment)
			r.Get("/payments/history", s.handlePaymentHistory)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
