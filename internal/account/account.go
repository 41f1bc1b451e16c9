// Package account signs users in through Supabase Auth and keeps their
// profile row pointed at the burner wallet.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/supabase"
	"github.com/moasq/submint/internal/wallet"
)

// ErrCredentials is returned when email or password is missing.
var ErrCredentials = errors.New("Email and password are required")

// Authenticator is the Supabase Auth surface used here.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (*supabase.Session, error)
	SignIn(ctx context.Context, email, password string) (*supabase.Session, error)
}

// WalletSource yields the burner wallet linked to new profiles.
type WalletSource interface {
	LoadOrCreate(ctx context.Context) (*wallet.Wallet, error)
}

// Service handles sign-up, sign-in and profile rows.
type Service struct {
	auth    Authenticator
	users   store.Store
	wallets WalletSource
	log     *slog.Logger
}

// New creates a Service. wallets may be nil, in which case profiles are
// written without a wallet address.
func New(auth Authenticator, users store.Store, wallets WalletSource, log *slog.Logger) *Service {
	return &Service{auth: auth, users: users, wallets: wallets, log: log}
}

// SignUp registers the user and creates their profile row. A profile
// failure is logged; the session is still returned.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*supabase.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentials
	}
	sess, err := s.auth.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	if err := s.UpdateProfile(ctx, sess.User, name); err != nil {
		s.log.ErrorContext(ctx, "error updating user profile", "user", sess.User.ID, "err", err)
	}
	return sess, nil
}

// SignIn exchanges credentials for a session and refreshes the profile row.
func (s *Service) SignIn(ctx context.Context, email, password string) (*supabase.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrCredentials
	}
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.UpdateProfile(ctx, sess.User, ""); err != nil {
		s.log.ErrorContext(ctx, "error updating user profile", "user", sess.User.ID, "err", err)
	}
	return sess, nil
}

// UpdateProfile upserts the user row with the display name and the current
// burner wallet address.
func (s *Service) UpdateProfile(ctx context.Context, u supabase.AuthUser, formName string) error {
	row := store.User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.DisplayName(formName),
	}
	if s.wallets != nil {
		w, err := s.wallets.LoadOrCreate(ctx)
		if err != nil {
			return err
		}
		row.WalletAddress = w.Address().String()
	}
	return s.users.UpsertUser(ctx, row)
}

// Profile returns the user's row.
func (s *Service) Profile(ctx context.Context, userID string) (*store.User, error) {
	return s.users.GetUser(ctx, userID)
}
