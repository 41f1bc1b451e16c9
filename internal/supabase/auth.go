package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// ErrInvalidToken is returned when an access token fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// Auth signs users up and in through Supabase Auth (GoTrue) and verifies
// their access tokens. Each call is independent; no session is kept.
type Auth struct {
	client    gotrue.Client
	jwtSecret []byte
}

// NewAuth creates an Auth client. When jwtSecret is empty access tokens are
// verified by asking Supabase for the token's user instead of locally.
func NewAuth(baseURL, apiKey, jwtSecret string) *Auth {
	client := gotrue.New("", apiKey).
		WithCustomGoTrueURL(strings.TrimRight(baseURL, "/") + "/auth/v1").
		WithClient(http.Client{Timeout: 30 * time.Second})
	return &Auth{client: client, jwtSecret: []byte(jwtSecret)}
}

// AuthUser is the subset of the GoTrue user object SubMint reads.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func authUser(u types.User) AuthUser {
	out := AuthUser{Email: u.Email, UserMetadata: u.UserMetadata}
	if u.ID != uuid.Nil {
		out.ID = u.ID.String()
	}
	return out
}

// DisplayName picks full_name, then fallback, then name, then "User".
func (u AuthUser) DisplayName(fallback string) string {
	if v, ok := u.UserMetadata["full_name"].(string); ok && v != "" {
		return v
	}
	if fallback != "" {
		return fallback
	}
	if v, ok := u.UserMetadata["name"].(string); ok && v != "" {
		return v
	}
	return "User"
}

// Session is returned by sign-up and sign-in. AccessToken is empty when the
// project requires email confirmation before the first sign-in.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

func session(s types.Session) *Session {
	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         authUser(s.User),
	}
}

// Identity is the verified caller of an authenticated request.
type Identity struct {
	UserID string
	Email  string
}

// SignUp registers a user with email and password.
func (a *Auth) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.client.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     map[string]any{"full_name": fullName},
	})
	if err != nil {
		return nil, authError("signup", err)
	}

	// With confirmations enabled GoTrue answers with the bare user object
	// and no session.
	s := session(resp.Session)
	s.User = authUser(resp.User)
	if s.User.ID == "" {
		return nil, fmt.Errorf("signup response has no user")
	}
	return s, nil
}

// SignIn exchanges email and password for a session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.client.Token(types.TokenRequest{
		GrantType: "password",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		return nil, authError("sign in", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token")
	}
	return session(resp.Session), nil
}

// accessClaims are the claims Supabase puts in its access tokens.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// VerifyToken validates an access token and returns the caller.
func (a *Auth) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if len(a.jwtSecret) == 0 {
		return a.fetchIdentity(ctx, token)
	}

	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience("authenticated"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

func (a *Auth) fetchIdentity(ctx context.Context, token string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.client.WithToken(token).GetUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, authError("get user", err))
	}
	if resp.ID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: resp.ID.String(), Email: resp.Email}, nil
}

// authError replaces the raw GoTrue error body with its human readable
// message. GoTrue client errors read "response status code N: <body>".
func authError(op string, err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "response status code") {
		if i := strings.Index(msg, ": "); i >= 0 {
			msg = authErrorMessage([]byte(msg[i+2:]))
		}
	}
	return fmt.Errorf("%s: %s", op, msg)
}

// authErrorMessage pulls the human readable message out of a GoTrue error.
func authErrorMessage(data []byte) string {
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(data, &e) == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription} {
			if m != "" {
				return m
			}
		}
	}
	return string(data)
}
