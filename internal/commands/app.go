package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/account"
	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/chain"
	"github.com/moasq/submint/internal/config"
	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/mint"
	"github.com/moasq/submint/internal/pinata"
	"github.com/moasq/submint/internal/secrets"
	"github.com/moasq/submint/internal/storage"
	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/subscription"
	"github.com/moasq/submint/internal/supabase"
	"github.com/moasq/submint/internal/wallet"
)

// app lazily builds the services a command needs from the loaded config.
type app struct {
	cfg *config.Config
	log *slog.Logger

	secretStore secrets.SecretStore
	db          *supabase.Client
	pin         *pinata.Client
	rpc         *chain.Client
	cache       *metadata.Cache
	docs        *metadata.Fetcher
	walletMgr   *wallet.Manager
	subs        *subscription.Service
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

// Close waits for background wallet funding and releases the metadata cache.
func (a *app) Close() {
	if a.walletMgr != nil {
		a.walletMgr.Wait()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("closing metadata cache", "err", err)
		}
	}
}

func (a *app) secrets() secrets.SecretStore {
	if a.secretStore == nil {
		a.secretStore = secrets.New(a.cfg.SecretsDir(), a.cfg.Secrets.Passphrase)
	}
	return a.secretStore
}

func (a *app) store() (*supabase.Client, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := a.cfg.Require(config.NeedSupabase); err != nil {
		return nil, err
	}
	db, err := supabase.New(a.cfg.Supabase.URL, a.cfg.Supabase.ServiceRoleKey, a.log)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// auth signs users in with the anon key, falling back to the service key.
func (a *app) auth() (*supabase.Auth, error) {
	if err := a.cfg.Require(config.NeedSupabase); err != nil {
		return nil, err
	}
	key := a.cfg.Supabase.AnonKey
	if key == "" {
		key = a.cfg.Supabase.ServiceRoleKey
	}
	return supabase.NewAuth(a.cfg.Supabase.URL, key, a.cfg.Supabase.JWTSecret), nil
}

func (a *app) pinata() (*pinata.Client, error) {
	if a.pin != nil {
		return a.pin, nil
	}
	if err := a.cfg.Require(config.NeedPinata); err != nil {
		return nil, err
	}
	var opts []pinata.Option
	if a.cfg.Pinata.UploadURL != "" {
		opts = append(opts, pinata.WithUploadBase(a.cfg.Pinata.UploadURL))
	}
	pin, err := pinata.New(a.cfg.Pinata.JWT, a.cfg.Pinata.Gateway, opts...)
	if err != nil {
		return nil, err
	}
	a.pin = pin
	return pin, nil
}

func (a *app) chain() *chain.Client {
	if a.rpc == nil {
		a.rpc = chain.New(a.cfg.Solana.RPCURL)
	}
	return a.rpc
}

// metadataSource fetches documents through the bbolt cache. A cache that
// cannot be opened (another process holds the lock) is skipped.
func (a *app) metadataSource() *metadata.Fetcher {
	if a.docs != nil {
		return a.docs
	}
	cache, err := metadata.OpenCache(a.cfg.CachePath)
	if err != nil {
		a.log.Warn("metadata cache disabled", "path", a.cfg.CachePath, "err", err)
		cache = nil
	}
	a.cache = cache
	a.docs = metadata.NewFetcher(cache, a.log)
	return a.docs
}

// wallets keeps the profile row in sync when Supabase is configured.
func (a *app) wallets() *wallet.Manager {
	if a.walletMgr != nil {
		return a.walletMgr
	}
	var users store.Store
	if db, err := a.store(); err == nil {
		users = db
	}
	a.walletMgr = wallet.NewManager(a.secrets(), a.chain(), users, a.log)
	return a.walletMgr
}

func (a *app) minter() (*mint.Minter, error) {
	pin, err := a.pinata()
	if err != nil {
		return nil, err
	}
	wallets := a.wallets()
	payer := func(ctx context.Context) (solana.PrivateKey, error) {
		w, err := wallets.LoadOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		return w.Key, nil
	}
	return mint.New(a.chain(), payer, a.metadataSource(), pin, a.log), nil
}

func (a *app) subscriptions() (*subscription.Service, error) {
	if a.subs != nil {
		return a.subs, nil
	}
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	pin, err := a.pinata()
	if err != nil {
		return nil, err
	}
	m, err := a.minter()
	if err != nil {
		return nil, err
	}
	a.subs = subscription.New(db, pin, m, a.metadataSource(), a.log)
	return a.subs, nil
}

func (a *app) accounts() (*account.Service, error) {
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	auth, err := a.auth()
	if err != nil {
		return nil, err
	}
	return account.New(auth, db, a.wallets(), a.log), nil
}

func (a *app) advisor(ctx context.Context) (*advisor.Advisor, error) {
	if err := a.cfg.Require(config.NeedSupabase, config.NeedAdvisor); err != nil {
		return nil, err
	}
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	llm, err := advisor.NewCompleter(ctx, advisor.Settings{
		Provider:      a.cfg.Advisor.Provider,
		OpenAIKey:     a.cfg.Advisor.OpenAIKey,
		OpenAIModel:   a.cfg.Advisor.OpenAIModel,
		OpenAIBaseURL: a.cfg.Advisor.OpenAIBaseURL,
		GeminiKey:     a.cfg.Advisor.GeminiKey,
		GeminiModel:   a.cfg.Advisor.GeminiModel,
	})
	if err != nil {
		return nil, err
	}
	return advisor.New(db, a.metadataSource(), llm, a.log), nil
}

func (a *app) images() (*imagegen.Generator, error) {
	if err := a.cfg.Require(config.NeedReplicate); err != nil {
		return nil, err
	}
	runner, err := imagegen.NewReplicateRunner(a.cfg.Replicate.Token, a.cfg.Replicate.BaseURL)
	if err != nil {
		return nil, err
	}
	return imagegen.New(runner, a.cfg.Replicate.Model, a.log), nil
}

func (a *app) mintLog() *storage.MintLog {
	return storage.NewMintLog(a.cfg.Home)
}

// network names the cluster behind the RPC URL for display.
func (a *app) network() string {
	u := a.cfg.Solana.RPCURL
	switch {
	case strings.Contains(u, "devnet"):
		return "devnet"
	case strings.Contains(u, "testnet"):
		return "testnet"
	case strings.Contains(u, "mainnet"):
		return "mainnet-beta"
	case strings.Contains(u, "localhost"), strings.Contains(u, "127.0.0.1"):
		return "localnet"
	}
	return u
}

// savedSession is what login keeps in the secret store.
type savedSession struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

var errNotSignedIn = errors.New("not signed in. Run `submint login` or pass --user")

func saveSession(ss secrets.SecretStore, s *supabase.Session) error {
	raw, err := json.Marshal(savedSession{
		UserID:       s.User.ID,
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	})
	if err != nil {
		return err
	}
	return ss.Set(secrets.KeySession, string(raw))
}

func loadSession(ss secrets.SecretStore) (*savedSession, error) {
	raw, err := ss.Get(secrets.KeySession)
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, errNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	var s savedSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.UserID == "" {
		return nil, errNotSignedIn
	}
	return &s, nil
}

// userID is --user when given, else the signed-in user.
func (a *app) userID(cmd *cobra.Command) (string, error) {
	if id, _ := cmd.Flags().GetString("user"); id != "" {
		return id, nil
	}
	s, err := loadSession(a.secrets())
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func lamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}
