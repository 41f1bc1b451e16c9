// Package supabase implements store.Store over a hosted Supabase project and
// wraps the Supabase Auth endpoints SubMint uses.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/moasq/submint/internal/store"
)

const (
	tableUser          = "user"
	tablePaymentUsers  = "payment_users"
	tablePaymentRecord = "payment_records"
	tableRelationships = "nft_relationships"
)

// Client is a store.Store backed by Supabase PostgREST. It is created with
// the service-role key and never persists an auth session.
type Client struct {
	db  *supa.Client
	log *slog.Logger
	now func() time.Time
}

var _ store.Store = (*Client)(nil)

// New connects to the project at url with the service-role key.
func New(url, serviceRoleKey string, log *slog.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase url is not set")
	}
	if serviceRoleKey == "" {
		return nil, fmt.Errorf("supabase service role key is not set")
	}
	db, err := supa.NewClient(url, serviceRoleKey, &supa.ClientOptions{Schema: "public"})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Client{db: db, log: log, now: time.Now}, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []store.User
	if _, err := c.db.From(tableUser).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) UpsertUser(ctx context.Context, u store.User) error {
	existing, err := c.GetUser(ctx, u.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	now := c.now().UTC().Format(time.RFC3339)
	row := map[string]any{
		"id":                    u.ID,
		"email_address":         u.Email,
		"name":                  u.Name,
		"burner_wallet_address": u.WalletAddress,
		"updated_at":            now,
	}

	if existing != nil {
		if _, _, err := c.db.From(tableUser).Update(row, "minimal", "").Eq("id", u.ID).Execute(); err != nil {
			return fmt.Errorf("update user %s: %w", u.ID, err)
		}
		return nil
	}

	row["nft_address"] = []string{}
	row["created_at"] = now
	if _, _, err := c.db.From(tableUser).Insert([]map[string]any{row}, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func (c *Client) UpdateUserWallet(ctx context.Context, id, walletAddress string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := map[string]any{
		"burner_wallet_address": walletAddress,
		"updated_at":            c.now().UTC().Format(time.RFC3339),
	}
	if _, _, err := c.db.From(tableUser).Update(row, "minimal", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("update wallet for user %s: %w", id, err)
	}
	return nil
}

// UpdateUserNFTs is a read-modify-write of the user's array columns.
func (c *Client) UpdateUserNFTs(ctx context.Context, id string, upd store.UserNFTUpdate) error {
	u, err := c.GetUser(ctx, id)
	if err != nil {
		return err
	}

	shared := append(store.SharedSubscriptions{}, u.SubscriptionSharedUsers...)
	if upd.Shared != nil {
		shared = append(shared, *upd.Shared)
	}

	row := map[string]any{
		"nft_address":               store.AppendUnique(u.NFTAddresses, upd.MintAddresses...),
		"metadata_uris":             store.AppendUnique(u.MetadataURIs, upd.MetadataURI),
		"subscription_shared_users": shared,
		"updated_at":                c.now().UTC().Format(time.RFC3339),
	}
	c.log.Debug("updating user nft columns", "user", id, "mints", len(upd.MintAddresses))
	if _, _, err := c.db.From(tableUser).Update(row, "minimal", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("update nft columns for user %s: %w", id, err)
	}
	return nil
}

func (c *Client) InsertPaymentUser(ctx context.Context, u store.PaymentUser) (*store.PaymentUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.ID = ""
	u.CreatedAt = nil
	var rows []store.PaymentUser
	if _, err := c.db.From(tablePaymentUsers).Insert(u, false, "", "representation", "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("insert payment user %q: %w", u.UserName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert payment user %q: no row returned", u.UserName)
	}
	return &rows[0], nil
}

func (c *Client) GetPaymentUser(ctx context.Context, id string) (*store.PaymentUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []store.PaymentUser
	if _, err := c.db.From(tablePaymentUsers).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("select payment user %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) FindPaymentUserByName(ctx context.Context, ownerID, name string) (*store.PaymentUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []store.PaymentUser
	q := c.db.From(tablePaymentUsers).Select("*", "", false).Eq("owner_id", ownerID).Eq("user_name", name)
	if _, err := q.Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("select payment user %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) UpdatePaymentUserWallet(ctx context.Context, id, walletAddress string) (*store.PaymentUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []store.PaymentUser
	row := map[string]any{"wallet_address": walletAddress}
	if _, err := c.db.From(tablePaymentUsers).Update(row, "representation", "").Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("update payment user %s wallet: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) ListPaymentUsers(ctx context.Context, ownerID string) ([]store.PaymentUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := c.db.From(tablePaymentUsers).Select("*", "", false)
	if ownerID != "" {
		q = q.Eq("owner_id", ownerID)
	}
	rows := []store.PaymentUser{}
	if _, err := q.Order("user_name", &postgrest.OrderOpts{Ascending: true}).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list payment users: %w", err)
	}
	return rows, nil
}

func (c *Client) ListPaymentRecords(ctx context.Context, filter store.RecordFilter) ([]store.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := c.db.From(tablePaymentRecord).Select("*", "", false)
	if filter.SharedUserID != "" {
		q = q.Eq("shared_user_id", filter.SharedUserID)
	}
	if filter.PaymentDate != "" {
		q = q.Eq("payment_date", filter.PaymentDate)
	}
	if filter.MetadataURI != "" {
		q = q.Eq("metadata_uri", filter.MetadataURI)
	}
	rows := []store.PaymentRecord{}
	if _, err := q.Order("payment_date", &postgrest.OrderOpts{Ascending: true}).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	return rows, nil
}

func (c *Client) InsertPaymentRecord(ctx context.Context, r store.PaymentRecord) (*store.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.ID = ""
	r.CreatedAt = nil
	var rows []store.PaymentRecord
	if _, err := c.db.From(tablePaymentRecord).Insert(r, false, "", "representation", "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("insert payment record: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert payment record: no row returned")
	}
	return &rows[0], nil
}

func (c *Client) UpdatePaymentRecord(ctx context.Context, r store.PaymentRecord) (*store.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := map[string]any{
		"payment_status": r.PaymentStatus,
		"paid_date":      r.PaidDate,
		"updated_at":     r.UpdatedAt,
	}
	if r.MetadataURI != "" {
		row["metadata_uri"] = r.MetadataURI
	}
	var rows []store.PaymentRecord
	if _, err := c.db.From(tablePaymentRecord).Update(row, "representation", "").Eq("id", r.ID).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("update payment record %s: %w", r.ID, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) InsertNFTRelationships(ctx context.Context, rels []store.NFTRelationship) error {
	if len(rels) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := c.db.From(tableRelationships).Insert(rels, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert nft relationships: %w", err)
	}
	return nil
}
