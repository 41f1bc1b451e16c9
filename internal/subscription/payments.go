package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/store"
)

var (
	// ErrNameRequired is returned when a shared user has no name.
	ErrNameRequired = errors.New("Name is required")
	// ErrNotOwner is returned when a co-payer belongs to another account.
	ErrNotOwner = errors.New("payment user belongs to another account")

	errOwnerRequired = errors.New("an owner is required")
)

const unknownUser = "Unknown User"

// Period is a billing month, written YYYY-MM in payment records.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid payment period %q", s)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Valid reports whether Month is 1..12 and Year is set.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// ListSharedUsers returns the co-payers owned by ownerID, ordered by name.
func (s *Service) ListSharedUsers(ctx context.Context, ownerID string) ([]store.PaymentUser, error) {
	return s.store.ListPaymentUsers(ctx, ownerID)
}

// AddSharedUser stores a co-payer owned by ownerID.
func (s *Service) AddSharedUser(ctx context.Context, ownerID string, in SharedUserInput) (*store.PaymentUser, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	row := store.PaymentUser{
		UserName:      name,
		Email:         optional(in.Email),
		WalletAddress: optional(in.WalletAddress),
	}
	if ownerID != "" {
		row.OwnerID = &ownerID
	}
	return s.store.InsertPaymentUser(ctx, row)
}

// SyncSharedUsers makes sure every shared user named in the document at
// metadataURI has a payment_users row owned by ownerID. Existing rows get
// their wallet refreshed when the document carries a different one.
func (s *Service) SyncSharedUsers(ctx context.Context, ownerID, metadataURI string) ([]store.PaymentUser, error) {
	if ownerID == "" {
		return nil, errOwnerRequired
	}
	doc, err := s.docs.Fetch(ctx, metadataURI)
	if err != nil {
		return nil, err
	}

	out := make([]store.PaymentUser, 0, len(doc.SharedUsers))
	for _, ref := range doc.SharedUsers {
		if strings.TrimSpace(ref.Name) == "" {
			continue
		}
		wallet := ref.WalletAddress
		if wallet == "None" {
			wallet = ""
		}

		existing, err := s.store.FindPaymentUserByName(ctx, ownerID, ref.Name)
		switch {
		case err == nil:
			if wallet != "" && existing.Wallet() != wallet {
				updated, err := s.store.UpdatePaymentUserWallet(ctx, existing.ID, wallet)
				if err != nil {
					s.log.ErrorContext(ctx, "error updating user wallet", "user", ref.Name, "err", err)
					out = append(out, *existing)
					continue
				}
				existing = updated
			}
			out = append(out, *existing)
		case errors.Is(err, store.ErrNotFound):
			email := ""
			created, err := s.store.InsertPaymentUser(ctx, store.PaymentUser{
				UserName:      ref.Name,
				Email:         &email,
				WalletAddress: optional(wallet),
				OwnerID:       &ownerID,
				FromMetadata:  true,
			})
			if err != nil {
				s.log.ErrorContext(ctx, "error creating user", "user", ref.Name, "err", err)
				continue
			}
			out = append(out, *created)
		default:
			s.log.ErrorContext(ctx, "error checking user", "user", ref.Name, "err", err)
		}
	}
	return out, nil
}

// PaymentUpdate marks one co-payer's month as paid or unpaid.
type PaymentUpdate struct {
	UserID      string          `json:"userId"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Paid        bool            `json:"paid"`
	MetadataURI string          `json:"metadataUri"`
	Amount      decimal.Decimal `json:"amount"`
}

// SetPayment updates the user's record for the period, or creates it. A new
// record without an amount takes the subscription price from the document.
// The co-payer must belong to ownerID.
func (s *Service) SetPayment(ctx context.Context, ownerID string, upd PaymentUpdate) (*store.PaymentRecord, error) {
	period := Period{Year: upd.Year, Month: time.Month(upd.Month)}
	if upd.UserID == "" || !period.Valid() {
		return nil, fmt.Errorf("a user and a valid month are required")
	}
	if err := s.checkOwner(ctx, ownerID, upd.UserID); err != nil {
		return nil, err
	}

	now := s.now()
	var paidDate *time.Time
	if upd.Paid {
		paidDate = &now
	}

	existing, err := s.store.ListPaymentRecords(ctx, store.RecordFilter{
		SharedUserID: upd.UserID,
		PaymentDate:  period.String(),
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		rec := existing[0]
		rec.PaymentStatus = upd.Paid
		rec.PaidDate = paidDate
		rec.UpdatedAt = &now
		rec.MetadataURI = upd.MetadataURI
		return s.store.UpdatePaymentRecord(ctx, rec)
	}

	amount := upd.Amount
	if amount.IsZero() && upd.MetadataURI != "" {
		if doc, err := s.docs.Fetch(ctx, upd.MetadataURI); err == nil {
			amount = doc.Price()
		}
	}
	return s.store.InsertPaymentRecord(ctx, store.PaymentRecord{
		SharedUserID:  upd.UserID,
		PaymentDate:   period.String(),
		PaymentStatus: upd.Paid,
		PaymentAmount: amount,
		PaidDate:      paidDate,
		MetadataURI:   upd.MetadataURI,
		UpdatedAt:     &now,
	})
}

func (s *Service) checkOwner(ctx context.Context, ownerID, paymentUserID string) error {
	if ownerID == "" {
		return errOwnerRequired
	}
	u, err := s.store.GetPaymentUser(ctx, paymentUserID)
	if err != nil {
		return err
	}
	if u.OwnerID == nil || *u.OwnerID != ownerID {
		return ErrNotOwner
	}
	return nil
}

// Ledger is the set of payment records behind one subscription.
type Ledger struct {
	Records []store.PaymentRecord
	Price   decimal.Decimal
}

// Ledger loads the records for metadataURI that belong to ownerID's
// co-payers. Price comes from the document and is zero when the document
// cannot be fetched.
func (s *Service) Ledger(ctx context.Context, ownerID, metadataURI string) (*Ledger, error) {
	if ownerID == "" {
		return nil, errOwnerRequired
	}
	users, err := s.store.ListPaymentUsers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.ledger(ctx, metadataURI, users)
}

func (s *Service) ledger(ctx context.Context, metadataURI string, users []store.PaymentUser) (*Ledger, error) {
	records, err := s.store.ListPaymentRecords(ctx, store.RecordFilter{MetadataURI: metadataURI})
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(users))
	for _, u := range users {
		owned[u.ID] = struct{}{}
	}
	l := &Ledger{Records: make([]store.PaymentRecord, 0, len(records))}
	for _, r := range records {
		if _, ok := owned[r.SharedUserID]; ok {
			l.Records = append(l.Records, r)
		}
	}
	if doc, err := s.docs.Fetch(ctx, metadataURI); err == nil {
		l.Price = doc.Price()
	} else {
		s.log.WarnContext(ctx, "error fetching subscription price", "uri", metadataURI, "err", err)
	}
	return l, nil
}

func (l *Ledger) find(userID string, p Period) *store.PaymentRecord {
	key := p.String()
	for i := range l.Records {
		if l.Records[i].SharedUserID == userID && l.Records[i].PaymentDate == key {
			return &l.Records[i]
		}
	}
	return nil
}

// Status reports whether userID paid for p.
func (l *Ledger) Status(userID string, p Period) bool {
	r := l.find(userID, p)
	return r != nil && r.PaymentStatus
}

// Amount is the recorded amount for p, or the subscription price when no
// record exists or the record has no amount.
func (l *Ledger) Amount(userID string, p Period) decimal.Decimal {
	if r := l.find(userID, p); r != nil && !r.PaymentAmount.IsZero() {
		return r.PaymentAmount
	}
	return l.Price
}

// PaidDate returns when userID paid for p, if they did.
func (l *Ledger) PaidDate(userID string, p Period) *time.Time {
	if r := l.find(userID, p); r != nil {
		return r.PaidDate
	}
	return nil
}

// PaymentsByYear returns the paid records whose period falls in year.
func (l *Ledger) PaymentsByYear(year int) []store.PaymentRecord {
	prefix := fmt.Sprintf("%04d-", year)
	out := []store.PaymentRecord{}
	for _, r := range l.Records {
		if r.PaymentStatus && strings.HasPrefix(r.PaymentDate, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// PaymentsByYearAndMonth returns the paid records for p.
func (l *Ledger) PaymentsByYearAndMonth(p Period) []store.PaymentRecord {
	key := p.String()
	out := []store.PaymentRecord{}
	for _, r := range l.Records {
		if r.PaymentStatus && r.PaymentDate == key {
			out = append(out, r)
		}
	}
	return out
}

// UserName looks id up in users.
func UserName(users []store.PaymentUser, id string) string {
	for _, u := range users {
		if u.ID == id {
			return u.UserName
		}
	}
	return unknownUser
}

// PayerStatus is one row of the monthly payment table.
type PayerStatus struct {
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	Wallet   string          `json:"wallet"`
	Paid     bool            `json:"paid"`
	Amount   decimal.Decimal `json:"amount"`
	PaidDate *time.Time      `json:"paidDate"`
}

// MonthlyStatus lists every co-payer owned by ownerID with their payment
// state for metadataURI in period p.
func (s *Service) MonthlyStatus(ctx context.Context, ownerID, metadataURI string, p Period) ([]PayerStatus, error) {
	if ownerID == "" {
		return nil, errOwnerRequired
	}
	users, err := s.store.ListPaymentUsers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.ledger(ctx, metadataURI, users)
	if err != nil {
		return nil, err
	}
	out := make([]PayerStatus, 0, len(users))
	for _, u := range users {
		out = append(out, PayerStatus{
			UserID:   u.ID,
			UserName: u.UserName,
			Wallet:   FormatWalletAddress(u.Wallet()),
			Paid:     ledger.Status(u.ID, p),
			Amount:   ledger.Amount(u.ID, p),
			PaidDate: ledger.PaidDate(u.ID, p),
		})
	}
	return out, nil
}

// Subscriptions loads the profile views of every subscription the user
// minted. Documents that fail to load are skipped.
func (s *Service) Subscriptions(ctx context.Context, userID string) ([]metadata.Subscription, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]metadata.Subscription, 0, len(user.MetadataURIs))
	for _, uri := range user.MetadataURIs {
		doc, err := s.docs.Fetch(ctx, uri)
		if err != nil {
			s.log.WarnContext(ctx, "error fetching NFT metadata", "uri", uri, "err", err)
			continue
		}
		out = append(out, metadata.SubscriptionView(uri, doc))
	}
	return out, nil
}
