// Package advisor analyses a user's subscriptions and asks a language model
// for cost-optimization advice.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/store"
)

const (
	noSubscriptionsMessage = "You don't have any subscriptions yet. Start by creating your first subscription NFT."
	fetchConcurrency       = 4
)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MetadataSource resolves a metadata URI to its document.
type MetadataSource interface {
	Fetch(ctx context.Context, uri string) (*metadata.Metadata, error)
}

// Subscription is one analysed subscription.
type Subscription struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	BillingCycle string          `json:"billing_cycle"`
	Category     string          `json:"category"`
}

// Totals are the spend figures sent to the model and returned to callers.
type Totals struct {
	TotalMonthly       decimal.Decimal `json:"totalMonthly"`
	TotalYearly        decimal.Decimal `json:"totalYearly"`
	AnnualizedSpending decimal.Decimal `json:"annualizedSpending"`
}

// Alternative is a cheaper service suggested for a subscription.
type Alternative struct {
	Name        string `json:"name"`
	Savings     string `json:"savings"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebAlternatives groups alternatives for one subscription.
type WebAlternatives struct {
	For          string        `json:"for"`
	Alternatives []Alternative `json:"alternatives"`
}

// Category is a scored group of recommendations.
type Category struct {
	Title           string   `json:"title"`
	Score           float64  `json:"score"`
	Recommendations []string `json:"recommendations"`
}

// Report is the health-check result.
type Report struct {
	OverallScore       float64           `json:"overallScore"`
	WebAlternatives    []WebAlternatives `json:"webAlternatives,omitempty"`
	Categories         []Category        `json:"categories"`
	Recommendations    string            `json:"recommendations,omitempty"`
	RawRecommendations string            `json:"rawRecommendations,omitempty"`
	Stats              *Totals           `json:"stats,omitempty"`
}

// Advisor runs health checks.
type Advisor struct {
	users store.Store
	docs  MetadataSource
	llm   Completer
	log   *slog.Logger
}

// New creates an Advisor.
func New(users store.Store, docs MetadataSource, llm Completer, log *slog.Logger) *Advisor {
	return &Advisor{users: users, docs: docs, llm: llm, log: log}
}

// UserLookupError reports that the user row could not be loaded.
type UserLookupError struct {
	Err error
}

func (e *UserLookupError) Error() string { return e.Err.Error() }
func (e *UserLookupError) Unwrap() error { return e.Err }

// HealthCheck loads the user's subscription documents, totals their cost and
// asks the model for structured recommendations.
func (a *Advisor) HealthCheck(ctx context.Context, userID string) (*Report, error) {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return nil, &UserLookupError{Err: err}
	}
	if len(user.MetadataURIs) == 0 {
		return &Report{
			Recommendations: noSubscriptionsMessage,
			OverallScore:    0,
			Categories:      []Category{},
		}, nil
	}

	subs := a.collect(ctx, user.MetadataURIs)
	totals := Total(subs)

	text, err := a.llm.Complete(ctx, BuildPrompt(subs, totals))
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}

	report := ParseReport(text)
	if report.RawRecommendations != "" {
		a.log.WarnContext(ctx, "model response was not valid JSON", "user", userID)
	}
	report.Stats = &totals
	return report, nil
}

// collect fetches every document concurrently. Documents that fail to load
// are skipped; order follows uris.
func (a *Advisor) collect(ctx context.Context, uris []string) []Subscription {
	slots := make([]*Subscription, len(uris))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, uri := range uris {
		g.Go(func() error {
			m, err := a.docs.Fetch(gctx, uri)
			if err != nil {
				a.log.WarnContext(gctx, "error fetching NFT metadata", "uri", uri, "err", err)
				return nil
			}
			s := FromMetadata(m)
			slots[i] = &s
			return nil
		})
	}
	_ = g.Wait()

	subs := make([]Subscription, 0, len(uris))
	for _, s := range slots {
		if s != nil {
			subs = append(subs, *s)
		}
	}
	return subs
}

// FromMetadata extracts the analysed fields from a document.
func FromMetadata(m *metadata.Metadata) Subscription {
	name := m.Name
	if name == "" {
		name = "Untitled Subscription"
	}
	return Subscription{
		Name:         name,
		Price:        m.Price(),
		BillingCycle: m.AttributeOr(metadata.TraitBillingCycle, "monthly"),
		Category:     m.AttributeOr(metadata.TraitCategory, "Unknown"),
	}
}

// Total sums prices by billing cycle. Cycles other than monthly and yearly
// are not counted.
func Total(subs []Subscription) Totals {
	var t Totals
	for _, s := range subs {
		switch strings.ToLower(s.BillingCycle) {
		case "monthly":
			t.TotalMonthly = t.TotalMonthly.Add(s.Price)
		case "yearly":
			t.TotalYearly = t.TotalYearly.Add(s.Price)
		}
	}
	t.AnnualizedSpending = t.TotalMonthly.Mul(decimal.NewFromInt(12)).Add(t.TotalYearly)
	return t
}

// ParseReport extracts the JSON object between the first '{' and the last
// '}'. Anything unparseable becomes a neutral report carrying the raw text.
func ParseReport(text string) *Report {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var r Report
		if err := json.Unmarshal([]byte(text[start:end+1]), &r); err == nil {
			if r.Categories == nil {
				r.Categories = []Category{}
			}
			return &r
		}
	}
	return &Report{
		OverallScore:       5,
		Categories:         []Category{},
		RawRecommendations: text,
	}
}
