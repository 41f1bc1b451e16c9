package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors returned by Form.Validate.
var (
	ErrDatesRequired  = errors.New("Start and end dates are required")
	ErrEndBeforeStart = errors.New("End date cannot be before start date")
	ErrTitleRequired  = errors.New("Title is required")
	ErrImage          = errors.New("Failed to process image. Please try again or use a different image.")
	ErrImageTooLarge  = errors.New("File too large")
)

// dateLayout is how dates are written into metadata.
const dateLayout = "02/01/2006"

// Date is a calendar day accepted as "YYYY-MM-DD" (or RFC 3339) in JSON.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// ParseDate accepts YYYY-MM-DD, RFC 3339 or dd/MM/yyyy.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// FormatDate renders a date the way metadata stores it (dd/MM/yyyy).
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// SharedUserInput is a co-payer entered on the subscription form.
type SharedUserInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
}

// Form is a new subscription.
type Form struct {
	Title         string            `json:"title"`
	Price         string            `json:"price"`
	RecurringDate string            `json:"recurringDate"`
	Proof         string            `json:"proof"`
	StartDate     Date              `json:"startDate"`
	EndDate       Date              `json:"endDate"`
	ImageURL      string            `json:"imageUrl"`
	SharedUsers   []SharedUserInput `json:"sharedUsers"`
}

// Validate checks the form before anything is uploaded.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return ErrTitleRequired
	}
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return ErrDatesRequired
	}
	if f.EndDate.Before(f.StartDate.Time) {
		return ErrEndBeforeStart
	}
	return nil
}

// Description is the metadata description, e.g. "Netflix: 15.99/mo (01/01/2025 to 31/12/2025)".
func (f *Form) Description() string {
	return fmt.Sprintf("%s: %s/mo (%s to %s)", f.Title, f.Price, FormatDate(f.StartDate.Time), FormatDate(f.EndDate.Time))
}

// PriceDecimal parses Price, treating anything unparseable as zero.
func (f *Form) PriceDecimal() decimal.Decimal {
	p, err := decimal.NewFromString(strings.TrimSpace(f.Price))
	if err != nil {
		return decimal.Zero
	}
	return p
}

// FormatWalletAddress shortens an address to first4...last4 for display.
// Empty and "None" addresses render as "".
func FormatWalletAddress(addr string) string {
	if addr == "" || addr == "None" {
		return ""
	}
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
