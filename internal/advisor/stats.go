package advisor

import (
	"github.com/shopspring/decimal"

	"github.com/moasq/submint/internal/metadata"
)

// DashboardStats summarises spend for the dashboard cards.
type DashboardStats struct {
	Count         int                    `json:"count"`
	TotalMonthly  decimal.Decimal        `json:"totalMonthly"`
	Daily         decimal.Decimal        `json:"daily"`
	Yearly        decimal.Decimal        `json:"yearly"`
	MostExpensive *metadata.Subscription `json:"mostExpensive,omitempty"`
}

// Stats treats every price as monthly: daily is monthly/30 and yearly is
// monthly*12.
func Stats(subs []metadata.Subscription) DashboardStats {
	st := DashboardStats{Count: len(subs)}
	for i := range subs {
		st.TotalMonthly = st.TotalMonthly.Add(subs[i].Price)
		if st.MostExpensive == nil || subs[i].Price.GreaterThan(st.MostExpensive.Price) {
			st.MostExpensive = &subs[i]
		}
	}
	st.Daily = st.TotalMonthly.Div(decimal.NewFromInt(30)).Round(2)
	st.Yearly = st.TotalMonthly.Mul(decimal.NewFromInt(12))
	return st
}
