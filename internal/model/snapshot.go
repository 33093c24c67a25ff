package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialSnapshot is the historical data the engine values a company from.
// Every series is ordered most-recent-first.
type FinancialSnapshot struct {
	Ticker            string            `json:"ticker"`
	FreeCashFlow      []decimal.Decimal `json:"free_cash_flow"`
	TotalDebt         []decimal.Decimal `json:"total_debt"`
	SharesOutstanding []decimal.Decimal `json:"shares_outstanding"`
	Source            string            `json:"source"`
	FetchedAt         time.Time         `json:"fetched_at"`
}

// LatestFreeCashFlow returns the most recent free cash flow, if any.
func (s *FinancialSnapshot) LatestFreeCashFlow() (decimal.Decimal, bool) {
	return latest(s.FreeCashFlow)
}

// LatestDebt returns the most recent total debt, or zero when the series is empty.
func (s *FinancialSnapshot) LatestDebt() decimal.Decimal {
	d, ok := latest(s.TotalDebt)
	if !ok {
		return decimal.Zero
	}
	return d
}

// LatestSharesOutstanding returns the most recent share count, if any.
func (s *FinancialSnapshot) LatestSharesOutstanding() (decimal.Decimal, bool) {
	return latest(s.SharesOutstanding)
}

// Clone returns a copy that shares no slices with s.
func (s *FinancialSnapshot) Clone() *FinancialSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.FreeCashFlow = append([]decimal.Decimal(nil), s.FreeCashFlow...)
	c.TotalDebt = append([]decimal.Decimal(nil), s.TotalDebt...)
	c.SharesOutstanding = append([]decimal.Decimal(nil), s.SharesOutstanding...)
	return &c
}

func latest(series []decimal.Decimal) (decimal.Decimal, bool) {
	if len(series) == 0 {
		return decimal.Zero, false
	}
	return series[0], true
}
