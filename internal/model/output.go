package model

import "github.com/shopspring/decimal"

// Verdict compares the model's fair value with the market price.
type Verdict string

const (
	VerdictUndervalued Verdict = "Undervalued"
	VerdictOvervalued  Verdict = "Overvalued"
	VerdictFairValue   Verdict = "Fair Value"
)

// Verdicts lists every valid verdict.
var Verdicts = []Verdict{VerdictUndervalued, VerdictOvervalued, VerdictFairValue}

// DCFOutput is the result of one valuation.
type DCFOutput struct {
	Ticker                      string            `json:"ticker"`
	FairValuePerShare           decimal.Decimal   `json:"fair_value_per_share"`
	CurrentPrice                decimal.Decimal   `json:"current_price"`
	Verdict                     Verdict           `json:"valuation"`
	UpsideDownside              decimal.Decimal   `json:"upside_downside_percentage"`
	TerminalValue               decimal.Decimal   `json:"terminal_value"`
	PresentValueOfTerminalValue decimal.Decimal   `json:"present_value_of_terminal_value"`
	PresentValueOfCashFlows     decimal.Decimal   `json:"present_value_of_cash_flows"`
	EnterpriseValue             decimal.Decimal   `json:"enterprise_value"`
	EquityValue                 decimal.Decimal   `json:"equity_value"`
	SharesOutstanding           decimal.Decimal   `json:"shares_outstanding"`
	ProjectedCashFlows          []decimal.Decimal `json:"projected_cash_flows"`
}

// Clone returns a deep copy of o.
func (o *DCFOutput) Clone() *DCFOutput {
	if o == nil {
		return nil
	}
	c := *o
	c.ProjectedCashFlows = append([]decimal.Decimal(nil), o.ProjectedCashFlows...)
	return &c
}

// SensitivityPoint is the fair value at one (growth, discount) grid coordinate.
// Rates are percentage-scale. Err is set when that combination cannot be valued.
type SensitivityPoint struct {
	GrowthRate   decimal.Decimal `json:"growth_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	FairValue    decimal.Decimal `json:"fair_value"`
	Err          string          `json:"error,omitempty"`
}

// SensitivityAnalysis is a base case plus one point per grid pair.
type SensitivityAnalysis struct {
	Ticker   string             `json:"ticker"`
	BaseCase *DCFOutput         `json:"base_case"`
	Results  []SensitivityPoint `json:"results"`
}
