package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultProjectionYears is used when an input leaves ProjectionYears at zero.
const DefaultProjectionYears = 5

// fractionScale is the number of fractional digits kept when a percentage
// rate is converted to a fraction.
const fractionScale = 10

var hundred = decimal.NewFromInt(100)

// DCFInput holds the economic assumptions for one valuation.
// Rates are percentage-scale (10 means 10%). A rate with Valid=false is missing.
type DCFInput struct {
	Ticker             string              `json:"ticker"`
	DiscountRate       decimal.NullDecimal `json:"discount_rate"`
	GrowthRate         decimal.NullDecimal `json:"growth_rate"`
	TerminalGrowthRate decimal.NullDecimal `json:"terminal_growth_rate"`
	ProjectionYears    int                 `json:"projection_years"`
	OwnerID            string              `json:"owner_id,omitempty"`
}

// NewDCFInput builds an input from percentage-scale rates.
func NewDCFInput(ticker string, discount, growth, terminal decimal.Decimal, years int) *DCFInput {
	return &DCFInput{
		Ticker:             ticker,
		DiscountRate:       decimal.NewNullDecimal(discount),
		GrowthRate:         decimal.NewNullDecimal(growth),
		TerminalGrowthRate: decimal.NewNullDecimal(terminal),
		ProjectionYears:    years,
	}
}

// WithDefaults returns a copy with the ticker normalized to upper case and
// the default horizon applied.
func (in DCFInput) WithDefaults() *DCFInput {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if in.ProjectionYears == 0 {
		in.ProjectionYears = DefaultProjectionYears
	}
	return &in
}

// WithRates returns a copy with discount and growth replaced (percentage scale).
func (in DCFInput) WithRates(growth, discount decimal.Decimal) *DCFInput {
	in.GrowthRate = decimal.NewNullDecimal(growth)
	in.DiscountRate = decimal.NewNullDecimal(discount)
	return &in
}

// DiscountFraction returns the discount rate as a fraction (0.10 for 10%).
func (in *DCFInput) DiscountFraction() decimal.Decimal {
	return toFraction(in.DiscountRate)
}

// GrowthFraction returns the growth rate as a fraction.
func (in *DCFInput) GrowthFraction() decimal.Decimal {
	return toFraction(in.GrowthRate)
}

// TerminalGrowthFraction returns the terminal growth rate as a fraction.
func (in *DCFInput) TerminalGrowthFraction() decimal.Decimal {
	return toFraction(in.TerminalGrowthRate)
}

func toFraction(rate decimal.NullDecimal) decimal.Decimal {
	if !rate.Valid {
		return decimal.Zero
	}
	return rate.Decimal.DivRound(hundred, fractionScale)
}
