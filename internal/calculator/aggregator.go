package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"FairValue/internal/decmath"
	"FairValue/internal/model"
	"FairValue/internal/validation"
)

var (
	hundred       = decimal.NewFromInt(100)
	fairTolerance = decimal.RequireFromString("0.05")
)

// Components are the intermediate results combined into a DCFOutput.
type Components struct {
	Ticker                      string
	ProjectedCashFlows          []decimal.Decimal
	PresentValueOfCashFlows     decimal.Decimal
	TerminalValue               decimal.Decimal
	PresentValueOfTerminalValue decimal.Decimal
	Debt                        decimal.Decimal
	SharesOutstanding           decimal.Decimal
	CurrentPrice                decimal.Decimal // zero when unknown
}

// Aggregate turns components into the published output.
func Aggregate(c Components) (*model.DCFOutput, error) {
	if c.SharesOutstanding.Sign() <= 0 {
		return nil, model.Arithmetic("non_positive_shares", "shares outstanding must be positive, got %s", c.SharesOutstanding)
	}

	ev := c.PresentValueOfCashFlows.Add(c.PresentValueOfTerminalValue)
	equity := ev.Sub(c.Debt)
	fv := equity.DivRound(c.SharesOutstanding, decmath.FinancialScale)
	if fv.Sign() <= 0 {
		return nil, model.Arithmetic("non_positive_fair_value", "fair value per share %s is not positive", fv)
	}

	out := &model.DCFOutput{
		Ticker:                      c.Ticker,
		FairValuePerShare:           fv,
		CurrentPrice:                c.CurrentPrice,
		TerminalValue:               decmath.RoundCurrency(c.TerminalValue),
		PresentValueOfTerminalValue: decmath.RoundCurrency(c.PresentValueOfTerminalValue),
		PresentValueOfCashFlows:     decmath.RoundCurrency(c.PresentValueOfCashFlows),
		EnterpriseValue:             decmath.RoundCurrency(ev),
		EquityValue:                 decmath.RoundCurrency(equity),
		SharesOutstanding:           c.SharesOutstanding,
		ProjectedCashFlows:          append([]decimal.Decimal(nil), c.ProjectedCashFlows...),
	}
	if err := checkMagnitudes(out); err != nil {
		return nil, err
	}

	if c.CurrentPrice.Sign() > 0 {
		out.Verdict = Verdict(fv, c.CurrentPrice)
		out.UpsideDownside = UpsideDownside(fv, c.CurrentPrice)
	}
	return out, nil
}

func checkMagnitudes(out *model.DCFOutput) error {
	checks := []struct {
		name  string
		value decimal.Decimal
		limit validation.DigitLimit
	}{
		{"fair value per share", out.FairValuePerShare, validation.PerShareDigits},
		{"terminal value", out.TerminalValue, validation.AggregateDigits},
		{"present value of terminal value", out.PresentValueOfTerminalValue, validation.AggregateDigits},
		{"present value of cash flows", out.PresentValueOfCashFlows, validation.AggregateDigits},
		{"enterprise value", out.EnterpriseValue, validation.AggregateDigits},
		{"equity value", out.EquityValue, validation.AggregateDigits},
	}
	for _, ch := range checks {
		if err := validation.CheckDigits(ch.name, ch.value, ch.limit); err != nil {
			var e *model.Error
			if errors.As(err, &e) {
				return model.Arithmetic("value_out_of_range", "%s is unreasonably large: %s", ch.name, e.Message)
			}
			return err
		}
	}
	return nil
}

// Verdict compares fairValue with price using a 5% tolerance band.
// It returns "" when price is not positive.
func Verdict(fairValue, price decimal.Decimal) model.Verdict {
	if price.Sign() <= 0 {
		return ""
	}
	tolerance := price.Mul(fairTolerance)
	switch {
	case fairValue.Sub(price).Abs().LessThanOrEqual(tolerance):
		return model.VerdictFairValue
	case fairValue.GreaterThan(price):
		return model.VerdictUndervalued
	default:
		return model.VerdictOvervalued
	}
}

// UpsideDownside is (fairValue − price) / price as a percentage at 6 dp.
func UpsideDownside(fairValue, price decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 {
		return decimal.Zero
	}
	return fairValue.Sub(price).Mul(hundred).DivRound(price, decmath.FinancialScale)
}
