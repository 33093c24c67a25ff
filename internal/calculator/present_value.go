package calculator

import (
	"github.com/shopspring/decimal"

	"FairValue/internal/decmath"
	"FairValue/internal/model"
)

var one = decimal.NewFromInt(1)

// PresentValue discounts cashFlows[i] by (1+discount)^(i+1) and sums the terms.
// Each term is divided at the working scale.
func (c *Calculator) PresentValue(cashFlows []decimal.Decimal, discount decimal.Decimal) (decimal.Decimal, error) {
	if len(cashFlows) == 0 {
		return decimal.Zero, model.Arithmetic("no_cash_flows", "no cash flows to discount")
	}
	factor := one.Add(discount)
	if factor.Sign() <= 0 {
		return decimal.Zero, model.Arithmetic("non_positive_denominator", "discount factor 1+%s is not positive", discount)
	}

	total := decimal.Zero
	for i, cf := range cashFlows {
		total = total.Add(decmath.DivRound(cf, c.math.Power(factor, i+1)))
	}
	return total, nil
}

// TerminalValue is the Gordon growth value of the cash flow after last:
// last × (1+terminalGrowth) / (discount − terminalGrowth).
func (c *Calculator) TerminalValue(last, terminalGrowth, discount decimal.Decimal) (decimal.Decimal, error) {
	spread := discount.Sub(terminalGrowth)
	if spread.Sign() <= 0 {
		return decimal.Zero, model.Arithmetic("non_positive_denominator",
			"discount rate %s must exceed terminal growth rate %s", discount, terminalGrowth)
	}
	return decmath.DivRound(last.Mul(one.Add(terminalGrowth)), spread), nil
}

// DiscountTerminalValue brings tv back to present over years periods.
func (c *Calculator) DiscountTerminalValue(tv, discount decimal.Decimal, years int) (decimal.Decimal, error) {
	factor := one.Add(discount)
	if factor.Sign() <= 0 {
		return decimal.Zero, model.Arithmetic("non_positive_denominator", "discount factor 1+%s is not positive", discount)
	}
	return decmath.DivRound(tv, c.math.Power(factor, years)), nil
}
