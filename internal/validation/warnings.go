package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

var (
	growthWarnLow     = decimal.NewFromInt(-50)
	growthWarnHigh    = decimal.NewFromInt(50)
	discountWarnLow   = decimal.NewFromInt(8)
	discountWarnHigh  = decimal.NewFromInt(20)
	terminalWarnHigh  = decimal.NewFromInt(4)
	fairValueWarnHigh = decimal.NewFromInt(10000)
	ten               = decimal.NewFromInt(10)
	tenth             = decimal.RequireFromString("0.1")
)

// ParameterWarning flags plausible-but-unusual assumptions. Empty means none.
func ParameterWarning(in *model.DCFInput) string {
	if in == nil {
		return ""
	}
	if g := in.GrowthRate; g.Valid && (g.Decimal.LessThan(growthWarnLow) || g.Decimal.GreaterThan(growthWarnHigh)) {
		return fmt.Sprintf("Warning: Growth rate of %s%% may be unrealistic for sustained periods", g.Decimal)
	}
	if d := in.DiscountRate; d.Valid && (d.Decimal.LessThan(discountWarnLow) || d.Decimal.GreaterThan(discountWarnHigh)) {
		return fmt.Sprintf("Warning: Discount rate of %s%% is outside typical range (8-20%%)", d.Decimal)
	}
	if tg := in.TerminalGrowthRate; tg.Valid && tg.Decimal.GreaterThan(terminalWarnHigh) {
		return fmt.Sprintf("Warning: Terminal growth rate of %s%% may be too optimistic (consider 2-4%%)", tg.Decimal)
	}
	return ""
}

// ReasonablenessWarning flags a fair value that looks out of line with the
// market price. Empty means none.
func ReasonablenessWarning(out *model.DCFOutput) string {
	if out == nil {
		return ""
	}
	fv := out.FairValuePerShare
	if fv.GreaterThan(fairValueWarnHigh) {
		return "Warning: Fair value per share seems unusually high"
	}
	price := out.CurrentPrice
	if price.Sign() <= 0 {
		return ""
	}
	if fv.GreaterThan(price.Mul(ten)) {
		return "Warning: Fair value is more than 10x current price - please verify assumptions"
	}
	if fv.LessThan(price.Mul(tenth)) {
		return "Warning: Fair value is less than 10% of current price - please verify assumptions"
	}
	return ""
}
