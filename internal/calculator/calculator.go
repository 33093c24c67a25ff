// Package calculator implements the DCF chain: cash flow projection, present
// value and terminal value discounting, and aggregation into a fair value.
package calculator

import (
	"github.com/shopspring/decimal"

	"FairValue/internal/decmath"
	"FairValue/internal/model"
	"FairValue/internal/profiler"
	"FairValue/internal/validation"
)

// Calculator runs the DCF chain. Safe for concurrent use.
type Calculator struct {
	math *decmath.Math
	prof *profiler.Profiler
}

// New creates a Calculator. prof may be nil.
func New(m *decmath.Math, prof *profiler.Profiler) *Calculator {
	if m == nil {
		m = decmath.New(decmath.Options{Profiler: prof})
	}
	return &Calculator{math: m, prof: prof}
}

// Calculate values one company. in must already be validated; price may be
// zero when no quote is available, in which case no verdict is produced.
// Failures inside the chain are returned as a calculation error wrapping the
// arithmetic cause.
func (c *Calculator) Calculate(in *model.DCFInput, snap *model.FinancialSnapshot, price decimal.Decimal) (*model.DCFOutput, error) {
	if in == nil {
		return nil, model.Validation(validation.CodeInputRequired, "DCF input is required")
	}
	return profiler.Measure(c.prof, profiler.CalculationOp, func() (*model.DCFOutput, error) {
		out, err := c.calculate(in.WithDefaults(), snap, price)
		if err != nil {
			return nil, model.CalculationFailed(err)
		}
		return out, nil
	})
}

func (c *Calculator) calculate(in *model.DCFInput, snap *model.FinancialSnapshot, price decimal.Decimal) (*model.DCFOutput, error) {
	if snap == nil {
		return nil, model.Arithmetic(model.CodeInsufficientData, "no financial data for %s", in.Ticker)
	}
	fcf, ok := snap.LatestFreeCashFlow()
	if !ok || fcf.Sign() <= 0 {
		return nil, model.Arithmetic(model.CodeInsufficientData, "invalid or missing free cash flow data for %s", in.Ticker)
	}
	shares, ok := snap.LatestSharesOutstanding()
	if !ok || shares.Sign() <= 0 {
		return nil, model.Arithmetic(model.CodeInsufficientData, "invalid or missing shares outstanding data for %s", in.Ticker)
	}

	discount := in.DiscountFraction()
	terminal := in.TerminalGrowthFraction()

	flows, err := c.Project(fcf, in.GrowthFraction(), in.ProjectionYears)
	if err != nil {
		return nil, err
	}
	pv, err := c.PresentValue(flows, discount)
	if err != nil {
		return nil, err
	}
	tv, err := c.TerminalValue(flows[len(flows)-1], terminal, discount)
	if err != nil {
		return nil, err
	}
	pvtv, err := c.DiscountTerminalValue(tv, discount, in.ProjectionYears)
	if err != nil {
		return nil, err
	}

	return Aggregate(Components{
		Ticker:                      in.Ticker,
		ProjectedCashFlows:          flows,
		PresentValueOfCashFlows:     pv,
		TerminalValue:               tv,
		PresentValueOfTerminalValue: pvtv,
		Debt:                        snap.LatestDebt(),
		SharesOutstanding:           shares,
		CurrentPrice:                price,
	})
}

// Math exposes the shared decimal math instance.
func (c *Calculator) Math() *decmath.Math { return c.math }
