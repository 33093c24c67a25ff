// Package sensitivity evaluates the fair value over a grid of growth and
// discount rates.
package sensitivity

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"FairValue/internal/calculator"
	"FairValue/internal/decmath"
	"FairValue/internal/model"
	"FairValue/internal/validation"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds concurrent grid evaluations. Zero uses GOMAXPROCS.
	Workers int
}

// Engine runs grid analyses on top of a Calculator.
type Engine struct {
	calc    *calculator.Calculator
	workers int
	log     zerolog.Logger
}

// New creates an Engine.
func New(calc *calculator.Calculator, opts Options, log zerolog.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		calc:    calc,
		workers: opts.Workers,
		log:     log.With().Str("component", "sensitivity").Logger(),
	}
}

// Run values base and then every (growth, discount) pair of the grids.
// Grid rates are fractions (0.05 for 5%). Point i*len(discountGrid)+j holds
// growthGrid[i] × discountGrid[j]; a pair that cannot be valued carries Err
// instead of a fair value. base must already be validated.
func (e *Engine) Run(ctx context.Context, base *model.DCFInput, snap *model.FinancialSnapshot, price decimal.Decimal, growthGrid, discountGrid []decimal.Decimal) (*model.SensitivityAnalysis, error) {
	if len(growthGrid) == 0 || len(discountGrid) == 0 {
		return nil, model.Validation("empty_grid", "growth and discount grids must not be empty")
	}
	if base == nil {
		return nil, model.Validation(validation.CodeInputRequired, "DCF input is required")
	}

	baseCase, err := e.calc.Calculate(base, snap, price)
	if err != nil {
		return nil, err
	}

	points := make([]model.SensitivityPoint, len(growthGrid)*len(discountGrid))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, growth := range growthGrid {
		for j, discount := range discountGrid {
			idx := i*len(discountGrid) + j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				points[idx] = e.point(base, snap, price, growth, discount)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, p := range points {
		if p.Err != "" {
			failed++
		}
	}
	e.log.Debug().
		Str("ticker", baseCase.Ticker).
		Int("points", len(points)).
		Int("failed", failed).
		Msg("Sensitivity grid evaluated")

	return &model.SensitivityAnalysis{
		Ticker:   baseCase.Ticker,
		BaseCase: baseCase,
		Results:  points,
	}, nil
}

func (e *Engine) point(base *model.DCFInput, snap *model.FinancialSnapshot, price, growth, discount decimal.Decimal) model.SensitivityPoint {
	growthPct := decmath.FractionToPercent(growth)
	discountPct := decmath.FractionToPercent(discount)
	p := model.SensitivityPoint{GrowthRate: growthPct, DiscountRate: discountPct}

	out, err := e.calc.Calculate(base.WithRates(growthPct, discountPct), snap, price)
	if err != nil {
		p.Err = err.Error()
		return p
	}
	p.FairValue = out.FairValuePerShare
	return p
}
