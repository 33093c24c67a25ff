package calculator

import (
	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

// Project returns base × (1+growth)^i for years i = 1..years.
// growth is a fraction; negative growth is not clamped.
func (c *Calculator) Project(base, growth decimal.Decimal, years int) ([]decimal.Decimal, error) {
	if years < 1 {
		return nil, model.Arithmetic("invalid_horizon", "projection horizon must be at least one year, got %d", years)
	}
	return c.math.ProjectCashFlows(base, growth, years), nil
}
