// Package decmath provides exact decimal arithmetic for valuation work:
// memoized integer powers, memoized growth projections and the rounding
// conventions used across the engine.
package decmath

import (
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"FairValue/internal/profiler"
)

const (
	// WorkingScale is the number of fractional digits kept by intermediate divisions.
	WorkingScale = 10
	// FinancialScale is used for per-share values and percentages.
	FinancialScale = 6
	// CurrencyScale is used for published aggregates.
	CurrencyScale = 2

	DefaultPowerCacheSize      = 1000
	DefaultProjectionCacheSize = 200
)

var hundred = decimal.NewFromInt(100)

// Options configures a Math instance.
type Options struct {
	PowerCacheSize      int
	ProjectionCacheSize int
	Profiler            *profiler.Profiler
}

// Math memoizes powers and projections. Safe for concurrent use.
type Math struct {
	mu          sync.RWMutex
	powers      map[string]decimal.Decimal
	projections map[string][]decimal.Decimal
	powerCap    int
	projCap     int
	prof        *profiler.Profiler
}

// New creates a Math with empty caches.
func New(opts Options) *Math {
	if opts.PowerCacheSize <= 0 {
		opts.PowerCacheSize = DefaultPowerCacheSize
	}
	if opts.ProjectionCacheSize <= 0 {
		opts.ProjectionCacheSize = DefaultProjectionCacheSize
	}
	return &Math{
		powers:      make(map[string]decimal.Decimal),
		projections: make(map[string][]decimal.Decimal),
		powerCap:    opts.PowerCacheSize,
		projCap:     opts.ProjectionCacheSize,
		prof:        opts.Profiler,
	}
}

// Power returns base^exponent exactly. Negative exponents are treated as zero.
func (m *Math) Power(base decimal.Decimal, exponent int) decimal.Decimal {
	switch {
	case exponent <= 0:
		return decimal.NewFromInt(1)
	case exponent == 1:
		return base
	case base.IsZero():
		return decimal.Zero
	case base.Equal(decimal.NewFromInt(1)):
		return base
	}

	key := base.String() + "^" + strconv.Itoa(exponent)
	m.mu.RLock()
	v, ok := m.powers[key]
	m.mu.RUnlock()
	if ok {
		return v
	}

	span := m.prof.Start("pow")
	v = pow(base, exponent)
	span.End()

	m.mu.Lock()
	if len(m.powers) >= m.powerCap {
		m.powers = make(map[string]decimal.Decimal)
	}
	m.powers[key] = v
	m.mu.Unlock()
	return v
}

func pow(base decimal.Decimal, exponent int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exponent > 0 {
		if exponent&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exponent >>= 1
	}
	return result
}

// ProjectCashFlows returns base × (1+growth)^i for i = 1..years.
// The returned slice is never shared with the cache.
func (m *Math) ProjectCashFlows(base, growth decimal.Decimal, years int) []decimal.Decimal {
	if years <= 0 {
		return []decimal.Decimal{}
	}
	key := base.String() + "_" + growth.String() + "_" + strconv.Itoa(years)
	m.mu.RLock()
	cached, ok := m.projections[key]
	m.mu.RUnlock()
	if ok {
		return append([]decimal.Decimal(nil), cached...)
	}

	span := m.prof.Start("project_cash_flows")
	factor := decimal.NewFromInt(1).Add(growth)
	flows := make([]decimal.Decimal, years)
	for i := range flows {
		flows[i] = base.Mul(m.Power(factor, i+1))
	}
	span.End()

	m.mu.Lock()
	if len(m.projections) >= m.projCap {
		m.projections = make(map[string][]decimal.Decimal)
	}
	m.projections[key] = append([]decimal.Decimal(nil), flows...)
	m.mu.Unlock()
	return flows
}

// Stats returns the current cache sizes.
func (m *Math) Stats() (powers, projections int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.powers), len(m.projections)
}

// CacheStats reports both memo tables to the monitor.
func (m *Math) CacheStats() []profiler.CacheStats {
	powers, projections := m.Stats()
	return []profiler.CacheStats{
		{Name: "power", Entries: powers, Capacity: m.powerCap},
		{Name: "projection", Entries: projections, Capacity: m.projCap},
	}
}

// Clear empties both caches.
func (m *Math) Clear() {
	m.mu.Lock()
	m.powers = make(map[string]decimal.Decimal)
	m.projections = make(map[string][]decimal.Decimal)
	m.mu.Unlock()
}

// DivRound divides at WorkingScale, rounding half-up.
func DivRound(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, WorkingScale)
}

// RoundFinancial rounds to FinancialScale digits, half-up.
func RoundFinancial(d decimal.Decimal) decimal.Decimal {
	return d.Round(FinancialScale)
}

// RoundCurrency rounds to CurrencyScale digits, half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// PercentToFraction turns 10 into 0.1.
func PercentToFraction(pct decimal.Decimal) decimal.Decimal {
	return pct.DivRound(hundred, WorkingScale)
}

// FractionToPercent turns 0.1 into 10.
func FractionToPercent(f decimal.Decimal) decimal.Decimal {
	return f.Mul(hundred)
}
