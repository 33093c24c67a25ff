package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

const (
	DefaultResultTTL      = 30 * time.Minute
	DefaultResultCapacity = 500
)

// Results memoizes full DCF calculations by fingerprint.
type Results struct {
	*Store[*model.DCFOutput]
}

// NewResults creates a result cache. Zero options take the defaults.
func NewResults(opts Options, log zerolog.Logger) *Results {
	if opts.TTL <= 0 {
		opts.TTL = DefaultResultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultResultCapacity
	}
	return &Results{Store: NewStore("results", opts, (*model.DCFOutput).Clone, log)}
}

// Fingerprint identifies a calculation by every field that affects its
// outcome. Decimals are normalized so 10 and 10.00 produce the same key.
func Fingerprint(ticker string, discount, growth, terminal decimal.Decimal, years int, baseFCF, debt, shares decimal.Decimal) string {
	return fmt.Sprintf("dcf_%s_%s_%s_%s_%d_%s_%s_%s",
		strings.ToUpper(strings.TrimSpace(ticker)),
		discount.String(), growth.String(), terminal.String(),
		years,
		baseFCF.String(), debt.String(), shares.String())
}

// FingerprintFor builds the fingerprint of in valued against snap.
// in should already have defaults applied.
func FingerprintFor(in *model.DCFInput, snap *model.FinancialSnapshot) string {
	fcf, _ := snap.LatestFreeCashFlow()
	shares, _ := snap.LatestSharesOutstanding()
	return Fingerprint(in.Ticker,
		in.DiscountRate.Decimal, in.GrowthRate.Decimal, in.TerminalGrowthRate.Decimal,
		in.ProjectionYears,
		fcf, snap.LatestDebt(), shares)
}
