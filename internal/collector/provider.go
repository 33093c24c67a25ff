package collector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

// DefaultRateLimit caps outbound requests per second for HTTP sources.
const DefaultRateLimit = 5

// Provider supplies historical financials for a ticker.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (*model.FinancialSnapshot, error)
	Name() string
}

// PriceSource supplies the current market price for a ticker.
type PriceSource interface {
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	Name() string
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NormalizeTicker upper-cases and trims s and rejects anything that does not
// look like an exchange symbol.
func NormalizeTicker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if !tickerPattern.MatchString(t) {
		return "", model.DataUnavailable(model.CodeInvalidTicker, s, nil)
	}
	return t, nil
}

// checkUsable rejects snapshots the engine cannot value: the latest free cash
// flow and share count must both be present and positive.
func checkUsable(snap *model.FinancialSnapshot) error {
	if fcf, ok := snap.LatestFreeCashFlow(); !ok || !fcf.IsPositive() {
		return model.DataUnavailable(model.CodeInsufficientData, snap.Ticker,
			fmt.Errorf("free cash flow missing or not positive"))
	}
	if shares, ok := snap.LatestSharesOutstanding(); !ok || !shares.IsPositive() {
		return model.DataUnavailable(model.CodeInsufficientData, snap.Ticker,
			fmt.Errorf("shares outstanding missing or not positive"))
	}
	return nil
}
