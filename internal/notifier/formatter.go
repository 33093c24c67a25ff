package notifier

import (
	"fmt"
	"strings"
	"time"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

// Revaluation is one ticker's outcome in a watch-list run.
type Revaluation struct {
	Ticker   string
	Output   *model.DCFOutput
	Warnings []string
	Err      error
}

// FormatValuation formats one valuation for a chat message.
func FormatValuation(out *model.DCFOutput, warnings []string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> DCF valuation\n\n", out.Ticker))
	b.WriteString(fmt.Sprintf("Fair value: %s\n", out.FairValuePerShare.StringFixed(2)))
	if out.CurrentPrice.IsPositive() {
		b.WriteString(fmt.Sprintf("Current price: %s\n", out.CurrentPrice.StringFixed(2)))
		b.WriteString(fmt.Sprintf("Verdict: <b>%s</b> (%s%%)\n", out.Verdict, signed(out.UpsideDownside.StringFixed(1))))
	} else {
		b.WriteString("Current price: n/a\n")
	}
	b.WriteString(fmt.Sprintf("Enterprise value: %s\n", out.EnterpriseValue.StringFixed(0)))
	b.WriteString(fmt.Sprintf("Equity value: %s\n", out.EquityValue.StringFixed(0)))

	for _, w := range warnings {
		b.WriteString(fmt.Sprintf("\n⚠️ %s", w))
	}
	return b.String()
}

// FormatRevaluation summarizes a watch-list run, one line per ticker.
func FormatRevaluation(at time.Time, results []Revaluation) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Watch-list revaluation</b> | %s\n\n", at.Format("2006-01-02")))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			b.WriteString(fmt.Sprintf("❌ %s: %v\n", r.Ticker, r.Err))
			continue
		}
		line := fmt.Sprintf("%s: fair %s", r.Ticker, r.Output.FairValuePerShare.StringFixed(2))
		if r.Output.Verdict != "" {
			line += fmt.Sprintf(" vs %s, %s (%s%%)",
				r.Output.CurrentPrice.StringFixed(2), r.Output.Verdict, signed(r.Output.UpsideDownside.StringFixed(1)))
		}
		b.WriteString(line + "\n")
	}
	if failed > 0 {
		b.WriteString(fmt.Sprintf("\n%d of %d tickers failed", failed, len(results)))
	}
	return b.String()
}

// FormatPerformance formats a monitor report as an alert.
func FormatPerformance(r *profiler.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🐢 <b>DCF performance degraded</b> | %s\n\n", r.Time.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Slow operations: %d of %d (%.1f%%)\n", r.SlowOperations, r.TotalOperations, r.SlowPercentage))
	if c := r.Calculation; c != nil {
		b.WriteString(fmt.Sprintf("Calculation p95: %s | max: %s\n", c.P95, c.Max))
	}
	return b.String()
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
