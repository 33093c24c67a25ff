// Package recorder persists valuation inputs, outputs and performance reports.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

// InputRecord is a stored DCF input.
type InputRecord struct {
	ID        string
	Input     model.DCFInput
	CreatedAt time.Time
}

// OutputRecord is a stored DCF output linked to its input.
type OutputRecord struct {
	ID        string
	InputID   string
	Output    *model.DCFOutput
	CreatedAt time.Time
}

// HistoryEntry pairs an output with the input that produced it.
type HistoryEntry struct {
	Input  InputRecord
	Output OutputRecord
}

// Stats summarizes stored verdicts.
type Stats struct {
	Total          int
	Undervalued    int
	Overvalued     int
	FairValue      int
	UndervaluedPct float64
	OvervaluedPct  float64
}

// Recorder persists calculation history.
type Recorder interface {
	SaveInput(ctx context.Context, in *model.DCFInput) (string, error)
	SaveOutput(ctx context.Context, inputID string, out *model.DCFOutput) (*OutputRecord, error)
	// History lists calculations newest first. Empty ticker or owner matches all.
	History(ctx context.Context, ticker, owner string, limit int) ([]HistoryEntry, error)
	Stats(ctx context.Context, owner string) (*Stats, error)
	RecordPerformance(ctx context.Context, r *profiler.Report) error
	Close() error
}

func (s *Stats) add(v model.Verdict, n int) {
	s.Total += n
	switch v {
	case model.VerdictUndervalued:
		s.Undervalued += n
	case model.VerdictOvervalued:
		s.Overvalued += n
	case model.VerdictFairValue:
		s.FairValue += n
	}
}

func computeStats(s *Stats) *Stats {
	if s.Total > 0 {
		s.UndervaluedPct = float64(s.Undervalued) / float64(s.Total) * 100
		s.OvervaluedPct = float64(s.Overvalued) / float64(s.Total) * 100
	}
	return s
}

const historyColumns = `
	i.id, i.created_at, i.ticker, i.owner_id, i.discount_rate, i.growth_rate,
	i.terminal_growth_rate, i.projection_years,
	o.id, o.created_at, o.fair_value_per_share, o.current_price, o.valuation,
	o.upside_downside_percentage, o.terminal_value, o.present_value_of_terminal_value,
	o.present_value_of_cash_flows, o.enterprise_value, o.equity_value,
	o.shares_outstanding, o.projected_cash_flows`

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func questionPlaceholder(int) string { return "?" }

func historyQuery(ticker, owner string, limit int, ph placeholder) (string, []any) {
	query := "SELECT" + historyColumns + "\n\tFROM dcf_outputs o JOIN dcf_inputs i ON i.id = o.input_id"

	var where []string
	var args []any
	if ticker != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(ticker)))
		where = append(where, "i.ticker = "+ph(len(args)))
	}
	if owner != "" {
		args = append(args, owner)
		where = append(where, "i.owner_id = "+ph(len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Outputs saved within the same millisecond have no defined order.
	query += " ORDER BY o.created_at DESC, o.id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT " + ph(len(args))
	}
	return query, args
}

func statsQuery(owner string, ph placeholder) (string, []any) {
	query := "SELECT o.valuation, COUNT(*) FROM dcf_outputs o JOIN dcf_inputs i ON i.id = o.input_id"
	var args []any
	if owner != "" {
		args = append(args, owner)
		query += " WHERE i.owner_id = " + ph(1)
	}
	return query + " GROUP BY o.valuation", args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(rows rowScanner) (HistoryEntry, error) {
	var e HistoryEntry
	var inCreated, outCreated int64
	var owner sql.NullString
	var discount, growth, terminal string
	var fv, price, verdict, upside, tv, pvtv, pv, ev, equity, shares, flows sql.NullString
	err := rows.Scan(
		&e.Input.ID, &inCreated, &e.Input.Input.Ticker, &owner, &discount, &growth, &terminal,
		&e.Input.Input.ProjectionYears,
		&e.Output.ID, &outCreated, &fv, &price, &verdict, &upside, &tv, &pvtv, &pv, &ev, &equity, &shares, &flows,
	)
	if err != nil {
		return e, err
	}

	e.Input.CreatedAt = time.UnixMilli(inCreated)
	e.Input.Input.OwnerID = owner.String
	e.Input.Input.DiscountRate = nullDecimal(discount)
	e.Input.Input.GrowthRate = nullDecimal(growth)
	e.Input.Input.TerminalGrowthRate = nullDecimal(terminal)

	e.Output.InputID = e.Input.ID
	e.Output.CreatedAt = time.UnixMilli(outCreated)
	o := &model.DCFOutput{
		Ticker:                      e.Input.Input.Ticker,
		FairValuePerShare:           parseDecimal(fv),
		CurrentPrice:                parseDecimal(price),
		Verdict:                     model.Verdict(verdict.String),
		UpsideDownside:              parseDecimal(upside),
		TerminalValue:               parseDecimal(tv),
		PresentValueOfTerminalValue: parseDecimal(pvtv),
		PresentValueOfCashFlows:     parseDecimal(pv),
		EnterpriseValue:             parseDecimal(ev),
		EquityValue:                 parseDecimal(equity),
		SharesOutstanding:           parseDecimal(shares),
	}
	if flows.Valid && flows.String != "" {
		if err := json.Unmarshal([]byte(flows.String), &o.ProjectedCashFlows); err != nil {
			return e, fmt.Errorf("decode projected cash flows: %w", err)
		}
	}
	e.Output.Output = o
	return e, nil
}

func nullDecimal(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func parseDecimal(s sql.NullString) decimal.Decimal {
	if !s.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// performanceRow flattens rep into the performance_reports column order.
func performanceRow(rep *profiler.Report) []any {
	var count int64
	var avgMs, p95Ms, maxMs float64
	if c := rep.Calculation; c != nil {
		count = c.Count
		avgMs = float64(c.Mean) / float64(time.Millisecond)
		p95Ms = float64(c.P95) / float64(time.Millisecond)
		maxMs = float64(c.Max) / float64(time.Millisecond)
	}
	var cpuPct, memPct sql.NullFloat64
	if sys := rep.System; sys != nil {
		cpuPct = sql.NullFloat64{Float64: sys.CPUPercent, Valid: true}
		memPct = sql.NullFloat64{Float64: sys.MemUsedPercent, Valid: true}
	}
	alert := 0
	if rep.Alert {
		alert = 1
	}
	return []any{
		rep.Time.Unix(), rep.TotalOperations, rep.SlowOperations, rep.SlowPercentage,
		alert, count, avgMs, p95Ms, maxMs, cpuPct, memPct,
	}
}
