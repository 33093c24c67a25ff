package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

// SQLiteRecorder persists calculation history to a SQLite database.
// Decimals are stored as TEXT so no precision is lost.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	// WAL mode so readers are not blocked while a valuation is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{
		db:  db,
		log: log.With().Str("component", "recorder").Logger(),
		now: time.Now,
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("SQLite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dcf_inputs (
			id                   TEXT PRIMARY KEY,
			created_at           INTEGER NOT NULL,
			ticker               TEXT NOT NULL,
			owner_id             TEXT,
			discount_rate        TEXT NOT NULL,
			growth_rate          TEXT NOT NULL,
			terminal_growth_rate TEXT NOT NULL,
			projection_years     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inputs_ticker ON dcf_inputs(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_inputs_owner ON dcf_inputs(owner_id)`,

		`CREATE TABLE IF NOT EXISTS dcf_outputs (
			id                              TEXT PRIMARY KEY,
			input_id                        TEXT NOT NULL REFERENCES dcf_inputs(id),
			created_at                      INTEGER NOT NULL,
			ticker                          TEXT NOT NULL,
			fair_value_per_share            TEXT NOT NULL,
			current_price                   TEXT,
			valuation                       TEXT,
			upside_downside_percentage      TEXT,
			terminal_value                  TEXT,
			present_value_of_terminal_value TEXT,
			present_value_of_cash_flows     TEXT,
			enterprise_value                TEXT,
			equity_value                    TEXT,
			shares_outstanding              TEXT,
			projected_cash_flows            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_ts ON dcf_outputs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_input ON dcf_outputs(input_id)`,

		`CREATE TABLE IF NOT EXISTS performance_reports (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			total_ops       INTEGER,
			slow_ops        INTEGER,
			slow_pct        REAL,
			alert           INTEGER,
			calc_count      INTEGER,
			calc_avg_ms     REAL,
			calc_p95_ms     REAL,
			calc_max_ms     REAL,
			cpu_pct         REAL,
			mem_pct         REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_perf_ts ON performance_reports(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) SaveInput(ctx context.Context, in *model.DCFInput) (string, error) {
	if in == nil {
		return "", model.Persistence("save_input", fmt.Errorf("nil input"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `INSERT INTO dcf_inputs
		(id, created_at, ticker, owner_id, discount_rate, growth_rate, terminal_growth_rate, projection_years)
		VALUES (?,?,?,?,?,?,?,?)`,
		id, r.now().UnixMilli(), in.Ticker, in.OwnerID,
		in.DiscountRate.Decimal.String(), in.GrowthRate.Decimal.String(), in.TerminalGrowthRate.Decimal.String(),
		in.ProjectionYears,
	)
	if err != nil {
		return "", model.Persistence("save_input", err)
	}
	return id, nil
}

func (r *SQLiteRecorder) SaveOutput(ctx context.Context, inputID string, out *model.DCFOutput) (*OutputRecord, error) {
	if out == nil {
		return nil, model.Persistence("save_output", fmt.Errorf("nil output"))
	}
	flows, err := json.Marshal(out.ProjectedCashFlows)
	if err != nil {
		return nil, model.Persistence("save_output", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &OutputRecord{
		ID:        uuid.NewString(),
		InputID:   inputID,
		Output:    out.Clone(),
		CreatedAt: r.now(),
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO dcf_outputs
		(id, input_id, created_at, ticker, fair_value_per_share, current_price, valuation,
		 upside_downside_percentage, terminal_value, present_value_of_terminal_value,
		 present_value_of_cash_flows, enterprise_value, equity_value, shares_outstanding,
		 projected_cash_flows)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, inputID, rec.CreatedAt.UnixMilli(), out.Ticker,
		out.FairValuePerShare.String(), out.CurrentPrice.String(), string(out.Verdict),
		out.UpsideDownside.String(), out.TerminalValue.String(), out.PresentValueOfTerminalValue.String(),
		out.PresentValueOfCashFlows.String(), out.EnterpriseValue.String(), out.EquityValue.String(),
		out.SharesOutstanding.String(), string(flows),
	)
	if err != nil {
		return nil, model.Persistence("save_output", err)
	}
	return rec, nil
}

func (r *SQLiteRecorder) History(ctx context.Context, ticker, owner string, limit int) ([]HistoryEntry, error) {
	query, args := historyQuery(ticker, owner, limit, questionPlaceholder)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("history", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, model.Persistence("history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("history", err)
	}
	return out, nil
}

func (r *SQLiteRecorder) Stats(ctx context.Context, owner string) (*Stats, error) {
	query, args := statsQuery(owner, questionPlaceholder)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("stats", err)
	}
	defer rows.Close()

	s := &Stats{}
	for rows.Next() {
		var verdict sql.NullString
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, model.Persistence("stats", err)
		}
		s.add(model.Verdict(verdict.String), n)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("stats", err)
	}
	return computeStats(s), nil
}

func (r *SQLiteRecorder) RecordPerformance(ctx context.Context, rep *profiler.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO performance_reports
		(timestamp, total_ops, slow_ops, slow_pct, alert, calc_count, calc_avg_ms, calc_p95_ms, calc_max_ms, cpu_pct, mem_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`, performanceRow(rep)...)
	if err != nil {
		return model.Persistence("record_performance", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("Closing SQLite recorder")
	return r.db.Close()
}
