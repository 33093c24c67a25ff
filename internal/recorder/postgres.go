package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

// PostgresRecorder persists calculation history to PostgreSQL.
// The schema matches SQLiteRecorder so history can move between the two.
type PostgresRecorder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	now  func() time.Time
}

// NewPostgresRecorder connects to dsn and runs migrations.
func NewPostgresRecorder(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresRecorder, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{
		pool: pool,
		log:  log.With().Str("component", "recorder").Logger(),
		now:  time.Now,
	}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("host", config.ConnConfig.Host).Str("database", config.ConnConfig.Database).Msg("Postgres recorder opened")
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dcf_inputs (
			id                   TEXT PRIMARY KEY,
			created_at           BIGINT NOT NULL,
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
			created_at                      BIGINT NOT NULL,
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
			id              BIGSERIAL PRIMARY KEY,
			timestamp       BIGINT NOT NULL,
			total_ops       BIGINT,
			slow_ops        BIGINT,
			slow_pct        DOUBLE PRECISION,
			alert           INTEGER,
			calc_count      BIGINT,
			calc_avg_ms     DOUBLE PRECISION,
			calc_p95_ms     DOUBLE PRECISION,
			calc_max_ms     DOUBLE PRECISION,
			cpu_pct         DOUBLE PRECISION,
			mem_pct         DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_perf_ts ON performance_reports(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *PostgresRecorder) SaveInput(ctx context.Context, in *model.DCFInput) (string, error) {
	if in == nil {
		return "", model.Persistence("save_input", fmt.Errorf("nil input"))
	}
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO dcf_inputs
		(id, created_at, ticker, owner_id, discount_rate, growth_rate, terminal_growth_rate, projection_years)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, r.now().UnixMilli(), in.Ticker, in.OwnerID,
		in.DiscountRate.Decimal.String(), in.GrowthRate.Decimal.String(), in.TerminalGrowthRate.Decimal.String(),
		in.ProjectionYears,
	)
	if err != nil {
		return "", model.Persistence("save_input", err)
	}
	return id, nil
}

func (r *PostgresRecorder) SaveOutput(ctx context.Context, inputID string, out *model.DCFOutput) (*OutputRecord, error) {
	if out == nil {
		return nil, model.Persistence("save_output", fmt.Errorf("nil output"))
	}
	flows, err := json.Marshal(out.ProjectedCashFlows)
	if err != nil {
		return nil, model.Persistence("save_output", err)
	}

	rec := &OutputRecord{
		ID:        uuid.NewString(),
		InputID:   inputID,
		Output:    out.Clone(),
		CreatedAt: r.now(),
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO dcf_outputs
		(id, input_id, created_at, ticker, fair_value_per_share, current_price, valuation,
		 upside_downside_percentage, terminal_value, present_value_of_terminal_value,
		 present_value_of_cash_flows, enterprise_value, equity_value, shares_outstanding,
		 projected_cash_flows)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
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

func (r *PostgresRecorder) History(ctx context.Context, ticker, owner string, limit int) ([]HistoryEntry, error) {
	query, args := historyQuery(ticker, owner, limit, dollarPlaceholder)
	rows, err := r.pool.Query(ctx, query, args...)
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

func (r *PostgresRecorder) Stats(ctx context.Context, owner string) (*Stats, error) {
	query, args := statsQuery(owner, dollarPlaceholder)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.Persistence("stats", err)
	}
	defer rows.Close()

	s := &Stats{}
	for rows.Next() {
		var verdict sql.NullString
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, model.Persistence("stats", err)
		}
		s.add(model.Verdict(verdict.String), int(n))
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("stats", err)
	}
	return computeStats(s), nil
}

func (r *PostgresRecorder) RecordPerformance(ctx context.Context, rep *profiler.Report) error {
	row := performanceRow(rep)
	_, err := r.pool.Exec(ctx, `INSERT INTO performance_reports
		(timestamp, total_ops, slow_ops, slow_pct, alert, calc_count, calc_avg_ms, calc_p95_ms, calc_max_ms, cpu_pct, mem_pct)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, row...)
	if err != nil {
		return model.Persistence("record_performance", err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	r.log.Info().Msg("Closing Postgres recorder")
	r.pool.Close()
	return nil
}
