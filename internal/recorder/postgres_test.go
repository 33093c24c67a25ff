package recorder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FairValue/internal/model"
	"FairValue/internal/profiler"
)

func TestHistoryQuery_Placeholders(t *testing.T) {
	query, args := historyQuery(" aapl ", "alice", 10, dollarPlaceholder)
	assert.Contains(t, query, "WHERE i.ticker = $1 AND i.owner_id = $2")
	assert.Contains(t, query, "ORDER BY o.created_at DESC, o.id DESC LIMIT $3")
	assert.Equal(t, []any{"AAPL", "alice", 10}, args)

	query, args = historyQuery("", "", 0, questionPlaceholder)
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)

	query, args = statsQuery("bob", dollarPlaceholder)
	assert.Contains(t, query, "WHERE i.owner_id = $1 GROUP BY o.valuation")
	assert.Equal(t, []any{"bob"}, args)
}

func TestPerformanceRow(t *testing.T) {
	rep := &profiler.Report{
		Time:        time.Unix(1700000000, 0),
		Alert:       true,
		Calculation: &profiler.OperationSummary{Count: 3, Mean: 1500 * time.Microsecond},
		System:      &profiler.SystemStats{CPUPercent: 12.5, MemUsedPercent: 40},
	}
	row := performanceRow(rep)
	require.Len(t, row, 11)
	assert.Equal(t, int64(1700000000), row[0])
	assert.Equal(t, 1, row[4])
	assert.InDelta(t, 1.5, row[6], 1e-9)

	bare := performanceRow(&profiler.Report{Time: time.Unix(0, 0)})
	assert.Equal(t, 0, bare[4])
	assert.Equal(t, int64(0), bare[5])
}

// Runs against a real database only when FAIRVALUE_TEST_PG_DSN is set.
func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("FAIRVALUE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FAIRVALUE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	r, err := NewPostgresRecorder(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	owner := "pg-test-" + time.Now().Format("150405.000000")
	save(t, r, "AAPL", owner, model.VerdictUndervalued, "160.187573")
	save(t, r, "MSFT", owner, model.VerdictOvervalued, "2")

	hist, err := r.History(ctx, "", owner, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, owner, hist[0].Input.Input.OwnerID)

	aapl, err := r.History(ctx, "aapl", owner, 1)
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "160.187573", aapl[0].Output.Output.FairValuePerShare.String())

	s, err := r.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total)
	assert.InDelta(t, 50.0, s.UndervaluedPct, 1e-9)

	require.NoError(t, r.RecordPerformance(ctx, &profiler.Report{Time: time.Now()}))
}
