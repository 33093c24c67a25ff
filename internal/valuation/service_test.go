package valuation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FairValue/internal/cache"
	"FairValue/internal/calculator"
	"FairValue/internal/collector"
	"FairValue/internal/decmath"
	"FairValue/internal/model"
	"FairValue/internal/profiler"
	"FairValue/internal/recorder"
	"FairValue/internal/sensitivity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeProvider struct {
	calls atomic.Int32
	snap  *model.FinancialSnapshot
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(_ context.Context, ticker string) (*model.FinancialSnapshot, error) {
	f.calls.Add(1)
	t, err := collector.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	s := f.snap.Clone()
	s.Ticker = t
	return s, nil
}

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) Name() string { return "fake" }

func (f *fakePrices) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return f.price, f.err
}

type failingRecorder struct {
	*recorder.NoopRecorder
}

func (failingRecorder) SaveOutput(context.Context, string, *model.DCFOutput) (*recorder.OutputRecord, error) {
	return nil, model.Persistence("save_output", errors.New("disk full"))
}

type fixture struct {
	svc      *Service
	provider *fakeProvider
	prices   *fakePrices
	prof     *profiler.Profiler
	results  *cache.Results
}

func newFixture(t *testing.T, rec recorder.Recorder) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{snap: &model.FinancialSnapshot{
			FreeCashFlow:      []decimal.Decimal{dec("1000000")},
			SharesOutstanding: []decimal.Decimal{dec("100000")},
		}},
		prices: &fakePrices{price: dec("150")},
		prof:   profiler.New(profiler.Options{}, zerolog.Nop()),
	}
	calc := calculator.New(decmath.New(decmath.Options{}), f.prof)
	f.results = cache.NewResults(cache.Options{TTL: time.Hour, Capacity: 10}, zerolog.Nop())
	col := collector.New(f.provider, f.prices, zerolog.Nop())
	sens := sensitivity.New(calc, sensitivity.Options{Workers: 2}, zerolog.Nop())
	f.svc = New(col, calc, f.results, sens, rec, zerolog.Nop())
	return f
}

func input() *model.DCFInput {
	return model.NewDCFInput(" test ", dec("10"), dec("5"), dec("3"), 0)
}

func TestService_Calculate(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.NotEmpty(t, res.InputID)
	assert.Empty(t, res.Warnings)

	out := res.Output
	assert.Equal(t, "TEST", out.Ticker)
	assert.Len(t, out.ProjectedCashFlows, model.DefaultProjectionYears)
	assert.Equal(t, "160.187573", out.FairValuePerShare.StringFixed(6))
	assert.Equal(t, model.VerdictUndervalued, out.Verdict)
	assert.True(t, out.UpsideDownside.Equal(dec("6.791715")))

	s, ok := f.prof.Stats(profiler.CalculationOp)
	require.True(t, ok)
	assert.EqualValues(t, 1, s.Count)
}

func TestService_ValidationFailsBeforeCollecting(t *testing.T) {
	f := newFixture(t, nil)
	in := input()
	in.TerminalGrowthRate = decimal.NewNullDecimal(dec("12"))

	_, err := f.svc.Calculate(context.Background(), in)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Zero(t, f.provider.calls.Load())

	_, err = f.svc.Calculate(context.Background(), nil)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Zero(t, f.provider.calls.Load())
}

func TestService_CacheHitRederivesVerdict(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)

	f.prices.price = dec("200")
	res, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, model.VerdictOvervalued, res.Output.Verdict)
	assert.True(t, res.Output.CurrentPrice.Equal(dec("200")))
	assert.True(t, res.Output.UpsideDownside.Equal(dec("-19.906214")))

	s, _ := f.prof.Stats(profiler.CalculationOp)
	assert.EqualValues(t, 1, s.Count, "cache hit skips the calculator")
	assert.EqualValues(t, 1, f.results.Stats().Hits)

	f.svc.InvalidateResults()
	res, err = f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestService_CacheHitMatchesOriginal(t *testing.T) {
	f := newFixture(t, nil)
	first, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Output, second.Output)
	require.Len(t, second.Output.ProjectedCashFlows, len(first.Output.ProjectedCashFlows))
	for i, cf := range first.Output.ProjectedCashFlows {
		assert.True(t, cf.Equal(second.Output.ProjectedCashFlows[i]))
	}

	second.Output.ProjectedCashFlows[0] = dec("1")
	third, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.Equal(t, first.Output, third.Output, "callers cannot mutate the cached value")
}

func TestService_InsufficientRESTDataIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"fiscal_year":2023,"free_cash_flow":"-5000000","total_debt":"0","shares_outstanding":"1000000"}]`))
	}))
	defer srv.Close()

	prof := profiler.New(profiler.Options{}, zerolog.Nop())
	calc := calculator.New(decmath.New(decmath.Options{}), prof)
	col := collector.New(collector.NewRESTProvider(srv.URL, "", "", time.Second), &fakePrices{price: dec("10")}, zerolog.Nop())
	svc := New(col, calc, nil, nil, nil, zerolog.Nop())

	_, err := svc.Calculate(context.Background(), model.NewDCFInput("ACME", dec("10"), dec("5"), dec("3"), 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	assert.False(t, errors.Is(err, model.ErrCalculation))
	var me *model.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, model.CodeInsufficientData, me.Code)
	_, ok := prof.Stats(profiler.CalculationOp)
	assert.False(t, ok, "the calculator never runs")
}

func TestService_MissingPriceIsAWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.prices.price = decimal.Zero
	f.prices.err = errors.New("quote service down")

	res, err := f.svc.Calculate(context.Background(), input())
	require.NoError(t, err)
	assert.Empty(t, res.Output.Verdict)
	assert.True(t, res.Output.UpsideDownside.IsZero())
	assert.Contains(t, res.Warnings, PriceUnavailableWarning)
}

func TestService_ParameterWarning(t *testing.T) {
	f := newFixture(t, nil)
	in := input()
	in.DiscountRate = decimal.NewNullDecimal(dec("25"))

	res, err := f.svc.Calculate(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "outside typical range")
}

func TestService_CalculationFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.snap.FreeCashFlow = []decimal.Decimal{dec("-5")}

	_, err := f.svc.Calculate(context.Background(), input())
	assert.True(t, errors.Is(err, model.ErrCalculation))
	assert.True(t, errors.Is(err, model.ErrArithmetic))
}

func TestService_PersistenceFailureKeepsResult(t *testing.T) {
	f := newFixture(t, failingRecorder{recorder.NewNoopRecorder()})

	res, err := f.svc.Calculate(context.Background(), input())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPersistence))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.InputID)
	assert.Equal(t, "160.187573", res.Output.FairValuePerShare.StringFixed(6))
}

func TestService_HistoryWithSQLite(t *testing.T) {
	rec, err := recorder.NewSQLiteRecorder(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()
	f := newFixture(t, rec)

	in := input()
	in.OwnerID = "alice"
	_, err = f.svc.Calculate(context.Background(), in)
	require.NoError(t, err)

	hist, err := f.svc.History(context.Background(), "TEST", "alice", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "160.187573", hist[0].Output.Output.FairValuePerShare.StringFixed(6))

	stats, err := f.svc.Stats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Undervalued)
	assert.InDelta(t, 100.0, stats.UndervaluedPct, 1e-9)
}

func TestService_Sensitivity(t *testing.T) {
	f := newFixture(t, nil)
	growth := []decimal.Decimal{dec("0.05"), dec("0.15")}
	discount := []decimal.Decimal{dec("0.10"), dec("0.02")}

	sa, err := f.svc.Sensitivity(context.Background(), input(), growth, discount)
	require.NoError(t, err)
	assert.Equal(t, "TEST", sa.Ticker)
	require.Len(t, sa.Results, 4)
	assert.Equal(t, "160.187573", sa.Results[0].FairValue.StringFixed(6))
	assert.Empty(t, sa.Results[0].Err)
	assert.NotEmpty(t, sa.Results[1].Err, "terminal rate above discount cannot be valued")

	_, err = f.svc.Sensitivity(context.Background(), input(), nil, discount)
	assert.True(t, errors.Is(err, model.ErrValidation))
}
