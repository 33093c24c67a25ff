package collector

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
	"golang.org/x/time/rate"

	"FairValue/internal/cache"
	"FairValue/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func codeOf(err error) string {
	var e *model.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestNormalizeTicker(t *testing.T) {
	got, err := NormalizeTicker(" brk.b ")
	require.NoError(t, err)
	assert.Equal(t, "BRK.B", got)

	for _, bad := range []string{"", "   ", "1ABC", "TOO-LONG-TICKER", "A B"} {
		_, err := NormalizeTicker(bad)
		assert.True(t, errors.Is(err, model.ErrDataUnavailable), bad)
		assert.Equal(t, model.CodeInvalidTicker, codeOf(err), bad)
	}
}

func TestStandInProvider_KnownCompany(t *testing.T) {
	p := NewStandInProvider()
	snap, err := p.Fetch(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", snap.Ticker)
	assert.Equal(t, "standin", snap.Source)
	require.Len(t, snap.FreeCashFlow, 4)

	// oldest period is revenue × margin, each newer one grows by 8%
	assert.True(t, snap.FreeCashFlow[3].Equal(dec("94638720000")))
	assert.True(t, snap.FreeCashFlow[0].Equal(dec("94638720000").Mul(dec("1.259712"))))
	assert.True(t, snap.FreeCashFlow[0].GreaterThan(snap.FreeCashFlow[1]))

	debt := snap.LatestDebt()
	assert.True(t, debt.Equal(dec("111100000000")))
	shares, ok := snap.LatestSharesOutstanding()
	require.True(t, ok)
	assert.True(t, shares.Equal(dec("15728700000")))
}

func TestStandInProvider_UnknownTickerIsDeterministic(t *testing.T) {
	p := NewStandInProvider()
	a, err := p.Fetch(context.Background(), "ZZZZ")
	require.NoError(t, err)
	b, err := p.Fetch(context.Background(), "zzzz")
	require.NoError(t, err)

	for i := range a.FreeCashFlow {
		assert.True(t, a.FreeCashFlow[i].Equal(b.FreeCashFlow[i]))
		assert.True(t, a.FreeCashFlow[i].IsPositive())
	}
	shares, _ := a.LatestSharesOutstanding()
	assert.True(t, shares.IsPositive())

	_, err = p.Fetch(context.Background(), "not a ticker")
	assert.Equal(t, model.CodeInvalidTicker, codeOf(err))
}

func TestStaticPriceSource(t *testing.T) {
	s := NewStaticPriceSource(map[string]decimal.Decimal{"msft": dec("400")})

	p, err := s.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("227.52")))

	p, err = s.CurrentPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("400")), "override wins")

	p1, err := s.CurrentPrice(context.Background(), "QQQQ")
	require.NoError(t, err)
	p2, _ := s.CurrentPrice(context.Background(), "QQQQ")
	assert.True(t, p1.Equal(p2))
	assert.True(t, p1.GreaterThanOrEqual(dec("40")))
	assert.True(t, p1.LessThan(dec("260")))
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Fetch(_ context.Context, ticker string) (*model.FinancialSnapshot, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &model.FinancialSnapshot{
		Ticker:            ticker,
		FreeCashFlow:      []decimal.Decimal{dec("100")},
		SharesOutstanding: []decimal.Decimal{dec("10")},
	}, nil
}

func TestCachingProvider(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := &countingProvider{}
	p := NewCachingProvider(next, cache.Options{Now: func() time.Time { return now }}, zerolog.Nop())

	a, err := p.Fetch(context.Background(), "aapl")
	require.NoError(t, err)
	a.FreeCashFlow[0] = decimal.Zero

	b, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next.calls.Load())
	assert.True(t, b.FreeCashFlow[0].Equal(dec("100")), "cached snapshot is isolated from callers")

	now = now.Add(DefaultSnapshotTTL + time.Second)
	_, err = p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls.Load())

	p.Invalidate("aapl")
	_, _ = p.Fetch(context.Background(), "AAPL")
	assert.EqualValues(t, 3, next.calls.Load())
	assert.Equal(t, DefaultSnapshotCapacity, p.Store().Stats().Capacity)
}

func TestCachingProvider_ErrorsAreNotCached(t *testing.T) {
	next := &countingProvider{err: model.DataUnavailable(model.CodeTemporarilyUnavailable, "X", errors.New("down"))}
	p := NewCachingProvider(next, cache.Options{}, zerolog.Nop())

	_, err := p.Fetch(context.Background(), "X")
	assert.Error(t, err)
	_, err = p.Fetch(context.Background(), "X")
	assert.Error(t, err)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestYahooPriceSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/AAPL":
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":227.52},"timestamp":[1],"indicators":{"quote":[{"close":[227.1]}]}}],"error":null}}`))
		case "/v8/finance/chart/BRK-B":
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"BRK-B"},"timestamp":[1,2,3],"indicators":{"quote":[{"close":[410.5,411.25,null]}]}}],"error":null}}`))
		case "/v8/finance/chart/FAIL":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	y := NewYahooPriceSource("", time.Second)
	y.BaseURL = srv.URL

	p, err := y.CurrentPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("227.52")))

	p, err = y.CurrentPrice(context.Background(), "BRK.B")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("411.25")), "falls back to the last non-null close")

	_, err = y.CurrentPrice(context.Background(), "NOPE")
	assert.Equal(t, model.CodeInvalidTicker, codeOf(err))

	_, err = y.CurrentPrice(context.Background(), "FAIL")
	assert.Equal(t, model.CodeTemporarilyUnavailable, codeOf(err))
}

func TestRESTProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "MSFT":
			_, _ = w.Write([]byte(`[
				{"fiscal_year":2022,"free_cash_flow":"65000000000","total_debt":"47000000000","shares_outstanding":"7450000000"},
				{"fiscal_year":2023,"free_cash_flow":"59475000000","total_debt":"47032000000","shares_outstanding":"7430000000"}
			]`))
		case "EMPTY":
			_, _ = w.Write([]byte(`[]`))
		case "BURN":
			_, _ = w.Write([]byte(`[{"fiscal_year":2023,"free_cash_flow":"-5000000","total_debt":"0","shares_outstanding":"1000000"}]`))
		case "NOSHARES":
			_, _ = w.Write([]byte(`[{"fiscal_year":2023,"free_cash_flow":"5000000","total_debt":"0","shares_outstanding":"0"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewRESTProvider(srv.URL, "secret", "", time.Second)
	snap, err := p.Fetch(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, "rest", snap.Source)
	fcf, ok := snap.LatestFreeCashFlow()
	require.True(t, ok)
	assert.True(t, fcf.Equal(dec("59475000000")), "most recent fiscal year first")
	assert.True(t, snap.LatestDebt().Equal(dec("47032000000")))

	_, err = p.Fetch(context.Background(), "EMPTY")
	assert.Equal(t, model.CodeInsufficientData, codeOf(err))

	_, err = p.Fetch(context.Background(), "BURN")
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	assert.Equal(t, model.CodeInsufficientData, codeOf(err))

	_, err = p.Fetch(context.Background(), "NOSHARES")
	assert.Equal(t, model.CodeInsufficientData, codeOf(err))

	_, err = p.Fetch(context.Background(), "GONE")
	assert.Equal(t, model.CodeInvalidTicker, codeOf(err))

	unauth := NewRESTProvider(srv.URL, "", "", time.Second)
	_, err = unauth.Fetch(context.Background(), "MSFT")
	assert.Equal(t, model.CodeTemporarilyUnavailable, codeOf(err))
}

type failingPrices struct{}

func (failingPrices) Name() string { return "failing" }

func (failingPrices) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("quote service down")
}

func TestCollector_Collect(t *testing.T) {
	c := New(NewStandInProvider(), NewStaticPriceSource(nil), zerolog.Nop())
	md, err := c.Collect(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, md.Snapshot)
	assert.True(t, md.Price.Equal(dec("227.52")))
	assert.NoError(t, md.PriceErr)

	c = New(NewStandInProvider(), failingPrices{}, zerolog.Nop())
	md, err = c.Collect(context.Background(), "AAPL")
	require.NoError(t, err, "a missing price is not fatal")
	assert.True(t, md.Price.IsZero())
	assert.Error(t, md.PriceErr)

	c = New(&countingProvider{err: errors.New("boom")}, nil, zerolog.Nop())
	_, err = c.Collect(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, model.ErrDataUnavailable))
	assert.Equal(t, model.CodeTemporarilyUnavailable, codeOf(err))
}

func TestRESTProvider_RateLimitHonorsContext(t *testing.T) {
	p := NewRESTProvider("http://127.0.0.1:0", "", "", time.Second)
	p.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	p.Limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, "AAPL")
	assert.Equal(t, model.CodeTemporarilyUnavailable, codeOf(err))
}
