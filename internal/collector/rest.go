package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"FairValue/internal/model"
)

// RESTProvider fetches annual financials from a JSON REST service.
type RESTProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
	now     func() time.Time
}

// NewRESTProvider creates a provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		now:     time.Now,
	}
}

func (f *RESTProvider) Name() string { return "rest" }

// restPeriod is the expected JSON shape of one fiscal year.
type restPeriod struct {
	FiscalYear        int             `json:"fiscal_year"`
	FreeCashFlow      decimal.Decimal `json:"free_cash_flow"`
	TotalDebt         decimal.Decimal `json:"total_debt"`
	SharesOutstanding decimal.Decimal `json:"shares_outstanding"`
}

// Fetch returns every period the service reports, most recent first.
func (f *RESTProvider) Fetch(ctx context.Context, ticker string) (*model.FinancialSnapshot, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, t, fmt.Errorf("rate limit: %w", err))
	}

	endpoint := fmt.Sprintf("%s/api/v1/financials?symbol=%s", f.BaseURL, url.QueryEscape(t))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, t, err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, t, fmt.Errorf("fetch financials: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.DataUnavailable(model.CodeInvalidTicker, t, nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, t,
			fmt.Errorf("fetch financials: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var periods []restPeriod
	if err := json.NewDecoder(resp.Body).Decode(&periods); err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, t, fmt.Errorf("decode financials: %w", err))
	}
	if len(periods) == 0 {
		return nil, model.DataUnavailable(model.CodeInsufficientData, t, nil)
	}

	// Ensure most recent first
	sort.Slice(periods, func(i, j int) bool { return periods[i].FiscalYear > periods[j].FiscalYear })

	snap := &model.FinancialSnapshot{
		Ticker:            t,
		FreeCashFlow:      make([]decimal.Decimal, len(periods)),
		TotalDebt:         make([]decimal.Decimal, len(periods)),
		SharesOutstanding: make([]decimal.Decimal, len(periods)),
		Source:            f.Name(),
		FetchedAt:         f.now(),
	}
	for i, p := range periods {
		snap.FreeCashFlow[i] = p.FreeCashFlow
		snap.TotalDebt[i] = p.TotalDebt
		snap.SharesOutstanding[i] = p.SharesOutstanding
	}
	if err := checkUsable(snap); err != nil {
		return nil, err
	}
	return snap, nil
}
