package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"FairValue/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooPriceSource quotes current prices from the Yahoo Finance chart API.
type YahooPriceSource struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	Limiter   *rate.Limiter
}

// NewYahooPriceSource creates a Yahoo price source with optional proxy support.
func NewYahooPriceSource(proxyURL string, timeout time.Duration) *YahooPriceSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooPriceSource{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		BaseURL: defaultYahooBaseURL,
		Limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		SymbolMap: map[string]string{
			"BRK.B": "BRK-B",
			"BRK.A": "BRK-A",
			"BF.B":  "BF-B",
		},
	}
}

func (f *YahooPriceSource) Name() string { return "yahoo" }

func (f *YahooPriceSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string          `json:"symbol"`
				Currency           string          `json:"currency"`
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []decimal.Decimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CurrentPrice returns the regular market price, falling back to the last
// non-null close of the day.
func (f *YahooPriceSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return decimal.Zero, err
	}
	chart, err := f.fetchChart(ctx, t)
	if err != nil {
		return decimal.Zero, err
	}

	result := chart.Chart.Result[0]
	if result.Meta.RegularMarketPrice.IsPositive() {
		return result.Meta.RegularMarketPrice, nil
	}
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i].IsPositive() {
				return closes[i], nil
			}
		}
	}
	return decimal.Zero, model.DataUnavailable(model.CodeTemporarilyUnavailable, t, fmt.Errorf("yahoo: no price data"))
}

func (f *YahooPriceSource) fetchChart(ctx context.Context, ticker string) (*yahooChart, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("rate limit: %w", err))
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d",
		f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("yahoo fetch: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("yahoo read body: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, model.DataUnavailable(model.CodeInvalidTicker, ticker, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker,
			fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("yahoo decode: %w", err))
	}
	if chart.Chart.Error != nil {
		return nil, model.DataUnavailable(model.CodeInvalidTicker, ticker, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, model.DataUnavailable(model.CodeTemporarilyUnavailable, ticker, fmt.Errorf("yahoo: no data returned"))
	}
	return &chart, nil
}
