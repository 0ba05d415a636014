package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

const quoteSummaryModules = "summaryDetail,defaultKeyStatistics,financialData,price"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	client *resty.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher. An empty baseURL uses
// the public host.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &YahooFetcher{client: client}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooValue is the {raw, fmt} pair quoteSummary uses for numbers. An empty
// object leaves Raw nil.
type yahooValue struct {
	Raw *float64 `json:"raw"`
}

type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE    yahooValue `json:"trailingPE"`
				DividendYield yahooValue `json:"dividendYield"`
				MarketCap     yahooValue `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				PriceToBook yahooValue `json:"priceToBook"`
				TrailingEPS yahooValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				ReturnOnEquity yahooValue `json:"returnOnEquity"`
				DebtToEquity   yahooValue `json:"debtToEquity"`
			} `json:"financialData"`
			Price struct {
				MarketCap yahooValue `json:"marketCap"`
			} `json:"price"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(values []interface{}, i int) interface{} {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func (f *YahooFetcher) get(ctx context.Context, path, symbol string, query map[string]string, out interface{}) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("yahoo: unknown symbol %s: %w", symbol, model.ErrInsufficientData)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

// FetchPriceSeries downloads the daily chart for period.
func (f *YahooFetcher) FetchPriceSeries(ctx context.Context, ticker, period string) (*model.PriceSeries, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	symbol := NormalizeTicker(ticker)

	var chart yahooChart
	err := f.get(ctx, "/v8/finance/chart/{symbol}", symbol, map[string]string{
		"interval": "1d",
		"range":    period,
	}, &chart)
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: no data returned: %w", symbol, model.ErrInsufficientData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	byDate := make(map[time.Time]model.Bar, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := toFloat(at(quote.Close, i))
		if c == 0 {
			continue // skip null bars (holidays etc.)
		}
		// Bars are keyed by the exchange-local calendar day.
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		byDate[day] = model.Bar{
			Date:   day,
			Open:   toFloat(at(quote.Open, i)),
			High:   toFloat(at(quote.High, i)),
			Low:    toFloat(at(quote.Low, i)),
			Close:  c,
			Volume: toFloat(at(quote.Volume, i)),
		}
	}

	bars := make([]model.Bar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return &model.PriceSeries{Ticker: symbol, Bars: bars}, nil
}

// FetchFundamentals reads the quoteSummary modules carrying valuation ratios.
func (f *YahooFetcher) FetchFundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	symbol := NormalizeTicker(ticker)

	var summary yahooQuoteSummary
	err := f.get(ctx, "/v10/finance/quoteSummary/{symbol}", symbol, map[string]string{
		"modules": quoteSummaryModules,
	}, &summary)
	if err != nil {
		return nil, err
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: no fundamentals: %w", symbol, model.ErrInsufficientData)
	}

	r := summary.QuoteSummary.Result[0]
	marketCap := r.Price.MarketCap.Raw
	if marketCap == nil {
		marketCap = r.SummaryDetail.MarketCap.Raw
	}
	return &model.Fundamentals{
		Ticker:        symbol,
		PER:           r.SummaryDetail.TrailingPE.Raw,
		PBV:           r.DefaultKeyStatistics.PriceToBook.Raw,
		DividendYield: r.SummaryDetail.DividendYield.Raw,
		ROE:           r.FinancialData.ReturnOnEquity.Raw,
		DER:           r.FinancialData.DebtToEquity.Raw,
		EPS:           r.DefaultKeyStatistics.TrailingEPS.Raw,
		MarketCap:     marketCap,
	}, nil
}
