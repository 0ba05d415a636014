package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurokishi/stock-analysis-id/internal/analyzer"
	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/forecast"
	"github.com/kurokishi/stock-analysis-id/internal/fund"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
)

var first = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(ticker string, n int, base float64) *model.PriceSeries {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := base + 0.25*float64(i) + 1.75*float64(i%2)
		bars[i] = model.Bar{Date: first.AddDate(0, 0, i), Close: c}
	}
	return &model.PriceSeries{Ticker: ticker, Bars: bars}
}

func newTestServer(t *testing.T) (*Server, recorder.Recorder) {
	t.Helper()
	fetcher := &collector.MockFetcher{
		Series: map[string]*model.PriceSeries{
			"BBCA.JK": series("BBCA.JK", 260, 9000),
			"BBRI.JK": series("BBRI.JK", 260, 4000),
			"NEWS.JK": series("NEWS.JK", 10, 500),
		},
		Funds: map[string]*model.Fundamentals{
			"BBCA.JK": {Ticker: "BBCA.JK", PER: model.Float(8), PBV: model.Float(0.9), DividendYield: model.Float(0.06), ROE: model.Float(0.2)},
			"BBRI.JK": {Ticker: "BBRI.JK", PER: model.Float(9), PBV: model.Float(1.0), DividendYield: model.Float(0.05)},
		},
	}
	dir := t.TempDir()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	c := collector.NewCollector(fetcher, "2y", zerolog.Nop())
	a := analyzer.New(c, forecast.NewEngine(forecast.Config{}), rec, analyzer.Config{Model: model.ModelNaive, Horizon: 5}, zerolog.Nop())
	fm, err := fund.NewManager(filepath.Join(dir, "portfolio.json"), 1_000_000)
	require.NoError(t, err)

	return New(Config{
		Analyzer:  a,
		Fund:      fm,
		Recorder:  rec,
		Watchlist: []string{"BBCA", "BBRI"},
		Log:       zerolog.Nop(),
	}), rec
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAnalysis(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/stocks/bbca/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report model.Report
	decode(t, w, &report)
	assert.Equal(t, "BBCA.JK", report.Ticker)
	assert.Equal(t, model.TriggerAPI, report.Trigger)
	assert.Equal(t, model.Buy, report.Action)
	require.NotNil(t, report.Forecast)

	w = do(t, s, http.MethodGet, "/api/stocks/XXXX/analysis", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestForecast(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/stocks/BBRI/forecast?model=naive&days=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp forecastResponse
	decode(t, w, &resp)
	assert.Len(t, resp.Forecast.Point, 7)
	assert.Equal(t, model.ModelNaive, resp.Forecast.ModelKind)
	assert.Equal(t, 4000+0.25*259+1.75, resp.LastPrice)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown model", "/api/stocks/BBRI/forecast?model=lstm", http.StatusBadRequest},
		{"days not a number", "/api/stocks/BBRI/forecast?days=many", http.StatusBadRequest},
		{"horizon out of range", "/api/stocks/BBRI/forecast?model=naive&days=0", http.StatusBadRequest},
		{"short history", "/api/stocks/NEWS/forecast?model=additive&days=5", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, s, http.MethodGet, tt.path, "").Code)
		})
	}
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/stocks/BBCA/analysis", "").Code)
	}

	w := do(t, s, http.MethodGet, "/api/stocks/bbca/history?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Reports []recorder.ReportRow `json:"reports"`
	}
	decode(t, w, &body)
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "BBCA.JK", body.Reports[0].Ticker)

	w = do(t, s, http.MethodGet, "/api/stocks/TLKM/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reports":[]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/stocks/BBCA/history?limit=0", "").Code)
}

func TestSimulation(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/simulations", `{"ticker":"BBCA","entry_date":"2024-02-01","capital":10000000}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp simulationResponse
	decode(t, w, &resp)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, 10_000_000.0, resp.Snapshot.EntryCapital)
	assert.NotNil(t, resp.Risk)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"missing ticker", `{"entry_date":"2024-02-01","capital":1000000}`, http.StatusBadRequest},
		{"bad date", `{"ticker":"BBCA","entry_date":"01/02/2024","capital":1000000}`, http.StatusBadRequest},
		{"capital too small", `{"ticker":"BBCA","entry_date":"2024-02-01","capital":1000}`, http.StatusBadRequest},
		{"entry after data", `{"ticker":"BBCA","entry_date":"2030-01-01","capital":1000000}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, s, http.MethodPost, "/api/simulations", tt.body).Code)
		})
	}
}

func TestAllocation(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/allocations", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp allocationResponse
	decode(t, w, &resp)
	assert.Equal(t, 1_000_000.0, resp.Allocation.Capital)
	require.Len(t, resp.Allocation.Lines, 2)
	assert.InDelta(t, 1_000_000, resp.Allocation.Total(), 1e-6)

	w = do(t, s, http.MethodPost, "/api/allocations", `{"tickers":["BBCA","XXXX"],"capital":500000}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	require.Len(t, resp.Allocation.Lines, 1)
	assert.Contains(t, resp.Failed, "XXXX.JK")

	w = do(t, s, http.MethodPost, "/api/allocations", `{"capital":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortfolioAndCompare(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.fund.Add(model.Holding{Ticker: "BBCA", Lots: 2, EntryDate: first}))

	w := do(t, s, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report model.PortfolioReport
	decode(t, w, &report)
	require.Len(t, report.Holdings, 1)
	assert.InDelta(t, 200*9000.0, report.TotalCapital, 1e-6)

	w = do(t, s, http.MethodGet, "/api/compare?tickers=BBCA,%20BBRI", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cmp model.Comparison
	decode(t, w, &cmp)
	assert.Equal(t, []string{"BBCA.JK", "BBRI.JK"}, cmp.Tickers)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/compare?tickers=BBCA", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", model.ErrInvalidParameter), http.StatusBadRequest},
		{fmt.Errorf("x: %w", model.ErrNoDataForDate), http.StatusNotFound},
		{fmt.Errorf("x: %w", model.ErrInsufficientData), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", model.ErrModelFittingFailed), http.StatusUnprocessableEntity},
		{errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
