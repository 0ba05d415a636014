package notifier

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp1.234.567", FormatRupiah(1234567.4))
	assert.Equal(t, "Rp1.000", FormatRupiah(999.5))
	assert.Equal(t, "Rp0", FormatRupiah(0))
	assert.Equal(t, "-Rp250.000", FormatRupiah(-250000))
	assert.Equal(t, "-", FormatRupiah(math.NaN()))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	chunks := SplitMessage("aaaa\nbbbb\ncccc\n", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, chunks)

	long := strings.Repeat("x", 25)
	chunks = SplitMessage("hi\n"+long, 10)
	assert.Equal(t, "hi\n", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
	assert.Equal(t, "hi\n"+long, strings.Join(chunks, ""))

	emoji := strings.Repeat("📈", 7)
	chunks = SplitMessage(emoji, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
		assert.True(t, utf8.ValidString(c), "chunk %q", c)
	}
	assert.Equal(t, emoji, strings.Join(chunks, ""))
}

func TestFormatAnalysisReport(t *testing.T) {
	r := &model.Report{
		Ticker:   "BBCA.JK",
		Snapshot: model.Snapshot{Close: 9150, SMA20: 9000, SMA50: 8900, SMA200: math.NaN(), RSI14: 88, High52w: 10000, Low52w: 8000, Position52: 0.575},
		Verdict: model.Verdict{Kind: model.Undervalued, Score: 3, SubScores: []model.FactorScore{
			{Name: "PER", Value: 10, RawScore: 2, Commentary: "di bawah industri"},
		}},
		Action:         model.Add,
		Held:           true,
		Forecast:       &model.ForecastResult{ModelKind: model.ModelARIMA, Order: "ARIMA(1,1,0)", Point: []float64{9200, 9400}},
		Outlook:        &model.ForecastOutlook{Outlook: model.Bullish, ChangePct: 2.7},
		WarningMessage: "⚠️ RSI > 85",
	}
	out := FormatAnalysisReport(r)
	assert.Contains(t, out, "Analisis BBCA.JK")
	assert.Contains(t, out, "Harga: Rp9.150")
	assert.Contains(t, out, "SMA200: -")
	assert.Contains(t, out, "UNDERVALUED")
	assert.Contains(t, out, "PER: 10.00 → +2")
	assert.Contains(t, out, "TAMBAH (dalam portofolio)")
	assert.Contains(t, out, "ARIMA(1,1,0)): Rp9.400 (+2.7%, BULLISH)")
	assert.Contains(t, out, "RSI > 85")

	r.Forecast, r.Outlook = nil, nil
	r.ForecastError = "insufficient data"
	assert.Contains(t, FormatAnalysisReport(r), "Prediksi tidak tersedia: insufficient data")
}

func TestFormatPortfolioReport(t *testing.T) {
	p := &model.PortfolioReport{
		Holdings: []model.HoldingReport{
			{
				Holding:  model.Holding{Ticker: "BBRI.JK", Lots: 10},
				Snapshot: &model.PortfolioSnapshot{EntryPrice: 4000, EntryCapital: 4_000_000, Shares: 1000, CurrentValue: 4_400_000, Profit: 400_000, ProfitPct: 10},
				Risk:     &model.RiskMetrics{AnnualizedVolatility: 0.2345, MaxDrawdownPct: -103, PeakToTroughDrawdownPct: -8, SharpeRatio: model.Float(1.234)},
			},
			{
				Holding:  model.Holding{Ticker: "TLKM.JK", Lots: 1},
				Snapshot: &model.PortfolioSnapshot{EntryCapital: 300_000, Shares: 100, CurrentValue: 300_000},
			},
			{Holding: model.Holding{Ticker: "GOTO.JK", Lots: 1}, Err: "no data for date"},
		},
		TotalCapital: 4_300_000,
		TotalValue:   4_700_000,
		TotalProfit:  400_000,
		ProfitPct:    9.3,
	}
	out := FormatPortfolioReport(p)
	assert.Contains(t, out, "Jumlah Saham: 1000.00 lembar")
	assert.Contains(t, out, "Nilai Sekarang: Rp4.400.000")
	assert.Contains(t, out, "Keuntungan: Rp400.000 (10.00%)")
	assert.Contains(t, out, "Volatilitas Tahunan: 23.45%")
	assert.Contains(t, out, "Sharpe Ratio: 1.23")
	assert.Contains(t, out, "Data tidak cukup untuk menghitung metrik risiko")
	assert.Contains(t, out, "⚠️ no data for date")
	assert.Contains(t, out, "Total Nilai: Rp4.700.000")

	assert.Contains(t, FormatPortfolioReport(&model.PortfolioReport{}), "Portofolio kosong")
}

func TestFormatForecast_SamplesLongPaths(t *testing.T) {
	n := 40
	r := &model.ForecastResult{Ticker: "ASII.JK", ModelKind: model.ModelAdditive}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		r.Dates = append(r.Dates, day.AddDate(0, 0, i))
		r.Point = append(r.Point, 5000+float64(i))
		r.Lower = append(r.Lower, 4900)
		r.Upper = append(r.Upper, 5100+float64(i))
	}
	r.Backtest = &model.BacktestMetrics{MAE: 10, RMSE: 12, MAPE: model.Float(1.5), TrainSize: 80, TestSize: 20}

	out := FormatForecast(r, 5000)
	assert.Contains(t, out, "Prophet (aditif), 40 hari")
	assert.Contains(t, out, "2024-02-09") // last date is always kept
	assert.Contains(t, out, "MAPE: 1.50%")
	table := out[strings.Index(out, "<pre>"):strings.Index(out, "</pre>")]
	assert.Equal(t, maxForecastRows+1, strings.Count(table, "\n")) // header + rows

	assert.Equal(t, []int{0, 1, 2}, sampleRows(3, 15))
	rows := sampleRows(40, 15)
	assert.Len(t, rows, 15)
	assert.Equal(t, 39, rows[14])
}

func TestFormatAllocationAndComparison(t *testing.T) {
	out := FormatAllocation(model.Allocation{Capital: 1_000_000, Lines: []model.AllocationLine{
		{Ticker: "BBCA.JK", Score: 3, Proportion: 0.6, Amount: 600_000},
		{Ticker: "BBRI.JK", Score: 2, Proportion: 0.4, Amount: 400_000},
	}})
	assert.Contains(t, out, "BBCA.JK</b>: Rp600.000 (60.0%")
	assert.Contains(t, out, "Total: Rp1.000.000")
	assert.Contains(t, FormatAllocation(model.Allocation{Capital: 1}), "Tidak ada saham")

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cmp := &model.Comparison{
		Tickers:     []string{"BBCA.JK", "TLKM.JK"},
		Dates:       []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)},
		ReturnPct:   map[string]float64{"BBCA.JK": -2, "TLKM.JK": 5},
		Correlation: [][]float64{{1, 0.42}, {0.42, 1}},
	}
	out = FormatComparison(cmp)
	assert.Less(t, strings.Index(out, "TLKM.JK: +5.00%"), strings.Index(out, "BBCA.JK: -2.00%"))
	assert.Contains(t, out, "0.42")
}

func TestFormatDailySummary(t *testing.T) {
	out := FormatDailySummary([]*model.Report{
		{Ticker: "BBCA.JK", Snapshot: model.Snapshot{Close: 9000}, Verdict: model.Verdict{Kind: model.FairlyValued}, Action: model.Hold},
	}, map[string]string{"XXXX.JK": "insufficient data"})
	assert.Contains(t, out, "BBCA.JK</b> Rp9.000 | FAIRLY_VALUED | TAHAN")
	assert.Contains(t, out, "XXXX.JK: insufficient data")
}

type telegramStub struct {
	mu       sync.Mutex
	sent     []string
	failures int32
	updates  int32
}

func (s *telegramStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
			if atomic.AddInt32(&s.failures, -1) >= 0 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"ok":false,"description":"slow down"}`))
				return
			}
			var payload map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "42", payload["chat_id"])
			assert.Equal(t, "HTML", payload["parse_mode"])
			s.mu.Lock()
			s.sent = append(s.sent, payload["text"])
			s.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if atomic.AddInt32(&s.updates, 1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":"/analyze bbca","chat":{"id":99}}},
					{"update_id":8,"message":{"text":" /analyze bbca ","chat":{"id":42}}}
				]}`))
				return
			}
			assert.Equal(t, "9", r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (s *telegramStub) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func newStubNotifier(t *testing.T, stub *telegramStub) *TelegramNotifier {
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", srv.URL, "", zerolog.Nop())
	n.Backoff = time.Millisecond
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	stub := &telegramStub{}
	n := newStubNotifier(t, stub)
	require.NoError(t, n.Send(context.Background(), "<b>halo</b>"))
	assert.Equal(t, []string{"<b>halo</b>"}, stub.messages())
}

func TestTelegramNotifier_SendWithRetry(t *testing.T) {
	stub := &telegramStub{failures: 2}
	n := newStubNotifier(t, stub)
	require.NoError(t, n.SendWithRetry(context.Background(), "retry", 3))
	assert.Equal(t, []string{"retry"}, stub.messages())

	stub = &telegramStub{failures: 10}
	n = newStubNotifier(t, stub)
	err := n.SendWithRetry(context.Background(), "never", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestTelegramNotifier_Polling(t *testing.T) {
	stub := &telegramStub{}
	n := newStubNotifier(t, stub)
	PollTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			commands <- cmd
			return "ok: " + cmd
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(stub.messages()) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	close(commands)
	var got []string
	for c := range commands {
		got = append(got, c)
	}
	assert.Equal(t, []string{"/analyze bbca"}, got)
	assert.Equal(t, []string{"ok: /analyze bbca"}, stub.messages())
}
