package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// maxForecastRows bounds the forecast table; longer paths are sampled.
const maxForecastRows = 15

var rupiah = money.NewFormatter(0, ",", ".", "Rp", "$1")

// FormatRupiah renders an amount as whole Rupiah, e.g. Rp1.234.567.
func FormatRupiah(v float64) string {
	if !model.Defined(v) {
		return "-"
	}
	return rupiah.Format(int64(math.Round(v)))
}

func num(v float64, format string) string {
	if !model.Defined(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

// ActionLabel translates an action for display.
func ActionLabel(a model.Action) string {
	switch a {
	case model.Buy:
		return "BELI"
	case model.Add:
		return "TAMBAH"
	case model.Sell:
		return "JUAL"
	default:
		return "TAHAN"
	}
}

func actionIcon(a model.Action) string {
	switch a {
	case model.Buy, model.Add:
		return "🟢"
	case model.Sell:
		return "🔴"
	default:
		return "⚪"
	}
}

func modelLabel(r *model.ForecastResult) string {
	if r.Order != "" {
		return r.Order
	}
	switch r.ModelKind {
	case model.ModelAdditive:
		return "Prophet (aditif)"
	case model.ModelNaive:
		return "Naif"
	default:
		return strings.ToUpper(string(r.ModelKind))
	}
}

// FormatAnalysisReport formats a full single-ticker report.
func FormatAnalysisReport(r *model.Report) string {
	var b strings.Builder
	s := r.Snapshot

	b.WriteString(fmt.Sprintf("📊 <b>Analisis %s</b> | %s\n\n", html.EscapeString(r.Ticker), time.Now().Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("Harga: %s\n", FormatRupiah(s.Close)))
	b.WriteString(fmt.Sprintf("SMA20: %s | SMA50: %s | SMA200: %s\n",
		FormatRupiah(s.SMA20), FormatRupiah(s.SMA50), FormatRupiah(s.SMA200)))
	b.WriteString(fmt.Sprintf("RSI(14): %s | MACD: %s / sinyal %s\n",
		num(s.RSI14, "%.1f"), num(s.MACD, "%.2f"), num(s.MACDSignal, "%.2f")))
	if model.Defined(s.High52w) {
		b.WriteString(fmt.Sprintf("Rentang 52 minggu: %s - %s (posisi %s)\n",
			FormatRupiah(s.Low52w), FormatRupiah(s.High52w), num(s.Position52*100, "%.0f%%")))
	}

	b.WriteString(fmt.Sprintf("\n💡 <b>Valuasi:</b> %s (skor %+.1f)\n", r.Verdict.Kind, r.Verdict.Score))
	for _, f := range r.Verdict.SubScores {
		b.WriteString(fmt.Sprintf("  %s: %.2f → %+.0f (%s)\n", f.Name, f.Value, f.RawScore, html.EscapeString(f.Commentary)))
	}

	b.WriteString(fmt.Sprintf("\n%s <b>Rekomendasi:</b> %s", actionIcon(r.Action), ActionLabel(r.Action)))
	if r.Held {
		b.WriteString(" (dalam portofolio)")
	}
	b.WriteString("\n")

	if final, ok := r.Forecast.Final(); ok {
		b.WriteString(fmt.Sprintf("\n🔮 <b>Prediksi %d hari</b> (%s): %s",
			r.Forecast.Horizon(), modelLabel(r.Forecast), FormatRupiah(final)))
		if r.Outlook != nil {
			b.WriteString(fmt.Sprintf(" (%+.1f%%, %s)", r.Outlook.ChangePct, r.Outlook.Outlook))
		}
		b.WriteString("\n")
		if bt := r.Forecast.Backtest; bt != nil && bt.MAPE != nil {
			b.WriteString(fmt.Sprintf("   Akurasi uji balik: MAPE %.2f%%\n", *bt.MAPE))
		}
	} else if r.ForecastError != "" {
		b.WriteString(fmt.Sprintf("\n🔮 Prediksi tidak tersedia: %s\n", html.EscapeString(r.ForecastError)))
	}

	if r.WarningMessage != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", r.WarningMessage))
	}
	return b.String()
}

// FormatDailySummary formats one line per analysed ticker plus failures.
func FormatDailySummary(reports []*model.Report, failed map[string]string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Ringkasan Harian IDX</b> | %s\n\n", time.Now().Format("2006-01-02")))
	for _, r := range reports {
		b.WriteString(fmt.Sprintf("%s <b>%s</b> %s | %s | %s",
			actionIcon(r.Action), html.EscapeString(r.Ticker), FormatRupiah(r.Snapshot.Close),
			r.Verdict.Kind, ActionLabel(r.Action)))
		if r.Outlook != nil {
			b.WriteString(fmt.Sprintf(" | 🔮 %+.1f%%", r.Outlook.ChangePct))
		}
		b.WriteString("\n")
		if r.WarningMessage != "" {
			b.WriteString(fmt.Sprintf("   %s\n", r.WarningMessage))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n⚠️ <b>Gagal dianalisis:</b>\n")
		for _, t := range sortedKeys(failed) {
			b.WriteString(fmt.Sprintf("  %s: %s\n", html.EscapeString(t), html.EscapeString(failed[t])))
		}
	}
	return b.String()
}

// FormatForecast formats the forecast path as a table.
func FormatForecast(r *model.ForecastResult, lastPrice float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔮 <b>Prediksi %s</b> | %s, %d hari\n",
		html.EscapeString(r.Ticker), modelLabel(r), r.Horizon()))
	b.WriteString(fmt.Sprintf("Harga terakhir: %s\n\n", FormatRupiah(lastPrice)))

	b.WriteString("<pre>")
	b.WriteString(fmt.Sprintf("%-10s %12s %12s %12s\n", "Tanggal", "Prediksi", "Bawah", "Atas"))
	for _, i := range sampleRows(r.Horizon(), maxForecastRows) {
		b.WriteString(fmt.Sprintf("%-10s %12s %12s %12s\n",
			r.Dates[i].Format("2006-01-02"),
			FormatRupiah(r.Point[i]), FormatRupiah(r.Lower[i]), FormatRupiah(r.Upper[i])))
	}
	b.WriteString("</pre>\n")

	if bt := r.Backtest; bt != nil {
		b.WriteString(fmt.Sprintf("\n📐 <b>Uji balik</b> (%d latih / %d uji)\n", bt.TrainSize, bt.TestSize))
		b.WriteString(fmt.Sprintf("MAE: %.2f | RMSE: %.2f", bt.MAE, bt.RMSE))
		if bt.MAPE != nil {
			b.WriteString(fmt.Sprintf(" | MAPE: %.2f%%", *bt.MAPE))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// sampleRows picks at most limit indices out of n, always keeping the last.
func sampleRows(n, limit int) []int {
	if n <= limit {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for k := 0; k < limit; k++ {
		rows = append(rows, int(math.Round(float64(k)*step)))
	}
	return rows
}

// FormatPortfolioReport formats the simulated holdings with their risk.
func FormatPortfolioReport(p *model.PortfolioReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Laporan Portofolio Saham</b> | %s\n", time.Now().Format("2006-01-02")))

	if len(p.Holdings) == 0 {
		b.WriteString("\nPortofolio kosong. Tambahkan saham terlebih dahulu.\n")
		return b.String()
	}

	for _, h := range p.Holdings {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> (%d lot)\n", html.EscapeString(h.Holding.Ticker), h.Holding.Lots))
		if h.Snapshot == nil {
			b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(h.Err)))
			continue
		}
		s := h.Snapshot
		b.WriteString(fmt.Sprintf("Tanggal Beli: %s @ %s\n", s.EntryDate.Format("2006-01-02"), FormatRupiah(s.EntryPrice)))
		b.WriteString(fmt.Sprintf("Jumlah Saham: %.2f lembar\n", s.Shares))
		b.WriteString(fmt.Sprintf("Nilai Awal: %s\n", FormatRupiah(s.EntryCapital)))
		b.WriteString(fmt.Sprintf("Nilai Sekarang: %s\n", FormatRupiah(s.CurrentValue)))
		b.WriteString(fmt.Sprintf("Keuntungan: %s (%.2f%%)\n", FormatRupiah(s.Profit), s.ProfitPct))
		b.WriteString("📈 Metrik Risiko\n")
		b.WriteString(formatRisk(h.Risk))
	}

	b.WriteString("\n──────────────\n")
	b.WriteString(fmt.Sprintf("Total Modal: %s\n", FormatRupiah(p.TotalCapital)))
	b.WriteString(fmt.Sprintf("Total Nilai: %s\n", FormatRupiah(p.TotalValue)))
	b.WriteString(fmt.Sprintf("Total Keuntungan: %s (%.2f%%)\n", FormatRupiah(p.TotalProfit), p.ProfitPct))
	return b.String()
}

func formatRisk(r *model.RiskMetrics) string {
	if r == nil {
		return "Data tidak cukup untuk menghitung metrik risiko\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Volatilitas Tahunan: %.2f%%\n", r.AnnualizedVolatility*100))
	b.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", r.MaxDrawdownPct))
	b.WriteString(fmt.Sprintf("Drawdown Puncak-Lembah: %.2f%%\n", r.PeakToTroughDrawdownPct))
	if r.SharpeRatio != nil {
		b.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", *r.SharpeRatio))
	} else {
		b.WriteString("Sharpe Ratio: -\n")
	}
	return b.String()
}

// FormatAllocation formats a capital split.
func FormatAllocation(a model.Allocation) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💰 <b>Alokasi Modal</b> %s\n\n", FormatRupiah(a.Capital)))
	if a.Empty() {
		b.WriteString("Tidak ada saham dengan rekomendasi BELI/TAMBAH bulan ini.\n")
		return b.String()
	}
	for _, l := range a.Lines {
		b.WriteString(fmt.Sprintf("• <b>%s</b>: %s (%.1f%%, skor %.2f)\n",
			html.EscapeString(l.Ticker), FormatRupiah(l.Amount), l.Proportion*100, l.Score))
	}
	b.WriteString(fmt.Sprintf("\nTotal: %s\n", FormatRupiah(a.Total())))
	return b.String()
}

// FormatComparison formats normalised returns and the correlation matrix.
func FormatComparison(c *model.Comparison) string {
	var b strings.Builder
	first, last := c.Dates[0], c.Dates[len(c.Dates)-1]
	b.WriteString(fmt.Sprintf("⚖️ <b>Perbandingan Kinerja</b> | %s s/d %s\n\n",
		first.Format("2006-01-02"), last.Format("2006-01-02")))

	tickers := append([]string(nil), c.Tickers...)
	sort.SliceStable(tickers, func(i, j int) bool { return c.ReturnPct[tickers[i]] > c.ReturnPct[tickers[j]] })
	for _, t := range tickers {
		b.WriteString(fmt.Sprintf("%s: %+.2f%%\n", html.EscapeString(t), c.ReturnPct[t]))
	}

	b.WriteString("\n<b>Korelasi return harian</b>\n<pre>")
	b.WriteString(fmt.Sprintf("%-8s", ""))
	for _, t := range c.Tickers {
		b.WriteString(fmt.Sprintf(" %7s", shortTicker(t)))
	}
	b.WriteString("\n")
	for i, t := range c.Tickers {
		b.WriteString(fmt.Sprintf("%-8s", shortTicker(t)))
		for j := range c.Tickers {
			b.WriteString(fmt.Sprintf(" %7.2f", c.Correlation[i][j]))
		}
		b.WriteString("\n")
	}
	b.WriteString("</pre>\n")
	return b.String()
}

func shortTicker(t string) string {
	t = strings.TrimSuffix(t, ".JK")
	if len(t) > 7 {
		t = t[:7]
	}
	return html.EscapeString(t)
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "🤖 <b>Perintah IDX Sentinel</b>\n\n" +
		"/analyze KODE - analisis lengkap saham\n" +
		"/forecast KODE [hari] [arima|prophet] - prediksi harga\n" +
		"/portfolio - laporan portofolio\n" +
		"/allocate [modal] - alokasi modal bulanan\n" +
		"/compare KODE KODE ... - bandingkan kinerja\n" +
		"/help - daftar perintah\n"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
