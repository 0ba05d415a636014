package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/notifier"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	positiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	negativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func signed(v float64, format string) string {
	s := fmt.Sprintf(format, v)
	switch {
	case v > 0:
		return positiveStyle.Render(s)
	case v < 0:
		return negativeStyle.Render(s)
	}
	return s
}

func number(v float64, format string) string {
	if !model.Defined(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func actionText(a model.Action) string {
	label := fmt.Sprintf("%s (%s)", a, notifier.ActionLabel(a))
	switch a {
	case model.Buy, model.Add:
		return positiveStyle.Render(label)
	case model.Sell:
		return negativeStyle.Render(label)
	}
	return label
}

func optionalRatio(v *float64, format string, scale float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v*scale)
}

func renderReport(r *model.Report) string {
	s := r.Snapshot
	lines := []string{
		row("Close", notifier.FormatRupiah(s.Close)),
		row("MA20 / MA50 / MA200", fmt.Sprintf("%s / %s / %s", number(s.SMA20, "%.0f"), number(s.SMA50, "%.0f"), number(s.SMA200, "%.0f"))),
		row("RSI(14)", number(s.RSI14, "%.1f")),
		row("MACD / signal", fmt.Sprintf("%s / %s", number(s.MACD, "%.2f"), number(s.MACDSignal, "%.2f"))),
		row("52w range", fmt.Sprintf("%s - %s", notifier.FormatRupiah(s.Low52w), notifier.FormatRupiah(s.High52w))),
	}
	if f := r.Fundamentals; f != nil {
		lines = append(lines,
			"",
			headerStyle.Render("Fundamentals"),
			row("PER / PBV", fmt.Sprintf("%s / %s", optionalRatio(f.PER, "%.2f", 1), optionalRatio(f.PBV, "%.2f", 1))),
			row("Dividend yield", optionalRatio(f.DividendYield, "%.2f%%", 100)),
			row("ROE", optionalRatio(f.ROE, "%.2f%%", 100)),
		)
	}

	lines = append(lines, "", headerStyle.Render("Valuation"))
	lines = append(lines, row("Verdict", fmt.Sprintf("%s (score %.1f)", r.Verdict.Kind, r.Verdict.Score)))
	for _, f := range r.Verdict.SubScores {
		lines = append(lines, row("  "+f.Name, fmt.Sprintf("%+.1f %s", f.RawScore, f.Commentary)))
	}
	lines = append(lines, row("Recommendation", actionText(r.Action)))
	if r.WarningMessage != "" {
		lines = append(lines, warnStyle.Render(r.WarningMessage))
	}

	if r.Forecast != nil {
		final, _ := r.Forecast.Final()
		lines = append(lines, "", headerStyle.Render("Forecast"))
		lines = append(lines, row("Model", forecastLabel(r.Forecast)))
		lines = append(lines, row(fmt.Sprintf("Close in %d days", r.Forecast.Horizon()), notifier.FormatRupiah(final)))
		if r.Outlook != nil {
			lines = append(lines, row("Outlook", fmt.Sprintf("%s %s", r.Outlook.Outlook, signed(r.Outlook.ChangePct, "%+.2f%%"))))
		}
	} else if r.ForecastError != "" {
		lines = append(lines, "", warnStyle.Render("Forecast unavailable: "+r.ForecastError))
	}

	title := titleStyle.Render(fmt.Sprintf("📊 %s", r.Ticker))
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(lines, "\n"))) + "\n"
}

func forecastLabel(r *model.ForecastResult) string {
	if r.Order != "" {
		return fmt.Sprintf("%s %s", r.ModelKind, r.Order)
	}
	return string(r.ModelKind)
}

func renderForecast(r *model.ForecastResult, last float64) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %14s %14s %14s", "Date", "Forecast", "Lower", "Upper")))
	b.WriteString("\n")
	for i := range r.Point {
		b.WriteString(fmt.Sprintf("%-12s %14s %14s %14s\n",
			r.Dates[i].Format("2006-01-02"),
			notifier.FormatRupiah(r.Point[i]), notifier.FormatRupiah(r.Lower[i]), notifier.FormatRupiah(r.Upper[i])))
	}
	if bt := r.Backtest; bt != nil {
		b.WriteString(fmt.Sprintf("\nBacktest (%d train / %d test): MAE %.2f  RMSE %.2f", bt.TrainSize, bt.TestSize, bt.MAE, bt.RMSE))
		if bt.MAPE != nil {
			b.WriteString(fmt.Sprintf("  MAPE %.2f%%", *bt.MAPE))
		}
		b.WriteString("\n")
	}

	title := titleStyle.Render(fmt.Sprintf("🔮 %s %s, last close %s", r.Ticker, forecastLabel(r), notifier.FormatRupiah(last)))
	return lipgloss.JoinVertical(lipgloss.Left, title, b.String())
}

func snapshotLines(s *model.PortfolioSnapshot, risk *model.RiskMetrics) []string {
	lines := []string{
		row("Entry", fmt.Sprintf("%s @ %s", s.EntryDate.Format("2006-01-02"), notifier.FormatRupiah(s.EntryPrice))),
		row("Shares", fmt.Sprintf("%.2f", s.Shares)),
		row("Initial value", notifier.FormatRupiah(s.EntryCapital)),
		row("Current value", notifier.FormatRupiah(s.CurrentValue)),
		row("Profit", fmt.Sprintf("%s %s", notifier.FormatRupiah(s.Profit), signed(s.ProfitPct, "(%+.2f%%)"))),
	}
	if risk == nil {
		return append(lines, warnStyle.Render("Data tidak cukup untuk menghitung metrik risiko"))
	}
	sharpe := "-"
	if risk.SharpeRatio != nil {
		sharpe = fmt.Sprintf("%.2f", *risk.SharpeRatio)
	}
	return append(lines,
		row("Annual volatility", fmt.Sprintf("%.2f%%", risk.AnnualizedVolatility*100)),
		row("Max drawdown", fmt.Sprintf("%.2f%%", risk.MaxDrawdownPct)),
		row("Peak-to-trough", fmt.Sprintf("%.2f%%", risk.PeakToTroughDrawdownPct)),
		row("Sharpe ratio", sharpe),
	)
}

func renderSimulation(s *model.PortfolioSnapshot, risk *model.RiskMetrics) string {
	title := titleStyle.Render(fmt.Sprintf("💼 Simulation %s", s.Ticker))
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(snapshotLines(s, risk), "\n"))) + "\n"
}

func renderPortfolioReport(p *model.PortfolioReport) string {
	if len(p.Holdings) == 0 {
		return "Portfolio is empty. Add a holding with `portfolio add`.\n"
	}
	blocks := []string{titleStyle.Render("💼 Portfolio")}
	for _, h := range p.Holdings {
		head := headerStyle.Render(fmt.Sprintf("%s (%d lot)", h.Holding.Ticker, h.Holding.Lots))
		if h.Snapshot == nil {
			blocks = append(blocks, head, errorStyle.Render(h.Err), "")
			continue
		}
		blocks = append(blocks, head, strings.Join(snapshotLines(h.Snapshot, h.Risk), "\n"), "")
	}
	blocks = append(blocks, boxStyle.Render(strings.Join([]string{
		row("Total capital", notifier.FormatRupiah(p.TotalCapital)),
		row("Total value", notifier.FormatRupiah(p.TotalValue)),
		row("Total profit", fmt.Sprintf("%s %s", notifier.FormatRupiah(p.TotalProfit), signed(p.ProfitPct, "(%+.2f%%)"))),
	}, "\n")))
	return lipgloss.JoinVertical(lipgloss.Left, blocks...) + "\n"
}

func renderHoldings(p model.Portfolio) string {
	if len(p.Holdings) == 0 {
		return "Portfolio is empty.\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %6s %-12s %16s", "Ticker", "Lots", "Entry", "Capital")))
	b.WriteString("\n")
	for _, h := range p.Holdings {
		entry, capital := "latest", "lots x close"
		if !h.EntryDate.IsZero() {
			entry = h.EntryDate.Format("2006-01-02")
		}
		if h.EntryCapital > 0 {
			capital = notifier.FormatRupiah(h.EntryCapital)
		}
		b.WriteString(fmt.Sprintf("%-10s %6d %-12s %16s\n", h.Ticker, h.Lots, entry, capital))
	}
	return b.String()
}

func renderAllocation(a model.Allocation, failed map[string]string) string {
	var lines []string
	if a.Empty() {
		lines = append(lines, "No BUY/ADD candidates, nothing allocated.")
	}
	for _, l := range a.Lines {
		lines = append(lines, row(l.Ticker, fmt.Sprintf("%16s  %5.1f%%  score %.2f", notifier.FormatRupiah(l.Amount), l.Proportion*100, l.Score)))
	}
	if !a.Empty() {
		lines = append(lines, row("Total", fmt.Sprintf("%16s", notifier.FormatRupiah(a.Total()))))
	}
	out := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("💰 Allocation of "+notifier.FormatRupiah(a.Capital)),
		boxStyle.Render(strings.Join(lines, "\n")))
	return out + "\n" + renderFailures(failed)
}

func renderFailures(failed map[string]string) string {
	if len(failed) == 0 {
		return ""
	}
	tickers := make([]string, 0, len(failed))
	for t := range failed {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	var b strings.Builder
	for _, t := range tickers {
		b.WriteString(warnStyle.Render(fmt.Sprintf("skipped %s: %s", t, failed[t])))
		b.WriteString("\n")
	}
	return b.String()
}

func renderComparison(c *model.Comparison) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("⚖️  %s to %s",
		c.Dates[0].Format("2006-01-02"), c.Dates[len(c.Dates)-1].Format("2006-01-02"))))
	b.WriteString("\n")
	for _, t := range c.Tickers {
		b.WriteString(row(t, signed(c.ReturnPct[t], "%+.2f%%")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Daily return correlation"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%-10s", ""))
	for _, t := range c.Tickers {
		b.WriteString(fmt.Sprintf(" %9s", t))
	}
	b.WriteString("\n")
	for i, t := range c.Tickers {
		b.WriteString(fmt.Sprintf("%-10s", t))
		for j := range c.Tickers {
			b.WriteString(fmt.Sprintf(" %9.2f", c.Correlation[i][j]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderError(err error) string {
	return errorStyle.Render("Error: "+err.Error()) + "\n"
}
