package scheduler

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kurokishi/stock-analysis-id/internal/analyzer"
	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/fund"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/notifier"
)

const sendRetries = 3

// thousandsDots matches Rupiah amounts written with dot separators, e.g. 1.500.000.
var thousandsDots = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks and answers bot commands.
type Scheduler struct {
	Cron      *cron.Cron
	Analyzer  *analyzer.Analyzer
	Fund      *fund.Manager
	Sender    Sender
	Watchlist []string
	Ctx       context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, a *analyzer.Analyzer, fm *fund.Manager, sender Sender, watchlist []string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Analyzer:  a,
		Fund:      fm,
		Sender:    sender,
		Watchlist: watchlist,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the daily, weekly and monthly tasks.
func (s *Scheduler) RegisterAll(dailyCron, weeklyCron, monthlyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.RunDaily); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, s.RunWeekly); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	if _, err := s.Cron.AddFunc(monthlyCron, s.RunMonthly); err != nil {
		return fmt.Errorf("register monthly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// tickers is the watchlist plus every held ticker, normalized and unique.
func (s *Scheduler) tickers() []string {
	all := append([]string{}, s.Watchlist...)
	return dedupe(append(all, s.Fund.Portfolio().Tickers()...))
}

// RunDaily analyzes the watchlist and the holdings after market close.
func (s *Scheduler) RunDaily() {
	s.log.Info().Msg("running daily analysis")
	portfolio := s.Fund.Portfolio()
	reports, failed := s.Analyzer.AnalyzeMany(s.Ctx, s.tickers(), portfolio, model.TriggerDaily)
	if len(reports) == 0 && len(failed) > 0 {
		s.log.Error().Int("failed", len(failed)).Msg("daily analysis produced no reports")
	}
	s.trySend(notifier.FormatDailySummary(reports, failed))
}

// RunWeekly reports the simulated performance of the holdings.
func (s *Scheduler) RunWeekly() {
	s.log.Info().Msg("running weekly portfolio report")
	report := s.Analyzer.SimulateHoldings(s.Ctx, s.Fund.Portfolio())
	s.trySend(notifier.FormatPortfolioReport(report))
}

// RunMonthly allocates the monthly capital across the current candidates.
func (s *Scheduler) RunMonthly() {
	s.log.Info().Msg("running monthly allocation")
	state := s.Fund.GetState()
	text, err := s.allocate(s.Ctx, state.MonthlyCapital)
	if err != nil {
		s.log.Error().Err(err).Msg("monthly allocation")
		s.trySend("❌ Alokasi bulanan gagal: " + html.EscapeString(err.Error()))
		return
	}
	if err := s.Fund.MarkAllocated(time.Now()); err != nil {
		s.log.Error().Err(err).Msg("mark allocated")
	}
	s.trySend(text)
}

func (s *Scheduler) allocate(ctx context.Context, capital float64) (string, error) {
	alloc, failed, err := s.Analyzer.Allocate(ctx, s.tickers(), capital, s.Fund.Portfolio())
	if err != nil {
		return "", err
	}
	text := notifier.FormatAllocation(alloc)
	skipped := make([]string, 0, len(failed))
	for ticker := range failed {
		skipped = append(skipped, ticker)
	}
	sort.Strings(skipped)
	for _, ticker := range skipped {
		text += fmt.Sprintf("\n⚠️ %s: %s", html.EscapeString(ticker), html.EscapeString(failed[ticker]))
	}
	return text, nil
}

// HandleCommand processes a bot command and returns the reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// "/analyze@IdxSentinelBot BBCA" in group chats.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	reply, err := s.dispatch(ctx, name, args)
	if err != nil {
		s.log.Warn().Err(err).Str("command", name).Msg("command failed")
		return "❌ " + html.EscapeString(err.Error())
	}
	return reply
}

func (s *Scheduler) dispatch(ctx context.Context, name string, args []string) (string, error) {
	switch name {
	case "/analyze":
		if len(args) < 1 {
			return "", fmt.Errorf("gunakan: /analyze KODE")
		}
		report, err := s.Analyzer.Analyze(ctx, args[0], s.Fund.Portfolio(), model.TriggerManual)
		if err != nil {
			return "", err
		}
		return notifier.FormatAnalysisReport(report), nil

	case "/forecast":
		if len(args) < 1 {
			return "", fmt.Errorf("gunakan: /forecast KODE [hari] [arima|prophet]")
		}
		cfg := s.Analyzer.Config()
		days, kind := cfg.Horizon, cfg.Model
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return "", fmt.Errorf("jumlah hari %q: %w", args[1], model.ErrInvalidParameter)
			}
			days = n
		}
		if len(args) > 2 {
			k, ok := model.ParseModelKind(args[2])
			if !ok {
				return "", fmt.Errorf("model %q: %w", args[2], model.ErrInvalidParameter)
			}
			kind = k
		}
		result, last, err := s.Analyzer.Forecast(ctx, args[0], kind, days)
		if err != nil {
			return "", err
		}
		return notifier.FormatForecast(result, last), nil

	case "/portfolio":
		return notifier.FormatPortfolioReport(s.Analyzer.SimulateHoldings(ctx, s.Fund.Portfolio())), nil

	case "/allocate":
		capital := s.Fund.GetState().MonthlyCapital
		if len(args) > 0 {
			v, err := parseCapital(args[0])
			if err != nil {
				return "", fmt.Errorf("modal %q: %w", args[0], model.ErrInvalidParameter)
			}
			capital = v
		}
		return s.allocate(ctx, capital)

	case "/compare":
		cmp, err := s.Analyzer.Compare(ctx, args)
		if err != nil {
			return "", err
		}
		return notifier.FormatComparison(cmp), nil

	default:
		return notifier.FormatHelp(), nil
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Sender.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}

func dedupe(tickers []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tickers {
		n := collector.NormalizeTicker(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// parseCapital reads a capital argument. Dots are thousands separators only
// when they group digits in threes.
func parseCapital(arg string) (float64, error) {
	if thousandsDots.MatchString(arg) {
		arg = strings.ReplaceAll(arg, ".", "")
	}
	return strconv.ParseFloat(arg, 64)
}
