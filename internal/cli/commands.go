package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kurokishi/stock-analysis-id/internal/config"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/notifier"
)

// Version is set at build time.
var Version = "dev"

const dateLayout = "2006-01-02"

// Exit codes returned by Execute.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitInvalidParameter = 2
	ExitInsufficientData = 3
	ExitNoDataForDate    = 4
)

type appBuilder func(path string, debug bool) (*App, error)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, model.ErrInvalidParameter):
		return ExitInvalidParameter
	case errors.Is(err, model.ErrInsufficientData), errors.Is(err, model.ErrModelFittingFailed):
		return ExitInsufficientData
	case errors.Is(err, model.ErrNoDataForDate):
		return ExitNoDataForDate
	default:
		return ExitFailure
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd, closeApp := NewRootCmd()
	err := cmd.Execute()
	if cerr := closeApp(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), renderError(err))
		return ExitCode(err)
	}
	return ExitOK
}

// NewRootCmd creates the root command and a func that releases the App built
// for the executed command. Call it after Execute whatever Execute returned.
func NewRootCmd() (*cobra.Command, func() error) {
	return newRootCmd(NewApp)
}

func newRootCmd(build appBuilder) (*cobra.Command, func() error) {
	var app *App

	rootCmd := &cobra.Command{
		Use:   "idxsentinel",
		Short: "IDX Sentinel - valuation, forecasting and portfolio simulation for IDX stocks",
		Long: `IDX Sentinel analyses stocks listed on the Indonesia Stock Exchange: technical
indicators, relative valuation, ARIMA and additive price forecasts, portfolio
simulation with risk metrics and monthly capital allocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["app"] == "none" {
				return nil
			}
			path, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			a, err := build(path, debug)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", config.Path(), "Configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	get := func() *App { return app }
	rootCmd.AddCommand(
		newRunCmd(get),
		newServeCmd(get),
		newAnalyzeCmd(get),
		newForecastCmd(get),
		newSimulateCmd(get),
		newCompareCmd(get),
		newAllocateCmd(get),
		newPortfolioCmd(get),
		newVersionCmd(),
	)
	closeApp := func() error {
		if app == nil {
			return nil
		}
		a := app
		app = nil
		return a.Close()
	}
	return rootCmd, closeApp
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{"app": "none"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "idxsentinel %s\n", Version)
		},
	}
}

func newAnalyzeCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze TICKER [TICKER...]",
		Short: "Run the full analysis for one or more tickers",
		Long: `Computes indicators, scores the valuation, forecasts the price and prints
a BUY / ADD / HOLD / SELL recommendation.
Example: idxsentinel analyze BBCA TLKM`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			portfolio := a.Fund.Portfolio()
			if len(args) == 1 {
				report, err := a.Analyzer.Analyze(ctx, args[0], portfolio, model.TriggerManual)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
				return nil
			}

			reports, failed := a.Analyzer.AnalyzeMany(ctx, args, portfolio, model.TriggerManual)
			for _, r := range reports {
				fmt.Fprint(cmd.OutOrStdout(), renderReport(r))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderFailures(failed))
			if len(reports) == 0 {
				return fmt.Errorf("no ticker could be analysed: %w", model.ErrInsufficientData)
			}
			return nil
		},
	}
}

func newForecastCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast TICKER",
		Short: "Forecast the closing price",
		Long: `Forecasts the closing price for the next trading days.
Example: idxsentinel forecast BBRI --model additive --days 60`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			cfg := a.Analyzer.Config()
			kind := cfg.Model
			if v, _ := cmd.Flags().GetString("model"); v != "" {
				k, ok := model.ParseModelKind(v)
				if !ok {
					return fmt.Errorf("model %q must be arima, additive or naive: %w", v, model.ErrInvalidParameter)
				}
				kind = k
			}
			days, _ := cmd.Flags().GetInt("days")
			if days == 0 {
				days = cfg.Horizon
			}

			result, last, err := a.Analyzer.Forecast(cmd.Context(), args[0], kind, days)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderForecast(result, last))
			return nil
		},
	}
	cmd.Flags().String("model", "", "Forecast model: arima, additive (prophet) or naive")
	cmd.Flags().Int("days", 0, "Trading days to forecast (default from config)")
	return cmd
}

func newSimulateCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate TICKER",
		Short: "Simulate buying a ticker on a past date",
		Long: `Buys --capital worth of the ticker at the close of --date and reports the
position today with its risk metrics.
Example: idxsentinel simulate BBCA --date 2024-01-02 --capital 10000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			dateStr, _ := cmd.Flags().GetString("date")
			entry, err := parseDate(dateStr)
			if err != nil {
				return err
			}
			capital, _ := cmd.Flags().GetFloat64("capital")
			if capital == 0 {
				capital = a.Fund.GetState().MonthlyCapital
			}

			snap, risk, err := a.Analyzer.Simulate(cmd.Context(), args[0], entry, capital)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSimulation(snap, risk))
			return nil
		},
	}
	cmd.Flags().String("date", "", "Entry date in YYYY-MM-DD format")
	cmd.Flags().Float64("capital", 0, "Capital in Rupiah (default monthly capital)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newCompareCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "compare TICKER TICKER [TICKER...]",
		Short: "Compare the performance of several tickers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := app().Analyzer.Compare(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderComparison(cmp))
			return nil
		},
	}
}

func newAllocateCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate [TICKER...]",
		Short: "Split capital across the current BUY/ADD candidates",
		Long: `Splits capital in proportion to 1/PBV + dividend yield across the tickers
rated BUY or ADD. Without tickers the watchlist and the holdings are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			portfolio := a.Fund.Portfolio()
			tickers := args
			if len(tickers) == 0 {
				tickers = append(append([]string{}, a.Config.Watchlist...), portfolio.Tickers()...)
			}
			capital, _ := cmd.Flags().GetFloat64("capital")
			if capital == 0 {
				capital = a.Fund.GetState().MonthlyCapital
			}

			alloc, failed, err := a.Analyzer.Allocate(cmd.Context(), tickers, capital, portfolio)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderAllocation(alloc, failed))
			return nil
		},
	}
	cmd.Flags().Float64("capital", 0, "Capital in Rupiah (default monthly capital)")
	return cmd
}

func newPortfolioCmd(app func() *App) *cobra.Command {
	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage the holdings",
	}

	addCmd := &cobra.Command{
		Use:   "add TICKER LOTS",
		Short: "Add or replace a holding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lots, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("lots %q: %w", args[1], model.ErrInvalidParameter)
			}
			h := model.Holding{Ticker: args[0], Lots: lots}
			if v, _ := cmd.Flags().GetString("date"); v != "" {
				if h.EntryDate, err = parseDate(v); err != nil {
					return err
				}
			}
			h.EntryCapital, _ = cmd.Flags().GetFloat64("capital")
			if err := app().Fund.Add(h); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderHoldings(app().Fund.Portfolio()))
			return nil
		},
	}
	addCmd.Flags().String("date", "", "Entry date in YYYY-MM-DD format (default latest bar)")
	addCmd.Flags().Float64("capital", 0, "Entry capital in Rupiah (default lots x 100 x entry close)")

	removeCmd := &cobra.Command{
		Use:   "remove TICKER",
		Short: "Remove a holding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := app().Fund.Remove(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not held: %w", args[0], model.ErrInvalidParameter)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderHoldings(app().Fund.Portfolio()))
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), renderHoldings(app().Fund.Portfolio()))
			return nil
		},
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Simulate every holding and report performance and risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			fmt.Fprint(cmd.OutOrStdout(), renderPortfolioReport(a.Analyzer.SimulateHoldings(cmd.Context(), a.Fund.Portfolio())))
			return nil
		},
	}

	capitalCmd := &cobra.Command{
		Use:   "capital AMOUNT",
		Short: "Set the monthly capital budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], model.ErrInvalidParameter)
			}
			if err := app().Fund.SetMonthlyCapital(v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monthly capital set to %s\n", notifier.FormatRupiah(v))
			return nil
		},
	}

	portfolioCmd.AddCommand(addCmd, removeCmd, listCmd, reportCmd, capitalCmd)
	return portfolioCmd
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", s, model.ErrInvalidParameter)
	}
	return t, nil
}
