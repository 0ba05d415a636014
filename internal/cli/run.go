package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/notifier"
	"github.com/kurokishi/stock-analysis-id/internal/scheduler"
	"github.com/kurokishi/stock-analysis-id/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServer(a *App) *server.Server {
	return server.New(server.Config{
		Addr:           a.Config.Server.Addr,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Analyzer:       a.Analyzer,
		Fund:           a.Fund,
		Recorder:       a.Recorder,
		Watchlist:      a.Config.Watchlist,
		Log:            a.Log,
	})
}

func newRunCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and the Telegram bot",
		Long: `Runs the daily watchlist analysis, the weekly portfolio report and the
monthly allocation on their cron schedules, answers Telegram commands and,
with --serve, the HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.Config.ValidateTelegram(); err != nil {
				return fmt.Errorf("config validation: %w: %w", err, model.ErrInvalidParameter)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tn := notifier.NewTelegramNotifier(a.Config.Telegram.BotToken, a.Config.Telegram.ChatID, "", a.Config.Proxy, a.Log)
			sched := scheduler.NewScheduler(ctx, a.Analyzer, a.Fund, tn, a.Config.Watchlist, a.Log)
			s := a.Config.Schedule
			if err := sched.RegisterAll(s.DailyCron, s.WeeklyCron, s.MonthlyCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			go tn.StartPolling(ctx, sched.HandleCommand)
			a.Log.Info().Msg("Telegram polling started")

			if runNow, _ := cmd.Flags().GetBool("run-on-start"); runNow || os.Getenv("RUN_ON_START") == "true" {
				a.Log.Info().Msg("running daily analysis on start")
				go sched.RunDaily()
			}

			serveAPI, _ := cmd.Flags().GetBool("serve")
			if serveAPI {
				return serveUntilDone(ctx, a)
			}

			a.Log.Info().Msg("IDX Sentinel is running, press Ctrl+C to stop")
			<-ctx.Done()
			a.Log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().Bool("serve", false, "Also serve the HTTP API")
	cmd.Flags().Bool("run-on-start", false, "Run the daily analysis immediately")
	return cmd
}

func newServeCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveUntilDone(ctx, app())
		},
	}
}

// serveUntilDone runs the HTTP API until ctx is cancelled or the listener fails.
func serveUntilDone(ctx context.Context, a *App) error {
	srv := newServer(a)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
