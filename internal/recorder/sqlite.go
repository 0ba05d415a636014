package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets the API read while scheduled jobs write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_reports (
			id             TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			trigger_type   TEXT,
			close          REAL,
			sma50          REAL,
			sma200         REAL,
			rsi14          REAL,
			verdict        TEXT,
			score          REAL,
			action         TEXT,
			held           INTEGER,
			outlook        TEXT,
			change_pct     REAL,
			forecast_model TEXT,
			forecast_final REAL,
			warning        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_ticker_ts ON analysis_reports(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			ticker      TEXT NOT NULL,
			model       TEXT,
			arima_order TEXT,
			horizon     INTEGER,
			final_point REAL,
			final_lower REAL,
			final_upper REAL,
			mae         REAL,
			rmse        REAL,
			mape        REAL,
			path_json   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_ticker_ts ON forecasts(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS simulations (
			id                TEXT PRIMARY KEY,
			timestamp         INTEGER NOT NULL,
			ticker            TEXT NOT NULL,
			entry_date        TEXT,
			entry_price       REAL,
			entry_capital     REAL,
			shares            REAL,
			current_value     REAL,
			profit            REAL,
			profit_pct        REAL,
			volatility        REAL,
			max_drawdown_pct  REAL,
			peak_drawdown_pct REAL,
			sharpe            REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_simulations_ts ON simulations(timestamp)`,

		`CREATE TABLE IF NOT EXISTS allocations (
			id        TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			capital   REAL,
			total     REAL
		)`,
		`CREATE TABLE IF NOT EXISTS allocation_lines (
			allocation_id TEXT NOT NULL REFERENCES allocations(id),
			ticker        TEXT NOT NULL,
			score         REAL,
			proportion    REAL,
			amount        REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_allocation_lines ON allocation_lines(allocation_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// nullReal maps undefined values to NULL.
func nullReal(v float64) interface{} {
	if !model.Defined(v) {
		return nil
	}
	return v
}

func nullRealPtr(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return nullReal(*v)
}

func (r *SQLiteRecorder) RecordReport(report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var outlook string
	var changePct interface{}
	if report.Outlook != nil {
		outlook = string(report.Outlook.Outlook)
		changePct = nullReal(report.Outlook.ChangePct)
	}
	var forecastModel string
	var forecastFinal interface{}
	if final, ok := report.Forecast.Final(); ok {
		forecastModel = string(report.Forecast.ModelKind)
		forecastFinal = nullReal(final)
	}

	snap := report.Snapshot
	_, err := r.db.Exec(`INSERT INTO analysis_reports
		(id, timestamp, ticker, trigger_type, close, sma50, sma200, rsi14,
		 verdict, score, action, held, outlook, change_pct,
		 forecast_model, forecast_final, warning)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), time.Now().UnixNano(), report.Ticker, string(report.Trigger),
		nullReal(snap.Close), nullReal(snap.SMA50), nullReal(snap.SMA200), nullReal(snap.RSI14),
		string(report.Verdict.Kind), nullReal(report.Verdict.Score), string(report.Action), report.Held,
		outlook, changePct, forecastModel, forecastFinal, report.WarningMessage,
	)
	return err
}

func (r *SQLiteRecorder) RecordForecast(result *model.ForecastResult) error {
	final, ok := result.Final()
	if !ok {
		return fmt.Errorf("record forecast %s: empty path: %w", result.Ticker, model.ErrInvalidParameter)
	}
	path, err := json.Marshal(struct {
		Dates []time.Time `json:"dates"`
		Point []float64   `json:"point"`
		Lower []float64   `json:"lower"`
		Upper []float64   `json:"upper"`
	}{result.Dates, result.Point, result.Lower, result.Upper})
	if err != nil {
		return fmt.Errorf("encode forecast path: %w", err)
	}

	var mae, rmse, mape interface{}
	if bt := result.Backtest; bt != nil {
		mae, rmse, mape = nullReal(bt.MAE), nullReal(bt.RMSE), nullRealPtr(bt.MAPE)
	}
	last := len(result.Point) - 1

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.Exec(`INSERT INTO forecasts
		(id, timestamp, ticker, model, arima_order, horizon,
		 final_point, final_lower, final_upper, mae, rmse, mape, path_json)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), time.Now().UnixNano(), result.Ticker, string(result.ModelKind), result.Order,
		result.Horizon(), nullReal(final), nullReal(result.Lower[last]), nullReal(result.Upper[last]),
		mae, rmse, mape, string(path),
	)
	return err
}

func (r *SQLiteRecorder) RecordSimulation(snapshot *model.PortfolioSnapshot, risk *model.RiskMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var vol, maxDD, peakDD, sharpe interface{}
	if risk != nil {
		vol, maxDD, peakDD = nullReal(risk.AnnualizedVolatility), nullReal(risk.MaxDrawdownPct), nullReal(risk.PeakToTroughDrawdownPct)
		sharpe = nullRealPtr(risk.SharpeRatio)
	}
	_, err := r.db.Exec(`INSERT INTO simulations
		(id, timestamp, ticker, entry_date, entry_price, entry_capital, shares,
		 current_value, profit, profit_pct, volatility, max_drawdown_pct, peak_drawdown_pct, sharpe)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), time.Now().UnixNano(), snapshot.Ticker, snapshot.EntryDate.Format("2006-01-02"),
		snapshot.EntryPrice, snapshot.EntryCapital, snapshot.Shares,
		snapshot.CurrentValue, snapshot.Profit, snapshot.ProfitPct,
		vol, maxDD, peakDD, sharpe,
	)
	return err
}

func (r *SQLiteRecorder) RecordAllocation(alloc model.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin allocation tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO allocations (id, timestamp, capital, total) VALUES (?,?,?,?)`,
		id, time.Now().UnixNano(), alloc.Capital, alloc.Total()); err != nil {
		return err
	}
	for _, l := range alloc.Lines {
		if _, err := tx.Exec(`INSERT INTO allocation_lines
			(allocation_id, ticker, score, proportion, amount) VALUES (?,?,?,?,?)`,
			id, l.Ticker, l.Score, l.Proportion, l.Amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) ReportHistory(ticker string, limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.Query(`SELECT id, timestamp, ticker, trigger_type, close, verdict, score, action, outlook
		FROM analysis_reports WHERE ticker = ? ORDER BY timestamp DESC LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query report history: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var (
			row     ReportRow
			ts      int64
			trigger string
			closeV  sql.NullFloat64
			verdict string
			score   sql.NullFloat64
			action  string
			outlook sql.NullString
		)
		if err := rows.Scan(&row.ID, &ts, &row.Ticker, &trigger, &closeV, &verdict, &score, &action, &outlook); err != nil {
			return nil, fmt.Errorf("scan report history: %w", err)
		}
		row.RecordedAt = time.Unix(0, ts)
		row.Trigger = model.TriggerType(trigger)
		row.Verdict = model.VerdictKind(verdict)
		row.Action = model.Action(action)
		row.Score = score.Float64
		row.Outlook = outlook.String
		if closeV.Valid {
			v := closeV.Float64
			row.Close = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
