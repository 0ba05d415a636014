package recorder

import (
	"time"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// ReportRow is one persisted analysis report as read back from history.
type ReportRow struct {
	ID         string            `json:"id"`
	RecordedAt time.Time         `json:"recorded_at"`
	Ticker     string            `json:"ticker"`
	Trigger    model.TriggerType `json:"trigger"`
	Close      *float64          `json:"close,omitempty"`
	Verdict    model.VerdictKind `json:"verdict"`
	Score      float64           `json:"score"`
	Action     model.Action      `json:"action"`
	Outlook    string            `json:"outlook,omitempty"`
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordReport(report *model.Report) error
	RecordForecast(result *model.ForecastResult) error
	RecordSimulation(snapshot *model.PortfolioSnapshot, risk *model.RiskMetrics) error
	RecordAllocation(alloc model.Allocation) error
	// ReportHistory returns the newest reports for ticker first.
	ReportHistory(ticker string, limit int) ([]ReportRow, error)
	Close() error
}

var (
	_ Recorder = (*SQLiteRecorder)(nil)
	_ Recorder = (*NoopRecorder)(nil)
)
