package recorder

import "github.com/kurokishi/stock-analysis-id/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordReport(_ *model.Report) error                { return nil }
func (n *NoopRecorder) RecordForecast(_ *model.ForecastResult) error      { return nil }
func (n *NoopRecorder) RecordAllocation(_ model.Allocation) error         { return nil }
func (n *NoopRecorder) ReportHistory(_ string, _ int) ([]ReportRow, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                      { return nil }

func (n *NoopRecorder) RecordSimulation(_ *model.PortfolioSnapshot, _ *model.RiskMetrics) error {
	return nil
}
