package model

// TriggerType indicates what triggered an analysis run.
type TriggerType string

const (
	TriggerDaily   TriggerType = "DAILY"
	TriggerWeekly  TriggerType = "WEEKLY"
	TriggerMonthly TriggerType = "MONTHLY"
	TriggerManual  TriggerType = "MANUAL"
	TriggerAPI     TriggerType = "API"
)

// VerdictKind classifies a valuation score.
type VerdictKind string

const (
	StronglyUndervalued VerdictKind = "STRONGLY_UNDERVALUED"
	Undervalued         VerdictKind = "UNDERVALUED"
	FairlyValued        VerdictKind = "FAIRLY_VALUED"
	Overvalued          VerdictKind = "OVERVALUED"
	InsufficientData    VerdictKind = "INSUFFICIENT_DATA"
)

// IsUndervalued reports whether k is one of the undervalued kinds.
func (k VerdictKind) IsUndervalued() bool {
	return k == Undervalued || k == StronglyUndervalued
}

// FactorScore represents a single valuation factor's scoring result.
type FactorScore struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	RawScore   float64 `json:"raw_score"`
	Commentary string  `json:"commentary"`
}

// Verdict is the output of the valuation scorer.
type Verdict struct {
	Kind      VerdictKind   `json:"kind"`
	Score     float64       `json:"score"`
	SubScores []FactorScore `json:"sub_scores"`
}

// Action is the trading recommendation for one ticker.
type Action string

const (
	Buy  Action = "BUY"
	Add  Action = "ADD"
	Hold Action = "HOLD"
	Sell Action = "SELL"
)

// Participates reports whether the action takes part in capital allocation.
func (a Action) Participates() bool { return a == Buy || a == Add }

// Outlook is the advisory direction implied by a forecast.
type Outlook string

const (
	Bullish Outlook = "BULLISH"
	Neutral Outlook = "NEUTRAL"
	Bearish Outlook = "BEARISH"
)

// ForecastOutlook is the advisory read of a forecast against the last price.
type ForecastOutlook struct {
	Outlook   Outlook `json:"outlook"`
	ChangePct float64 `json:"change_pct"`
}

// Report is the full per-ticker analysis result.
type Report struct {
	Ticker         string           `json:"ticker"`
	Trigger        TriggerType      `json:"trigger"`
	Snapshot       Snapshot         `json:"snapshot"`
	Fundamentals   *Fundamentals    `json:"fundamentals,omitempty"`
	Verdict        Verdict          `json:"verdict"`
	Action         Action           `json:"action"`
	Held           bool             `json:"held"`
	Forecast       *ForecastResult  `json:"forecast,omitempty"`
	Outlook        *ForecastOutlook `json:"outlook,omitempty"`
	ForecastError  string           `json:"forecast_error,omitempty"`
	WarningMessage string           `json:"warning,omitempty"`
}
