package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
)

const dateLayout = "2006-01-02"

type forecastResponse struct {
	Forecast  *model.ForecastResult `json:"forecast"`
	LastPrice float64               `json:"last_price"`
}

type simulationRequest struct {
	Ticker    string  `json:"ticker"`
	EntryDate string  `json:"entry_date"`
	Capital   float64 `json:"capital"`
}

type simulationResponse struct {
	Snapshot *model.PortfolioSnapshot `json:"snapshot"`
	Risk     *model.RiskMetrics       `json:"risk,omitempty"`
}

type allocationRequest struct {
	Tickers []string `json:"tickers"`
	Capital float64  `json:"capital"`
}

type allocationResponse struct {
	Allocation model.Allocation  `json:"allocation"`
	Failed     map[string]string `json:"failed,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyzer.Analyze(r.Context(), chi.URLParam(r, "ticker"), s.fund.Portfolio(), model.TriggerAPI)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	cfg := s.analyzer.Config()
	kind, days := cfg.Model, cfg.Horizon

	if v := r.URL.Query().Get("model"); v != "" {
		k, ok := model.ParseModelKind(v)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown model "+strconv.Quote(v))
			return
		}
		kind = k
	}
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}

	result, last, err := s.analyzer.Forecast(r.Context(), chi.URLParam(r, "ticker"), kind, days)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, forecastResponse{Forecast: result, LastPrice: last})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.recorder.ReportHistory(collector.NormalizeTicker(chi.URLParam(r, "ticker")), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []recorder.ReportRow{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"reports": rows})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.analyzer.SimulateHoldings(r.Context(), s.fund.Portfolio()))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var tickers []string
	for _, t := range strings.Split(r.URL.Query().Get("tickers"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	cmp, err := s.analyzer.Compare(r.Context(), tickers)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		s.writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	entry, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "entry_date must be YYYY-MM-DD")
		return
	}

	snap, risk, err := s.analyzer.Simulate(r.Context(), req.Ticker, entry, req.Capital)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, simulationResponse{Snapshot: snap, Risk: risk})
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	portfolio := s.fund.Portfolio()
	if len(req.Tickers) == 0 {
		req.Tickers = append(append([]string{}, s.watchlist...), portfolio.Tickers()...)
	}
	if req.Capital == 0 {
		req.Capital = s.fund.GetState().MonthlyCapital
	}

	alloc, failed, err := s.analyzer.Allocate(r.Context(), req.Tickers, req.Capital, portfolio)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, allocationResponse{Allocation: alloc, Failed: failed})
}

// statusFor maps the engine's sentinel errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoDataForDate):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientData), errors.Is(err, model.ErrModelFittingFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
