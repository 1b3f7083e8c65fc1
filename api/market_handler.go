package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/ibexai/internal/analysis/forecast"
	"github.com/seenimoa/ibexai/internal/analysis/fundamental"
	"github.com/seenimoa/ibexai/internal/analysis/technical"
	"github.com/seenimoa/ibexai/internal/chart"
	"github.com/seenimoa/ibexai/internal/logging"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// MarketSummary is returned by GET /api/v1/market/summary.
type MarketSummary struct {
	FetchedAt   time.Time                   `json:"fetched_at"`
	Instruments []models.InstrumentSnapshot `json:"instruments"`
	Growth      []market.GrowthLine         `json:"growth"`
	Text        string                      `json:"text"`
}

// Analysis is the per-instrument view: indicators, forecast and charts.
type Analysis struct {
	Instrument   models.Instrument            `json:"instrument"`
	Fundamentals *models.Fundamentals         `json:"fundamentals,omitempty"`
	Valuation    *fundamental.ValuationResult `json:"valuation,omitempty"`
	Indicators   *technical.Indicators        `json:"indicators"`
	Forecast     *forecast.Result             `json:"forecast,omitempty"`
	Charts       map[string]string            `json:"charts"`
}

func (s *Server) handleMarketSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Market.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: MarketSummary{
			FetchedAt:   snap.FetchedAt,
			Instruments: snap.Instruments,
			Growth:      market.Growth(snap),
			Text:        market.BuildDetailedSummary(snap),
		},
	})
}

func (s *Server) handleProfitability(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Market.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"fetched_at": snap.FetchedAt,
			"rows":       market.Profitability(snap),
		},
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, status, err := s.analysis(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
}

func (s *Server) handleAnalysisChart(w http.ResponseWriter, r *http.Request) {
	a, status, err := s.analysis(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	svg, ok := a.Charts[chi.URLParam(r, "kind")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown chart kind")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(svg)) //nolint:errcheck
}

// analysis builds, or returns the cached, analysis of one index member.
func (s *Server) analysis(ctx context.Context, raw string) (*Analysis, int, error) {
	in, ok := models.LookupInstrument(utils.NormalizeTicker(raw))
	if !ok {
		return nil, http.StatusNotFound, fmt.Errorf("%s is not an IBEX35 member", raw)
	}
	if v, ok := s.analyses.Get(in.Symbol); ok {
		return v.(*Analysis), http.StatusOK, nil
	}

	days := s.cfg.Analysis.HistoryDays
	if days <= 0 {
		days = 730
	}
	to := utils.NowMadrid()
	series, err := s.app.Source.HistoricalSeries(ctx, in.Symbol, to.AddDate(0, 0, -days), to)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("symbol", in.Symbol).Msg("history fetch failed")
		return nil, http.StatusBadGateway, fmt.Errorf("history unavailable for %s", in.Symbol)
	}
	if len(series) == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("no history for %s", in.Symbol)
	}

	period := s.cfg.Analysis.RSIPeriod
	if period <= 0 {
		period = 14
	}
	horizon := s.cfg.Analysis.ForecastHorizonDays
	if horizon <= 0 {
		horizon = 365
	}

	cfg := chart.DefaultConfig()
	a := &Analysis{
		Instrument: in,
		Indicators: technical.Compute(in.Symbol, series, period),
		Charts:     make(map[string]string, 3),
	}
	a.Charts["price"] = chart.Price(in.Name, a.Indicators, cfg)
	a.Charts["rsi"] = chart.RSI(in.Name, a.Indicators, cfg)

	fc, err := forecast.Forecast(in.Symbol, series, horizon)
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
	case err != nil:
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("symbol", in.Symbol).Msg("forecast failed")
	default:
		a.Forecast = fc
		a.Charts["forecast"] = chart.Forecast(in.Name, fc, cfg)
	}

	if f, err := s.app.Source.Fundamentals(ctx, in.Symbol); err == nil {
		a.Fundamentals = f
		v := fundamental.ComputeValuation(f, fundamental.DefaultDDMParams)
		a.Valuation = &v
	} else {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("symbol", in.Symbol).Msg("fundamentals unavailable")
	}

	s.analyses.Set(in.Symbol, a)
	return a, http.StatusOK, nil
}
