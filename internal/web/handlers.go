package web

import (
	"encoding/json"
	"net/http"

	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/usecase"
	"go.uber.org/zap"
)

func (s *Server) handleAllLevels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.AllLevels())
}

func (s *Server) handleVisibleLevels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.VisibleLevels())
}

func (s *Server) handleUniqueLevels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.UniqueLevels())
}

func (s *Server) handleToggleLevel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "missing level id")
		return
	}
	s.aggregator.ToggleLevelVisibility(id)
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// zoneView decorates a zone with its display tier.
type zoneView struct {
	domain.ConfluenceZone
	StrengthLabel string `json:"strength_label"`
	StrengthColor string `json:"strength_color"`
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones := s.aggregator.Zones()
	views := make([]zoneView, 0, len(zones))
	for _, z := range zones {
		views = append(views, zoneView{
			ConfluenceZone: z,
			StrengthLabel:  usecase.StrengthLabel(z.Strength),
			StrengthColor:  usecase.StrengthColor(z.Strength),
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.ByTimeframe())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.Config())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.VisibilityConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid config payload")
		return
	}
	s.aggregator.SetConfig(cfg)
	if err := s.settings.SaveVisibilityConfig(r.Context(), &cfg); err != nil {
		s.logger.Error("failed to persist visibility config", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSmartDefaults(w http.ResponseWriter, r *http.Request) {
	tf := domain.Timeframe(r.URL.Query().Get("timeframe"))
	if tf == "" {
		s.writeError(w, http.StatusBadRequest, "missing timeframe")
		return
	}

	// Derive the B/C swing relationship from the timeframe's pivot
	// metadata; the swing endpoint marks which extreme is the most recent.
	var pts usecase.SwingPoints
	if result, ok := s.aggregator.ByTimeframe()[tf]; ok && result.PivotHigh != nil && result.PivotLow != nil {
		highPrice := result.PivotHigh.Price
		lowPrice := result.PivotLow.Price
		if result.SwingEndpoint == "high" {
			pts.C = &highPrice
			pts.B = &lowPrice
		} else if result.SwingEndpoint == "low" {
			pts.C = &lowPrice
			pts.B = &highPrice
		}
	}

	cfg := usecase.ApplySmartDefaults(s.aggregator.Config(), tf, pts)
	s.aggregator.SetConfig(cfg)
	if err := s.settings.SaveVisibilityConfig(r.Context(), &cfg); err != nil {
		s.logger.Error("failed to persist visibility config", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetSwingSettings(w http.ResponseWriter, r *http.Request) {
	tf := domain.Timeframe(r.PathValue("timeframe"))
	settings, err := s.settings.LoadSwingSettings(r.Context(), tf)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load swing settings")
		return
	}
	if settings == nil {
		settings = &domain.SwingSettings{Timeframe: tf, Lookback: usecase.DefaultLookback, ShowLines: true}
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSwingSettings(w http.ResponseWriter, r *http.Request) {
	tf := domain.Timeframe(r.PathValue("timeframe"))
	var settings domain.SwingSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid swing settings payload")
		return
	}
	settings.Timeframe = tf
	if err := s.settings.SaveSwingSettings(r.Context(), &settings); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save swing settings")
		return
	}
	s.aggregator.Refresh()
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetSymbol(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	s.aggregator.SetSymbol(payload.Symbol)
	s.writeJSON(w, http.StatusOK, map[string]string{"symbol": payload.Symbol})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.aggregator.Refresh()
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"refreshing": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"symbol":  s.aggregator.Symbol(),
		"loading": s.aggregator.IsLoading(),
		"errors":  s.aggregator.Errors(),
	}
	if price, ok := s.aggregator.LastPrice(); ok {
		status["last_price"] = price
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
