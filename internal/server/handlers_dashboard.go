package server

import (
	"net/http"
	"time"
)

func (s *Server) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.aggregator.BuildOverview(queryInt(r, "recent", 10))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleSeverityHistogram(w http.ResponseWriter, r *http.Request) {
	hist, err := s.aggregator.SeverityHistogram(queryUint(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handlePassRateSeries(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if days := queryInt(r, "days", 0); days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}
	series, err := s.aggregator.PassRateSeries(queryUint(r, "project_id"), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleDailyTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.aggregator.DailyTrend(queryUint(r, "project_id"), queryInt(r, "days", 30))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}
