package handlers

import (
	"net/http"

	"autotrader/internal/models"
)

// RiskHandler обрабатывает запросы журнала риск-событий.
//
// Endpoints:
// - GET /api/v1/risk?severity=critical&limit=50 - последние события
type RiskHandler struct {
	events RiskEventStore
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(events RiskEventStore) *RiskHandler {
	return &RiskHandler{events: events}
}

// GetRiskEvents возвращает последние риск-события, опционально
// отфильтрованные по важности.
//
// GET /api/v1/risk?severity=info|warning|critical&limit=50
//
// Response 200 OK:
//
//	[
//	  {
//	    "session_id": "session_abc",
//	    "event_type": "daily_loss_limit",
//	    "severity": "critical",
//	    "description": "daily loss limit reached",
//	    "created_at": "2026-02-10T14:32:00Z"
//	  }
//	]
//
// Response 400 Bad Request:
//
//	{"error": "invalid severity"}
func (h *RiskHandler) GetRiskEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)

	severity := r.URL.Query().Get("severity")
	switch severity {
	case "", models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
	default:
		respondError(w, http.StatusBadRequest, "invalid severity", nil)
		return
	}

	var (
		events []*models.RiskEvent
		err    error
	)
	if severity == "" {
		events, err = h.events.GetRecent(limit)
	} else {
		events, err = h.events.GetRecentBySeverity(severity, limit)
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get risk events", err)
		return
	}

	if events == nil {
		events = []*models.RiskEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}
