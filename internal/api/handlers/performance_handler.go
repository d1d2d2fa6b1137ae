package handlers

import (
	"net/http"
	"strconv"
	"time"

	"autotrader/internal/models"
)

// PerformanceStore агрегирует результаты торговли
type PerformanceStore interface {
	GetDailyStats(day time.Time) (*models.DailyStats, error)
	GetSummary(from, to time.Time) (*models.PerformanceSummary, error)
}

// PerformanceHandler обрабатывает запросы торговой статистики.
//
// Endpoints:
// - GET /api/v1/performance?days=30 - сводка за период + статистика за сегодня
type PerformanceHandler struct {
	performance PerformanceStore
}

// NewPerformanceHandler создает новый PerformanceHandler
func NewPerformanceHandler(performance PerformanceStore) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// PerformanceResponse - сводка результатов и статистика текущего дня
type PerformanceResponse struct {
	Today   *models.DailyStats         `json:"today"`
	Summary *models.PerformanceSummary `json:"summary"`
}

// GetPerformance возвращает сводку результатов за период.
//
// GET /api/v1/performance?days=30
//
// Query Parameters:
// - days (optional): глубина периода в днях (по умолчанию 30, максимум 365)
//
// Response 200 OK:
//
//	{
//	  "today": {"date": "...", "total_trades": 3, "total_pnl": 12.4, "win_rate": 66.7},
//	  "summary": {"total_trades": 42, "win_rate": 57.1, "max_drawdown": -85.2, ...}
//	}
func (h *PerformanceHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	days := 30
	if s := r.URL.Query().Get("days"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid days parameter", nil)
			return
		}
		days = parsed
		if days > 365 {
			days = 365
		}
	}

	now := time.Now().UTC()

	today, err := h.performance.GetDailyStats(now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get daily stats", err)
		return
	}

	summary, err := h.performance.GetSummary(now.AddDate(0, 0, -days), now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get performance summary", err)
		return
	}

	respondJSON(w, http.StatusOK, PerformanceResponse{
		Today:   today,
		Summary: summary,
	})
}
