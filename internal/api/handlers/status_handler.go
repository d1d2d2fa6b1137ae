package handlers

import (
	"net/http"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/internal/news"
)

// BotEngine - срез торгового движка, нужный API
type BotEngine interface {
	IsRunning() bool
	Session() *models.Session
	CurrentTrade() *models.Trade
	Risk() *bot.RiskGate
}

// SentimentReader отдает последний срез новостного фона
type SentimentReader interface {
	Snapshot() *news.Snapshot
}

// StatusHandler обрабатывает запросы текущего состояния бота.
//
// Endpoints:
// - GET /api/v1/status - живое состояние: сессия, сделка, риск, сентимент
type StatusHandler struct {
	engine BotEngine
	news   SentimentReader
}

// NewStatusHandler создает новый StatusHandler
func NewStatusHandler(engine BotEngine, news SentimentReader) *StatusHandler {
	return &StatusHandler{engine: engine, news: news}
}

// StatusResponse - полный снимок состояния бота
type StatusResponse struct {
	Running   bool            `json:"running"`
	Session   *models.Session `json:"session"`
	Trade     *models.Trade   `json:"trade"`
	Risk      bot.RiskStatus  `json:"risk"`
	Sentiment *news.Snapshot  `json:"sentiment"`
}

// GetStatus возвращает живое состояние бота.
//
// GET /api/v1/status
//
// Response 200 OK:
//
//	{
//	  "running": true,
//	  "session": {"id": "session_abc", "status": "active", ...},
//	  "trade": {"id": "trade_abc", "symbol": "BTCUSDT", ...},
//	  "risk": {"daily_trade_count": 2, "emergency_stop": false, ...},
//	  "sentiment": {"score": 0.4, "label": "bullish", ...}
//	}
//
// Поля session, trade и sentiment равны null, когда сессия не идет,
// позиции нет или новости еще не собраны.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", nil)
		return
	}

	resp := StatusResponse{
		Running: h.engine.IsRunning(),
		Session: h.engine.Session(),
		Trade:   h.engine.CurrentTrade(),
		Risk:    h.engine.Risk().Status(),
	}
	if h.news != nil {
		resp.Sentiment = h.news.Snapshot()
	}

	respondJSON(w, http.StatusOK, resp)
}
