package handlers

import (
	"net/http"

	"autotrader/internal/models"
)

// TradeHandler обрабатывает запросы истории сделок.
//
// Endpoints:
// - GET /api/v1/trades?limit=50 - последние сделки
// - GET /api/v1/trades?session_id=session_abc - сделки конкретной сессии
type TradeHandler struct {
	trades TradeStore
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(trades TradeStore) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetTrades возвращает сделки: последние или по сессии.
//
// GET /api/v1/trades?limit=50&session_id=
//
// Query Parameters:
//   - session_id (optional): вернуть все сделки указанной сессии
//   - limit (optional): количество сделок без фильтра по сессии
//     (по умолчанию 50, максимум 200)
//
// Response 200 OK:
//
//	[
//	  {"id": "trade_abc", "symbol": "BTCUSDT", "side": "buy", "pnl": 12.5, ...}
//	]
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	var (
		trades []*models.Trade
		err    error
	)

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		trades, err = h.trades.GetBySession(sessionID)
	} else {
		trades, err = h.trades.GetRecent(parseLimit(r, 50, 200))
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get trades", err)
		return
	}

	if trades == nil {
		trades = []*models.Trade{}
	}
	respondJSON(w, http.StatusOK, trades)
}
