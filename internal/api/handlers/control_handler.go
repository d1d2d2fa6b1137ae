package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ControlHandler обрабатывает команды управления сессией.
//
// Endpoints:
// - POST /api/v1/stop - остановить торговую сессию
type ControlHandler struct {
	engine BotEngine
	stop   func(emergency bool)
}

// NewControlHandler создает новый ControlHandler.
// stop инициирует остановку и не должен блокировать: фактическое
// закрытие позиции и завершение сессии выполняет процесс-владелец.
func NewControlHandler(engine BotEngine, stop func(emergency bool)) *ControlHandler {
	return &ControlHandler{engine: engine, stop: stop}
}

// StopRequest - тело запроса остановки
type StopRequest struct {
	Emergency bool `json:"emergency"`
}

// StopResponse - подтверждение принятой остановки
type StopResponse struct {
	Stopping  bool `json:"stopping"`
	Emergency bool `json:"emergency"`
}

// PostStop останавливает торговую сессию.
//
// POST /api/v1/stop
// Body: {"emergency": true} - немедленное аварийное закрытие позиции.
// Пустое тело означает штатную остановку.
//
// Response 202 Accepted: {"stopping": true, "emergency": false}
// Response 409 Conflict: сессия не идет
func (h *ControlHandler) PostStop(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || h.stop == nil {
		respondError(w, http.StatusInternalServerError, "engine not initialized", nil)
		return
	}

	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if !h.engine.IsRunning() {
		respondError(w, http.StatusConflict, "no active trading session", nil)
		return
	}

	h.stop(req.Emergency)
	respondJSON(w, http.StatusAccepted, StopResponse{Stopping: true, Emergency: req.Emergency})
}
