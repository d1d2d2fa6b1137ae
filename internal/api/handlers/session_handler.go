package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"autotrader/internal/models"
	"autotrader/internal/repository"
)

// SessionStore читает сессии из хранилища
type SessionStore interface {
	GetActive() (*models.Session, error)
	GetRecent(limit int) ([]*models.Session, error)
}

// TradeStore читает сделки из хранилища
type TradeStore interface {
	GetBySession(sessionID string) ([]*models.Trade, error)
	GetRecent(limit int) ([]*models.Trade, error)
}

// RiskEventStore читает журнал риск-событий
type RiskEventStore interface {
	GetBySession(sessionID string) ([]*models.RiskEvent, error)
	GetRecent(limit int) ([]*models.RiskEvent, error)
	GetRecentBySeverity(severity string, limit int) ([]*models.RiskEvent, error)
}

// SessionHandler обрабатывает запросы по сессиям и их истории.
//
// Endpoints:
// - GET /api/v1/session - активная сессия со сделками и риск-событиями
// - GET /api/v1/sessions?limit=20 - последние сессии
type SessionHandler struct {
	sessions SessionStore
	trades   TradeStore
	events   RiskEventStore
}

// NewSessionHandler создает новый SessionHandler
func NewSessionHandler(sessions SessionStore, trades TradeStore, events RiskEventStore) *SessionHandler {
	return &SessionHandler{sessions: sessions, trades: trades, events: events}
}

// SessionDetail - сессия вместе со связанными записями
type SessionDetail struct {
	Session    *models.Session     `json:"session"`
	Trades     []*models.Trade     `json:"trades"`
	RiskEvents []*models.RiskEvent `json:"risk_events"`
}

// GetSession возвращает активную сессию со всеми ее сделками
// и риск-событиями.
//
// GET /api/v1/session
//
// Response 200 OK:
//
//	{
//	  "session": {"id": "session_abc", "status": "active", ...},
//	  "trades": [...],
//	  "risk_events": [...]
//	}
//
// Response 404 Not Found:
//
//	{"error": "no active session"}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetActive()
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "no active session", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get session", err)
		return
	}

	trades, err := h.trades.GetBySession(session.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session trades", err)
		return
	}

	events, err := h.events.GetBySession(session.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get session risk events", err)
		return
	}

	if trades == nil {
		trades = []*models.Trade{}
	}
	if events == nil {
		events = []*models.RiskEvent{}
	}

	respondJSON(w, http.StatusOK, SessionDetail{
		Session:    session,
		Trades:     trades,
		RiskEvents: events,
	})
}

// GetSessions возвращает последние сессии.
//
// GET /api/v1/sessions?limit=20
//
// Query Parameters:
// - limit (optional): количество сессий (по умолчанию 20, максимум 100)
func (h *SessionHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	sessions, err := h.sessions.GetRecent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get sessions", err)
		return
	}

	if sessions == nil {
		sessions = []*models.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

// parseLimit читает query параметр limit с значением по умолчанию
// и верхней границей
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
			if limit > max {
				limit = max
			}
		}
	}
	return limit
}
