package websocket

import (
	"time"

	"autotrader/internal/models"
	"autotrader/internal/news"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTradeOpened - открыта новая сделка
	MessageTypeTradeOpened MessageType = "tradeOpened"

	// MessageTypeTradeUpdate - обновление открытой сделки
	// (текущая цена, нереализованный PnL, защитные уровни)
	MessageTypeTradeUpdate MessageType = "tradeUpdate"

	// MessageTypeTradeClosed - сделка завершена
	MessageTypeTradeClosed MessageType = "tradeClosed"

	// MessageTypeRiskEvent - событие риск-контроля
	MessageTypeRiskEvent MessageType = "riskEvent"

	// MessageTypeSessionStatus - изменение статуса сессии
	MessageTypeSessionStatus MessageType = "sessionStatus"

	// MessageTypeSentiment - обновление новостного фона
	MessageTypeSentiment MessageType = "sentimentUpdate"
)

// BaseMessage - общая часть всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TradeMessage - сообщение о сделке (открытие, обновление, закрытие)
type TradeMessage struct {
	BaseMessage
	Data *TradeData `json:"data"`
}

// TradeData - срез сделки для фронтенда
type TradeData struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"session_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Status     string   `json:"status"`
	Quantity   float64  `json:"quantity"`
	EntryPrice float64  `json:"entry_price"`
	ExitPrice  *float64 `json:"exit_price,omitempty"`
	StopLoss   float64  `json:"stop_loss"`
	TakeProfit float64  `json:"take_profit"`
	Pnl        *float64 `json:"pnl,omitempty"`

	// Для открытых сделок: текущая цена и нереализованный PnL
	MarkPrice     float64 `json:"mark_price,omitempty"`
	UnrealizedPnl float64 `json:"unrealized_pnl_percent,omitempty"`
}

// RiskEventMessage - сообщение о событии риск-контроля
type RiskEventMessage struct {
	BaseMessage
	Data *RiskEventData `json:"data"`
}

// RiskEventData - данные риск-события
type RiskEventData struct {
	SessionID   string    `json:"session_id"`
	TradeID     string    `json:"trade_id,omitempty"`
	EventType   string    `json:"event_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionStatusMessage - сообщение об изменении статуса сессии
type SessionStatusMessage struct {
	BaseMessage
	Data *SessionData `json:"data"`
}

// SessionData - срез сессии для фронтенда
type SessionData struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	EmergencyStop bool    `json:"emergency_stop"`
	TotalTrades   int     `json:"total_trades"`
	TotalPnl      float64 `json:"total_pnl"`
}

// SentimentMessage - сообщение об обновлении новостного фона
type SentimentMessage struct {
	BaseMessage
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
	Headlines int     `json:"headlines"`
}

// ============================================================
// Фабрики сообщений
// ============================================================

func tradeData(trade *models.Trade) *TradeData {
	return &TradeData{
		ID:         trade.ID,
		SessionID:  trade.SessionID,
		Symbol:     trade.Symbol,
		Side:       trade.Side,
		Status:     trade.Status,
		Quantity:   trade.Quantity,
		EntryPrice: trade.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		StopLoss:   trade.StopLoss,
		TakeProfit: trade.TakeProfit,
		Pnl:        trade.Pnl,
	}
}

// NewTradeOpenedMessage создает сообщение об открытии сделки
func NewTradeOpenedMessage(trade *models.Trade) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTradeOpened, Timestamp: time.Now()},
		Data:        tradeData(trade),
	}
}

// NewTradeUpdateMessage создает сообщение с текущим состоянием
// открытой сделки по рыночной цене mark
func NewTradeUpdateMessage(trade *models.Trade, mark float64) *TradeMessage {
	data := tradeData(trade)
	data.MarkPrice = mark
	data.UnrealizedPnl = trade.UnrealizedPnlPercent(mark)
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTradeUpdate, Timestamp: time.Now()},
		Data:        data,
	}
}

// NewTradeClosedMessage создает сообщение о завершении сделки
func NewTradeClosedMessage(trade *models.Trade) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTradeClosed, Timestamp: time.Now()},
		Data:        tradeData(trade),
	}
}

// NewRiskEventMessage создает сообщение о риск-событии
func NewRiskEventMessage(event *models.RiskEvent) *RiskEventMessage {
	return &RiskEventMessage{
		BaseMessage: BaseMessage{Type: MessageTypeRiskEvent, Timestamp: time.Now()},
		Data: &RiskEventData{
			SessionID:   event.SessionID,
			TradeID:     event.TradeID,
			EventType:   event.EventType,
			Severity:    event.Severity,
			Description: event.Description,
			CreatedAt:   event.CreatedAt,
		},
	}
}

// NewSessionStatusMessage создает сообщение о статусе сессии
func NewSessionStatusMessage(session *models.Session) *SessionStatusMessage {
	return &SessionStatusMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSessionStatus, Timestamp: time.Now()},
		Data: &SessionData{
			ID:            session.ID,
			Status:        session.Status,
			EmergencyStop: session.EmergencyStop,
			TotalTrades:   session.TotalTrades,
			TotalPnl:      session.TotalPnl,
		},
	}
}

// NewSentimentMessage создает сообщение о новостном фоне
func NewSentimentMessage(snap *news.Snapshot) *SentimentMessage {
	return &SentimentMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSentiment, Timestamp: time.Now()},
		Score:       snap.Score,
		Label:       snap.Label,
		Headlines:   snap.Headlines,
	}
}
