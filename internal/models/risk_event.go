package models

import "time"

// RiskEvent представляет событие риск-контроля
// (срабатывание лимита, аварийное закрытие и т.д.)
type RiskEvent struct {
	ID          int       `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	TradeID     string    `json:"trade_id,omitempty" db:"trade_id"`
	EventType   string    `json:"event_type" db:"event_type"`
	Severity    string    `json:"severity" db:"severity"` // info, warning, critical
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Уровни важности события
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Типы событий риск-контроля
const (
	RiskEventDailyLossLimit       = "daily_loss_limit"
	RiskEventTradeLimitReached    = "trade_limit_reached"
	RiskEventEmergencyStop        = "emergency_stop"
	RiskEventEmergencyCloseFailed = "emergency_close_failed"
	RiskEventStopLossTriggered    = "stop_loss_triggered"
)
