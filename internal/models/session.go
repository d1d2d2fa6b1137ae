package models

import "time"

// Session представляет торговую сессию (один запуск бота)
type Session struct {
	ID            string     `json:"id" db:"id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Status        string     `json:"status" db:"status"` // active, completed, emergency_stopped
	EmergencyStop bool       `json:"emergency_stop" db:"emergency_stop"`
	TotalTrades   int        `json:"total_trades" db:"total_trades"`
	TotalPnl      float64    `json:"total_pnl" db:"total_pnl"`
	Metadata      string     `json:"metadata,omitempty" db:"metadata"`
}

// Статусы сессии
const (
	SessionStatusActive           = "active"
	SessionStatusCompleted        = "completed"
	SessionStatusEmergencyStopped = "emergency_stopped"
)

// IsOpen возвращает true, если сессия еще не завершена
func (s *Session) IsOpen() bool {
	return s.Status == SessionStatusActive
}
