package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autotrader/internal/models"
)

// Store объединяет все репозитории над одним подключением к БД
type Store struct {
	db *sql.DB

	Sessions    *SessionRepository
	Trades      *TradeRepository
	RiskEvents  *RiskEventRepository
	Performance *PerformanceRepository
}

// NewStore создает хранилище и все репозитории
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		Sessions:    NewSessionRepository(db),
		Trades:      NewTradeRepository(db),
		RiskEvents:  NewRiskEventRepository(db),
		Performance: NewPerformanceRepository(db),
	}
}

// DB возвращает нижележащее подключение (для health check)
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate создает схему БД, если она еще не создана
func (s *Store) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT 'active',
			emergency_stop BOOLEAN NOT NULL DEFAULT FALSE,
			total_trades INTEGER NOT NULL DEFAULT 0,
			total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION,
			stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			order_id TEXT NOT NULL DEFAULT '',
			order_link_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			pnl DOUBLE PRECISION,
			decision_reasoning TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			emergency_close BOOLEAN NOT NULL DEFAULT FALSE,
			metadata TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS performance_metrics (
			date DATE PRIMARY KEY,
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_win DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS risk_events (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			trade_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_risk_events_session ON risk_events(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// ============================================================
// Плоский фасад над репозиториями
// ============================================================
//
// Движок зависит от узкого интерфейса, а не от конкретных
// репозиториев: так его можно тестировать на фейковом хранилище.

// CreateSession создает новую сессию
func (s *Store) CreateSession(session *models.Session) error {
	return s.Sessions.Create(session)
}

// EndSession завершает сессию, агрегируя итоги по сделкам
func (s *Store) EndSession(id, status string, emergencyStop bool) error {
	return s.Sessions.End(id, status, emergencyStop)
}

// SaveTrade сохраняет новую сделку
func (s *Store) SaveTrade(trade *models.Trade) error {
	return s.Trades.Create(trade)
}

// UpdateTradeStatus обновляет статус сделки
func (s *Store) UpdateTradeStatus(id, status string) error {
	return s.Trades.UpdateStatus(id, status)
}

// UpdateTradeProtection обновляет стоп-лосс и тейк-профит сделки
func (s *Store) UpdateTradeProtection(id string, stopLoss, takeProfit float64) error {
	return s.Trades.UpdateProtection(id, stopLoss, takeProfit)
}

// CloseTrade переводит сделку в терминальный статус
func (s *Store) CloseTrade(id string, exitPrice, pnl float64, status string, emergencyClose bool) error {
	return s.Trades.Close(id, exitPrice, pnl, status, emergencyClose)
}

// OpenTrade возвращает незавершенную сделку сессии или nil
func (s *Store) OpenTrade(sessionID string) (*models.Trade, error) {
	trade, err := s.Trades.GetOpenBySession(sessionID)
	if errors.Is(err, ErrTradeNotFound) {
		return nil, nil
	}
	return trade, err
}

// AnyOpenTrade возвращает незавершенную сделку любой сессии или nil.
// Используется при восстановлении после перезапуска.
func (s *Store) AnyOpenTrade() (*models.Trade, error) {
	trade, err := s.Trades.GetAnyOpen()
	if errors.Is(err, ErrTradeNotFound) {
		return nil, nil
	}
	return trade, err
}

// LogRiskEvent записывает риск-событие (append-only)
func (s *Store) LogRiskEvent(event *models.RiskEvent) error {
	return s.RiskEvents.Create(event)
}

// RecordDailyPerformance пересчитывает и сохраняет агрегат за день
func (s *Store) RecordDailyPerformance(day time.Time) error {
	return s.Performance.RollupDay(day)
}

// CleanupResult - итог удаления устаревших данных
type CleanupResult struct {
	Trades     int64 `json:"trades"`
	Sessions   int64 `json:"sessions"`
	RiskEvents int64 `json:"risk_events"`
}

// Cleanup удаляет данные старше retentionDays дней.
// Порядок удаления фиксирован: trades, sessions, risk_events
// (trades ссылаются на sessions). Все в одной транзакции.
func (s *Store) Cleanup(retentionDays int) (*CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &CleanupResult{}

	res, err := tx.Exec(`DELETE FROM trades WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup trades: %w", err)
	}
	result.Trades, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup sessions: %w", err)
	}
	result.Sessions, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM risk_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup risk events: %w", err)
	}
	result.RiskEvents, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}
