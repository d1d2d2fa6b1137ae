package repository

import (
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

const tradeColumns = `id, session_id, symbol, side, quantity, entry_price, exit_price, stop_loss, take_profit,
		order_id, order_link_id, status, created_at, closed_at, pnl, decision_reasoning, confidence, emergency_close, metadata`

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func scanTrade(scanner interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	trade := &models.Trade{}
	err := scanner.Scan(
		&trade.ID,
		&trade.SessionID,
		&trade.Symbol,
		&trade.Side,
		&trade.Quantity,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.StopLoss,
		&trade.TakeProfit,
		&trade.OrderID,
		&trade.OrderLinkID,
		&trade.Status,
		&trade.CreatedAt,
		&trade.ClosedAt,
		&trade.Pnl,
		&trade.DecisionReasoning,
		&trade.Confidence,
		&trade.EmergencyClose,
		&trade.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// Create создает запись о сделке
func (r *TradeRepository) Create(trade *models.Trade) error {
	query := `
		INSERT INTO trades (id, session_id, symbol, side, quantity, entry_price, exit_price, stop_loss, take_profit,
			order_id, order_link_id, status, created_at, closed_at, pnl, decision_reasoning, confidence, emergency_close, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		query,
		trade.ID,
		trade.SessionID,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.StopLoss,
		trade.TakeProfit,
		trade.OrderID,
		trade.OrderLinkID,
		trade.Status,
		trade.CreatedAt,
		trade.ClosedAt,
		trade.Pnl,
		trade.DecisionReasoning,
		trade.Confidence,
		trade.EmergencyClose,
		trade.Metadata,
	)

	return err
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id string) (*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetOpenBySession возвращает незавершенную сделку сессии.
// В сессии не может быть больше одной незавершенной сделки.
func (r *TradeRepository) GetOpenBySession(sessionID string) (*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE session_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	trade, err := scanTrade(r.db.QueryRow(query, sessionID, models.TradeStatusPending, models.TradeStatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetAnyOpen возвращает незавершенную сделку независимо от сессии.
// Нужна при восстановлении: процесс мог перезапуститься, оставив
// сделку прошлой сессии открытой.
func (r *TradeRepository) GetAnyOpen() (*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status IN ($1, $2)
		ORDER BY created_at DESC
		LIMIT 1`

	trade, err := scanTrade(r.db.QueryRow(query, models.TradeStatusPending, models.TradeStatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetBySession возвращает все сделки сессии
func (r *TradeRepository) GetBySession(sessionID string) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE session_id = $1
		ORDER BY created_at DESC`

	return r.queryTrades(query, sessionID)
}

// GetRecent возвращает последние N сделок
func (r *TradeRepository) GetRecent(limit int) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryTrades(query, limit)
}

// GetClosedInRange возвращает закрытые сделки за период (по времени закрытия)
func (r *TradeRepository) GetClosedInRange(from, to time.Time) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = $1 AND closed_at >= $2 AND closed_at < $3
		ORDER BY closed_at ASC`

	return r.queryTrades(query, models.TradeStatusClosed, from, to)
}

func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]*models.Trade, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// UpdateStatus обновляет статус сделки.
// Обновление идемпотентно: повторная запись того же статуса не ошибка,
// но отсутствующая сделка возвращает ErrTradeNotFound.
func (r *TradeRepository) UpdateStatus(id string, status string) error {
	query := `
		UPDATE trades
		SET status = $1
		WHERE id = $2`

	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// UpdateProtection обновляет уровни stop-loss и take-profit
func (r *TradeRepository) UpdateProtection(id string, stopLoss, takeProfit float64) error {
	query := `
		UPDATE trades
		SET stop_loss = $1, take_profit = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, stopLoss, takeProfit, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// Close записывает результат закрытия сделки
func (r *TradeRepository) Close(id string, exitPrice, pnl float64, status string, emergencyClose bool) error {
	query := `
		UPDATE trades
		SET exit_price = $1, pnl = $2, status = $3, emergency_close = $4, closed_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(query, exitPrice, pnl, status, emergencyClose, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// DeleteOlderThan удаляет сделки старше указанной даты
func (r *TradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM trades WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество сделок
func (r *TradeRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM trades`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
