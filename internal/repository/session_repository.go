package repository

import (
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/models"
)

// Ошибки репозитория сессий
var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository - работа с таблицей sessions
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository создает новый экземпляр репозитория
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create создает запись о новой сессии
func (r *SessionRepository) Create(session *models.Session) error {
	query := `
		INSERT INTO sessions (id, created_at, status, emergency_stop, total_trades, total_pnl, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	_, err := r.db.Exec(
		query,
		session.ID,
		session.CreatedAt,
		session.Status,
		session.EmergencyStop,
		session.TotalTrades,
		session.TotalPnl,
		session.Metadata,
	)

	return err
}

// GetByID возвращает сессию по ID
func (r *SessionRepository) GetByID(id string) (*models.Session, error) {
	query := `
		SELECT id, created_at, ended_at, status, emergency_stop, total_trades, total_pnl, metadata
		FROM sessions
		WHERE id = $1`

	session := &models.Session{}
	err := r.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.CreatedAt,
		&session.EndedAt,
		&session.Status,
		&session.EmergencyStop,
		&session.TotalTrades,
		&session.TotalPnl,
		&session.Metadata,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

// GetActive возвращает последнюю незавершенную сессию.
// Если активной сессии нет, возвращает ErrSessionNotFound.
func (r *SessionRepository) GetActive() (*models.Session, error) {
	query := `
		SELECT id, created_at, ended_at, status, emergency_stop, total_trades, total_pnl, metadata
		FROM sessions
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1`

	session := &models.Session{}
	err := r.db.QueryRow(query, models.SessionStatusActive).Scan(
		&session.ID,
		&session.CreatedAt,
		&session.EndedAt,
		&session.Status,
		&session.EmergencyStop,
		&session.TotalTrades,
		&session.TotalPnl,
		&session.Metadata,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

// GetRecent возвращает последние N сессий
func (r *SessionRepository) GetRecent(limit int) ([]*models.Session, error) {
	query := `
		SELECT id, created_at, ended_at, status, emergency_stop, total_trades, total_pnl, metadata
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session := &models.Session{}
		err := rows.Scan(
			&session.ID,
			&session.CreatedAt,
			&session.EndedAt,
			&session.Status,
			&session.EmergencyStop,
			&session.TotalTrades,
			&session.TotalPnl,
			&session.Metadata,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// End завершает сессию: агрегирует итоги по сделкам и записывает
// их вместе с финальным статусом в одной транзакции.
// Повторный вызов для уже завершенной сессии возвращает ErrSessionNotFound.
func (r *SessionRepository) End(id string, status string, emergencyStop bool) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Итоги считаются из trades, а не из счетчиков в памяти,
	// чтобы результат был корректен и после аварийного рестарта.
	aggregateQuery := `
		SELECT COUNT(*), COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE session_id = $1 AND status = $2`

	var totalTrades int
	var totalPnl float64
	err = tx.QueryRow(aggregateQuery, id, models.TradeStatusClosed).Scan(&totalTrades, &totalPnl)
	if err != nil {
		return err
	}

	updateQuery := `
		UPDATE sessions
		SET ended_at = $1, status = $2, emergency_stop = $3, total_trades = $4, total_pnl = $5
		WHERE id = $6 AND status = $7`

	result, err := tx.Exec(
		updateQuery,
		time.Now().UTC(),
		status,
		emergencyStop,
		totalTrades,
		totalPnl,
		id,
		models.SessionStatusActive,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return tx.Commit()
}

// DeleteOlderThan удаляет сессии, завершенные раньше указанной даты
func (r *SessionRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество сессий
func (r *SessionRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM sessions`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
