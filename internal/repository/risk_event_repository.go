package repository

import (
	"database/sql"
	"time"

	"autotrader/internal/models"
)

// RiskEventRepository - работа с таблицей risk_events
type RiskEventRepository struct {
	db *sql.DB
}

// NewRiskEventRepository создает новый экземпляр репозитория
func NewRiskEventRepository(db *sql.DB) *RiskEventRepository {
	return &RiskEventRepository{db: db}
}

// Create создает запись о событии риск-контроля
func (r *RiskEventRepository) Create(event *models.RiskEvent) error {
	query := `
		INSERT INTO risk_events (session_id, trade_id, event_type, severity, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		event.SessionID,
		event.TradeID,
		event.EventType,
		event.Severity,
		event.Description,
		event.CreatedAt,
	).Scan(&event.ID)
}

// GetBySession возвращает все события сессии
func (r *RiskEventRepository) GetBySession(sessionID string) ([]*models.RiskEvent, error) {
	query := `
		SELECT id, session_id, trade_id, event_type, severity, description, created_at
		FROM risk_events
		WHERE session_id = $1
		ORDER BY created_at DESC`

	return r.queryEvents(query, sessionID)
}

// GetRecent возвращает последние события независимо от важности
func (r *RiskEventRepository) GetRecent(limit int) ([]*models.RiskEvent, error) {
	query := `
		SELECT id, session_id, trade_id, event_type, severity, description, created_at
		FROM risk_events
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryEvents(query, limit)
}

// GetRecentBySeverity возвращает последние события указанной важности
func (r *RiskEventRepository) GetRecentBySeverity(severity string, limit int) ([]*models.RiskEvent, error) {
	query := `
		SELECT id, session_id, trade_id, event_type, severity, description, created_at
		FROM risk_events
		WHERE severity = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryEvents(query, severity, limit)
}

func (r *RiskEventRepository) queryEvents(query string, args ...interface{}) ([]*models.RiskEvent, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.RiskEvent
	for rows.Next() {
		event := &models.RiskEvent{}
		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.TradeID,
			&event.EventType,
			&event.Severity,
			&event.Description,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// DeleteOlderThan удаляет события старше указанной даты
func (r *RiskEventRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM risk_events WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
