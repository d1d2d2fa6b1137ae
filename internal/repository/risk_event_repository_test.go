package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"autotrader/internal/models"
)

// ============================================================
// RiskEventRepository Tests
// ============================================================

func TestRiskEventRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	event := &models.RiskEvent{
		SessionID:   "session_20260828_120000",
		TradeID:     "trade_20260828_1a2b3c",
		EventType:   models.RiskEventDailyLossLimit,
		Severity:    models.SeverityCritical,
		Description: "daily loss limit reached: -52.30 USDT",
	}

	mock.ExpectQuery(`INSERT INTO risk_events`).
		WithArgs(event.SessionID, event.TradeID, event.EventType, event.Severity, event.Description, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewRiskEventRepository(db)
	if err := repo.Create(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != 7 {
		t.Errorf("ID = %d, want 7", event.ID)
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on empty timestamp")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRiskEventRepositoryCreateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO risk_events`).
		WillReturnError(errors.New("database error"))

	repo := NewRiskEventRepository(db)
	if err := repo.Create(&models.RiskEvent{SessionID: "session_broken"}); err == nil {
		t.Error("expected error but got none")
	}
}

func TestRiskEventRepositoryGetBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "trade_id", "event_type", "severity", "description", "created_at"}).
		AddRow(2, "session_a", "", models.RiskEventEmergencyStop, models.SeverityCritical, "emergency stop", now).
		AddRow(1, "session_a", "trade_x", models.RiskEventStopLossTriggered, models.SeverityWarning, "stop loss hit", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT id, session_id, trade_id, event_type, severity, description, created_at`).
		WithArgs("session_a").
		WillReturnRows(rows)

	repo := NewRiskEventRepository(db)
	events, err := repo.GetBySession("session_a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventType != models.RiskEventEmergencyStop {
		t.Errorf("EventType = %q, want %q", events[0].EventType, models.RiskEventEmergencyStop)
	}
	if events[1].TradeID != "trade_x" {
		t.Errorf("TradeID = %q, want trade_x", events[1].TradeID)
	}
}

func TestRiskEventRepositoryGetRecentBySeverity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "session_id", "trade_id", "event_type", "severity", "description", "created_at"}).
		AddRow(5, "session_b", "", models.RiskEventTradeLimitReached, models.SeverityWarning, "trade limit", time.Now().UTC())

	mock.ExpectQuery(`WHERE severity = \$1`).
		WithArgs(models.SeverityWarning, 10).
		WillReturnRows(rows)

	repo := NewRiskEventRepository(db)
	events, err := repo.GetRecentBySeverity(models.SeverityWarning, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Severity != models.SeverityWarning {
		t.Errorf("unexpected result: %+v", events)
	}
}

func TestRiskEventRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -90)
	mock.ExpectExec(`DELETE FROM risk_events WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewRiskEventRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
}
