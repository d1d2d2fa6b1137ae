package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"autotrader/internal/models"
)

// ============================================================
// PerformanceRepository Tests
// ============================================================

func TestPerformanceRepositoryGetDailyStats(t *testing.T) {
	tests := []struct {
		name            string
		mockSetup       func(mock sqlmock.Sqlmock)
		expectedTrades  int
		expectedPnl     float64
		expectedWinRate float64
	}{
		{
			name: "day with trades",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM trades`).
					WithArgs(models.TradeStatusClosed, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"total", "wins", "losses", "pnl"}).
						AddRow(4, 3, 1, 25.0))
			},
			expectedTrades:  4,
			expectedPnl:     25.0,
			expectedWinRate: 75.0,
		},
		{
			// День без сделок: COALESCE дает нули, а не NULL
			name: "empty day",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM trades`).
					WithArgs(models.TradeStatusClosed, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"total", "wins", "losses", "pnl"}).
						AddRow(0, 0, 0, 0.0))
			},
			expectedTrades:  0,
			expectedPnl:     0,
			expectedWinRate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewPerformanceRepository(db)
			stats, err := repo.GetDailyStats(time.Now())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if stats.TotalTrades != tt.expectedTrades {
				t.Errorf("expected %d trades, got %d", tt.expectedTrades, stats.TotalTrades)
			}
			if stats.TotalPnl != tt.expectedPnl {
				t.Errorf("expected pnl %v, got %v", tt.expectedPnl, stats.TotalPnl)
			}
			if stats.WinRate != tt.expectedWinRate {
				t.Errorf("expected win rate %v, got %v", tt.expectedWinRate, stats.WinRate)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestPerformanceRepositoryGetSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	from := time.Now().AddDate(0, 0, -7)
	to := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs(models.TradeStatusClosed, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"total", "wins", "losses", "pnl", "avg_win", "avg_loss", "best", "worst"}).
			AddRow(5, 3, 2, 30.0, 20.0, -15.0, 25.0, -20.0))

	// Серия PNL для расчета просадки: пик 25, затем -20 и -5
	mock.ExpectQuery(`SELECT COALESCE\(pnl, 0\)`).
		WithArgs(models.TradeStatusClosed, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"pnl"}).
			AddRow(25.0).AddRow(-20.0).AddRow(-5.0).AddRow(15.0).AddRow(15.0))

	repo := NewPerformanceRepository(db)
	summary, err := repo.GetSummary(from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalTrades != 5 {
		t.Errorf("expected 5 trades, got %d", summary.TotalTrades)
	}
	if summary.WinRate != 60.0 {
		t.Errorf("expected win rate 60, got %v", summary.WinRate)
	}
	// Накопленный PNL: 25, 5, 0, 15, 30. Пик 25, минимум после пика 0.
	if summary.MaxDrawdown != 25.0 {
		t.Errorf("expected max drawdown 25, got %v", summary.MaxDrawdown)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPerformanceRepositoryRollupDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	day := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs(models.TradeStatusClosed, dayStart, dayStart.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "wins", "losses", "pnl", "avg_win", "avg_loss", "best", "worst"}).
			AddRow(3, 2, 1, 12.5, 10.0, -7.5, 15.0, -7.5))

	mock.ExpectQuery(`SELECT COALESCE\(pnl, 0\)`).
		WithArgs(models.TradeStatusClosed, dayStart, dayStart.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"pnl"}).
			AddRow(15.0).AddRow(-7.5).AddRow(5.0))

	mock.ExpectExec(`INSERT INTO performance_metrics`).
		WithArgs(dayStart, 3, 2, 1, 12.5, sqlmock.AnyArg(), 10.0, -7.5, 7.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPerformanceRepository(db)
	if err := repo.RollupDay(day); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStoreCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	// Порядок удаления фиксирован: trades, sessions, risk_events
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM trades`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM risk_events`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	store := NewStore(db)
	result, err := store.Cleanup(30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trades != 10 || result.Sessions != 3 || result.RiskEvents != 7 {
		t.Errorf("unexpected cleanup result: %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
