package repository

import (
	"database/sql"
	"time"

	"autotrader/internal/models"
)

// PerformanceRepository - расчет статистики результатов из таблицы trades
//
// Все агрегаты считаются через COALESCE: для периодов без сделок
// возвращаются нулевые значения, а не NULL.
type PerformanceRepository struct {
	db *sql.DB
}

// NewPerformanceRepository создает новый экземпляр репозитория
func NewPerformanceRepository(db *sql.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// GetDailyStats возвращает статистику закрытых сделок за один день.
// day интерпретируется как начало суток UTC.
func (r *PerformanceRepository) GetDailyStats(day time.Time) (*models.DailyStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE status = $1 AND closed_at >= $2 AND closed_at < $3`

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	stats := &models.DailyStats{Date: dayStart}
	err := r.db.QueryRow(query, models.TradeStatusClosed, dayStart, dayEnd).Scan(
		&stats.TotalTrades,
		&stats.WinningTrades,
		&stats.LosingTrades,
		&stats.TotalPnl,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}

	return stats, nil
}

// GetSummary возвращает сводку результатов за период [from, to)
func (r *PerformanceRepository) GetSummary(from, to time.Time) (*models.PerformanceSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0),
			COALESCE(AVG(CASE WHEN pnl > 0 THEN pnl END), 0),
			COALESCE(AVG(CASE WHEN pnl < 0 THEN pnl END), 0),
			COALESCE(MAX(pnl), 0),
			COALESCE(MIN(pnl), 0)
		FROM trades
		WHERE status = $1 AND closed_at >= $2 AND closed_at < $3`

	summary := &models.PerformanceSummary{From: from, To: to}
	err := r.db.QueryRow(query, models.TradeStatusClosed, from, to).Scan(
		&summary.TotalTrades,
		&summary.WinningTrades,
		&summary.LosingTrades,
		&summary.TotalPnl,
		&summary.AvgWin,
		&summary.AvgLoss,
		&summary.BestTrade,
		&summary.WorstTrade,
	)
	if err != nil {
		return nil, err
	}

	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades) * 100
	}

	drawdown, err := r.maxDrawdown(from, to)
	if err != nil {
		return nil, err
	}
	summary.MaxDrawdown = drawdown

	return summary, nil
}

// RollupDay пересчитывает агрегат за день и сохраняет его в
// performance_metrics. Повторный вызов переписывает строку целиком:
// таблица - производный снимок, источником истины остается trades.
func (r *PerformanceRepository) RollupDay(day time.Time) error {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	summary, err := r.GetSummary(dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO performance_metrics
			(date, total_trades, winning_trades, losing_trades, total_pnl,
			 win_rate, avg_win, avg_loss, max_drawdown, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (date) DO UPDATE SET
			total_trades = EXCLUDED.total_trades,
			winning_trades = EXCLUDED.winning_trades,
			losing_trades = EXCLUDED.losing_trades,
			total_pnl = EXCLUDED.total_pnl,
			win_rate = EXCLUDED.win_rate,
			avg_win = EXCLUDED.avg_win,
			avg_loss = EXCLUDED.avg_loss,
			max_drawdown = EXCLUDED.max_drawdown,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(query,
		dayStart,
		summary.TotalTrades,
		summary.WinningTrades,
		summary.LosingTrades,
		summary.TotalPnl,
		summary.WinRate,
		summary.AvgWin,
		summary.AvgLoss,
		summary.MaxDrawdown,
		time.Now().UTC(),
	)
	return err
}

// maxDrawdown считает максимальную просадку накопленного PNL
// по закрытым сделкам в хронологическом порядке.
func (r *PerformanceRepository) maxDrawdown(from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(pnl, 0)
		FROM trades
		WHERE status = $1 AND closed_at >= $2 AND closed_at < $3
		ORDER BY closed_at ASC`

	rows, err := r.db.Query(query, models.TradeStatusClosed, from, to)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var cumulative, peak, maxDrawdown float64
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return 0, err
		}

		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if drawdown := peak - cumulative; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	if err = rows.Err(); err != nil {
		return 0, err
	}

	return maxDrawdown, nil
}
