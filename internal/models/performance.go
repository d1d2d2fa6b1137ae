package models

import "time"

// DailyStats представляет агрегированную статистику за один день.
// Для дней без сделок все поля нулевые (не NULL).
type DailyStats struct {
	Date          time.Time `json:"date"`
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	TotalPnl      float64   `json:"total_pnl"`
	WinRate       float64   `json:"win_rate"` // процент прибыльных сделок
}

// PerformanceSummary представляет сводку результатов за период
type PerformanceSummary struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	TotalPnl      float64   `json:"total_pnl"`
	WinRate       float64   `json:"win_rate"`
	AvgWin        float64   `json:"avg_win"`
	AvgLoss       float64   `json:"avg_loss"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	BestTrade     float64   `json:"best_trade"`
	WorstTrade    float64   `json:"worst_trade"`
}
