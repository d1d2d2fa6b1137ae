package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"autotrader/internal/config"
	"autotrader/internal/models"
	"autotrader/internal/repository"
)

// statusCommand показывает активную сессию, ее сделки
// и последние риск-события
func statusCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := store.Sessions.GetActive()
	if errors.Is(err, repository.ErrSessionNotFound) {
		fmt.Println("no active session")
		return nil
	}
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("ACTIVE SESSION")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Session", session.ID},
		{"Started", session.CreatedAt.Format(time.RFC3339)},
		{"Status", session.Status},
		{"Trades", session.TotalTrades},
		{"PNL", fmt.Sprintf("%.2f USDT", session.TotalPnl)},
	})
	t.Render()
	fmt.Println()

	trade, err := store.OpenTrade(session.ID)
	if err != nil {
		return err
	}
	if trade == nil {
		fmt.Println("no open trade")
		return nil
	}

	t = table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN TRADE")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Trade", trade.ID},
		{"Symbol", trade.Symbol},
		{"Side", trade.Side},
		{"Quantity", fmt.Sprintf("%v", trade.Quantity)},
		{"Entry", fmt.Sprintf("%.4f", trade.EntryPrice)},
		{"Stop Loss", fmt.Sprintf("%.4f", trade.StopLoss)},
		{"Take Profit", fmt.Sprintf("%.4f", trade.TakeProfit)},
		{"Opened", trade.CreatedAt.Format(time.RFC3339)},
	})
	t.Render()
	return nil
}

// historyCommand показывает последние сделки
func historyCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "количество сделок")
	session := fs.String("session", "", "показать сделки указанной сессии")
	fs.Parse(args)

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var trades []*models.Trade
	if *session != "" {
		trades, err = store.Trades.GetBySession(*session)
	} else {
		trades, err = store.Trades.GetRecent(*limit)
	}
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("no trades recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADE HISTORY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Opened", "Symbol", "Side", "Qty", "Entry", "Exit", "PNL", "Status"})

	for _, trade := range trades {
		exit := "-"
		if trade.ExitPrice != nil {
			exit = fmt.Sprintf("%.4f", *trade.ExitPrice)
		}
		pnl := "-"
		if trade.Pnl != nil {
			pnl = fmt.Sprintf("%+.2f", *trade.Pnl)
		}
		status := trade.Status
		if trade.EmergencyClose {
			status += " (emergency)"
		}
		t.AppendRow(table.Row{
			trade.CreatedAt.Format("2006-01-02 15:04"),
			trade.Symbol,
			trade.Side,
			trade.Quantity,
			fmt.Sprintf("%.4f", trade.EntryPrice),
			exit,
			pnl,
			status,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
	return nil
}

// performanceCommand показывает сводку результатов за период
func performanceCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("performance", flag.ExitOnError)
	days := fs.Int("days", 30, "глубина периода в днях")
	fs.Parse(args)

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	summary, err := store.Performance.GetSummary(now.AddDate(0, 0, -*days), now)
	if err != nil {
		return err
	}
	today, err := store.Performance.GetDailyStats(now)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("PERFORMANCE - LAST %d DAYS", *days))
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Total Trades", summary.TotalTrades},
		{"Winning / Losing", fmt.Sprintf("%d / %d", summary.WinningTrades, summary.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", summary.WinRate)},
		{"Total PNL", fmt.Sprintf("%+.2f USDT", summary.TotalPnl)},
		{"Avg Win / Avg Loss", fmt.Sprintf("%+.2f / %+.2f", summary.AvgWin, summary.AvgLoss)},
		{"Best / Worst Trade", fmt.Sprintf("%+.2f / %+.2f", summary.BestTrade, summary.WorstTrade)},
		{"Max Drawdown", fmt.Sprintf("%.2f USDT", summary.MaxDrawdown)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Today Trades", today.TotalTrades},
		{"Today PNL", fmt.Sprintf("%+.2f USDT", today.TotalPnl)},
	})
	t.Render()
	return nil
}

// cleanupCommand удаляет данные старше срока хранения
func cleanupCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	days := fs.Int("days", cfg.Trading.RetentionDays, "срок хранения в днях")
	fs.Parse(args)

	if *days <= 0 {
		return fmt.Errorf("retention must be positive, got %d", *days)
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := store.Cleanup(*days)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d trades, %d sessions, %d risk events older than %d days\n",
		result.Trades, result.Sessions, result.RiskEvents, *days)
	return nil
}
