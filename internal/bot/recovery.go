package bot

import (
	"context"
	"errors"
	"fmt"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
)

// Восстановление после перезапуска.
//
// Процесс мог упасть с открытой позицией: в хранилище осталась
// незавершенная сделка, на бирже осталась позиция. При старте
// сессии оба источника сверяются друг с другом:
//
//   - сделка есть, позиция есть  → сделка усыновляется и ведется дальше
//   - сделка есть, позиции нет   → сделка переводится в error
//   - сделки нет, позиция есть   → позиция "потерянная": записывается
//     риск-событие, позиция не трогается до ручного вмешательства
//
// Потерянные позиции не закрываются автоматически: закрытие чужой
// позиции опаснее, чем оставить ее под наблюдением оператора.

// recoverState сверяет хранилище с биржей при старте сессии.
// Вызывается из Start до запуска фоновых циклов.
func (e *Engine) recoverState(ctx context.Context) {
	trade, err := e.store.AnyOpenTrade()
	if err != nil {
		e.persistFailed("recover_open_trade", err)
		return
	}

	if trade != nil {
		e.reconcileTrade(ctx, trade)
		return
	}

	e.reportOrphanedPositions(ctx)
}

// reconcileTrade решает судьбу незавершенной сделки из хранилища
func (e *Engine) reconcileTrade(ctx context.Context, trade *models.Trade) {
	pos, err := e.exchange.GetPosition(ctx, trade.Symbol)
	if err != nil && !errors.Is(err, exchange.ErrNoPosition) {
		e.log.Errorw("position check failed during recovery, trade left as is",
			"trade_id", trade.ID,
			"symbol", trade.Symbol,
			"error", err,
		)
		return
	}

	if pos == nil {
		// Позиции на бирже нет: сделка закрылась вне нашего контроля
		// (стоп-лосс, тейк-профит или ручное закрытие). Итоговая цена
		// неизвестна, поэтому статус error, а не closed.
		e.log.Warnw("open trade has no matching position, marking as error",
			"trade_id", trade.ID,
			"symbol", trade.Symbol,
		)
		if CanTransition(trade.Status, models.TradeStatusError) {
			if err := e.store.UpdateTradeStatus(trade.ID, models.TradeStatusError); err != nil {
				e.persistFailed("recover_mark_error", err)
			}
		}
		e.logRiskEvent(models.RiskEventEmergencyStop, models.SeverityWarning,
			fmt.Sprintf("trade %s lost its exchange position during downtime", trade.ID))
		return
	}

	if exchangeSide(trade.Side) != pos.Side {
		e.log.Errorw("position side mismatch during recovery, not adopting",
			"trade_id", trade.ID,
			"trade_side", trade.Side,
			"position_side", pos.Side,
		)
		return
	}

	// Позиция на месте: усыновляем сделку и ведем дальше.
	// SessionID сохраняется исходный, история сессий не переписывается.
	trade.EntryPrice = pos.EntryPrice
	if pos.StopLoss > 0 {
		trade.StopLoss = pos.StopLoss
	}
	if pos.TakeProfit > 0 {
		trade.TakeProfit = pos.TakeProfit
	}
	e.trade = trade
	OpenPosition.Set(1)

	e.log.Infow("open trade recovered after restart",
		"trade_id", trade.ID,
		"symbol", trade.Symbol,
		"side", trade.Side,
		"entry_price", trade.EntryPrice,
	)
}

// reportOrphanedPositions ищет позиции на бирже, которым не
// соответствует ни одна сделка в хранилище
func (e *Engine) reportOrphanedPositions(ctx context.Context) {
	for _, symbol := range e.cfg.Trading.Symbols {
		pos, err := e.exchange.GetPosition(ctx, symbol)
		if err != nil {
			if errors.Is(err, exchange.ErrNoPosition) {
				continue
			}
			e.log.Warnw("position check failed during recovery", "symbol", symbol, "error", err)
			continue
		}
		if pos == nil || pos.Size == 0 {
			continue
		}

		e.log.Errorw("orphaned position found, manual intervention required",
			"symbol", symbol,
			"side", pos.Side,
			"size", pos.Size,
			"entry_price", pos.EntryPrice,
		)
		e.logRiskEvent(models.RiskEventEmergencyStop, models.SeverityCritical,
			fmt.Sprintf("orphaned %s position on %s (size %v) has no trade record", pos.Side, symbol, pos.Size))
	}
}
