package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"autotrader/internal/config"
	"autotrader/internal/decision"
	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/internal/news"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

// Шаг округления количества для рыночных ордеров
const qtyStep = 0.001

// После стольких неудачных попыток аварийного закрытия подряд
// записывается критическое риск-событие
const maxEmergencyCloseFailures = 3

// Таймаут на закрытие позиции и запись сессии при остановке
const stopTimeout = 30 * time.Second

// Store - хранилище, необходимое оркестратору.
// Узкий интерфейс позволяет подменять его в тестах фейком
// без поднятия базы данных.
type Store interface {
	CreateSession(session *models.Session) error
	EndSession(id, status string, emergencyStop bool) error
	SaveTrade(trade *models.Trade) error
	UpdateTradeStatus(id, status string) error
	UpdateTradeProtection(id string, stopLoss, takeProfit float64) error
	CloseTrade(id string, exitPrice, pnl float64, status string, emergencyClose bool) error
	OpenTrade(sessionID string) (*models.Trade, error)
	AnyOpenTrade() (*models.Trade, error)
	LogRiskEvent(event *models.RiskEvent) error
	RecordDailyPerformance(day time.Time) error
}

// Notifier - real-time рассылка событий движка (WebSocket hub).
// Все методы не должны блокировать цикл мониторинга.
type Notifier interface {
	BroadcastTradeOpened(trade *models.Trade)
	BroadcastTradeUpdate(trade *models.Trade, markPrice float64)
	BroadcastTradeClosed(trade *models.Trade)
	BroadcastRiskEvent(event *models.RiskEvent)
	BroadcastSessionStatus(session *models.Session)
	BroadcastSentiment(snap *news.Snapshot)
}

// ============================================================
// Оркестратор
// ============================================================

// Engine - оркестратор торговой сессии.
//
// Держит не более одной незавершенной сделки. Два фоновых цикла:
// мониторинг (сканирование/сопровождение позиции) и новостной фон.
// Сбой новостного цикла никогда не блокирует мониторинг.
type Engine struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	store    Store
	exchange exchange.Exchange
	provider decision.Provider
	news     *news.Service
	risk     *RiskGate
	notifier Notifier

	// mu сериализует все мутации session/trade:
	// цикл мониторинга и Stop никогда не трогают их одновременно
	mu      sync.Mutex
	session *models.Session
	trade   *models.Trade

	running        atomic.Bool
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	cooldownUntil  time.Time
	emergencyFails int
}

// NewEngine создает оркестратор. Start не вызывается автоматически.
func NewEngine(
	cfg *config.Config,
	store Store,
	ex exchange.Exchange,
	provider decision.Provider,
	newsSvc *news.Service,
	log *zap.SugaredLogger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		store:    store,
		exchange: ex,
		provider: provider,
		news:     newsSvc,
		risk:     NewRiskGate(cfg.Trading.Risk),
	}
}

// SetNotifier подключает real-time рассылку. Вызывается до Start;
// без нее движок работает молча.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Risk возвращает шлюз риск-контроля (для API статуса)
func (e *Engine) Risk() *RiskGate {
	return e.risk
}

// Session возвращает текущую сессию или nil
func (e *Engine) Session() *models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// CurrentTrade возвращает текущую незавершенную сделку или nil
func (e *Engine) CurrentTrade() *models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trade
}

// IsRunning сообщает, идет ли торговая сессия
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// ============================================================
// Запуск и остановка
// ============================================================

// Start открывает новую торговую сессию и запускает фоновые циклы.
// Если предыдущая сделка этой инсталляции осталась незавершенной
// в хранилище, она подхватывается и сопровождается дальше.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := e.cfg.Validate(); err != nil {
		e.running.Store(false)
		return fmt.Errorf("invalid configuration: %w", err)
	}

	session := &models.Session{
		ID:        utils.NewSessionID(),
		CreatedAt: time.Now().UTC(),
		Status:    models.SessionStatusActive,
	}
	if err := e.store.CreateSession(session); err != nil {
		e.running.Store(false)
		return fmt.Errorf("create session: %w", err)
	}

	e.mu.Lock()
	e.session = session
	e.trade = nil
	e.cooldownUntil = time.Time{}
	e.emergencyFails = 0
	e.mu.Unlock()

	e.recoverState(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.log.Infow("trading session started",
		"session_id", session.ID,
		"exchange", e.exchange.Name(),
		"provider", e.provider.Name(),
		"symbols", e.cfg.Trading.Symbols,
	)
	if e.notifier != nil {
		e.notifier.BroadcastSessionStatus(session)
	}

	e.wg.Add(2)
	go e.monitorLoop(runCtx)
	go e.newsLoop(runCtx)

	return nil
}

// Stop завершает сессию: останавливает оба цикла, дожидается их,
// разрешает незавершенную сделку и закрывает сессию в хранилище.
//
// emergency=true закрывает позицию немедленно с пометкой аварийного
// закрытия; иначе позиция закрывается штатно.
func (e *Engine) Stop(emergency bool) error {
	if !e.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	e.cancel()
	e.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.trade != nil && !e.trade.IsTerminal() {
		if emergency {
			if err := e.emergencyCloseLocked(ctx); err != nil {
				e.log.Errorw("emergency close on stop failed", "trade_id", e.trade.ID, "error", err)
			}
		} else {
			if err := e.closeTradeLocked(ctx, "session stop", false); err != nil {
				e.log.Errorw("trade close on stop failed", "trade_id", e.trade.ID, "error", err)
			}
		}
	}

	status := models.SessionStatusCompleted
	if emergency {
		status = models.SessionStatusEmergencyStopped
	}
	if err := e.store.EndSession(e.session.ID, status, emergency); err != nil {
		e.persistFailed("end_session", err)
	}

	e.log.Infow("trading session stopped",
		"session_id", e.session.ID,
		"status", status,
	)
	if e.notifier != nil {
		now := time.Now().UTC()
		e.session.Status = status
		e.session.EmergencyStop = emergency
		e.session.EndedAt = &now
		e.notifier.BroadcastSessionStatus(e.session)
	}

	e.session = nil
	e.trade = nil
	OpenPosition.Set(0)
	return nil
}

// ============================================================
// Фоновые циклы
// ============================================================

// monitorLoop - основной цикл: сопровождение открытой позиции
// либо поиск возможности для входа. Первый проход выполняется
// сразу, не дожидаясь первого тика.
func (e *Engine) monitorLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Trading.MonitoringInterval.Std())
	defer ticker.Stop()

	e.monitorTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.monitorTick(ctx)
		}
	}
}

// newsLoop периодически обновляет новостной фон.
// Ошибки логируются и не влияют на торговлю.
func (e *Engine) newsLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Trading.NewsInterval.Std())
	defer ticker.Stop()

	e.refreshNews()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refreshNews()
		}
	}
}

func (e *Engine) refreshNews() {
	if err := e.news.Refresh(); err != nil {
		e.log.Warnw("news refresh failed", "error", err)
		return
	}
	if snap := e.news.Snapshot(); snap != nil {
		NewsSentiment.Set(snap.Score)
		if e.notifier != nil {
			e.notifier.BroadcastSentiment(snap)
		}
	}
}

// monitorTick - один проход цикла мониторинга
func (e *Engine) monitorTick(ctx context.Context) {
	start := time.Now()
	defer func() {
		MonitorCycleDuration.Observe(time.Since(start).Seconds())
	}()

	now := time.Now().UTC()
	if e.risk.NeedsDailyReset(now) {
		e.risk.ResetDailyLimits()
		DailyPnl.Set(0)
		EmergencyStopActive.Set(0)
		e.log.Infow("daily risk limits reset", "day", utils.GetDayStartFrom(now))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return
	}

	if e.trade != nil && !e.trade.IsTerminal() {
		e.managePositionLocked(ctx)
		return
	}

	if now.Before(e.cooldownUntil) {
		return
	}
	e.tryOpenTradeLocked(ctx)
}

// ============================================================
// Вход в позицию
// ============================================================

// tryOpenTradeLocked сканирует рынок и при подходящей возможности
// открывает сделку. Вызывается под e.mu без открытой позиции.
func (e *Engine) tryOpenTradeLocked(ctx context.Context) {
	if ok, reason := e.risk.CanStartNewTrade(); !ok {
		RiskRejections.WithLabelValues("can_start").Inc()
		e.log.Debugw("new trade not allowed", "reason", reason)
		return
	}

	balance, err := e.exchange.GetBalance(ctx)
	if err != nil {
		e.log.Warnw("balance fetch failed", "error", err)
		return
	}
	if balance < e.cfg.Trading.MinBalance {
		e.log.Warnw("balance below minimum, skipping scan",
			"balance", balance,
			"min_balance", e.cfg.Trading.MinBalance,
		)
		return
	}

	opp, err := e.scanOpportunities(ctx)
	if err != nil {
		e.log.Warnw("opportunity scan failed", "error", err)
		return
	}
	if opp == nil {
		return
	}

	dec, err := e.provider.Decide(ctx, &decision.Request{
		Symbol:    opp.Symbol,
		Ticker:    opp.Ticker,
		Sentiment: e.news.Snapshot(),
		Balance:   balance,
	})
	if err != nil {
		// Неразобранный ответ провайдера трактуется как hold
		e.observeDecisionError(err)
		e.log.Errorw("decision request failed, holding", "symbol", opp.Symbol, "error", err)
		return
	}
	DecisionRequests.WithLabelValues(e.provider.Name(), "ok").Inc()

	if dec.Action == decision.ActionHold {
		e.log.Debugw("provider decided to hold", "symbol", opp.Symbol, "reasoning", dec.Reasoning)
		return
	}

	percent := dec.PositionSizePercent
	if percent == 0 {
		percent = e.cfg.Trading.PositionSizePercent
	}

	sizeRes := e.risk.ValidatePositionSize(balance, percent)
	if !sizeRes.Valid {
		RiskRejections.WithLabelValues("position_size").Inc()
		e.log.Warnw("position size rejected",
			"symbol", opp.Symbol,
			"percent", percent,
			"reason", sizeRes.Reason,
		)
		return
	}

	entryPrice := opp.Ticker.LastPrice
	stopLoss, takeProfit := protectionPrices(dec.Action, entryPrice, dec.StopLossPercent, dec.TakeProfitPercent)

	slRes := e.risk.CheckStopLossRequirement(entryPrice, stopLoss, dec.Action)
	if !slRes.Valid {
		RiskRejections.WithLabelValues("stop_loss").Inc()
		e.log.Warnw("stop loss rejected",
			"symbol", opp.Symbol,
			"stop_loss", stopLoss,
			"reason", slRes.Reason,
		)
		return
	}

	qty := utils.RoundToLotSize(sizeRes.Value/entryPrice, qtyStep)
	if qty <= 0 {
		e.log.Warnw("order rejected",
			"symbol", opp.Symbol,
			"error", &OrderValidationError{Field: "qty", Reason: "rounds to zero at current price"},
		)
		return
	}

	req := &exchange.OrderRequest{
		Symbol:      opp.Symbol,
		Side:        exchangeSide(dec.Action),
		Qty:         qty,
		OrderLinkID: utils.NewOrderLinkID(),
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
	}

	orderStart := time.Now()
	order, err := e.exchange.PlaceMarketOrder(ctx, req)
	if err != nil {
		e.log.Errorw("order placement failed",
			"symbol", opp.Symbol,
			"side", req.Side,
			"qty", qty,
			"error", err,
		)
		return
	}
	OrderExecutionLatency.WithLabelValues(strings.ToLower(order.Side)).
		Observe(float64(time.Since(orderStart).Milliseconds()))

	if order.AvgPrice > 0 {
		entryPrice = order.AvgPrice
	}

	trade := &models.Trade{
		ID:                utils.NewTradeID(),
		SessionID:         e.session.ID,
		Symbol:            opp.Symbol,
		Side:              dec.Action,
		Quantity:          order.Qty,
		EntryPrice:        entryPrice,
		StopLoss:          stopLoss,
		TakeProfit:        takeProfit,
		OrderID:           order.ID,
		OrderLinkID:       order.OrderLinkID,
		Status:            models.TradeStatusActive,
		CreatedAt:         time.Now().UTC(),
		DecisionReasoning: dec.Reasoning,
		Confidence:        dec.Confidence,
	}
	if err := e.store.SaveTrade(trade); err != nil {
		e.persistFailed("save_trade", err)
	}

	e.trade = trade
	e.emergencyFails = 0
	OpenPosition.Set(1)
	if e.notifier != nil {
		e.notifier.BroadcastTradeOpened(trade)
	}

	e.log.Infow("trade opened",
		"trade_id", trade.ID,
		"symbol", trade.Symbol,
		"side", trade.Side,
		"qty", trade.Quantity,
		"entry_price", trade.EntryPrice,
		"stop_loss", trade.StopLoss,
		"take_profit", trade.TakeProfit,
		"confidence", trade.Confidence,
	)
}

// ============================================================
// Сопровождение позиции
// ============================================================

// managePositionLocked ведет открытую позицию: сперва жесткая
// оценка риска, затем переоценка провайдером. Риск-контроль
// имеет приоритет над решением провайдера.
func (e *Engine) managePositionLocked(ctx context.Context) {
	trade := e.trade

	ticker, err := e.exchange.GetTicker(ctx, trade.Symbol)
	if err != nil {
		e.log.Warnw("ticker fetch failed during monitoring", "symbol", trade.Symbol, "error", err)
		return
	}

	// Стоп-лосс и тейк-профит стоят на стороне биржи: позиция может
	// закрыться между тиками без нашего участия. Сверяемся каждый тик.
	pos, err := e.exchange.GetPosition(ctx, trade.Symbol)
	switch {
	case errors.Is(err, exchange.ErrNoPosition), err == nil && pos.Size == 0:
		e.settleExchangeCloseLocked(trade, ticker.LastPrice)
		return
	case err != nil:
		e.log.Warnw("position check failed during monitoring, using ticker only",
			"symbol", trade.Symbol, "error", err)
	}

	if e.notifier != nil {
		e.notifier.BroadcastTradeUpdate(trade, ticker.LastPrice)
	}

	assessment := e.risk.AssessPositionRisk(ticker.LastPrice, trade.EntryPrice, trade.Side)

	switch assessment.Action {
	case RiskActionEmergencyClose:
		e.log.Warnw("emergency close triggered",
			"trade_id", trade.ID,
			"pnl_percent", assessment.PnlPercent,
		)
		e.logRiskEvent(models.RiskEventEmergencyStop, models.SeverityCritical,
			fmt.Sprintf("position loss %.2f%% breached emergency threshold", assessment.PnlPercent))
		if err := e.emergencyCloseLocked(ctx); err != nil {
			e.log.Errorw("emergency close failed", "trade_id", trade.ID, "error", err)
		}
		return

	case RiskActionClose:
		e.log.Warnw("risk close triggered",
			"trade_id", trade.ID,
			"pnl_percent", assessment.PnlPercent,
		)
		e.logRiskEvent(models.RiskEventStopLossTriggered, models.SeverityWarning,
			fmt.Sprintf("position loss %.2f%% breached max position loss", assessment.PnlPercent))
		if err := e.closeTradeLocked(ctx, "risk limit", false); err != nil {
			e.log.Errorw("risk close failed", "trade_id", trade.ID, "error", err)
		}
		return

	case RiskActionMonitorClosely:
		e.log.Infow("position under close watch",
			"trade_id", trade.ID,
			"pnl_percent", assessment.PnlPercent,
		)
	}

	eval, err := e.provider.Evaluate(ctx, &decision.EvalRequest{
		Position: &decision.Position{
			Symbol:     trade.Symbol,
			Side:       trade.Side,
			EntryPrice: trade.EntryPrice,
			MarkPrice:  ticker.LastPrice,
			Quantity:   trade.Quantity,
			StopLoss:   trade.StopLoss,
			TakeProfit: trade.TakeProfit,
			PnlPercent: assessment.PnlPercent,
		},
		Ticker:    ticker,
		Sentiment: e.news.Snapshot(),
	})
	if err != nil {
		// Неразобранный ответ трактуется как hold, позиция остается
		e.observeDecisionError(err)
		e.log.Errorw("position evaluation failed, holding", "trade_id", trade.ID, "error", err)
		return
	}
	DecisionRequests.WithLabelValues(e.provider.Name(), "ok").Inc()

	e.applyEvaluationLocked(ctx, eval)
}

// applyEvaluationLocked применяет решение провайдера к открытой позиции
func (e *Engine) applyEvaluationLocked(ctx context.Context, eval *decision.Evaluation) {
	trade := e.trade

	switch eval.Action {
	case decision.EvalClose:
		e.log.Infow("provider requested close",
			"trade_id", trade.ID,
			"urgency", eval.Urgency,
			"reasoning", eval.Reasoning,
		)
		if eval.Urgency == decision.UrgencyImmediate {
			if err := e.emergencyCloseLocked(ctx); err != nil {
				e.log.Errorw("immediate close failed", "trade_id", trade.ID, "error", err)
			}
			return
		}
		if err := e.closeTradeLocked(ctx, "provider close", false); err != nil {
			e.log.Errorw("provider close failed", "trade_id", trade.ID, "error", err)
		}

	case decision.EvalAdjustStop:
		if err := e.exchange.SetTradingStop(ctx, trade.Symbol, eval.NewStopLoss, trade.TakeProfit); err != nil {
			e.log.Warnw("stop loss adjustment failed", "trade_id", trade.ID, "error", err)
			return
		}
		trade.StopLoss = eval.NewStopLoss
		if err := e.store.UpdateTradeProtection(trade.ID, trade.StopLoss, trade.TakeProfit); err != nil {
			e.persistFailed("update_protection", err)
		}
		e.log.Infow("stop loss adjusted", "trade_id", trade.ID, "stop_loss", trade.StopLoss)

	case decision.EvalAdjustTarget:
		if err := e.exchange.SetTradingStop(ctx, trade.Symbol, trade.StopLoss, eval.NewTakeProfit); err != nil {
			e.log.Warnw("take profit adjustment failed", "trade_id", trade.ID, "error", err)
			return
		}
		trade.TakeProfit = eval.NewTakeProfit
		if err := e.store.UpdateTradeProtection(trade.ID, trade.StopLoss, trade.TakeProfit); err != nil {
			e.persistFailed("update_protection", err)
		}
		e.log.Infow("take profit adjusted", "trade_id", trade.ID, "take_profit", trade.TakeProfit)
	}
}

// ============================================================
// Закрытие позиции
// ============================================================

// closeTradeLocked закрывает позицию штатно: сначала отменяются
// все открытые ордера, затем противоположный рыночный ордер.
func (e *Engine) closeTradeLocked(ctx context.Context, reason string, emergency bool) error {
	trade := e.trade

	if err := e.exchange.CancelAllOrders(ctx, trade.Symbol); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}

	order, err := e.exchange.ClosePosition(ctx, trade.Symbol, exchangeSide(trade.Side), trade.Quantity)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}

	exitPrice := e.resolveExitPrice(ctx, order, trade)
	pnl := utils.CalculatePNL(trade.Side, trade.EntryPrice, exitPrice, trade.Quantity)

	e.finishTradeLocked(trade, exitPrice, pnl, emergency)
	e.log.Infow("trade closed",
		"trade_id", trade.ID,
		"reason", reason,
		"exit_price", exitPrice,
		"pnl", pnl,
	)
	return nil
}

// emergencyCloseLocked закрывает позицию с повторами.
//
// Неудача не бросает сделку: счетчик подряд идущих сбоев растет,
// после maxEmergencyCloseFailures записывается критическое
// риск-событие, а следующий тик мониторинга повторит попытку.
func (e *Engine) emergencyCloseLocked(ctx context.Context) error {
	trade := e.trade

	cfg := retry.AggressiveConfig()
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.log.Warnw("emergency close retry", "attempt", attempt, "delay", delay, "error", err)
	}

	var order *exchange.Order
	err := retry.Do(ctx, func() error {
		if err := e.exchange.CancelAllOrders(ctx, trade.Symbol); err != nil {
			return err
		}
		var cerr error
		order, cerr = e.exchange.ClosePosition(ctx, trade.Symbol, exchangeSide(trade.Side), trade.Quantity)
		return cerr
	}, cfg)
	if err != nil {
		e.emergencyFails++
		EmergencyCloseFailures.Inc()
		if e.emergencyFails >= maxEmergencyCloseFailures {
			e.logRiskEvent(models.RiskEventEmergencyCloseFailed, models.SeverityCritical,
				fmt.Sprintf("emergency close failed %d times in a row: %v", e.emergencyFails, err))
		}
		return err
	}
	e.emergencyFails = 0

	exitPrice := e.resolveExitPrice(ctx, order, trade)
	pnl := utils.CalculatePNL(trade.Side, trade.EntryPrice, exitPrice, trade.Quantity)

	e.finishTradeLocked(trade, exitPrice, pnl, true)
	e.log.Warnw("trade emergency closed",
		"trade_id", trade.ID,
		"exit_price", exitPrice,
		"pnl", pnl,
	)
	return nil
}

// resolveExitPrice определяет фактическую цену выхода.
//
// Bybit при размещении ордера возвращает только orderId: цены
// исполнения в ответе нет. Нулевая цена выхода недопустима (она
// превращается в фиктивный убыток на всю позицию), поэтому при
// отсутствии цены в ордере берется текущая цена тикера, а если
// недоступна и она - цена входа.
func (e *Engine) resolveExitPrice(ctx context.Context, order *exchange.Order, trade *models.Trade) float64 {
	if order.AvgPrice > 0 {
		return order.AvgPrice
	}

	ticker, err := e.exchange.GetTicker(ctx, trade.Symbol)
	if err == nil && ticker.LastPrice > 0 {
		e.log.Warnw("order carries no fill price, using ticker price",
			"trade_id", trade.ID,
			"order_id", order.ID,
			"ticker_price", ticker.LastPrice,
		)
		return ticker.LastPrice
	}

	e.log.Errorw("exit price unavailable, recording entry price",
		"trade_id", trade.ID,
		"order_id", order.ID,
		"error", err,
	)
	return trade.EntryPrice
}

// settleExchangeCloseLocked фиксирует сделку, позиция которой была
// закрыта самой биржей (серверный стоп-лосс, тейк-профит или ручное
// вмешательство). Цена выхода аппроксимируется текущим тикером.
func (e *Engine) settleExchangeCloseLocked(trade *models.Trade, markPrice float64) {
	pnl := utils.CalculatePNL(trade.Side, trade.EntryPrice, markPrice, trade.Quantity)
	if pnl < 0 {
		e.logRiskEvent(models.RiskEventStopLossTriggered, models.SeverityWarning,
			fmt.Sprintf("exchange closed the position at a loss of %.2f USDT", pnl))
	}
	e.finishTradeLocked(trade, markPrice, pnl, false)
	e.log.Infow("position closed on exchange side",
		"trade_id", trade.ID,
		"exit_price", markPrice,
		"pnl", pnl,
	)
}

// finishTradeLocked переводит сделку в closed, обновляет дневные
// счетчики риска и взводит cooldown перед следующим входом.
// Переход проверяется по таблице ValidTransitions: сделка в
// терминальном статусе не закрывается повторно.
func (e *Engine) finishTradeLocked(trade *models.Trade, exitPrice, pnl float64, emergency bool) {
	if !CanTransition(trade.Status, models.TradeStatusClosed) {
		e.log.Errorw("invalid trade status transition, skipping close",
			"trade_id", trade.ID,
			"from", trade.Status,
			"to", models.TradeStatusClosed,
		)
		return
	}

	now := time.Now().UTC()
	trade.Status = models.TradeStatusClosed
	trade.ExitPrice = &exitPrice
	trade.Pnl = &pnl
	trade.ClosedAt = &now
	trade.EmergencyClose = emergency

	if err := e.store.CloseTrade(trade.ID, exitPrice, pnl, models.TradeStatusClosed, emergency); err != nil {
		e.persistFailed("close_trade", err)
	}
	if err := e.store.RecordDailyPerformance(now); err != nil {
		e.persistFailed("record_performance", err)
	}

	e.risk.UpdateDailyMetrics(pnl)
	status := e.risk.Status()
	DailyPnl.Set(status.DailyPnl)
	if status.EmergencyStop {
		EmergencyStopActive.Set(1)
		e.logRiskEvent(models.RiskEventDailyLossLimit, models.SeverityCritical,
			fmt.Sprintf("daily loss %.2f USDT reached the limit, trading latched", -status.DailyPnl))
	}

	result := "win"
	if pnl < 0 {
		result = "loss"
	}
	TradesTotal.WithLabelValues(trade.Symbol, result).Inc()

	e.trade = nil
	e.cooldownUntil = now.Add(e.cfg.Trading.CooldownAfterClose.Std())
	OpenPosition.Set(0)
	if e.notifier != nil {
		e.notifier.BroadcastTradeClosed(trade)
	}
}

// ============================================================
// Вспомогательные
// ============================================================

// persistFailed логирует ошибку записи: торговля продолжается
// на состоянии в памяти, запись не батчится и не откладывается
func (e *Engine) persistFailed(op string, err error) {
	perr := &PersistenceError{Op: op, Err: err}
	e.log.Errorw("persistence failed, continuing in memory", "op", op, "error", perr)
}

func (e *Engine) logRiskEvent(eventType, severity, description string) {
	event := &models.RiskEvent{
		SessionID:   e.session.ID,
		EventType:   eventType,
		Severity:    severity,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if e.trade != nil {
		event.TradeID = e.trade.ID
	}
	RiskEventsTotal.WithLabelValues(severity).Inc()
	if err := e.store.LogRiskEvent(event); err != nil {
		e.persistFailed("log_risk_event", err)
	}
	if e.notifier != nil {
		e.notifier.BroadcastRiskEvent(event)
	}
}

// exchangeSide переводит сторону сделки (buy/sell) в формат биржи (Buy/Sell)
func exchangeSide(side string) string {
	if side == models.SideSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// protectionPrices вычисляет цены стоп-лосса и тейк-профита
// из процентов решения с учетом направления сделки
func protectionPrices(side string, entry, stopLossPercent, takeProfitPercent float64) (stopLoss, takeProfit float64) {
	if side == models.SideSell {
		stopLoss = entry * (1 + stopLossPercent/100)
		if takeProfitPercent > 0 {
			takeProfit = entry * (1 - takeProfitPercent/100)
		}
		return stopLoss, takeProfit
	}
	stopLoss = entry * (1 - stopLossPercent/100)
	if takeProfitPercent > 0 {
		takeProfit = entry * (1 + takeProfitPercent/100)
	}
	return stopLoss, takeProfit
}
