package bot

import (
	"fmt"
	"sync"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Неконфигурируемые пороги риск-контроля.
// Жесткий потолок и минимальный стоп действуют поверх любых настроек.
const (
	// Максимальная доля баланса в одной позиции, %
	hardCapPositionPercent = 25.0

	// Минимальная стоимость позиции, USDT
	minPositionValue = 10.0

	// Минимальный допустимый стоп-лосс: ниже уровня рыночного шума
	minStopLossPercent = 0.5

	// Фиксированная полоса предупреждения по убытку позиции, %
	warningLossPercent = 3.0

	// Фиксированная полоса фиксации прибыли, %
	profitTakingPercent = 10.0
)

// AllowedPositionSizes - дискретные разрешенные размеры позиции, % от баланса
var AllowedPositionSizes = []float64{5, 10, 15, 20, 25}

// Действия по результату оценки позиции
const (
	RiskActionHold           = "hold"
	RiskActionMonitorClosely = "monitor_closely"
	RiskActionClose          = "close"
	RiskActionEmergencyClose = "emergency_close"
	RiskActionTakeProfit     = "consider_profit_taking"
)

// SizeResult - результат проверки размера позиции
type SizeResult struct {
	Valid     bool
	Value     float64 // стоимость позиции в USDT
	RiskLevel string
	Reason    string
}

// StopLossResult - результат проверки стоп-лосса
type StopLossResult struct {
	Valid           bool
	StopLossPercent float64
	RiskLevel       string
	Reason          string
}

// RiskAssessment - оценка открытой позиции
type RiskAssessment struct {
	PnlPercent float64
	RiskLevel  string
	Action     string
	Urgency    string
}

// RiskStatus - сводка состояния риск-контроля
type RiskStatus struct {
	DailyTradeCount   int     `json:"daily_trade_count"`
	DailyPnl          float64 `json:"daily_pnl"`
	RemainingTrades   int     `json:"remaining_trades"`
	RemainingLoss     float64 `json:"remaining_loss"` // USDT до дневного лимита
	EmergencyStop     bool    `json:"emergency_stop"`
	CooldownRemaining float64 `json:"cooldown_remaining_sec"`
	OverallRisk       string  `json:"overall_risk"`
}

// RiskGate - шлюз риск-контроля перед каждым переходом сделки.
//
// Правила почти чистые: решение зависит только от лимитов конфигурации
// и небольших дневных счетчиков. Счетчики накапливаются в пределах
// одного календарного дня UTC; сброс выполняет вызывающая сторона
// через ResetDailyLimits, сам шлюз часов не заводит.
type RiskGate struct {
	mu     sync.Mutex
	limits config.RiskLimits

	dailyTradeCount int
	dailyPnl        float64
	lastTradeAt     time.Time
	emergencyStop   bool
	day             time.Time
}

// NewRiskGate создает шлюз риск-контроля
func NewRiskGate(limits config.RiskLimits) *RiskGate {
	return &RiskGate{
		limits: limits,
		day:    utils.GetDayStart(),
	}
}

// CanStartNewTrade проверяет допустимость открытия новой сделки.
//
// Все четыре условия проверяются по порядку, первая причина отказа
// возвращается для наблюдаемости. Отказ не является ошибкой.
func (g *RiskGate) CanStartNewTrade() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.emergencyStop {
		return false, "emergency stop triggered, reset required"
	}

	if g.dailyTradeCount >= g.limits.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d of %d", g.dailyTradeCount, g.limits.MaxDailyTrades)
	}

	if !g.lastTradeAt.IsZero() {
		cooldown := g.limits.TradeCooldown.Std()
		if elapsed := time.Since(g.lastTradeAt); elapsed < cooldown {
			return false, fmt.Sprintf("cooldown active: %s remaining", utils.FormatDuration(cooldown-elapsed))
		}
	}

	if g.dailyPnl <= -g.limits.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f of %.2f USDT", -g.dailyPnl, g.limits.MaxDailyLoss)
	}

	return true, ""
}

// ValidatePositionSize проверяет размер позиции.
//
// Процент должен входить в дискретный набор AllowedPositionSizes,
// стоимость должна превышать minPositionValue, и процент не может
// превышать hardCapPositionPercent независимо от конфигурации.
func (g *RiskGate) ValidatePositionSize(balance, percent float64) SizeResult {
	if percent > hardCapPositionPercent {
		return SizeResult{
			Reason: fmt.Sprintf("position size %.1f%% exceeds hard cap %.1f%%", percent, hardCapPositionPercent),
		}
	}

	allowed := false
	for _, p := range AllowedPositionSizes {
		if p == percent {
			allowed = true
			break
		}
	}
	if !allowed {
		return SizeResult{
			Reason: fmt.Sprintf("position size %.1f%% is not in the allowed set %v", percent, AllowedPositionSizes),
		}
	}

	value := balance * percent / 100
	if value < minPositionValue {
		return SizeResult{
			Reason: fmt.Sprintf("position value %.2f USDT is below minimum %.2f", value, minPositionValue),
		}
	}

	level := "low"
	switch {
	case percent >= 20:
		level = "high"
	case percent >= 15:
		level = "medium"
	}

	return SizeResult{Valid: true, Value: value, RiskLevel: level}
}

// CheckStopLossRequirement проверяет обязательный стоп-лосс.
//
// Подразумеваемый процент убытка вычисляется по направлению сделки
// и должен лежать в [minStopLossPercent, MaxPositionLossPercent].
func (g *RiskGate) CheckStopLossRequirement(entry, stopLoss float64, side string) StopLossResult {
	if stopLoss <= 0 {
		return StopLossResult{Reason: "stop loss is mandatory"}
	}
	if entry <= 0 {
		return StopLossResult{Reason: "entry price must be positive"}
	}

	var lossPercent float64
	switch side {
	case models.SideBuy:
		lossPercent = (entry - stopLoss) / entry * 100
	case models.SideSell:
		lossPercent = (stopLoss - entry) / entry * 100
	default:
		return StopLossResult{Reason: fmt.Sprintf("unknown side %q", side)}
	}

	if lossPercent <= 0 {
		return StopLossResult{Reason: fmt.Sprintf("stop loss %.2f is on the wrong side of entry %.2f for %s", stopLoss, entry, side)}
	}
	if lossPercent < minStopLossPercent {
		return StopLossResult{
			StopLossPercent: lossPercent,
			Reason:          fmt.Sprintf("stop loss %.2f%% is tighter than the %.1f%% noise floor", lossPercent, minStopLossPercent),
		}
	}
	if lossPercent > g.limits.MaxPositionLossPercent {
		return StopLossResult{
			StopLossPercent: lossPercent,
			Reason:          fmt.Sprintf("stop loss %.2f%% exceeds max position loss %.1f%%", lossPercent, g.limits.MaxPositionLossPercent),
		}
	}

	level := "low"
	if lossPercent > g.limits.MaxPositionLossPercent/2 {
		level = "medium"
	}

	return StopLossResult{Valid: true, StopLossPercent: lossPercent, RiskLevel: level}
}

// AssessPositionRisk оценивает открытую позицию по текущей цене.
//
// Направленный PnL% прогоняется через четырехступенчатую лестницу:
// аварийное закрытие, закрытие, пристальное наблюдение, фиксация
// прибыли. Полосы предупреждения и прибыли - фиксированные константы,
// отдельные от настраиваемых лимитов.
func (g *RiskGate) AssessPositionRisk(currentPrice, entryPrice float64, side string) RiskAssessment {
	var pnlPercent float64
	if entryPrice > 0 {
		pnlPercent = utils.CalculatePNLPercent(side, entryPrice, currentPrice)
	}

	switch {
	case pnlPercent <= -g.limits.EmergencyStopLossPercent:
		return RiskAssessment{
			PnlPercent: pnlPercent,
			RiskLevel:  "critical",
			Action:     RiskActionEmergencyClose,
			Urgency:    "immediate",
		}
	case pnlPercent <= -g.limits.MaxPositionLossPercent:
		return RiskAssessment{
			PnlPercent: pnlPercent,
			RiskLevel:  "high",
			Action:     RiskActionClose,
			Urgency:    "high",
		}
	case pnlPercent <= -warningLossPercent:
		return RiskAssessment{
			PnlPercent: pnlPercent,
			RiskLevel:  "medium",
			Action:     RiskActionMonitorClosely,
			Urgency:    "medium",
		}
	case pnlPercent >= profitTakingPercent:
		return RiskAssessment{
			PnlPercent: pnlPercent,
			RiskLevel:  "low",
			Action:     RiskActionTakeProfit,
			Urgency:    "low",
		}
	default:
		return RiskAssessment{
			PnlPercent: pnlPercent,
			RiskLevel:  "low",
			Action:     RiskActionHold,
			Urgency:    "low",
		}
	}
}

// UpdateDailyMetrics накапливает дневные счетчики после закрытия сделки.
//
// Превышение дневного лимита убытка взводит одностороннюю защелку
// emergencyStop. Защелка не снимается сама: только ResetDailyLimits.
func (g *RiskGate) UpdateDailyMetrics(tradePnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyTradeCount++
	g.dailyPnl += tradePnl
	g.lastTradeAt = time.Now().UTC()

	if g.dailyPnl <= -g.limits.MaxDailyLoss {
		g.emergencyStop = true
	}
}

// ResetDailyLimits обнуляет счетчики и снимает защелку.
// Вызывается на границе календарного дня UTC.
func (g *RiskGate) ResetDailyLimits() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyTradeCount = 0
	g.dailyPnl = 0
	g.lastTradeAt = time.Time{}
	g.emergencyStop = false
	g.day = utils.GetDayStart()
}

// NeedsDailyReset возвращает true если счетчики относятся к прошедшему дню
func (g *RiskGate) NeedsDailyReset(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !utils.IsSameDay(g.day, now)
}

// Status возвращает сводку, согласованную с CanStartNewTrade:
// уровень риска выводится из остаточных запасов, не из сырой конфигурации.
func (g *RiskGate) Status() RiskStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	remTrades := g.limits.MaxDailyTrades - g.dailyTradeCount
	if remTrades < 0 {
		remTrades = 0
	}
	remLoss := utils.Max(0, g.limits.MaxDailyLoss+g.dailyPnl)

	var cooldown float64
	if !g.lastTradeAt.IsZero() {
		if left := g.limits.TradeCooldown.Std() - time.Since(g.lastTradeAt); left > 0 {
			cooldown = left.Seconds()
		}
	}

	overall := "low"
	switch {
	case g.emergencyStop:
		overall = "critical"
	case remTrades == 0 || remLoss <= 0:
		overall = "critical"
	case remLoss < g.limits.MaxDailyLoss*0.25 || remTrades <= g.limits.MaxDailyTrades/4:
		overall = "high"
	case remLoss < g.limits.MaxDailyLoss*0.5 || remTrades <= g.limits.MaxDailyTrades/2:
		overall = "medium"
	}

	return RiskStatus{
		DailyTradeCount:   g.dailyTradeCount,
		DailyPnl:          g.dailyPnl,
		RemainingTrades:   remTrades,
		RemainingLoss:     remLoss,
		EmergencyStop:     g.emergencyStop,
		CooldownRemaining: cooldown,
		OverallRisk:       overall,
	}
}
