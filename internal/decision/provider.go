package decision

import (
	"context"
	"fmt"

	"autotrader/internal/exchange"
	"autotrader/internal/news"
)

// Действия, которые может вернуть провайдер
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Действия по открытой позиции
const (
	EvalHold         = "hold"
	EvalClose        = "close"
	EvalAdjustStop   = "adjust_stop"
	EvalAdjustTarget = "adjust_target"
)

// Уровни риска решения
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Срочность действия по позиции
const (
	UrgencyLow       = "low"
	UrgencyMedium    = "medium"
	UrgencyHigh      = "high"
	UrgencyImmediate = "immediate"
)

// Направления тренда в анализе рынка
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Request - входные данные для принятия решения
type Request struct {
	Symbol    string           `json:"symbol"`
	Ticker    *exchange.Ticker `json:"ticker"`
	Sentiment *news.Snapshot   `json:"sentiment,omitempty"`
	Balance   float64          `json:"balance"`
}

// Decision - торговое решение
type Decision struct {
	Action              string  `json:"action"`     // buy, sell, hold
	Confidence          float64 `json:"confidence"` // [0, 1]
	RiskLevel           string  `json:"risk_level"` // low, medium, high
	Reasoning           string  `json:"reasoning"`
	PositionSizePercent float64 `json:"position_size_percent"` // % от баланса, 0 = дефолт из конфигурации
	StopLossPercent     float64 `json:"stop_loss_percent"`     // % от цены входа
	TakeProfitPercent   float64 `json:"take_profit_percent"`   // % от цены входа
}

// Analysis - оценка рыночных условий без конкретного решения.
// Используется при сканировании пар для выбора кандидата.
type Analysis struct {
	Trend      string  `json:"trend"`      // bullish, bearish, neutral
	Volatility string  `json:"volatility"` // low, medium, high
	Sentiment  string  `json:"sentiment"`  // bullish, bearish, neutral
	RiskLevel  string  `json:"risk_level"` // low, medium, high
	Confidence float64 `json:"confidence"` // [0, 1]
	Reasoning  string  `json:"reasoning"`
}

// Position - снимок открытой позиции для переоценки
type Position struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	MarkPrice  float64 `json:"mark_price"`
	Quantity   float64 `json:"quantity"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	PnlPercent float64 `json:"pnl_percent"`
}

// EvalRequest - входные данные для переоценки открытой позиции
type EvalRequest struct {
	Position  *Position        `json:"position"`
	Ticker    *exchange.Ticker `json:"ticker"`
	Sentiment *news.Snapshot   `json:"sentiment,omitempty"`
}

// Evaluation - решение по открытой позиции
type Evaluation struct {
	Action        string  `json:"action"`                    // hold, close, adjust_stop, adjust_target
	NewStopLoss   float64 `json:"new_stop_loss,omitempty"`   // для adjust_stop
	NewTakeProfit float64 `json:"new_take_profit,omitempty"` // для adjust_target
	Urgency       string  `json:"urgency"`                   // low, medium, high, immediate
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// ProviderError - ошибка провайдера решений.
// Malformed=true означает, что ответ получен, но не разобран:
// вызывающая сторона обязана залогировать сырой ответ и
// трактовать решение как hold, а не молча игнорировать.
type ProviderError struct {
	Provider  string
	Malformed bool
	Raw       string
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("decision provider %s: malformed response: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("decision provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Provider - источник торговых решений
type Provider interface {
	// Name возвращает имя провайдера
	Name() string

	// AnalyzeMarket оценивает рыночные условия символа без решения о входе
	AnalyzeMarket(ctx context.Context, req *Request) (*Analysis, error)

	// Decide принимает торговое решение для символа
	Decide(ctx context.Context, req *Request) (*Decision, error)

	// Evaluate переоценивает открытую позицию
	Evaluate(ctx context.Context, req *EvalRequest) (*Evaluation, error)
}

// Validate проверяет решение и нормализует его поля.
// Невалидное решение возвращает ошибку, а не исправляется молча.
func (d *Decision) Validate() error {
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", d.Confidence)
	}

	switch d.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	case "":
		d.RiskLevel = RiskMedium
	default:
		return fmt.Errorf("unknown risk level %q", d.RiskLevel)
	}

	if d.StopLossPercent < 0 || d.TakeProfitPercent < 0 {
		return fmt.Errorf("negative protection percent")
	}

	if d.PositionSizePercent < 0 || d.PositionSizePercent > 100 {
		return fmt.Errorf("position size percent %v out of range [0, 100]", d.PositionSizePercent)
	}

	return nil
}

// Validate проверяет анализ рынка и нормализует его поля
func (a *Analysis) Validate() error {
	switch a.Trend {
	case TrendBullish, TrendBearish, TrendNeutral:
	case "":
		a.Trend = TrendNeutral
	default:
		return fmt.Errorf("unknown trend %q", a.Trend)
	}

	switch a.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	case "":
		a.RiskLevel = RiskMedium
	default:
		return fmt.Errorf("unknown risk level %q", a.RiskLevel)
	}

	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", a.Confidence)
	}

	return nil
}

// Validate проверяет решение по открытой позиции
func (e *Evaluation) Validate() error {
	switch e.Action {
	case EvalHold, EvalClose, EvalAdjustStop, EvalAdjustTarget:
	default:
		return fmt.Errorf("unknown evaluation action %q", e.Action)
	}

	switch e.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyImmediate:
	case "":
		e.Urgency = UrgencyLow
	default:
		return fmt.Errorf("unknown urgency %q", e.Urgency)
	}

	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", e.Confidence)
	}

	if e.Action == EvalAdjustStop && e.NewStopLoss <= 0 {
		return fmt.Errorf("adjust_stop without new stop loss")
	}
	if e.Action == EvalAdjustTarget && e.NewTakeProfit <= 0 {
		return fmt.Errorf("adjust_target without new take profit")
	}

	return nil
}
