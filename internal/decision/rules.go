package decision

import (
	"context"
	"fmt"
	"math"
)

// Rules - детерминированный провайдер решений без внешних вызовов.
//
// Простая momentum-стратегия: торгует по направлению суточного
// движения, если новостной фон не противоречит. Используется в
// paper trading и как запасной вариант без API ключа.
type Rules struct {
	// Минимальное суточное движение цены для входа, %
	MinMovePercent float64
}

// NewRules создает rule-based провайдер
func NewRules() *Rules {
	return &Rules{MinMovePercent: 1.5}
}

// Name возвращает имя провайдера
func (r *Rules) Name() string {
	return "rules"
}

// AnalyzeMarket оценивает условия по суточному движению и волатильности
func (r *Rules) AnalyzeMarket(ctx context.Context, req *Request) (*Analysis, error) {
	if req.Ticker == nil {
		return nil, &ProviderError{Provider: r.Name(), Err: fmt.Errorf("ticker required")}
	}

	change := req.Ticker.ChangePercent24
	volatility := req.Ticker.VolatilityPercent()

	analysis := &Analysis{
		Trend:      TrendNeutral,
		Volatility: "medium",
		Sentiment:  TrendNeutral,
		RiskLevel:  RiskMedium,
	}

	switch {
	case change >= r.MinMovePercent:
		analysis.Trend = TrendBullish
	case change <= -r.MinMovePercent:
		analysis.Trend = TrendBearish
	}

	switch {
	case volatility > 6:
		analysis.Volatility = "high"
		analysis.RiskLevel = RiskHigh
	case volatility < 2:
		analysis.Volatility = "low"
		analysis.RiskLevel = RiskLow
	}

	if req.Sentiment != nil {
		analysis.Sentiment = req.Sentiment.Label
	}

	// Уверенность анализа растет с величиной движения
	analysis.Confidence = math.Min(0.5+math.Abs(change)/(r.MinMovePercent*8), 0.9)
	analysis.Reasoning = fmt.Sprintf("24h change %.2f%%, volatility %.2f%%", change, volatility)

	return analysis, nil
}

// Evaluate переоценивает позицию: закрывает при развороте движения,
// подтягивает стоп при достаточной прибыли, иначе держит
func (r *Rules) Evaluate(ctx context.Context, req *EvalRequest) (*Evaluation, error) {
	if req.Position == nil || req.Ticker == nil {
		return nil, &ProviderError{Provider: r.Name(), Err: fmt.Errorf("position and ticker required")}
	}

	pos := req.Position
	change := req.Ticker.ChangePercent24

	eval := &Evaluation{
		Action:     EvalHold,
		Urgency:    UrgencyLow,
		Confidence: 0.6,
	}

	// Разворот суточного движения против позиции
	against := (pos.Side == "buy" && change <= -r.MinMovePercent) ||
		(pos.Side == "sell" && change >= r.MinMovePercent)
	if against {
		eval.Action = EvalClose
		eval.Urgency = UrgencyHigh
		eval.Confidence = math.Min(0.6+math.Abs(change)/(r.MinMovePercent*4), 0.9)
		eval.Reasoning = fmt.Sprintf("24h momentum reversed against %s position: %.2f%%", pos.Side, change)
		return eval, nil
	}

	// В прибыли больше 3% - переносим стоп в безубыток
	if pos.PnlPercent > 3 && pos.StopLoss > 0 {
		breakeven := pos.EntryPrice
		improves := (pos.Side == "buy" && breakeven > pos.StopLoss) ||
			(pos.Side == "sell" && breakeven < pos.StopLoss)
		if improves {
			eval.Action = EvalAdjustStop
			eval.NewStopLoss = breakeven
			eval.Urgency = UrgencyMedium
			eval.Reasoning = fmt.Sprintf("position up %.2f%%, moving stop to breakeven", pos.PnlPercent)
			return eval, nil
		}
	}

	eval.Reasoning = fmt.Sprintf("no exit signal: pnl %.2f%%, 24h change %.2f%%", pos.PnlPercent, change)
	return eval, nil
}

// Decide принимает решение по суточному движению и сентименту
func (r *Rules) Decide(ctx context.Context, req *Request) (*Decision, error) {
	if req.Ticker == nil {
		return nil, &ProviderError{Provider: r.Name(), Err: fmt.Errorf("ticker required")}
	}

	change := req.Ticker.ChangePercent24
	sentiment := 0.0
	if req.Sentiment != nil {
		sentiment = req.Sentiment.Score
	}

	decision := &Decision{
		Action:            ActionHold,
		RiskLevel:         RiskMedium,
		StopLossPercent:   2,
		TakeProfitPercent: 4,
	}

	switch {
	case change >= r.MinMovePercent && sentiment >= 0:
		decision.Action = ActionBuy
		decision.Reasoning = fmt.Sprintf("24h change +%.2f%% with non-negative sentiment %.2f", change, sentiment)
	case change <= -r.MinMovePercent && sentiment <= 0:
		decision.Action = ActionSell
		decision.Reasoning = fmt.Sprintf("24h change %.2f%% with non-positive sentiment %.2f", change, sentiment)
	default:
		decision.Reasoning = fmt.Sprintf("no clear setup: change %.2f%%, sentiment %.2f", change, sentiment)
		return decision, nil
	}

	// Уверенность растет с величиной движения, но насыщается
	strength := math.Abs(change) / (r.MinMovePercent * 4)
	decision.Confidence = math.Min(0.55+strength, 0.9)

	// Согласованный сентимент немного повышает уверенность
	if sentiment*change > 0 {
		decision.Confidence = math.Min(decision.Confidence+0.05, 0.95)
	}

	if req.Ticker.VolatilityPercent() > 6 {
		decision.RiskLevel = RiskHigh
	} else if math.Abs(change) < r.MinMovePercent*2 {
		decision.RiskLevel = RiskLow
	}

	return decision, nil
}
