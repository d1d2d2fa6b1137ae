package bot

import (
	"context"
	"errors"
	"sort"

	"autotrader/internal/decision"
	"autotrader/internal/exchange"
	"autotrader/internal/news"
	"autotrader/pkg/utils"
)

// Минимальный балл, при котором возможность принимается
const opportunityThreshold = 0.6

// Волатильность выше этого порога штрафует балл возможности
const highVolatilityPercent = 5.0

// opportunity - кандидат на вход, найденный сканированием
type opportunity struct {
	Symbol   string
	Ticker   *exchange.Ticker
	Analysis *decision.Analysis
	Score    float64
}

// scoreOpportunity вычисляет балл возможности в [0, 1].
//
// База - уверенность анализа; уровень риска, волатильность и
// согласие тренда с новостным фоном сдвигают ее вверх или вниз.
func scoreOpportunity(a *decision.Analysis, ticker *exchange.Ticker, sentiment *news.Snapshot) float64 {
	score := a.Confidence

	switch a.RiskLevel {
	case decision.RiskLow:
		score += 0.1
	case decision.RiskHigh:
		score -= 0.2
	}

	if ticker.VolatilityPercent() > highVolatilityPercent {
		score -= 0.1
	}

	if sentiment != nil {
		agrees := (a.Trend == decision.TrendBullish && sentiment.Score > 0) ||
			(a.Trend == decision.TrendBearish && sentiment.Score < 0)
		if agrees {
			score += 0.1
		}
	}

	return utils.Clamp(score, 0, 1)
}

// scanOpportunities анализирует все настроенные символы и возвращает
// лучшего кандидата с баллом не ниже порога, либо nil.
//
// Ошибка по одному символу не прерывает сканирование остальных.
func (e *Engine) scanOpportunities(ctx context.Context) (*opportunity, error) {
	sentiment := e.news.Snapshot()

	var candidates []*opportunity
	for _, symbol := range e.cfg.Trading.Symbols {
		ticker, err := e.exchange.GetTicker(ctx, symbol)
		if err != nil {
			e.log.Warnw("ticker fetch failed during scan", "symbol", symbol, "error", err)
			continue
		}

		analysis, err := e.provider.AnalyzeMarket(ctx, &decision.Request{
			Symbol:    symbol,
			Ticker:    ticker,
			Sentiment: sentiment,
		})
		if err != nil {
			e.observeDecisionError(err)
			e.log.Warnw("market analysis failed during scan", "symbol", symbol, "error", err)
			continue
		}
		DecisionRequests.WithLabelValues(e.provider.Name(), "ok").Inc()

		score := scoreOpportunity(analysis, ticker, sentiment)
		e.log.Debugw("opportunity scored",
			"symbol", symbol,
			"score", score,
			"trend", analysis.Trend,
			"risk", analysis.RiskLevel,
		)

		candidates = append(candidates, &opportunity{
			Symbol:   symbol,
			Ticker:   ticker,
			Analysis: analysis,
			Score:    score,
		})
	}

	if len(candidates) == 0 {
		return nil, errors.New("no symbols could be analyzed")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	if best.Score < opportunityThreshold {
		return nil, nil
	}
	return best, nil
}

// observeDecisionError разделяет метрики по типу ошибки провайдера
func (e *Engine) observeDecisionError(err error) {
	var perr *decision.ProviderError
	if errors.As(err, &perr) && perr.Malformed {
		DecisionRequests.WithLabelValues(e.provider.Name(), "malformed").Inc()
		return
	}
	DecisionRequests.WithLabelValues(e.provider.Name(), "error").Inc()
}
