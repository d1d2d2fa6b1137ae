package news

import "strings"

// Analyzer - лексический анализатор сентимента заголовков.
//
// Считает вхождения bullish/bearish ключевых слов и возвращает
// нормированный score в [-1, 1]. Осознанно без LLM: фон новостей
// лишь корректирует уверенность решения, а не принимает его.
type Analyzer struct {
	bullish []string
	bearish []string
}

// NewAnalyzer создает анализатор со словарями по умолчанию
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		bullish: []string{
			"rally", "surge", "soar", "gain", "bullish", "breakout", "record high",
			"adoption", "approval", "etf inflow", "accumulate", "upgrade", "rebound",
			"all-time high", "institutional", "buy the dip",
		},
		bearish: []string{
			"crash", "plunge", "dump", "bearish", "sell-off", "selloff", "liquidation",
			"hack", "exploit", "ban", "lawsuit", "sec charges", "outflow", "downgrade",
			"fear", "collapse", "bankruptcy", "fraud",
		},
	}
}

// Score возвращает суммарный сентимент заголовков в [-1, 1]
func (a *Analyzer) Score(headlines []Headline) float64 {
	if len(headlines) == 0 {
		return 0
	}

	var total float64
	for _, h := range headlines {
		total += a.scoreTitle(h.Title)
	}

	score := total / float64(len(headlines))
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// scoreTitle оценивает один заголовок
func (a *Analyzer) scoreTitle(title string) float64 {
	lower := strings.ToLower(title)

	var score float64
	for _, word := range a.bullish {
		if strings.Contains(lower, word) {
			score += 1
		}
	}
	for _, word := range a.bearish {
		if strings.Contains(lower, word) {
			score -= 1
		}
	}

	// Один заголовок не должен перевешивать весь срез
	if score > 2 {
		score = 2
	}
	if score < -2 {
		score = -2
	}
	return score / 2
}

// Label возвращает текстовую метку для score
func Label(score float64) string {
	switch {
	case score >= 0.2:
		return "bullish"
	case score <= -0.2:
		return "bearish"
	default:
		return "neutral"
	}
}
