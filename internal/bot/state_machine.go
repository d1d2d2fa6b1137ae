package bot

import "autotrader/internal/models"

// ValidTransitions определяет допустимые переходы между статусами сделки.
// Терминальные статусы финальны: из них переходов нет.
var ValidTransitions = map[string][]string{
	models.TradeStatusPending:   {models.TradeStatusActive, models.TradeStatusCancelled, models.TradeStatusError},
	models.TradeStatusActive:    {models.TradeStatusClosed, models.TradeStatusError},
	models.TradeStatusClosed:    {},
	models.TradeStatusCancelled: {},
	models.TradeStatusError:     {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus возвращает true для финальных статусов
func IsTerminalStatus(s string) bool {
	return s == models.TradeStatusClosed || s == models.TradeStatusCancelled || s == models.TradeStatusError
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.TradeStatusPending:
		return "Ордер отправлен, ожидание исполнения"
	case models.TradeStatusActive:
		return "Позиция открыта"
	case models.TradeStatusClosed:
		return "Позиция закрыта"
	case models.TradeStatusCancelled:
		return "Сделка отменена"
	case models.TradeStatusError:
		return "Ошибка! Требуется вмешательство"
	default:
		return "Неизвестный статус"
	}
}
