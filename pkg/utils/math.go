package utils

import (
	"math"
)

// RoundToLotSize округляет объем вниз до ближайшего кратного lotSize.
// Округление вниз не дает превысить доступные средства.
// При lotSize <= 0 значение возвращается как есть.
//
//	RoundToLotSize(0.123456, 0.001) = 0.123
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// CalculatePNL возвращает прибыль или убыток позиции в валюте котировки.
//
//	buy:  (currentPrice - entryPrice) * quantity
//	sell: (entryPrice - currentPrice) * quantity
//
// Неизвестная сторона или нулевой объем дают 0.
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}
	switch side {
	case "buy":
		return (currentPrice - entryPrice) * quantity
	case "sell":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// CalculatePNLPercent возвращает PNL позиции в процентах от цены входа.
// Положительное значение означает прибыль для обеих сторон.
func CalculatePNLPercent(side string, entryPrice, currentPrice float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	switch side {
	case "buy":
		return (currentPrice - entryPrice) / entryPrice * 100
	case "sell":
		return (entryPrice - currentPrice) / entryPrice * 100
	default:
		return 0
	}
}

// Max возвращает максимум из двух чисел
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
