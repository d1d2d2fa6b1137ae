package utils

import (
	"strings"
	"time"
)

// Дневные лимиты риска и агрегация статистики считаются
// по календарным дням UTC независимо от локальной зоны процесса.

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня UTC для указанного времени
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetNextDayStartFrom возвращает начало дня, следующего за указанным
// временем. Используется для вычисления момента сброса дневных лимитов.
func GetNextDayStartFrom(t time.Time) time.Time {
	return GetDayStartFrom(t.UTC().AddDate(0, 0, 1))
}

// IsSameDay проверяет что оба времени относятся к одному дню UTC
func IsSameDay(a, b time.Time) bool {
	return GetDayStartFrom(a).Equal(GetDayStartFrom(b))
}

// FormatDuration форматирует продолжительность без дробных частей
// секунд: "45s", "5m30s", "2h15m". Отрицательные значения
// форматируются по модулю.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	s := d.Round(time.Second).String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
