package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/]+$`)

// ValidateSymbol проверяет формат торгового символа (BTCUSDT, BTC-USDT)
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if len(symbol) < 2 {
		return fmt.Errorf("symbol %q is too short", symbol)
	}
	if len(symbol) > 30 {
		return fmt.Errorf("symbol %q is too long", symbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("symbol %q contains invalid characters", symbol)
	}
	return nil
}

// NormalizeSymbol приводит символ к каноничному виду: BTCUSDT
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

// ValidatePercentage проверяет что значение лежит в [0, 100]
func ValidatePercentage(percent float64) error {
	if percent < 0 {
		return fmt.Errorf("percentage must not be negative, got %v", percent)
	}
	if percent > 100 {
		return fmt.Errorf("percentage must not exceed 100, got %v", percent)
	}
	return nil
}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

// ValidateAPIKey базовая проверка API ключа биржи
func ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if len(key) < 16 {
		return fmt.Errorf("api key is too short")
	}
	if !apiKeyPattern.MatchString(key) {
		return fmt.Errorf("api key contains invalid characters")
	}
	return nil
}

// ValidateAPISecret базовая проверка API секрета
func ValidateAPISecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("api secret is empty")
	}
	if len(secret) < 16 {
		return fmt.Errorf("api secret is too short")
	}
	return nil
}
