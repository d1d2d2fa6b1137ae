package utils

import (
	"strings"
	"testing"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{"plain", "BTCUSDT", false},
		{"dashed", "BTC-USDT", false},
		{"slashed", "BTC/USDT", false},
		{"lowercase", "ethusdt", false},
		{"empty", "", true},
		{"single char", "B", true},
		{"too long", strings.Repeat("A", 31), true},
		{"spaces", "BTC USDT", true},
		{"special characters", "BTC$USDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q): got error %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTCUSDT", "BTCUSDT"},
		{"btcusdt", "BTCUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"btc_usdt", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
	}

	for _, tt := range tests {
		if result := NormalizeSymbol(tt.input); result != tt.expected {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidatePercentage(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{10, false},
		{100, false},
		{-0.1, true},
		{100.1, true},
	}

	for _, tt := range tests {
		err := ValidatePercentage(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePercentage(%v): got error %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "AbCdEf1234567890xyz", false},
		{"with dashes", "abc-def_123456789012", false},
		{"empty", "", true},
		{"too short", "shortkey", true},
		{"invalid characters", "key with spaces 12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q): got error %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAPISecret(t *testing.T) {
	if err := ValidateAPISecret("long-enough-secret-value"); err != nil {
		t.Errorf("valid secret rejected: %v", err)
	}
	if err := ValidateAPISecret(""); err == nil {
		t.Error("empty secret should be rejected")
	}
	if err := ValidateAPISecret("short"); err == nil {
		t.Error("short secret should be rejected")
	}
}
