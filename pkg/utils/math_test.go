package utils

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRoundToLotSize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		lotSize  float64
		expected float64
	}{
		{"rounds down", 0.123456, 0.001, 0.123},
		{"exact multiple", 1.5, 0.5, 1.5},
		{"below one lot", 0.0005, 0.001, 0},
		{"integer lot", 7.9, 1, 7},
		{"zero lot size passthrough", 0.1234, 0, 0.1234},
		{"negative lot size passthrough", 0.1234, -1, 0.1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToLotSize(tt.value, tt.lotSize)
			if !almostEqual(result, tt.expected) {
				t.Errorf("RoundToLotSize(%v, %v) = %v, want %v",
					tt.value, tt.lotSize, result, tt.expected)
			}
		})
	}
}

func TestCalculatePNL(t *testing.T) {
	tests := []struct {
		name     string
		side     string
		entry    float64
		current  float64
		qty      float64
		expected float64
	}{
		{"long profit", "buy", 50000, 51000, 0.1, 100},
		{"long loss", "buy", 50000, 49000, 0.1, -100},
		{"short profit", "sell", 50000, 49000, 0.1, 100},
		{"short loss", "sell", 50000, 51000, 0.1, -100},
		{"zero quantity", "buy", 50000, 51000, 0, 0},
		{"unknown side", "hold", 50000, 51000, 0.1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculatePNL(tt.side, tt.entry, tt.current, tt.qty)
			if !almostEqual(result, tt.expected) {
				t.Errorf("CalculatePNL(%q, %v, %v, %v) = %v, want %v",
					tt.side, tt.entry, tt.current, tt.qty, result, tt.expected)
			}
		})
	}
}

func TestCalculatePNLPercent(t *testing.T) {
	tests := []struct {
		name     string
		side     string
		entry    float64
		current  float64
		expected float64
	}{
		{"long up 2 percent", "buy", 100, 102, 2},
		{"long down 5 percent", "buy", 100, 95, -5},
		{"short down is profit", "sell", 100, 92, 8},
		{"zero entry", "buy", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculatePNLPercent(tt.side, tt.entry, tt.current)
			if !almostEqual(result, tt.expected) {
				t.Errorf("CalculatePNLPercent(%q, %v, %v) = %v, want %v",
					tt.side, tt.entry, tt.current, result, tt.expected)
			}
		})
	}
}

func TestMax(t *testing.T) {
	if Max(1, 2) != 2 {
		t.Error("Max(1, 2) should be 2")
	}
	if Max(-1, -2) != -1 {
		t.Error("Max(-1, -2) should be -1")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if result := Clamp(tt.value, tt.min, tt.max); result != tt.expected {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v",
				tt.value, tt.min, tt.max, result, tt.expected)
		}
	}
}
