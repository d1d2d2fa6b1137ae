package utils

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionIDAt(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 45, 0, time.UTC)

	id := NewSessionIDAt(ts)
	if id != "session_20260115_093045" {
		t.Errorf("NewSessionIDAt = %q, want session_20260115_093045", id)
	}
}

func TestNewSessionIDAt_NonUTC(t *testing.T) {
	// Время в другой зоне нормализуется к UTC
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2026, 1, 15, 12, 30, 45, 0, loc)

	id := NewSessionIDAt(ts)
	if id != "session_20260115_093045" {
		t.Errorf("NewSessionIDAt = %q, want session_20260115_093045", id)
	}
}

func TestNewTradeID(t *testing.T) {
	id := NewTradeID()

	if !strings.HasPrefix(id, "trade_") {
		t.Errorf("NewTradeID = %q, want trade_ prefix", id)
	}
	if len(id) != len("trade_")+8 {
		t.Errorf("NewTradeID = %q, want 8 hex chars after prefix", id)
	}
}

func TestNewOrderLinkID(t *testing.T) {
	id := NewOrderLinkID()

	if !strings.HasPrefix(id, "order_") {
		t.Errorf("NewOrderLinkID = %q, want order_ prefix", id)
	}
	if len(id) != len("order_")+16 {
		t.Errorf("NewOrderLinkID = %q, want 16 hex chars after prefix", id)
	}
}

func TestNewTradeID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTradeID()
		if seen[id] {
			t.Fatalf("duplicate trade id generated: %s", id)
		}
		seen[id] = true
	}
}
