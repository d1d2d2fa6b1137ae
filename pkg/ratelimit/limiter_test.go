package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow() {
		t.Error("request beyond burst should be rejected")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(0.1, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first token should be immediate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded while bucket is empty, got %v", err)
	}
}

func TestRefill(t *testing.T) {
	l := New(100, 1)
	if !l.Allow() {
		t.Fatal("first token should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(25 * time.Millisecond)
	if !l.Allow() {
		t.Error("bucket should refill at 100 tokens/sec")
	}
}

func TestNewClampsInvalidValues(t *testing.T) {
	l := New(-5, 0)
	if l.rate != 10 {
		t.Errorf("expected default rate 10, got %f", l.rate)
	}
	if l.burst != 20 {
		t.Errorf("expected default burst 20, got %f", l.burst)
	}
}
