package websocket

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"autotrader/internal/models"
	"autotrader/internal/news"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop().Sugar())
}

// testClient регистрирует клиента без реального соединения
// и собирает все полученные сообщения
type testClient struct {
	client   *Client
	mu       sync.Mutex
	received []string
}

func attachTestClient(hub *Hub) *testClient {
	tc := &testClient{
		client: &Client{
			hub:  hub,
			send: make(chan []byte, clientSendBufferSize),
		},
	}
	hub.register <- tc.client

	go func() {
		for msg := range tc.client.send {
			tc.mu.Lock()
			tc.received = append(tc.received, string(msg))
			tc.mu.Unlock()
		}
	}()
	return tc
}

func (tc *testClient) waitFor(t *testing.T, substr string) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tc.mu.Lock()
		for _, msg := range tc.received {
			if strings.Contains(msg, substr) {
				tc.mu.Unlock()
				return msg
			}
		}
		tc.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no message containing %q received", substr)
	return ""
}

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := newTestHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{
		allowAll: true,
	}

	origins := []string{
		"http://localhost:3000",
		"https://evil.com",
		"http://anything.example.org",
	}

	for _, origin := range origins {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	tc := attachTestClient(hub)

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.unregister <- tc.client
	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHub_BroadcastTradeOpened(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	tc := attachTestClient(hub)

	trade := &models.Trade{
		ID:         "trade_abc",
		SessionID:  "session_abc",
		Symbol:     "BTCUSDT",
		Side:       models.SideBuy,
		Status:     models.TradeStatusActive,
		EntryPrice: 60000,
		Quantity:   0.01,
	}
	hub.BroadcastTradeOpened(trade)

	msg := tc.waitFor(t, "trade_opened")
	if !strings.Contains(msg, "trade_abc") {
		t.Errorf("message does not contain trade id: %s", msg)
	}
	if !strings.Contains(msg, "BTCUSDT") {
		t.Errorf("message does not contain symbol: %s", msg)
	}
}

func TestHub_BroadcastRiskEvent(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	tc := attachTestClient(hub)

	hub.BroadcastRiskEvent(&models.RiskEvent{
		SessionID:   "session_abc",
		EventType:   models.RiskEventDailyLossLimit,
		Severity:    models.SeverityCritical,
		Description: "daily loss limit reached",
	})

	msg := tc.waitFor(t, "risk_event")
	if !strings.Contains(msg, "critical") {
		t.Errorf("message does not contain severity: %s", msg)
	}
}

func TestHub_BroadcastSentiment(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	tc := attachTestClient(hub)

	hub.BroadcastSentiment(&news.Snapshot{
		Score:     0.6,
		Label:     "bullish",
		UpdatedAt: time.Now(),
	})

	msg := tc.waitFor(t, "sentiment_update")
	if !strings.Contains(msg, "bullish") {
		t.Errorf("message does not contain label: %s", msg)
	}
}

func TestHub_SlowClientRemoved(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	// Клиент с маленьким буфером, который никто не читает
	slow := &Client{
		hub:  hub,
		send: make(chan []byte, 1),
	}
	hub.register <- slow

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 10; i++ {
		hub.Broadcast(map[string]int{"i": i})
	}

	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("slow client was not removed, count = %d", hub.ClientCount())
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := newTestHub()
	// Run намеренно не запущен: очередь заполняется и
	// лишние сообщения должны отбрасываться без блокировки
	for i := 0; i < 1000; i++ {
		hub.Broadcast(map[string]int{"i": i})
	}

	if hub.DroppedMessages() == 0 {
		t.Error("expected dropped messages with full broadcast queue")
	}
}

func TestHub_Stop(t *testing.T) {
	hub := newTestHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	tc := attachTestClient(hub)
	_ = tc

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-done:
		// OK - Run() exited
	case <-time.After(1 * time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after Stop, got %d", hub.ClientCount())
	}
}

// ============================================================
// Benchmarks
// ============================================================

// BenchmarkHub_Broadcast тестирует скорость broadcast
func BenchmarkHub_Broadcast(b *testing.B) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	trade := &models.Trade{
		ID:         "trade_bench",
		SessionID:  "session_bench",
		Symbol:     "BTCUSDT",
		Side:       models.SideBuy,
		Status:     models.TradeStatusActive,
		EntryPrice: 60000,
		Quantity:   0.01,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastTradeUpdate(trade, 60100)
	}
}

// BenchmarkOriginChecker_Check тестирует скорость проверки origin
func BenchmarkOriginChecker_Check(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		originChecker.Check("http://localhost:3000")
	}
}

// BenchmarkClientPool тестирует sync.Pool для клиентов
func BenchmarkClientPool(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client := clientPool.Get().(*Client)
		clientPool.Put(client)
	}
}

// ============================================================
// Parallel Stress Test
// ============================================================

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast(map[string]int{"goroutine": id, "op": j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}
