package decision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/news"
)

func testRequest() *Request {
	return &Request{
		Symbol: "BTCUSDT",
		Ticker: &exchange.Ticker{
			Symbol:          "BTCUSDT",
			LastPrice:       50000,
			High24h:         51000,
			Low24h:          49000,
			ChangePercent24: 2.0,
		},
		Balance: 1000,
	}
}

// newTestClaude поднимает httptest сервер с заданным ответом API
func newTestClaude(t *testing.T, status int, body string) (*Claude, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			t.Error("x-api-key header not set")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header not set")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))

	claude := NewClaude("test-key", "claude-test", 5*time.Second)
	claude.endpoint = server.URL
	return claude, server
}

func apiResponse(text string) string {
	return fmt.Sprintf(`{"content":[{"type":"text","text":%q}]}`, text)
}

func TestClaudeDecide(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedAction  string
		expectMalformed bool
		expectError     bool
	}{
		{
			name:           "valid decision",
			status:         http.StatusOK,
			body:           apiResponse(`{"action":"buy","confidence":0.8,"risk_level":"low","reasoning":"uptrend","stop_loss_percent":2,"take_profit_percent":4}`),
			expectedAction: ActionBuy,
		},
		{
			name:           "decision wrapped in prose",
			status:         http.StatusOK,
			body:           apiResponse(`Based on the data my decision is: {"action":"hold","confidence":0.3,"risk_level":"medium","reasoning":"choppy"} as explained.`),
			expectedAction: ActionHold,
		},
		{
			name:            "no json in response",
			status:          http.StatusOK,
			body:            apiResponse("I think you should buy."),
			expectError:     true,
			expectMalformed: true,
		},
		{
			name:            "unknown action",
			status:          http.StatusOK,
			body:            apiResponse(`{"action":"yolo","confidence":0.8}`),
			expectError:     true,
			expectMalformed: true,
		},
		{
			name:            "confidence out of range",
			status:          http.StatusOK,
			body:            apiResponse(`{"action":"buy","confidence":1.7}`),
			expectError:     true,
			expectMalformed: true,
		},
		{
			name:        "http error",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"type":"rate_limit_error"}}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claude, server := newTestClaude(t, tt.status, tt.body)
			defer server.Close()

			got, err := claude.Decide(context.Background(), testRequest())

			if tt.expectError {
				var provErr *ProviderError
				if !errors.As(err, &provErr) {
					t.Fatalf("expected ProviderError, got %v", err)
				}
				if provErr.Malformed != tt.expectMalformed {
					t.Errorf("expected Malformed=%v, got %v", tt.expectMalformed, provErr.Malformed)
				}
				// Сырой ответ сохраняется для логирования
				if tt.expectMalformed && provErr.Raw == "" {
					t.Error("Raw response not preserved")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Action != tt.expectedAction {
				t.Errorf("expected action %q, got %q", tt.expectedAction, got.Action)
			}
		})
	}
}

func testEvalRequest() *EvalRequest {
	return &EvalRequest{
		Position: &Position{
			Symbol:     "BTCUSDT",
			Side:       "buy",
			EntryPrice: 50000,
			MarkPrice:  51000,
			Quantity:   0.01,
			StopLoss:   49000,
			TakeProfit: 53000,
			PnlPercent: 2.0,
		},
		Ticker: &exchange.Ticker{
			Symbol:          "BTCUSDT",
			LastPrice:       51000,
			High24h:         51500,
			Low24h:          50000,
			ChangePercent24: 2.0,
		},
	}
}

func TestClaudeAnalyzeMarket(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		expectedTrend   string
		expectMalformed bool
	}{
		{
			name:          "valid analysis",
			body:          apiResponse(`{"trend":"bullish","volatility":"medium","sentiment":"neutral","risk_level":"low","confidence":0.7,"reasoning":"steady uptrend"}`),
			expectedTrend: TrendBullish,
		},
		{
			name:          "uppercase trend is normalized",
			body:          apiResponse(`{"trend":"Bearish","volatility":"high","risk_level":"high","confidence":0.6}`),
			expectedTrend: TrendBearish,
		},
		{
			name:          "empty trend defaults to neutral",
			body:          apiResponse(`{"volatility":"low","confidence":0.5}`),
			expectedTrend: TrendNeutral,
		},
		{
			name:            "confidence out of range",
			body:            apiResponse(`{"trend":"bullish","confidence":2.5}`),
			expectMalformed: true,
		},
		{
			name:            "prose without json",
			body:            apiResponse("The market looks bullish to me."),
			expectMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claude, server := newTestClaude(t, http.StatusOK, tt.body)
			defer server.Close()

			got, err := claude.AnalyzeMarket(context.Background(), testRequest())

			if tt.expectMalformed {
				var provErr *ProviderError
				if !errors.As(err, &provErr) || !provErr.Malformed {
					t.Fatalf("expected malformed ProviderError, got %v", err)
				}
				if provErr.Raw == "" {
					t.Error("Raw response not preserved")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Trend != tt.expectedTrend {
				t.Errorf("expected trend %q, got %q", tt.expectedTrend, got.Trend)
			}
		})
	}
}

func TestClaudeEvaluate(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		expectedAction  string
		expectMalformed bool
	}{
		{
			name:           "hold",
			body:           apiResponse(`{"action":"hold","urgency":"low","confidence":0.7,"reasoning":"position healthy"}`),
			expectedAction: EvalHold,
		},
		{
			name:           "close with urgency",
			body:           apiResponse(`{"action":"close","urgency":"high","confidence":0.8,"reasoning":"momentum gone"}`),
			expectedAction: EvalClose,
		},
		{
			name:           "adjust stop",
			body:           apiResponse(`{"action":"adjust_stop","new_stop_loss":50000,"urgency":"medium","confidence":0.75}`),
			expectedAction: EvalAdjustStop,
		},
		{
			name:            "adjust stop without a level",
			body:            apiResponse(`{"action":"adjust_stop","urgency":"medium","confidence":0.75}`),
			expectMalformed: true,
		},
		{
			name:            "adjust target without a level",
			body:            apiResponse(`{"action":"adjust_target","urgency":"low","confidence":0.6}`),
			expectMalformed: true,
		},
		{
			name:            "unknown action",
			body:            apiResponse(`{"action":"panic","urgency":"immediate","confidence":0.9}`),
			expectMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claude, server := newTestClaude(t, http.StatusOK, tt.body)
			defer server.Close()

			got, err := claude.Evaluate(context.Background(), testEvalRequest())

			if tt.expectMalformed {
				var provErr *ProviderError
				if !errors.As(err, &provErr) || !provErr.Malformed {
					t.Fatalf("expected malformed ProviderError, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Action != tt.expectedAction {
				t.Errorf("expected action %q, got %q", tt.expectedAction, got.Action)
			}
		})
	}
}

func TestRulesDecide(t *testing.T) {
	tests := []struct {
		name           string
		change         float64
		sentiment      float64
		expectedAction string
	}{
		{"strong up move", 3.0, 0.4, ActionBuy},
		{"strong down move", -3.0, -0.4, ActionSell},
		{"flat market", 0.2, 0.0, ActionHold},
		{"up move against sentiment", 3.0, -0.5, ActionHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			req.Ticker.ChangePercent24 = tt.change
			req.Sentiment = &news.Snapshot{Score: tt.sentiment}

			rules := NewRules()
			got, err := rules.Decide(context.Background(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Action != tt.expectedAction {
				t.Errorf("expected %q, got %q", tt.expectedAction, got.Action)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("rules produced invalid decision: %v", err)
			}
		})
	}
}

func TestRulesAnalyzeMarket(t *testing.T) {
	tests := []struct {
		name          string
		change        float64
		high, low     float64
		expectedTrend string
		expectedRisk  string
	}{
		{"strong up move", 3.0, 51000, 49500, TrendBullish, RiskMedium},
		{"strong down move", -3.0, 51000, 49500, TrendBearish, RiskMedium},
		{"flat market", 0.3, 51000, 49500, TrendNeutral, RiskMedium},
		{"high volatility", 0.3, 52000, 48000, TrendNeutral, RiskHigh},
		{"low volatility", 0.3, 50200, 49900, TrendNeutral, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			req.Ticker.ChangePercent24 = tt.change
			req.Ticker.High24h = tt.high
			req.Ticker.Low24h = tt.low
			req.Sentiment = &news.Snapshot{Score: 0.2, Label: "bullish"}

			rules := NewRules()
			got, err := rules.AnalyzeMarket(context.Background(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Trend != tt.expectedTrend {
				t.Errorf("expected trend %q, got %q", tt.expectedTrend, got.Trend)
			}
			if got.RiskLevel != tt.expectedRisk {
				t.Errorf("expected risk %q, got %q", tt.expectedRisk, got.RiskLevel)
			}
			if got.Sentiment != "bullish" {
				t.Errorf("sentiment label not carried through, got %q", got.Sentiment)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence %v out of range", got.Confidence)
			}
		})
	}
}

func TestRulesEvaluate(t *testing.T) {
	t.Run("momentum reversal closes", func(t *testing.T) {
		req := testEvalRequest()
		req.Ticker.ChangePercent24 = -3.0

		got, err := NewRules().Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != EvalClose {
			t.Errorf("expected close, got %q", got.Action)
		}
		if got.Urgency != UrgencyHigh {
			t.Errorf("expected high urgency, got %q", got.Urgency)
		}
	})

	t.Run("profit moves stop to breakeven", func(t *testing.T) {
		req := testEvalRequest()
		req.Position.PnlPercent = 4.0

		got, err := NewRules().Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != EvalAdjustStop {
			t.Fatalf("expected adjust_stop, got %q", got.Action)
		}
		if got.NewStopLoss != req.Position.EntryPrice {
			t.Errorf("expected breakeven stop %v, got %v", req.Position.EntryPrice, got.NewStopLoss)
		}
	})

	t.Run("quiet market holds", func(t *testing.T) {
		req := testEvalRequest()
		req.Ticker.ChangePercent24 = 0.5
		req.Position.PnlPercent = 1.0

		got, err := NewRules().Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != EvalHold {
			t.Errorf("expected hold, got %q", got.Action)
		}
	})

	t.Run("sell side reversal", func(t *testing.T) {
		req := testEvalRequest()
		req.Position.Side = "sell"
		req.Ticker.ChangePercent24 = 3.0

		got, err := NewRules().Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != EvalClose {
			t.Errorf("expected close on reversal against short, got %q", got.Action)
		}
	})
}
