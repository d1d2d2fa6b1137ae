package decision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

const decidePrompt = `You are a disciplined crypto futures trader managing a single position.
Analyze the market state and respond ONLY with compact JSON matching this schema:
{"action":"buy|sell|hold","confidence":0.0,"risk_level":"low|medium|high","reasoning":"...","position_size_percent":10,"stop_loss_percent":2.0,"take_profit_percent":4.0}
Rules: confidence in [0,1]; position_size_percent must be one of 5, 10, 15, 20, 25 or 0 to use the default; stop_loss_percent is mandatory for buy/sell; never exceed the loss limits given in the state.`

const analyzePrompt = `You are a crypto market analyst. Assess current conditions for the given symbol.
Respond ONLY with compact JSON matching this schema:
{"trend":"bullish|bearish|neutral","volatility":"low|medium|high","sentiment":"bullish|bearish|neutral","risk_level":"low|medium|high","confidence":0.0,"reasoning":"..."}
Rules: confidence in [0,1]. Do not recommend trades, only describe conditions.`

const evaluatePrompt = `You are a disciplined crypto futures trader reviewing an open position.
Decide what to do with it and respond ONLY with compact JSON matching this schema:
{"action":"hold|close|adjust_stop|adjust_target","new_stop_loss":0.0,"new_take_profit":0.0,"urgency":"low|medium|high|immediate","confidence":0.0,"reasoning":"..."}
Rules: confidence in [0,1]; new_stop_loss is required for adjust_stop, new_take_profit for adjust_target; prefer hold unless conditions have clearly changed.`

// Claude - провайдер решений на основе Anthropic Messages API
type Claude struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClaude создает провайдер решений Claude
func NewClaude(apiKey, model string, timeout time.Duration) *Claude {
	return &Claude{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name возвращает имя провайдера
func (c *Claude) Name() string {
	return "claude"
}

// AnalyzeMarket запрашивает у модели оценку рыночных условий
func (c *Claude) AnalyzeMarket(ctx context.Context, req *Request) (*Analysis, error) {
	text, err := c.complete(ctx, analyzePrompt, req, "Respond ONLY with the JSON analysis.")
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{}
	raw, perr := c.extractJSON(text)
	if perr != nil {
		return nil, perr
	}
	if err := json.Unmarshal([]byte(raw), analysis); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}

	analysis.Trend = strings.ToLower(strings.TrimSpace(analysis.Trend))
	if err := analysis.Validate(); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}
	return analysis, nil
}

// Decide запрашивает торговое решение у модели.
//
// Неразобранный ответ возвращается как ProviderError с Malformed=true
// и сырым текстом: вызывающая сторона логирует его и трактует как hold.
// Молчаливая подмена ответа на hold здесь запрещена.
func (c *Claude) Decide(ctx context.Context, req *Request) (*Decision, error) {
	text, err := c.complete(ctx, decidePrompt, req, "Respond ONLY with the JSON decision.")
	if err != nil {
		return nil, err
	}
	return c.parseDecision(text)
}

// Evaluate запрашивает у модели решение по открытой позиции
func (c *Claude) Evaluate(ctx context.Context, req *EvalRequest) (*Evaluation, error) {
	text, err := c.complete(ctx, evaluatePrompt, req, "Respond ONLY with the JSON evaluation.")
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{}
	raw, perr := c.extractJSON(text)
	if perr != nil {
		return nil, perr
	}
	if err := json.Unmarshal([]byte(raw), eval); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}

	eval.Action = strings.ToLower(strings.TrimSpace(eval.Action))
	if err := eval.Validate(); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}
	return eval, nil
}

// complete выполняет один запрос к Messages API и возвращает текст ответа
func (c *Claude) complete(ctx context.Context, system string, state interface{}, instruction string) (string, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: fmt.Errorf("marshal state: %w", err)}
	}

	body := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 512,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": "Current state:\n" + string(stateJSON) + "\n\n" + instruction},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Provider: c.Name(),
			Raw:      string(respBytes),
			Err:      fmt.Errorf("http %d", resp.StatusCode),
		}
	}

	var apiResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return "", &ProviderError{Provider: c.Name(), Malformed: true, Raw: string(respBytes), Err: err}
	}

	for _, block := range apiResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", &ProviderError{
		Provider:  c.Name(),
		Malformed: true,
		Raw:       string(respBytes),
		Err:       fmt.Errorf("no text content in response"),
	}
}

// extractJSON извлекает JSON объект из текста модели.
// Модель может обернуть JSON в пояснения, ищем первую и
// последнюю фигурные скобки.
func (c *Claude) extractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", &ProviderError{
			Provider:  c.Name(),
			Malformed: true,
			Raw:       text,
			Err:       fmt.Errorf("no JSON object in response"),
		}
	}

	return trimmed[start : end+1], nil
}

func (c *Claude) parseDecision(text string) (*Decision, error) {
	raw, perr := c.extractJSON(text)
	if perr != nil {
		return nil, perr
	}

	decision := &Decision{}
	if err := json.Unmarshal([]byte(raw), decision); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}

	decision.Action = strings.ToLower(strings.TrimSpace(decision.Action))
	if err := decision.Validate(); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Malformed: true, Raw: text, Err: err}
	}

	return decision, nil
}
