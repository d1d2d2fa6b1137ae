package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	jsoniter "github.com/json-iterator/go"

	"autotrader/pkg/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// demoBaseURL - demo окружение Bybit (торговля виртуальными средствами)
const demoBaseURL = "https://api-demo.bybit.com"

// Торговля ведется на linear perpetual контрактах
const category = "linear"

// Лимиты Bybit V5 для приватных эндпоинтов
const (
	requestsPerSecond = 10
	requestBurst      = 20
)

// BybitConfig - настройки подключения к Bybit
type BybitConfig struct {
	APIKey    string
	APISecret string
	Demo      bool
	BaseURL   string // переопределение endpoint, пусто = по Demo
}

// Bybit - реализация Exchange поверх Bybit V5 API
type Bybit struct {
	client  *bybit_api.Client
	limiter *ratelimit.Limiter
	demo    bool
}

// NewBybit создает подключение к Bybit
func NewBybit(cfg BybitConfig) *Bybit {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Demo {
			baseURL = demoBaseURL
		} else {
			baseURL = bybit_api.MAINNET
		}
	}

	client := bybit_api.NewBybitHttpClient(
		cfg.APIKey,
		cfg.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Bybit{
		client:  client,
		limiter: ratelimit.New(requestsPerSecond, requestBurst),
		demo:    cfg.Demo,
	}
}

// Name возвращает имя биржи
func (b *Bybit) Name() string {
	if b.demo {
		return "bybit-demo"
	}
	return "bybit"
}

// GetBalance получает доступный баланс USDT единого торгового аккаунта
func (b *Bybit) GetBalance(ctx context.Context) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, &Error{Op: "get balance", Err: err}
	}

	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, &Error{Op: "get balance", Retryable: true, Err: err}
	}

	var walletResult struct {
		List []struct {
			Coin []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := b.parseResult(result, "get balance", &walletResult); err != nil {
		return 0, err
	}

	for _, account := range walletResult.List {
		for _, coin := range account.Coin {
			if coin.Coin == "USDT" {
				return parseFloat(coin.WalletBalance), nil
			}
		}
	}

	return 0, nil
}

// GetTicker получает рыночные данные по символу
func (b *Bybit) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: "get ticker", Err: err}
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, &Error{Op: "get ticker", Retryable: true, Err: err}
	}

	var tickerResult struct {
		List []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			Bid1Price    string `json:"bid1Price"`
			Ask1Price    string `json:"ask1Price"`
			HighPrice24h string `json:"highPrice24h"`
			LowPrice24h  string `json:"lowPrice24h"`
			Volume24h    string `json:"volume24h"`
			Price24hPcnt string `json:"price24hPcnt"`
		} `json:"list"`
	}
	if err := b.parseResult(result, "get ticker", &tickerResult); err != nil {
		return nil, err
	}

	if len(tickerResult.List) == 0 {
		return nil, &Error{Op: "get ticker", Err: fmt.Errorf("no ticker data for %s", symbol)}
	}

	raw := tickerResult.List[0]
	return &Ticker{
		Symbol:          raw.Symbol,
		LastPrice:       parseFloat(raw.LastPrice),
		BidPrice:        parseFloat(raw.Bid1Price),
		AskPrice:        parseFloat(raw.Ask1Price),
		High24h:         parseFloat(raw.HighPrice24h),
		Low24h:          parseFloat(raw.LowPrice24h),
		Volume24h:       parseFloat(raw.Volume24h),
		ChangePercent24: parseFloat(raw.Price24hPcnt) * 100, // биржа отдает долю, не процент
		Timestamp:       time.Now(),
	}, nil
}

// PlaceMarketOrder размещает рыночный ордер.
// StopLoss и TakeProfit передаются вместе с ордером и
// устанавливаются биржей атомарно с открытием позиции.
func (b *Bybit) PlaceMarketOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: "place order", Err: err}
	}

	params := map[string]interface{}{
		"category":  category,
		"symbol":    req.Symbol,
		"side":      req.Side,
		"orderType": "Market",
		"qty":       formatQty(req.Qty),
	}
	if req.OrderLinkID != "" {
		params["orderLinkId"] = req.OrderLinkID
	}
	if req.StopLoss > 0 {
		params["stopLoss"] = formatPrice(req.StopLoss)
	}
	if req.TakeProfit > 0 {
		params["takeProfit"] = formatPrice(req.TakeProfit)
	}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, &Error{Op: "place order", Retryable: true, Err: err}
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := b.parseResult(result, "place order", &orderResult); err != nil {
		return nil, err
	}

	return &Order{
		ID:          orderResult.OrderID,
		OrderLinkID: orderResult.OrderLinkID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		Status:      "Created",
		CreatedAt:   time.Now(),
	}, nil
}

// GetPosition получает открытую позицию по символу
func (b *Bybit) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: "get position", Err: err}
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, &Error{Op: "get position", Retryable: true, Err: err}
	}

	var positionResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			StopLoss      string `json:"stopLoss"`
			TakeProfit    string `json:"takeProfit"`
		} `json:"list"`
	}
	if err := b.parseResult(result, "get position", &positionResult); err != nil {
		return nil, err
	}

	for _, raw := range positionResult.List {
		size := parseFloat(raw.Size)
		if raw.Symbol != symbol || size == 0 {
			continue
		}
		return &Position{
			Symbol:        raw.Symbol,
			Side:          raw.Side,
			Size:          size,
			EntryPrice:    parseFloat(raw.AvgPrice),
			MarkPrice:     parseFloat(raw.MarkPrice),
			UnrealizedPnl: parseFloat(raw.UnrealisedPnl),
			StopLoss:      parseFloat(raw.StopLoss),
			TakeProfit:    parseFloat(raw.TakeProfit),
		}, nil
	}

	return nil, ErrNoPosition
}

// SetTradingStop обновляет stop-loss и take-profit открытой позиции
func (b *Bybit) SetTradingStop(ctx context.Context, symbol string, stopLoss, takeProfit float64) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &Error{Op: "set trading stop", Err: err}
	}

	params := map[string]interface{}{
		"category":    category,
		"symbol":      symbol,
		"positionIdx": 0, // one-way mode
	}
	if stopLoss > 0 {
		params["stopLoss"] = formatPrice(stopLoss)
	}
	if takeProfit > 0 {
		params["takeProfit"] = formatPrice(takeProfit)
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	if err != nil {
		return &Error{Op: "set trading stop", Retryable: true, Err: err}
	}

	return b.parseResult(result, "set trading stop", nil)
}

// CancelAllOrders отменяет все открытые ордера по символу
func (b *Bybit) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &Error{Op: "cancel orders", Err: err}
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.client.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return &Error{Op: "cancel orders", Retryable: true, Err: err}
	}

	return b.parseResult(result, "cancel orders", nil)
}

// ClosePosition закрывает позицию рыночным ордером противоположной стороны
func (b *Bybit) ClosePosition(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	return b.PlaceMarketOrder(ctx, &OrderRequest{
		Symbol:     symbol,
		Side:       OppositeSide(side),
		Qty:        qty,
		ReduceOnly: true,
	})
}

// parseResult проверяет код ответа биржи и разбирает result в dst.
// Ошибки с retCode != 0 не ретраятся: биржа отклонила запрос осознанно.
func (b *Bybit) parseResult(response interface{}, op string, dst interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return &Error{Op: op, Err: fmt.Errorf("unexpected response type %T", response)}
	}

	if serverResp.RetCode != 0 {
		return &Error{Op: op, Err: fmt.Errorf("api error: %s (code %d)", serverResp.RetMsg, serverResp.RetCode)}
	}

	if dst == nil {
		return nil
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("marshal result: %w", err)}
	}
	if err := json.Unmarshal(resultBytes, dst); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("unmarshal result: %w", err)}
	}

	return nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatQty форматирует количество без хвостовых нулей
func formatQty(qty float64) string {
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(qty, 'f', 6, 64), "0"), ".")
}

// formatPrice форматирует цену для API
func formatPrice(price float64) string {
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(price, 'f', 4, 64), "0"), ".")
}
