package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Exchange определяет интерфейс биржи для торговли одной позицией
//
// Все методы принимают context и уважают его отмену.
// Реализации: Bybit (mainnet и demo окружение), Paper (симуляция в памяти).
type Exchange interface {
	// Name возвращает имя биржи
	Name() string

	// GetBalance получает доступный баланс USDT
	GetBalance(ctx context.Context) (float64, error)

	// GetTicker получает рыночные данные по символу
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// PlaceMarketOrder размещает рыночный ордер
	PlaceMarketOrder(ctx context.Context, req *OrderRequest) (*Order, error)

	// GetPosition получает открытую позицию по символу.
	// Если позиции нет, возвращает ErrNoPosition.
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	// SetTradingStop обновляет stop-loss и take-profit открытой позиции
	SetTradingStop(ctx context.Context, symbol string, stopLoss, takeProfit float64) error

	// CancelAllOrders отменяет все открытые ордера по символу
	CancelAllOrders(ctx context.Context, symbol string) error

	// ClosePosition закрывает позицию рыночным ордером противоположной стороны
	ClosePosition(ctx context.Context, symbol, side string, qty float64) (*Order, error)
}

// Ticker содержит рыночные данные по символу
type Ticker struct {
	Symbol          string    `json:"symbol"`
	LastPrice       float64   `json:"last_price"`
	BidPrice        float64   `json:"bid_price"` // лучшая цена покупки
	AskPrice        float64   `json:"ask_price"` // лучшая цена продажи
	High24h         float64   `json:"high_24h"`
	Low24h          float64   `json:"low_24h"`
	Volume24h       float64   `json:"volume_24h"`
	ChangePercent24 float64   `json:"change_percent_24h"`
	Timestamp       time.Time `json:"timestamp"`
}

// VolatilityPercent возвращает размах цены за 24ч в процентах от последней цены
func (t *Ticker) VolatilityPercent() float64 {
	if t.LastPrice == 0 {
		return 0
	}
	return (t.High24h - t.Low24h) / t.LastPrice * 100
}

// OrderRequest - параметры размещения ордера
type OrderRequest struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"` // Buy, Sell
	Qty         float64 `json:"qty"`
	OrderLinkID string  `json:"order_link_id"`
	StopLoss    float64 `json:"stop_loss,omitempty"`
	TakeProfit  float64 `json:"take_profit,omitempty"`
	ReduceOnly  bool    `json:"reduce_only,omitempty"`
}

// Order - размещенный ордер
type Order struct {
	ID          string    `json:"id"`
	OrderLinkID string    `json:"order_link_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Qty         float64   `json:"qty"`
	AvgPrice    float64   `json:"avg_price"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Position - открытая позиция
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit"`
}

// Стороны ордера (формат биржи)
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// OppositeSide возвращает противоположную сторону для закрытия позиции
func OppositeSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ErrNoPosition возвращается, когда открытой позиции по символу нет
var ErrNoPosition = errors.New("no open position")

// Error - ошибка обращения к бирже.
// Retryable показывает, имеет ли смысл повтор с backoff.
type Error struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable сообщает, является ли ошибка временной
func IsRetryable(err error) bool {
	var exchErr *Error
	if errors.As(err, &exchErr) {
		return exchErr.Retryable
	}
	return false
}
