package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Paper - биржа-симулятор для paper trading.
//
// Хранит баланс и позицию в памяти, исполняет рыночные ордера
// мгновенно по текущей симулированной цене. Используется при
// PAPER_TRADING=true и в тестах.
type Paper struct {
	mu       sync.Mutex
	balance  float64
	position *Position
	prices   map[string]float64
	orderSeq int

	rng *rand.Rand
}

// NewPaper создает paper-биржу с начальным балансом
func NewPaper(balance float64) *Paper {
	return &Paper{
		balance: balance,
		prices: map[string]float64{
			"BTCUSDT": 60000,
			"ETHUSDT": 3000,
			"SOLUSDT": 150,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name возвращает имя биржи
func (p *Paper) Name() string {
	return "paper"
}

// SetPrice устанавливает симулированную цену символа (для тестов)
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// GetBalance получает доступный баланс
func (p *Paper) GetBalance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// price возвращает текущую цену с небольшим случайным дрейфом.
// Вызывать только под mutex.
func (p *Paper) price(symbol string) (float64, error) {
	base, ok := p.prices[symbol]
	if !ok {
		return 0, &Error{Op: "get price", Err: fmt.Errorf("unknown symbol %s", symbol)}
	}

	// Дрейф ±0.1% имитирует движение рынка между опросами
	drift := 1 + (p.rng.Float64()-0.5)*0.002
	current := base * drift
	p.prices[symbol] = current
	return current, nil
}

// GetTicker получает симулированные рыночные данные
func (p *Paper) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, err := p.price(symbol)
	if err != nil {
		return nil, err
	}

	spread := price * 0.0001
	return &Ticker{
		Symbol:          symbol,
		LastPrice:       price,
		BidPrice:        price - spread,
		AskPrice:        price + spread,
		High24h:         price * 1.02,
		Low24h:          price * 0.98,
		Volume24h:       1000,
		ChangePercent24: (p.rng.Float64() - 0.5) * 4,
		Timestamp:       time.Now(),
	}, nil
}

// PlaceMarketOrder исполняет рыночный ордер мгновенно по текущей цене
func (p *Paper) PlaceMarketOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, err := p.price(req.Symbol)
	if err != nil {
		return nil, err
	}

	p.orderSeq++
	order := &Order{
		ID:          fmt.Sprintf("paper-%d", p.orderSeq),
		OrderLinkID: req.OrderLinkID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		AvgPrice:    price,
		Status:      "Filled",
		CreatedAt:   time.Now(),
	}

	if req.ReduceOnly {
		// Закрытие позиции: реализуем PNL в баланс
		if p.position == nil || p.position.Symbol != req.Symbol {
			return nil, &Error{Op: "place order", Err: fmt.Errorf("no position to reduce for %s", req.Symbol)}
		}
		pnl := p.positionPnl(price)
		p.balance += pnl
		p.position = nil
		return order, nil
	}

	if p.position != nil {
		return nil, &Error{Op: "place order", Err: fmt.Errorf("position already open for %s", p.position.Symbol)}
	}

	p.position = &Position{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Size:       req.Qty,
		EntryPrice: price,
		MarkPrice:  price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}

	return order, nil
}

// positionPnl считает PNL позиции для цены price. Вызывать под mutex.
func (p *Paper) positionPnl(price float64) float64 {
	if p.position == nil {
		return 0
	}
	if p.position.Side == SideBuy {
		return (price - p.position.EntryPrice) * p.position.Size
	}
	return (p.position.EntryPrice - price) * p.position.Size
}

// GetPosition получает открытую позицию по символу
func (p *Paper) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.position == nil || p.position.Symbol != symbol {
		return nil, ErrNoPosition
	}

	price, err := p.price(symbol)
	if err != nil {
		return nil, err
	}

	pos := *p.position
	pos.MarkPrice = price
	pos.UnrealizedPnl = p.positionPnl(price)
	return &pos, nil
}

// SetTradingStop обновляет защитные уровни позиции
func (p *Paper) SetTradingStop(ctx context.Context, symbol string, stopLoss, takeProfit float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.position == nil || p.position.Symbol != symbol {
		return ErrNoPosition
	}

	if stopLoss > 0 {
		p.position.StopLoss = stopLoss
	}
	if takeProfit > 0 {
		p.position.TakeProfit = takeProfit
	}
	return nil
}

// CancelAllOrders отменяет открытые ордера. Для paper-биржи
// открытых (неисполненных) ордеров не бывает.
func (p *Paper) CancelAllOrders(ctx context.Context, symbol string) error {
	return nil
}

// ClosePosition закрывает позицию рыночным ордером противоположной стороны
func (p *Paper) ClosePosition(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	return p.PlaceMarketOrder(ctx, &OrderRequest{
		Symbol:     symbol,
		Side:       OppositeSide(side),
		Qty:        qty,
		ReduceOnly: true,
	})
}
