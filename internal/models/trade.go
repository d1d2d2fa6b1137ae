package models

import "time"

// Trade представляет одну сделку в рамках сессии.
// В любой момент времени в сессии может быть не более одной
// незавершенной (pending/active) сделки.
type Trade struct {
	ID                string     `json:"id" db:"id"`
	SessionID         string     `json:"session_id" db:"session_id"`
	Symbol            string     `json:"symbol" db:"symbol"`
	Side              string     `json:"side" db:"side"` // buy, sell
	Quantity          float64    `json:"quantity" db:"quantity"`
	EntryPrice        float64    `json:"entry_price" db:"entry_price"`
	ExitPrice         *float64   `json:"exit_price,omitempty" db:"exit_price"`
	StopLoss          float64    `json:"stop_loss" db:"stop_loss"`
	TakeProfit        float64    `json:"take_profit" db:"take_profit"`
	OrderID           string     `json:"order_id,omitempty" db:"order_id"`
	OrderLinkID       string     `json:"order_link_id,omitempty" db:"order_link_id"`
	Status            string     `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	Pnl               *float64   `json:"pnl,omitempty" db:"pnl"`
	DecisionReasoning string     `json:"decision_reasoning,omitempty" db:"decision_reasoning"`
	Confidence        float64    `json:"confidence" db:"confidence"`
	EmergencyClose    bool       `json:"emergency_close" db:"emergency_close"`
	Metadata          string     `json:"metadata,omitempty" db:"metadata"`
}

// Статусы сделки
const (
	TradeStatusPending   = "pending"   // ордер отправлен, исполнение не подтверждено
	TradeStatusActive    = "active"    // позиция открыта
	TradeStatusClosed    = "closed"    // позиция закрыта штатно
	TradeStatusCancelled = "cancelled" // отменена до открытия позиции
	TradeStatusError     = "error"     // завершена с ошибкой
)

// Стороны сделки
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// IsTerminal возвращает true для конечных статусов.
// Конечный статус не может быть изменен.
func (t *Trade) IsTerminal() bool {
	switch t.Status {
	case TradeStatusClosed, TradeStatusCancelled, TradeStatusError:
		return true
	}
	return false
}

// UnrealizedPnlPercent возвращает нереализованный PNL в процентах
// от цены входа для текущей рыночной цены mark.
func (t *Trade) UnrealizedPnlPercent(mark float64) float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	if t.Side == SideBuy {
		return (mark - t.EntryPrice) / t.EntryPrice * 100
	}
	return (t.EntryPrice - mark) / t.EntryPrice * 100
}
