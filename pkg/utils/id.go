package utils

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// id.go - генерация идентификаторов сессий, сделок и ордеров

// NewSessionID генерирует идентификатор сессии на основе времени запуска.
//
// Формат: session_YYYYMMDD_HHMMSS (UTC)
func NewSessionID() string {
	return NewSessionIDAt(time.Now().UTC())
}

// NewSessionIDAt генерирует идентификатор сессии для указанного времени
func NewSessionIDAt(t time.Time) string {
	return "session_" + t.UTC().Format("20060102_150405")
}

// NewTradeID генерирует уникальный идентификатор сделки.
//
// Формат: trade_<8 hex символов>
func NewTradeID() string {
	return "trade_" + randomHex(4)
}

// NewOrderLinkID генерирует клиентский идентификатор ордера для биржи.
//
// Формат: order_<16 hex символов>
func NewOrderLinkID() string {
	return "order_" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand на практике не возвращает ошибок, fallback на наносекунды
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))[:n*2]
	}
	return hex.EncodeToString(buf)
}
