package bot

import (
	"errors"
	"fmt"
)

// ErrNotRunning возвращается операциями, требующими активной сессии
var ErrNotRunning = errors.New("no active trading session")

// ErrAlreadyRunning возвращается при повторном запуске движка
var ErrAlreadyRunning = errors.New("trading session already running")

// OrderValidationError - некорректные параметры ордера.
// Отсекается до любого обращения к бирже.
type OrderValidationError struct {
	Field  string
	Reason string
}

func (e *OrderValidationError) Error() string {
	return fmt.Sprintf("order validation: %s: %s", e.Field, e.Reason)
}

// PersistenceError - ошибка записи в хранилище.
// Не останавливает торговлю: in-memory состояние продолжает жить,
// запись повторится при следующем переходе состояния.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
