package apperr

import (
	"context"
	"errors"
	"fmt"
)

// 錯誤分類，handlers依此決定HTTP狀態碼
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDisabled        = errors.New("account disabled")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrCorruptCredentialState = errors.New("corrupt credential state")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New 建立一個歸類於kind的錯誤，errors.Is(err, kind)成立
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Wrap 將底層錯誤歸類於kind，同時保留原始錯誤
func Wrap(kind error, msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, errors.Join(kind, err))
}

// StockError 回報庫存不足時實際可用的數量
type StockError struct {
	ItemID    uint
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Store 將儲存層逾時或取消轉為ErrStoreUnavailable
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsCredentialError 判斷是否為不可對外透露細節的身分驗證錯誤
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountDisabled) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrCorruptCredentialState)
}
