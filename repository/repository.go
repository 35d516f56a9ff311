// Package repository defines the storage contracts used by the services.
package repository

import (
	"context"
	"errors"

	"RecordStore/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a unique constraint (account email) was violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict indicates a compare-and-swap lost against a concurrent writer.
	ErrConflict = errors.New("concurrent update conflict")
)

// AccountStore persists accounts. Emails are matched case-insensitively.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id uint) (models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uint) error
}

// ItemStore persists catalog items.
type ItemStore interface {
	FindItem(ctx context.Context, id uint) (models.Item, error)
	SaveItem(ctx context.Context, item *models.Item) error
	// AdjustStock adds delta to the stock of item id if its current stock
	// equals expected; otherwise it returns ErrConflict.
	AdjustStock(ctx context.Context, id uint, expected, delta int) error
}

// CartStore persists cart lines keyed by account and item.
type CartStore interface {
	Lines(ctx context.Context, accountID uint) ([]models.CartLine, error)
	Line(ctx context.Context, accountID, itemID uint) (models.CartLine, error)
	// AddToLine atomically adds delta to the line quantity, creating the cart
	// and the line on first use, and returns the new quantity.
	AddToLine(ctx context.Context, accountID, itemID uint, delta int) (int, error)
	// TakeLine atomically removes the line and returns the quantity it held;
	// a missing line yields 0.
	TakeLine(ctx context.Context, accountID, itemID uint) (int, error)
	DeleteCart(ctx context.Context, accountID uint) error
}
