// Package gormstore implements the repository contracts on top of gorm (MySQL).
package gormstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"RecordStore/models"
	"RecordStore/repository"
)

// Store persists accounts, items and carts through gorm.
type Store struct {
	db *gorm.DB
}

// New wraps an opened and migrated gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByEmail looks up an account by its normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, "email = ?", models.NormalizeEmail(email)).Error
	return a, translate(err)
}

// FindByID looks up an account by identifier.
func (s *Store) FindByID(ctx context.Context, id uint) (models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, id).Error
	return a, translate(err)
}

// Save inserts or updates an account; the unique email index decides races.
func (s *Store) Save(ctx context.Context, account *models.Account) error {
	account.Email = models.NormalizeEmail(account.Email)
	db := s.db.WithContext(ctx)
	if account.ID == 0 {
		return translate(db.Create(account).Error)
	}
	return translate(db.Save(account).Error)
}

// Delete hard-deletes an account so its email can be registered again.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().Delete(&models.Account{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindItem looks up an item.
func (s *Store) FindItem(ctx context.Context, id uint) (models.Item, error) {
	var it models.Item
	err := s.db.WithContext(ctx).First(&it, id).Error
	return it, translate(err)
}

// SaveItem inserts or updates an item.
func (s *Store) SaveItem(ctx context.Context, item *models.Item) error {
	db := s.db.WithContext(ctx)
	if item.ID == 0 {
		return translate(db.Create(item).Error)
	}
	return translate(db.Save(item).Error)
}

// AdjustStock is a conditional update: it only applies when stock still equals expected.
func (s *Store) AdjustStock(ctx context.Context, id uint, expected, delta int) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Item{}).
		Where("id = ? AND stock = ?", id, expected).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Item{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (s *Store) findCart(ctx context.Context, accountID uint) (models.Cart, error) {
	var cart models.Cart
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&cart).Error
	return cart, translate(err)
}

// getOrCreateCart creates the cart on first use; a concurrent creator wins and is re-read.
func (s *Store) getOrCreateCart(ctx context.Context, accountID uint) (models.Cart, error) {
	cart, err := s.findCart(ctx, accountID)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return cart, err
	}
	cart = models.Cart{AccountID: accountID}
	err = translate(s.db.WithContext(ctx).Create(&cart).Error)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.findCart(ctx, accountID)
	}
	return cart, err
}

// Lines returns the cart lines of an account ordered by item id.
func (s *Store) Lines(ctx context.Context, accountID uint) ([]models.CartLine, error) {
	cart, err := s.findCart(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []models.CartLine
	err = s.db.WithContext(ctx).Where("cart_id = ?", cart.ID).Order("item_id").Find(&lines).Error
	return lines, translate(err)
}

// Line returns a single cart line.
func (s *Store) Line(ctx context.Context, accountID, itemID uint) (models.CartLine, error) {
	cart, err := s.findCart(ctx, accountID)
	if err != nil {
		return models.CartLine{}, err
	}
	var line models.CartLine
	err = s.db.WithContext(ctx).Where("cart_id = ? AND item_id = ?", cart.ID, itemID).First(&line).Error
	return line, translate(err)
}

// AddToLine increments the (cart, item) line with ON DUPLICATE KEY UPDATE quantity = quantity + delta.
func (s *Store) AddToLine(ctx context.Context, accountID, itemID uint, delta int) (int, error) {
	cart, err := s.getOrCreateCart(ctx, accountID)
	if err != nil {
		return 0, err
	}
	var quantity int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line := models.CartLine{CartID: cart.ID, ItemID: itemID, Quantity: delta}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("quantity + ?", delta)}),
		}).Create(&line).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.CartLine{}).
			Select("quantity").
			Where("cart_id = ? AND item_id = ?", cart.ID, itemID).
			Scan(&quantity).Error
	})
	return quantity, translate(err)
}

// TakeLine locks the line, deletes it and returns its quantity in one transaction.
func (s *Store) TakeLine(ctx context.Context, accountID, itemID uint) (int, error) {
	cart, err := s.findCart(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var quantity int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line models.CartLine
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND item_id = ?", cart.ID, itemID).
			First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&line).Error; err != nil {
			return err
		}
		quantity = line.Quantity
		return nil
	})
	return quantity, translate(err)
}

// DeleteCart removes the cart together with its lines.
func (s *Store) DeleteCart(ctx context.Context, accountID uint) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		err := tx.Where("account_id = ?", accountID).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&cart).Error
	}))
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateEntry(err):
		return repository.ErrDuplicate
	default:
		return err
	}
}

// MySQL error 1062 when the driver does not translate errors.
func isDuplicateEntry(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "1062")
}
