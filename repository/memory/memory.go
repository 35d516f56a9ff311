// Package memory implements the repository contracts with mutex-guarded maps.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"RecordStore/models"
	"RecordStore/repository"
)

// Store keeps accounts, items and carts in memory. Identifiers are never reused.
type Store struct {
	mu       sync.RWMutex
	accounts map[uint]models.Account
	emails   map[string]uint
	items    map[uint]models.Item
	carts    map[uint]uint
	lines    map[uint]map[uint]int
	nextID   uint
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[uint]models.Account),
		emails:   make(map[string]uint),
		items:    make(map[uint]models.Item),
		carts:    make(map[uint]uint),
		lines:    make(map[uint]map[uint]int),
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// FindByEmail looks up an account by its normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[models.NormalizeEmail(email)]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return s.accounts[id], nil
}

// FindByID looks up an account by identifier.
func (s *Store) FindByID(ctx context.Context, id uint) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return a, nil
}

// Save inserts a new account or updates an existing one.
func (s *Store) Save(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account.Email = models.NormalizeEmail(account.Email)
	if owner, ok := s.emails[account.Email]; ok && owner != account.ID {
		return repository.ErrDuplicate
	}
	now := time.Now()
	if account.ID == 0 {
		account.ID = s.id()
		account.CreatedAt = now
	} else if prev, ok := s.accounts[account.ID]; ok && prev.Email != account.Email {
		delete(s.emails, prev.Email)
	}
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	s.emails[account.Email] = account.ID
	return nil
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.emails, a.Email)
	delete(s.accounts, id)
	return nil
}

// FindItem looks up an item.
func (s *Store) FindItem(ctx context.Context, id uint) (models.Item, error) {
	if err := ctx.Err(); err != nil {
		return models.Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return models.Item{}, repository.ErrNotFound
	}
	return it, nil
}

// SaveItem inserts or replaces an item. A preset ID is kept.
func (s *Store) SaveItem(ctx context.Context, item *models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if item.ID == 0 {
		item.ID = s.id()
	} else if item.ID > s.nextID {
		s.nextID = item.ID
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = *item
	return nil
}

// AdjustStock applies delta when the stock still equals expected.
func (s *Store) AdjustStock(ctx context.Context, id uint, expected, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if it.Stock != expected {
		return repository.ErrConflict
	}
	it.Stock += delta
	it.UpdatedAt = time.Now()
	s.items[id] = it
	return nil
}

// Lines returns the cart lines of an account ordered by item id.
func (s *Store) Lines(ctx context.Context, accountID uint) ([]models.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cartID := s.carts[accountID]
	out := make([]models.CartLine, 0, len(s.lines[accountID]))
	for itemID, qty := range s.lines[accountID] {
		out = append(out, models.CartLine{CartID: cartID, ItemID: itemID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// Line returns a single cart line.
func (s *Store) Line(ctx context.Context, accountID, itemID uint) (models.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return models.CartLine{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	qty, ok := s.lines[accountID][itemID]
	if !ok {
		return models.CartLine{}, repository.ErrNotFound
	}
	return models.CartLine{CartID: s.carts[accountID], ItemID: itemID, Quantity: qty}, nil
}

// AddToLine creates the cart on first use and increments the line.
func (s *Store) AddToLine(ctx context.Context, accountID, itemID uint, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[accountID]; !ok {
		s.carts[accountID] = s.id()
		s.lines[accountID] = make(map[uint]int)
	}
	s.lines[accountID][itemID] += delta
	return s.lines[accountID][itemID], nil
}

// TakeLine removes a line and returns its quantity; a missing line yields 0.
func (s *Store) TakeLine(ctx context.Context, accountID, itemID uint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	qty := s.lines[accountID][itemID]
	delete(s.lines[accountID], itemID)
	return qty, nil
}

// DeleteCart removes the cart and all its lines.
func (s *Store) DeleteCart(ctx context.Context, accountID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, accountID)
	delete(s.carts, accountID)
	return nil
}
