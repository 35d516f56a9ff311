package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RecordStore/apperr"
	"RecordStore/metrics"
	"RecordStore/models"
	"RecordStore/repository"
)

// Service 管理者維護商品及庫存
type Service struct {
	items   repository.ItemStore
	timeout time.Duration
	retries int
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(items repository.ItemStore, timeout time.Duration, retries int, log *zap.Logger, m *metrics.Metrics) *Service {
	if retries < 1 {
		retries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{items: items, timeout: timeout, retries: retries, log: log, metrics: m}
}

type NewItem struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Stock       int
}

// 新增商品
func (s *Service) CreateItem(ctx context.Context, in NewItem) (models.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Item{}, apperr.New(apperr.ErrInvalidInput, "item name is required")
	}
	if in.UnitPrice.IsNegative() {
		return models.Item{}, apperr.New(apperr.ErrInvalidInput, "unit price must not be negative")
	}
	if in.Stock < 0 {
		return models.Item{}, apperr.New(apperr.ErrInvalidQuantity, "stock must not be negative")
	}

	item := models.Item{Name: name, Description: in.Description, UnitPrice: in.UnitPrice.Round(2), Stock: in.Stock}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.items.SaveItem(ctx, &item); err != nil {
		return models.Item{}, apperr.Store("save item", err)
	}
	s.log.Info("item created", zap.Uint("item_id", item.ID), zap.Int("stock", item.Stock))
	return item, nil
}

// 查詢商品詳細資料
func (s *Service) GetItem(ctx context.Context, id uint) (models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	item, err := s.items.FindItem(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Item{}, apperr.Wrap(apperr.ErrNotFound, "find item", err)
	}
	if err != nil {
		return models.Item{}, apperr.Store("find item", err)
	}
	return item, nil
}

// 調整庫存數量，結果不得小於0
func (s *Service) Restock(ctx context.Context, id uint, delta int) (models.Item, error) {
	if delta == 0 {
		return models.Item{}, apperr.New(apperr.ErrInvalidQuantity, "delta must not be zero")
	}
	for attempt := 0; attempt < s.retries; attempt++ {
		item, err := s.GetItem(ctx, id)
		if err != nil {
			return models.Item{}, err
		}
		if item.Stock+delta < 0 {
			return models.Item{}, apperr.New(apperr.ErrInvalidQuantity, "stock would become negative")
		}

		actx, cancel := context.WithTimeout(ctx, s.timeout)
		err = s.items.AdjustStock(actx, id, item.Stock, delta)
		cancel()
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.StockConflict()
			continue
		}
		if err != nil {
			return models.Item{}, apperr.Store("adjust stock", err)
		}
		item.Stock += delta
		s.log.Info("item restocked", zap.Uint("item_id", id), zap.Int("delta", delta), zap.Int("stock", item.Stock))
		return item, nil
	}
	return models.Item{}, apperr.New(apperr.ErrStoreUnavailable, "stock update kept conflicting")
}
