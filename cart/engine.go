package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RecordStore/apperr"
	"RecordStore/logger"
	"RecordStore/metrics"
	"RecordStore/models"
	"RecordStore/repository"
)

const lockStripes = 64

type Options struct {
	StoreTimeout time.Duration
	StockRetries int
}

// Engine 依庫存修改購物車，保證不超賣
type Engine struct {
	items   repository.ItemStore
	carts   repository.CartStore
	opts    Options
	locks   [lockStripes]sync.Mutex
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewEngine(items repository.ItemStore, carts repository.CartStore, opts Options, log *zap.Logger, m *metrics.Metrics) *Engine {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.StockRetries < 1 {
		opts.StockRetries = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{items: items, carts: carts, opts: opts, log: log, metrics: m}
}

type Line struct {
	ItemID      uint            `json:"itemId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Snapshot 讀取時計算的購物車內容
type Snapshot struct {
	AccountID     uint            `json:"accountId"`
	Lines         []Line          `json:"lines"`
	Items         int             `json:"items"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// 同一商品的檢查與保留庫存在同一把鎖內完成
func (e *Engine) lockItem(itemID uint) func() {
	m := &e.locks[itemID%lockStripes]
	m.Lock()
	return m.Unlock
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

// 新增商品至購物車，相同商品合併數量
func (e *Engine) AddItem(ctx context.Context, identity models.Identity, itemID uint, quantity int) (Snapshot, error) {
	if quantity <= 0 {
		return Snapshot{}, apperr.New(apperr.ErrInvalidQuantity, "quantity must be greater than zero")
	}

	unlock := e.lockItem(itemID)
	err := e.reserve(ctx, identity.AccountID, itemID, quantity)
	unlock()
	if err != nil {
		return Snapshot{}, err
	}

	return e.ViewCart(ctx, identity)
}

func (e *Engine) reserve(ctx context.Context, accountID, itemID uint, quantity int) error {
	log := logger.FromContext(ctx, e.log).With(zap.Uint("account_id", accountID), zap.Uint("item_id", itemID))

	for attempt := 0; attempt < e.opts.StockRetries; attempt++ {
		current, err := e.lineQuantity(ctx, accountID, itemID)
		if err != nil {
			return err
		}
		item, err := e.findItem(ctx, itemID)
		if err != nil {
			return err
		}
		//以合併後的數量檢查，而不只是新增的數量
		if quantity > item.Stock {
			e.metrics.Reservation("insufficient")
			return &apperr.StockError{ItemID: itemID, Requested: current + quantity, Available: item.Stock + current}
		}

		sctx, cancel := e.storeCtx(ctx)
		err = e.items.AdjustStock(sctx, itemID, item.Stock, -quantity)
		cancel()
		if errors.Is(err, repository.ErrConflict) {
			e.metrics.StockConflict()
			continue
		}
		if err != nil {
			return e.translate("reserve stock", err)
		}

		//庫存已保留，之後的寫入不受呼叫端中斷影響；以累加寫入，其他節點的新增不會被覆蓋
		commitCtx, cancel := e.storeCtx(context.WithoutCancel(ctx))
		merged, err := e.carts.AddToLine(commitCtx, accountID, itemID, quantity)
		cancel()
		if err != nil {
			log.Error("cart line write failed, releasing reservation", zap.Error(err))
			if rerr := e.release(context.WithoutCancel(ctx), itemID, quantity); rerr != nil {
				log.Error("release reservation failed", zap.Int("quantity", quantity), zap.Error(rerr))
			}
			e.metrics.Reservation("failed")
			return e.translate("write cart line", err)
		}

		e.metrics.Reservation("ok")
		log.Debug("reserved stock", zap.Int("quantity", quantity), zap.Int("line_quantity", merged))
		return nil
	}

	e.metrics.Reservation("conflict")
	return apperr.New(apperr.ErrStoreUnavailable, "stock update kept conflicting")
}

// 歸還庫存，衝突時重讀後重試
func (e *Engine) release(ctx context.Context, itemID uint, quantity int) error {
	for attempt := 0; attempt < e.opts.StockRetries; attempt++ {
		item, err := e.findItem(ctx, itemID)
		if err != nil {
			return err
		}
		sctx, cancel := e.storeCtx(ctx)
		err = e.items.AdjustStock(sctx, itemID, item.Stock, quantity)
		cancel()
		if errors.Is(err, repository.ErrConflict) {
			e.metrics.StockConflict()
			continue
		}
		return e.translate("release stock", err)
	}
	return apperr.New(apperr.ErrStoreUnavailable, "stock update kept conflicting")
}

// 查詢購物車，總價於讀取時計算
func (e *Engine) ViewCart(ctx context.Context, identity models.Identity) (Snapshot, error) {
	sctx, cancel := e.storeCtx(ctx)
	lines, err := e.carts.Lines(sctx, identity.AccountID)
	cancel()
	if err != nil {
		return Snapshot{}, e.translate("list cart lines", err)
	}

	snap := Snapshot{AccountID: identity.AccountID, Lines: []Line{}, TotalPrice: decimal.Zero}
	for _, l := range lines {
		item, err := e.findItem(ctx, l.ItemID)
		if errors.Is(err, apperr.ErrNotFound) {
			logger.FromContext(ctx, e.log).Warn("cart line refers to a missing item",
				zap.Uint("account_id", identity.AccountID), zap.Uint("item_id", l.ItemID))
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		snap.Lines = append(snap.Lines, Line{
			ItemID:      item.ID,
			Name:        item.Name,
			Description: item.Description,
			UnitPrice:   item.UnitPrice,
			Quantity:    l.Quantity,
			Subtotal:    subtotal,
		})
		snap.Items++
		snap.TotalQuantity += l.Quantity
		snap.TotalPrice = snap.TotalPrice.Add(subtotal)
	}
	return snap, nil
}

// 刪除購物車商品並歸還庫存，商品不在購物車時視為成功
func (e *Engine) RemoveItem(ctx context.Context, identity models.Identity, itemID uint) error {
	unlock := e.lockItem(itemID)
	defer unlock()

	//取出與刪除在同一個動作完成，同時刪除時只有一方會歸還庫存
	commitCtx := context.WithoutCancel(ctx)
	sctx, cancel := e.storeCtx(ctx)
	taken, err := e.carts.TakeLine(sctx, identity.AccountID, itemID)
	cancel()
	if err != nil {
		return e.translate("delete cart line", err)
	}
	if taken == 0 {
		return nil
	}

	if err := e.release(commitCtx, itemID, taken); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			//商品已下架，沒有庫存可歸還
			return nil
		}
		logger.FromContext(ctx, e.log).Error("release stock failed, restoring cart line",
			zap.Uint("account_id", identity.AccountID), zap.Uint("item_id", itemID), zap.Error(err))
		sctx, cancel := e.storeCtx(commitCtx)
		defer cancel()
		if _, rerr := e.carts.AddToLine(sctx, identity.AccountID, itemID, taken); rerr != nil {
			logger.FromContext(ctx, e.log).Error("restore cart line failed", zap.Error(rerr))
		}
		return err
	}
	return nil
}

// 清空購物車商品
func (e *Engine) ClearCart(ctx context.Context, identity models.Identity) error {
	sctx, cancel := e.storeCtx(ctx)
	lines, err := e.carts.Lines(sctx, identity.AccountID)
	cancel()
	if err != nil {
		return e.translate("list cart lines", err)
	}
	for _, l := range lines {
		if err := e.RemoveItem(ctx, identity, l.ItemID); err != nil {
			return err
		}
	}
	return nil
}

// 刪除帳號時移除整個購物車
func (e *Engine) DeleteCart(ctx context.Context, identity models.Identity) error {
	if err := e.ClearCart(ctx, identity); err != nil {
		return err
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.translate("delete cart", e.carts.DeleteCart(sctx, identity.AccountID))
}

func (e *Engine) lineQuantity(ctx context.Context, accountID, itemID uint) (int, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	line, err := e.carts.Line(sctx, accountID, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, e.translate("find cart line", err)
	}
	return line.Quantity, nil
}

func (e *Engine) findItem(ctx context.Context, itemID uint) (models.Item, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	item, err := e.items.FindItem(sctx, itemID)
	if err != nil {
		return models.Item{}, e.translate("find item", err)
	}
	return item, nil
}

func (e *Engine) translate(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, op, err)
	}
	return apperr.Store(op, err)
}
