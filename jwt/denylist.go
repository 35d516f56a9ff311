package jwt

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist 撤銷尚未過期的Token，項目在until之後自動失效
type Denylist interface {
	Revoke(ctx context.Context, key string, until time.Time) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

// 登出時撤銷單一Token
func TokenKey(tokenID string) string {
	return "jti:" + tokenID
}

// 刪除帳號時撤銷該帳號所有Token
func SubjectKey(accountID uint) string {
	return "sub:" + strconv.FormatUint(uint64(accountID), 10)
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, key string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.entries[key]; !ok || until.After(prev) {
		d.entries[key] = until
	}
	d.sweep()
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.entries[key]
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		delete(d.entries, key)
		return false, nil
	}
	return true, nil
}

// 清除已過期的項目
func (d *MemoryDenylist) sweep() {
	now := d.now()
	for k, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, k)
		}
	}
}

type RedisDenylist struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDenylist(rdb *redis.Client) *RedisDenylist {
	return &RedisDenylist{rdb: rdb, prefix: "denylist:"}
}

func (d *RedisDenylist) Revoke(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.prefix+key, "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
