// Package cache は生成結果の有界LRUキャッシュを提供する。
//
// キーはテンプレート識別子を含むプロンプト全文であり、同一キーは退避されるまで
// 常に同一の値を返す（上流コンテンツの変化による無効化は行わない）。
// 容量超過時は最も長く参照されていないエントリから退避する。
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry はキャッシュの1エントリ。
// ExpireAtは将来のTTL対応のために予約されたフィールドで、現設計では未使用
// （ゼロ値＝無期限）。退避はLRUのみで行う。
type Entry struct {
	Key            string
	Value          string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpireAt       time.Time
}

// LRU は固定容量のLRUキャッシュ。複数リクエストから並行に安全に使用できる。
type LRU struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // 先頭が最近使用
	items    map[string]*list.Element
}

// NewLRU は容量capacityのLRUキャッシュを生成する。
// capacityが0以下の場合は1として扱う。
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get はキーに対応する値を返す。ヒットした場合はエントリを最近使用に昇格する。
func (c *LRU) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false
	}

	c.ll.MoveToFront(elem)
	entry := elem.Value.(*Entry)
	entry.LastAccessedAt = time.Now()
	return entry.Value, true
}

// Set はキーと値を登録する。既存キーは値を上書きして最近使用に昇格する。
// 容量超過時は最も長く参照されていないエントリを退避する。
// 戻り値は退避が発生したかどうか。
func (c *LRU) Set(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(*Entry)
		entry.Value = value
		entry.LastAccessedAt = now
		return false
	}

	elem := c.ll.PushFront(&Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	c.items[key] = elem

	if c.ll.Len() <= c.capacity {
		return false
	}

	oldest := c.ll.Back()
	if oldest != nil {
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*Entry).Key)
	}
	return true
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
