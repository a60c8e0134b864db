// Package cache: Generic in-memory TTL cache.
//
// TTLCache, belirli bir süre sonra geçersiz olan kayıtları tutan thread-safe,
// generic bir cache'tir. Engine'de yeni konuşma formu için çekilen üye listesini
// (GET /api/users/members) kısa süre bellekte tutmak için kullanılır.
//
// Süre ölçümü enjekte edilen clock.Clock ile yapılır; testlerde clock.NewMock()
// verilerek TTL deterministik olarak ilerletilebilir.
//
// Stale entry'ler Get'te döndürülmez; map'ten fiziksel silme her Set'te yapılır.
// Client tarafında entry sayısı küçük olduğu için ayrı bir cleanup goroutine'i yoktur.
package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// entry, cache'teki tek bir kayıttır.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, generic in-memory TTL cache.
//
//	members := cache.New[string, []models.User](5*time.Minute, clock.New())
//	members.Set(userID, list)
//	list, ok := members.Get(userID)
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	clock   clock.Clock
}

// New, yeni bir TTLCache oluşturur. clk nil ise gerçek saat kullanılır.
func New[K comparable, V any](ttl time.Duration, clk clock.Clock) *TTLCache[K, V] {
	if clk == nil {
		clk = clock.New()
	}
	return &TTLCache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		clock:   clk,
	}
}

// Get, (value, true) döner eğer key varsa ve süresi dolmamışsa.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set, cache'e bir değer yazar ve süresi dolmuş kayıtları temizler.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: now.Add(c.ttl),
	}
}

// Delete, belirli bir key'i cache'ten siler.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear, tüm cache'i boşaltır (kullanıcı değiştiğinde).
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]entry[V])
}

// Len, cache'teki toplam entry sayısını döner (süresi dolmuşlar dahil).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
