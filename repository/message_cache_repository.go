// Package repository, engine'in kalıcı depolama katmanıdır.
//
// Tek tablo vardır: message_cache. Her konuşma için bir satır tutulur;
// satırın payload'ı models.CacheEntry'nin JSON hali (opsiyonel olarak şifreli).
package repository

import (
	"context"

	"github.com/akinalp/dmsync/models"
)

// MessageCacheRepository, konuşma başına mesaj cache'i için interface.
//
// Get kaydın tazeliğine karar vermez; freshness kontrolü engine'de,
// CacheEntry.IsFresh ile yapılır. Bulunamayan kayıt için pkg.ErrNotFound döner.
//
// EvictLRU, accessed_at'e göre en eski kayıtları silerek toplam kayıt
// sayısını maxEntries'e indirir ve silinen kayıt sayısını döner.
type MessageCacheRepository interface {
	Get(ctx context.Context, conversationID string) (*models.CacheEntry, error)
	Put(ctx context.Context, conversationID string, entry models.CacheEntry) error
	Delete(ctx context.Context, conversationID string) error
	DeleteAll(ctx context.Context) error
	EvictLRU(ctx context.Context, maxEntries int) (int, error)
	Count(ctx context.Context) (int, error)
}
