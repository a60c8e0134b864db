package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/pkg/metrics"
	"github.com/akinalp/dmsync/repository"
)

// CacheOptions, disk cache politikası.
type CacheOptions struct {
	MaxAge           time.Duration // bu süreden eski kayıt geçersizdir
	Window           time.Duration // sadece son Window içindeki mesajlar yazılır
	MaxMessages      int           // kayıt başına en yeni N mesaj (0 = sınırsız)
	MaxConversations int           // toplam kayıt sayısı, LRU ile (0 = sınırsız)
}

// MessageCache, konuşma başına mesaj cache'inin okuma ve yazma kurallarını uygular.
//
// Cache'e sadece Message Cache & Pager (messenger) dokunur. Repository
// satırı olduğu gibi saklar; tazelik, pencere ve boyut kuralları buradadır.
type MessageCache struct {
	repo  repository.MessageCacheRepository
	opts  CacheOptions
	clock clock.Clock
}

// NewMessageCache, yeni bir MessageCache oluşturur.
func NewMessageCache(repo repository.MessageCacheRepository, opts CacheOptions, clk clock.Clock) *MessageCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageCache{repo: repo, opts: opts, clock: clk}
}

// Load, konuşmanın kullanılabilir cache kaydını döner.
//
// Kayıt yoksa, bayatsa (now - timestamp >= MaxAge), boşsa veya okunamıyorsa
// ok=false. Bayat kayıt silinir.
func (c *MessageCache) Load(ctx context.Context, conversationID string) ([]models.Message, bool) {
	entry, err := c.repo.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			return nil, false
		}
		if entry == nil {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			log.Printf("[cache] failed to read %s: %v", conversationID, err)
			return nil, false
		}
		// Kayıt okundu ama accessed_at güncellenemedi; kayıt yine de kullanılabilir.
		log.Printf("[cache] %v", err)
	}

	if !entry.IsFresh(c.clock.Now(), c.opts.MaxAge) {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		if err := c.repo.Delete(ctx, conversationID); err != nil {
			log.Printf("[cache] failed to drop stale entry %s: %v", conversationID, err)
		}
		return nil, false
	}

	if len(entry.Messages) == 0 {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.Messages, true
}

// Store, mesajları now ile etiketleyip yazar. Window dışındaki mesajlar
// atılır, kayıt MaxMessages'a kırpılır, ardından LRU eviction yapılır.
func (c *MessageCache) Store(ctx context.Context, conversationID string, messages []models.Message) error {
	if conversationID == "" {
		return fmt.Errorf("%w: empty conversation id", pkg.ErrBadRequest)
	}

	entry := models.NewCacheEntry(messages, c.clock.Now(), c.opts.Window, c.opts.MaxMessages)
	if err := c.repo.Put(ctx, conversationID, entry); err != nil {
		return err
	}

	if c.opts.MaxConversations > 0 {
		evicted, err := c.repo.EvictLRU(ctx, c.opts.MaxConversations)
		if err != nil {
			return err
		}
		if evicted > 0 {
			metrics.CacheEvictions.Add(float64(evicted))
			log.Printf("[cache] evicted %d least recently used entries", evicted)
		}
	}

	return nil
}

// Clear, tek bir konuşmanın kaydını siler; conversationID boşsa tüm cache temizlenir.
func (c *MessageCache) Clear(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return c.repo.DeleteAll(ctx)
	}
	return c.repo.Delete(ctx, conversationID)
}
