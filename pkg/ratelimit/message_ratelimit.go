// Package ratelimit: Giden mesajlar için client tarafı spam koruması.
//
// Sunucu zaten kullanıcı bazlı rate limit uygular; fakat limit aşıldığında
// sunucu mesajı sessizce düşürür ve client hiçbir "message:receive" echo'su
// alamaz. Bu yüzden client, sunucuya göndermeden önce aynı kuralı kendisi
// uygular ve reddedilen gönderimi "guarded no-op" olarak ele alır.
//
// Kural:
// - window içinde maxMessages mesaja izin verilir.
// - Bir sonraki mesaj cooldown başlatır; cooldown bitene kadar tüm gönderimler
//   reddedilir.
// - Cooldown bitince pencere sıfırlanır.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// messageBucket, bir konuşma için mesaj sayacı ve cooldown bilgisi.
type messageBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero value = cooldown yok
}

// MessageRateLimiter, konuşma bazlı giden mesaj limiti.
//
// Kullanım:
//
//	limiter := ratelimit.NewMessageRateLimiter(5, 5*time.Second, 15*time.Second, clock.New())
//	if !limiter.Allow(conversationID) { return }
type MessageRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*messageBucket
	maxMessages int
	window      time.Duration
	cooldown    time.Duration
	clock       clock.Clock
}

// NewMessageRateLimiter, yeni limiter oluşturur. maxMessages <= 0 ise
// limiter devre dışıdır (Allow her zaman true).
func NewMessageRateLimiter(maxMessages int, window, cooldown time.Duration, clk clock.Clock) *MessageRateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageRateLimiter{
		buckets:     make(map[string]*messageBucket),
		maxMessages: maxMessages,
		window:      window,
		cooldown:    cooldown,
		clock:       clk,
	}
}

// Allow, verilen anahtar için bir mesaja izin verilip verilmediğini döner.
//
// Akış:
// 1. Cooldown'daysa → reject.
// 2. Cooldown bitmişse veya window dolmuşsa → yeni pencere başlat.
// 3. Window içindeyse → count artır, max aşıldıysa cooldown başlat.
func (rl *MessageRateLimiter) Allow(key string) bool {
	if rl.maxMessages <= 0 {
		return true
	}

	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupLocked(now)

	b, exists := rl.buckets[key]
	if !exists {
		rl.buckets[key] = &messageBucket{count: 1, windowStart: now}
		return true
	}

	if !b.cooldownUntil.IsZero() && now.Before(b.cooldownUntil) {
		return false
	}

	if !b.cooldownUntil.IsZero() || now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	b.count++
	if b.count > rl.maxMessages {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}

	return true
}

// CooldownRemaining, anahtarın kalan cooldown süresini döner (yoksa 0).
func (rl *MessageRateLimiter) CooldownRemaining(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists || b.cooldownUntil.IsZero() {
		return 0
	}

	remaining := b.cooldownUntil.Sub(rl.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanupLocked, hem window'u hem cooldown'u bitmiş bucket'ları siler.
// Client tarafında anahtar sayısı az olduğu için ayrı bir goroutine yerine
// her Allow çağrısında yapılır. rl.mu tutulmuş olmalı.
func (rl *MessageRateLimiter) cleanupLocked(now time.Time) {
	for key, b := range rl.buckets {
		windowExpired := now.Sub(b.windowStart) > rl.window
		cooldownExpired := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)

		if windowExpired && cooldownExpired {
			delete(rl.buckets, key)
		}
	}
}
