package services

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TypingTracker, konuşma başına şu an yazan kullanıcıların kümesi.
//
// "user:typing" event'leri ile beslenir. Aynı kullanıcı iki kez eklenemez;
// isTyping=false kullanıcıyı kümeden çıkarır, boşalan küme silinir.
type TypingTracker struct {
	mu     sync.Mutex
	byConv map[string]map[string]struct{}
}

// NewTypingTracker, boş bir tracker oluşturur.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{byConv: make(map[string]map[string]struct{})}
}

// Set, kullanıcının yazma durumunu günceller. Küme değiştiyse true döner.
func (t *TypingTracker) Set(conversationID, userID string, isTyping bool) bool {
	if conversationID == "" || userID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.byConv[conversationID]

	if isTyping {
		if users == nil {
			users = make(map[string]struct{})
			t.byConv[conversationID] = users
		}
		if _, ok := users[userID]; ok {
			return false
		}
		users[userID] = struct{}{}
		return true
	}

	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byConv, conversationID)
	}
	return true
}

// Typing, konuşmada yazan kullanıcıların sıralı listesi.
func (t *TypingTracker) Typing(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.byConv[conversationID])
}

// IsTyping, konuşmada en az bir kullanıcı yazıyor mu.
func (t *TypingTracker) IsTyping(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byConv[conversationID]) > 0
}

// Snapshot, tüm konuşmaların kopyası.
func (t *TypingTracker) Snapshot() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]string, len(t.byConv))
	for convID, users := range t.byConv {
		out[convID] = sortedKeys(users)
	}
	return out
}

// Clear, tüm typing bilgisini siler (bağlantı koptuğunda veya kullanıcı değiştiğinde).
func (t *TypingTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConv = make(map[string]map[string]struct{})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ─── Outbound debounce ───

// TypingDebouncer, yerel kullanıcının yazma bildirimlerini debounce eder.
//
// Akış:
//  1. Keystroke: yazmıyorsak hemen announce(true), idle timer'ı (yeniden) kur.
//  2. idle süresi boyunca tuşa basılmazsa announce(false).
//  3. Stop (konuşma değişimi / kapanış): hâlâ yazıyorsak announce(false), timer iptal.
//
// announce kilit dışında çağrılır.
type TypingDebouncer struct {
	mu       sync.Mutex
	clock    clock.Clock
	idle     time.Duration
	announce func(isTyping bool)
	typing   bool
	timer    *clock.Timer
	gen      uint64 // her timer kurulumunda artar; eski timer'ın geç tetiklenmesini ayırt eder
}

// NewTypingDebouncer, yeni bir debouncer oluşturur. clk nil ise gerçek saat kullanılır.
func NewTypingDebouncer(idle time.Duration, clk clock.Clock, announce func(isTyping bool)) *TypingDebouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &TypingDebouncer{clock: clk, idle: idle, announce: announce}
}

// Keystroke, bir tuş vuruşunu kaydeder.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	started := !d.typing
	d.typing = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.idle, func() { d.expire(gen) })
	d.mu.Unlock()

	if started {
		d.announce(true)
	}
}

// Stop, debouncer'ı durdurur. Yazma durumu açıksa announce(false) yapılır.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	wasTyping := d.typing
	d.typing = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.mu.Unlock()

	if wasTyping {
		d.announce(false)
	}
}

// Typing, şu an "yazıyor" olarak duyurulmuş mu.
func (d *TypingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

func (d *TypingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	d.announce(false)
}
