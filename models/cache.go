package models

import "time"

// CacheEntry, bir konuşmanın disk cache kaydı: {messages, timestamp}.
// Timestamp capture anının unix milisaniyesidir.
type CacheEntry struct {
	Messages  []Message `json:"messages"`
	Timestamp int64     `json:"timestamp"`
}

// NewCacheEntry, now anında capture edilmiş bir kayıt oluşturur.
// Sadece now-window sonrasında oluşturulmuş mesajlar tutulur; maxMessages > 0 ise
// en yeni maxMessages mesaj kalır. Girdi slice'ı değiştirilmez.
func NewCacheEntry(messages []Message, now time.Time, window time.Duration, maxMessages int) CacheEntry {
	cutoff := now.Add(-window)

	recent := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.CreatedAt.After(cutoff) {
			recent = append(recent, m.Clone())
		}
	}

	if maxMessages > 0 && len(recent) > maxMessages {
		recent = MergeByID(nil, recent)
		recent = recent[len(recent)-maxMessages:]
	}

	return CacheEntry{Messages: recent, Timestamp: now.UnixMilli()}
}

// CapturedAt, Timestamp'i time.Time olarak döner.
func (e *CacheEntry) CapturedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsFresh, kayıt now anında hâlâ kullanılabilir mi: now - captured < maxAge.
func (e *CacheEntry) IsFresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CapturedAt()) < maxAge
}
