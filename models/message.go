package models

import (
	"sort"
	"time"
)

// Message, bir konuşmadaki tek mesaj.
//
// Mesajlar sadece sunucu onayı ("message:receive") ile oluşur; client tarafında
// optimistic insert yoktur. ReadBy dışında değişmez.
type Message struct {
	ID             string        `json:"_id"`
	ConversationID string        `json:"conversationId"`
	Sender         User          `json:"sender"`
	Content        string        `json:"content"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	ReadBy         []ReadReceipt `json:"readBy"`
}

// Attachment, mesaja eklenmiş dosya (upload bu modülün dışında).
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ReadReceipt, bir kullanıcının mesajı okuduğu an. Kullanıcı başına en fazla bir kayıt.
type ReadReceipt struct {
	User   string    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

// HasReadBy, userID için okundu kaydı var mı.
func (m *Message) HasReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.User == userID {
			return true
		}
	}
	return false
}

// AddReadBy, userID için okundu kaydı ekler. Kayıt zaten varsa false döner (idempotent).
func (m *Message) AddReadBy(userID string, at time.Time) bool {
	if userID == "" || m.HasReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{User: userID, ReadAt: at})
	return true
}

// ReadByAll, gönderen dışındaki tüm katılımcılar mesajı okudu mu.
// Konuşma bilinmiyorsa veya mesajın okundu listesi hiç gelmediyse false.
func (m *Message) ReadByAll(conv *Conversation) bool {
	if conv == nil || m.ReadBy == nil {
		return false
	}
	for _, p := range conv.Participants {
		if p.ID == m.Sender.ID {
			continue
		}
		if !m.HasReadBy(p.ID) {
			return false
		}
	}
	return true
}

// Clone, ReadBy ve Attachments slice'larını kopyalayarak değer döner.
func (m *Message) Clone() Message {
	out := *m
	if m.ReadBy != nil {
		out.ReadBy = append([]ReadReceipt(nil), m.ReadBy...)
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return out
}

// MessagePage, GET /api/messages/{conversationId} yanıtı.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// OldestCreatedAt, mesajlar arasındaki en küçük CreatedAt'i döner.
// Boş slice için ok=false.
func OldestCreatedAt(messages []Message) (time.Time, bool) {
	if len(messages) == 0 {
		return time.Time{}, false
	}
	oldest := messages[0].CreatedAt
	for _, m := range messages[1:] {
		if m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
	}
	return oldest, true
}

// MergeByID, existing ve incoming listelerini mesaj ID'sine göre birleştirir.
// Aynı ID iki listede varsa incoming kazanır (last write wins). Sonuç
// CreatedAt'e göre artan sıradadır; eşit zamanlarda ilk görülme sırası korunur.
func MergeByID(existing, incoming []Message) []Message {
	index := make(map[string]int, len(existing)+len(incoming))
	merged := make([]Message, 0, len(existing)+len(incoming))

	for _, list := range [][]Message{existing, incoming} {
		for _, m := range list {
			if i, ok := index[m.ID]; ok {
				merged[i] = m
				continue
			}
			index[m.ID] = len(merged)
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
