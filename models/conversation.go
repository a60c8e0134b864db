package models

import (
	"fmt"
	"strings"
	"time"
)

// Conversation, direkt (2 kişilik) veya grup mesajlaşma thread'i.
//
// Participants kimliğe göre tekildir ve sunucunun verdiği sırayı korur.
// LastMessage denormalize bir ön izlemedir; "conversation:update" ile değişir.
type Conversation struct {
	ID           string       `json:"_id"`
	IsGroup      bool         `json:"isGroup"`
	Name         string       `json:"name,omitempty"`
	Participants []User       `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount  int          `json:"unreadCount"`
}

// LastMessage, konuşma listesinde gösterilen son mesaj ön izlemesi.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    *User     `json:"sender,omitempty"`
}

// OtherParticipant, direkt konuşmada mevcut kullanıcı dışındaki katılımcıyı döner.
// Grup konuşmalarında veya bulunamazsa nil.
func (c *Conversation) OtherParticipant(currentUserID string) *User {
	if c.IsGroup {
		return nil
	}
	for i := range c.Participants {
		if c.Participants[i].ID != currentUserID {
			return &c.Participants[i]
		}
	}
	return nil
}

// DisplayName, grupta Name'i, direkt konuşmada karşı tarafın adını döner.
func (c *Conversation) DisplayName(currentUserID string) string {
	if c.IsGroup {
		return c.Name
	}
	if other := c.OtherParticipant(currentUserID); other != nil {
		return other.Name
	}
	return c.Name
}

// HasParticipant, userID bu konuşmanın katılımcısı mı.
func (c *Conversation) HasParticipant(userID string) bool {
	for i := range c.Participants {
		if c.Participants[i].ID == userID {
			return true
		}
	}
	return false
}

// Clone, Participants ve LastMessage dahil derin kopya döner.
// Snapshot'lar store'un iç state'ini dışarı sızdırmamak için bunu kullanır.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Participants = make([]User, len(c.Participants))
	copy(out.Participants, c.Participants)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// CreateConversationRequest, POST /api/conversations body'si.
type CreateConversationRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	IsGroup      bool     `json:"isGroup"`
}

// Validate, isteği normalize eder ve doğrular:
// katılımcı ID'leri trim edilip tekilleştirilir, en az bir katılımcı gerekir,
// grup konuşmasında isim zorunludur. Direkt konuşmada isim gönderilmez.
func (r *CreateConversationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)

	seen := make(map[string]bool, len(r.Participants))
	ids := make([]string, 0, len(r.Participants))
	for _, id := range r.Participants {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	r.Participants = ids

	if len(r.Participants) == 0 {
		return fmt.Errorf("at least one participant is required")
	}
	if r.IsGroup && r.Name == "" {
		return fmt.Errorf("group conversations require a name")
	}
	if !r.IsGroup {
		r.Name = ""
	}
	return nil
}
