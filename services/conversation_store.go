package services

import (
	"strings"
	"time"

	"github.com/akinalp/dmsync/models"
)

// conversationStore, konuşmaların normalize edilmiş tutulduğu yapı.
//
// Her konuşma tek bir kopya olarak byID'de yaşar; order listedeki sırayı,
// activeID ise seçili konuşmayı tutar. Aktif konuşma görünümü byID'den
// türetildiği için presence güncellemesi tek yazımla hem listeye hem aktif
// görünüme yansır.
//
// Thread-safe değildir; messenger'ın mutex'i altında kullanılır.
type conversationStore struct {
	byID     map[string]*models.Conversation
	order    []string
	activeID string
}

func newConversationStore() *conversationStore {
	return &conversationStore{byID: make(map[string]*models.Conversation)}
}

// replace, listeyi tamamen değiştirir (partial merge yok).
// Aktif konuşma yeni listede yoksa seçim kaldırılır ve false döner.
func (s *conversationStore) replace(list []models.Conversation) (activeKept bool) {
	s.byID = make(map[string]*models.Conversation, len(list))
	s.order = s.order[:0]

	for i := range list {
		c := list[i].Clone()
		if _, dup := s.byID[c.ID]; dup {
			continue
		}
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
	}

	if s.activeID == "" {
		return true
	}
	if _, ok := s.byID[s.activeID]; ok {
		return true
	}
	s.activeID = ""
	return false
}

// prepend, konuşmayı listenin başına ekler. Aynı ID zaten varsa
// kaydı günceller ve başa taşır.
func (s *conversationStore) prepend(conv models.Conversation) {
	c := conv.Clone()
	if _, ok := s.byID[c.ID]; ok {
		s.remove(c.ID)
	}
	s.byID[c.ID] = &c
	s.order = append([]string{c.ID}, s.order...)
}

func (s *conversationStore) remove(id string) {
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *conversationStore) get(id string) *models.Conversation {
	return s.byID[id]
}

// mergeLastMessage, sadece lastMessage alanını günceller.
// Bilinmeyen konuşma için hiçbir şey yapmaz ve false döner.
func (s *conversationStore) mergeLastMessage(id string, last *models.LastMessage) bool {
	c, ok := s.byID[id]
	if !ok {
		return false
	}
	if last == nil {
		c.LastMessage = nil
		return true
	}
	lm := *last
	c.LastMessage = &lm
	return true
}

// applyPresence, userID'nin katıldığı her konuşmada online/lastSeen bilgisini günceller.
// Güncellenen konuşma sayısını döner.
func (s *conversationStore) applyPresence(userID string, isOnline bool, lastSeen *time.Time) int {
	updated := 0
	for _, id := range s.order {
		c := s.byID[id]
		for i := range c.Participants {
			if c.Participants[i].ID != userID {
				continue
			}
			c.Participants[i].IsOnline = isOnline
			if lastSeen != nil {
				ls := *lastSeen
				c.Participants[i].LastSeen = &ls
			} else {
				c.Participants[i].LastSeen = nil
			}
			updated++
		}
	}
	return updated
}

// setActive, bilinen bir konuşmayı aktif yapar. Bilinmeyen ID için false.
func (s *conversationStore) setActive(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

func (s *conversationStore) active() *models.Conversation {
	if s.activeID == "" {
		return nil
	}
	return s.byID[s.activeID]
}

// list, sıralı derin kopya döner.
func (s *conversationStore) list() []models.Conversation {
	out := make([]models.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// search, adı veya bir katılımcısının adı term'i içeren konuşmaların sıralı
// kopyası. Karşılaştırma büyük/küçük harf duyarsızdır; boş term her şeyi eşler.
func (s *conversationStore) search(term string) []models.Conversation {
	needle := strings.ToLower(term)
	if needle == "" {
		return s.list()
	}

	out := make([]models.Conversation, 0)
	for _, id := range s.order {
		c := s.byID[id]
		if matchesName(c, needle) {
			out = append(out, c.Clone())
		}
	}
	return out
}

func matchesName(c *models.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(c.Name), needle) {
		return true
	}
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return true
		}
	}
	return false
}

func (s *conversationStore) clear() {
	s.byID = make(map[string]*models.Conversation)
	s.order = nil
	s.activeID = ""
}
