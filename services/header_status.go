package services

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/akinalp/dmsync/models"
)

// Header status metinleri
const (
	StatusTyping  = "Typing..."
	StatusOnline  = "Online"
	StatusOffline = "Offline"

	NoMessagesPreview = "No messages yet"
)

// previewMaxRunes: konuşma listesindeki son mesaj ön izlemesinin uzunluğu.
const previewMaxRunes = 30

// HeaderStatus, konuşma başlığının altında gösterilen durum metni.
//
// Öncelik sırası:
//   - grup: "N members"
//   - biri yazıyor: "Typing..." (online/last seen bilgisinin önüne geçer)
//   - karşı taraf online: "Online"
//   - lastSeen yok: "Offline"
//   - diğer: "Last seen 5 minutes ago"
func HeaderStatus(conv *models.Conversation, currentUserID string, typingIDs []string, now time.Time) string {
	if conv == nil {
		return ""
	}
	if conv.IsGroup {
		return fmt.Sprintf("%d members", len(conv.Participants))
	}
	if len(typingIDs) > 0 {
		return StatusTyping
	}

	other := conv.OtherParticipant(currentUserID)
	if other == nil {
		return StatusOffline
	}
	if other.IsOnline {
		return StatusOnline
	}
	if other.LastSeen == nil {
		return StatusOffline
	}
	return "Last seen " + humanize.RelTime(*other.LastSeen, now, "ago", "from now")
}

// LastMessagePreview, konuşma listesinde gösterilen son mesaj metni.
// 30 karakterden uzun içerik kesilip "..." eklenir.
func LastMessagePreview(last *models.LastMessage) string {
	if last == nil {
		return NoMessagesPreview
	}
	runes := []rune(last.Content)
	if len(runes) > previewMaxRunes {
		return string(runes[:previewMaxRunes]) + "..."
	}
	return last.Content
}
