// Package models, engine'in domain modellerini tanımlar.
//
// JSON tag'leri mesajlaşma sunucusunun wire formatını birebir izler
// (`_id`, `isGroup`, `createdAt` ...). Hem REST yanıtları hem WebSocket
// payload'ları hem de disk cache kayıtları bu struct'larla serialize edilir.
package models

import "time"

// User, konuşma katılımcısı veya mesaj göndereni olan kullanıcı.
// Kullanıcı hesabı bu modülün sahipliğinde değildir; sadece referans edilir.
// Presence alanları (IsOnline, LastSeen) "user:status" event'leri ile güncellenir.
type User struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	Designation    string     `json:"designation,omitempty"`
	Role           string     `json:"role,omitempty"`
	IsOnline       bool       `json:"isOnline"`
	LastSeen       *time.Time `json:"lastSeen,omitempty"` // nil = hiç görülmedi
}
