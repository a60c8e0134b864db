// Package ws, mesajlaşma sunucusuyla tek kalıcı WebSocket bağlantısını yönetir.
//
// Mimari:
// - Manager: bağlantının yaşam döngüsü (connect, disconnect, reconnect, callback'ler)
// - conn: tek bir WebSocket bağlantısı (readPump + writePump goroutine'leri)
// - Event: client-server arası iletilen frame formatı
//
// Gelen frame'ler DecodeInbound ile kapalı bir tip kümesine (InboundEvent)
// çevrilir. Op string'inden Go tipine eşleme sadece burada yapılır; engine
// tarafı exhaustive bir type switch ile çalışır.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/dmsync/models"
)

// Event, WebSocket üzerinden iletilen tek bir frame.
//
// Op (operation): Event türü: "message:receive", "heartbeat" vb.
// Data: Event'e özgü payload. Decode aşamasına kadar ham JSON tutulur.
// Seq: Client'ın gönderdiği her frame'e verilen artan sayı.
type Event struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// ────────────────────────────────────────────
// Operation sabitleri
// ────────────────────────────────────────────

// Server → Client operasyonları
const (
	OpMessageReceive     = "message:receive"     // Sunucu onaylı yeni mesaj (gönderene de echo edilir)
	OpConversationUpdate = "conversation:update" // Konuşmanın lastMessage'ı değişti
	OpUserStatus         = "user:status"         // Bir kullanıcı online/offline oldu
	OpUserTyping         = "user:typing"         // Bir kullanıcı yazıyor / yazmayı bıraktı
	OpMessageRead        = "message:read"        // Bir kullanıcı mesajı okudu
	OpHeartbeatAck       = "heartbeat_ack"       // Heartbeat'e yanıt
)

// Client → Server operasyonları
const (
	OpMessageNew = "message:new"
	OpReadAck    = "message:read"
	OpTyping     = "user:typing"
	OpHeartbeat  = "heartbeat" // Her WS_HEARTBEAT_INTERVAL'da gönderilir
)

// ErrUnknownOp, DecodeInbound'un tanımadığı op'lar için döner.
// Manager bu frame'leri loglayıp düşürür.
var ErrUnknownOp = errors.New("unknown op")

// ─── Inbound ───

// InboundEvent, sunucudan gelebilecek event'lerin kapalı kümesi.
// Kümeye paket dışından tip eklenemez (unexported method ile mühürlü).
type InboundEvent interface {
	Op() string
	inbound()
}

// MessageReceive, "message:receive" payload'ı: mesajın kendisi.
type MessageReceive struct {
	Message models.Message
}

// ConversationUpdate, "conversation:update" payload'ı: güncel konuşma objesi.
// Engine bundan sadece LastMessage'ı alır.
type ConversationUpdate struct {
	Conversation models.Conversation
}

// UserStatus, "user:status" payload'ı.
type UserStatus struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UserTyping, "user:typing" payload'ı.
type UserTyping struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// MessageRead, "message:read" payload'ı (inbound yön).
type MessageRead struct {
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// HeartbeatAck, sunucunun heartbeat yanıtı. Engine'e iletilmez.
type HeartbeatAck struct{}

func (MessageReceive) Op() string     { return OpMessageReceive }
func (ConversationUpdate) Op() string { return OpConversationUpdate }
func (UserStatus) Op() string         { return OpUserStatus }
func (UserTyping) Op() string         { return OpUserTyping }
func (MessageRead) Op() string        { return OpMessageRead }
func (HeartbeatAck) Op() string       { return OpHeartbeatAck }

func (MessageReceive) inbound()     {}
func (ConversationUpdate) inbound() {}
func (UserStatus) inbound()         {}
func (UserTyping) inbound()         {}
func (MessageRead) inbound()        {}
func (HeartbeatAck) inbound()       {}

// DecodeInbound, ham frame'i tipli bir InboundEvent'e çevirir.
//
// Tanınmayan op için ErrUnknownOp, bozuk JSON için decode hatası döner.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var frame Event
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch frame.Op {
	case OpMessageReceive:
		var ev MessageReceive
		if err := decodeData(frame, &ev.Message); err != nil {
			return nil, err
		}
		if ev.Message.ID == "" {
			return nil, fmt.Errorf("%s: message id is empty", frame.Op)
		}
		return ev, nil

	case OpConversationUpdate:
		var ev ConversationUpdate
		if err := decodeData(frame, &ev.Conversation); err != nil {
			return nil, err
		}
		return ev, nil

	case OpUserStatus:
		var ev UserStatus
		if err := decodeData(frame, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case OpUserTyping:
		var ev UserTyping
		if err := decodeData(frame, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case OpMessageRead:
		var ev MessageRead
		if err := decodeData(frame, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case OpHeartbeatAck:
		return HeartbeatAck{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, frame.Op)
	}
}

func decodeData(frame Event, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s: missing payload", frame.Op)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", frame.Op, err)
	}
	return nil
}

// ─── Outbound ───

// OutboundEvent, client'ın sunucuya gönderebileceği event'ler.
// Payload struct'ın kendisidir; Op frame'in op alanına yazılır.
type OutboundEvent interface {
	Op() string
}

// MessageNew, "message:new": yeni mesaj gönderimi. Sunucu "message:receive" ile yanıtlar.
type MessageNew struct {
	ConversationID string              `json:"conversationId"`
	Content        string              `json:"content"`
	Attachments    []models.Attachment `json:"attachments"`
}

// MessageReadAck, "message:read": aktif konuşmada alınan mesajın okundu bildirimi.
type MessageReadAck struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// TypingUpdate, "user:typing": yerel kullanıcının yazma durumu.
type TypingUpdate struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type heartbeat struct{}

func (MessageNew) Op() string     { return OpMessageNew }
func (MessageReadAck) Op() string { return OpReadAck }
func (TypingUpdate) Op() string   { return OpTyping }
func (heartbeat) Op() string      { return OpHeartbeat }

// EncodeOutbound, event'i {op, d, seq} frame'ine serialize eder.
func EncodeOutbound(ev OutboundEvent, seq int64) ([]byte, error) {
	frame := Event{Op: ev.Op(), Seq: seq}

	if _, empty := ev.(heartbeat); !empty {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", ev.Op(), err)
		}
		frame.Data = data
	}

	return json.Marshal(frame)
}
