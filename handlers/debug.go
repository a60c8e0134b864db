// Package handlers, yerel debug HTTP sunucusunun handler'larını barındırır.
//
// Handler'lar sadece Messenger'ı çağırır ve sonucu pkg.JSON envelope'u ile
// döner. Sunucu sadece localhost'a bağlanır; kimlik doğrulaması yoktur.
package handlers

import (
	"net/http"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/services"
)

// DebugHandler, engine state'ini gösteren ve engine operasyonlarını
// elle tetiklemeye yarayan endpoint'ler.
type DebugHandler struct {
	messenger services.Messenger
}

// NewDebugHandler, constructor.
func NewDebugHandler(messenger services.Messenger) *DebugHandler {
	return &DebugHandler{messenger: messenger}
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
}

type conversationStatusResponse struct {
	services.State
	HeaderStatus string   `json:"headerStatus,omitempty"`
	ReadByAll    []string `json:"readByAll,omitempty"` // herkesin okuduğu mesaj ID'leri
}

type conversationListItem struct {
	models.Conversation
	Preview string `json:"preview"`
}

// Health godoc
// GET /api/health
func (h *DebugHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.messenger.Snapshot()
	pkg.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": st.Connected,
	})
}

// State godoc
// GET /api/state
// Engine snapshot'ı; aktif konuşma varsa başlık durumu da eklenir.
func (h *DebugHandler) State(w http.ResponseWriter, r *http.Request) {
	st := h.messenger.Snapshot()
	resp := conversationStatusResponse{State: st}
	if st.ActiveConversation != nil {
		resp.HeaderStatus = h.messenger.HeaderStatus(st.ActiveConversation.ID)
		for i := range st.Messages {
			if st.Messages[i].ReadByAll(st.ActiveConversation) {
				resp.ReadByAll = append(resp.ReadByAll, st.Messages[i].ID)
			}
		}
	}
	pkg.JSON(w, http.StatusOK, resp)
}

// SearchConversations godoc
// GET /api/conversations?q=term
// Konuşma listesi, son mesaj ön izlemesiyle. q boşsa tüm liste.
func (h *DebugHandler) SearchConversations(w http.ResponseWriter, r *http.Request) {
	convs := h.messenger.SearchConversations(r.URL.Query().Get("q"))

	items := make([]conversationListItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, conversationListItem{
			Conversation: c,
			Preview:      services.LastMessagePreview(c.LastMessage),
		})
	}
	pkg.JSON(w, http.StatusOK, items)
}

// SelectConversation godoc
// POST /api/conversations/{id}/select
// Bilinmeyen ID için 404.
func (h *DebugHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.messenger.SetActiveConversationByID(r.Context(), id) {
		pkg.Error(w, pkg.ErrNotFound)
		return
	}
	pkg.JSON(w, http.StatusOK, h.messenger.Snapshot())
}

// SendMessage godoc
// POST /api/conversations/{id}/messages
// Body: { "content": "...", "attachments": [] }
// Guard'lardan geçemeyen gönderim (boş içerik, bağlantı yok, rate limit)
// 200 ve {"sent": false} döner; gönderilen mesaj 202.
func (h *DebugHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	if !h.messenger.SendMessage(r.PathValue("id"), req.Content, req.Attachments) {
		pkg.JSON(w, http.StatusOK, map[string]bool{"sent": false})
		return
	}
	pkg.JSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

// LoadMore godoc
// POST /api/conversations/{id}/more
// id aktif konuşma değilse 400.
func (h *DebugHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	if !h.isActive(r.PathValue("id")) {
		pkg.Error(w, pkg.ErrBadRequest)
		return
	}
	if err := h.messenger.LoadMoreMessages(r.Context()); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, h.messenger.Snapshot())
}

// Keystroke godoc
// POST /api/conversations/{id}/typing
// Bir tuş vuruşunu simüle eder; typing bildirimi debouncer'dan geçer.
func (h *DebugHandler) Keystroke(w http.ResponseWriter, r *http.Request) {
	h.messenger.Keystroke(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// CreateConversation godoc
// POST /api/conversations
// Body: { "name": "...", "participants": ["id"], "isGroup": false }
func (h *DebugHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	conv, err := h.messenger.CreateConversation(r.Context(), req.Name, req.Participants, req.IsGroup)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, conv)
}

// ListMembers godoc
// GET /api/members
func (h *DebugHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.messenger.ListMembers(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, members)
}

// ClearCache godoc
// DELETE /api/cache
// DELETE /api/cache/{id}
func (h *DebugHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.messenger.ClearMessageCache(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DebugHandler) isActive(id string) bool {
	st := h.messenger.Snapshot()
	return st.ActiveConversation != nil && st.ActiveConversation.ID == id
}
