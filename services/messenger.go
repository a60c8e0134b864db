package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/pkg/cache"
	"github.com/akinalp/dmsync/pkg/metrics"
	"github.com/akinalp/dmsync/pkg/ratelimit"
	"github.com/akinalp/dmsync/ws"
)

// ConversationAPI, messenger'ın REST bağımlılığı (api.Client karşılar).
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error)
	ListMembers(ctx context.Context) ([]models.User, error)
	GetMessages(ctx context.Context, conversationID string, before *time.Time, limit int) (*models.MessagePage, error)
}

// Connection, messenger'ın WebSocket bağımlılığı (ws.Manager karşılar).
type Connection interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	Connected() bool
	Emit(ev ws.OutboundEvent) error
}

// Messenger, mesajlaşma engine'inin dışarıya açık API'si.
//
// Tüketiciler state'i Snapshot ile okur, değişiklikleri Subscribe ile dinler.
// Ağ hataları loglanır ve state'e dokunmaz; Go çağıranlar için error yine döner.
type Messenger interface {
	Start(ctx context.Context) error
	Stop()
	Snapshot() State
	Subscribe() (<-chan ChangeKind, func())

	// Conversation Store
	FetchConversations(ctx context.Context) error
	CreateConversation(ctx context.Context, name string, participantIDs []string, isGroup bool) (*models.Conversation, error)
	SetActiveConversationByID(ctx context.Context, id string) bool
	ListMembers(ctx context.Context) ([]models.User, error)

	// Message Cache & Pager
	FetchMessages(ctx context.Context, conversationID string, useCache bool) error
	LoadMoreMessages(ctx context.Context) error
	SendMessage(conversationID, content string, attachments []models.Attachment) bool
	ClearMessageCache(ctx context.Context, conversationID string) error

	// Presence / Typing
	SetTypingStatus(conversationID string, isTyping bool) bool
	Keystroke(conversationID string)
	HeaderStatus(conversationID string) string
	SearchConversations(term string) []models.Conversation

	// Connection callback'leri (init_callbacks.go bağlar)
	HandleEvent(ev ws.InboundEvent)
	SetConnected(connected bool)
	Resync(ctx context.Context)
	ScheduleResync() bool
}

// MessengerConfig, engine davranış ayarları (config.MessagingConfig'den doldurulur).
type MessengerConfig struct {
	PageSize         int
	TypingIdle       time.Duration
	MembersCacheTTL  time.Duration
	SendRateMax      int
	SendRateWindow   time.Duration
	SendRateCooldown time.Duration
}

// ChangeKind, Subscribe kanalına gönderilen değişiklik türü.
type ChangeKind string

const (
	ChangeConversations ChangeKind = "conversations"
	ChangeActive        ChangeKind = "active"
	ChangeMessages      ChangeKind = "messages"
	ChangeTyping        ChangeKind = "typing"
	ChangeConnection    ChangeKind = "connection"
)

// subscriberBuffer: yavaş subscriber bu kadar bildirimden sonra yenilerini kaçırır.
// Snapshot her zaman güncel state'i verir.
const subscriberBuffer = 32

// State, engine'in o anki görünümü. Snapshot derin kopya döner.
type State struct {
	CurrentUserID       string                `json:"currentUserId"`
	Conversations       []models.Conversation `json:"conversations"`
	ActiveConversation  *models.Conversation  `json:"activeConversation"`
	Messages            []models.Message      `json:"messages"`
	Loading             bool                  `json:"loading"`
	LoadingMore         bool                  `json:"loadingMore"`
	HasMoreMessages     bool                  `json:"hasMoreMessages"`
	OldestCursor        *time.Time            `json:"oldestCursor,omitempty"`
	Typing              map[string][]string   `json:"typing"`
	Connected           bool                  `json:"connected"`
	ConversationsLoaded bool                  `json:"conversationsLoaded"`
	ConversationsErr    string                `json:"conversationsError,omitempty"`
}

// viewToken, bir fetch başladığında aktif olan görünüm.
// Sonuç geldiğinde token hâlâ geçerli değilse sonuç atılır.
type viewToken struct {
	conversationID string
	generation     uint64
}

// messenger, Messenger interface'inin implementasyonu.
//
// mu tüm state'i korur ve altında hiçbir I/O yapılmaz. cacheMu disk cache
// yazımlarını sıralar: yazılacak liste cacheMu tutulurken mu altında
// kopyalanır, böylece son yazım her zaman son state'i taşır.
// Kilit sırası: cacheMu → mu.
type messenger struct {
	api     ConversationAPI
	conn    Connection
	auth    AuthService
	cache   *MessageCache
	cfg     MessengerConfig
	clock   clock.Clock
	typing  *TypingTracker
	limiter *ratelimit.MessageRateLimiter
	members *cache.TTLCache[string, []models.User]

	cacheMu sync.Mutex

	mu                  sync.Mutex
	currentUserID       string
	store               *conversationStore
	conversationsLoaded bool
	conversationsErr    string
	generation          uint64
	messages            []models.Message
	cursor              *time.Time
	hasMore             bool
	loading             bool
	loadingMore         bool
	connected           bool
	debouncer           *TypingDebouncer
	debouncerConvID     string

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	bg         sync.WaitGroup

	subMu       sync.Mutex
	subscribers map[int]chan ChangeKind
	nextSubID   int
}

// NewMessenger, yeni bir Messenger oluşturur. clk nil ise gerçek saat kullanılır.
func NewMessenger(
	api ConversationAPI,
	conn Connection,
	auth AuthService,
	messageCache *MessageCache,
	cfg MessengerConfig,
	clk clock.Clock,
) Messenger {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = 2 * time.Second
	}

	lifeCtx, lifeCancel := context.WithCancel(context.Background())

	return &messenger{
		api:         api,
		conn:        conn,
		auth:        auth,
		cache:       messageCache,
		cfg:         cfg,
		clock:       clk,
		typing:      NewTypingTracker(),
		limiter:     ratelimit.NewMessageRateLimiter(cfg.SendRateMax, cfg.SendRateWindow, cfg.SendRateCooldown, clk),
		members:     cache.New[string, []models.User](cfg.MembersCacheTTL, clk),
		store:       newConversationStore(),
		hasMore:     true,
		lifeCtx:     lifeCtx,
		lifeCancel:  lifeCancel,
		subscribers: make(map[int]chan ChangeKind),
	}
}

// ─── Lifecycle ───

// Start, oturumu başlatır: kullanıcıyı çözer, bağlantıyı kurar, konuşmaları çeker.
// Oturum yoksa (CurrentUser nil) loglanır ve engine idle kalır.
func (m *messenger) Start(ctx context.Context) error {
	user := m.auth.CurrentUser()
	if user == nil {
		log.Printf("[messenger] no authenticated user, staying idle")
		return nil
	}

	m.mu.Lock()
	if m.currentUserID != "" && m.currentUserID != user.ID {
		m.resetSessionLocked()
	}
	m.currentUserID = user.ID
	if m.lifeCtx.Err() != nil {
		m.lifeCtx, m.lifeCancel = context.WithCancel(context.Background())
	}
	m.mu.Unlock()

	if err := m.conn.Connect(ctx, m.auth.BearerToken()); err != nil {
		if errors.Is(err, pkg.ErrUnauthorized) {
			return err
		}
		log.Printf("[messenger] initial connect failed, reconnect loop is running: %v", err)
	}

	// Hata FetchConversations içinde loglanır ve State.ConversationsErr'e yazılır.
	_ = m.FetchConversations(ctx)
	return nil
}

// Stop, typing bildirimini kapatır, bağlantıyı bırakır ve arka plan işlerini bekler.
// Kullanıcı değişiminde ve kapanışta çağrılır; birden fazla çağrı güvenlidir.
func (m *messenger) Stop() {
	m.mu.Lock()
	d := m.debouncer
	m.debouncer, m.debouncerConvID = nil, ""
	m.mu.Unlock()

	if d != nil {
		d.Stop()
	}

	m.conn.Disconnect()

	// İptal mu altında yapılır; goBackground aynı kilit altında kontrol ettiği
	// için Wait başladıktan sonra yeni bir bg.Add olamaz.
	m.mu.Lock()
	m.lifeCancel()
	m.mu.Unlock()
	m.bg.Wait()

	m.members.Clear()
	m.typing.Clear()

	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.notify(ChangeConnection)
}

// resetSessionLocked, kullanıcı değiştiğinde önceki kullanıcının state'ini siler.
func (m *messenger) resetSessionLocked() {
	m.store.clear()
	m.conversationsLoaded = false
	m.conversationsErr = ""
	m.resetMessagesLocked()
	m.members.Clear()
	m.typing.Clear()
}

// resetMessagesLocked, konuşma başına mesaj state'ini sıfırlar ve görünüm
// neslini artırır; uçuştaki fetch'lerin sonuçları artık geçersizdir.
func (m *messenger) resetMessagesLocked() {
	m.messages = nil
	m.cursor = nil
	m.hasMore = true
	m.loading = false
	m.loadingMore = false
	m.generation++
}

// ─── Observer ───

func (m *messenger) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		CurrentUserID:       m.currentUserID,
		Conversations:       m.store.list(),
		Messages:            cloneMessages(m.messages),
		Loading:             m.loading,
		LoadingMore:         m.loadingMore,
		HasMoreMessages:     m.hasMore,
		Typing:              m.typing.Snapshot(),
		Connected:           m.connected,
		ConversationsLoaded: m.conversationsLoaded,
		ConversationsErr:    m.conversationsErr,
	}
	if active := m.store.active(); active != nil {
		c := active.Clone()
		st.ActiveConversation = &c
	}
	if m.cursor != nil {
		t := *m.cursor
		st.OldestCursor = &t
	}
	return st
}

// Subscribe, değişiklik bildirimleri için kanal ve iptal fonksiyonu döner.
// Gönderim bloklamaz; buffer doluysa bildirim düşer.
func (m *messenger) Subscribe() (<-chan ChangeKind, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan ChangeKind, subscriberBuffer)
	m.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *messenger) notify(kinds ...ChangeKind) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subscribers {
		for _, k := range kinds {
			select {
			case ch <- k:
			default:
			}
		}
	}
}

// ─── Conversation Store ───

// FetchConversations, listeyi sunucudan çeker ve başarıda tamamen değiştirir.
// Hata durumunda önceki liste korunur, hata State.ConversationsErr'e yazılır.
func (m *messenger) FetchConversations(ctx context.Context) error {
	list, err := m.api.ListConversations(ctx)
	if err != nil {
		log.Printf("[messenger] failed to fetch conversations: %v", err)
		m.mu.Lock()
		m.conversationsErr = err.Error()
		m.mu.Unlock()
		m.notify(ChangeConversations)
		return err
	}

	m.mu.Lock()
	activeKept := m.store.replace(list)
	if !activeKept {
		m.resetMessagesLocked()
	}
	m.conversationsLoaded = true
	m.conversationsErr = ""
	m.mu.Unlock()

	if activeKept {
		m.notify(ChangeConversations)
	} else {
		m.notify(ChangeConversations, ChangeActive, ChangeMessages)
	}
	return nil
}

// CreateConversation, yeni konuşma oluşturur ve başarıda listenin başına ekler.
func (m *messenger) CreateConversation(ctx context.Context, name string, participantIDs []string, isGroup bool) (*models.Conversation, error) {
	req := models.CreateConversationRequest{Name: name, Participants: participantIDs, IsGroup: isGroup}
	if err := req.Validate(); err != nil {
		log.Printf("[messenger] invalid conversation request: %v", err)
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	conv, err := m.api.CreateConversation(ctx, req)
	if err != nil {
		log.Printf("[messenger] failed to create conversation: %v", err)
		return nil, err
	}

	m.mu.Lock()
	m.store.prepend(*conv)
	m.mu.Unlock()
	m.notify(ChangeConversations)

	out := conv.Clone()
	return &out, nil
}

// SetActiveConversationByID, bilinen bir konuşmayı seçer, mesaj state'ini
// sıfırlar ve cache-first hydration başlatır. Bilinmeyen ID için false (no-op).
func (m *messenger) SetActiveConversationByID(ctx context.Context, id string) bool {
	m.mu.Lock()
	if !m.store.setActive(id) {
		m.mu.Unlock()
		return false
	}
	m.resetMessagesLocked()

	var prev *TypingDebouncer
	if m.debouncer != nil && m.debouncerConvID != id {
		prev = m.debouncer
		m.debouncer, m.debouncerConvID = nil, ""
	}
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	m.notify(ChangeActive, ChangeMessages)

	if err := m.FetchMessages(ctx, id, true); err != nil {
		log.Printf("[messenger] hydration of %s failed: %v", id, err)
	}
	return true
}

// ListMembers, yeni konuşma için seçilebilir üyeleri döner (mevcut kullanıcı hariç).
// Sonuç MembersCacheTTL boyunca bellekte tutulur.
func (m *messenger) ListMembers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	me := m.currentUserID
	m.mu.Unlock()

	if cached, ok := m.members.Get(me); ok {
		return append([]models.User(nil), cached...), nil
	}

	users, err := m.api.ListMembers(ctx)
	if err != nil {
		log.Printf("[messenger] failed to fetch members: %v", err)
		return nil, err
	}

	filtered := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID != me {
			filtered = append(filtered, u)
		}
	}

	m.members.Set(me, filtered)
	return append([]models.User(nil), filtered...), nil
}

// ─── Message Cache & Pager ───

// FetchMessages, aktif konuşmanın mesajlarını yükler.
//
// useCache ve taze, boş olmayan bir cache kaydı varsa liste hemen cache'ten
// doldurulur, loading kapanır ve en yeni sayfa arka planda çekilir. Aksi halde
// en yeni sayfa senkron çekilir; loading sonuç gelene kadar açık kalır.
// Aktif olmayan bir konuşma için çağrı no-op'tur.
func (m *messenger) FetchMessages(ctx context.Context, conversationID string, useCache bool) error {
	if conversationID == "" {
		return nil
	}

	m.mu.Lock()
	if m.store.activeID != conversationID {
		m.mu.Unlock()
		log.Printf("[messenger] fetch for inactive conversation %s ignored", conversationID)
		return nil
	}
	token := m.tokenLocked()
	m.loading = true
	m.mu.Unlock()
	m.notify(ChangeMessages)

	if useCache && m.hydrateFromCache(ctx, token) {
		m.goBackground(func(ctx context.Context) {
			if err := m.fetchFreshPage(ctx, token); err != nil {
				log.Printf("[messenger] background refresh of %s failed: %v", token.conversationID, err)
			}
		})
		return nil
	}

	defer m.finishLoading(token, false)
	return m.fetchFreshPage(ctx, token)
}

// hydrateFromCache, geçerli bir cache kaydı varsa listeyi doldurur ve loading'i kapatır.
func (m *messenger) hydrateFromCache(ctx context.Context, token viewToken) bool {
	cached, ok := m.cache.Load(ctx, token.conversationID)
	if !ok {
		return false
	}

	m.mu.Lock()
	if !m.isCurrentLocked(token) {
		m.mu.Unlock()
		metrics.StaleResponsesDropped.Inc()
		return true // görünüm değişti; çağıran için iş bitti
	}
	m.messages = models.MergeByID(nil, cached)
	m.setCursorLocked()
	m.loading = false
	m.mu.Unlock()

	m.notify(ChangeMessages)
	return true
}

// fetchFreshPage, en yeni sayfayı çeker; sonuç listeyi tamamen değiştirir
// ve cache yeniden yazılır.
//
// Bilinen kısıt: cache'ten hydration sonrası arka planda çalışırken bu
// sayfadan sonra gelmiş bir "message:receive", yanıt geç dönerse liste
// değişiminde kaybolur; bir sonraki event veya fetch'e kadar görünmez.
func (m *messenger) fetchFreshPage(ctx context.Context, token viewToken) error {
	page, err := m.api.GetMessages(ctx, token.conversationID, nil, m.cfg.PageSize)
	if err != nil {
		log.Printf("[messenger] failed to fetch messages for %s: %v", token.conversationID, err)
		return err
	}

	m.mu.Lock()
	if !m.isCurrentLocked(token) {
		m.mu.Unlock()
		metrics.StaleResponsesDropped.Inc()
		log.Printf("[messenger] dropping stale page for %s", token.conversationID)
		return nil
	}
	m.messages = models.MergeByID(nil, page.Messages)
	m.hasMore = page.HasMore
	m.setCursorLocked()
	m.mu.Unlock()

	m.notify(ChangeMessages)
	m.persistActive(ctx, token)
	return nil
}

// LoadMoreMessages, cursor'dan eski sayfayı çeker ve ID'ye göre birleştirir.
//
// Aktif konuşma yoksa, cursor bilinmiyorsa, başka bir sayfa yükleniyorsa veya
// sunucu daha fazla mesaj olmadığını bildirdiyse no-op. Cache yeniden yazılmaz.
func (m *messenger) LoadMoreMessages(ctx context.Context) error {
	m.mu.Lock()
	if m.store.activeID == "" || m.cursor == nil || m.loadingMore || !m.hasMore {
		m.mu.Unlock()
		return nil
	}
	token := m.tokenLocked()
	before := *m.cursor
	m.loadingMore = true
	m.mu.Unlock()
	m.notify(ChangeMessages)

	defer m.finishLoading(token, true)

	page, err := m.api.GetMessages(ctx, token.conversationID, &before, m.cfg.PageSize)
	if err != nil {
		log.Printf("[messenger] failed to load older messages for %s: %v", token.conversationID, err)
		return err
	}

	m.mu.Lock()
	if !m.isCurrentLocked(token) {
		m.mu.Unlock()
		metrics.StaleResponsesDropped.Inc()
		log.Printf("[messenger] dropping stale older page for %s", token.conversationID)
		return nil
	}
	m.messages = models.MergeByID(m.messages, page.Messages)
	m.hasMore = page.HasMore
	m.setCursorLocked()
	m.mu.Unlock()

	m.notify(ChangeMessages)
	return nil
}

// finishLoading, loading (more=false) veya loadingMore (more=true) bayrağını
// kapatır. Görünüm değiştiyse yeni görünümün bayraklarına dokunmaz; reset
// zaten ikisini de kapatmıştır.
func (m *messenger) finishLoading(token viewToken, more bool) {
	m.mu.Lock()
	changed := false
	if m.isCurrentLocked(token) {
		if more && m.loadingMore {
			m.loadingMore = false
			changed = true
		}
		if !more && m.loading {
			m.loading = false
			changed = true
		}
	}
	m.mu.Unlock()

	if changed {
		m.notify(ChangeMessages)
	}
}

// SendMessage, "message:new" gönderir. Mesaj listeye ancak sunucunun
// "message:receive" yanıtıyla girer (optimistic insert yok).
//
// Boş içerik, boş konuşma ID'si, bağlantı yokluğu veya rate limit
// durumunda hiçbir şey gönderilmez ve false döner.
func (m *messenger) SendMessage(conversationID, content string, attachments []models.Attachment) bool {
	content = strings.TrimSpace(content)
	if conversationID == "" || content == "" {
		return false
	}
	if !m.conn.Connected() {
		log.Printf("[messenger] not connected, message to %s not sent", conversationID)
		return false
	}
	if !m.limiter.Allow(conversationID) {
		metrics.SendsThrottled.Inc()
		log.Printf("[messenger] send to %s throttled, cooldown %s", conversationID, m.limiter.CooldownRemaining(conversationID).Round(time.Second))
		return false
	}

	if attachments == nil {
		attachments = []models.Attachment{}
	}

	if err := m.conn.Emit(ws.MessageNew{
		ConversationID: conversationID,
		Content:        content,
		Attachments:    attachments,
	}); err != nil {
		log.Printf("[messenger] failed to send message to %s: %v", conversationID, err)
		return false
	}
	return true
}

// ClearMessageCache, bir konuşmanın (boşsa tüm konuşmaların) disk cache'ini siler.
func (m *messenger) ClearMessageCache(ctx context.Context, conversationID string) error {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if err := m.cache.Clear(ctx, conversationID); err != nil {
		log.Printf("[messenger] failed to clear cache: %v", err)
		return err
	}
	if conversationID == "" {
		log.Printf("[cache] cleared all entries")
	} else {
		log.Printf("[cache] cleared entry %s", conversationID)
	}
	return nil
}

// persistActive, aktif konuşmanın güncel listesini cache'e yazar.
// Token artık geçerli değilse yazılmaz.
func (m *messenger) persistActive(ctx context.Context, token viewToken) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.mu.Lock()
	if !m.isCurrentLocked(token) {
		m.mu.Unlock()
		return
	}
	snapshot := cloneMessages(m.messages)
	m.mu.Unlock()

	if err := m.cache.Store(ctx, token.conversationID, snapshot); err != nil {
		log.Printf("[cache] failed to write %s: %v", token.conversationID, err)
	}
}

// ─── Presence / Typing ───

// SetTypingStatus, yerel kullanıcının yazma durumunu sunucuya bildirir.
func (m *messenger) SetTypingStatus(conversationID string, isTyping bool) bool {
	if conversationID == "" || !m.conn.Connected() {
		return false
	}
	if err := m.conn.Emit(ws.TypingUpdate{ConversationID: conversationID, IsTyping: isTyping}); err != nil {
		log.Printf("[messenger] failed to send typing status: %v", err)
		return false
	}
	return true
}

// Keystroke, giriş alanındaki bir tuş vuruşunu debouncer'a iletir.
// Farklı bir konuşmaya geçilmişse önceki konuşmanın debouncer'ı durdurulur.
func (m *messenger) Keystroke(conversationID string) {
	if conversationID == "" {
		return
	}

	m.mu.Lock()
	var prev *TypingDebouncer
	if m.debouncer != nil && m.debouncerConvID != conversationID {
		prev = m.debouncer
		m.debouncer = nil
	}
	if m.debouncer == nil {
		m.debouncer = NewTypingDebouncer(m.cfg.TypingIdle, m.clock, func(isTyping bool) {
			m.SetTypingStatus(conversationID, isTyping)
		})
		m.debouncerConvID = conversationID
	}
	d := m.debouncer
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	d.Keystroke()
}

// HeaderStatus, konuşma başlığında gösterilecek durum metni.
func (m *messenger) HeaderStatus(conversationID string) string {
	m.mu.Lock()
	conv := m.store.get(conversationID)
	if conv == nil {
		m.mu.Unlock()
		return ""
	}
	c := conv.Clone()
	me := m.currentUserID
	m.mu.Unlock()

	var others []string
	for _, id := range m.typing.Typing(conversationID) {
		if id != me {
			others = append(others, id)
		}
	}
	return HeaderStatus(&c, me, others, m.clock.Now())
}

// SearchConversations, adı veya bir katılımcısının adı term'i içeren
// konuşmaları döner (büyük/küçük harf duyarsız). Boş term tüm listeyi döner.
func (m *messenger) SearchConversations(term string) []models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.search(term)
}

// ─── Connection callback'leri ───

// SetConnected, bağlantı durumunu state'e yansıtır. Kopmada typing bilgisi silinir;
// sunucu yeniden bağlanınca güncel durumu tekrar gönderir.
func (m *messenger) SetConnected(connected bool) {
	m.mu.Lock()
	changed := m.connected != connected
	m.connected = connected
	m.mu.Unlock()

	if !connected {
		m.typing.Clear()
	}
	if changed {
		m.notify(ChangeConnection, ChangeTyping)
	}
}

// Resync, yeniden bağlanma sonrası kaçırılmış olabilecek event'leri telafi eder:
// konuşma listesi ve aktif konuşmanın en yeni sayfası yeniden çekilir.
func (m *messenger) Resync(ctx context.Context) {
	if err := m.FetchConversations(ctx); err != nil {
		return
	}

	m.mu.Lock()
	if m.store.activeID == "" {
		m.mu.Unlock()
		return
	}
	token := m.tokenLocked()
	m.mu.Unlock()

	if err := m.fetchFreshPage(ctx, token); err != nil {
		log.Printf("[messenger] resync of %s failed: %v", token.conversationID, err)
	}
}

// ScheduleResync, Resync'i engine'in yaşam süresine bağlı bir arka plan
// işi olarak başlatır. Stop sonrasında çağrılırsa hiçbir şey yapmaz ve false döner.
func (m *messenger) ScheduleResync() bool {
	return m.goBackground(m.Resync)
}

// HandleEvent, inbound event'i state'e uygular. Event'ler alındıkları sırayla işlenir.
func (m *messenger) HandleEvent(ev ws.InboundEvent) {
	switch e := ev.(type) {
	case ws.MessageReceive:
		m.handleMessageReceive(e.Message)
	case ws.ConversationUpdate:
		m.handleConversationUpdate(e.Conversation)
	case ws.UserStatus:
		m.handleUserStatus(e)
	case ws.UserTyping:
		if m.typing.Set(e.ConversationID, e.UserID, e.IsTyping) {
			m.notify(ChangeTyping)
		}
	case ws.MessageRead:
		m.handleMessageRead(e)
	case ws.HeartbeatAck:
		// bağlantı katmanında tüketilir
	default:
		log.Printf("[messenger] unhandled event %T", ev)
	}
}

// handleMessageReceive, sunucu onaylı mesajı aktif konuşmaya ekler (aynı ID
// zaten varsa atlar), cache'i yeniden yazar ve okundu bildirimi gönderir.
// Aktif olmayan konuşmaların mesajları görünür listeye eklenmez.
func (m *messenger) handleMessageReceive(msg models.Message) {
	m.mu.Lock()
	if m.store.activeID == "" || msg.ConversationID != m.store.activeID {
		m.mu.Unlock()
		return
	}
	for i := range m.messages {
		if m.messages[i].ID == msg.ID {
			m.mu.Unlock()
			return
		}
	}
	m.messages = append(m.messages, msg.Clone())
	if m.cursor == nil {
		m.setCursorLocked()
	}
	token := m.tokenLocked()
	m.mu.Unlock()

	m.notify(ChangeMessages)
	m.persistActive(m.lifeContext(), token)

	if err := m.conn.Emit(ws.MessageReadAck{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
	}); err != nil && !errors.Is(err, ws.ErrNotConnected) {
		log.Printf("[messenger] failed to ack message %s: %v", msg.ID, err)
	}
}

func (m *messenger) handleConversationUpdate(conv models.Conversation) {
	m.mu.Lock()
	ok := m.store.mergeLastMessage(conv.ID, conv.LastMessage)
	m.mu.Unlock()

	if ok {
		m.notify(ChangeConversations)
	}
}

func (m *messenger) handleUserStatus(e ws.UserStatus) {
	m.mu.Lock()
	n := m.store.applyPresence(e.UserID, e.IsOnline, e.LastSeen)
	activeAffected := false
	if active := m.store.active(); active != nil {
		activeAffected = active.HasParticipant(e.UserID)
	}
	m.mu.Unlock()

	if n == 0 {
		return
	}
	if activeAffected {
		m.notify(ChangeConversations, ChangeActive)
	} else {
		m.notify(ChangeConversations)
	}
}

// handleMessageRead, aktif listedeki mesaja (userID, now) okundu kaydını bir kez ekler.
func (m *messenger) handleMessageRead(e ws.MessageRead) {
	now := m.clock.Now()

	m.mu.Lock()
	changed := false
	for i := range m.messages {
		if m.messages[i].ID == e.MessageID {
			changed = m.messages[i].AddReadBy(e.UserID, now)
			break
		}
	}
	token := m.tokenLocked()
	m.mu.Unlock()

	if !changed {
		return
	}
	m.notify(ChangeMessages)
	m.persistActive(m.lifeContext(), token)
}

// ─── helpers ───

func (m *messenger) tokenLocked() viewToken {
	return viewToken{conversationID: m.store.activeID, generation: m.generation}
}

func (m *messenger) isCurrentLocked(t viewToken) bool {
	return t.conversationID != "" && t.conversationID == m.store.activeID && t.generation == m.generation
}

// setCursorLocked, cursor'ı listedeki en eski createdAt'e çeker (liste boşsa nil).
func (m *messenger) setCursorLocked() {
	oldest, ok := models.OldestCreatedAt(m.messages)
	if !ok {
		m.cursor = nil
		return
	}
	m.cursor = &oldest
}

// goBackground, fn'i lifeCtx ile ayrı goroutine'de çalıştırır ve bg'ye kaydeder.
// lifeCtx iptal edildiyse (Stop) fn başlatılmaz.
func (m *messenger) goBackground(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	ctx := m.lifeCtx
	if ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	m.bg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.bg.Done()
		fn(ctx)
	}()
	return true
}

func (m *messenger) lifeContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifeCtx
}

func cloneMessages(in []models.Message) []models.Message {
	if in == nil {
		return []models.Message{}
	}
	out := make([]models.Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
