package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/pkg/metrics"
)

const (
	// jitterDivisor: reconnect beklemesine eklenen jitter [0, backoff/jitterDivisor) aralığındadır.
	jitterDivisor = 2

	// backoffMultiplier: başarısız her denemeden sonra bekleme bu katsayıyla büyür.
	backoffMultiplier = 2

	handshakeTimeout = 10 * time.Second
)

var (
	// ErrNotConnected, aktif bağlantı yokken Emit çağrıldığında döner.
	ErrNotConnected = errors.New("websocket not connected")

	// ErrSendBufferFull, giden kuyruk doluyken Emit çağrıldığında döner.
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// ManagerConfig, Manager ayarları (config.WSConfig'den doldurulur).
type ManagerConfig struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
}

// Manager, oturum başına tek canlı WebSocket bağlantısını yönetir.
//
// Yaşam döngüsü:
//  1. Connect(ctx, token) → dial, pump'lar başlar, OnConnect
//  2. Beklenmedik kopma → OnDisconnect(err), exponential backoff ile yeniden dial
//  3. Başarılı redial → OnConnect + OnReconnect (engine resync yapar)
//  4. Disconnect() veya ctx iptali → bağlantı kapanır, OnDisconnect(nil)
//
// Callback'ler bağlantı goroutine'inden senkron çağrılır; bu yüzden callback
// içinden Disconnect çağrılmamalıdır. Callback'ler Connect'ten önce ayarlanır.
type Manager struct {
	cfg    ManagerConfig
	dialer *websocket.Dialer

	mu        sync.Mutex
	active    *conn
	cancel    context.CancelFunc
	done      chan struct{} // run loop bitince kapanır
	sessionID string

	seq atomic.Int64

	onEvent      func(InboundEvent)
	onConnect    func()
	onDisconnect func(err error)
	onError      func(err error)
	onReconnect  func()
}

// NewManager, yeni bir Manager oluşturur. Sıfır değerler güvenli varsayılanlara çekilir.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}

	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// ─── Callback kayıtları ───

// OnEvent, decode edilmiş her inbound event için çağrılır (HeartbeatAck hariç).
func (m *Manager) OnEvent(fn func(InboundEvent)) { m.onEvent = fn }

// OnConnect, her başarılı dial'den sonra çağrılır.
func (m *Manager) OnConnect(fn func()) { m.onConnect = fn }

// OnDisconnect, bağlantı kapandığında çağrılır. err nil ise kapanış istenmiştir.
func (m *Manager) OnDisconnect(fn func(err error)) { m.onDisconnect = fn }

// OnError, dial hatalarında çağrılır.
func (m *Manager) OnError(fn func(err error)) { m.onError = fn }

// OnReconnect, kopmadan sonraki ilk başarılı redial'de OnConnect'ten hemen sonra çağrılır.
func (m *Manager) OnReconnect(fn func()) { m.onReconnect = fn }

// ─── Bağlantı ───

// Connect, token ile kimlik doğrulanmış tek bağlantıyı kurar.
//
// Token boşsa veya JWT olarak parse edilemiyorsa loglanır, manager idle
// kalır ve nil döner. Önceki bağlantı varsa önce o kapatılır.
// İlk dial başarısız olursa error döner, ancak reconnect döngüsü arka planda
// denemeye devam eder; Disconnect ile durdurulur.
func (m *Manager) Connect(ctx context.Context, token string) error {
	if token == "" {
		log.Printf("[ws] no auth token, skipping connect")
		return nil
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &models.TokenClaims{}); err != nil {
		log.Printf("[ws] unparseable auth token, skipping connect: %v", err)
		return nil
	}

	m.Disconnect()

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.sessionID = uuid.NewString()
	m.mu.Unlock()
	m.seq.Store(0)

	c, err := m.dial(sessionCtx, token)
	if err != nil {
		log.Printf("[ws] connect failed: %v", err)
		m.emitError(err)
		if errors.Is(err, pkg.ErrUnauthorized) {
			m.mu.Lock()
			m.cancel, m.done = nil, nil
			m.mu.Unlock()
			cancel()
			close(done)
			return err
		}
	}

	if c != nil {
		// Connect döndüğünde Emit hemen kullanılabilir olmalı.
		m.setActive(c)
	}

	go m.run(sessionCtx, token, c, done)
	return err
}

// Disconnect, bağlantıyı kapatır ve reconnect döngüsünü durdurur.
// Tekrar tekrar çağrılması güvenlidir; döngü bitene kadar bloklar.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected, şu anda canlı bir bağlantı var mı.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// SessionID, son Connect çağrısının oturum kimliği (log korelasyonu için).
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Emit, event'i giden kuyruğa bırakır. Bloklamaz.
func (m *Manager) Emit(ev OutboundEvent) error {
	m.mu.Lock()
	c := m.active
	m.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}

	data, err := EncodeOutbound(ev, m.seq.Add(1))
	if err != nil {
		return err
	}
	if err := c.enqueue(data); err != nil {
		return err
	}

	metrics.OutboundEvents.WithLabelValues(ev.Op()).Inc()
	return nil
}

// run, oturumun bağlantı döngüsü. c nil ise ilk dial başarısız olmuştur
// ve döngü doğrudan backoff ile başlar.
func (m *Manager) run(ctx context.Context, token string, c *conn, done chan struct{}) {
	defer close(done)

	backoff := m.cfg.ReconnectMin
	reconnected := false

	for {
		if c != nil {
			m.setActive(c)
			metrics.WSConnects.Inc()
			log.Printf("[ws] connected (session %s)", m.SessionID())
			if m.onConnect != nil {
				m.onConnect()
			}
			if reconnected && m.onReconnect != nil {
				m.onReconnect()
			}

			err := c.serve(ctx)
			m.setActive(nil)

			if ctx.Err() != nil {
				log.Printf("[ws] disconnected")
				if m.onDisconnect != nil {
					m.onDisconnect(nil)
				}
				return
			}

			log.Printf("[ws] connection lost: %v", err)
			if m.onDisconnect != nil {
				m.onDisconnect(err)
			}
			backoff = m.cfg.ReconnectMin
		}

		jitter := time.Duration(rand.Int64N(int64(backoff)/jitterDivisor + 1))
		log.Printf("[ws] reconnecting in %s", backoff+jitter)

		timer := time.NewTimer(backoff + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		metrics.WSReconnectAttempts.Inc()

		var err error
		c, err = m.dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[ws] reconnect failed: %v", err)
			m.emitError(err)
			if errors.Is(err, pkg.ErrUnauthorized) {
				return
			}
			backoff = min(backoff*backoffMultiplier, m.cfg.ReconnectMax)
			continue
		}
		reconnected = true
	}
}

// dial, token'ı hem query param hem Authorization header olarak gönderir.
// Handshake 401 ile reddedilirse pkg.ErrUnauthorized döner (yeniden denenmez).
func (m *Manager) dial(ctx context.Context, token string) (*conn, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	wsConn, resp, err := m.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: websocket handshake rejected", pkg.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", pkg.ErrUnavailable, err)
	}

	return newConn(wsConn, m.cfg.HeartbeatInterval, m.handleFrame, func() int64 { return m.seq.Add(1) }), nil
}

// handleFrame, ham frame'i decode edip OnEvent'e iletir.
// Bozuk veya bilinmeyen frame'ler loglanıp düşürülür; bağlantı kapanmaz.
func (m *Manager) handleFrame(raw []byte) {
	ev, err := DecodeInbound(raw)
	if err != nil {
		log.Printf("[ws] dropping frame: %v", err)
		return
	}

	metrics.InboundEvents.WithLabelValues(ev.Op()).Inc()

	if _, ok := ev.(HeartbeatAck); ok {
		return
	}
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

func (m *Manager) setActive(c *conn) {
	m.mu.Lock()
	m.active = c
	m.mu.Unlock()
}

func (m *Manager) emitError(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}
