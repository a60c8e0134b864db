package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
)

const waitTimeout = 3 * time.Second

func testToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.TokenClaims{
		UserID:   "u1",
		Username: "ali",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// testServer, her bağlantıda handle'ı çağıran bir WebSocket sunucusu.
func testServer(t *testing.T, handle func(c *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func newTestManager(url string) *Manager {
	return NewManager(ManagerConfig{
		URL:               url,
		HeartbeatInterval: 50 * time.Millisecond,
		ReconnectMin:      10 * time.Millisecond,
		ReconnectMax:      40 * time.Millisecond,
	})
}

func TestManager_ConnectSkipsInvalidToken(t *testing.T) {
	m := newTestManager("ws://127.0.0.1:1/ws")

	assert.NoError(t, m.Connect(context.Background(), ""))
	assert.False(t, m.Connected())

	assert.NoError(t, m.Connect(context.Background(), "not-a-jwt"))
	assert.False(t, m.Connected())

	assert.ErrorIs(t, m.Emit(TypingUpdate{ConversationID: "c1"}), ErrNotConnected)

	// Idle manager için Disconnect no-op.
	m.Disconnect()
	m.Disconnect()
}

func TestManager_ConnectEmitReceive(t *testing.T) {
	token := testToken(t)
	received := make(chan Event, 16)

	url := testServer(t, func(c *websocket.Conn, r *http.Request) {
		assert.Equal(t, token, r.URL.Query().Get("token"))
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))

		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"op":"user:typing","d":{"userId":"u2","conversationId":"c1","isTyping":true}}`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"op":"unknown_op","d":{}}`))

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			var ev Event
			if json.Unmarshal(raw, &ev) == nil {
				received <- ev
			}
		}
	})

	m := newTestManager(url)
	events := make(chan InboundEvent, 4)
	connected := make(chan struct{}, 1)
	disconnected := make(chan error, 1)
	m.OnEvent(func(ev InboundEvent) { events <- ev })
	m.OnConnect(func() { connected <- struct{}{} })
	m.OnDisconnect(func(err error) { disconnected <- err })

	require.NoError(t, m.Connect(context.Background(), token))

	select {
	case <-connected:
	case <-time.After(waitTimeout):
		t.Fatal("OnConnect not called")
	}
	assert.True(t, m.Connected())
	assert.NotEmpty(t, m.SessionID())

	select {
	case ev := <-events:
		assert.Equal(t, UserTyping{UserID: "u2", ConversationID: "c1", IsTyping: true}, ev)
	case <-time.After(waitTimeout):
		t.Fatal("inbound event not delivered")
	}

	require.NoError(t, m.Emit(MessageReadAck{ConversationID: "c1", MessageID: "m1"}))

	sawAck, sawHeartbeat := false, false
	deadline := time.After(waitTimeout)
	for !sawAck || !sawHeartbeat {
		select {
		case ev := <-received:
			switch ev.Op {
			case OpReadAck:
				sawAck = true
				assert.JSONEq(t, `{"conversationId":"c1","messageId":"m1"}`, string(ev.Data))
			case OpHeartbeat:
				sawHeartbeat = true
			}
		case <-deadline:
			t.Fatalf("server did not receive frames (ack=%v heartbeat=%v)", sawAck, sawHeartbeat)
		}
	}

	m.Disconnect()
	select {
	case err := <-disconnected:
		assert.NoError(t, err, "requested disconnect reports nil")
	case <-time.After(waitTimeout):
		t.Fatal("OnDisconnect not called")
	}
	assert.False(t, m.Connected())
	assert.ErrorIs(t, m.Emit(TypingUpdate{ConversationID: "c1"}), ErrNotConnected)
}

func TestManager_ReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32

	url := testServer(t, func(c *websocket.Conn, r *http.Request) {
		if dials.Add(1) == 1 {
			return // ilk bağlantıyı hemen düşür
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := newTestManager(url)
	reconnected := make(chan struct{}, 1)
	drops := make(chan error, 4)
	m.OnReconnect(func() { reconnected <- struct{}{} })
	m.OnDisconnect(func(err error) { drops <- err })

	require.NoError(t, m.Connect(context.Background(), testToken(t)))
	defer m.Disconnect()

	select {
	case err := <-drops:
		assert.Error(t, err, "unexpected drop carries the read error")
	case <-time.After(waitTimeout):
		t.Fatal("drop not reported")
	}

	select {
	case <-reconnected:
	case <-time.After(waitTimeout):
		t.Fatal("OnReconnect not called")
	}
	assert.True(t, m.Connected())
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestManager_UnauthorizedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestManager("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	errs := make(chan error, 1)
	m.OnError(func(err error) { errs <- err })

	err := m.Connect(context.Background(), testToken(t))
	require.ErrorIs(t, err, pkg.ErrUnauthorized)
	assert.False(t, m.Connected())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	default:
		t.Fatal("OnError not called")
	}

	// Döngü başlatılmadığı için Disconnect hemen döner.
	m.Disconnect()
}

func TestManager_ContextCancelStopsLoop(t *testing.T) {
	url := testServer(t, func(c *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := newTestManager(url)
	disconnected := make(chan error, 1)
	m.OnDisconnect(func(err error) { disconnected <- err })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Connect(ctx, testToken(t)))
	cancel()

	select {
	case err := <-disconnected:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("loop did not stop on context cancel")
	}
	m.Disconnect()
}
