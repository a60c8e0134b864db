package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir frame'i yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// missedHeartbeats: Bu kadar heartbeat aralığı boyunca sunucudan hiçbir
	// frame gelmezse bağlantı kopmuş sayılır.
	missedHeartbeats = 3

	// maxFrameSize: Sunucudan kabul edilen en büyük frame (byte).
	// message:receive ekleri URL olarak taşır; 1MB fazlasıyla yeterli.
	maxFrameSize = 1 << 20

	// sendBufferSize: Giden frame kuyruğu. Doluysa Emit hata döner.
	sendBufferSize = 256
)

// conn, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine vardır.
// readPump sunucudan gelen frame'leri okur, writePump kuyruktaki frame'leri
// ve periyodik heartbeat'i yazar. gorilla/websocket aynı anda tek okuyucu ve
// tek yazıcı destekler.
type conn struct {
	ws                *websocket.Conn
	send              chan []byte
	done              chan struct{} // readPump bitince kapanır
	closeOnce         sync.Once
	heartbeatInterval time.Duration
	onFrame           func(raw []byte)
	nextSeq           func() int64
}

func newConn(wsConn *websocket.Conn, heartbeatInterval time.Duration, onFrame func([]byte), nextSeq func() int64) *conn {
	return &conn{
		ws:                wsConn,
		send:              make(chan []byte, sendBufferSize),
		done:              make(chan struct{}),
		heartbeatInterval: heartbeatInterval,
		onFrame:           onFrame,
		nextSeq:           nextSeq,
	}
}

// serve, pump'ları çalıştırır ve bağlantı kapanana kadar bloklar.
// ctx iptal edilirse close frame gönderilip bağlantı kapatılır.
// Dönen error readPump'ın son okuma hatasıdır (ctx iptalinde nil).
func (c *conn) serve(ctx context.Context) error {
	go c.writePump()

	stop := context.AfterFunc(ctx, c.closeGracefully)
	defer stop()

	err := c.readPump()
	c.close()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readPump, frame'leri okur ve onFrame'e iletir. Okuma hatasında döner.
func (c *conn) readPump() error {
	defer close(c.done)

	c.ws.SetReadLimit(maxFrameSize)

	pongWait := c.heartbeatInterval * missedHeartbeats
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		// Herhangi bir frame bağlantının canlı olduğunu gösterir.
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}

		c.onFrame(raw)
	}
}

// writePump, kuyruktaki frame'leri yazar ve heartbeat gönderir.
// readPump bittiğinde (done kapanınca) döner.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Printf("[ws] write failed: %v", err)
				c.close()
				return
			}

		case <-ticker.C:
			frame, err := EncodeOutbound(heartbeat{}, c.nextSeq())
			if err != nil {
				continue
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				log.Printf("[ws] heartbeat failed: %v", err)
				c.close()
				return
			}
		}
	}
}

// enqueue, frame'i kuyruğa bırakır. Bloklamaz.
func (c *conn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// write, tek bir frame yazar. Sadece writePump ve closeGracefully çağırır;
// gorilla'nın WriteControl'ü eşzamanlı çağrıya izin verir, WriteMessage vermez.
func (c *conn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) closeGracefully() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.close()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}
