package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coregx/libchat"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize is the maximum inbound frame size in bytes.
	maxFrameSize = 64 * 1024
)

// DefaultSendQueueSize is the outbound queue capacity used when the handler
// is not configured with an explicit size.
const DefaultSendQueueSize = 256

// Conn adapts a gorilla websocket connection to the libchat.Conn interface.
//
// Outbound frames go through a bounded queue drained by a single write pump
// goroutine, so Send never blocks on a slow peer. When the queue is full the
// frame is rejected with libchat.ErrSendQueueFull and the caller treats the
// recipient as offline.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(wsc *websocket.Conn, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Conn{
		ws:   wsc,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Send queues a text frame for the write pump. It fails fast with
// ErrConnClosed after Close and with ErrSendQueueFull when the peer is not
// draining its queue.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return libchat.ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return libchat.ErrConnClosed
	default:
		return libchat.ErrSendQueueFull
	}
}

// IsLive reports whether the handle still accepts frames.
func (c *Conn) IsLive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close tears down the socket. Safe to call from any goroutine, any number
// of times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with periodic pings. It exits when a write fails or the
// handle is closed, closing the socket on the way out.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop reads inbound frames and hands each one to handle. It exits on
// the first read error (including peer close) and closes the handle.
func (c *Conn) readLoop(handle func(raw []byte)) {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}
