package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// Conn serializes writes to a WebSocket connection. The countdown and the
// read loop both send events, and gorilla allows one concurrent writer.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex

	readMu    sync.Mutex
	readUntil time.Time
}

// NewConn wraps conn for concurrent writers. A pong from the peer extends the
// read deadline.
func NewConn(conn *websocket.Conn) *Conn {
	c := &Conn{Conn: conn}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(c.nextReadDeadline(time.Now()))
	})
	return c
}

// KeepReadingUntil keeps a silent peer connected at least until t, such as
// the end of an attempt.
func (c *Conn) KeepReadingUntil(t time.Time) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.readUntil = t
}

func (c *Conn) nextReadDeadline(now time.Time) time.Time {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	deadline := now.Add(readWait)
	if c.readUntil.After(deadline) {
		return c.readUntil
	}
	return deadline
}

// WriteTyped sends a strongly-typed event payload.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorEvent.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorEvent{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// CloseNormal sends a normal-closure frame with reason.
func (c *Conn) CloseNormal(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func (c *Conn) ReadJSON(v interface{}) error {
	_ = c.SetReadDeadline(c.nextReadDeadline(time.Now()))
	return c.Conn.ReadJSON(v)
}
