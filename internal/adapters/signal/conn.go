package signal

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Flip/internal/core"
)

type ConnState int

const (
	StateOpen ConnState = iota
	StateJoined
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// WsSignalConn adapts one gorilla websocket to core.Connection. Outbound
// frames go through a bounded channel drained by the write pump.
type WsSignalConn struct {
	id   core.SessionID
	conn *websocket.Conn
	send chan core.Frame

	mu         sync.RWMutex
	state      ConnState
	attachment []byte

	onMessage func(core.Frame)
	onClose   func()
	onError   func(error)
	closeOnce sync.Once
}

func NewWsSignalConn(id core.SessionID, ws *websocket.Conn, buffer int) *WsSignalConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &WsSignalConn{
		id:   id,
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) ID() core.SessionID { return c.id }

func (c *WsSignalConn) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state >= StateClosing {
		return core.ErrSendFailed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. The write pump flushes a close frame and
// tears down the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state >= StateClosing {
		return
	}
	c.state = StateClosing
	close(c.send)
}

func (c *WsSignalConn) Attach(a core.Attachment) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = b
	if c.state == StateOpen {
		c.state = StateJoined
	}
	return nil
}

func (c *WsSignalConn) Attachment() (core.Attachment, error) {
	c.mu.RLock()
	b := c.attachment
	c.mu.RUnlock()
	if b == nil {
		return core.Attachment{}, core.ErrNoAttachment
	}
	var a core.Attachment
	if err := json.Unmarshal(b, &a); err != nil {
		return core.Attachment{}, err
	}
	return a, nil
}

func (c *WsSignalConn) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = nil
	if c.state == StateJoined {
		c.state = StateOpen
	}
}

func (c *WsSignalConn) OnMessage(fn func(core.Frame)) { c.onMessage = fn }
func (c *WsSignalConn) OnClose(fn func())             { c.onClose = fn }
func (c *WsSignalConn) OnError(fn func(error))        { c.onError = fn }

func (c *WsSignalConn) emitMessage(f core.Frame) {
	if c.onMessage != nil {
		c.onMessage(f)
	}
}

func (c *WsSignalConn) emitError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// finish marks the connection closed and fires onClose exactly once.
func (c *WsSignalConn) finish() {
	c.Close()
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		if c.onClose != nil {
			c.onClose()
		}
	})
}
