package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open duplex connection to the room server. Read blocks until a
// text frame arrives or the connection fails.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// RoomURL adds the room query the server shards connections by.
func RoomURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type WSDialer struct {
	Dialer    *websocket.Dialer
	Header    http.Header
	WriteWait time.Duration
}

func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	wait := d.WriteWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &wsConn{ws: ws, writeWait: wait}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

func (c *wsConn) Read() ([]byte, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
