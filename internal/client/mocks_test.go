package client

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
)

// --- Dialer ---

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, url string) (Conn, error) {
	args := m.Called(ctx, url)
	c, _ := args.Get(0).(Conn)
	return c, args.Error(1)
}

// --- Conn ---

// pipeConn is an in-memory Conn: tests push inbound frames into in and read
// what the session wrote from writes.
type pipeConn struct {
	in     chan []byte
	writes chan []byte
	done   chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		writes: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *pipeConn) Read() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *pipeConn) Write(data []byte) error {
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	c.writes <- append([]byte(nil), data...)
	return nil
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
