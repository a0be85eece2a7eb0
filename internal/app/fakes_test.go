package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/protocol"
)

type fakeConn struct {
	id core.SessionID

	mu      sync.Mutex
	frames  []core.Frame
	sendErr error
	closed  bool
	att     *core.Attachment
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: core.SessionID(id)} }

func (c *fakeConn) ID() core.SessionID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Attach(a core.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.att = &a
	return nil
}

func (c *fakeConn) Attachment() (core.Attachment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.att == nil {
		return core.Attachment{}, core.ErrNoAttachment
	}
	return *c.att, nil
}

func (c *fakeConn) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.att = nil
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// take returns and clears everything sent so far.
func (c *fakeConn) take() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func types(t *testing.T, frames []core.Frame) []protocol.Type {
	t.Helper()
	out := make([]protocol.Type, 0, len(frames))
	for _, f := range frames {
		h, err := protocol.Probe(f)
		require.NoError(t, err)
		out = append(out, h.Type)
	}
	return out
}

// presenceIDs decodes the last presence frame in frames.
func presenceIDs(t *testing.T, frames []core.Frame) []string {
	t.Helper()
	for i := len(frames) - 1; i >= 0; i-- {
		msg, err := protocol.Decode(frames[i])
		require.NoError(t, err)
		if p, ok := msg.(*protocol.Presence); ok {
			ids := make([]string, 0, len(p.Members))
			for _, m := range p.Members {
				ids = append(ids, m.ID)
			}
			return ids
		}
	}
	t.Fatalf("no presence among %d frames", len(frames))
	return nil
}

func joinFrame(t *testing.T, room, user string) core.Frame {
	t.Helper()
	b, err := protocol.Encode(&protocol.Join{Header: protocol.Header{ID: protocol.NewMessageID(), UserID: user, RoomID: room, Timestamp: 1}})
	require.NoError(t, err)
	return b
}

func flipFrame(t *testing.T, room, user string, seed int64) core.Frame {
	t.Helper()
	b, err := protocol.Encode(&protocol.FlipStart{Header: protocol.Header{ID: protocol.NewMessageID(), UserID: user, RoomID: room, Timestamp: 2}, Seed: seed})
	require.NoError(t, err)
	return b
}

func marshal(t *testing.T, v any) core.Frame {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// hostWith binds conns to key in a fresh hosting registry.
func hostWith(key string, conns ...*fakeConn) *Registry {
	r := NewRegistry()
	for _, c := range conns {
		r.Bind(key, c, nil)
	}
	return r
}
