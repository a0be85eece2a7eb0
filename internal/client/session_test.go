package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Flip/internal/protocol"
)

const testURL = "ws://flip.test/ws?room=AB12"

type harness struct {
	t      *testing.T
	dialer *MockDialer
	states chan State
	events chan string
	s      *Session
	done   chan error
}

func newHarness(t *testing.T, backoff Backoff) *harness {
	h := &harness{
		t:      t,
		dialer: &MockDialer{},
		states: make(chan State, 64),
		events: make(chan string, 64),
		done:   make(chan error, 1),
	}
	h.s = NewSession(testURL, "AB12", h.dialer, backoff, Observers{
		OnStateChange: func(st State) { h.states <- st },
		OnFlipStart:   func(*protocol.FlipStart) { h.events <- "flip" },
		OnMessage:     func(m protocol.Message) { h.events <- string(m.MessageType()) },
	})
	return h
}

func (h *harness) run() {
	go func() { h.done <- h.s.Run(context.Background()) }()
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-h.states:
			if st == want {
				return
			}
		case <-timeout:
			h.t.Fatalf("never reached state %s", want)
		}
	}
}

func (h *harness) closeAndWait() {
	h.t.Helper()
	h.s.Close()
	select {
	case err := <-h.done:
		require.NoError(h.t, err)
	case <-time.After(2 * time.Second):
		h.t.Fatal("Run did not return after Close")
	}
	assert.Equal(h.t, Closed, h.s.State())
	h.dialer.AssertExpectations(h.t)
}

func nextWrite(t *testing.T, c *pipeConn) protocol.Message {
	t.Helper()
	select {
	case b := <-c.writes:
		m, err := protocol.Decode(b)
		require.NoError(t, err)
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("nothing written")
		return nil
	}
}

func encode(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	b, err := protocol.Encode(m)
	require.NoError(t, err)
	return b
}

func TestSession_JoinsOnOpen(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	conn := newPipeConn()
	h.dialer.On("Dial", mock.Anything, testURL).Return(conn, nil).Once()
	h.s.SetIdentity(Identity{UserID: "u1", Avatar: "https://cdn.example/u1.png"})

	h.run()
	h.waitState(Open)

	join, ok := nextWrite(t, conn).(*protocol.Join)
	require.True(t, ok)
	assert.Equal(t, "u1", join.UserID)
	assert.Equal(t, "AB12", join.RoomID)
	assert.Equal(t, "https://cdn.example/u1.png", join.Avatar)
	assert.NotEmpty(t, join.ID)
	assert.NotZero(t, join.Timestamp)

	h.closeAndWait()
}

func TestSession_SendNeedsOpenConnectionAndIdentity(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	assert.False(t, h.s.Send(&protocol.FlipStart{Seed: 1}))

	conn := newPipeConn()
	h.dialer.On("Dial", mock.Anything, testURL).Return(conn, nil).Once()
	h.run()
	h.waitState(Open)

	assert.False(t, h.s.Send(&protocol.FlipStart{Seed: 1}))
	assert.Empty(t, conn.writes)

	h.s.SetIdentity(Identity{UserID: "u2"})
	_, ok := nextWrite(t, conn).(*protocol.Join)
	require.True(t, ok)

	require.True(t, h.s.Send(&protocol.FlipStart{Seed: 42}))
	fs, ok := nextWrite(t, conn).(*protocol.FlipStart)
	require.True(t, ok)
	assert.Equal(t, int64(42), fs.Seed)
	assert.Equal(t, "u2", fs.UserID)
	assert.Equal(t, "AB12", fs.RoomID)

	h.closeAndWait()
}

func TestSession_StampsUnknownTypes(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	conn := newPipeConn()
	h.dialer.On("Dial", mock.Anything, testURL).Return(conn, nil).Once()
	h.s.SetIdentity(Identity{UserID: "u1"})
	h.run()
	h.waitState(Open)
	nextWrite(t, conn)

	emoji := &protocol.Unknown{Header: protocol.Header{Type: "emoji"}, Raw: []byte(`{"type":"emoji","glyph":"x"}`)}
	require.True(t, h.s.Send(emoji))

	u, ok := nextWrite(t, conn).(*protocol.Unknown)
	require.True(t, ok)
	assert.Equal(t, protocol.Type("emoji"), u.Type)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "AB12", u.RoomID)
	assert.NotEmpty(t, u.ID)
	assert.NotZero(t, u.Timestamp)
	assert.Contains(t, string(u.Raw), `"glyph":"x"`)

	h.closeAndWait()
}

func TestSession_DispatchesSpecificBeforeGeneric(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	conn := newPipeConn()
	h.dialer.On("Dial", mock.Anything, testURL).Return(conn, nil).Once()
	h.run()
	h.waitState(Open)

	conn.in <- encode(t, protocol.NewPresence("AB12", []protocol.MemberInfo{{ID: "u1"}, {ID: "u2", Avatar: "a"}}))
	conn.in <- []byte(`{"type":"flip:start"`)
	conn.in <- encode(t, &protocol.FlipStart{Header: protocol.Header{RoomID: "AB12", UserID: "u2"}, Seed: 42})
	conn.in <- []byte(`{"type":"emoji","roomId":"AB12"}`)

	var got []string
	for len(got) < 4 {
		select {
		case e := <-h.events:
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("events so far: %v", got)
		}
	}
	assert.Equal(t, []string{"presence", "flip", "flip:start", "emoji"}, got)

	assert.Equal(t, []protocol.MemberInfo{{ID: "u1"}, {ID: "u2", Avatar: "a"}}, h.s.Members())
	seed, ok := h.s.Seed()
	assert.True(t, ok)
	assert.Equal(t, int64(42), seed)
	assert.True(t, h.s.Flipping())

	h.closeAndWait()
}

func TestSession_ReconnectsAndRejoins(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, 4*time.Millisecond))
	first, second := newPipeConn(), newPipeConn()
	refused := errors.New("connection refused")
	h.dialer.On("Dial", mock.Anything, testURL).Return(nil, refused).Twice()
	h.dialer.On("Dial", mock.Anything, testURL).Return(first, nil).Once()
	h.dialer.On("Dial", mock.Anything, testURL).Return(second, nil).Once()
	h.s.SetIdentity(Identity{UserID: "u1"})

	h.run()
	h.waitState(Open)
	_, ok := nextWrite(t, first).(*protocol.Join)
	require.True(t, ok)

	h.s.mu.Lock()
	assert.Zero(t, h.s.backoff.Failures())
	h.s.mu.Unlock()

	// server drops us
	require.NoError(t, first.Close())
	h.waitState(Disconnected)
	h.waitState(Open)
	_, ok = nextWrite(t, second).(*protocol.Join)
	require.True(t, ok)

	h.closeAndWait()
}

func TestSession_CloseStopsPendingRetry(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Hour, time.Hour))
	h.dialer.On("Dial", mock.Anything, testURL).Return(nil, errors.New("refused")).Once()

	h.run()
	h.waitState(Disconnected)
	h.closeAndWait()
}

func TestSession_RunAfterClose(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	h.s.Close()
	assert.ErrorIs(t, h.s.Run(context.Background()), ErrClosed)
	assert.Equal(t, Closed, h.s.State())
}

func TestSession_ConcurrentSendAndClose(t *testing.T) {
	h := newHarness(t, NewBackoff(time.Millisecond, time.Millisecond))
	conn := newPipeConn()
	h.dialer.On("Dial", mock.Anything, testURL).Return(conn, nil).Once()
	h.s.SetIdentity(Identity{UserID: "u1"})
	h.run()
	h.waitState(Open)
	go func() {
		for {
			select {
			case <-conn.writes:
			case <-conn.done:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h.s.Send(&protocol.FlipStart{Seed: int64(j)})
			}
		}()
	}
	wg.Wait()
	h.closeAndWait()
}
