// Package client drives one participant's connection to a room: connect,
// join, dispatch what arrives, and reconnect with backoff until closed.
package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/protocol"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var ErrClosed = errors.New("session closed")

type Identity struct {
	UserID string
	Avatar string
}

// Observers are called from the session's own goroutine and must not block.
type Observers struct {
	OnStateChange func(State)
	OnFlipStart   func(*protocol.FlipStart)
	OnMessage     func(protocol.Message)
}

type Session struct {
	url    string
	room   string
	dialer Dialer
	obs    Observers
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	identity *Identity
	joined   bool
	members  []protocol.MemberInfo
	seed     int64
	hasSeed  bool
	flipping bool
	backoff  Backoff
	cancel   context.CancelFunc
	closed   bool
}

// NewSession prepares a session for room at url; url must already carry the
// room query (see RoomURL).
func NewSession(url, room string, dialer Dialer, backoff Backoff, obs Observers) *Session {
	return &Session{
		url:     url,
		room:    room,
		dialer:  dialer,
		obs:     obs,
		now:     time.Now,
		logger:  log.With().Str("module", "client").Str("room", room).Logger(),
		backoff: backoff,
	}
}

// Run connects and keeps reconnecting until ctx is done or Close is called.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancel = cancel
	s.mu.Unlock()

	for {
		s.setState(Connecting)
		conn, err := s.dialer.Dial(ctx, s.url)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dial failed")
		} else {
			s.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			s.setState(Closed)
			return nil
		}

		s.setState(Disconnected)
		delay := s.nextDelay()
		s.logger.Info().Dur("delay", delay).Msg("reconnect scheduled")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setState(Closed)
			return nil
		case <-timer.C:
		}
	}
}

func (s *Session) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoff.Next()
}

func (s *Session) serve(ctx context.Context, conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.joined = false
	s.backoff.Reset()
	s.mu.Unlock()
	s.setState(Open)
	s.logger.Info().Msg("connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.sendJoin()
	for {
		data, err := conn.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("connection lost")
			}
			break
		}
		s.dispatch(data)
	}

	s.mu.Lock()
	s.conn = nil
	s.joined = false
	s.mu.Unlock()
	_ = conn.Close()
}

// dispatch updates local state first and only then forwards the message.
func (s *Session) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("drop malformed message")
		return
	}

	switch m := msg.(type) {
	case *protocol.Presence:
		s.mu.Lock()
		s.members = slices.Clone(m.Members)
		s.mu.Unlock()
	case *protocol.FlipStart:
		s.mu.Lock()
		s.seed = m.Seed
		s.hasSeed = true
		s.flipping = true
		s.mu.Unlock()
		if s.obs.OnFlipStart != nil {
			s.obs.OnFlipStart(m)
		}
	case *protocol.FlipResult:
		s.mu.Lock()
		s.flipping = false
		s.mu.Unlock()
	}

	if s.obs.OnMessage != nil {
		s.obs.OnMessage(msg)
	}
}

// Send stamps m with a fresh id, the local identity, the room and the time,
// then writes it. Nothing is queued: it returns false when the session is
// not open or no identity is known yet.
func (s *Session) Send(m protocol.Message) bool {
	s.mu.Lock()
	conn, state, id := s.conn, s.state, s.identity
	s.mu.Unlock()

	if state != Open || conn == nil {
		s.logger.Warn().Str("type", string(m.MessageType())).Msg("send while not open")
		return false
	}
	if id == nil {
		s.logger.Warn().Str("type", string(m.MessageType())).Msg("send without identity")
		return false
	}

	h := m.Head()
	h.ID = protocol.NewMessageID()
	h.UserID = id.UserID
	h.RoomID = s.room
	h.Timestamp = s.now().UnixMilli()
	join, isJoin := m.(*protocol.Join)
	if isJoin {
		join.Avatar = id.Avatar
	}
	if u, ok := m.(*protocol.Unknown); ok && len(u.Raw) > 0 {
		raw, err := protocol.StampRaw(u.Raw, *h)
		if err != nil {
			s.logger.Warn().Err(err).Str("type", string(u.Type)).Msg("stamp raw message")
			return false
		}
		u.Raw = raw
	}

	b, err := protocol.Encode(m)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode")
		return false
	}
	if err := conn.Write(b); err != nil {
		s.logger.Warn().Err(err).Str("type", string(m.MessageType())).Msg("write failed")
		return false
	}
	if isJoin {
		s.mu.Lock()
		if s.conn == conn {
			s.joined = true
		}
		s.mu.Unlock()
	}
	return true
}

func (s *Session) sendJoin() bool {
	return s.Send(&protocol.Join{})
}

// SetIdentity records who we are; an open session that has not joined yet
// joins right away.
func (s *Session) SetIdentity(id Identity) {
	s.mu.Lock()
	s.identity = &id
	needJoin := s.state == Open && !s.joined
	s.mu.Unlock()
	if needJoin {
		s.sendJoin()
	}
}

// Close ends the session for good; no reconnect follows.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		return
	}
	s.setState(Closed)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.logger.Debug().Str("state", st.String()).Msg("state change")
	if s.obs.OnStateChange != nil {
		s.obs.OnStateChange(st)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Members() []protocol.MemberInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

func (s *Session) Seed() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed, s.hasSeed
}

func (s *Session) Flipping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flipping
}
