package app

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/domain"
	"github.com/dkeye/Flip/internal/protocol"
)

// Actor owns the membership of the rooms routed to one key and serializes
// every mutation and broadcast that touches them. Sends are non-blocking, so
// a broadcast always finishes its fan-out pass while the lock is held and
// every member sees broadcasts in the same order.
type Actor struct {
	key    string
	scope  domain.RoomID
	policy Policy
	now    func() time.Time
	logger zerolog.Logger

	mu         sync.Mutex
	reg        *core.Registry
	lastActive time.Time
	evicted    bool
	joinSeq    uint64
}

// NewActor builds an actor and rehydrates it from every connection src still
// reports open for key. A non-empty scope pins the actor to a single room.
func NewActor(key string, scope domain.RoomID, src core.ConnectionSource, policy Policy) *Actor {
	return newActor(key, scope, src, policy, time.Now)
}

func newActor(key string, scope domain.RoomID, src core.ConnectionSource, policy Policy, now func() time.Time) *Actor {
	if policy == nil {
		policy = SimplePolicy{}
	}
	a := &Actor{
		key:    key,
		scope:  scope,
		policy: policy,
		now:    now,
		logger: log.With().Str("module", "app.actor").Str("key", key).Logger(),
		reg:    core.NewRegistry(),
	}
	a.lastActive = now()
	if src != nil {
		a.rehydrate(src.OpenConnections(key))
	}
	return a
}

type restoredMember struct {
	seq uint64
	ms  core.MemberSession
}

// rehydrate rebuilds membership in the order members originally joined.
func (a *Actor) rehydrate(conns []core.Connection) {
	restored := make([]restoredMember, 0, len(conns))
	for _, conn := range conns {
		att, err := conn.Attachment()
		if errors.Is(err, core.ErrNoAttachment) {
			continue
		}
		ms, err := core.MemberFromAttachment(conn)
		if err != nil {
			a.logger.Warn().Err(err).Str("sid", string(conn.ID())).Msg("skip bad attachment")
			continue
		}
		room := ms.Meta().Room
		if a.scope != "" && room != a.scope {
			a.logger.Warn().Str("sid", string(conn.ID())).Str("room", string(room)).Msg("skip attachment for foreign room")
			continue
		}
		restored = append(restored, restoredMember{seq: att.Seq, ms: ms})
	}
	slices.SortStableFunc(restored, func(x, y restoredMember) int { return cmp.Compare(x.seq, y.seq) })
	for _, r := range restored {
		a.reg.Join(r.ms.Meta().Room, r.ms)
		a.joinSeq = max(a.joinSeq, r.seq)
	}
	if len(restored) > 0 {
		a.logger.Info().Int("members", len(restored)).Msg("rehydrated")
	}
}

// HandleMessage processes one inbound frame from conn. It returns false only
// when the actor has been evicted and the caller must retry on a fresh one.
func (a *Actor) HandleMessage(conn core.Connection, data core.Frame) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.evicted {
		return false
	}
	a.lastActive = a.now()

	msg, err := protocol.Decode(data)
	if err != nil {
		a.logger.Warn().Err(err).Str("sid", string(conn.ID())).Msg("drop undecodable message")
		return true
	}

	if join, ok := msg.(*protocol.Join); ok {
		a.join(conn, join)
		return true
	}
	a.relay(conn, msg.Head(), data)
	return true
}

// HandleDisconnect drops conn's membership and tells the rest of the room.
// The departed connection is never contacted.
func (a *Actor) HandleDisconnect(conn core.Connection) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.evicted {
		return false
	}

	room, members, ok := a.reg.Leave(conn.ID())
	conn.Detach()
	if !ok {
		return true
	}
	a.logger.Info().Str("sid", string(conn.ID())).Str("room", string(room)).Int("left", len(members)).Msg("member disconnected")
	if len(members) > 0 {
		a.broadcastPresence(room)
	}
	return true
}

func (a *Actor) join(conn core.Connection, m *protocol.Join) {
	sid := string(conn.ID())
	room, err := domain.NormalizeRoomID(m.RoomID)
	if err != nil {
		a.logger.Warn().Err(err).Str("sid", sid).Msg("drop join")
		return
	}
	if a.scope != "" && room != a.scope {
		a.logger.Warn().Str("sid", sid).Str("room", string(room)).Msg("drop join for foreign room")
		return
	}
	user, err := domain.NewUser(m.UserID, m.Avatar)
	if err != nil {
		a.logger.Warn().Err(err).Str("sid", sid).Msg("drop join")
		return
	}

	if prev, ok := a.reg.RoomOf(conn.ID()); ok && prev != room {
		if _, members, _ := a.reg.Leave(conn.ID()); len(members) > 0 {
			a.broadcastPresence(prev)
		}
	}

	ms := core.NewMemberSession(domain.NewMember(user, room), conn)
	a.reg.Join(room, ms)
	a.joinSeq++
	if err := conn.Attach(core.Attachment{RoomID: room, UserID: user.ID, Avatar: user.Avatar, Seq: a.joinSeq}); err != nil {
		a.logger.Warn().Err(err).Str("sid", sid).Msg("attach failed")
	}
	a.logger.Info().Str("sid", sid).Str("room", string(room)).Str("user", string(user.ID)).Msg("member joined")

	ack, err := protocol.Encode(protocol.NewJoined(string(room), a.now().UnixMilli()))
	if err == nil {
		if err := conn.TrySend(ack); err != nil {
			a.prune(room, ms, err)
		}
	}
	a.broadcastPresence(room)
}

// relay fans data out to the target room, but only when the sender is a
// member of that room.
func (a *Actor) relay(conn core.Connection, h *protocol.Header, data core.Frame) {
	sid := string(conn.ID())
	if h.Type.ServerOnly() {
		a.logger.Warn().Str("sid", sid).Str("type", string(h.Type)).Msg("drop server-only message from client")
		return
	}
	if h.RoomID == "" {
		a.logger.Debug().Str("sid", sid).Str("type", string(h.Type)).Msg("drop message without room")
		return
	}
	room, err := domain.NormalizeRoomID(h.RoomID)
	if err != nil || !a.reg.Has(room) {
		a.logger.Debug().Str("sid", sid).Str("room", h.RoomID).Msg("drop message for unknown room")
		return
	}
	if cur, ok := a.reg.RoomOf(conn.ID()); !ok || cur != room {
		a.logger.Warn().Str("sid", sid).Str("room", string(room)).Msg("drop message from non-member")
		return
	}

	if pruned := a.fanOut(room, data); pruned > 0 {
		a.broadcastPresence(room)
	}
}

// broadcastPresence repeats until a pass prunes nobody, so the list every
// surviving member last received matches the registry.
func (a *Actor) broadcastPresence(room domain.RoomID) {
	for a.reg.Has(room) {
		frame, err := protocol.Encode(protocol.NewPresence(string(room), core.Presence(a.reg.Members(room))))
		if err != nil {
			a.logger.Error().Err(err).Msg("encode presence")
			return
		}
		if a.fanOut(room, frame) == 0 {
			return
		}
	}
}

func (a *Actor) fanOut(room domain.RoomID, frame core.Frame) (pruned int) {
	targets := a.reg.BroadcastTargets(room)
	for _, ms := range targets {
		if err := ms.Conn().TrySend(frame); err != nil {
			a.prune(room, ms, err)
			pruned++
		}
	}
	a.logger.Debug().Str("room", string(room)).Int("sent_to", len(targets)-pruned).Int("pruned", pruned).Msg("broadcast result")
	return pruned
}

func (a *Actor) prune(room domain.RoomID, ms core.MemberSession, err error) {
	action := a.policy.OnSendFailure(room, ms, err)
	a.reg.Leave(ms.Conn().ID())
	ms.Conn().Detach()
	a.logger.Warn().Err(err).Str("sid", string(ms.Conn().ID())).Str("room", string(room)).Msg("pruned member")
	if action == PruneAndClose {
		ms.Conn().Close()
	}
}

func (a *Actor) Members(room domain.RoomID) ([]core.MemberSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.reg.Has(room) {
		return nil, false
	}
	return a.reg.Members(room), true
}

func (a *Actor) Rooms() []core.RoomInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg.Rooms()
}

// evictIf marks the actor evicted when cond holds; cond runs under the lock.
func (a *Actor) evictIf(cond func() bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.evicted {
		return true
	}
	if !cond() {
		return false
	}
	a.evicted = true
	return true
}
