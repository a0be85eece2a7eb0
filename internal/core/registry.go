package core

import (
	"cmp"
	"slices"

	"github.com/dkeye/Flip/internal/domain"
)

// Registry maps room ids to their current members, in join order.
// It performs no I/O and is not safe for concurrent use: exactly one actor
// owns it and serializes every call.
type Registry struct {
	rooms map[domain.RoomID][]MemberSession
	bySID map[SessionID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID][]MemberSession),
		bySID: make(map[SessionID]domain.RoomID),
	}
}

// Join inserts ms into room, creating the room if absent, and returns the
// member list after insertion. An entry for the same connection is replaced,
// never duplicated; a connection joined elsewhere is moved.
func (r *Registry) Join(room domain.RoomID, ms MemberSession) []MemberSnapshot {
	sid := ms.Conn().ID()
	if _, ok := r.bySID[sid]; ok {
		r.Leave(sid)
	}
	r.rooms[room] = append(r.rooms[room], ms)
	r.bySID[sid] = room
	return r.Members(room)
}

// Leave removes the member owning sid. The room is deleted when it empties.
// ok is false when sid is in no room, which is not an error.
func (r *Registry) Leave(sid SessionID) (room domain.RoomID, members []MemberSnapshot, ok bool) {
	room, ok = r.bySID[sid]
	if !ok {
		return "", nil, false
	}
	delete(r.bySID, sid)

	left := slices.DeleteFunc(r.rooms[room], func(ms MemberSession) bool {
		return ms.Conn().ID() == sid
	})
	if len(left) == 0 {
		delete(r.rooms, room)
		return room, []MemberSnapshot{}, true
	}
	r.rooms[room] = left
	return room, r.Members(room), true
}

// BroadcastTargets returns a copy of the room's members, or nil.
func (r *Registry) BroadcastTargets(room domain.RoomID) []MemberSession {
	return slices.Clone(r.rooms[room])
}

func (r *Registry) Members(room domain.RoomID) []MemberSnapshot {
	members := r.rooms[room]
	out := make([]MemberSnapshot, 0, len(members))
	for _, ms := range members {
		u := ms.Meta().User
		out = append(out, MemberSnapshot{ID: u.ID, Avatar: u.Avatar, SID: ms.Conn().ID()})
	}
	return out
}

func (r *Registry) RoomOf(sid SessionID) (domain.RoomID, bool) {
	room, ok := r.bySID[sid]
	return room, ok
}

func (r *Registry) Has(room domain.RoomID) bool {
	_, ok := r.rooms[room]
	return ok
}

// Rooms lists non-empty rooms ordered by id.
func (r *Registry) Rooms() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, members := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(members)})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *Registry) Empty() bool { return len(r.rooms) == 0 }
