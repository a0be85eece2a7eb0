package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/domain"
)

// KickBySID closes the session's transport. Membership is cleaned up by the
// disconnect the adapter reports afterwards.
func (o *Orchestrator) KickBySID(sid core.SessionID) bool {
	conn, _, ok := o.Registry.Get(sid)
	if !ok {
		return false
	}
	o.Registry.Cancel(sid)
	conn.Close()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("kicked session")
	return true
}

// KickMember kicks sid only if it is currently a member of room.
func (o *Orchestrator) KickMember(rawRoom string, sid core.SessionID) bool {
	members, ok := o.Rooms.Members(rawRoom)
	if !ok {
		return false
	}
	for _, m := range members {
		if m.SID == sid {
			return o.KickBySID(sid)
		}
	}
	return false
}

func (o *Orchestrator) EvictRoom(name domain.RoomID) int {
	members, _ := o.Rooms.Members(string(name))
	n := 0
	for _, m := range members {
		if o.KickBySID(m.SID) {
			n++
		}
	}
	log.Info().Str("module", "orch").Str("room", string(name)).Int("kicked", n).Msg("evicted room")
	return n
}
