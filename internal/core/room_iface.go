package core

import (
	"github.com/dkeye/Flip/internal/domain"
	"github.com/dkeye/Flip/internal/protocol"
)

// MemberSnapshot is a read-only view for APIs (no transport fields).
type MemberSnapshot struct {
	ID     domain.UserID `json:"id"`
	Avatar string        `json:"avatar,omitempty"`
	SID    SessionID     `json:"sid"`
}

// Presence converts snapshots to the wire member list.
func Presence(snaps []MemberSnapshot) []protocol.MemberInfo {
	out := make([]protocol.MemberInfo, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, protocol.MemberInfo{ID: string(s.ID), Avatar: s.Avatar})
	}
	return out
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}
