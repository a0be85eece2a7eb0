package core

import "github.com/dkeye/Flip/internal/domain"

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	meta *domain.Member
	conn Connection
}

func NewMemberSession(meta *domain.Member, conn Connection) MemberSession {
	return &memberSession{meta: meta, conn: conn}
}

func (m *memberSession) Meta() *domain.Member { return m.meta }
func (m *memberSession) Conn() Connection     { return m.conn }

// MemberFromAttachment rebuilds a session from persisted join data.
func MemberFromAttachment(conn Connection) (MemberSession, error) {
	att, err := conn.Attachment()
	if err != nil {
		return nil, err
	}
	room, err := domain.NormalizeRoomID(string(att.RoomID))
	if err != nil {
		return nil, err
	}
	user, err := domain.NewUser(string(att.UserID), att.Avatar)
	if err != nil {
		return nil, err
	}
	return NewMemberSession(domain.NewMember(user, room), conn), nil
}
