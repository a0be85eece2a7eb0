// Package protocol is the wire contract between rooms and their clients:
// UTF-8 JSON objects, one per text frame, tagged by a string "type".
package protocol

import "github.com/google/uuid"

type Type string

const (
	TypeJoin       Type = "join"
	TypeJoined     Type = "joined"
	TypePresence   Type = "presence"
	TypeFlipStart  Type = "flip:start"
	TypeFlipResult Type = "flip:result"
)

// ServerOnly reports whether clients are forbidden to send t.
func (t Type) ServerOnly() bool {
	return t == TypeJoined || t == TypePresence
}

// Header carries the correlation fields shared by every message.
type Header struct {
	Type      Type   `json:"type"`
	ID        string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (h *Header) Head() *Header { return h }

// Message is implemented by pointers to every variant below.
type Message interface {
	MessageType() Type
	Head() *Header
}

type Join struct {
	Header
	Avatar string `json:"avatar,omitempty"`
}

type Joined struct {
	Header
}

// MemberInfo is one entry of a presence list.
type MemberInfo struct {
	ID     string `json:"id"`
	Avatar string `json:"avatar,omitempty"`
}

type Presence struct {
	Header
	Members []MemberInfo `json:"members"`
}

type FlipStart struct {
	Header
	Seed int64  `json:"seed"`
	From string `json:"from,omitempty"`
}

type FlipOutcome struct {
	Result string `json:"result"`
	Seed   *int64 `json:"seed,omitempty"`
}

type FlipResult struct {
	Header
	Payload FlipOutcome `json:"payload"`
	From    string      `json:"from,omitempty"`
}

// Unknown keeps a message of an unrecognized type byte-for-byte so it can be
// relayed without loss. Header is filled best-effort.
type Unknown struct {
	Header
	Raw []byte `json:"-"`
}

func (*Join) MessageType() Type       { return TypeJoin }
func (*Joined) MessageType() Type     { return TypeJoined }
func (*Presence) MessageType() Type   { return TypePresence }
func (*FlipStart) MessageType() Type  { return TypeFlipStart }
func (*FlipResult) MessageType() Type { return TypeFlipResult }
func (u *Unknown) MessageType() Type  { return u.Type }

func NewJoined(roomID string, now int64) *Joined {
	return &Joined{Header: Header{Type: TypeJoined, RoomID: roomID, Timestamp: now}}
}

func NewPresence(roomID string, members []MemberInfo) *Presence {
	if members == nil {
		members = []MemberInfo{}
	}
	return &Presence{Header: Header{Type: TypePresence, RoomID: roomID}, Members: members}
}

// NewMessageID returns a unique client-side message token.
func NewMessageID() string {
	return uuid.NewString()
}
