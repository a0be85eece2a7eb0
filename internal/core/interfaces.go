package core

import (
	"errors"

	"github.com/dkeye/Flip/internal/domain"
)

// Frame is one whole text frame as received from or written to the wire.
type Frame []byte

// SessionID identifies one physical connection. A reconnect is a new session.
type SessionID string

var (
	ErrSendFailed   = errors.New("connection not open")
	ErrBackpressure = errors.New("backpressure")
	ErrNoAttachment = errors.New("no attachment")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() SessionID
	// TrySend never blocks. It returns ErrSendFailed when the transport is
	// not open and ErrBackpressure when the outbound buffer is full.
	TrySend(Frame) error
	Close()
}

// Attachment is the membership a connection persists at join time so a
// recycled actor can rebuild the member without a new join.
type Attachment struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Avatar string        `json:"avatar,omitempty"`
	// Seq orders members by join across actor incarnations.
	Seq uint64 `json:"seq,omitempty"`
}

// Hibernatable is a durable key-value slot scoped to one connection.
type Hibernatable interface {
	Attach(Attachment) error
	// Attachment returns ErrNoAttachment when nothing was attached.
	Attachment() (Attachment, error)
	// Detach clears the slot so the connection is not restored on rehydration.
	Detach()
}

// Connection is what a room actor stores and fans out to.
type Connection interface {
	SignalConnection
	Hibernatable
}

// ConnectionSource is the hosting runtime's view of the connections that are
// still open for an actor key, read when the actor is (re)constructed.
type ConnectionSource interface {
	OpenConnections(key string) []Connection
}
