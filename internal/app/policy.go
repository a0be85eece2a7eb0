package app

import (
	"errors"

	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/domain"
)

type SendFailureAction int

const (
	// Prune removes the member from the room; the transport is left alone.
	Prune SendFailureAction = iota
	// PruneAndClose also closes the member's connection.
	PruneAndClose
)

// Policy decides what happens to a member whose send failed mid-broadcast.
// Either way the member leaves the room and delivery to others continues.
type Policy interface {
	OnSendFailure(room domain.RoomID, member core.MemberSession, err error) SendFailureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(_ domain.RoomID, _ core.MemberSession, err error) SendFailureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return PruneAndClose
	}
	return Prune
}
