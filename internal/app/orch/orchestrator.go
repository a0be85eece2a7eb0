package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/app"
	"github.com/dkeye/Flip/internal/core"
)

// Orchestrator glues the transport's connection lifecycle to the room
// directory. Adapters only ever talk to it by session id.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.Directory
}

func New(reg *app.Registry, rooms *app.Directory) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms}
}

// Connect registers an upgraded connection under the actor key derived from
// the room it was opened for.
func (o *Orchestrator) Connect(rawRoom string, conn core.Connection, cancel context.CancelFunc) error {
	key, err := o.Rooms.KeyFor(rawRoom)
	if err != nil {
		return err
	}
	o.Registry.Bind(key, conn, cancel)
	return nil
}

func (o *Orchestrator) OnFrame(sid core.SessionID, data core.Frame) {
	conn, key, ok := o.Registry.Get(sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("frame from unbound session")
		return
	}
	o.Rooms.HandleMessage(key, conn, data)
}

// OnDisconnect is safe to call more than once. The session stays bound until
// the actor has processed the departure so a rehydrating actor still sees it.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	conn, key, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	o.Rooms.HandleDisconnect(key, conn)
	o.Registry.Unbind(sid)
}
