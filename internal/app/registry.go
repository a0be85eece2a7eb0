package app

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Flip/internal/core"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Key    string
	Conn   core.Connection
	Cancel context.CancelFunc
	seq    uint64
}

// Registry is the hosting runtime's table of open connections. It outlives
// actors: when an actor is evicted its connections stay here, and the next
// incarnation rebuilds membership from their attachments.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Registry) Bind(key string, conn core.Connection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.sessions[conn.ID()] = &sessionEntry{Key: key, Conn: conn, Cancel: cancel, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("sid", string(conn.ID())).Str("key", key).Msg("bound session")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Get(sid core.SessionID) (core.Connection, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Conn, e.Key, true
	}
	return nil, "", false
}

// OpenConnections implements core.ConnectionSource, in bind order.
func (r *Registry) OpenConnections(key string) []core.Connection {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Key == key {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *sessionEntry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]core.Connection, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Conn)
	}
	return out
}

// ActorKeys lists every key that still has an open connection.
func (r *Registry) ActorKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range r.sessions {
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		out = append(out, e.Key)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
