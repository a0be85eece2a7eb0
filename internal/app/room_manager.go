package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/domain"
)

type Sharding string

const (
	// ShardByRoom runs one actor per room key.
	ShardByRoom Sharding = "room"
	// ShardSingle routes every room through one in-process actor.
	ShardSingle Sharding = "single"

	DefaultActorKey = "default"
)

func ParseSharding(s string) (Sharding, error) {
	switch Sharding(s) {
	case ShardByRoom, ShardSingle:
		return Sharding(s), nil
	}
	return "", fmt.Errorf("unknown sharding %q", s)
}

// Host is the hosting runtime as seen by the directory.
type Host interface {
	core.ConnectionSource
	ActorKeys() []string
}

// Directory maps actor keys to live actors. Its lock only guards the map, so
// actors for different keys never contend with each other.
type Directory struct {
	host           Host
	policy         Policy
	sharding       Sharding
	hibernateAfter time.Duration
	now            func() time.Time

	mu     sync.Mutex
	actors map[string]*Actor
}

func NewDirectory(host Host, policy Policy, sharding Sharding, hibernateAfter time.Duration) *Directory {
	if sharding == "" {
		sharding = ShardByRoom
	}
	return &Directory{
		host:           host,
		policy:         policy,
		sharding:       sharding,
		hibernateAfter: hibernateAfter,
		now:            time.Now,
		actors:         make(map[string]*Actor),
	}
}

func (d *Directory) Sharding() Sharding { return d.sharding }

// KeyFor maps the room named in the connection URL to an actor key.
func (d *Directory) KeyFor(rawRoom string) (string, error) {
	if d.sharding == ShardSingle {
		return DefaultActorKey, nil
	}
	room, err := domain.NormalizeRoomID(rawRoom)
	if err != nil {
		return "", err
	}
	return string(room), nil
}

func (d *Directory) actor(key string) *Actor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.actors[key]; ok {
		return a
	}
	var scope domain.RoomID
	if d.sharding == ShardByRoom {
		scope = domain.RoomID(key)
	}
	a := newActor(key, scope, d.host, d.policy, d.now)
	d.actors[key] = a
	log.Debug().Str("module", "app.directory").Str("key", key).Msg("actor started")
	return a
}

func (d *Directory) HandleMessage(key string, conn core.Connection, data core.Frame) {
	for !d.actor(key).HandleMessage(conn, data) {
	}
}

func (d *Directory) HandleDisconnect(key string, conn core.Connection) {
	for !d.actor(key).HandleDisconnect(conn) {
	}
	d.releaseIfEmpty(key)
}

// releaseIfEmpty drops an actor whose rooms have all emptied.
func (d *Directory) releaseIfEmpty(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.actors[key]
	if !ok {
		return
	}
	if a.evictIf(a.reg.Empty) {
		delete(d.actors, key)
		log.Debug().Str("module", "app.directory").Str("key", key).Msg("actor released")
	}
}

// Hibernate evicts actors that have been idle for at least idle. Their
// connections stay open in the host; the next event rehydrates them.
func (d *Directory) Hibernate(idle time.Duration) int {
	cutoff := d.now().Add(-idle)
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key, a := range d.actors {
		if a.evictIf(func() bool { return !a.lastActive.After(cutoff) }) {
			delete(d.actors, key)
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "app.directory").Int("actors", n).Msg("hibernated idle actors")
	}
	return n
}

// Run is the hibernation janitor. It returns when ctx is done.
func (d *Directory) Run(ctx context.Context, interval time.Duration) error {
	if d.hibernateAfter <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Hibernate(d.hibernateAfter)
		}
	}
}

// Live reports how many actors are currently in memory.
func (d *Directory) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actors)
}

// List wakes every key the host still has connections for and reports
// their rooms.
func (d *Directory) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, key := range d.host.ActorKeys() {
		out = append(out, d.actor(key).Rooms()...)
		d.releaseIfEmpty(key)
	}
	return out
}

func (d *Directory) Members(rawRoom string) ([]core.MemberSnapshot, bool) {
	room, err := domain.NormalizeRoomID(rawRoom)
	if err != nil {
		return nil, false
	}
	key, err := d.KeyFor(string(room))
	if err != nil {
		return nil, false
	}
	members, ok := d.actor(key).Members(room)
	d.releaseIfEmpty(key)
	return members, ok
}
