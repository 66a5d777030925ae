package system

import (
	"time"

	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/handler"
	"github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/world"
)

// OutputSystem relays the tick's motion samples to displays in arrival
// order, sends periodic snapshots and flushes every session. Phase 4 (Output).
type OutputSystem struct {
	deps          *handler.Deps
	clock         *Clock
	snapshotEvery int
}

func NewOutputSystem(deps *handler.Deps, clock *Clock, snapshotEvery int) *OutputSystem {
	if snapshotEvery < 1 {
		snapshotEvery = 1
	}
	return &OutputSystem{deps: deps, clock: clock, snapshotEvery: snapshotEvery}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.deps.World.Each(func(p *world.Plane) {
		for _, m := range p.Relay {
			handler.BroadcastUpdatePlane(s.deps, p.ID, m)
		}
		p.Relay = p.Relay[:0]
	})

	s.clock.Advance()
	if s.clock.Now()%uint64(s.snapshotEvery) == 0 {
		handler.BroadcastState(s.deps, s.clock.Now())
	}

	s.deps.Sessions.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
