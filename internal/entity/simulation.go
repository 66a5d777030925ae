package entity

import (
	"context"
	"sync/atomic"

	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
	"go.uber.org/zap"
)

const completionQueueSize = 64

// Thinker is the optional per-tick behavior of an entity.
type Thinker interface {
	Think()
}

// Remover is notified right before its entity leaves the simulation.
type Remover interface {
	OnRemove()
}

// Simulation ties the entity registry to the physics world and the render
// scene it mirrors. Everything except asset loading runs on the game loop
// goroutine; loads finish on their own goroutine and hand a completion back
// through a channel drained by ProcessCompletions or Settle.
type Simulation struct {
	registry *Registry
	world    *physics.World
	scene    *render.Scene
	assets   *asset.Library
	log      *zap.Logger

	completions chan func()
	inflight    atomic.Int64

	removeQueue []*Entity
	nextID      uint64
}

func NewSimulation(world *physics.World, scene *render.Scene, assets *asset.Library, log *zap.Logger) *Simulation {
	return &Simulation{
		registry:    NewRegistry(),
		world:       world,
		scene:       scene,
		assets:      assets,
		log:         log,
		completions: make(chan func(), completionQueueSize),
		removeQueue: make([]*Entity, 0, 16),
	}
}

func (s *Simulation) Registry() *Registry    { return s.registry }
func (s *Simulation) World() *physics.World  { return s.world }
func (s *Simulation) Scene() *render.Scene   { return s.scene }
func (s *Simulation) Assets() *asset.Library { return s.assets }
func (s *Simulation) PendingLoads() int      { return int(s.inflight.Load()) }

// NewEntity creates an entity and appends it to the registry.
func (s *Simulation) NewEntity() *Entity {
	s.nextID++
	e := newEntity(s, s.nextID)
	s.registry.add(e)
	return e
}

// Think runs one synchronization pass. Every entity holding both a mesh and
// a body first gets the body transform copied onto its render objects; only
// then are Thinker behaviors invoked, so they observe synchronized
// transforms. Entities removed by an earlier Think in the same pass are
// skipped.
func (s *Simulation) Think() {
	for _, e := range s.registry.entities {
		if e.mesh != nil && e.body != nil {
			e.syncFromBody()
		}
	}

	for _, e := range s.registry.Entities() {
		if !e.registered {
			continue
		}
		if t, ok := e.behavior.(Thinker); ok {
			t.Think()
		}
	}
}

// MarkForRemoval queues e for FlushRemovals at the end of the tick.
func (s *Simulation) MarkForRemoval(e *Entity) {
	for _, q := range s.removeQueue {
		if q == e {
			return
		}
	}
	s.removeQueue = append(s.removeQueue, e)
}

// FlushRemovals removes every queued entity and returns how many left.
func (s *Simulation) FlushRemovals() int {
	n := 0
	for _, e := range s.removeQueue {
		if err := e.Remove(); err != nil {
			s.log.Debug("deferred removal skipped", zap.Uint64("entity", e.id), zap.Error(err))
			continue
		}
		n++
	}
	s.removeQueue = s.removeQueue[:0]
	return n
}

// ProcessCompletions applies every finished asset load without blocking.
func (s *Simulation) ProcessCompletions() int {
	n := 0
	for {
		select {
		case fn := <-s.completions:
			s.apply(fn)
			n++
		default:
			return n
		}
	}
}

// Settle blocks until every in-flight load has been applied or ctx ends.
func (s *Simulation) Settle(ctx context.Context) error {
	for s.inflight.Load() > 0 {
		select {
		case fn := <-s.completions:
			s.apply(fn)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Simulation) apply(fn func()) {
	defer s.inflight.Add(-1)
	fn()
}

// post hands a completion to the game loop. If ctx ends first the
// completion is dropped.
func (s *Simulation) post(ctx context.Context, fn func()) {
	select {
	case s.completions <- fn:
	case <-ctx.Done():
		s.inflight.Add(-1)
		s.log.Debug("asset completion dropped", zap.Error(ctx.Err()))
	}
}
