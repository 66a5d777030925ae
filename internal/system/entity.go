package system

import (
	"time"

	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/entity"
)

// EntitySystem copies body transforms onto meshes and runs entity behaviors.
// Phase 3 (PostUpdate).
type EntitySystem struct {
	sim *entity.Simulation
}

func NewEntitySystem(sim *entity.Simulation) *EntitySystem {
	return &EntitySystem{sim: sim}
}

func (s *EntitySystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *EntitySystem) Update(_ time.Duration) {
	s.sim.Think()
}
