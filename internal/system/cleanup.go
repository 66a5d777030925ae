package system

import (
	"time"

	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/entity"
)

// CleanupSystem flushes the deferred entity removal queue at tick end.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	sim *entity.Simulation
}

func NewCleanupSystem(sim *entity.Simulation) *CleanupSystem {
	return &CleanupSystem{sim: sim}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.sim.FlushRemovals()
}
