package system

import (
	"time"

	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/entity"
	"go.uber.org/zap"
)

// AssetSystem applies model loads that finished since the last tick, so
// their done callbacks run on the game loop. Phase 1 (PreUpdate).
type AssetSystem struct {
	sim *entity.Simulation
	log *zap.Logger
}

func NewAssetSystem(sim *entity.Simulation, log *zap.Logger) *AssetSystem {
	return &AssetSystem{sim: sim, log: log}
}

func (s *AssetSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *AssetSystem) Update(_ time.Duration) {
	if n := s.sim.ProcessCompletions(); n > 0 {
		s.log.Debug("asset loads applied", zap.Int("count", n), zap.Int("pending", s.sim.PendingLoads()))
	}
}
