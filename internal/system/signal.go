package system

import (
	"time"

	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
)

// SignalSystem delivers the signals posted during the previous tick.
// Phase 1 (PreUpdate).
type SignalSystem struct {
	world *ecs.World
}

func NewSignalSystem(world *ecs.World) *SignalSystem {
	return &SignalSystem{world: world}
}

func (s *SignalSystem) Name() string         { return "signals" }
func (s *SignalSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *SignalSystem) Update(_ time.Duration) {
	s.world.FlushSignals()
}
