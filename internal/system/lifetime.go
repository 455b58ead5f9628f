package system

import (
	"time"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
)

// LifetimeSystem counts Lifetime down and marks expired entities for
// CleanupSystem.
// Phase 2 (Update).
type LifetimeSystem struct {
	world *ecs.World
	query *ecs.Query1[component.Lifetime]
}

func NewLifetimeSystem(world *ecs.World) *LifetimeSystem {
	return &LifetimeSystem{world: world, query: ecs.NewQuery1[component.Lifetime](world)}
}

func (s *LifetimeSystem) Name() string         { return "lifetime" }
func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *LifetimeSystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	s.query.Each(func(id ecs.EntityID, l *component.Lifetime) {
		if l.Seconds <= 0 {
			return
		}
		l.Seconds -= sec
		if l.Seconds <= 0 {
			s.world.MarkForDestruction(id)
		}
	})
}
