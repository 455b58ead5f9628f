package system

import (
	"time"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
)

// MovementSystem integrates Velocity into Position.
// Phase 2 (Update).
type MovementSystem struct {
	query *ecs.Query2[component.Position, component.Velocity]
}

func NewMovementSystem(world *ecs.World) *MovementSystem {
	return &MovementSystem{query: ecs.NewQuery2[component.Position, component.Velocity](world)}
}

func (s *MovementSystem) Name() string         { return "movement" }
func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	s.query.Each(func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
		p.X += v.X * sec
		p.Y += v.Y * sec
	})
}
