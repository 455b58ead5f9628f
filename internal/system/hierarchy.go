package system

import (
	"time"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
)

// HierarchySystem places children with an Offset relative to their
// parent's Position, top down, so grandchildren see updated parents.
// Phase 3 (PostUpdate).
type HierarchySystem struct {
	world *ecs.World
	query *ecs.Query1[component.Position]
}

func NewHierarchySystem(world *ecs.World) *HierarchySystem {
	return &HierarchySystem{world: world, query: ecs.NewQuery1[component.Position](world)}
}

func (s *HierarchySystem) Name() string         { return "hierarchy" }
func (s *HierarchySystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *HierarchySystem) Update(_ time.Duration) {
	s.query.Hierarchical(func(parent *ecs.Bundle1[component.Position], child ecs.Bundle1[component.Position]) {
		if parent == nil {
			return
		}
		off, ok := ecs.Get[component.Offset](s.world, child.Entity)
		if !ok {
			return
		}
		child.A.X = parent.A.X + off.X
		child.A.Y = parent.A.Y + off.Y
	})
}
