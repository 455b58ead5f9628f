package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	coresys "github.com/stratum-ecs/stratum/internal/core/system"
)

// DescribeSystem logs how many entities carry a description, and lists
// them at debug level.
// Phase 4 (Output).
type DescribeSystem struct {
	world *ecs.World
	log   *zap.Logger
	query *ecs.QueryInterface[component.Describer]
	every int
	ticks int
}

func NewDescribeSystem(world *ecs.World, log *zap.Logger) *DescribeSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &DescribeSystem{
		world: world,
		log:   log,
		query: ecs.NewQueryInterface[component.Describer](world),
		every: 20,
	}
}

func (s *DescribeSystem) Name() string         { return "describe" }
func (s *DescribeSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *DescribeSystem) Update(_ time.Duration) {
	s.ticks++
	if s.ticks%s.every != 0 {
		return
	}
	s.log.Info("world summary",
		zap.Int("entities", s.world.Len()),
		zap.Int("described", s.query.Count()),
		zap.Int("archetypes", len(s.world.Archetypes())))
	if ce := s.log.Check(zap.DebugLevel, "described entities"); ce != nil {
		names := make([]string, 0, s.query.Count())
		for _, d := range s.Describe() {
			names = append(names, d)
		}
		ce.Write(zap.Strings("names", names))
	}
}

// Describe returns every described entity's description.
func (s *DescribeSystem) Describe() map[ecs.EntityID]string {
	out := make(map[ecs.EntityID]string, s.query.Count())
	s.query.Each(func(id ecs.EntityID, d component.Describer) {
		out[id] = d.Describe()
	})
	return out
}
