package component

import (
	"fmt"

	"github.com/stratum-ecs/stratum/internal/core/ecs"
)

// Position is a 2D world-space location.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Velocity is applied to Position by MovementSystem, in units per second.
type Velocity struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Offset places an entity relative to its parent's Position.
type Offset struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Lifetime counts down; the entity is marked for destruction at zero.
type Lifetime struct {
	Seconds float64 `yaml:"seconds"`
}

type Name struct {
	Value string `yaml:"value"`
}

func (n *Name) Describe() string { return n.Value }

type Tag struct {
	Label string `yaml:"label"`
}

func (t *Tag) Describe() string { return "#" + t.Label }

// Describer is exposed by components that can name their entity in logs.
type Describer interface {
	Describe() string
}

// RegisterAll registers the built-in components under the names used by
// prefab files and scripts. It must run before any entity gets components.
func RegisterAll(w *ecs.World) error {
	regs := []func(*ecs.World) error{
		func(w *ecs.World) error { return ecs.Register[Position](w, "position") },
		func(w *ecs.World) error { return ecs.Register[Velocity](w, "velocity") },
		func(w *ecs.World) error { return ecs.Register[Offset](w, "offset") },
		func(w *ecs.World) error { return ecs.Register[Lifetime](w, "lifetime") },
		func(w *ecs.World) error { return ecs.Register[Name](w, "name") },
		func(w *ecs.World) error { return ecs.Register[Tag](w, "tag") },
		ecs.DeclareInterface[Describer, Name],
		ecs.DeclareInterface[Describer, Tag],
	}
	for _, reg := range regs {
		if err := reg(w); err != nil {
			return fmt.Errorf("register components: %w", err)
		}
	}
	return nil
}
