package system

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stratum-ecs/stratum/internal/core/ecs"
)

// Runner executes systems in phase order each tick. Each Update runs in its
// own defer scope of the world, so structural changes a system makes are
// applied when it returns and the next system sees them.
type Runner struct {
	world   *ecs.World
	log     *zap.Logger
	systems []System
	sorted  bool
	ticks   uint64
}

func NewRunner(world *ecs.World, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		world:   world,
		log:     log,
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
	r.log.Debug("system registered", zap.Stringer("phase", s.Phase()), zap.String("system", systemName(s)))
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		r.run(s, dt)
	}
	r.ticks++
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.run(s, dt)
		}
	}
}

// Ticks returns the number of completed Tick calls.
func (r *Runner) Ticks() uint64 { return r.ticks }

func (r *Runner) run(s System, dt time.Duration) {
	r.world.Defer()
	defer r.world.DeferEnd()
	s.Update(dt)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}

type named interface {
	Name() string
}

func systemName(s System) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "anonymous"
}
