package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: feed external input into the world
	PhasePreUpdate               // 1: deliver signals posted last tick
	PhaseUpdate                  // 2: game logic and scripts
	PhasePostUpdate              // 3: hierarchy propagation
	PhaseOutput                  // 4: hand state to outside collaborators
	PhaseCleanup                 // 5: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
