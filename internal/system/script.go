package system

import (
	"time"

	coresys "github.com/stratum-ecs/stratum/internal/core/system"
	"github.com/stratum-ecs/stratum/internal/scripting"
)

// ScriptSystem runs the Lua update hook once per tick.
// Phase 2 (Update).
type ScriptSystem struct {
	lua *scripting.Engine
}

func NewScriptSystem(lua *scripting.Engine) *ScriptSystem {
	return &ScriptSystem{lua: lua}
}

func (s *ScriptSystem) Name() string         { return "scripts" }
func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ScriptSystem) Update(dt time.Duration) {
	s.lua.Update(dt)
}
