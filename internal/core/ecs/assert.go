package ecs

import "github.com/rotisserie/eris"

// assert panics when a structural invariant is broken. The check compiles
// away in builds tagged release.
func assert(cond bool, format string, args ...any) {
	if debugChecks && !cond {
		panic(eris.Errorf("ecs: "+format, args...))
	}
}
