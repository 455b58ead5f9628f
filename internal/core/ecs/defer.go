package ecs

import "unsafe"

type commandKind uint8

const (
	cmdCreate commandKind = iota + 1
	cmdRemove
	cmdInsert
	cmdErase
	cmdApply
)

// command is one queued structural change. Only the fields its kind needs
// are set.
type command struct {
	kind   commandKind
	id     EntityID
	parent EntityID       // cmdCreate
	info   *componentInfo // cmdInsert
	value  unsafe.Pointer // cmdInsert, owned by the command until applied
	typ    TypeID         // cmdErase
	fn     func(EntityID) // cmdApply
}

// Defer closes the gate: until the matching DeferEnd, structural changes
// are queued instead of applied. Calls nest.
func (w *World) Defer() {
	w.deferCount++
}

// DeferEnd opens one level of the gate. Leaving the outermost level drains
// the queue in order. Commands queued while draining, e.g. by signal
// handlers, run in the same drain.
func (w *World) DeferEnd() {
	assert(w.deferCount > 0, "DeferEnd without matching Defer")
	if w.deferCount > 1 {
		w.deferCount--
		return
	}
	// the gate stays closed while draining so nested work lands in this queue
	for i := 0; i < len(w.commands); i++ {
		cmd := w.commands[i]
		w.commands[i] = command{}
		w.apply(cmd)
	}
	w.commands = w.commands[:0]
	w.deferCount = 0
}

// Deferred reports whether structural changes are currently queued.
func (w *World) Deferred() bool { return w.deferCount > 0 }

// Pending returns the number of queued commands.
func (w *World) Pending() int { return len(w.commands) }

func (w *World) lock()   { w.Defer() }
func (w *World) unlock() { w.DeferEnd() }

func (w *World) apply(cmd command) {
	alive := w.pool.Alive(cmd.id)
	switch cmd.kind {
	case cmdCreate:
		if alive {
			w.createNow(cmd.id, cmd.parent)
		}
	case cmdRemove:
		if alive {
			w.removeNow(cmd.id)
		}
	case cmdInsert:
		if !alive {
			cmd.info.ops.destroy(cmd.value)
			return
		}
		w.insertNow(cmd.id, cmd.info, cmd.value)
	case cmdErase:
		if alive {
			w.eraseNow(cmd.id, cmd.typ)
		}
	case cmdApply:
		if alive {
			cmd.fn(cmd.id)
		}
	}
}
