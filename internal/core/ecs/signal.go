package ecs

import (
	"reflect"
	"unsafe"

	"github.com/stratum-ecs/stratum/internal/core/event"
)

// OnInsert is raised on a component right after it is stored, including
// when it overwrites a previous value.
type OnInsert struct{}

// OnRemove is raised on a component right before it is erased, overwritten
// or destroyed with its entity.
type OnRemove struct{}

// OnAddChild is raised on a parent when Child is attached to it.
type OnAddChild struct{ Child EntityID }

// OnRemoveChild is raised on a parent when Child is removed or reparented
// away, before Child's subtree is touched.
type OnRemoveChild struct{ Child EntityID }

var (
	onInsertType      = reflect.TypeFor[OnInsert]()
	onRemoveType      = reflect.TypeFor[OnRemove]()
	onAddChildType    = reflect.TypeFor[OnAddChild]()
	onRemoveChildType = reflect.TypeFor[OnRemoveChild]()
)

// Subscribe registers fn for signal S raised on entities holding a C.
// Handlers run synchronously in registration order. Structural changes made
// by a handler are deferred until the raising operation completes.
func Subscribe[S, C any](w *World, fn func(S, EntityID, *C)) {
	event.On[S, C, EntityID](w.signals, fn)
}

// SubscribeEntity registers fn for signal S raised on any entity.
func SubscribeEntity[S any](w *World, fn func(S, EntityID)) {
	event.OnEntity[S, EntityID](w.signals, fn)
}

// Raise delivers sig to the entity-level handlers of S, then to the
// handlers of S for each component id holds, in archetype column order.
func Raise[S any](w *World, id EntityID, sig S) {
	if !w.pool.Alive(id) {
		w.warnStale("raise", id)
		return
	}
	w.lock()
	defer w.unlock()
	w.raise(reflect.TypeFor[S](), sig, id)
}

// RaiseComponent delivers sig to the handlers of S registered for C only.
func RaiseComponent[S, C any](w *World, id EntityID, sig S, comp *C) {
	if !w.pool.Alive(id) {
		w.warnStale("raise", id)
		return
	}
	w.lock()
	defer w.unlock()
	w.signals.Dispatch(event.KeyFor[S, C](), sig, id, unsafe.Pointer(comp))
}

func (w *World) raise(st reflect.Type, sig any, id EntityID) {
	if !w.signals.Listens(st) {
		return
	}
	w.signals.Dispatch(event.Key{Signal: st}, sig, id, nil)
	e := w.entries[id.Index()]
	if e.arch == nil {
		return
	}
	for _, c := range e.arch.columns {
		w.signals.Dispatch(event.Key{Signal: st, Component: c.ops.typ}, sig, id, c.at(e.row))
	}
}

func (w *World) raiseComponent(st reflect.Type, sig any, id EntityID, c *componentVector, row int) {
	k := event.Key{Signal: st, Component: c.ops.typ}
	if !w.signals.Has(k) {
		return
	}
	w.signals.Dispatch(k, sig, id, c.at(row))
}

// Post queues sig for id until the next FlushSignals.
func Post[S any](w *World, id EntityID, sig S) {
	w.signals.Post(reflect.TypeFor[S](), sig, id)
}

// FlushSignals raises every signal posted before the call, in post order.
// Signals whose entity is gone by then are dropped. Signals posted by the
// handlers wait for the next flush.
func (w *World) FlushSignals() int {
	w.signals.SwapBuffers()
	w.lock()
	defer w.unlock()
	return w.signals.DispatchQueued(func(t reflect.Type, sig any, id EntityID) {
		if w.pool.Alive(id) {
			w.raise(t, sig, id)
		}
	})
}

// PendingSignals returns the number of posted signals not yet flushed.
func (w *World) PendingSignals() int { return w.signals.Pending() }
