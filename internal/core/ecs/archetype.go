package ecs

import (
	"slices"
	"unsafe"

	"github.com/kamstrup/intmap"
)

// archetypeManager is the owner an archetype reports to. The World
// implements it; archetypes never hold entries or other archetypes directly.
type archetypeManager interface {
	findArchetype(key archetypeKey) *Archetype
	updateEntry(id EntityID, a *Archetype, row int)
}

// Archetype is a table holding every entity with exactly one set of
// component types. Columns are parallel to the sorted key and to ids.
type Archetype struct {
	id      uint32
	mgr     archetypeManager
	key     archetypeKey
	columns []*componentVector
	ifaces  map[TypeID]int // interface id -> column index
	ids     []EntityID

	// transition edges, keyed by the component id added or removed
	addEdges    *intmap.Map[uint32, *Archetype]
	removeEdges *intmap.Map[uint32, *Archetype]
}

func newArchetype(id uint32, mgr archetypeManager, key archetypeKey, infos []*componentInfo, capacity int) *Archetype {
	a := &Archetype{
		id:          id,
		mgr:         mgr,
		key:         key,
		columns:     make([]*componentVector, len(key)),
		ifaces:      make(map[TypeID]int),
		ids:         make([]EntityID, 0, capacity),
		addEdges:    intmap.New[uint32, *Archetype](4),
		removeEdges: intmap.New[uint32, *Archetype](4),
	}
	for i, info := range infos {
		a.columns[i] = newComponentVector(info.id, info.ops, capacity)
		for _, iface := range info.interfaces {
			// first column in key order wins when two types expose the same interface
			if _, ok := a.ifaces[iface]; !ok {
				a.ifaces[iface] = i
			}
		}
	}
	return a
}

// ID is stable for the life of the World.
func (a *Archetype) ID() uint32 { return a.id }

func (a *Archetype) Len() int { return len(a.ids) }

// Types returns the sorted component ids of the archetype.
func (a *Archetype) Types() []TypeID { return slices.Clone(a.key) }

// Entities returns the entity column. The slice is owned by the archetype
// and valid only until the next structural change.
func (a *Archetype) Entities() []EntityID { return a.ids }

func (a *Archetype) Has(id TypeID) bool { return a.key.has(id) }

// Exposes reports whether some column of the archetype provides iface.
func (a *Archetype) Exposes(iface TypeID) bool {
	_, ok := a.ifaces[iface]
	return ok
}

func (a *Archetype) column(id TypeID) *componentVector {
	i := a.key.index(id)
	if i < 0 {
		return nil
	}
	return a.columns[i]
}

// vector finds the column storing component id, or the column exposing
// interface id.
func (a *Archetype) vector(id TypeID) *componentVector {
	if c := a.column(id); c != nil {
		return c
	}
	if i, ok := a.ifaces[id]; ok {
		return a.columns[i]
	}
	return nil
}

func (a *Archetype) get(id TypeID, row int) unsafe.Pointer {
	c := a.column(id)
	if c == nil {
		return nil
	}
	return c.at(row)
}

// addEntity appends id to the entity column and records its row. The
// caller fills the component columns.
func (a *Archetype) addEntity(id EntityID) int {
	row := len(a.ids)
	a.ids = append(a.ids, id)
	a.mgr.updateEntry(id, a, row)
	return row
}

// remove destroys every component of row and swap-removes it.
func (a *Archetype) remove(row int) {
	for _, c := range a.columns {
		c.remove(row, true)
	}
	a.popRow(row)
}

// removeMoved drops a row whose components were moved to dest. Components
// dest does not store are destroyed; the moved ones are only cleared.
func (a *Archetype) removeMoved(row int, dest *Archetype) {
	for i, c := range a.columns {
		c.remove(row, !dest.key.has(a.key[i]))
	}
	a.popRow(row)
}

// popRow relocates the last entity into row. Only the relocated entity's
// entry changes.
func (a *Archetype) popRow(row int) {
	last := len(a.ids) - 1
	if row != last {
		a.ids[row] = a.ids[last]
		a.mgr.updateEntry(a.ids[row], a, row)
	}
	a.ids[last] = NullEntity
	a.ids = a.ids[:last]
	a.checkInvariant()
}

// moveFrom appends src's entity at row and moves every shared component.
// Columns present only here are left one short for the caller to fill.
func (a *Archetype) moveFrom(src *Archetype, row int) int {
	newRow := a.addEntity(src.ids[row])
	i, j := 0, 0
	for i < len(a.key) && j < len(src.key) {
		switch {
		case a.key[i] < src.key[j]:
			i++
		case a.key[i] > src.key[j]:
			j++
		default:
			a.columns[i].moveFrom(src.columns[j], row)
			i++
			j++
		}
	}
	return newRow
}

func (a *Archetype) with(id TypeID) *Archetype {
	if next, ok := a.addEdges.Get(uint32(id)); ok {
		return next
	}
	next := a.mgr.findArchetype(a.key.with(id))
	a.addEdges.Put(uint32(id), next)
	next.removeEdges.Put(uint32(id), a)
	return next
}

func (a *Archetype) without(id TypeID) *Archetype {
	if prev, ok := a.removeEdges.Get(uint32(id)); ok {
		return prev
	}
	prev := a.mgr.findArchetype(a.key.without(id))
	a.removeEdges.Put(uint32(id), prev)
	prev.addEdges.Put(uint32(id), a)
	return prev
}

func (a *Archetype) checkInvariant() {
	if !debugChecks {
		return
	}
	for _, c := range a.columns {
		assert(c.len == len(a.ids), "archetype %d: column %d has %d rows, entity column has %d",
			a.id, c.typ, c.len, len(a.ids))
	}
}

func (a *Archetype) clear() {
	for _, c := range a.columns {
		c.clear()
	}
	clear(a.ids)
	a.ids = a.ids[:0]
}
