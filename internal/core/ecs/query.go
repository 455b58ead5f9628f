package ecs

import (
	"iter"
	"slices"

	"github.com/kamstrup/intmap"
)

// QueryKey is the requirement a query matches archetypes against: sorted
// component ids and sorted interface ids. Keys compare by value.
type QueryKey struct {
	components archetypeKey
	interfaces archetypeKey
}

func NewQueryKey(components, interfaces []TypeID) QueryKey {
	return QueryKey{components: makeKey(components...), interfaces: makeKey(interfaces...)}
}

// IsSatisfied reports whether a stores every required component and
// exposes every required interface.
func (k QueryKey) IsSatisfied(a *Archetype) bool {
	if !a.key.includes(k.components) {
		return false
	}
	for _, iface := range k.interfaces {
		if !a.Exposes(iface) {
			return false
		}
	}
	return true
}

func (k QueryKey) Equal(o QueryKey) bool {
	return slices.Equal(k.components, o.components) && slices.Equal(k.interfaces, o.interfaces)
}

func (k QueryKey) hash() string {
	return k.components.hash() + "|" + k.interfaces.hash()
}

// QueryArchetypes is the live set of archetypes satisfying one key. It is
// filled by a scan when first built and afterwards only grows, as the
// World announces each new archetype.
type QueryArchetypes struct {
	world      *World
	key        QueryKey
	archetypes []*Archetype
	members    *intmap.Map[uint32, struct{}]
}

// QueryArchetypes returns the shared archetype set for key, building it on
// first request.
func (w *World) QueryArchetypes(key QueryKey) *QueryArchetypes {
	h := key.hash()
	if q, ok := w.queryByKey[h]; ok {
		return q
	}
	q := &QueryArchetypes{
		world:   w,
		key:     key,
		members: intmap.New[uint32, struct{}](8),
	}
	for _, a := range w.archetypes {
		q.onNewArchetype(a)
	}
	w.queries = append(w.queries, q)
	w.queryByKey[h] = q
	return q
}

func (q *QueryArchetypes) onNewArchetype(a *Archetype) {
	if !q.key.IsSatisfied(a) {
		return
	}
	if _, ok := q.members.Get(a.id); ok {
		return
	}
	q.members.Put(a.id, struct{}{})
	q.archetypes = append(q.archetypes, a)
}

func (q *QueryArchetypes) Key() QueryKey { return q.key }

// Archetypes returns the matched archetypes in creation order.
func (q *QueryArchetypes) Archetypes() []*Archetype { return q.archetypes }

func (q *QueryArchetypes) Contains(a *Archetype) bool {
	if a == nil {
		return false
	}
	_, ok := q.members.Get(a.id)
	return ok
}

// Lock closes the world's defer gate for the length of an iteration.
// Every Lock must be paired with Unlock, normally through defer.
func (q *QueryArchetypes) Lock()   { q.world.lock() }
func (q *QueryArchetypes) Unlock() { q.world.unlock() }

// Count returns the number of matching entities.
func (q *QueryArchetypes) Count() int {
	n := 0
	for _, a := range q.archetypes {
		n += a.Len()
	}
	return n
}

// Query iterates entities without typed component access.
type Query struct {
	q *QueryArchetypes
}

// Query builds a query requiring the given components and interfaces.
func (w *World) Query(components, interfaces []TypeID) *Query {
	return &Query{q: w.QueryArchetypes(NewQueryKey(components, interfaces))}
}

func (q *Query) Archetypes() *QueryArchetypes { return q.q }
func (q *Query) Count() int                   { return q.q.Count() }

// Entities yields every matching entity. Structural changes made while
// ranging are deferred until the loop ends.
func (q *Query) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		q.q.Lock()
		defer q.q.Unlock()
		for _, a := range q.q.archetypes {
			for _, id := range a.ids {
				if !yield(id) {
					return
				}
			}
		}
	}
}

type Bundle1[T1 any] struct {
	Entity EntityID
	A      *T1
}

type Bundle2[T1, T2 any] struct {
	Entity EntityID
	A      *T1
	B      *T2
}

type Bundle3[T1, T2, T3 any] struct {
	Entity EntityID
	A      *T1
	B      *T2
	C      *T3
}

// view holds the iteration shapes shared by the typed queries. rows binds
// an archetype's columns once and returns the per-row bundle builder.
type view[B any] struct {
	w    *World
	q    *QueryArchetypes
	rows func(a *Archetype) func(row int) B
}

func (v *view[B]) Archetypes() *QueryArchetypes { return v.q }
func (v *view[B]) Count() int                   { return v.q.Count() }

// EachBundle calls fn for every matching entity.
func (v *view[B]) EachBundle(fn func(B)) {
	v.q.Lock()
	defer v.q.Unlock()
	for _, a := range v.q.archetypes {
		n := a.Len()
		if n == 0 {
			continue
		}
		at := v.rows(a)
		for row := 0; row < n; row++ {
			fn(at(row))
		}
	}
}

// All yields a bundle per matching entity. Breaking out of the loop
// releases the defer gate like a normal exit.
func (v *view[B]) All() iter.Seq[B] {
	return func(yield func(B) bool) {
		v.q.Lock()
		defer v.q.Unlock()
		for _, a := range v.q.archetypes {
			n := a.Len()
			if n == 0 {
				continue
			}
			at := v.rows(a)
			for row := 0; row < n; row++ {
				if !yield(at(row)) {
					return
				}
			}
		}
	}
}

// Entity returns the bundle of id if the entity matches the query.
func (v *view[B]) Entity(id EntityID) (B, bool) {
	var zero B
	if !v.w.pool.Alive(id) {
		return zero, false
	}
	e := v.w.entries[id.Index()]
	if !v.q.Contains(e.arch) {
		return zero, false
	}
	return v.rows(e.arch)(e.row), true
}

// Pairs calls fn once for every unordered pair of distinct matching
// entities.
func (v *view[B]) Pairs(fn func(B, B)) {
	v.q.Lock()
	defer v.q.Unlock()
	archs := v.q.archetypes
	for i, a1 := range archs {
		n1 := a1.Len()
		if n1 == 0 {
			continue
		}
		at1 := v.rows(a1)
		for r1 := 0; r1 < n1; r1++ {
			b1 := at1(r1)
			for r2 := r1 + 1; r2 < n1; r2++ {
				fn(b1, at1(r2))
			}
		}
		for _, a2 := range archs[i+1:] {
			n2 := a2.Len()
			if n2 == 0 {
				continue
			}
			at2 := v.rows(a2)
			for r1 := 0; r1 < n1; r1++ {
				b1 := at1(r1)
				for r2 := 0; r2 < n2; r2++ {
					fn(b1, at2(r2))
				}
			}
		}
	}
}

// Hierarchical walks the relationship forest from the top level, calling
// fn with each matching entity and the bundle of its matching parent (nil
// for top-level entities). Subtrees under a non-matching entity are
// skipped.
func (v *view[B]) Hierarchical(fn func(parent *B, child B)) {
	v.q.Lock()
	defer v.q.Unlock()
	v.walk(NullEntity, nil, fn)
}

func (v *view[B]) walk(parent EntityID, pb *B, fn func(*B, B)) {
	for child := range v.w.rel.Children(parent) {
		cb, ok := v.Entity(child)
		if !ok {
			continue
		}
		fn(pb, cb)
		v.walk(child, &cb, fn)
	}
}

// Query1 iterates entities holding a T1.
type Query1[T1 any] struct {
	view[Bundle1[T1]]
	a TypeID
}

func NewQuery1[T1 any](w *World) *Query1[T1] {
	q := &Query1[T1]{a: TypeIDOf[T1]()}
	q.w = w
	q.q = w.QueryArchetypes(NewQueryKey([]TypeID{q.a}, nil))
	q.rows = func(a *Archetype) func(int) Bundle1[T1] {
		ids, ca := a.ids, a.column(q.a)
		return func(row int) Bundle1[T1] {
			return Bundle1[T1]{Entity: ids[row], A: (*T1)(ca.at(row))}
		}
	}
	return q
}

func (q *Query1[T1]) Each(fn func(EntityID, *T1)) {
	q.q.Lock()
	defer q.q.Unlock()
	for _, a := range q.q.archetypes {
		n := a.Len()
		if n == 0 {
			continue
		}
		ids, ca := a.ids, a.column(q.a)
		for row := 0; row < n; row++ {
			fn(ids[row], (*T1)(ca.at(row)))
		}
	}
}

// Query2 iterates entities holding a T1 and a T2.
type Query2[T1, T2 any] struct {
	view[Bundle2[T1, T2]]
	a, b TypeID
}

func NewQuery2[T1, T2 any](w *World) *Query2[T1, T2] {
	q := &Query2[T1, T2]{a: TypeIDOf[T1](), b: TypeIDOf[T2]()}
	q.w = w
	q.q = w.QueryArchetypes(NewQueryKey([]TypeID{q.a, q.b}, nil))
	q.rows = func(a *Archetype) func(int) Bundle2[T1, T2] {
		ids, ca, cb := a.ids, a.column(q.a), a.column(q.b)
		return func(row int) Bundle2[T1, T2] {
			return Bundle2[T1, T2]{Entity: ids[row], A: (*T1)(ca.at(row)), B: (*T2)(cb.at(row))}
		}
	}
	return q
}

func (q *Query2[T1, T2]) Each(fn func(EntityID, *T1, *T2)) {
	q.q.Lock()
	defer q.q.Unlock()
	for _, a := range q.q.archetypes {
		n := a.Len()
		if n == 0 {
			continue
		}
		ids, ca, cb := a.ids, a.column(q.a), a.column(q.b)
		for row := 0; row < n; row++ {
			fn(ids[row], (*T1)(ca.at(row)), (*T2)(cb.at(row)))
		}
	}
}

// Query3 iterates entities holding a T1, a T2 and a T3.
type Query3[T1, T2, T3 any] struct {
	view[Bundle3[T1, T2, T3]]
	a, b, c TypeID
}

func NewQuery3[T1, T2, T3 any](w *World) *Query3[T1, T2, T3] {
	q := &Query3[T1, T2, T3]{a: TypeIDOf[T1](), b: TypeIDOf[T2](), c: TypeIDOf[T3]()}
	q.w = w
	q.q = w.QueryArchetypes(NewQueryKey([]TypeID{q.a, q.b, q.c}, nil))
	q.rows = func(a *Archetype) func(int) Bundle3[T1, T2, T3] {
		ids, ca, cb, cc := a.ids, a.column(q.a), a.column(q.b), a.column(q.c)
		return func(row int) Bundle3[T1, T2, T3] {
			return Bundle3[T1, T2, T3]{
				Entity: ids[row],
				A:      (*T1)(ca.at(row)),
				B:      (*T2)(cb.at(row)),
				C:      (*T3)(cc.at(row)),
			}
		}
	}
	return q
}

func (q *Query3[T1, T2, T3]) Each(fn func(EntityID, *T1, *T2, *T3)) {
	q.q.Lock()
	defer q.q.Unlock()
	for _, a := range q.q.archetypes {
		n := a.Len()
		if n == 0 {
			continue
		}
		ids, ca, cb, cc := a.ids, a.column(q.a), a.column(q.b), a.column(q.c)
		for row := 0; row < n; row++ {
			fn(ids[row], (*T1)(ca.at(row)), (*T2)(cb.at(row)), (*T3)(cc.at(row)))
		}
	}
}

// QueryInterface iterates every component exposing interface I. An
// archetype with several such components contributes the first in key
// order.
type QueryInterface[I any] struct {
	q     *QueryArchetypes
	iface TypeID
}

func NewQueryInterface[I any](w *World) *QueryInterface[I] {
	id := TypeIDOf[I]()
	return &QueryInterface[I]{
		q:     w.QueryArchetypes(NewQueryKey(nil, []TypeID{id})),
		iface: id,
	}
}

func (q *QueryInterface[I]) Count() int { return q.q.Count() }

func (q *QueryInterface[I]) Each(fn func(EntityID, I)) {
	q.q.Lock()
	defer q.q.Unlock()
	for _, a := range q.q.archetypes {
		n := a.Len()
		if n == 0 {
			continue
		}
		c := a.vector(q.iface)
		for row := 0; row < n; row++ {
			fn(a.ids[row], c.ops.box(c.at(row)).(I))
		}
	}
}
