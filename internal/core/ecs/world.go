package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"unsafe"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stratum-ecs/stratum/internal/core/event"
)

// entityEntry locates a live entity. arch is nil while the entity's
// creation is still queued behind the defer gate.
type entityEntry struct {
	arch *Archetype
	row  int
}

type options struct {
	capacity       int
	columnCapacity int
	entityLimit    int
}

// Option configures a World.
type Option func(*options)

// WithCapacity preallocates bookkeeping for n entities.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithColumnCapacity sets the initial row capacity of new archetypes.
func WithColumnCapacity(n int) Option {
	return func(o *options) { o.columnCapacity = n }
}

// WithEntityLimit caps the entity index space below its natural maximum.
func WithEntityLimit(n int) Option {
	return func(o *options) { o.entityLimit = n }
}

// World is the top-level ECS container. It owns the entity pool, every
// archetype, the entity index, the relationship forest, the signal
// dispatcher and the deferred command queue.
type World struct {
	log      *zap.Logger
	pool     *EntityPool
	entries  []entityEntry // indexed by entity index
	rel      *Relationships
	registry *Registry

	archetypes     []*Archetype
	byKey          map[string]*Archetype
	empty          *Archetype
	columnCapacity int

	queries    []*QueryArchetypes
	queryByKey map[string]*QueryArchetypes

	signals *event.Dispatcher[EntityID]

	commands     []command
	deferCount   uint32
	destroyQueue []EntityID
}

func NewWorld(log *zap.Logger, opts ...Option) *World {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{capacity: 1024, columnCapacity: 16, entityLimit: maxEntities}
	for _, opt := range opts {
		opt(&o)
	}
	w := &World{
		log:            log.With(zap.String("world", uuid.NewString())),
		pool:           NewEntityPool(o.capacity),
		entries:        make([]entityEntry, 1, o.capacity+1),
		rel:            NewRelationships(o.capacity),
		registry:       NewRegistry(),
		byKey:          make(map[string]*Archetype, 64),
		columnCapacity: o.columnCapacity,
		queryByKey:     make(map[string]*QueryArchetypes, 32),
		signals:        event.NewDispatcher[EntityID](),
		destroyQueue:   make([]EntityID, 0, 64),
	}
	if o.entityLimit > 0 && o.entityLimit < maxEntities {
		w.pool.limit = o.entityLimit
	}
	w.empty = w.findArchetype(nil)
	return w
}

func (w *World) Registry() *Registry { return w.registry }
func (w *World) Logger() *zap.Logger { return w.log }

func zapEntity(id EntityID) zap.Field    { return zap.Stringer("entity", id) }
func zapComponent(name string) zap.Field { return zap.String("component", name) }
func zapTypeID(id TypeID) zap.Field      { return zap.Uint32("type_id", uint32(id)) }

func (w *World) warnStale(op string, id EntityID) {
	w.log.Warn("stale entity handle", zap.String("op", op), zapEntity(id))
}

// componentInfo returns the registration for id, registering the type
// under its Go name when it was never registered explicitly.
func (w *World) componentInfo(id TypeID, ops func() *componentOps) *componentInfo {
	if info := w.registry.lookup(id); info != nil {
		return info
	}
	o := ops()
	name := o.typ.String()
	for n := 2; ; n++ {
		if _, taken := w.registry.byName[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s#%d", o.typ, n)
	}
	info, err := w.registry.register(name, o)
	if err != nil {
		panic(err)
	}
	w.log.Debug("component auto-registered", zapComponent(name), zapTypeID(info.id))
	return info
}

// findArchetype returns the canonical archetype for key, creating it and
// announcing it to every live query on first use.
func (w *World) findArchetype(key archetypeKey) *Archetype {
	h := key.hash()
	if a, ok := w.byKey[h]; ok {
		return a
	}
	infos := make([]*componentInfo, len(key))
	for i, id := range key {
		infos[i] = w.registry.lookup(id)
		assert(infos[i] != nil, "archetype over unregistered type %d", id)
	}
	a := newArchetype(uint32(len(w.archetypes)), w, key, infos, w.columnCapacity)
	w.archetypes = append(w.archetypes, a)
	w.byKey[h] = a
	for _, q := range w.queries {
		q.onNewArchetype(a)
	}
	w.log.Debug("archetype created",
		zap.Uint32("archetype", a.id),
		zap.Strings("components", w.keyNames(key)))
	return a
}

func (w *World) keyNames(key archetypeKey) []string {
	names := make([]string, len(key))
	for i, id := range key {
		names[i] = w.registry.Name(id)
	}
	return names
}

func (w *World) updateEntry(id EntityID, a *Archetype, row int) {
	w.entries[id.Index()] = entityEntry{arch: a, row: row}
}

// Archetype returns the canonical archetype storing exactly types.
func (w *World) Archetype(types ...TypeID) (*Archetype, error) {
	for _, id := range types {
		if w.registry.lookup(id) == nil {
			return nil, eris.Wrapf(ErrUnknownComponent, "archetype type id %d", id)
		}
	}
	return w.findArchetype(makeKey(types...)), nil
}

// Archetypes returns every archetype in creation order.
func (w *World) Archetypes() []*Archetype { return w.archetypes }

// ArchetypeOf returns the archetype currently storing id.
func (w *World) ArchetypeOf(id EntityID) *Archetype {
	if !w.pool.Alive(id) {
		return nil
	}
	return w.entries[id.Index()].arch
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// Entities yields every live entity in index order.
func (w *World) Entities() iter.Seq[EntityID] { return w.pool.All() }

// Create allocates an entity under parent, or at the top level when parent
// is NullEntity. The id is valid immediately; while the world is deferred
// the entity joins storage when the queue drains. A stale parent is logged
// and ignored.
func (w *World) Create(parent EntityID) EntityID {
	if !parent.IsZero() && !w.pool.Alive(parent) {
		w.warnStale("create parent", parent)
		parent = NullEntity
	}
	id := w.pool.Create()
	if id.IsZero() {
		w.log.Error("entity index space exhausted", zap.Int("limit", w.pool.limit))
		return NullEntity
	}
	for len(w.entries) <= int(id.Index()) {
		w.entries = append(w.entries, entityEntry{})
	}
	if w.deferCount > 0 {
		w.commands = append(w.commands, command{kind: cmdCreate, id: id, parent: parent})
		return id
	}
	w.lock()
	w.createNow(id, parent)
	w.unlock()
	return id
}

func (w *World) createNow(id, parent EntityID) {
	if !parent.IsZero() && !w.pool.Alive(parent) {
		// the parent was removed while this create was queued
		w.entries[id.Index()] = entityEntry{}
		w.pool.Destroy(id)
		return
	}
	w.empty.addEntity(id)
	w.rel.Add(id, parent)
	if !parent.IsZero() {
		w.raise(onAddChildType, OnAddChild{Child: id}, parent)
	}
}

// Remove destroys id and its whole subtree.
func (w *World) Remove(id EntityID) {
	if !w.pool.Alive(id) {
		w.warnStale("remove", id)
		return
	}
	if w.deferCount > 0 {
		w.commands = append(w.commands, command{kind: cmdRemove, id: id})
		return
	}
	w.lock()
	w.removeNow(id)
	w.unlock()
}

func (w *World) removeNow(id EntityID) {
	if parent := w.rel.Parent(id); !parent.IsZero() {
		w.raise(onRemoveChildType, OnRemoveChild{Child: id}, parent)
	}
	w.rel.Remove(id, true, w.destroyEntity)
}

// destroyEntity drops the storage of one entity. Its components receive
// OnRemove before they are destroyed.
func (w *World) destroyEntity(id EntityID) {
	e := w.entries[id.Index()]
	if a := e.arch; a != nil {
		if w.signals.Listens(onRemoveType) {
			for _, c := range a.columns {
				w.raiseComponent(onRemoveType, OnRemove{}, id, c, e.row)
			}
		}
		a.remove(e.row)
	}
	w.entries[id.Index()] = entityEntry{}
	w.pool.Destroy(id)
}

// Insert stores value as id's component of type T. An existing T is
// overwritten: the old value gets OnRemove and is destroyed in place.
func Insert[T any](w *World, id EntityID, value T) {
	info := w.componentInfo(TypeIDOf[T](), opsFor[T])
	w.insert(id, info, unsafe.Pointer(&value))
}

// InsertValue is Insert for values whose type is only known at runtime.
func (w *World) InsertValue(id EntityID, value any) {
	t := reflect.TypeOf(value)
	if t == nil {
		w.log.Warn("insert of untyped nil", zapEntity(id))
		return
	}
	info := w.componentInfo(typeIDFor(t), func() *componentOps { return opsForType(t) })
	buf := info.ops.alloc(1)
	reflect.NewAt(t, buf).Elem().Set(reflect.ValueOf(value))
	w.insert(id, info, buf)
}

// insert takes ownership of the value at src.
func (w *World) insert(id EntityID, info *componentInfo, src unsafe.Pointer) {
	if !w.pool.Alive(id) {
		w.warnStale("insert "+info.name, id)
		info.ops.destroy(src)
		return
	}
	if w.deferCount > 0 {
		w.commands = append(w.commands, command{kind: cmdInsert, id: id, info: info, value: src})
		return
	}
	w.lock()
	w.insertNow(id, info, src)
	w.unlock()
}

func (w *World) insertNow(id EntityID, info *componentInfo, src unsafe.Pointer) {
	e := w.entries[id.Index()]
	a := e.arch
	if c := a.column(info.id); c != nil {
		p := c.at(e.row)
		w.raiseComponent(onRemoveType, OnRemove{}, id, c, e.row)
		info.ops.destroy(p)
		info.ops.move(p, src)
		w.raiseComponent(onInsertType, OnInsert{}, id, c, e.row)
		return
	}
	dest := a.with(info.id)
	row := dest.moveFrom(a, e.row)
	a.removeMoved(e.row, dest)
	c := dest.column(info.id)
	c.push(src)
	w.raiseComponent(onInsertType, OnInsert{}, id, c, row)
}

// Erase removes id's component of type T, if it has one.
func Erase[T any](w *World, id EntityID) {
	w.EraseType(id, TypeIDOf[T]())
}

func (w *World) EraseType(id EntityID, t TypeID) {
	if !w.pool.Alive(id) {
		w.warnStale("erase", id)
		return
	}
	if w.deferCount > 0 {
		w.commands = append(w.commands, command{kind: cmdErase, id: id, typ: t})
		return
	}
	if a := w.entries[id.Index()].arch; a == nil || !a.Has(t) {
		return
	}
	w.lock()
	w.eraseNow(id, t)
	w.unlock()
}

func (w *World) eraseNow(id EntityID, t TypeID) {
	e := w.entries[id.Index()]
	a := e.arch
	c := a.column(t)
	if c == nil {
		return
	}
	w.raiseComponent(onRemoveType, OnRemove{}, id, c, e.row)
	dest := a.without(t)
	dest.moveFrom(a, e.row)
	a.removeMoved(e.row, dest)
}

// Get returns id's component of type T. The pointer is valid until the
// next structural change. Interface types never match; use GetInterface.
func Get[T any](w *World, id EntityID) (*T, bool) {
	c, row := w.lookup(id, TypeIDOf[T](), false)
	if c == nil {
		return nil, false
	}
	return (*T)(c.at(row)), true
}

// GetInterface returns the component of id that exposes interface I.
func GetInterface[I any](w *World, id EntityID) (I, bool) {
	var zero I
	c, row := w.lookup(id, TypeIDOf[I](), true)
	if c == nil {
		return zero, false
	}
	v, ok := c.ops.box(c.at(row)).(I)
	return v, ok
}

// lookup finds the column holding id's component t. With ifaces set, a
// column exposing interface t also matches.
func (w *World) lookup(id EntityID, t TypeID, ifaces bool) (*componentVector, int) {
	if !w.pool.Alive(id) {
		w.log.Debug("lookup on stale entity handle", zapEntity(id))
		return nil, 0
	}
	e := w.entries[id.Index()]
	if e.arch == nil {
		return nil, 0
	}
	if ifaces {
		return e.arch.vector(t), e.row
	}
	return e.arch.column(t), e.row
}

// GetValue returns id's component of type t boxed as a pointer, for
// callers that only know the type at runtime.
func (w *World) GetValue(id EntityID, t TypeID) (any, bool) {
	c, row := w.lookup(id, t, true)
	if c == nil {
		return nil, false
	}
	return c.ops.box(c.at(row)), true
}

func Has[T any](w *World, id EntityID) bool {
	return w.HasType(id, TypeIDOf[T]())
}

func (w *World) HasType(id EntityID, t TypeID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	a := w.entries[id.Index()].arch
	return a != nil && a.vector(t) != nil
}

// Apply runs fn against id now, or when the queue drains if the world is
// deferred. fn is skipped when id is gone by then.
func (w *World) Apply(id EntityID, fn func(EntityID)) {
	if !w.pool.Alive(id) {
		w.warnStale("apply", id)
		return
	}
	if w.deferCount > 0 {
		w.commands = append(w.commands, command{kind: cmdApply, id: id, fn: fn})
		return
	}
	w.lock()
	fn(id)
	w.unlock()
}

// ApplyTo is Apply for a closure over one component. fn is skipped when
// the entity lacks T at that point.
func ApplyTo[T any](w *World, id EntityID, fn func(*T)) {
	w.Apply(id, func(id EntityID) {
		if p, ok := Get[T](w, id); ok {
			fn(p)
		}
	})
}

// Parent returns id's parent, NullEntity at the top level.
func (w *World) Parent(id EntityID) EntityID {
	if !w.pool.Alive(id) || w.entries[id.Index()].arch == nil {
		return NullEntity
	}
	return w.rel.Parent(id)
}

// Children yields id's direct children, most recently attached first.
func (w *World) Children(id EntityID) iter.Seq[EntityID] {
	if !w.pool.Alive(id) || w.entries[id.Index()].arch == nil {
		return func(func(EntityID) bool) {}
	}
	return w.rel.Children(id)
}

// Root yields the top-level entities.
func (w *World) Root() iter.Seq[EntityID] {
	return w.rel.Children(NullEntity)
}

// IsAncestor reports whether anc is desc or one of its ancestors.
func (w *World) IsAncestor(anc, desc EntityID) bool {
	if !w.pool.Alive(desc) || w.entries[desc.Index()].arch == nil {
		return false
	}
	return w.rel.IsAncestor(anc, desc)
}

// Reparent moves id under parent (NullEntity for the top level). The old
// parent receives OnRemoveChild and the new one OnAddChild. Moving an
// entity under its own subtree is a programming error.
func (w *World) Reparent(id, parent EntityID) {
	if !w.pool.Alive(id) || w.entries[id.Index()].arch == nil {
		w.warnStale("reparent", id)
		return
	}
	if !parent.IsZero() && (!w.pool.Alive(parent) || w.entries[parent.Index()].arch == nil) {
		w.warnStale("reparent target", parent)
		return
	}
	old := w.rel.Parent(id)
	if old == parent {
		return
	}
	if !w.rel.Reparent(id, parent) {
		assert(false, "reparent %s under its descendant %s", id, parent)
		w.log.Error("reparent would create a cycle", zapEntity(id), zap.Stringer("parent", parent))
		return
	}
	w.lock()
	if !old.IsZero() {
		w.raise(onRemoveChildType, OnRemoveChild{Child: id}, old)
	}
	if !parent.IsZero() {
		w.raise(onAddChildType, OnAddChild{Child: id}, parent)
	}
	w.unlock()
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue removes every queued entity that still exists and
// returns how many removals were issued. Called by CleanupSystem at the
// end of each tick.
func (w *World) FlushDestroyQueue() int {
	n := 0
	// removal handlers may mark more entities; they are flushed in this call
	for i := 0; i < len(w.destroyQueue); i++ {
		if id := w.destroyQueue[i]; w.pool.Alive(id) {
			w.Remove(id)
			n++
		}
	}
	clear(w.destroyQueue)
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// ComponentType resolves a registered component name.
func (w *World) ComponentType(name string) (reflect.Type, bool) {
	_, t, ok := w.registry.Lookup(name)
	return t, ok
}

// Clear destroys every entity and component without raising signals and
// invalidates every outstanding id. Archetypes and queries survive.
func (w *World) Clear() {
	assert(w.deferCount == 0, "clear while deferred")
	for _, a := range w.archetypes {
		a.clear()
	}
	clear(w.entries)
	w.rel.Reset()
	w.pool.Reset()
	clear(w.destroyQueue)
	w.destroyQueue = w.destroyQueue[:0]
	w.log.Debug("world cleared")
}
