package ecs

import (
	"fmt"
	"iter"
	"math"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Index 0 is never issued and marks the null entity.
type EntityID uint64

// NullEntity is the zero handle. It never refers to a live entity.
const NullEntity EntityID = 0

// maxEntities bounds the index space; index 0 is reserved.
const maxEntities = math.MaxUint32 - 1

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id.Index() == 0 }

func (id EntityID) String() string {
	if id.IsZero() {
		return "null"
	}
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

// entitySlot is the per-index record of the pool. Free slots form an
// intrusive singly linked list through nextFree.
type entitySlot struct {
	generation uint32
	nextFree   uint32 // index of the next free slot, 0 terminates
	free       bool
}

// EntityPool manages entity allocation with generational indices and a free list.
// It is the only authority on whether a handle is live.
type EntityPool struct {
	slots    []entitySlot // slot i describes index i+1
	freeHead uint32
	live     int
	limit    int
}

func NewEntityPool(capacity int) *EntityPool {
	return &EntityPool{
		slots: make([]entitySlot, 0, capacity),
		limit: maxEntities,
	}
}

// Create pops a recycled index or extends the index space. It returns
// NullEntity when the index space is exhausted (after a debug assertion).
func (p *EntityPool) Create() EntityID {
	if p.freeHead != 0 {
		idx := p.freeHead
		s := &p.slots[idx-1]
		p.freeHead = s.nextFree
		s.nextFree = 0
		s.free = false
		p.live++
		return NewEntityID(idx, s.generation)
	}
	if len(p.slots) >= p.limit {
		assert(false, "entity index space exhausted (%d entities)", p.limit)
		return NullEntity
	}
	p.slots = append(p.slots, entitySlot{generation: 1})
	p.live++
	return NewEntityID(uint32(len(p.slots)), 1)
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || int(idx) > len(p.slots) {
		return false
	}
	s := p.slots[idx-1]
	return !s.free && s.generation == id.Generation()
}

// Destroy invalidates id and recycles its index. Stale ids are ignored.
func (p *EntityPool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	p.release(id.Index())
	p.live--
	return true
}

// release bumps the generation of a slot and returns it to the free list.
// A slot whose generation would wrap is retired instead, so no
// (generation, index) pair is ever issued twice.
func (p *EntityPool) release(idx uint32) {
	s := &p.slots[idx-1]
	s.free = true
	s.generation++
	if s.generation == 0 {
		return
	}
	s.nextFree = p.freeHead
	p.freeHead = idx
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.live }

// All yields every live id in index order.
func (p *EntityPool) All() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for i := range p.slots {
			s := p.slots[i]
			if s.free {
				continue
			}
			if !yield(NewEntityID(uint32(i+1), s.generation)) {
				return
			}
		}
	}
}

// Reset invalidates every live id. Indices are handed out again lowest first.
func (p *EntityPool) Reset() {
	p.freeHead = 0
	for i := len(p.slots) - 1; i >= 0; i-- {
		s := &p.slots[i]
		if !s.free {
			s.free = true
			s.generation++
		}
		if s.generation == 0 {
			continue
		}
		s.nextFree = p.freeHead
		p.freeHead = uint32(i + 1)
	}
	p.live = 0
}
