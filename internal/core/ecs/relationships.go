package ecs

import "iter"

type relationship struct {
	parent EntityID
	first  EntityID // head of the child list
	next   EntityID
	prev   EntityID
}

// Relationships is the parent/child forest, indexed by entity index. Slot 0
// belongs to the null entity and acts as the root: top-level entities are
// its children. New children are linked at the head of their parent's list.
type Relationships struct {
	slots []relationship
}

func NewRelationships(capacity int) *Relationships {
	return &Relationships{slots: make([]relationship, 1, capacity+1)}
}

func (r *Relationships) slot(id EntityID) *relationship {
	return &r.slots[id.Index()]
}

// Add records id as a child of parent (NullEntity for top level).
func (r *Relationships) Add(id, parent EntityID) {
	idx := int(id.Index())
	for len(r.slots) <= idx {
		r.slots = append(r.slots, relationship{})
	}
	r.slots[idx] = relationship{}
	r.attach(id, parent)
}

func (r *Relationships) attach(id, parent EntityID) {
	s := r.slot(id)
	p := r.slot(parent)
	s.parent = parent
	s.prev = NullEntity
	s.next = p.first
	if !p.first.IsZero() {
		r.slot(p.first).prev = id
	}
	p.first = id
}

// detach unlinks id from its parent's child list in O(1).
func (r *Relationships) detach(id EntityID) {
	s := r.slot(id)
	if !s.prev.IsZero() {
		r.slot(s.prev).next = s.next
	} else {
		r.slot(s.parent).first = s.next
	}
	if !s.next.IsZero() {
		r.slot(s.next).prev = s.prev
	}
	s.prev = NullEntity
	s.next = NullEntity
	s.parent = NullEntity
}

// Remove removes id and its whole subtree depth first. Descendants are
// removed with updateParent false since their parents are going away too.
// visit runs for every removed entity, children before their parent.
func (r *Relationships) Remove(id EntityID, updateParent bool, visit func(EntityID)) {
	child := r.slot(id).first
	for !child.IsZero() {
		next := r.slot(child).next
		r.Remove(child, false, visit)
		child = next
	}
	if updateParent {
		r.detach(id)
	}
	*r.slot(id) = relationship{}
	if visit != nil {
		visit(id)
	}
}

// Reparent moves id under parent. It reports false, leaving the tree
// untouched, when parent is id itself or one of its descendants.
func (r *Relationships) Reparent(id, parent EntityID) bool {
	if r.IsAncestor(id, parent) {
		return false
	}
	r.detach(id)
	r.attach(id, parent)
	return true
}

// IsAncestor reports whether anc is desc or lies on desc's parent chain.
func (r *Relationships) IsAncestor(anc, desc EntityID) bool {
	for cur := desc; !cur.IsZero(); cur = r.slot(cur).parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func (r *Relationships) Parent(id EntityID) EntityID {
	return r.slot(id).parent
}

// Children yields the direct children of id, most recently attached first.
// The sequence can be ranged over any number of times.
func (r *Relationships) Children(id EntityID) iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for cur := r.slot(id).first; !cur.IsZero(); cur = r.slot(cur).next {
			if !yield(cur) {
				return
			}
		}
	}
}

// Reset drops every relationship.
func (r *Relationships) Reset() {
	clear(r.slots)
	r.slots = r.slots[:1]
}
