package ecs

import (
	"fmt"
	"slices"
	"testing"
)

type collision struct{ Other EntityID }

func TestSignalsDispatchInRegistrationOrder(t *testing.T) {
	w := newTestWorld(t)
	var calls []string
	for i := 0; i < 3; i++ {
		Subscribe(w, func(_ OnInsert, _ EntityID, p *posC) {
			calls = append(calls, fmt.Sprintf("h%d:%v", i, p.X))
		})
	}
	Insert(w, w.Create(NullEntity), posC{X: 7})
	if want := []string{"h0:7", "h1:7", "h2:7"}; !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestRaiseReachesEntityAndComponents(t *testing.T) {
	w := newTestWorld(t)
	var got []string
	SubscribeEntity(w, func(c collision, id EntityID) {
		got = append(got, "entity")
	})
	Subscribe(w, func(c collision, id EntityID, p *posC) {
		got = append(got, "pos")
		p.X = 99
	})
	Subscribe(w, func(c collision, id EntityID, v *velC) {
		got = append(got, "vel")
	})
	a := w.Create(NullEntity)
	b := w.Create(NullEntity)
	Insert(w, a, posC{})

	Raise(w, a, collision{Other: b})
	if want := []string{"entity", "pos"}; !slices.Equal(got, want) {
		t.Errorf("handlers = %v, want %v", got, want)
	}
	if p, _ := Get[posC](w, a); p.X != 99 {
		t.Error("handler did not receive the stored component")
	}

	got = nil
	p, _ := Get[posC](w, a)
	RaiseComponent(w, a, collision{}, p)
	if !slices.Equal(got, []string{"pos"}) {
		t.Errorf("RaiseComponent handlers = %v", got)
	}
}

func TestChildSignals(t *testing.T) {
	w := newTestWorld(t)
	var log []string
	SubscribeEntity(w, func(s OnAddChild, parent EntityID) {
		log = append(log, fmt.Sprintf("add %s<-%s", parent, s.Child))
	})
	SubscribeEntity(w, func(s OnRemoveChild, parent EntityID) {
		log = append(log, fmt.Sprintf("remove %s<-%s", parent, s.Child))
	})
	a := w.Create(NullEntity)
	b := w.Create(NullEntity)
	c := w.Create(a)
	w.Reparent(c, b)
	w.Remove(c)
	want := []string{
		fmt.Sprintf("add %s<-%s", a, c),
		fmt.Sprintf("remove %s<-%s", a, c),
		fmt.Sprintf("add %s<-%s", b, c),
		fmt.Sprintf("remove %s<-%s", b, c),
	}
	if !slices.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestRemovalSignalOrdering(t *testing.T) {
	w := newTestWorld(t)
	var log []string
	holder := w.Create(NullEntity)
	e := w.Create(holder)
	child := w.Create(e)
	Insert(w, e, posC{X: 1})
	Insert(w, child, posC{X: 2})

	SubscribeEntity(w, func(s OnRemoveChild, parent EntityID) {
		log = append(log, "remove-child")
	})
	Subscribe(w, func(_ OnRemove, id EntityID, p *posC) {
		log = append(log, fmt.Sprintf("remove-pos:%v", p.X))
		if !w.Alive(id) {
			t.Error("OnRemove raised after the entity died")
		}
	})
	w.Remove(e)
	if want := []string{"remove-child", "remove-pos:2", "remove-pos:1"}; !slices.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestHandlerMutationIsDeferred(t *testing.T) {
	w := newTestWorld(t)
	spawned := NullEntity
	Subscribe(w, func(_ OnInsert, id EntityID, _ *posC) {
		if w.Pending() != 0 {
			t.Error("queue not empty on entry")
		}
		spawned = w.Create(id)
		Insert(w, spawned, velC{})
		if w.ArchetypeOf(spawned) != nil {
			t.Error("create inside a handler was applied immediately")
		}
	})
	e := w.Create(NullEntity)
	Insert(w, e, posC{})
	if !Has[velC](w, spawned) || w.Parent(spawned) != e {
		t.Error("handler commands not applied after the insert completed")
	}
}

func TestPostedSignals(t *testing.T) {
	w := newTestWorld(t)
	var got []EntityID
	SubscribeEntity(w, func(c collision, id EntityID) {
		got = append(got, id)
		Post(w, id, collision{}) // lands in the next flush
	})
	a := w.Create(NullEntity)
	b := w.Create(NullEntity)
	Post(w, a, collision{})
	Post(w, b, collision{})
	w.Remove(b)
	if len(got) != 0 {
		t.Fatal("posted signal delivered before flush")
	}
	if w.PendingSignals() != 2 {
		t.Errorf("PendingSignals = %d", w.PendingSignals())
	}
	if n := w.FlushSignals(); n != 2 {
		t.Errorf("flush handled %d signals, want 2", n)
	}
	if !slices.Equal(got, []EntityID{a}) {
		t.Errorf("delivered to %v, want only %s", got, a)
	}
	if w.PendingSignals() != 1 {
		t.Errorf("repost not queued: %d pending", w.PendingSignals())
	}
	w.FlushSignals()
	if len(got) != 2 {
		t.Errorf("second flush delivered %d total", len(got))
	}
}
