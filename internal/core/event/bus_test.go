package event

import (
	"reflect"
	"slices"
	"testing"
	"unsafe"
)

type hit struct{ Damage int }
type armor struct{ Value int }

func TestDispatchOrderAndKeys(t *testing.T) {
	d := NewDispatcher[int]()
	var calls []string
	On(d, func(h hit, id int, a *armor) {
		calls = append(calls, "first")
		a.Value -= h.Damage
	})
	On(d, func(h hit, id int, a *armor) { calls = append(calls, "second") })
	OnEntity(d, func(h hit, id int) { calls = append(calls, "entity") })

	a := armor{Value: 10}
	if n := d.Dispatch(KeyFor[hit, armor](), hit{Damage: 3}, 1, unsafe.Pointer(&a)); n != 2 {
		t.Errorf("ran %d handlers, want 2", n)
	}
	if !slices.Equal(calls, []string{"first", "second"}) {
		t.Errorf("calls = %v", calls)
	}
	if a.Value != 7 {
		t.Errorf("component not passed by reference: %d", a.Value)
	}
	d.Dispatch(EntityKey[hit](), hit{}, 1, nil)
	if calls[len(calls)-1] != "entity" {
		t.Error("entity handler not called")
	}
	if !d.Listens(reflect.TypeFor[hit]()) || d.Listens(reflect.TypeFor[armor]()) {
		t.Error("Listens wrong")
	}
	if d.Has(KeyFor[armor, hit]()) {
		t.Error("swapped key must not match")
	}
}

func TestDoubleBuffer(t *testing.T) {
	d := NewDispatcher[string]()
	ht := reflect.TypeFor[hit]()
	d.Post(ht, hit{Damage: 1}, "a")
	d.Post(ht, hit{Damage: 2}, "b")

	var got []string
	deliver := func(_ reflect.Type, sig any, id string) {
		got = append(got, id)
		d.Post(ht, sig, id+"'")
	}
	if n := d.DispatchQueued(deliver); n != 0 {
		t.Fatalf("delivered %d before swap", n)
	}
	d.SwapBuffers()
	if n := d.DispatchQueued(deliver); n != 2 {
		t.Fatalf("delivered %d, want 2", n)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
	if d.Pending() != 2 {
		t.Errorf("reposts pending = %d", d.Pending())
	}
	d.SwapBuffers()
	d.DispatchQueued(deliver)
	if !slices.Equal(got, []string{"a", "b", "a'", "b'"}) {
		t.Errorf("got %v", got)
	}
}
