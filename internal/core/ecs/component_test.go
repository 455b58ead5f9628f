package ecs

import (
	"reflect"
	"testing"
)

func TestTypeIDsStable(t *testing.T) {
	a := TypeIDOf[posC]()
	if a == NoType {
		t.Fatal("component got NoType")
	}
	if TypeIDOf[posC]() != a {
		t.Error("type id changed between calls")
	}
	if TypeIDOf[velC]() == a {
		t.Error("distinct types share an id")
	}
	if a.Type() != reflect.TypeFor[posC]() {
		t.Errorf("Type() = %v", a.Type())
	}
	if NoType.Type() != nil {
		t.Error("NoType must map to nil")
	}
}

func testVectorOps(t *testing.T, ops *componentOps) {
	disposed := 0
	v := newComponentVector(TypeIDOf[disposable](), ops, 0)
	for i := 0; i < 5; i++ {
		src := disposable{ID: i, count: &disposed}
		v.push(unsafePtr(&src))
		if src.count != nil {
			t.Fatal("push must leave the source zeroed")
		}
	}
	if v.Len() != 5 || v.Cap() < 5 {
		t.Fatalf("len %d cap %d", v.Len(), v.Cap())
	}
	at := func(i int) *disposable { return (*disposable)(v.at(i)) }
	for i := 0; i < 5; i++ {
		if at(i).ID != i {
			t.Fatalf("element %d has ID %d after growth", i, at(i).ID)
		}
	}

	v.remove(1, true)
	if disposed != 1 {
		t.Errorf("disposed = %d after remove, want 1", disposed)
	}
	if v.Len() != 4 || at(1).ID != 4 {
		t.Errorf("row 1 holds %d, want relocated 4", at(1).ID)
	}

	v.remove(0, false)
	if disposed != 1 {
		t.Errorf("remove without dispose called Dispose")
	}
	if at(0).ID != 3 {
		t.Errorf("row 0 holds %d, want 3", at(0).ID)
	}

	v.clear()
	if disposed != 4 || v.Len() != 0 {
		t.Errorf("after clear: disposed %d len %d", disposed, v.Len())
	}
}

func TestComponentVectorGenericOps(t *testing.T) {
	testVectorOps(t, opsFor[disposable]())
}

func TestComponentVectorReflectOps(t *testing.T) {
	testVectorOps(t, opsForType(reflect.TypeFor[disposable]()))
}

func TestComponentVectorMoveFrom(t *testing.T) {
	ops := opsFor[posC]()
	a := newComponentVector(TypeIDOf[posC](), ops, 2)
	b := newComponentVector(TypeIDOf[posC](), ops, 2)
	*(*posC)(a.emplace()) = posC{X: 1}
	*(*posC)(a.emplace()) = posC{X: 2}
	b.moveFrom(a, 1)
	if a.Len() != 2 {
		t.Fatal("moveFrom must not shrink the source")
	}
	if got := *(*posC)(b.at(0)); got.X != 2 {
		t.Errorf("moved value = %+v", got)
	}
	if got := *(*posC)(a.at(1)); got != (posC{}) {
		t.Errorf("source slot not zeroed: %+v", got)
	}
}

func TestComponentVectorBounds(t *testing.T) {
	if !debugChecks {
		t.Skip("bounds assertion only in debug builds")
	}
	v := newComponentVector(TypeIDOf[posC](), opsFor[posC](), 4)
	v.emplace()
	mustPanic(t, "index past len", func() { v.at(1) })
}

func TestBoxedOps(t *testing.T) {
	src := posC{X: 5}
	for name, ops := range map[string]*componentOps{
		"generic": opsFor[posC](),
		"reflect": opsForType(reflect.TypeFor[posC]()),
	} {
		p, ok := ops.box(unsafePtr(&src)).(*posC)
		if !ok || p.X != 5 {
			t.Errorf("%s: box = %v, %v", name, p, ok)
		}
	}
}
