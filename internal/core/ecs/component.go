package ecs

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/rotisserie/eris"
)

// TypeID identifies a component or interface type. IDs are allocated
// process-wide so that archetype keys sort the same way in every World.
type TypeID uint32

// NoType marks entity-level signals that carry no component.
const NoType TypeID = 0

var typeIDs = struct {
	sync.Mutex
	byType map[reflect.Type]TypeID
	types  []reflect.Type
}{
	byType: make(map[reflect.Type]TypeID, 64),
	types:  []reflect.Type{nil},
}

func typeIDFor(t reflect.Type) TypeID {
	typeIDs.Lock()
	defer typeIDs.Unlock()
	if id, ok := typeIDs.byType[t]; ok {
		return id
	}
	id := TypeID(len(typeIDs.types))
	typeIDs.byType[t] = id
	typeIDs.types = append(typeIDs.types, t)
	return id
}

// TypeIDOf returns the runtime type token of T.
func TypeIDOf[T any]() TypeID {
	return typeIDFor(reflect.TypeFor[T]())
}

// Type returns the Go type behind a token, or nil for NoType.
func (id TypeID) Type() reflect.Type {
	typeIDs.Lock()
	defer typeIDs.Unlock()
	if int(id) >= len(typeIDs.types) {
		return nil
	}
	return typeIDs.types[id]
}

// Disposer is implemented by components that hold resources. Dispose runs
// when the component is destroyed: erased, overwritten, or removed with its
// entity. Moves between archetypes never dispose.
type Disposer interface {
	Dispose()
}

// componentOps is the operation table a column uses in place of static type
// information.
type componentOps struct {
	typ  reflect.Type
	size uintptr

	// alloc returns zeroed typed storage for n elements so the collector
	// still scans pointers held by components.
	alloc func(n int) unsafe.Pointer
	// move transfers ownership from src to dst and leaves src zeroed.
	move func(dst, src unsafe.Pointer)
	swap func(a, b unsafe.Pointer)
	// reset zeroes an element without disposing it.
	reset   func(p unsafe.Pointer)
	destroy func(p unsafe.Pointer)
	// box returns the element as a *T inside an interface value.
	box func(p unsafe.Pointer) any
}

func opsFor[T any]() *componentOps {
	var zero T
	disposable := reflect.PointerTo(reflect.TypeFor[T]()).Implements(reflect.TypeFor[Disposer]())
	return &componentOps{
		typ:  reflect.TypeFor[T](),
		size: unsafe.Sizeof(zero),
		alloc: func(n int) unsafe.Pointer {
			if n == 0 {
				return nil
			}
			return unsafe.Pointer(unsafe.SliceData(make([]T, n)))
		},
		move: func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
			*(*T)(src) = zero
		},
		swap: func(a, b unsafe.Pointer) {
			*(*T)(a), *(*T)(b) = *(*T)(b), *(*T)(a)
		},
		reset: func(p unsafe.Pointer) {
			*(*T)(p) = zero
		},
		destroy: func(p unsafe.Pointer) {
			if disposable {
				any((*T)(p)).(Disposer).Dispose()
			}
			*(*T)(p) = zero
		},
		box: func(p unsafe.Pointer) any {
			return (*T)(p)
		},
	}
}

// opsForType builds the table through reflection for types that are only
// known at runtime, e.g. components named in prefab files.
func opsForType(t reflect.Type) *componentOps {
	disposable := reflect.PointerTo(t).Implements(reflect.TypeFor[Disposer]())
	at := func(p unsafe.Pointer) reflect.Value {
		return reflect.NewAt(t, p).Elem()
	}
	return &componentOps{
		typ:  t,
		size: t.Size(),
		alloc: func(n int) unsafe.Pointer {
			if n == 0 {
				return nil
			}
			return reflect.MakeSlice(reflect.SliceOf(t), n, n).UnsafePointer()
		},
		move: func(dst, src unsafe.Pointer) {
			s := at(src)
			at(dst).Set(s)
			s.SetZero()
		},
		swap: func(a, b unsafe.Pointer) {
			va, vb := at(a), at(b)
			tmp := reflect.New(t).Elem()
			tmp.Set(va)
			va.Set(vb)
			vb.Set(tmp)
		},
		reset: func(p unsafe.Pointer) {
			at(p).SetZero()
		},
		destroy: func(p unsafe.Pointer) {
			if disposable {
				reflect.NewAt(t, p).Interface().(Disposer).Dispose()
			}
			at(p).SetZero()
		},
		box: func(p unsafe.Pointer) any {
			return reflect.NewAt(t, p).Interface()
		},
	}
}

// componentVector is a type-erased growable column holding one component
// type. It only knows the element size and the operation table.
type componentVector struct {
	typ  TypeID
	ops  *componentOps
	data unsafe.Pointer
	len  int
	cap  int
}

func newComponentVector(typ TypeID, ops *componentOps, capacity int) *componentVector {
	return &componentVector{
		typ:  typ,
		ops:  ops,
		data: ops.alloc(capacity),
		cap:  capacity,
	}
}

func (v *componentVector) Len() int { return v.len }
func (v *componentVector) Cap() int { return v.cap }

func (v *componentVector) at(i int) unsafe.Pointer {
	if debugChecks && (i < 0 || i >= v.len) {
		panic(eris.Errorf("ecs: column index %d out of range [0,%d)", i, v.len))
	}
	return unsafe.Add(v.data, uintptr(i)*v.ops.size)
}

// reserve grows the backing storage to hold at least n elements. Existing
// elements are moved, so every pointer into the column is invalidated.
func (v *componentVector) reserve(n int) {
	if n <= v.cap {
		return
	}
	newCap := v.cap * 2
	if newCap < 4 {
		newCap = 4
	}
	if newCap < n {
		newCap = n
	}
	data := v.ops.alloc(newCap)
	for i := 0; i < v.len; i++ {
		off := uintptr(i) * v.ops.size
		v.ops.move(unsafe.Add(data, off), unsafe.Add(v.data, off))
	}
	v.data = data
	v.cap = newCap
}

// emplace appends a zero element and returns its address.
func (v *componentVector) emplace() unsafe.Pointer {
	v.reserve(v.len + 1)
	v.len++
	return v.at(v.len - 1)
}

// push appends by moving the value at src into the column.
func (v *componentVector) push(src unsafe.Pointer) unsafe.Pointer {
	dst := v.emplace()
	v.ops.move(dst, src)
	return dst
}

// moveFrom appends the element at row of other, leaving that slot zeroed.
// other keeps its length; the caller removes the vacated row.
func (v *componentVector) moveFrom(other *componentVector, row int) {
	assert(v.typ == other.typ, "moving between columns of different types")
	v.push(other.at(row))
}

// remove swaps the last element into row and shrinks by one. When dispose
// is false the removed element has already been moved out and is only zeroed.
func (v *componentVector) remove(row int, dispose bool) {
	last := v.len - 1
	if row != last {
		v.ops.swap(v.at(row), v.at(last))
	}
	p := v.at(last)
	if dispose {
		v.ops.destroy(p)
	} else {
		v.ops.reset(p)
	}
	v.len--
}

func (v *componentVector) clear() {
	for i := 0; i < v.len; i++ {
		v.ops.destroy(v.at(i))
	}
	v.len = 0
}
