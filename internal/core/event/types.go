package event

import (
	"reflect"
	"unsafe"
)

// Key selects the handlers for one signal type raised on one component
// type. Component is nil for entity-level signals.
type Key struct {
	Signal    reflect.Type
	Component reflect.Type
}

// KeyFor builds the key for signal S raised on component C.
func KeyFor[S, C any]() Key {
	return Key{Signal: reflect.TypeFor[S](), Component: reflect.TypeFor[C]()}
}

// EntityKey builds the key for the entity-level signal S.
func EntityKey[S any]() Key {
	return Key{Signal: reflect.TypeFor[S]()}
}

// Handler is the type-erased form every subscription is stored as. comp
// points at a component of the key's Component type, or is nil.
type Handler[E comparable] func(signal any, id E, comp unsafe.Pointer)

type queued[E comparable] struct {
	typ    reflect.Type
	signal any
	id     E
}
