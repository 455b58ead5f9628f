package event

import (
	"reflect"
	"unsafe"
)

// Dispatcher delivers signals to handlers keyed by (signal type, component
// type). Raised signals are dispatched synchronously in subscription order.
// Posted signals are double-buffered: posts made before SwapBuffers are
// delivered by the DispatchQueued that follows it.
type Dispatcher[E comparable] struct {
	handlers map[Key][]Handler[E]
	signals  map[reflect.Type]int // handler count per signal type
	front    []queued[E]
	back     []queued[E]
}

func NewDispatcher[E comparable]() *Dispatcher[E] {
	return &Dispatcher[E]{
		handlers: make(map[Key][]Handler[E]),
		signals:  make(map[reflect.Type]int),
	}
}

// Subscribe appends h to the handlers of k.
func (d *Dispatcher[E]) Subscribe(k Key, h Handler[E]) {
	d.handlers[k] = append(d.handlers[k], h)
	d.signals[k.Signal]++
}

// Has reports whether any handler is registered for k.
func (d *Dispatcher[E]) Has(k Key) bool {
	return len(d.handlers[k]) > 0
}

// Listens reports whether any handler, for any component, takes signal t.
func (d *Dispatcher[E]) Listens(t reflect.Type) bool {
	return d.signals[t] > 0
}

// Dispatch calls every handler of k and returns how many ran. Handlers
// subscribed during the dispatch are not called by it.
func (d *Dispatcher[E]) Dispatch(k Key, signal any, id E, comp unsafe.Pointer) int {
	hs := d.handlers[k]
	for _, h := range hs {
		h(signal, id, comp)
	}
	return len(hs)
}

// Post queues an entity signal of type t into the back buffer.
func (d *Dispatcher[E]) Post(t reflect.Type, signal any, id E) {
	d.back = append(d.back, queued[E]{typ: t, signal: signal, id: id})
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (d *Dispatcher[E]) SwapBuffers() {
	clear(d.front)
	d.front, d.back = d.back, d.front[:0]
}

// DispatchQueued hands every front-buffer signal to deliver, in post order.
// Signals posted meanwhile wait for the next swap.
func (d *Dispatcher[E]) DispatchQueued(deliver func(t reflect.Type, signal any, id E)) int {
	for _, q := range d.front {
		deliver(q.typ, q.signal, q.id)
	}
	n := len(d.front)
	clear(d.front)
	d.front = d.front[:0]
	return n
}

// Pending returns the number of posted signals not yet swapped in.
func (d *Dispatcher[E]) Pending() int {
	return len(d.back)
}

// On subscribes a typed handler for signal S raised on component C. The
// component pointer is reinterpreted as *C; the key guarantees the token
// matches.
func On[S, C any, E comparable](d *Dispatcher[E], fn func(S, E, *C)) {
	d.Subscribe(KeyFor[S, C](), func(signal any, id E, comp unsafe.Pointer) {
		fn(signal.(S), id, (*C)(comp))
	})
}

// OnEntity subscribes a typed handler for the entity-level signal S.
func OnEntity[S any, E comparable](d *Dispatcher[E], fn func(S, E)) {
	d.Subscribe(EntityKey[S](), func(signal any, id E, _ unsafe.Pointer) {
		fn(signal.(S), id)
	})
}
