package ecs

import (
	"testing"
	"unsafe"

	"go.uber.org/zap/zaptest"
)

type posC struct{ X, Y float64 }
type velC struct{ X, Y float64 }
type massC struct{ Kg float64 }

type tagC struct{ Label string }

func (t *tagC) label() string { return t.Label }

type labeler interface{ label() string }

// disposable counts Dispose calls through a shared counter.
type disposable struct {
	ID    int
	count *int
}

func (d *disposable) Dispose() {
	if d.count != nil {
		*d.count++
	}
}

func newTestWorld(t *testing.T, opts ...Option) *World {
	t.Helper()
	return NewWorld(zaptest.NewLogger(t), opts...)
}

func mustPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", what)
		}
	}()
	fn()
}

func unsafePtr[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }
