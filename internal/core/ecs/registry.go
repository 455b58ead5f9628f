package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

var (
	ErrDuplicateName    = eris.New("component name already registered")
	ErrDuplicateType    = eris.New("component type already registered")
	ErrUnknownComponent = eris.New("unknown component")
	ErrNotImplemented   = eris.New("component does not implement interface")
	ErrArchetypesExist  = eris.New("interfaces must be declared before entities receive components")
)

// componentInfo is what a World knows about one component type.
type componentInfo struct {
	id         TypeID
	name       string
	ops        *componentOps
	interfaces []TypeID
}

// Registry maps component names to runtime type tokens and holds the
// operation table used to build columns of each type.
type Registry struct {
	byID   map[TypeID]*componentInfo
	byName map[string]*componentInfo
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[TypeID]*componentInfo, 32),
		byName: make(map[string]*componentInfo, 32),
	}
}

func (r *Registry) register(name string, ops *componentOps) (*componentInfo, error) {
	id := typeIDFor(ops.typ)
	if _, ok := r.byID[id]; ok {
		return nil, eris.Wrapf(ErrDuplicateType, "register %s", ops.typ)
	}
	if _, ok := r.byName[name]; ok {
		return nil, eris.Wrapf(ErrDuplicateName, "register %q", name)
	}
	info := &componentInfo{id: id, name: name, ops: ops}
	r.byID[id] = info
	r.byName[name] = info
	return info, nil
}

func (r *Registry) lookup(id TypeID) *componentInfo {
	return r.byID[id]
}

// Lookup resolves a registered component name.
func (r *Registry) Lookup(name string) (TypeID, reflect.Type, bool) {
	info, ok := r.byName[name]
	if !ok {
		return NoType, nil, false
	}
	return info.id, info.ops.typ, true
}

// Name returns the registered name of a component type.
func (r *Registry) Name(id TypeID) string {
	if info, ok := r.byID[id]; ok {
		return info.name
	}
	return ""
}

// Len returns the number of registered component types.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Register adds component type T to the world under name. Types used
// without registration are registered on first use under their Go name.
func Register[T any](w *World, name string) error {
	info, err := w.registry.register(name, opsFor[T]())
	if err != nil {
		return err
	}
	w.log.Debug("component registered", zapComponent(name), zapTypeID(info.id))
	return nil
}

// DeclareInterface makes component T satisfy queries that require interface
// I. *T must implement I, and the declaration must happen before any entity
// holds a component.
func DeclareInterface[I any, T any](w *World) error {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		return eris.Errorf("declare interface: %s is not an interface type", iface)
	}
	if len(w.archetypes) > 1 {
		return eris.Wrapf(ErrArchetypesExist, "declare %s", iface)
	}
	info := w.componentInfo(TypeIDOf[T](), func() *componentOps { return opsFor[T]() })
	if !reflect.PointerTo(info.ops.typ).Implements(iface) {
		return eris.Wrapf(ErrNotImplemented, "*%s does not implement %s", info.ops.typ, iface)
	}
	ifaceID := typeIDFor(iface)
	for _, id := range info.interfaces {
		if id == ifaceID {
			return nil
		}
	}
	info.interfaces = append(info.interfaces, ifaceID)
	return nil
}
