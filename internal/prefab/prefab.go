// Package prefab holds named component bundles that can be stamped onto
// entities, either defined in code or loaded from YAML.
package prefab

import (
	"fmt"
	"os"
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stratum-ecs/stratum/internal/core/ecs"
)

var (
	ErrUnknownPrefab   = eris.New("unknown prefab")
	ErrDuplicatePrefab = eris.New("prefab already defined")
	ErrPrefabCycle     = eris.New("prefab contains itself")
)

// componentSpec is one component of a prefab: either raw YAML to decode
// against the world's registered type, or a value built in code.
type componentSpec struct {
	name  string
	node  *yaml.Node
	value any
}

type Prefab struct {
	Name       string
	components []componentSpec
	Children   []string
}

// Components returns the component names in declaration order.
func (p *Prefab) Components() []string {
	names := make([]string, len(p.components))
	for i, c := range p.components {
		names[i] = c.name
	}
	return names
}

// Library stores prefabs by name.
type Library struct {
	log     *zap.Logger
	prefabs map[string]*Prefab
	order   []string
}

func NewLibrary(log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{log: log, prefabs: make(map[string]*Prefab)}
}

type fileYAML struct {
	Prefabs []prefabYAML `yaml:"prefabs"`
}

type prefabYAML struct {
	Name       string    `yaml:"name"`
	Components yaml.Node `yaml:"components"`
	Children   []string  `yaml:"children"`
}

// Load reads a prefab file into a new library.
func Load(path string, log *zap.Logger) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefabs %s: %w", path, err)
	}
	lib := NewLibrary(log)
	if err := lib.Parse(data); err != nil {
		return nil, fmt.Errorf("parse prefabs %s: %w", path, err)
	}
	lib.log.Info("prefabs loaded", zap.String("file", path), zap.Int("count", lib.Count()))
	return lib, nil
}

// Parse adds every prefab of a YAML document and validates the result.
func (l *Library) Parse(data []byte) error {
	var f fileYAML
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "decode yaml")
	}
	for _, py := range f.Prefabs {
		p := &Prefab{Name: py.Name, Children: py.Children}
		switch py.Components.Kind {
		case 0:
		case yaml.MappingNode:
			content := py.Components.Content
			for i := 0; i+1 < len(content); i += 2 {
				p.components = append(p.components, componentSpec{
					name: content[i].Value,
					node: content[i+1],
				})
			}
		default:
			return eris.Errorf("prefab %q: components must be a mapping (line %d)", py.Name, py.Components.Line)
		}
		if err := l.add(p); err != nil {
			return err
		}
	}
	return l.Validate()
}

// Define adds a prefab built in code. Component values are copied into
// every instance.
func (l *Library) Define(name string, components []any, children ...string) error {
	p := &Prefab{Name: name, Children: children}
	for _, c := range components {
		if c == nil {
			return eris.Errorf("prefab %q: nil component", name)
		}
		p.components = append(p.components, componentSpec{name: reflect.TypeOf(c).String(), value: c})
	}
	return l.add(p)
}

func (l *Library) add(p *Prefab) error {
	if p.Name == "" {
		return eris.New("prefab without a name")
	}
	if _, ok := l.prefabs[p.Name]; ok {
		return eris.Wrapf(ErrDuplicatePrefab, "%q", p.Name)
	}
	l.prefabs[p.Name] = p
	l.order = append(l.order, p.Name)
	return nil
}

func (l *Library) Get(name string) (*Prefab, bool) {
	p, ok := l.prefabs[name]
	return p, ok
}

func (l *Library) Count() int { return len(l.prefabs) }

// Names returns prefab names in definition order.
func (l *Library) Names() []string { return l.order }

// Validate checks that every child reference resolves and that no prefab
// reaches itself through its children.
func (l *Library) Validate() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(l.prefabs))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return eris.Wrapf(ErrPrefabCycle, "%q", name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, child := range l.prefabs[name].Children {
			if _, ok := l.prefabs[child]; !ok {
				return eris.Wrapf(ErrUnknownPrefab, "%q referenced by %q", child, name)
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, name := range l.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Instantiate creates an entity under parent and stamps prefab name onto
// it, children included.
func (l *Library) Instantiate(w *ecs.World, name string, parent ecs.EntityID) (ecs.EntityID, error) {
	if _, ok := l.prefabs[name]; !ok {
		return ecs.NullEntity, eris.Wrapf(ErrUnknownPrefab, "%q", name)
	}
	id := w.Create(parent)
	if id.IsZero() {
		return ecs.NullEntity, eris.Errorf("instantiate %q: entity creation failed", name)
	}
	if err := l.InstantiateInto(w, name, id); err != nil {
		w.Remove(id)
		return ecs.NullEntity, err
	}
	return id, nil
}

// InstantiateInto inserts the prefab's components on an existing entity and
// creates its child prefabs beneath it. Components the entity already has
// are overwritten.
func (l *Library) InstantiateInto(w *ecs.World, name string, id ecs.EntityID) error {
	p, ok := l.prefabs[name]
	if !ok {
		return eris.Wrapf(ErrUnknownPrefab, "%q", name)
	}
	values := make([]any, len(p.components))
	for i, c := range p.components {
		v, err := c.decode(w)
		if err != nil {
			return eris.Wrapf(err, "prefab %q", name)
		}
		values[i] = v
	}
	for _, v := range values {
		w.InsertValue(id, v)
	}
	for _, child := range p.Children {
		if _, err := l.Instantiate(w, child, id); err != nil {
			return eris.Wrapf(err, "prefab %q child", name)
		}
	}
	l.log.Debug("prefab instantiated", zap.String("prefab", name), zap.Stringer("entity", id))
	return nil
}

func (c componentSpec) decode(w *ecs.World) (any, error) {
	if c.node == nil {
		return c.value, nil
	}
	t, ok := w.ComponentType(c.name)
	if !ok {
		return nil, eris.Wrapf(ecs.ErrUnknownComponent, "%q", c.name)
	}
	v := reflect.New(t)
	if err := c.node.Decode(v.Interface()); err != nil {
		return nil, eris.Wrapf(err, "component %q (line %d)", c.name, c.node.Line)
	}
	return v.Elem().Interface(), nil
}
