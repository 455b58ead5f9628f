package prefab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"go.uber.org/zap/zaptest"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
)

const shipYAML = `
prefabs:
  - name: ship
    components:
      name: {value: "scout"}
      position: {x: 3, y: 4}
      velocity: {x: 1}
    children: [turret, turret]
  - name: turret
    components:
      offset: {x: 0.5, y: -0.5}
      tag: {label: gun}
`

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewWorld(zaptest.NewLogger(t))
	if err := component.RegisterAll(w); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return w
}

func TestParseAndInstantiate(t *testing.T) {
	w := newWorld(t)
	lib := NewLibrary(zaptest.NewLogger(t))
	if err := lib.Parse([]byte(shipYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lib.Count() != 2 {
		t.Fatalf("Count = %d, want 2", lib.Count())
	}
	p, _ := lib.Get("ship")
	if got := p.Components(); len(got) != 3 || got[0] != "name" || got[2] != "velocity" {
		t.Errorf("component order = %v", got)
	}

	id, err := lib.Instantiate(w, "ship", ecs.NullEntity)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	pos, ok := ecs.Get[component.Position](w, id)
	if !ok || pos.X != 3 || pos.Y != 4 {
		t.Errorf("position = %+v, %v", pos, ok)
	}
	vel, ok := ecs.Get[component.Velocity](w, id)
	if !ok || vel.X != 1 || vel.Y != 0 {
		t.Errorf("velocity = %+v, %v", vel, ok)
	}
	n := 0
	for child := range w.Children(id) {
		n++
		off, ok := ecs.Get[component.Offset](w, child)
		if !ok || off.X != 0.5 || off.Y != -0.5 {
			t.Errorf("child offset = %+v, %v", off, ok)
		}
		if w.Parent(child) != id {
			t.Errorf("child parent = %s, want %s", w.Parent(child), id)
		}
	}
	if n != 2 {
		t.Errorf("children = %d, want 2", n)
	}
	if w.Len() != 3 {
		t.Errorf("world entities = %d, want 3", w.Len())
	}
}

func TestInstancesDoNotShareState(t *testing.T) {
	w := newWorld(t)
	lib := NewLibrary(nil)
	if err := lib.Define("dot", []any{component.Position{X: 1}}); err != nil {
		t.Fatal(err)
	}
	a, err := lib.Instantiate(w, "dot", ecs.NullEntity)
	if err != nil {
		t.Fatal(err)
	}
	b, err := lib.Instantiate(w, "dot", ecs.NullEntity)
	if err != nil {
		t.Fatal(err)
	}
	pa, _ := ecs.Get[component.Position](w, a)
	pa.X = 10
	pb, _ := ecs.Get[component.Position](w, b)
	if pb.X != 1 {
		t.Errorf("second instance X = %v, want 1", pb.X)
	}
}

func TestInstantiateIntoOverwrites(t *testing.T) {
	w := newWorld(t)
	lib := NewLibrary(nil)
	if err := lib.Parse([]byte(shipYAML)); err != nil {
		t.Fatal(err)
	}
	id := w.Create(ecs.NullEntity)
	ecs.Insert(w, id, component.Position{X: -1, Y: -1})
	if err := lib.InstantiateInto(w, "turret", id); err != nil {
		t.Fatal(err)
	}
	if _, ok := ecs.Get[component.Tag](w, id); !ok {
		t.Error("tag not inserted")
	}
	if pos, _ := ecs.Get[component.Position](w, id); pos.X != -1 {
		t.Errorf("untouched position changed to %+v", pos)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"cycle", "prefabs:\n  - name: a\n    children: [b]\n  - name: b\n    children: [a]\n", ErrPrefabCycle},
		{"self", "prefabs:\n  - name: a\n    children: [a]\n", ErrPrefabCycle},
		{"unknown child", "prefabs:\n  - name: a\n    children: [ghost]\n", ErrUnknownPrefab},
		{"duplicate", "prefabs:\n  - name: a\n  - name: a\n", ErrDuplicatePrefab},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewLibrary(nil).Parse([]byte(tc.yaml))
			if !eris.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUnknownComponentName(t *testing.T) {
	w := newWorld(t)
	lib := NewLibrary(nil)
	if err := lib.Parse([]byte("prefabs:\n  - name: odd\n    components:\n      mass: {kg: 3}\n")); err != nil {
		t.Fatal(err)
	}
	before := w.Len()
	_, err := lib.Instantiate(w, "odd", ecs.NullEntity)
	if !eris.Is(err, ecs.ErrUnknownComponent) {
		t.Fatalf("err = %v, want ErrUnknownComponent", err)
	}
	if w.Len() != before {
		t.Errorf("failed instantiate left %d entities behind", w.Len()-before)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefabs.yaml")
	if err := os.WriteFile(path, []byte(shipYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := Load(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := lib.Names(); len(got) != 2 || got[0] != "ship" {
		t.Errorf("Names = %v", got)
	}
}
