package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
	"github.com/stratum-ecs/stratum/internal/prefab"
)

func newEngine(t *testing.T, dir string) (*Engine, *ecs.World) {
	t.Helper()
	log := zaptest.NewLogger(t)
	w := ecs.NewWorld(log)
	if err := component.RegisterAll(w); err != nil {
		t.Fatal(err)
	}
	lib := prefab.NewLibrary(log)
	if err := lib.Define("dot", []any{component.Position{X: 2, Y: 3}}); err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(dir, w, lib, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e, w
}

func global(e *Engine, name string) lua.LValue {
	return e.vm.GetGlobal(name)
}

func TestWorldHierarchyFromLua(t *testing.T) {
	e, w := newEngine(t, "")
	err := e.DoString(`
		root = world.create()
		a = world.create(root)
		b = world.create(root)
		kids = #world.children(root)
		pa = world.parent(a)
		world.reparent(b, a)
		kids_after = #world.children(root)
		world.remove(root)
		alive_after = world.exists(b)
	`)
	if err != nil {
		t.Fatal(err)
	}
	if n := lua.LVAsNumber(global(e, "kids")); n != 2 {
		t.Errorf("kids = %v, want 2", n)
	}
	if global(e, "pa") != global(e, "root") {
		t.Errorf("parent(a) = %v, want root %v", global(e, "pa"), global(e, "root"))
	}
	if n := lua.LVAsNumber(global(e, "kids_after")); n != 1 {
		t.Errorf("kids after reparent = %v, want 1", n)
	}
	if global(e, "alive_after") != lua.LFalse {
		t.Error("grandchild survived removal of root")
	}
	if w.Len() != 0 {
		t.Errorf("world still has %d entities", w.Len())
	}
}

func TestComponentAccessFromLua(t *testing.T) {
	e, w := newEngine(t, "")
	err := e.DoString(`
		id = world.spawn("dot")
		p = world.get(id, "position")
		world.set(id, "position", {x = 7})
		world.set(id, "velocity", {x = 1, y = -1})
		has_vel = world.has(id, "velocity")
		moving = world.count("position", "velocity")
		world.erase(id, "velocity")
		moving_after = world.count("position", "velocity")
	`)
	if err != nil {
		t.Fatal(err)
	}
	p := global(e, "p").(*lua.LTable)
	if lua.LVAsNumber(p.RawGetString("x")) != 2 || lua.LVAsNumber(p.RawGetString("y")) != 3 {
		t.Errorf("get position = x:%v y:%v", p.RawGetString("x"), p.RawGetString("y"))
	}
	id := ecs.EntityID(uint64(lua.LVAsNumber(global(e, "id"))))
	pos, ok := ecs.Get[component.Position](w, id)
	if !ok || pos.X != 7 || pos.Y != 3 {
		t.Errorf("position after set = %+v, %v", pos, ok)
	}
	if global(e, "has_vel") != lua.LTrue {
		t.Error("velocity not inserted by set")
	}
	if lua.LVAsNumber(global(e, "moving")) != 1 || lua.LVAsNumber(global(e, "moving_after")) != 0 {
		t.Errorf("count = %v then %v, want 1 then 0", global(e, "moving"), global(e, "moving_after"))
	}
}

func TestUnknownComponentIsLuaError(t *testing.T) {
	e, _ := newEngine(t, "")
	if err := e.DoString(`world.has(world.create(), "mass")`); err == nil {
		t.Fatal("expected error for unknown component")
	}
	if err := e.DoString(`world.spawn("ghost")`); err == nil {
		t.Fatal("expected error for unknown prefab")
	}
}

func TestEntityIDsOutsideLuaRangeAreErrors(t *testing.T) {
	e, _ := newEngine(t, "")
	for _, src := range []string{
		`world.exists(1.5)`,
		`world.exists(-1)`,
		`world.create(2^60)`,
	} {
		if err := e.DoString(src); err == nil {
			t.Errorf("%s: expected error", src)
		}
	}

	big := ecs.NewEntityID(1, 1<<22)
	e.vm.SetGlobal("big", e.vm.NewFunction(func(L *lua.LState) int {
		pushEntity(L, big)
		return 1
	}))
	if err := e.DoString(`id = big()`); err == nil {
		t.Errorf("id %s was rounded into a Lua number", big)
	}
	small := ecs.NewEntityID(7, 1<<20)
	e.vm.SetGlobal("fits", e.vm.NewFunction(func(L *lua.LState) int {
		pushEntity(L, small)
		return 1
	}))
	if err := e.DoString(`id = fits()`); err != nil {
		t.Fatal(err)
	}
	if got := ecs.EntityID(uint64(lua.LVAsNumber(global(e, "id")))); got != small {
		t.Errorf("round trip = %s, want %s", got, small)
	}
}

func TestUpdateCallsScript(t *testing.T) {
	dir := t.TempDir()
	src := `
		elapsed = 0
		function update(dt)
			elapsed = elapsed + dt
		end
	`
	if err := os.WriteFile(filepath.Join(dir, "tick.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644); err != nil {
		t.Fatal(err)
	}
	e, _ := newEngine(t, dir)
	e.Update(250 * time.Millisecond)
	e.Update(250 * time.Millisecond)
	if got := lua.LVAsNumber(global(e, "elapsed")); got != 0.5 {
		t.Errorf("elapsed = %v, want 0.5", got)
	}
}

func TestBadScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644); err != nil {
		t.Fatal(err)
	}
	w := ecs.NewWorld(nil)
	if _, err := NewEngine(dir, w, nil, nil); err == nil {
		t.Fatal("expected load error")
	}
}
