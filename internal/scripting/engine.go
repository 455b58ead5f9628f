package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/stratum-ecs/stratum/internal/core/ecs"
	"github.com/stratum-ecs/stratum/internal/prefab"
)

// Engine wraps a single gopher-lua VM bound to one world.
// Single-goroutine access only (game loop).
type Engine struct {
	vm      *lua.LState
	log     *zap.Logger
	world   *ecs.World
	prefabs *prefab.Library
}

// NewEngine creates a Lua engine exposing world to scripts and loads all
// scripts from the given directory. prefabs may be nil, in which case
// world.spawn raises a Lua error.
func NewEngine(scriptsDir string, world *ecs.World, prefabs *prefab.Library, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, world: world, prefabs: prefabs}
	e.openWorld()

	if scriptsDir == "" {
		return e, nil
	}
	// Load core scripts first, then the top level
	for _, dir := range []string{filepath.Join(scriptsDir, "core"), scriptsDir} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Update calls the global Lua function update(dt) if scripts define one.
func (e *Engine) Update(dt time.Duration) {
	fn := e.vm.GetGlobal("update")
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt.Seconds())); err != nil {
		e.log.Error("lua update error", zap.Error(err))
	}
}

// openWorld installs the global table scripts use to reach the world.
// Entity ids travel as Lua numbers.
func (e *Engine) openWorld() {
	mod := e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"create":   e.luaCreate,
		"remove":   e.luaRemove,
		"exists":   e.luaExists,
		"parent":   e.luaParent,
		"children": e.luaChildren,
		"reparent": e.luaReparent,
		"spawn":    e.luaSpawn,
		"erase":    e.luaErase,
		"has":      e.luaHas,
		"get":      e.luaGet,
		"set":      e.luaSet,
		"count":    e.luaCount,
	})
	e.vm.SetGlobal("world", mod)
}

// maxLuaEntity is the largest id a Lua number holds exactly.
const maxLuaEntity = 1 << 53

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	return toEntity(L, n, L.CheckNumber(n))
}

func optEntity(L *lua.LState, n int) ecs.EntityID {
	return toEntity(L, n, L.OptNumber(n, 0))
}

func toEntity(L *lua.LState, n int, v lua.LNumber) ecs.EntityID {
	f := float64(v)
	if f < 0 || f > maxLuaEntity || f != math.Trunc(f) {
		L.ArgError(n, "invalid entity id")
		return ecs.NullEntity
	}
	return ecs.EntityID(uint64(f))
}

// entityValue converts id for Lua, raising an error rather than rounding
// ids past the exact float range.
func entityValue(L *lua.LState, id ecs.EntityID) lua.LValue {
	if uint64(id) > maxLuaEntity {
		L.RaiseError("entity %s does not fit a Lua number", id)
		return lua.LNil
	}
	return lua.LNumber(uint64(id))
}

func pushEntity(L *lua.LState, id ecs.EntityID) {
	L.Push(entityValue(L, id))
}

// checkComponent resolves argument n as a registered component name.
func (e *Engine) checkComponent(L *lua.LState, n int) (ecs.TypeID, reflect.Type) {
	name := L.CheckString(n)
	id, t, ok := e.world.Registry().Lookup(name)
	if !ok {
		L.ArgError(n, "unknown component "+name)
	}
	return id, t
}

func (e *Engine) luaCreate(L *lua.LState) int {
	pushEntity(L, e.world.Create(optEntity(L, 1)))
	return 1
}

func (e *Engine) luaRemove(L *lua.LState) int {
	e.world.Remove(checkEntity(L, 1))
	return 0
}

func (e *Engine) luaExists(L *lua.LState) int {
	L.Push(lua.LBool(e.world.Alive(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaParent(L *lua.LState) int {
	pushEntity(L, e.world.Parent(checkEntity(L, 1)))
	return 1
}

func (e *Engine) luaChildren(L *lua.LState) int {
	t := L.NewTable()
	for child := range e.world.Children(checkEntity(L, 1)) {
		t.Append(entityValue(L, child))
	}
	L.Push(t)
	return 1
}

func (e *Engine) luaReparent(L *lua.LState) int {
	e.world.Reparent(checkEntity(L, 1), optEntity(L, 2))
	return 0
}

func (e *Engine) luaSpawn(L *lua.LState) int {
	name := L.CheckString(1)
	if e.prefabs == nil {
		L.RaiseError("spawn %q: no prefab library loaded", name)
		return 0
	}
	id, err := e.prefabs.Instantiate(e.world, name, optEntity(L, 2))
	if err != nil {
		L.RaiseError("spawn %q: %s", name, err.Error())
		return 0
	}
	pushEntity(L, id)
	return 1
}

func (e *Engine) luaErase(L *lua.LState) int {
	id := checkEntity(L, 1)
	typ, _ := e.checkComponent(L, 2)
	e.world.EraseType(id, typ)
	return 0
}

func (e *Engine) luaHas(L *lua.LState) int {
	id := checkEntity(L, 1)
	typ, _ := e.checkComponent(L, 2)
	L.Push(lua.LBool(e.world.HasType(id, typ)))
	return 1
}

// luaGet returns a copy of the component's exported fields, or nil.
func (e *Engine) luaGet(L *lua.LState) int {
	id := checkEntity(L, 1)
	typ, _ := e.checkComponent(L, 2)
	v, ok := e.world.GetValue(id, typ)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toTable(L, reflect.ValueOf(v).Elem()))
	return 1
}

// luaSet updates the listed fields in place, or inserts a new component
// built from the table when the entity lacks one.
func (e *Engine) luaSet(L *lua.LState) int {
	id := checkEntity(L, 1)
	typ, rt := e.checkComponent(L, 2)
	fields := L.CheckTable(3)
	if v, ok := e.world.GetValue(id, typ); ok {
		fromTable(fields, reflect.ValueOf(v).Elem())
		return 0
	}
	nv := reflect.New(rt).Elem()
	fromTable(fields, nv)
	e.world.InsertValue(id, nv.Interface())
	return 0
}

func (e *Engine) luaCount(L *lua.LState) int {
	types := make([]ecs.TypeID, 0, L.GetTop())
	for n := 1; n <= L.GetTop(); n++ {
		typ, _ := e.checkComponent(L, n)
		types = append(types, typ)
	}
	L.Push(lua.LNumber(e.world.Query(types, nil).Count()))
	return 1
}

// --- Lua helpers ---

// fieldName is the yaml tag name of a field, so scripts and prefab files
// spell fields the same way.
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}

func toTable(L *lua.LState, v reflect.Value) *lua.LTable {
	t := L.NewTable()
	if v.Kind() != reflect.Struct {
		return t
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		key := fieldName(f)
		switch fv.Kind() {
		case reflect.Float32, reflect.Float64:
			t.RawSetString(key, lua.LNumber(fv.Float()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			t.RawSetString(key, lua.LNumber(fv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			t.RawSetString(key, lua.LNumber(fv.Uint()))
		case reflect.String:
			t.RawSetString(key, lua.LString(fv.String()))
		case reflect.Bool:
			t.RawSetString(key, lua.LBool(fv.Bool()))
		}
	}
	return t
}

// fromTable copies the fields present in t into v. Fields of other kinds
// and keys of the wrong Lua type are ignored.
func fromTable(t *lua.LTable, v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		lv := t.RawGetString(fieldName(f))
		if lv == lua.LNil {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Float32, reflect.Float64:
			if n, ok := lv.(lua.LNumber); ok {
				fv.SetFloat(float64(n))
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if n, ok := lv.(lua.LNumber); ok {
				fv.SetInt(int64(n))
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if n, ok := lv.(lua.LNumber); ok && n >= 0 {
				fv.SetUint(uint64(n))
			}
		case reflect.String:
			fv.SetString(lua.LVAsString(lv))
		case reflect.Bool:
			fv.SetBool(lua.LVAsBool(lv))
		}
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
