package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/planetilt/host/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for game logic hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// Missing directories are skipped; callers fall back to the Go logic for any
// function the scripts do not define.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	for _, sub := range []string{"core", "motion"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromSource builds an engine from a single chunk of Lua code.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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

// Has reports whether the scripts define a global function name.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// MapMotion calls the Lua map_motion(ctx) function. ok is false when the
// function is missing, fails or returns something other than a table.
func (e *Engine) MapMotion(in world.MotionInput) (world.MotionResult, bool) {
	fn := e.vm.GetGlobal("map_motion")
	if fn == lua.LNil {
		return world.MotionResult{}, false
	}

	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(in.X))
	t.RawSetString("y", lua.LNumber(in.Y))

	pos := e.vm.NewTable()
	pos.RawSetString("x", lua.LNumber(in.Pos.X()))
	pos.RawSetString("y", lua.LNumber(in.Pos.Y()))
	pos.RawSetString("z", lua.LNumber(in.Pos.Z()))
	t.RawSetString("pos", pos)

	m := e.vm.NewTable()
	m.RawSetString("x", lua.LNumber(in.Motion.X))
	m.RawSetString("y", lua.LNumber(in.Motion.Y))
	m.RawSetString("z", lua.LNumber(in.Motion.Z))
	t.RawSetString("motion", m)

	vp := e.vm.NewTable()
	vp.RawSetString("width", lua.LNumber(in.Viewport.Width))
	vp.RawSetString("height", lua.LNumber(in.Viewport.Height))
	t.RawSetString("viewport", vp)

	f := e.vm.NewTable()
	f.RawSetString("width", lua.LNumber(in.Field.Width))
	f.RawSetString("height", lua.LNumber(in.Field.Height))
	f.RawSetString("scale", lua.LNumber(in.Field.Scale))
	t.RawSetString("field", f)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua map_motion error", zap.Error(err))
		return world.MotionResult{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua map_motion returned non-table")
		return world.MotionResult{}, false
	}

	res := world.MotionResult{
		X:  lNum(rt, "x"),
		Y:  lNum(rt, "y"),
		TX: lNum(rt, "tx"),
		TY: lNum(rt, "ty"),
	}
	if pt, ok := rt.RawGetString("pos").(*lua.LTable); ok {
		res.Pos = mgl64.Vec3{lNum(pt, "x"), lNum(pt, "y"), lNum(pt, "z")}
	}
	return res, true
}

// FireFlashTicks calls Lua fire_flash_ticks(tick_ms, flash_ms), flash_ms
// being the configured flash length. Returns fallback when the function is
// missing or yields less than one tick.
func (e *Engine) FireFlashTicks(tickMs, flashMs, fallback int) int {
	if !e.Has("fire_flash_ticks") {
		return fallback
	}
	n := e.callIntFunc("fire_flash_ticks", tickMs, flashMs)
	if n < 1 {
		return fallback
	}
	return n
}

// --- Lua helpers ---

// lNum reads a number field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) int {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
