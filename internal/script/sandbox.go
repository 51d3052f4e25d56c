package script

import (
	"encoding/json"
	"time"

	"github.com/aquilax/go-perlin"
	lua "github.com/yuin/gopher-lua"

	"Lunar3D/internal/input"
	"Lunar3D/internal/logger"
	"Lunar3D/internal/scene"
)

// TimeSource is the frame-clock snapshot scripts read. The engine clock
// implements it.
type TimeSource interface {
	Delta() float64
	FixedDelta() float64
	Elapsed() float64
	Frame() int64
	FPS() float64
	TimeScale() float64
	SetTimeScale(scale float64)
}

// Env bundles the host capabilities the sandbox is allowed to expose.
// Everything not reachable through Env is withheld from scripts.
type Env struct {
	Scene *scene.Scene
	Input input.Source
	Time  TimeSource
	Sink  *logger.Sink
}

// Globals removed from the base library after loading it. Scripts get no
// dynamic code loading, no metatable tampering and no environment access.
var deniedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require",
	"collectgarbage", "rawget", "rawset", "rawequal", "rawlen",
	"getmetatable", "setmetatable", "getfenv", "setfenv",
	"module", "newproxy", "coroutine", "os", "io", "debug", "package",
}

var noiseGen = perlin.NewPerlin(2, 2, 3, 1)

// newSandbox builds a restricted Lua state bound to one object handle.
// Only base/table/string/math libraries are opened; the denied globals are
// stripped afterwards and the host binding tables are installed explicitly.
func newSandbox(env Env, displayName string, self *scene.Object) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range deniedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	registerGeometry(L)
	registerObjectType(L)
	installMathExtras(L)
	installJSON(L)
	installDate(L, env)
	installLog(L, env, displayName)
	installScene(L, env)
	installInput(L, env)
	installTime(L, env)

	// print goes to the sink like everything else.
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		msg := ""
		for i := 1; i <= top; i++ {
			if i > 1 {
				msg += "\t"
			}
			msg += L.Get(i).String()
		}
		if env.Sink != nil {
			env.Sink.Infof(displayName, "%s", msg)
		}
		return 0
	}))

	// Instance-local scratch state, preserved across hot reloads.
	L.SetGlobal("state", L.NewTable())
	L.SetGlobal("self", pushObject(L, self))

	return L
}

func registerObjectType(L *lua.LState) {
	mt := L.NewTypeMetatable(objectTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"getName": func(L *lua.LState) int {
			L.Push(lua.LString(checkObject(L, 1).Name))
			return 1
		},
		"getTag": func(L *lua.LState) int {
			L.Push(lua.LString(checkObject(L, 1).Tag))
			return 1
		},
		"setTag": func(L *lua.LState) int {
			checkObject(L, 1).Tag = L.CheckString(2)
			return 0
		},
		"getVisible": func(L *lua.LState) int {
			L.Push(lua.LBool(checkObject(L, 1).Visible))
			return 1
		},
		"setVisible": func(L *lua.LState) int {
			checkObject(L, 1).Visible = lua.LVAsBool(L.Get(2))
			return 0
		},
		"getPosition": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.Position))
			return 1
		},
		"setPosition": func(L *lua.LState) int {
			checkObject(L, 1).Transform.SetPosition(optVec3Args(L, 2))
			return 0
		},
		"getRotation": func(L *lua.LState) int {
			x, y, z := checkObject(L, 1).Transform.Euler()
			L.Push(lua.LNumber(x))
			L.Push(lua.LNumber(y))
			L.Push(lua.LNumber(z))
			return 3
		},
		"setRotation": func(L *lua.LState) int {
			obj := checkObject(L, 1)
			x := float32(L.CheckNumber(2))
			y := float32(L.CheckNumber(3))
			z := float32(L.CheckNumber(4))
			obj.Transform.SetEuler(x, y, z)
			return 0
		},
		"getScale": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.Scale))
			return 1
		},
		"setScale": func(L *lua.LState) int {
			checkObject(L, 1).Transform.SetScale(optVec3Args(L, 2))
			return 0
		},
		"translate": func(L *lua.LState) int {
			checkObject(L, 1).Transform.Translate(optVec3Args(L, 2))
			return 0
		},
		"rotate": func(L *lua.LState) int {
			obj := checkObject(L, 1)
			axis := checkVec3(L, 2)
			angle := float32(L.CheckNumber(3))
			obj.Transform.Rotate(axis, angle)
			return 0
		},
		"worldPosition": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.WorldPosition()))
			return 1
		},
		"worldRotation": func(L *lua.LState) int {
			L.Push(pushQuat(L, checkObject(L, 1).Transform.WorldRotation()))
			return 1
		},
		"worldScale": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.WorldScale()))
			return 1
		},
		"forward": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.Forward()))
			return 1
		},
		"right": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.Right()))
			return 1
		},
		"up": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkObject(L, 1).Transform.Up()))
			return 1
		},
		"getProperty": func(L *lua.LState) int {
			obj := checkObject(L, 1)
			key := L.CheckString(2)
			L.Push(goToLua(L, obj.Properties[key]))
			return 1
		},
		"setProperty": func(L *lua.LState) int {
			obj := checkObject(L, 1)
			key := L.CheckString(2)
			obj.Properties[key] = luaToGo(L.Get(3))
			return 0
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("object(" + checkObject(L, 1).Name + ")"))
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkObject(L, 1) == checkObject(L, 2)))
		return 1
	}))
}

func installMathExtras(L *lua.LState) {
	mathTbl, ok := L.GetGlobal(lua.MathLibName).(*lua.LTable)
	if !ok {
		return
	}
	L.SetField(mathTbl, "clamp", L.NewFunction(func(L *lua.LState) int {
		v := float64(L.CheckNumber(1))
		lo := float64(L.CheckNumber(2))
		hi := float64(L.CheckNumber(3))
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		L.Push(lua.LNumber(v))
		return 1
	}))
	L.SetField(mathTbl, "lerp", L.NewFunction(func(L *lua.LState) int {
		a := float64(L.CheckNumber(1))
		b := float64(L.CheckNumber(2))
		t := float64(L.CheckNumber(3))
		L.Push(lua.LNumber(a + (b-a)*t))
		return 1
	}))
	L.SetField(mathTbl, "sign", L.NewFunction(func(L *lua.LState) int {
		v := float64(L.CheckNumber(1))
		switch {
		case v > 0:
			L.Push(lua.LNumber(1))
		case v < 0:
			L.Push(lua.LNumber(-1))
		default:
			L.Push(lua.LNumber(0))
		}
		return 1
	}))
	L.SetField(mathTbl, "noise", L.NewFunction(func(L *lua.LState) int {
		x := float64(L.CheckNumber(1))
		y := float64(L.OptNumber(2, 0))
		z := float64(L.OptNumber(3, 0))
		L.Push(lua.LNumber(noiseGen.Noise3D(x, y, z)))
		return 1
	}))
}

func installJSON(L *lua.LState) {
	tbl := L.NewTable()
	L.SetField(tbl, "encode", L.NewFunction(func(L *lua.LState) int {
		data, err := json.Marshal(luaToGo(L.CheckAny(1)))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(data))
		return 1
	}))
	L.SetField(tbl, "decode", L.NewFunction(func(L *lua.LState) int {
		var out interface{}
		if err := json.Unmarshal([]byte(L.CheckString(1)), &out); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(goToLua(L, out))
		return 1
	}))
	L.SetGlobal("json", tbl)
}

func installDate(L *lua.LState, env Env) {
	tbl := L.NewTable()
	L.SetField(tbl, "now", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(float64(time.Now().UnixNano()) / float64(time.Second)))
		return 1
	}))
	L.SetField(tbl, "iso", L.NewFunction(func(L *lua.LState) int {
		t := time.Now()
		if L.GetTop() >= 1 {
			secs := float64(L.CheckNumber(1))
			t = time.Unix(0, int64(secs*float64(time.Second)))
		}
		L.Push(lua.LString(t.UTC().Format(time.RFC3339)))
		return 1
	}))
	L.SetField(tbl, "clock", L.NewFunction(func(L *lua.LState) int {
		if env.Time != nil {
			L.Push(lua.LNumber(env.Time.Elapsed()))
		} else {
			L.Push(lua.LNumber(0))
		}
		return 1
	}))
	L.SetGlobal("date", tbl)
}

func installLog(L *lua.LState, env Env, displayName string) {
	emit := func(level string) lua.LGFunction {
		return func(L *lua.LState) int {
			if env.Sink == nil {
				return 0
			}
			msg := L.Get(1).String()
			switch level {
			case "warn":
				env.Sink.Warnf(displayName, "%s", msg)
			case "error":
				env.Sink.Errorf(displayName, "%s", msg)
			default:
				env.Sink.Infof(displayName, "%s", msg)
			}
			return 0
		}
	}
	tbl := L.NewTable()
	L.SetField(tbl, "info", L.NewFunction(emit("info")))
	L.SetField(tbl, "warn", L.NewFunction(emit("warn")))
	L.SetField(tbl, "error", L.NewFunction(emit("error")))
	L.SetGlobal("log", tbl)
}

func installScene(L *lua.LState, env Env) {
	pushList := func(L *lua.LState, objs []*scene.Object) int {
		tbl := L.NewTable()
		for _, obj := range objs {
			tbl.Append(pushObject(L, obj))
		}
		L.Push(tbl)
		return 1
	}
	tbl := L.NewTable()
	L.SetField(tbl, "find", L.NewFunction(func(L *lua.LState) int {
		if env.Scene == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(pushObject(L, env.Scene.FindByName(L.CheckString(1))))
		return 1
	}))
	L.SetField(tbl, "findByTag", L.NewFunction(func(L *lua.LState) int {
		if env.Scene == nil {
			return pushList(L, nil)
		}
		return pushList(L, env.Scene.FindByTag(L.CheckString(1)))
	}))
	L.SetField(tbl, "all", L.NewFunction(func(L *lua.LState) int {
		if env.Scene == nil {
			return pushList(L, nil)
		}
		return pushList(L, env.Scene.Objects())
	}))
	L.SetField(tbl, "childrenOf", L.NewFunction(func(L *lua.LState) int {
		if env.Scene == nil {
			return pushList(L, nil)
		}
		return pushList(L, env.Scene.ChildrenOf(checkObject(L, 1)))
	}))
	L.SetField(tbl, "parentOf", L.NewFunction(func(L *lua.LState) int {
		if env.Scene == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(pushObject(L, env.Scene.ParentOf(checkObject(L, 1))))
		return 1
	}))
	L.SetGlobal("scene", tbl)
}

func installInput(L *lua.LState, env Env) {
	keyQuery := func(q func(string) bool) lua.LGFunction {
		return func(L *lua.LState) int {
			if env.Input == nil {
				L.Push(lua.LFalse)
				return 1
			}
			L.Push(lua.LBool(q(L.CheckString(1))))
			return 1
		}
	}
	mouseQuery := func(q func(int) bool) lua.LGFunction {
		return func(L *lua.LState) int {
			if env.Input == nil {
				L.Push(lua.LFalse)
				return 1
			}
			L.Push(lua.LBool(q(int(L.CheckNumber(1)))))
			return 1
		}
	}
	tbl := L.NewTable()
	if env.Input != nil {
		L.SetField(tbl, "keyHeld", L.NewFunction(keyQuery(env.Input.KeyHeld)))
		L.SetField(tbl, "keyPressed", L.NewFunction(keyQuery(env.Input.KeyPressed)))
		L.SetField(tbl, "keyReleased", L.NewFunction(keyQuery(env.Input.KeyReleased)))
		L.SetField(tbl, "mouseHeld", L.NewFunction(mouseQuery(env.Input.MouseHeld)))
		L.SetField(tbl, "mousePressed", L.NewFunction(mouseQuery(env.Input.MousePressed)))
		L.SetField(tbl, "mouseReleased", L.NewFunction(mouseQuery(env.Input.MouseReleased)))
	} else {
		stub := func(L *lua.LState) int { L.Push(lua.LFalse); return 1 }
		for _, name := range []string{"keyHeld", "keyPressed", "keyReleased", "mouseHeld", "mousePressed", "mouseReleased"} {
			L.SetField(tbl, name, L.NewFunction(stub))
		}
	}
	L.SetField(tbl, "pointer", L.NewFunction(func(L *lua.LState) int {
		if env.Input == nil {
			L.Push(lua.LNumber(0))
			L.Push(lua.LNumber(0))
			return 2
		}
		x, y := env.Input.PointerPosition()
		L.Push(lua.LNumber(x))
		L.Push(lua.LNumber(y))
		return 2
	}))
	L.SetField(tbl, "pointerDelta", L.NewFunction(func(L *lua.LState) int {
		if env.Input == nil {
			L.Push(lua.LNumber(0))
			L.Push(lua.LNumber(0))
			return 2
		}
		dx, dy := env.Input.PointerDelta()
		L.Push(lua.LNumber(dx))
		L.Push(lua.LNumber(dy))
		return 2
	}))
	L.SetField(tbl, "scroll", L.NewFunction(func(L *lua.LState) int {
		if env.Input == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(env.Input.ScrollDelta()))
		return 1
	}))
	L.SetField(tbl, "axis", L.NewFunction(func(L *lua.LState) int {
		if env.Input == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(env.Input.Axis(L.CheckString(1))))
		return 1
	}))
	L.SetGlobal("input", tbl)
}

func installTime(L *lua.LState, env Env) {
	number := func(q func() float64) lua.LGFunction {
		return func(L *lua.LState) int {
			if env.Time == nil {
				L.Push(lua.LNumber(0))
				return 1
			}
			L.Push(lua.LNumber(q()))
			return 1
		}
	}
	tbl := L.NewTable()
	L.SetField(tbl, "delta", L.NewFunction(number(func() float64 { return env.Time.Delta() })))
	L.SetField(tbl, "fixedDelta", L.NewFunction(number(func() float64 { return env.Time.FixedDelta() })))
	L.SetField(tbl, "elapsed", L.NewFunction(number(func() float64 { return env.Time.Elapsed() })))
	L.SetField(tbl, "fps", L.NewFunction(number(func() float64 { return env.Time.FPS() })))
	L.SetField(tbl, "timeScale", L.NewFunction(number(func() float64 { return env.Time.TimeScale() })))
	L.SetField(tbl, "frame", L.NewFunction(func(L *lua.LState) int {
		if env.Time == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(env.Time.Frame()))
		return 1
	}))
	L.SetField(tbl, "setTimeScale", L.NewFunction(func(L *lua.LState) int {
		if env.Time != nil {
			env.Time.SetTimeScale(float64(L.CheckNumber(1)))
		}
		return 0
	}))
	L.SetGlobal("time", tbl)
}
