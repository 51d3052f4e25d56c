package script

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"

	"Lunar3D/internal/scene"
)

// Lua type metatable names for the geometry values the sandbox exposes.
const (
	vec3TypeName   = "vector3"
	quatTypeName   = "quaternion"
	mat4TypeName   = "matrix4"
	colorTypeName  = "color"
	boundsTypeName = "bounds"
	rayTypeName    = "ray"
	planeTypeName  = "plane"
	objectTypeName = "object"
)

// Color is an RGBA value in [0,1] channels. Distinct type so property
// conversion can tell it apart from quaternions.
type Color mgl32.Vec4

// Bounds is an axis-aligned box given by center and size.
type Bounds struct {
	Center mgl32.Vec3
	Size   mgl32.Vec3
}

type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

func pushVec3(L *lua.LState, v mgl32.Vec3) lua.LValue {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(vec3TypeName))
	return ud
}

func pushQuat(L *lua.LState, q mgl32.Quat) lua.LValue {
	ud := L.NewUserData()
	ud.Value = q
	L.SetMetatable(ud, L.GetTypeMetatable(quatTypeName))
	return ud
}

func pushMat4(L *lua.LState, m mgl32.Mat4) lua.LValue {
	ud := L.NewUserData()
	ud.Value = m
	L.SetMetatable(ud, L.GetTypeMetatable(mat4TypeName))
	return ud
}

func pushColor(L *lua.LState, c Color) lua.LValue {
	ud := L.NewUserData()
	ud.Value = c
	L.SetMetatable(ud, L.GetTypeMetatable(colorTypeName))
	return ud
}

func pushObject(L *lua.LState, obj *scene.Object) lua.LValue {
	if obj == nil {
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = obj
	L.SetMetatable(ud, L.GetTypeMetatable(objectTypeName))
	return ud
}

func checkVec3(L *lua.LState, n int) mgl32.Vec3 {
	ud := L.CheckUserData(n)
	if v, ok := ud.Value.(mgl32.Vec3); ok {
		return v
	}
	L.ArgError(n, "vector3 expected")
	return mgl32.Vec3{}
}

func checkQuat(L *lua.LState, n int) mgl32.Quat {
	ud := L.CheckUserData(n)
	if q, ok := ud.Value.(mgl32.Quat); ok {
		return q
	}
	L.ArgError(n, "quaternion expected")
	return mgl32.QuatIdent()
}

func checkMat4(L *lua.LState, n int) mgl32.Mat4 {
	ud := L.CheckUserData(n)
	if m, ok := ud.Value.(mgl32.Mat4); ok {
		return m
	}
	L.ArgError(n, "matrix4 expected")
	return mgl32.Ident4()
}

func checkColor(L *lua.LState, n int) Color {
	ud := L.CheckUserData(n)
	if c, ok := ud.Value.(Color); ok {
		return c
	}
	L.ArgError(n, "color expected")
	return Color{}
}

func checkObject(L *lua.LState, n int) *scene.Object {
	ud := L.CheckUserData(n)
	if obj, ok := ud.Value.(*scene.Object); ok {
		return obj
	}
	L.ArgError(n, "object expected")
	return nil
}

// optVec3Args reads either a vector3 userdata or three numbers starting at n.
func optVec3Args(L *lua.LState, n int) mgl32.Vec3 {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if v, ok := ud.Value.(mgl32.Vec3); ok {
			return v
		}
		L.ArgError(n, "vector3 expected")
	}
	x := float32(L.CheckNumber(n))
	y := float32(L.CheckNumber(n + 1))
	z := float32(L.CheckNumber(n + 2))
	return mgl32.Vec3{x, y, z}
}

const maxConvertDepth = 16

// luaToGo converts a sandbox value to a plain Go value suitable for the
// property record and JSON round trips. Functions and host handles drop to
// nil rather than leaking references out of the instance.
func luaToGo(v lua.LValue) interface{} {
	return luaToGoDepth(v, 0)
}

func luaToGoDepth(v lua.LValue, depth int) interface{} {
	if depth > maxConvertDepth {
		return nil
	}
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		switch inner := val.Value.(type) {
		case mgl32.Vec3:
			return [3]float64{float64(inner.X()), float64(inner.Y()), float64(inner.Z())}
		case Color:
			return [4]float64{float64(inner[0]), float64(inner[1]), float64(inner[2]), float64(inner[3])}
		}
		return nil
	case *lua.LTable:
		n := val.Len()
		if n > 0 {
			arr := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, luaToGoDepth(val.RawGetInt(i), depth+1))
			}
			return arr
		}
		m := make(map[string]interface{})
		val.ForEach(func(k, item lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaToGoDepth(item, depth+1)
			}
		})
		return m
	}
	return nil
}

// goToLua converts a plain Go value into a sandbox value.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	return goToLuaDepth(L, v, 0)
}

func goToLuaDepth(L *lua.LState, v interface{}, depth int) lua.LValue {
	if depth > maxConvertDepth {
		return lua.LNil
	}
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case [3]float64:
		return pushVec3(L, mgl32.Vec3{float32(val[0]), float32(val[1]), float32(val[2])})
	case [4]float64:
		return pushColor(L, Color{float32(val[0]), float32(val[1]), float32(val[2]), float32(val[3])})
	case []interface{}:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(goToLuaDepth(L, item, depth+1))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, goToLuaDepth(L, item, depth+1))
		}
		return tbl
	}
	return lua.LString(fmt.Sprintf("%v", v))
}
