package script

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
)

// registerGeometry installs the math/geometry value types and their
// constructors into a sandbox state.
func registerGeometry(L *lua.LState) {
	registerVec3(L)
	registerQuat(L)
	registerMat4(L)
	registerColor(L)
	registerBounds(L)
	registerRay(L)
	registerPlane(L)
}

func registerVec3(L *lua.LState) {
	mt := L.NewTypeMetatable(vec3TypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"x": func(L *lua.LState) int { L.Push(lua.LNumber(checkVec3(L, 1).X())); return 1 },
		"y": func(L *lua.LState) int { L.Push(lua.LNumber(checkVec3(L, 1).Y())); return 1 },
		"z": func(L *lua.LState) int { L.Push(lua.LNumber(checkVec3(L, 1).Z())); return 1 },
		"add": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkVec3(L, 1).Add(checkVec3(L, 2))))
			return 1
		},
		"sub": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkVec3(L, 1).Sub(checkVec3(L, 2))))
			return 1
		},
		"scale": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkVec3(L, 1).Mul(float32(L.CheckNumber(2)))))
			return 1
		},
		"dot": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVec3(L, 1).Dot(checkVec3(L, 2))))
			return 1
		},
		"cross": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkVec3(L, 1).Cross(checkVec3(L, 2))))
			return 1
		},
		"length": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVec3(L, 1).Len()))
			return 1
		},
		"normalize": func(L *lua.LState) int {
			v := checkVec3(L, 1)
			if v.Len() == 0 {
				L.Push(pushVec3(L, v))
			} else {
				L.Push(pushVec3(L, v.Normalize()))
			}
			return 1
		},
		"distance": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVec3(L, 1).Sub(checkVec3(L, 2)).Len()))
			return 1
		},
		"lerp": func(L *lua.LState) int {
			a, b := checkVec3(L, 1), checkVec3(L, 2)
			t := float32(L.CheckNumber(3))
			L.Push(pushVec3(L, a.Add(b.Sub(a).Mul(t))))
			return 1
		},
	}))
	L.SetField(mt, "__add", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushVec3(L, checkVec3(L, 1).Add(checkVec3(L, 2))))
		return 1
	}))
	L.SetField(mt, "__sub", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushVec3(L, checkVec3(L, 1).Sub(checkVec3(L, 2))))
		return 1
	}))
	L.SetField(mt, "__mul", L.NewFunction(func(L *lua.LState) int {
		// Either vec*number or number*vec.
		if n, ok := L.Get(1).(lua.LNumber); ok {
			L.Push(pushVec3(L, checkVec3(L, 2).Mul(float32(n))))
			return 1
		}
		L.Push(pushVec3(L, checkVec3(L, 1).Mul(float32(L.CheckNumber(2)))))
		return 1
	}))
	L.SetField(mt, "__unm", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushVec3(L, checkVec3(L, 1).Mul(-1)))
		return 1
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkVec3(L, 1) == checkVec3(L, 2)))
		return 1
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		v := checkVec3(L, 1)
		L.Push(lua.LString(fmt.Sprintf("vector3(%g, %g, %g)", v.X(), v.Y(), v.Z())))
		return 1
	}))

	L.SetGlobal("vector3", L.NewFunction(func(L *lua.LState) int {
		x := float32(L.OptNumber(1, 0))
		y := float32(L.OptNumber(2, 0))
		z := float32(L.OptNumber(3, 0))
		L.Push(pushVec3(L, mgl32.Vec3{x, y, z}))
		return 1
	}))
}

func registerQuat(L *lua.LState) {
	mt := L.NewTypeMetatable(quatTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"x": func(L *lua.LState) int { L.Push(lua.LNumber(checkQuat(L, 1).X())); return 1 },
		"y": func(L *lua.LState) int { L.Push(lua.LNumber(checkQuat(L, 1).Y())); return 1 },
		"z": func(L *lua.LState) int { L.Push(lua.LNumber(checkQuat(L, 1).Z())); return 1 },
		"w": func(L *lua.LState) int { L.Push(lua.LNumber(checkQuat(L, 1).W)); return 1 },
		"mul": func(L *lua.LState) int {
			L.Push(pushQuat(L, checkQuat(L, 1).Mul(checkQuat(L, 2))))
			return 1
		},
		"rotate": func(L *lua.LState) int {
			L.Push(pushVec3(L, checkQuat(L, 1).Rotate(checkVec3(L, 2))))
			return 1
		},
		"normalize": func(L *lua.LState) int {
			L.Push(pushQuat(L, checkQuat(L, 1).Normalize()))
			return 1
		},
	}))
	L.SetField(mt, "__mul", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushQuat(L, checkQuat(L, 1).Mul(checkQuat(L, 2))))
		return 1
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		q := checkQuat(L, 1)
		L.Push(lua.LString(fmt.Sprintf("quaternion(%g, %g, %g, %g)", q.X(), q.Y(), q.Z(), q.W)))
		return 1
	}))

	L.SetGlobal("quaternion", L.NewFunction(func(L *lua.LState) int {
		x := float32(L.OptNumber(1, 0))
		y := float32(L.OptNumber(2, 0))
		z := float32(L.OptNumber(3, 0))
		w := float32(L.OptNumber(4, 1))
		L.Push(pushQuat(L, mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}}))
		return 1
	}))
	L.SetGlobal("quaternionAxisAngle", L.NewFunction(func(L *lua.LState) int {
		axis := checkVec3(L, 1)
		angle := float32(L.CheckNumber(2))
		L.Push(pushQuat(L, mgl32.QuatRotate(angle, axis)))
		return 1
	}))
	L.SetGlobal("quaternionEuler", L.NewFunction(func(L *lua.LState) int {
		x := float32(L.CheckNumber(1))
		y := float32(L.CheckNumber(2))
		z := float32(L.CheckNumber(3))
		L.Push(pushQuat(L, mgl32.AnglesToQuat(x, y, z, mgl32.XYZ)))
		return 1
	}))
}

func registerMat4(L *lua.LState) {
	mt := L.NewTypeMetatable(mat4TypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"mul": func(L *lua.LState) int {
			L.Push(pushMat4(L, checkMat4(L, 1).Mul4(checkMat4(L, 2))))
			return 1
		},
		"translate": func(L *lua.LState) int {
			v := checkVec3(L, 2)
			L.Push(pushMat4(L, checkMat4(L, 1).Mul4(mgl32.Translate3D(v.X(), v.Y(), v.Z()))))
			return 1
		},
		"rotate": func(L *lua.LState) int {
			L.Push(pushMat4(L, checkMat4(L, 1).Mul4(checkQuat(L, 2).Mat4())))
			return 1
		},
		"scale": func(L *lua.LState) int {
			v := checkVec3(L, 2)
			L.Push(pushMat4(L, checkMat4(L, 1).Mul4(mgl32.Scale3D(v.X(), v.Y(), v.Z()))))
			return 1
		},
		"transform": func(L *lua.LState) int {
			m := checkMat4(L, 1)
			v := checkVec3(L, 2)
			out := m.Mul4x1(v.Vec4(1))
			L.Push(pushVec3(L, out.Vec3()))
			return 1
		},
	}))
	L.SetField(mt, "__mul", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushMat4(L, checkMat4(L, 1).Mul4(checkMat4(L, 2))))
		return 1
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("matrix4"))
		return 1
	}))

	L.SetGlobal("matrix4", L.NewFunction(func(L *lua.LState) int {
		L.Push(pushMat4(L, mgl32.Ident4()))
		return 1
	}))
}

func registerColor(L *lua.LState) {
	mt := L.NewTypeMetatable(colorTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"r": func(L *lua.LState) int { L.Push(lua.LNumber(checkColor(L, 1)[0])); return 1 },
		"g": func(L *lua.LState) int { L.Push(lua.LNumber(checkColor(L, 1)[1])); return 1 },
		"b": func(L *lua.LState) int { L.Push(lua.LNumber(checkColor(L, 1)[2])); return 1 },
		"a": func(L *lua.LState) int { L.Push(lua.LNumber(checkColor(L, 1)[3])); return 1 },
		"lerp": func(L *lua.LState) int {
			a, b := checkColor(L, 1), checkColor(L, 2)
			t := float32(L.CheckNumber(3))
			var out Color
			for i := 0; i < 4; i++ {
				out[i] = a[i] + (b[i]-a[i])*t
			}
			L.Push(pushColor(L, out))
			return 1
		},
	}))
	L.SetField(mt, "__eq", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkColor(L, 1) == checkColor(L, 2)))
		return 1
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		c := checkColor(L, 1)
		L.Push(lua.LString(fmt.Sprintf("color(%g, %g, %g, %g)", c[0], c[1], c[2], c[3])))
		return 1
	}))

	L.SetGlobal("color", L.NewFunction(func(L *lua.LState) int {
		r := float32(L.OptNumber(1, 0))
		g := float32(L.OptNumber(2, 0))
		b := float32(L.OptNumber(3, 0))
		a := float32(L.OptNumber(4, 1))
		L.Push(pushColor(L, Color{r, g, b, a}))
		return 1
	}))
}

func registerBounds(L *lua.LState) {
	mt := L.NewTypeMetatable(boundsTypeName)
	check := func(L *lua.LState) Bounds {
		ud := L.CheckUserData(1)
		if b, ok := ud.Value.(Bounds); ok {
			return b
		}
		L.ArgError(1, "bounds expected")
		return Bounds{}
	}
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"center": func(L *lua.LState) int { L.Push(pushVec3(L, check(L).Center)); return 1 },
		"size":   func(L *lua.LState) int { L.Push(pushVec3(L, check(L).Size)); return 1 },
		"contains": func(L *lua.LState) int {
			b := check(L)
			p := checkVec3(L, 2)
			inside := true
			for i := 0; i < 3; i++ {
				half := b.Size[i] / 2
				if p[i] < b.Center[i]-half || p[i] > b.Center[i]+half {
					inside = false
					break
				}
			}
			L.Push(lua.LBool(inside))
			return 1
		},
		"intersects": func(L *lua.LState) int {
			a := check(L)
			ud := L.CheckUserData(2)
			other, ok := ud.Value.(Bounds)
			if !ok {
				L.ArgError(2, "bounds expected")
			}
			hit := true
			for i := 0; i < 3; i++ {
				if abs32(a.Center[i]-other.Center[i]) > (a.Size[i]+other.Size[i])/2 {
					hit = false
					break
				}
			}
			L.Push(lua.LBool(hit))
			return 1
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		b := check(L)
		L.Push(lua.LString(fmt.Sprintf("bounds(center %v, size %v)", b.Center, b.Size)))
		return 1
	}))

	L.SetGlobal("bounds", L.NewFunction(func(L *lua.LState) int {
		b := Bounds{Center: checkVec3(L, 1), Size: checkVec3(L, 2)}
		ud := L.NewUserData()
		ud.Value = b
		L.SetMetatable(ud, L.GetTypeMetatable(boundsTypeName))
		L.Push(ud)
		return 1
	}))
}

func registerRay(L *lua.LState) {
	mt := L.NewTypeMetatable(rayTypeName)
	check := func(L *lua.LState) Ray {
		ud := L.CheckUserData(1)
		if r, ok := ud.Value.(Ray); ok {
			return r
		}
		L.ArgError(1, "ray expected")
		return Ray{}
	}
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"origin":    func(L *lua.LState) int { L.Push(pushVec3(L, check(L).Origin)); return 1 },
		"direction": func(L *lua.LState) int { L.Push(pushVec3(L, check(L).Dir)); return 1 },
		"point": func(L *lua.LState) int {
			r := check(L)
			t := float32(L.CheckNumber(2))
			L.Push(pushVec3(L, r.Origin.Add(r.Dir.Mul(t))))
			return 1
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("ray"))
		return 1
	}))

	L.SetGlobal("ray", L.NewFunction(func(L *lua.LState) int {
		dir := checkVec3(L, 2)
		if dir.Len() > 0 {
			dir = dir.Normalize()
		}
		r := Ray{Origin: checkVec3(L, 1), Dir: dir}
		ud := L.NewUserData()
		ud.Value = r
		L.SetMetatable(ud, L.GetTypeMetatable(rayTypeName))
		L.Push(ud)
		return 1
	}))
}

func registerPlane(L *lua.LState) {
	mt := L.NewTypeMetatable(planeTypeName)
	check := func(L *lua.LState) Plane {
		ud := L.CheckUserData(1)
		if p, ok := ud.Value.(Plane); ok {
			return p
		}
		L.ArgError(1, "plane expected")
		return Plane{}
	}
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"normal": func(L *lua.LState) int { L.Push(pushVec3(L, check(L).Normal)); return 1 },
		"d":      func(L *lua.LState) int { L.Push(lua.LNumber(check(L).D)); return 1 },
		"distance": func(L *lua.LState) int {
			p := check(L)
			point := checkVec3(L, 2)
			L.Push(lua.LNumber(p.Normal.Dot(point) + p.D))
			return 1
		},
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("plane"))
		return 1
	}))

	L.SetGlobal("plane", L.NewFunction(func(L *lua.LState) int {
		n := checkVec3(L, 1)
		if n.Len() > 0 {
			n = n.Normalize()
		}
		p := Plane{Normal: n, D: float32(L.CheckNumber(2))}
		ud := L.NewUserData()
		ud.Value = p
		L.SetMetatable(ud, L.GetTypeMetatable(planeTypeName))
		L.Push(ud)
		return 1
	}))
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
