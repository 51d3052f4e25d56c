package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"Lunar3D/internal/scene"
)

// errorLimit is the circuit breaker threshold: an instance whose hooks have
// thrown this many times is force-disabled.
const errorLimit = 10

var (
	ErrDestroyed     = errors.New("script instance is destroyed")
	ErrNotCompiled   = errors.New("script instance has no compiled unit")
	ErrReloadAborted = errors.New("reload aborted, previous unit kept")
)

// Instance is one live binding of a compiled script to one scene object.
// Owned by the Manager; the object handle is borrowed during hook calls.
type Instance struct {
	ScriptID    string
	Object      *scene.Object
	displayName string

	compiler *Compiler
	unit     *CompiledUnit
	L        *lua.LState
	hooks    map[string]*lua.LFunction

	// overrides holds per-instance values set before the first start.
	// values is the live property record, nil until started.
	overrides map[string]interface{}
	values    map[string]interface{}

	compiled   bool
	started    bool
	enabled    bool
	destroyed  bool
	errorCount int
}

// NewInstance compiles the source and binds it to the object. A failed
// compile is logged once and leaves the instance permanently inert; it never
// returns an error because failure is a valid, inspectable instance state.
func NewInstance(c *Compiler, obj *scene.Object, scriptID, source, displayName string, overrides map[string]interface{}) *Instance {
	inst := &Instance{
		ScriptID:    scriptID,
		Object:      obj,
		displayName: displayName,
		compiler:    c,
		overrides:   make(map[string]interface{}),
	}
	for k, v := range overrides {
		inst.overrides[k] = v
	}

	unit := c.Compile(source, displayName)
	inst.unit = unit
	if unit.Err != nil {
		c.env.Sink.Errorf(displayName, "%s: compile error at line %d: %s", displayName, unit.Err.Line, unit.Err.Message)
		return inst
	}

	L, hooks, err := inst.bind(unit, inst.seedFrom(unit, nil))
	if err != nil {
		c.env.Sink.Errorf(displayName, "%s: %s", displayName, err.Error())
		return inst
	}
	inst.L = L
	inst.hooks = hooks
	inst.compiled = true
	return inst
}

// bind creates this instance's own sandbox state, injects the given property
// values and runs the chunk top level, returning the extracted hooks.
func (s *Instance) bind(unit *CompiledUnit, values map[string]interface{}) (*lua.LState, map[string]*lua.LFunction, error) {
	L := newSandbox(s.compiler.env, s.displayName, s.Object)
	for name, v := range values {
		L.SetGlobal(name, goToLua(L, v))
	}

	fn := L.NewFunctionFromProto(unit.Proto)
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, nil, toCompileError(err)
	}

	hooks := make(map[string]*lua.LFunction)
	for _, name := range HookNames {
		if fn, ok := L.GetGlobal(name).(*lua.LFunction); ok {
			hooks[name] = fn
		}
	}
	return L, hooks, nil
}

// seedFrom builds the property record for a unit: schema defaults overlaid
// with prior values (hot reload) or pre-start overrides.
func (s *Instance) seedFrom(unit *CompiledUnit, prior map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(unit.Schema))
	for _, prop := range unit.Schema {
		v := prop.Default
		if prior != nil {
			if pv, ok := prior[prop.Name]; ok {
				v = prop.Coerce(pv)
			}
		} else if ov, ok := s.overrides[prop.Name]; ok {
			v = prop.Coerce(ov)
		}
		out[prop.Name] = v
	}
	return out
}

func (s *Instance) pushValues() {
	for name, v := range s.values {
		s.L.SetGlobal(name, goToLua(s.L, v))
	}
}

func (s *Instance) pullValues() {
	for _, prop := range s.unit.Schema {
		s.values[prop.Name] = luaToGo(s.L.GetGlobal(prop.Name))
	}
}

// Start seeds the live property record, invokes the start hook if present
// and flips the instance to enabled. Calling it again is a no-op.
func (s *Instance) Start() {
	if s.destroyed || s.started || !s.compiled {
		return
	}
	if s.values == nil {
		s.values = s.seedFrom(s.unit, nil)
	}
	s.pushValues()
	s.started = true
	s.callHook("start")
	s.pullValues()
	s.enabled = true
}

func (s *Instance) Update(dt float64) {
	if !s.runnable() {
		return
	}
	s.callHook("update", lua.LNumber(dt))
}

func (s *Instance) FixedUpdate(dt float64) {
	if !s.runnable() {
		return
	}
	s.callHook("fixedUpdate", lua.LNumber(dt))
}

func (s *Instance) OnCollisionEnter(other *scene.Object) {
	if !s.runnable() {
		return
	}
	s.callHook("onCollisionEnter", pushObject(s.L, other))
}

func (s *Instance) OnCollisionExit(other *scene.Object) {
	if !s.runnable() {
		return
	}
	s.callHook("onCollisionExit", pushObject(s.L, other))
}

func (s *Instance) runnable() bool {
	return s.started && s.enabled && !s.destroyed
}

func (s *Instance) Enable() {
	if s.destroyed || s.enabled {
		return
	}
	s.enabled = true
	if s.started {
		s.callHook("onEnable")
	}
}

func (s *Instance) Disable() {
	if s.destroyed || !s.enabled {
		return
	}
	if s.started {
		s.callHook("onDisable")
	}
	s.enabled = false
}

// Destroy invokes onDestroy once (if started) and moves the instance to its
// terminal state. Further lifecycle calls are no-ops.
func (s *Instance) Destroy() {
	if s.destroyed {
		return
	}
	if s.started {
		s.callHook("onDestroy")
		s.pullValues()
	}
	s.destroyed = true
	s.enabled = false
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}

// Recompile hot-reloads the instance with new source text. Property values
// whose names survive in the new schema keep their current values; removed
// properties are dropped and new ones get their defaults. If the new text
// fails to compile or bind, the previous unit and state are left untouched.
func (s *Instance) Recompile(newText string) error {
	if s.destroyed {
		return ErrDestroyed
	}

	newUnit := s.compiler.Compile(newText, s.displayName)
	if newUnit.Err != nil {
		s.compiler.env.Sink.Errorf(s.displayName, "%s: reload failed at line %d: %s", s.displayName, newUnit.Err.Line, newUnit.Err.Message)
		if !s.compiled {
			// No prior unit exists to keep running.
			return fmt.Errorf("%w: %s", ErrNotCompiled, newUnit.Err.Message)
		}
		return newUnit.Err
	}

	// Snapshot live state before anything is torn down.
	var preservedState interface{}
	prior := s.overrides
	if s.started && s.L != nil {
		s.pullValues()
		prior = s.values
		preservedState = luaToGo(s.L.GetGlobal("state"))
	} else if s.values != nil {
		prior = s.values
	}
	merged := s.seedFrom(newUnit, prior)

	newL, newHooks, err := s.bind(newUnit, merged)
	if err != nil {
		s.compiler.env.Sink.Errorf(s.displayName, "%s: reload failed: %s", s.displayName, err.Error())
		return ErrReloadAborted
	}
	if m, ok := preservedState.(map[string]interface{}); ok {
		newL.SetGlobal("state", goToLua(newL, m))
	}

	// Best-effort teardown of the old state; a buggy onDestroy must not
	// block the reload.
	wasStarted := s.started
	if s.L != nil {
		if wasStarted {
			if fn := s.hooks["onDestroy"]; fn != nil {
				_ = s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
			}
		}
		s.L.Close()
	}

	s.unit = newUnit
	s.L = newL
	s.hooks = newHooks
	if wasStarted || s.values != nil {
		s.values = merged
	}
	s.compiled = true
	s.started = false
	s.enabled = false
	s.errorCount = 0

	if wasStarted {
		s.Start()
	}
	return nil
}

// SetProperty writes a property value into the live state (if started) or
// records it as a pre-start override.
func (s *Instance) SetProperty(name string, value interface{}) {
	if s.destroyed {
		return
	}
	if prop, ok := s.unit.SchemaProperty(name); ok {
		value = prop.Coerce(value)
	}
	if s.started && s.L != nil {
		s.values[name] = value
		s.L.SetGlobal(name, goToLua(s.L, value))
		return
	}
	s.overrides[name] = value
	if s.values != nil {
		s.values[name] = value
	}
}

// Property reads the current value of a schema property: live from the
// sandbox when running, otherwise from overrides or schema defaults.
func (s *Instance) Property(name string) interface{} {
	if s.started && s.L != nil {
		if _, ok := s.unit.SchemaProperty(name); ok {
			return luaToGo(s.L.GetGlobal(name))
		}
	}
	if s.values != nil {
		if v, ok := s.values[name]; ok {
			return v
		}
	}
	if prop, ok := s.unit.SchemaProperty(name); ok {
		if ov, ok := s.overrides[name]; ok {
			return prop.Coerce(ov)
		}
		return prop.Default
	}
	if ov, ok := s.overrides[name]; ok {
		return ov
	}
	return nil
}

// Properties returns a snapshot of all schema property values.
func (s *Instance) Properties() map[string]interface{} {
	out := make(map[string]interface{}, len(s.unit.Schema))
	for _, prop := range s.unit.Schema {
		out[prop.Name] = s.Property(prop.Name)
	}
	return out
}

func (s *Instance) callHook(name string, args ...lua.LValue) {
	fn := s.hooks[name]
	if fn == nil || s.L == nil {
		return
	}
	err := s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err == nil {
		return
	}

	msg := err.Error()
	if apiErr, ok := err.(*lua.ApiError); ok {
		msg = apiErr.Object.String()
	}
	s.compiler.env.Sink.Errorf(s.displayName, "%s/%s: %s", s.displayName, name, msg)

	s.errorCount++
	if s.errorCount >= errorLimit && s.enabled {
		s.enabled = false
		s.compiler.env.Sink.Warnf(s.displayName, "%s disabled after %d errors", s.displayName, s.errorCount)
	}
}

// Unit returns the current compiled unit.
func (s *Instance) Unit() *CompiledUnit {
	return s.unit
}

func (s *Instance) Compiled() bool  { return s.compiled }
func (s *Instance) Started() bool   { return s.started }
func (s *Instance) Enabled() bool   { return s.enabled }
func (s *Instance) Destroyed() bool { return s.destroyed }
func (s *Instance) ErrorCount() int { return s.errorCount }

// State reports the lifecycle state for inspection tooling.
func (s *Instance) State() string {
	switch {
	case s.destroyed:
		return "destroyed"
	case s.started && s.enabled:
		return "enabled"
	case s.started:
		return "disabled"
	case s.compiled:
		return "compiled"
	default:
		return "created"
	}
}
