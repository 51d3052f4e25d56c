package script

import (
	"fmt"

	"Lunar3D/internal/scene"
)

// Manager owns every live script instance and drives their lifecycles. It
// keeps two views of the instance table: per-object buckets and a flat
// insertion-ordered sequence for frame dispatch. Both are mutated together;
// attach/detach issued while a frame pass is running are queued and applied
// at the next frame boundary.
type Manager struct {
	registry *Registry
	compiler *Compiler
	env      Env
	scene    *scene.Scene

	instances []*Instance
	byObject  map[*scene.Object][]*Instance

	running   bool
	iterating bool
	deferred  []func()

	listeners []func(Event)
}

func NewManager(registry *Registry, env Env) *Manager {
	m := &Manager{
		registry: registry,
		compiler: NewCompiler(env),
		env:      env,
		scene:    env.Scene,
		byObject: make(map[*scene.Object][]*Instance),
	}
	registry.SetOnRegister(func(id string) {
		m.emit(Event{Kind: EventScriptRegistered, ScriptID: id})
	})
	return m
}

// Subscribe adds a change listener. Listeners run synchronously on the
// frame thread.
func (m *Manager) Subscribe(fn func(Event)) {
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) emit(ev Event) {
	for _, fn := range m.listeners {
		fn(ev)
	}
}

// InitializeAll scans every scene object for declared script ids and builds
// an instance for each. A script that fails to load is logged and skipped;
// the rest of the scene still initializes.
func (m *Manager) InitializeAll(s *scene.Scene) {
	m.scene = s
	for _, obj := range s.Objects() {
		for _, id := range obj.Scripts {
			if err := m.createInstance(obj, id); err != nil {
				m.env.Sink.Errorf(id, "%s: %s", id, err.Error())
			}
		}
	}
}

func (m *Manager) createInstance(obj *scene.Object, id string) error {
	src, err := m.registry.Load(id)
	if err != nil {
		return err
	}
	inst := NewInstance(m.compiler, obj, id, src.Code, src.Name, obj.ScriptProperties[id])
	m.registerInstance(inst)
	return nil
}

// registerInstance updates both table views together.
func (m *Manager) registerInstance(inst *Instance) {
	m.instances = append(m.instances, inst)
	m.byObject[inst.Object] = append(m.byObject[inst.Object], inst)
}

func (m *Manager) unregisterInstance(inst *Instance) {
	for i, other := range m.instances {
		if other == inst {
			m.instances = append(m.instances[:i], m.instances[i+1:]...)
			break
		}
	}
	bucket := m.byObject[inst.Object]
	for i, other := range bucket {
		if other == inst {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(m.byObject, inst.Object)
	} else {
		m.byObject[inst.Object] = bucket
	}
}

// StartAll starts every registered instance in table order and marks the
// orchestrator running. Attach/detach issued by a caller re-entering from a
// start pass are deferred like any other mid-pass mutation.
func (m *Manager) StartAll() {
	m.running = true
	m.iterating = true
	for _, inst := range m.instances {
		inst.Start()
	}
	m.iterating = false
}

// Update dispatches the update hook across the flat sequence in insertion
// order. Queued attach/detach work and pending file-watch reloads are
// applied first.
func (m *Manager) Update(dt float64) {
	m.frameBoundary()
	m.iterating = true
	for _, inst := range m.instances {
		inst.Update(dt)
	}
	m.iterating = false
}

// FixedUpdate dispatches the fixedUpdate hook across the flat sequence.
func (m *Manager) FixedUpdate(dt float64) {
	m.frameBoundary()
	m.iterating = true
	for _, inst := range m.instances {
		inst.FixedUpdate(dt)
	}
	m.iterating = false
}

func (m *Manager) frameBoundary() {
	if m.iterating {
		return
	}
	for _, id := range m.registry.DrainChanges() {
		m.ReloadScript(id)
	}
	if len(m.deferred) > 0 {
		ops := m.deferred
		m.deferred = nil
		for _, op := range ops {
			op()
		}
	}
}

// AttachScript declares a script on an object. The declaration is
// idempotent: a second attach of the same id is a no-op. While the
// orchestrator is running, a live instance is also created and started.
func (m *Manager) AttachScript(obj *scene.Object, id string) bool {
	if obj.HasScript(id) {
		return false
	}
	obj.Scripts = append(obj.Scripts, id)

	if m.running {
		attach := func() {
			if err := m.createAndStart(obj, id); err != nil {
				m.env.Sink.Errorf(id, "%s: attach failed: %s", id, err.Error())
			}
		}
		if m.iterating {
			m.deferred = append(m.deferred, attach)
		} else {
			attach()
		}
	}

	m.emit(Event{Kind: EventScriptAttached, Object: obj, ScriptID: id})
	return true
}

func (m *Manager) createAndStart(obj *scene.Object, id string) error {
	if !obj.HasScript(id) {
		// Detached again before the deferred attach ran.
		return nil
	}
	if err := m.createInstance(obj, id); err != nil {
		return err
	}
	bucket := m.byObject[obj]
	bucket[len(bucket)-1].Start()
	return nil
}

// DetachScript removes the declaration and destroys the live instance if one
// exists.
func (m *Manager) DetachScript(obj *scene.Object, id string) bool {
	if !obj.HasScript(id) {
		return false
	}
	for i, s := range obj.Scripts {
		if s == id {
			obj.Scripts = append(obj.Scripts[:i], obj.Scripts[i+1:]...)
			break
		}
	}
	delete(obj.ScriptProperties, id)

	if inst := m.findInstance(obj, id); inst != nil {
		remove := func() {
			inst.Destroy()
			m.unregisterInstance(inst)
		}
		if m.iterating {
			m.deferred = append(m.deferred, remove)
		} else {
			remove()
		}
	}

	m.emit(Event{Kind: EventScriptDetached, Object: obj, ScriptID: id})
	return true
}

func (m *Manager) findInstance(obj *scene.Object, id string) *Instance {
	for _, inst := range m.byObject[obj] {
		if inst.ScriptID == id && !inst.Destroyed() {
			return inst
		}
	}
	return nil
}

// ReloadScript re-reads the script's registered text and hot-reloads every
// live instance bound to that id. Returns how many instances reloaded.
func (m *Manager) ReloadScript(id string) int {
	src, err := m.registry.Load(id)
	if err != nil {
		m.env.Sink.Errorf(id, "%s: reload failed: %s", id, err.Error())
		return 0
	}

	count := 0
	for _, inst := range m.instances {
		if inst.ScriptID != id || inst.Destroyed() {
			continue
		}
		if err := inst.Recompile(src.Code); err == nil {
			count++
		}
	}
	m.env.Sink.Infof(src.Name, "%s: reloaded %d instance(s)", src.Name, count)
	m.emit(Event{Kind: EventScriptReloaded, ScriptID: id, Count: count})
	return count
}

// UpdateScriptProperty writes a property value to the object's persisted map
// and to the live instance, so edits behave the same while paused and while
// running.
func (m *Manager) UpdateScriptProperty(obj *scene.Object, id, name string, value interface{}) {
	if obj.ScriptProperties == nil {
		obj.ScriptProperties = make(map[string]map[string]interface{})
	}
	props := obj.ScriptProperties[id]
	if props == nil {
		props = make(map[string]interface{})
		obj.ScriptProperties[id] = props
	}
	props[name] = value

	if inst := m.findInstance(obj, id); inst != nil {
		inst.SetProperty(name, value)
	}

	m.emit(Event{Kind: EventPropertyChanged, Object: obj, ScriptID: id, Property: name})
}

// GetObjectScripts returns the ids declared on an object.
func (m *Manager) GetObjectScripts(obj *scene.Object) []string {
	out := make([]string, len(obj.Scripts))
	copy(out, obj.Scripts)
	return out
}

// InstancesFor returns the live instances bound to an object, in attach
// order.
func (m *Manager) InstancesFor(obj *scene.Object) []*Instance {
	bucket := m.byObject[obj]
	out := make([]*Instance, len(bucket))
	copy(out, bucket)
	return out
}

func (m *Manager) InstanceCount() int {
	return len(m.instances)
}

// NotifyCollisionEnter dispatches onCollisionEnter to every instance on obj.
// The host physics system is expected to call it for each side of a contact.
// The iterating flag nests so a dispatch issued from inside a fixed-update
// pass does not unlock mid-pass table mutation.
func (m *Manager) NotifyCollisionEnter(obj, other *scene.Object) {
	wasIterating := m.iterating
	m.iterating = true
	for _, inst := range m.byObject[obj] {
		inst.OnCollisionEnter(other)
	}
	m.iterating = wasIterating
}

func (m *Manager) NotifyCollisionExit(obj, other *scene.Object) {
	wasIterating := m.iterating
	m.iterating = true
	for _, inst := range m.byObject[obj] {
		inst.OnCollisionExit(other)
	}
	m.iterating = wasIterating
}

// DestroyAll tears down every instance, guaranteeing each started instance
// observes exactly one onDestroy, then clears the table.
func (m *Manager) DestroyAll() {
	for _, inst := range m.instances {
		inst.Destroy()
	}
	m.instances = nil
	m.byObject = make(map[*scene.Object][]*Instance)
	m.deferred = nil
	m.running = false
}

// SerializeObjectScripts captures an object's declared scripts and property
// overrides as a plain structure suitable for scene-file persistence.
func (m *Manager) SerializeObjectScripts(obj *scene.Object) map[string]interface{} {
	scripts := make([]string, len(obj.Scripts))
	copy(scripts, obj.Scripts)

	props := make(map[string]interface{}, len(obj.ScriptProperties))
	for id, values := range obj.ScriptProperties {
		inner := make(map[string]interface{}, len(values))
		for k, v := range values {
			inner[k] = v
		}
		props[id] = inner
	}

	return map[string]interface{}{
		"scripts":          scripts,
		"scriptProperties": props,
	}
}

// DeserializeObjectScripts restores declarations and property overrides onto
// an object. Instances are not created here; re-run InitializeAll.
func (m *Manager) DeserializeObjectScripts(obj *scene.Object, data map[string]interface{}) error {
	obj.Scripts = nil
	obj.ScriptProperties = make(map[string]map[string]interface{})

	switch scripts := data["scripts"].(type) {
	case nil:
	case []string:
		obj.Scripts = append(obj.Scripts, scripts...)
	case []interface{}:
		for _, item := range scripts {
			id, ok := item.(string)
			if !ok {
				return fmt.Errorf("script list entry %v is not a string", item)
			}
			obj.Scripts = append(obj.Scripts, id)
		}
	default:
		return fmt.Errorf("scripts field has unexpected type %T", scripts)
	}

	switch props := data["scriptProperties"].(type) {
	case nil:
	case map[string]map[string]interface{}:
		for id, values := range props {
			inner := make(map[string]interface{}, len(values))
			for k, v := range values {
				inner[k] = v
			}
			obj.ScriptProperties[id] = inner
		}
	case map[string]interface{}:
		for id, raw := range props {
			values, ok := raw.(map[string]interface{})
			if !ok {
				return fmt.Errorf("script properties for %s have unexpected type %T", id, raw)
			}
			inner := make(map[string]interface{}, len(values))
			for k, v := range values {
				inner[k] = v
			}
			obj.ScriptProperties[id] = inner
		}
	default:
		return fmt.Errorf("scriptProperties field has unexpected type %T", props)
	}
	return nil
}
