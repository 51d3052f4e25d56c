package script

import (
	"errors"
	"testing"

	"Lunar3D/internal/scene"
)

const counterSource = `
-- @property {number} ticks = 0
-- @property {number} fixedTicks = 0

function start()
    ticks = 0
end

function update(dt)
    ticks = ticks + 1
end

function fixedUpdate(dt)
    fixedTicks = fixedTicks + 1
end
`

func newTestInstance(t *testing.T, source string, overrides map[string]interface{}) (*Instance, Env) {
	t.Helper()
	env := testEnv()
	c := NewCompiler(env)
	obj := scene.NewObject("TestObject")
	env.Scene.Add(obj)
	inst := NewInstance(c, obj, "test", source, "TestScript", overrides)
	return inst, env
}

func TestInstanceLifecycle(t *testing.T) {
	inst, _ := newTestInstance(t, counterSource, nil)

	if inst.State() != "compiled" {
		t.Fatalf("Expected 'compiled' before start, got %q", inst.State())
	}

	// Hooks are gated until Start.
	inst.Update(0.016)
	inst.FixedUpdate(0.02)

	inst.Start()
	if inst.State() != "enabled" {
		t.Fatalf("Expected 'enabled' after start, got %q", inst.State())
	}

	inst.Update(0.016)
	inst.Update(0.016)
	inst.FixedUpdate(0.02)

	if inst.Property("ticks") != float64(2) {
		t.Errorf("Expected 2 ticks, got %v", inst.Property("ticks"))
	}
	if inst.Property("fixedTicks") != float64(1) {
		t.Errorf("Expected 1 fixed tick, got %v", inst.Property("fixedTicks"))
	}
}

func TestInstanceStartIdempotent(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} startCount = 0
function start()
    startCount = startCount + 1
end
`, nil)

	inst.Start()
	inst.Start()
	inst.Start()

	if inst.Property("startCount") != float64(1) {
		t.Errorf("start must run exactly once, got %v", inst.Property("startCount"))
	}
}

func TestInstanceOverridesApplyBeforeStart(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} speed = 5 [0, 10]
function update(dt) end
`, map[string]interface{}{"speed": 50.0})

	// Constraint clamping applies to overrides too.
	if inst.Property("speed") != float64(10) {
		t.Errorf("Expected override clamped to 10, got %v", inst.Property("speed"))
	}

	inst.Start()
	if inst.Property("speed") != float64(10) {
		t.Errorf("Expected live value 10 after start, got %v", inst.Property("speed"))
	}
}

func TestInstanceSetPropertyLive(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} speed = 5
-- @property {number} seen = 0
function update(dt)
    seen = speed
end
`, nil)

	inst.Start()
	inst.SetProperty("speed", 9.0)
	inst.Update(0.016)

	if inst.Property("seen") != float64(9) {
		t.Errorf("Expected the script to see the updated value, got %v", inst.Property("seen"))
	}
}

func TestInstanceCompileFailureIsInert(t *testing.T) {
	inst, env := newTestInstance(t, `function update(`, nil)

	if inst.Compiled() {
		t.Error("A failed compile must not mark the instance compiled")
	}
	if inst.State() != "created" {
		t.Errorf("Expected 'created', got %q", inst.State())
	}

	// All lifecycle calls are safe no-ops.
	inst.Start()
	inst.Update(0.016)
	inst.FixedUpdate(0.02)
	inst.Destroy()

	if len(env.Sink.RecordsFor("TestScript")) == 0 {
		t.Error("Expected the compile error to be logged")
	}
}

func TestInstanceErrorLimitDisables(t *testing.T) {
	inst, env := newTestInstance(t, `
function update(dt)
    error("boom")
end
`, nil)

	inst.Start()
	for i := 0; i < 15; i++ {
		inst.Update(0.016)
	}

	if inst.Enabled() {
		t.Error("Instance should be force-disabled after repeated errors")
	}
	if inst.ErrorCount() != errorLimit {
		t.Errorf("Expected exactly %d errors before the breaker trips, got %d", errorLimit, inst.ErrorCount())
	}

	found := false
	for _, rec := range env.Sink.RecordsFor("TestScript") {
		if rec.Level == "warn" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a warning record when the breaker trips")
	}
}

func TestInstanceErrorDoesNotAffectSibling(t *testing.T) {
	env := testEnv()
	c := NewCompiler(env)

	bad := NewInstance(c, scene.NewObject("Bad"), "bad", `
function update(dt)
    error("boom")
end
`, "Bad", nil)
	good := NewInstance(c, scene.NewObject("Good"), "good", counterSource, "Good", nil)

	bad.Start()
	good.Start()
	for i := 0; i < 3; i++ {
		bad.Update(0.016)
		good.Update(0.016)
	}

	if good.Property("ticks") != float64(3) {
		t.Errorf("A throwing sibling must not affect this instance, got %v ticks", good.Property("ticks"))
	}
}

func TestInstanceEnableDisableHooks(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {string} last = ""
-- @property {number} ticks = 0

function update(dt)
    ticks = ticks + 1
end

function onEnable()
    last = "enabled"
end

function onDisable()
    last = "disabled"
end
`, nil)

	inst.Start()
	inst.Update(0.016)

	inst.Disable()
	if inst.Property("last") != "disabled" {
		t.Errorf("Expected onDisable to run, got %v", inst.Property("last"))
	}

	// Disabled instances skip update.
	inst.Update(0.016)
	if inst.Property("ticks") != float64(1) {
		t.Errorf("Disabled instance must not tick, got %v", inst.Property("ticks"))
	}

	inst.Enable()
	if inst.Property("last") != "enabled" {
		t.Errorf("Expected onEnable to run, got %v", inst.Property("last"))
	}
	inst.Update(0.016)
	if inst.Property("ticks") != float64(2) {
		t.Errorf("Re-enabled instance should tick again, got %v", inst.Property("ticks"))
	}

	// Redundant transitions are no-ops.
	inst.Enable()
	if inst.Property("last") != "enabled" {
		t.Error("Enable on an enabled instance must not re-fire the hook")
	}
}

func TestInstanceDestroyRunsOnce(t *testing.T) {
	obj := scene.NewObject("Doomed")
	env := testEnv()
	c := NewCompiler(env)
	inst := NewInstance(c, obj, "doomed", `
function onDestroy()
    log.info("torn down")
end
`, "Doomed", nil)

	inst.Start()
	inst.Destroy()
	inst.Destroy()
	inst.Update(0.016)

	count := 0
	for _, rec := range env.Sink.RecordsFor("Doomed") {
		if rec.Message == "torn down" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("onDestroy must run exactly once, ran %d times", count)
	}
	if inst.State() != "destroyed" {
		t.Errorf("Expected 'destroyed', got %q", inst.State())
	}
}

func TestInstanceDestroyWithoutStartSkipsHook(t *testing.T) {
	inst, env := newTestInstance(t, `
function onDestroy()
    log.info("torn down")
end
`, nil)

	inst.Destroy()

	for _, rec := range env.Sink.RecordsFor("TestScript") {
		if rec.Message == "torn down" {
			t.Error("onDestroy must not run for a never-started instance")
		}
	}
}

func TestRecompilePreservesValues(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} speed = 5
function update(dt) end
`, nil)

	inst.Start()
	inst.SetProperty("speed", 7.0)

	err := inst.Recompile(`
-- @property {number} speed = 9
-- @property {number} extra = 1
function update(dt) end
`)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if inst.Property("speed") != float64(7) {
		t.Errorf("Surviving property should keep its value, got %v", inst.Property("speed"))
	}
	if inst.Property("extra") != float64(1) {
		t.Errorf("New property should get its default, got %v", inst.Property("extra"))
	}
	if !inst.Started() || !inst.Enabled() {
		t.Error("A started instance should be restarted after reload")
	}
}

func TestRecompileDropsRemovedProperties(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} speed = 5
function update(dt) end
`, nil)
	inst.Start()
	inst.SetProperty("speed", 7.0)

	if err := inst.Recompile(`
-- @property {number} power = 3
function update(dt) end
`); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if inst.Property("power") != float64(3) {
		t.Errorf("Expected new default 3, got %v", inst.Property("power"))
	}
	if _, ok := inst.Unit().SchemaProperty("speed"); ok {
		t.Error("Removed property should not survive in the new schema")
	}
}

func TestRecompilePreservesStateTable(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} observed = 0
function start()
    if state.counter == nil then
        state.counter = 0
    end
end
function update(dt)
    state.counter = state.counter + 1
    observed = state.counter
end
`, nil)

	inst.Start()
	inst.Update(0.016)
	inst.Update(0.016)

	if err := inst.Recompile(`
-- @property {number} observed = 0
function start()
    if state.counter == nil then
        state.counter = 0
    end
end
function update(dt)
    state.counter = state.counter + 1
    observed = state.counter
end
`); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	inst.Update(0.016)
	if inst.Property("observed") != float64(3) {
		t.Errorf("The state table should survive a reload, got %v", inst.Property("observed"))
	}
}

func TestRecompileFailureKeepsOldUnit(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} ticks = 0
function update(dt)
    ticks = ticks + 1
end
`, nil)
	inst.Start()
	inst.Update(0.016)

	if err := inst.Recompile(`function update(`); err == nil {
		t.Fatal("Expected the reload to fail")
	}

	// The old unit keeps running untouched.
	inst.Update(0.016)
	if inst.Property("ticks") != float64(2) {
		t.Errorf("Old unit should keep running after a failed reload, got %v", inst.Property("ticks"))
	}
}

func TestRecompileNeverCompiled(t *testing.T) {
	inst, _ := newTestInstance(t, `function update(`, nil)

	// Still broken: there is no prior unit to fall back to.
	if err := inst.Recompile(`also broken(`); !errors.Is(err, ErrNotCompiled) {
		t.Errorf("Expected ErrNotCompiled, got %v", err)
	}

	// A valid edit recovers the instance.
	if err := inst.Recompile(counterSource); err != nil {
		t.Fatalf("Reload with valid text failed: %v", err)
	}
	if !inst.Compiled() {
		t.Error("Instance should be compiled after a successful reload")
	}
	inst.Start()
	inst.Update(0.016)
	if inst.Property("ticks") != float64(1) {
		t.Errorf("Recovered instance should run, got %v ticks", inst.Property("ticks"))
	}
}

func TestRecompileOnDestroyedRejected(t *testing.T) {
	inst, _ := newTestInstance(t, counterSource, nil)
	inst.Start()
	inst.Destroy()

	if err := inst.Recompile(counterSource); err != ErrDestroyed {
		t.Errorf("Expected ErrDestroyed, got %v", err)
	}
}

func TestRecompileBeforeStartKeepsOverrides(t *testing.T) {
	inst, _ := newTestInstance(t, `
-- @property {number} speed = 5
function update(dt) end
`, map[string]interface{}{"speed": 2.0})

	if err := inst.Recompile(`
-- @property {number} speed = 8
function update(dt) end
`); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	inst.Start()
	if inst.Property("speed") != float64(2) {
		t.Errorf("Pre-start override should survive a reload, got %v", inst.Property("speed"))
	}
}

func TestRecompileSwallowsOnDestroyError(t *testing.T) {
	inst, _ := newTestInstance(t, `
function onDestroy()
    error("teardown boom")
end
function update(dt) end
`, nil)
	inst.Start()

	if err := inst.Recompile(counterSource); err != nil {
		t.Errorf("A failing onDestroy must not block the reload: %v", err)
	}
	if !inst.Started() {
		t.Error("Instance should be running on the new unit")
	}
}

func TestSelfBinding(t *testing.T) {
	inst, _ := newTestInstance(t, `
function start()
    self:setPosition(1, 2, 3)
    self:translate(0, 0, 1)
end
`, nil)

	inst.Start()

	pos := inst.Object.Transform.Position
	if pos.X() != 1 || pos.Y() != 2 || pos.Z() != 4 {
		t.Errorf("Expected position (1,2,4), got %v", pos)
	}
}

func TestCollisionHooks(t *testing.T) {
	inst, env := newTestInstance(t, `
-- @property {string} hit = ""
-- @property {string} left = ""
function onCollisionEnter(other)
    hit = other:getName()
end
function onCollisionExit(other)
    left = other:getName()
end
`, nil)

	other := scene.NewObject("Wall")
	env.Scene.Add(other)

	inst.Start()
	inst.OnCollisionEnter(other)
	inst.OnCollisionExit(other)

	if inst.Property("hit") != "Wall" {
		t.Errorf("Expected collision enter with 'Wall', got %v", inst.Property("hit"))
	}
	if inst.Property("left") != "Wall" {
		t.Errorf("Expected collision exit with 'Wall', got %v", inst.Property("left"))
	}
}
