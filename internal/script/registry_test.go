package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"Lunar3D/internal/scene"
)

type fakeStorage struct {
	files  map[string]string
	reads  int
	writes int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string]string)}
}

func (f *fakeStorage) ReadText(path string) (string, error) {
	f.reads++
	text, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("read script %s: no such file", path)
	}
	return text, nil
}

func (f *fakeStorage) WriteText(path, text string) error {
	f.writes++
	f.files[path] = text
	return nil
}

func TestBuiltinsCompileCleanly(t *testing.T) {
	r := NewRegistry(nil)
	c := NewCompiler(testEnv())

	found := 0
	for _, src := range r.List() {
		if src.Origin != OriginBuiltin {
			continue
		}
		found++
		unit := c.Compile(src.Code, src.Name)
		if unit.Err != nil {
			t.Errorf("Built-in %s failed to compile: %v", src.ID, unit.Err)
		}
	}
	if found != 5 {
		t.Errorf("Expected 5 built-in templates, got %d", found)
	}
}

func TestBuiltinTemplatesRunOneFrame(t *testing.T) {
	env := testEnv()
	ft := env.Time.(*fakeTime)
	ft.elapsed = 0.5
	c := NewCompiler(env)
	r := NewRegistry(nil)

	for _, id := range []string{"Rotator", "Mover", "Orbiter", "Bouncer", "Blank"} {
		src, err := r.Load(id)
		if err != nil {
			t.Fatalf("Load %s failed: %v", id, err)
		}
		obj := scene.NewObject(id)
		env.Scene.Add(obj)
		inst := NewInstance(c, obj, id, src.Code, src.Name, nil)
		inst.Start()
		inst.Update(0.016)
		inst.FixedUpdate(0.02)
		if inst.ErrorCount() != 0 {
			t.Errorf("Built-in %s raised errors: %+v", id, env.Sink.RecordsFor(src.Name))
		}
	}
}

func TestRegistryLoadBuiltin(t *testing.T) {
	r := NewRegistry(nil)

	src, err := r.Load("Rotator")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Origin != OriginBuiltin || src.Code == "" {
		t.Errorf("Unexpected built-in source: %+v", src)
	}
}

func TestRegistryLoadMissing(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRegisterAndLoad(t *testing.T) {
	r := NewRegistry(nil)

	id, err := r.Register(Source{Name: "My Script", Code: "function update(dt) end"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	src, err := r.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Origin != OriginCustom {
		t.Errorf("Expected custom origin, got %v", src.Origin)
	}
	if src.Code != "function update(dt) end" {
		t.Errorf("Unexpected code: %q", src.Code)
	}
}

func TestRegistryRegisterConflicts(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Register(Source{ID: "Rotator", Name: "Fake"}); !errors.Is(err, ErrExists) {
		t.Errorf("Registering over a built-in id should fail, got %v", err)
	}

	if _, err := r.Register(Source{ID: "mine", Name: "Mine"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register(Source{ID: "mine", Name: "Again"}); !errors.Is(err, ErrExists) {
		t.Errorf("Expected ErrExists, got %v", err)
	}
}

func TestRegistryBuiltinsReadOnly(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.Unregister("Rotator"); !errors.Is(err, ErrBuiltin) {
		t.Errorf("Expected ErrBuiltin on unregister, got %v", err)
	}
	if err := r.UpdateCode("Rotator", "x = 1"); !errors.Is(err, ErrBuiltin) {
		t.Errorf("Expected ErrBuiltin on update, got %v", err)
	}
}

func TestRegistryUpdateCodeInvalidatesCache(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Register(Source{ID: "mine", Name: "Mine", Code: "a = 1"})

	if _, err := r.Load(id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := r.UpdateCode(id, "a = 2"); err != nil {
		t.Fatalf("UpdateCode failed: %v", err)
	}

	src, err := r.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Code != "a = 2" {
		t.Errorf("Expected updated text, got %q", src.Code)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Register(Source{ID: "mine", Name: "Mine", Code: "a = 1"})

	if err := r.Unregister(id); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if _, err := r.Load(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after unregister, got %v", err)
	}
	if err := r.Unregister(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second unregister, got %v", err)
	}
}

func TestGenerateIDFormat(t *testing.T) {
	r := NewRegistry(nil)

	id := r.GenerateID("My Rotator!")
	if !regexp.MustCompile(`^MyRotator_[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("Unexpected id format: %q", id)
	}

	// Leading digits get a prefix so the id stays a valid identifier.
	id = r.GenerateID("3D Thing")
	if !regexp.MustCompile(`^Script3DThing_[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("Unexpected id format: %q", id)
	}

	if r.GenerateID("Same") == r.GenerateID("Same") {
		t.Error("Generated ids must not collide")
	}
}

func TestRegistryFileBackedLoad(t *testing.T) {
	storage := newFakeStorage()
	storage.files["/scripts/spin.lua"] = "function update(dt) end"
	r := NewRegistry(storage)

	id, err := r.Register(Source{Name: "Spin", Origin: OriginFile, Path: "/scripts/spin.lua"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	src, err := r.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Code != "function update(dt) end" {
		t.Errorf("Expected text from storage, got %q", src.Code)
	}

	// A second load hits the cache, not storage.
	reads := storage.reads
	if _, err := r.Load(id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if storage.reads != reads {
		t.Error("Cached load should not touch storage again")
	}
}

func TestRegistryImportFile(t *testing.T) {
	storage := newFakeStorage()
	storage.files["/scripts/spin.lua"] = "function update(dt) end"
	r := NewRegistry(storage)

	id, err := r.ImportFile("Spin", "/scripts/spin.lua")
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	src, err := r.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Origin != OriginFile || src.Code == "" {
		t.Errorf("Unexpected imported source: %+v", src)
	}
}

func TestRegistryNilStorageDegrades(t *testing.T) {
	r := NewRegistry(nil)

	// Path-only entry cannot resolve without host storage.
	id, err := r.Register(Source{Name: "Spin", Origin: OriginFile, Path: "/scripts/spin.lua"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Load(id); !errors.Is(err, ErrNoStorage) {
		t.Errorf("Expected ErrNoStorage, got %v", err)
	}

	if _, err := r.ImportFile("Spin", "/x.lua"); !errors.Is(err, ErrNoStorage) {
		t.Errorf("Expected ErrNoStorage from import, got %v", err)
	}

	// In-memory entries keep working.
	memID, _ := r.Register(Source{Name: "Mem", Code: "a = 1"})
	if _, err := r.Load(memID); err != nil {
		t.Errorf("In-memory load should still work: %v", err)
	}
}

func TestRegistrySaveToFile(t *testing.T) {
	storage := newFakeStorage()
	r := NewRegistry(storage)
	id, _ := r.Register(Source{Name: "Mine", Code: "a = 1"})

	if err := r.SaveToFile(id, "/scripts/mine.lua"); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	if storage.files["/scripts/mine.lua"] != "a = 1" {
		t.Errorf("Expected the text on storage, got %q", storage.files["/scripts/mine.lua"])
	}

	src, _ := r.Load(id)
	if src.Path != "/scripts/mine.lua" {
		t.Errorf("Expected the path to stick, got %q", src.Path)
	}

	if err := r.SaveToFile("Rotator", "/x.lua"); !errors.Is(err, ErrBuiltin) {
		t.Errorf("Expected ErrBuiltin, got %v", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Source{ID: "aaa", Name: "AAA", Code: "a = 1"})

	list := r.List()
	if len(list) != 6 {
		t.Fatalf("Expected 5 built-ins plus 1 custom, got %d", len(list))
	}
	// Built-ins sort first regardless of name.
	for _, src := range list[:5] {
		if src.Origin != OriginBuiltin {
			t.Errorf("Expected built-ins first, got %s (%s)", src.ID, src.Origin)
		}
	}
	if list[5].ID != "aaa" {
		t.Errorf("Expected the custom entry last, got %s", list[5].ID)
	}
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Source{ID: "patrol", Name: "Rotating Guard", Code: "a = 1"})

	hits := r.Find("rot")
	found := map[string]bool{}
	for _, src := range hits {
		found[src.ID] = true
	}
	// Matches the built-in by id and the custom entry by name.
	if !found["Rotator"] || !found["patrol"] {
		t.Errorf("Case-insensitive substring match missed entries: %v", found)
	}
	if found["Mover"] {
		t.Error("Filter should exclude non-matching entries")
	}
}

func TestRegistryWatchDetectsEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spin.lua")
	if err := os.WriteFile(path, []byte("a = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(DiskStorage{})
	defer r.Close()
	if err := r.EnableWatch(); err != nil {
		t.Fatalf("EnableWatch failed: %v", err)
	}

	id, err := r.ImportFile("Spin", path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("a = 2"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	var changed []string
	for time.Now().Before(deadline) {
		changed = r.DrainChanges()
		if len(changed) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(changed) != 1 || changed[0] != id {
		t.Fatalf("Expected a change notification for %s, got %v", id, changed)
	}

	src, err := r.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.Code != "a = 2" {
		t.Errorf("Expected the fresh text after the edit, got %q", src.Code)
	}
}
