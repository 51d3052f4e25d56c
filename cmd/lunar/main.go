package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"Lunar3D/internal/engine"
	"Lunar3D/internal/input"
	"Lunar3D/internal/logger"
	"Lunar3D/internal/scene"
	"Lunar3D/internal/script"
)

// forwarder breaks the construction cycle between the loop (which owns the
// clock) and the manager (which needs the clock in its environment).
type forwarder struct {
	m *script.Manager
}

func (f *forwarder) Update(dt float64)      { f.m.Update(dt) }
func (f *forwarder) FixedUpdate(dt float64) { f.m.FixedUpdate(dt) }

func main() {
	scriptArg := flag.String("script", "", "script to run: a .lua file or a built-in id (e.g. Rotator)")
	scenePath := flag.String("scene", "", "scene file to load")
	frames := flag.Int("frames", 0, "run this many fixed-rate frames and exit; 0 runs until interrupted")
	fps := flag.Int("fps", 60, "target frame rate")
	watch := flag.Bool("watch", false, "hot-reload file-backed scripts on edit")
	list := flag.Bool("list", false, "list available scripts and exit")
	flag.Parse()

	logger.Init()

	sink := logger.NewSink(logger.DefaultSinkCapacity)
	world := scene.New()
	inputState := input.NewState()

	registry := script.NewRegistry(script.DiskStorage{})
	defer registry.Close()

	if *list {
		for _, src := range registry.List() {
			fmt.Printf("%-24s %-8s %s\n", src.ID, src.Origin, src.Description)
		}
		return
	}

	runner := &forwarder{}
	loop := engine.NewLoop(runner, engine.Config{TargetFPS: *fps})
	loop.SetInputState(inputState)

	env := script.Env{
		Scene: world,
		Input: inputState,
		Time:  loop.Clock(),
		Sink:  sink,
	}
	manager := script.NewManager(registry, env)
	runner.m = manager

	if *watch {
		if err := registry.EnableWatch(); err != nil {
			logger.Log.Warn("file watching unavailable", zap.Error(err))
		}
	}

	if *scenePath != "" {
		if err := loadScene(manager, world, *scenePath); err != nil {
			logger.Log.Fatal("failed to load scene", zap.String("path", *scenePath), zap.Error(err))
		}
	}

	if *scriptArg != "" {
		id, err := resolveScript(registry, *scriptArg)
		if err != nil {
			logger.Log.Fatal("failed to resolve script", zap.String("script", *scriptArg), zap.Error(err))
		}
		demo := scene.NewObject("Demo")
		world.Add(demo)
		manager.AttachScript(demo, id)
	}

	if world.Len() == 0 {
		logger.Log.Fatal("nothing to run: pass -script or -scene")
	}

	manager.InitializeAll(world)
	manager.StartAll()
	defer manager.DestroyAll()

	logger.Log.Info("running",
		zap.Int("objects", world.Len()),
		zap.Int("instances", manager.InstanceCount()))

	if *frames > 0 {
		dt := 1.0 / float64(*fps)
		for i := 0; i < *frames; i++ {
			loop.Step(dt)
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		loop.Run(ctx)
	}

	dumpScene(world)
}

// resolveScript maps the -script argument to a registry id, importing it
// first when it names a file on disk.
func resolveScript(registry *script.Registry, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		return registry.ImportFile(name, arg)
	}
	if _, err := registry.Load(arg); err != nil {
		return "", err
	}
	return arg, nil
}

type sceneFile struct {
	Objects []sceneObject `json:"objects"`
}

type sceneObject struct {
	Name             string                 `json:"name"`
	Tag              string                 `json:"tag,omitempty"`
	Position         [3]float32             `json:"position"`
	Rotation         [3]float32             `json:"rotation"`
	Scale            *[3]float32            `json:"scale,omitempty"`
	Scripts          []string               `json:"scripts,omitempty"`
	ScriptProperties map[string]interface{} `json:"scriptProperties,omitempty"`
}

func loadScene(manager *script.Manager, world *scene.Scene, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file sceneFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse scene %s: %w", path, err)
	}

	for _, entry := range file.Objects {
		obj := scene.NewObject(entry.Name)
		obj.Tag = entry.Tag
		obj.Transform.SetPosition(mgl32.Vec3{entry.Position[0], entry.Position[1], entry.Position[2]})
		obj.Transform.SetEuler(entry.Rotation[0], entry.Rotation[1], entry.Rotation[2])
		if entry.Scale != nil {
			obj.Transform.SetScale(mgl32.Vec3{entry.Scale[0], entry.Scale[1], entry.Scale[2]})
		}
		if err := manager.DeserializeObjectScripts(obj, map[string]interface{}{
			"scripts":          entry.Scripts,
			"scriptProperties": entry.ScriptProperties,
		}); err != nil {
			return fmt.Errorf("object %s: %w", entry.Name, err)
		}
		world.Add(obj)
	}
	return nil
}

// dumpScene prints final object transforms so a -frames run has inspectable
// output.
func dumpScene(world *scene.Scene) {
	for _, obj := range world.Objects() {
		p := obj.Transform.WorldPosition()
		rx, ry, rz := obj.Transform.Euler()
		fmt.Printf("%-20s pos=(%.3f, %.3f, %.3f) rot=(%.3f, %.3f, %.3f)\n",
			obj.Name, p.X(), p.Y(), p.Z(), rx, ry, rz)
	}
}
