package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"Lunar3D/internal/logger"
)

// Origin says where a script's text lives.
type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginFile    Origin = "file"
	OriginCustom  Origin = "custom"
)

var (
	ErrNotFound  = errors.New("script not found")
	ErrBuiltin   = errors.New("built-in scripts are read-only")
	ErrExists    = errors.New("script id already registered")
	ErrNoStorage = errors.New("no host storage available")
)

// Source is one registered script: identity, metadata and text.
type Source struct {
	ID          string
	Name        string
	Description string
	Origin      Origin
	Code        string
	Path        string
	Modified    time.Time
}

// Registry owns script identities and their text. It never touches live
// instances; propagating edits to running scripts is the Manager's job.
type Registry struct {
	mu       sync.Mutex
	storage  Storage
	builtins map[string]*Source
	entries  map[string]*Source
	cache    map[string]string

	watcher    *fsnotify.Watcher
	watchedIDs map[string]string // path -> id
	changed    []string
	onRegister func(id string)
	done       chan struct{}
}

func NewRegistry(storage Storage) *Registry {
	logger.Init()
	r := &Registry{
		storage:    storage,
		builtins:   make(map[string]*Source),
		entries:    make(map[string]*Source),
		cache:      make(map[string]string),
		watchedIDs: make(map[string]string),
	}
	registerBuiltins(r)
	return r
}

// SetOnRegister installs a callback fired after each successful Register.
func (r *Registry) SetOnRegister(fn func(id string)) {
	r.mu.Lock()
	r.onRegister = fn
	r.mu.Unlock()
}

// Load resolves a script id: cache, then built-in table, then registry entry
// (fetching from host storage when the entry has no cached text yet).
func (r *Registry) Load(id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.cache[id]; ok {
		if src := r.lookupLocked(id); src != nil {
			out := *src
			out.Code = code
			return &out, nil
		}
		delete(r.cache, id)
	}

	if src, ok := r.builtins[id]; ok {
		r.cache[id] = src.Code
		out := *src
		return &out, nil
	}

	if src, ok := r.entries[id]; ok {
		code := src.Code
		if code == "" && src.Path != "" {
			if r.storage == nil {
				return nil, fmt.Errorf("load %s: %w", id, ErrNoStorage)
			}
			text, err := r.storage.ReadText(src.Path)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", id, err)
			}
			code = text
			src.Code = text
		}
		r.cache[id] = code
		out := *src
		out.Code = code
		return &out, nil
	}

	return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
}

func (r *Registry) lookupLocked(id string) *Source {
	if src, ok := r.builtins[id]; ok {
		return src
	}
	if src, ok := r.entries[id]; ok {
		return src
	}
	return nil
}

// Register adds a script source. An empty ID gets a generated one; the
// assigned id is returned.
func (r *Registry) Register(src Source) (string, error) {
	r.mu.Lock()
	if src.ID == "" {
		src.ID = r.generateIDLocked(src.Name)
	}
	if _, ok := r.builtins[src.ID]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("register %s: %w", src.ID, ErrExists)
	}
	if _, ok := r.entries[src.ID]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("register %s: %w", src.ID, ErrExists)
	}
	if src.Origin == "" {
		src.Origin = OriginCustom
	}
	if src.Modified.IsZero() {
		src.Modified = time.Now()
	}
	stored := src
	r.entries[src.ID] = &stored
	delete(r.cache, src.ID)
	if stored.Path != "" && r.watcher != nil {
		r.watchedIDs[stored.Path] = stored.ID
		_ = r.watcher.Add(stored.Path)
	}
	onRegister := r.onRegister
	r.mu.Unlock()

	if onRegister != nil {
		onRegister(src.ID)
	}
	return src.ID, nil
}

// ImportFile registers a file-backed script, reading its text immediately.
func (r *Registry) ImportFile(name, path string) (string, error) {
	if r.storage == nil {
		return "", ErrNoStorage
	}
	text, err := r.storage.ReadText(path)
	if err != nil {
		return "", err
	}
	return r.Register(Source{
		Name:   name,
		Origin: OriginFile,
		Code:   text,
		Path:   path,
	})
}

// Unregister removes a script. Built-ins cannot be removed.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.builtins[id]; ok {
		return ErrBuiltin
	}
	src, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotFound)
	}
	if src.Path != "" {
		delete(r.watchedIDs, src.Path)
		if r.watcher != nil {
			_ = r.watcher.Remove(src.Path)
		}
	}
	delete(r.entries, id)
	delete(r.cache, id)
	return nil
}

// UpdateCode replaces a script's text and invalidates its cache entry. Live
// instances are untouched until the Manager reloads them.
func (r *Registry) UpdateCode(id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.builtins[id]; ok {
		return ErrBuiltin
	}
	src, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	src.Code = code
	src.Modified = time.Now()
	delete(r.cache, id)
	return nil
}

// SaveToFile writes a script's text to host storage and associates the
// script with that path from then on.
func (r *Registry) SaveToFile(id, path string) error {
	if r.storage == nil {
		return ErrNoStorage
	}
	r.mu.Lock()
	src, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		if _, builtin := r.builtins[id]; builtin {
			return ErrBuiltin
		}
		return fmt.Errorf("save %s: %w", id, ErrNotFound)
	}
	code := src.Code
	r.mu.Unlock()

	if err := r.storage.WriteText(path, code); err != nil {
		return err
	}

	r.mu.Lock()
	src.Path = path
	r.watchedIDs[path] = id
	if r.watcher != nil {
		_ = r.watcher.Add(path)
	}
	r.mu.Unlock()
	return nil
}

// GenerateID builds a collision-resistant identifier from a display name,
// e.g. "My Rotator!" -> "MyRotator_1f3a9c2b".
func (r *Registry) GenerateID(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generateIDLocked(name)
}

func (r *Registry) generateIDLocked(name string) string {
	var b strings.Builder
	for _, ch := range name {
		if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	sanitized := b.String()
	if sanitized == "" || (sanitized[0] >= '0' && sanitized[0] <= '9') {
		sanitized = "Script" + sanitized
	}
	return sanitized + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// List returns all known scripts, built-ins first, sorted by name.
func (r *Registry) List() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	var builtin, rest []*Source
	for _, src := range r.builtins {
		out := *src
		builtin = append(builtin, &out)
	}
	for _, src := range r.entries {
		out := *src
		rest = append(rest, &out)
	}
	sort.Slice(builtin, func(i, j int) bool { return builtin[i].Name < builtin[j].Name })
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(builtin, rest...)
}

// Find returns scripts whose name or id contains the filter, case-insensitive.
func (r *Registry) Find(filter string) []*Source {
	all := r.List()
	if filter == "" {
		return all
	}
	needle := strings.ToLower(filter)
	var out []*Source
	for _, src := range all {
		if strings.Contains(strings.ToLower(src.Name), needle) ||
			strings.Contains(strings.ToLower(src.ID), needle) {
			out = append(out, src)
		}
	}
	return out
}

// EnableWatch starts watching file-backed scripts for on-disk edits. A
// changed file invalidates the script's cache entry and queues it for reload;
// the Manager drains the queue at the next frame boundary.
func (r *Registry) EnableWatch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	r.watcher = watcher
	r.done = make(chan struct{})
	for _, src := range r.entries {
		if src.Path != "" {
			r.watchedIDs[src.Path] = src.ID
			_ = watcher.Add(src.Path)
		}
	}

	go r.watchLoop(watcher, r.done)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.mu.Lock()
			id, watched := r.watchedIDs[event.Name]
			if watched {
				delete(r.cache, id)
				if src, ok := r.entries[id]; ok {
					src.Code = ""
					src.Modified = time.Now()
				}
				r.changed = append(r.changed, id)
			}
			r.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("script watcher error: " + err.Error())
		}
	}
}

// DrainChanges returns and clears the ids whose backing files changed since
// the last call.
func (r *Registry) DrainChanges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changed) == 0 {
		return nil
	}
	out := r.changed
	r.changed = nil

	// A file may fire several write events for one save.
	seen := make(map[string]bool, len(out))
	var unique []string
	for _, id := range out {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}

// Close stops the file watcher.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}
