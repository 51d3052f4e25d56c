package script

import "Lunar3D/internal/scene"

// EventKind identifies a change notification for editor tooling.
type EventKind string

const (
	EventScriptAttached   EventKind = "scriptAttached"
	EventScriptDetached   EventKind = "scriptDetached"
	EventPropertyChanged  EventKind = "propertyChanged"
	EventScriptReloaded   EventKind = "scriptReloaded"
	EventScriptRegistered EventKind = "scriptRegistered"
)

// Event is one change notification. Fields beyond Kind are filled when they
// apply: Object/ScriptID for attach/detach, Property for property changes,
// Count for reloads.
type Event struct {
	Kind     EventKind
	Object   *scene.Object
	ScriptID string
	Property string
	Count    int
}
