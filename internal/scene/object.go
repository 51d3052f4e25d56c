package scene

// Object is the handle scripts use to affect one scene object. The scripting
// core borrows handles during hook execution; the scene owns them.
type Object struct {
	Name      string
	Tag       string
	Visible   bool
	Transform *Transform

	// Free-form per-object property bag, readable and writable by scripts.
	Properties map[string]interface{}

	// Declared script attachments, persisted with the scene file.
	Scripts          []string
	ScriptProperties map[string]map[string]interface{}

	parent   *Object
	children []*Object
}

func NewObject(name string) *Object {
	obj := &Object{
		Name:             name,
		Visible:          true,
		Properties:       make(map[string]interface{}),
		ScriptProperties: make(map[string]map[string]interface{}),
		Transform:        newTransform(),
	}
	obj.Transform.object = obj
	return obj
}

func (obj *Object) Parent() *Object {
	return obj.parent
}

func (obj *Object) Children() []*Object {
	out := make([]*Object, len(obj.children))
	copy(out, obj.children)
	return out
}

// AddChild parents child under obj, detaching it from any previous parent.
func (obj *Object) AddChild(child *Object) {
	if child == nil || child == obj {
		return
	}
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = obj
	obj.children = append(obj.children, child)
}

func (obj *Object) removeChild(child *Object) {
	for i, c := range obj.children {
		if c == child {
			obj.children = append(obj.children[:i], obj.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// HasScript reports whether the script id is declared on this object.
func (obj *Object) HasScript(id string) bool {
	for _, s := range obj.Scripts {
		if s == id {
			return true
		}
	}
	return false
}
