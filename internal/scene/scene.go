package scene

// Scene manages all objects. Similar to a flat scene graph root; parenting
// between objects is tracked on the objects themselves.
type Scene struct {
	objects []*Object
}

func New() *Scene {
	return &Scene{objects: make([]*Object, 0)}
}

func (s *Scene) Add(obj *Object) {
	s.objects = append(s.objects, obj)
}

func (s *Scene) Remove(obj *Object) {
	for i, o := range s.objects {
		if o == obj {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return
		}
	}
}

// Objects returns all objects in insertion order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// FindByName returns the first object with the given name, or nil.
func (s *Scene) FindByName(name string) *Object {
	for _, obj := range s.objects {
		if obj.Name == name {
			return obj
		}
	}
	return nil
}

// FindByTag returns all objects carrying the given tag.
func (s *Scene) FindByTag(tag string) []*Object {
	var result []*Object
	for _, obj := range s.objects {
		if obj.Tag == tag {
			result = append(result, obj)
		}
	}
	return result
}

// FindAll returns all objects matching the predicate.
func (s *Scene) FindAll(pred func(*Object) bool) []*Object {
	var result []*Object
	for _, obj := range s.objects {
		if pred(obj) {
			result = append(result, obj)
		}
	}
	return result
}

func (s *Scene) ChildrenOf(obj *Object) []*Object {
	if obj == nil {
		return nil
	}
	return obj.Children()
}

func (s *Scene) ParentOf(obj *Object) *Object {
	if obj == nil {
		return nil
	}
	return obj.Parent()
}

func (s *Scene) Len() int {
	return len(s.objects)
}

// Clear removes every object.
func (s *Scene) Clear() {
	s.objects = s.objects[:0]
}
