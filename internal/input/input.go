package input

// Source is the per-frame input snapshot the scripting core reads. Key codes
// are lowercase symbolic names ("a", "space", "left"); mouse buttons are
// indexed 0 = left, 1 = right, 2 = middle.
type Source interface {
	KeyHeld(code string) bool
	KeyPressed(code string) bool
	KeyReleased(code string) bool

	MouseHeld(button int) bool
	MousePressed(button int) bool
	MouseReleased(button int) bool

	PointerPosition() (x, y float64)
	PointerDelta() (dx, dy float64)
	ScrollDelta() float64

	// Axis returns -1, 0 or 1 for the named two-state axis
	// ("horizontal" or "vertical").
	Axis(name string) float64
}

// State is a host-fed Source. The host reports device events through the
// SetKey*/SetMouse* setters and calls BeginFrame once per frame before any
// script runs, which rolls the edge (pressed/released) sets over.
type State struct {
	held     map[string]bool
	pressed  map[string]bool
	released map[string]bool

	mouseHeld     map[int]bool
	mousePressed  map[int]bool
	mouseReleased map[int]bool

	pointerX, pointerY   float64
	lastX, lastY         float64
	deltaX, deltaY       float64
	scroll, scrollQueued float64
}

func NewState() *State {
	return &State{
		held:          make(map[string]bool),
		pressed:       make(map[string]bool),
		released:      make(map[string]bool),
		mouseHeld:     make(map[int]bool),
		mousePressed:  make(map[int]bool),
		mouseReleased: make(map[int]bool),
	}
}

// BeginFrame rolls edge state for a new frame. Pressed/released sets only
// report events that arrived since the previous BeginFrame.
func (s *State) BeginFrame() {
	for k := range s.pressed {
		delete(s.pressed, k)
	}
	for k := range s.released {
		delete(s.released, k)
	}
	for b := range s.mousePressed {
		delete(s.mousePressed, b)
	}
	for b := range s.mouseReleased {
		delete(s.mouseReleased, b)
	}
	s.deltaX, s.deltaY = s.pointerX-s.lastX, s.pointerY-s.lastY
	s.lastX, s.lastY = s.pointerX, s.pointerY
	s.scroll = s.scrollQueued
	s.scrollQueued = 0
}

func (s *State) SetKeyDown(code string) {
	if !s.held[code] {
		s.pressed[code] = true
	}
	s.held[code] = true
}

func (s *State) SetKeyUp(code string) {
	if s.held[code] {
		s.released[code] = true
	}
	delete(s.held, code)
}

func (s *State) SetMouseDown(button int) {
	if !s.mouseHeld[button] {
		s.mousePressed[button] = true
	}
	s.mouseHeld[button] = true
}

func (s *State) SetMouseUp(button int) {
	if s.mouseHeld[button] {
		s.mouseReleased[button] = true
	}
	delete(s.mouseHeld, button)
}

func (s *State) SetPointer(x, y float64) {
	s.pointerX, s.pointerY = x, y
}

func (s *State) AddScroll(delta float64) {
	s.scrollQueued += delta
}

func (s *State) KeyHeld(code string) bool     { return s.held[code] }
func (s *State) KeyPressed(code string) bool  { return s.pressed[code] }
func (s *State) KeyReleased(code string) bool { return s.released[code] }

func (s *State) MouseHeld(button int) bool     { return s.mouseHeld[button] }
func (s *State) MousePressed(button int) bool  { return s.mousePressed[button] }
func (s *State) MouseReleased(button int) bool { return s.mouseReleased[button] }

func (s *State) PointerPosition() (float64, float64) { return s.pointerX, s.pointerY }
func (s *State) PointerDelta() (float64, float64)    { return s.deltaX, s.deltaY }
func (s *State) ScrollDelta() float64                { return s.scroll }

func (s *State) Axis(name string) float64 {
	switch name {
	case "horizontal":
		return s.axisValue("a", "left", "d", "right")
	case "vertical":
		return s.axisValue("s", "down", "w", "up")
	}
	return 0
}

func (s *State) axisValue(negA, negB, posA, posB string) float64 {
	v := 0.0
	if s.held[negA] || s.held[negB] {
		v -= 1
	}
	if s.held[posA] || s.held[posB] {
		v += 1
	}
	return v
}
