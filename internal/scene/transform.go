package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform holds an object's local position, rotation and scale.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	object *Object
}

func newTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) Translate(delta mgl32.Vec3) {
	t.Position = t.Position.Add(delta)
}

func (t *Transform) Rotate(axis mgl32.Vec3, angle float32) {
	rotation := mgl32.QuatRotate(angle, axis)
	t.Rotation = t.Rotation.Mul(rotation)
}

func (t *Transform) SetPosition(pos mgl32.Vec3) {
	t.Position = pos
}

func (t *Transform) SetRotation(rot mgl32.Quat) {
	t.Rotation = rot
}

func (t *Transform) SetScale(scale mgl32.Vec3) {
	t.Scale = scale
}

// SetEuler sets the rotation from XYZ Euler angles in radians.
func (t *Transform) SetEuler(x, y, z float32) {
	t.Rotation = mgl32.AnglesToQuat(x, y, z, mgl32.XYZ)
}

// Euler returns the rotation as XYZ Euler angles in radians.
func (t *Transform) Euler() (x, y, z float32) {
	q := t.Rotation.Normalize()
	w, xq, yq, zq := float64(q.W), float64(q.X()), float64(q.Y()), float64(q.Z())

	sinX := 2 * (w*xq + yq*zq)
	cosX := 1 - 2*(xq*xq+yq*yq)
	x = float32(math.Atan2(sinX, cosX))

	sinY := 2 * (w*yq - zq*xq)
	if sinY > 1 {
		sinY = 1
	} else if sinY < -1 {
		sinY = -1
	}
	y = float32(math.Asin(sinY))

	sinZ := 2 * (w*zq + xq*yq)
	cosZ := 1 - 2*(yq*yq+zq*zq)
	z = float32(math.Atan2(sinZ, cosZ))
	return x, y, z
}

func (t *Transform) Forward() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

func (t *Transform) Up() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
}

func (t *Transform) Right() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
}

// WorldPosition walks the parent chain and returns the world-space position.
func (t *Transform) WorldPosition() mgl32.Vec3 {
	pos := t.Position
	for p := t.parent(); p != nil; p = p.parent() {
		pos = mgl32.Vec3{pos.X() * p.Scale.X(), pos.Y() * p.Scale.Y(), pos.Z() * p.Scale.Z()}
		pos = p.Rotation.Rotate(pos).Add(p.Position)
	}
	return pos
}

// WorldRotation composes the rotations along the parent chain.
func (t *Transform) WorldRotation() mgl32.Quat {
	rot := t.Rotation
	for p := t.parent(); p != nil; p = p.parent() {
		rot = p.Rotation.Mul(rot)
	}
	return rot
}

// WorldScale composes the scales along the parent chain component-wise.
func (t *Transform) WorldScale() mgl32.Vec3 {
	s := t.Scale
	for p := t.parent(); p != nil; p = p.parent() {
		s = mgl32.Vec3{s.X() * p.Scale.X(), s.Y() * p.Scale.Y(), s.Z() * p.Scale.Z()}
	}
	return s
}

func (t *Transform) parent() *Transform {
	if t.object == nil || t.object.parent == nil {
		return nil
	}
	return t.object.parent.Transform
}
