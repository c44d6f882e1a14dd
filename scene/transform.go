package scene

import "github.com/go-gl/mathgl/mgl32"

// Transform is a change-detectable transform owned by the host.
// Changed reports whether the transform moved since the last ClearChanged.
type Transform interface {
	Changed() bool
	ClearChanged()
}

// Node is a translate/rotate/scale transform with a change flag.
// A new Node starts out changed.
type Node struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
	changed  bool
}

var _ Transform = (*Node)(nil)

// NewNode returns an identity transform.
func NewNode() *Node {
	return &Node{
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
		changed:  true,
	}
}

// Changed reports whether the node moved since the last ClearChanged.
func (n *Node) Changed() bool { return n.changed }

// ClearChanged resets the change flag.
func (n *Node) ClearChanged() { n.changed = false }

// Position returns the translation.
func (n *Node) Position() mgl32.Vec3 { return n.position }

// Rotation returns the orientation.
func (n *Node) Rotation() mgl32.Quat { return n.rotation }

// Scale returns the per-axis scale.
func (n *Node) Scale() mgl32.Vec3 { return n.scale }

// SetPosition sets the translation.
func (n *Node) SetPosition(p mgl32.Vec3) {
	if p != n.position {
		n.position = p
		n.changed = true
	}
}

// SetRotation sets the orientation. q is normalized.
func (n *Node) SetRotation(q mgl32.Quat) {
	q = q.Normalize()
	if q != n.rotation {
		n.rotation = q
		n.changed = true
	}
}

// SetScale sets the per-axis scale.
func (n *Node) SetScale(s mgl32.Vec3) {
	if s != n.scale {
		n.scale = s
		n.changed = true
	}
}

// Translate moves the node by d.
func (n *Node) Translate(d mgl32.Vec3) {
	n.SetPosition(n.position.Add(d))
}

// Rotate applies q after the current rotation.
func (n *Node) Rotate(q mgl32.Quat) {
	n.SetRotation(q.Mul(n.rotation))
}

// Forward returns the unit -Z axis of the node in world space.
func (n *Node) Forward() mgl32.Vec3 {
	return n.rotation.Rotate(mgl32.Vec3{0, 0, -1}).Normalize()
}

// LocalToWorld returns translation * rotation * scale.
func (n *Node) LocalToWorld() mgl32.Mat4 {
	t := mgl32.Translate3D(n.position[0], n.position[1], n.position[2])
	s := mgl32.Scale3D(n.scale[0], n.scale[1], n.scale[2])
	return t.Mul4(n.rotation.Mat4()).Mul4(s)
}
