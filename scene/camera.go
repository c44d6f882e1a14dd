package scene

import "github.com/go-gl/mathgl/mgl32"

// Camera supplies the view matrices of the kernel.
type Camera interface {
	Transform

	// CameraToWorld returns the camera-to-world matrix.
	CameraToWorld() mgl32.Mat4

	// Projection returns the projection matrix. The tracer uploads its
	// inverse.
	Projection() mgl32.Mat4
}

// Light supplies the directional light of the kernel.
type Light interface {
	Transform

	// Direction returns the unit direction the light travels in.
	Direction() mgl32.Vec3

	// Intensity returns the light intensity.
	Intensity() float32
}

// PerspectiveCamera is a pinhole camera looking down its local -Z axis.
type PerspectiveCamera struct {
	*Node

	fovY   float32 // degrees
	aspect float32
	near   float32
	far    float32
}

var _ Camera = (*PerspectiveCamera)(nil)

// NewPerspectiveCamera creates a camera at the origin.
// fovY is the vertical field of view in degrees.
func NewPerspectiveCamera(fovY, aspect, near, far float32) *PerspectiveCamera {
	return &PerspectiveCamera{
		Node:   NewNode(),
		fovY:   fovY,
		aspect: aspect,
		near:   near,
		far:    far,
	}
}

// LookAt places the camera at eye, oriented toward center.
func (c *PerspectiveCamera) LookAt(eye, center, up mgl32.Vec3) {
	view := mgl32.LookAtV(eye, center, up)
	c.SetPosition(eye)
	c.SetRotation(mgl32.Mat4ToQuat(view.Inv()))
}

// SetAspect updates the aspect ratio, typically after a viewport resize.
func (c *PerspectiveCamera) SetAspect(aspect float32) {
	if aspect != c.aspect {
		c.aspect = aspect
		c.changed = true
	}
}

// Aspect returns the aspect ratio.
func (c *PerspectiveCamera) Aspect() float32 { return c.aspect }

// CameraToWorld returns the rigid camera transform (scale is ignored).
func (c *PerspectiveCamera) CameraToWorld() mgl32.Mat4 {
	p := c.position
	return mgl32.Translate3D(p[0], p[1], p[2]).Mul4(c.rotation.Mat4())
}

// Projection returns the OpenGL-style perspective projection.
func (c *PerspectiveCamera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.fovY), c.aspect, c.near, c.far)
}

// DirectionalLight is an infinitely distant light shining along its local -Z
// axis.
type DirectionalLight struct {
	*Node

	intensity float32
}

var _ Light = (*DirectionalLight)(nil)

// NewDirectionalLight creates a light pointing along dir.
func NewDirectionalLight(dir mgl32.Vec3, intensity float32) *DirectionalLight {
	l := &DirectionalLight{Node: NewNode(), intensity: intensity}
	l.SetRotation(mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir.Normalize()))
	return l
}

// Direction returns the unit direction the light travels in.
func (l *DirectionalLight) Direction() mgl32.Vec3 { return l.Forward() }

// Intensity returns the light intensity.
func (l *DirectionalLight) Intensity() float32 { return l.intensity }

// SetIntensity changes the intensity.
func (l *DirectionalLight) SetIntensity(v float32) {
	if v != l.intensity {
		l.intensity = v
		l.changed = true
	}
}
