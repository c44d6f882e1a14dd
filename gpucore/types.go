package gpucore

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Resource IDs
//
// These opaque IDs represent GPU resources. Each backend maintains a
// mapping between IDs and actual resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TargetID is an opaque handle to a float RGBA image (render target,
// accumulation target or skybox).
type TargetID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Record strides in bytes. They must match the kernel-side struct layouts.
const (
	// SphereStrideBasic is position + radius + albedo + specular.
	SphereStrideBasic = 40

	// SphereStrideExtended adds smoothness + emission.
	SphereStrideExtended = 56

	// MeshObjectStride is a 4x4 float matrix plus two int32 values.
	MeshObjectStride = 72

	// VertexStride is three float32 values.
	VertexStride = 12

	// IndexStride is one int32 value.
	IndexStride = 4

	// PixelStride is one RGBA32F pixel.
	PixelStride = 16
)

// ThreadGroupSize is the kernel's per-axis thread-group size in X and Y.
const ThreadGroupSize = 8

// Param names a kernel parameter. The string form is the external ABI
// shared with the kernel source and must not change.
type Param int

// Kernel parameters.
const (
	ParamResult Param = iota
	ParamCameraToWorld
	ParamCameraInverseProjection
	ParamSkyboxTexture
	ParamPixelOffset
	ParamSeed
	ParamTime
	ParamDirectionalLight
	ParamSpheres
	ParamMeshObjects
	ParamVertices
	ParamIndices

	// ParamSample is the blend-pass weight parameter, not a kernel parameter.
	ParamSample

	paramCount
)

var paramNames = [paramCount]string{
	ParamResult:                  "Result",
	ParamCameraToWorld:           "_CameraToWorld",
	ParamCameraInverseProjection: "_CameraInverseProjection",
	ParamSkyboxTexture:           "_SkyboxTexture",
	ParamPixelOffset:             "_PixelOffset",
	ParamSeed:                    "_Seed",
	ParamTime:                    "_Time",
	ParamDirectionalLight:        "_DirectionalLight",
	ParamSpheres:                 "_Spheres",
	ParamMeshObjects:             "_MeshObjects",
	ParamVertices:                "_Vertices",
	ParamIndices:                 "_Indices",
	ParamSample:                  "_Sample",
}

// String returns the parameter name used by the kernel.
func (p Param) String() string {
	if p < 0 || p >= paramCount {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return paramNames[p]
}

// BufferSlot identifies one of the scene geometry buffers.
type BufferSlot int

// Geometry buffer slots, in binding order.
const (
	SlotSpheres BufferSlot = iota
	SlotMeshObjects
	SlotVertices
	SlotIndices

	// BufferSlotCount is the number of geometry buffer slots.
	BufferSlotCount
)

// Param returns the kernel parameter the slot is bound to.
func (s BufferSlot) Param() Param {
	switch s {
	case SlotSpheres:
		return ParamSpheres
	case SlotMeshObjects:
		return ParamMeshObjects
	case SlotVertices:
		return ParamVertices
	case SlotIndices:
		return ParamIndices
	default:
		panic(fmt.Sprintf("gpucore: invalid buffer slot %d", int(s)))
	}
}

// String returns the kernel parameter name of the slot.
func (s BufferSlot) String() string {
	if s < 0 || s >= BufferSlotCount {
		return fmt.Sprintf("BufferSlot(%d)", int(s))
	}
	return s.Param().String()
}

// BufferBinding is a geometry buffer bound for one dispatch.
type BufferBinding struct {
	// ID is the buffer handle. InvalidID means the slot is unbound.
	ID BufferID

	// Count is the number of records in the buffer.
	Count int

	// Stride is the record size in bytes.
	Stride int
}

// Bound reports whether the binding refers to a buffer.
func (b BufferBinding) Bound() bool {
	return b.ID != InvalidID && b.Count > 0
}

// KernelParams is the parameter table for one kernel dispatch.
// Each field is a fixed bind point; the comment names the kernel parameter.
type KernelParams struct {
	// Result is the output image (Result). Required.
	Result TargetID

	// Width and Height are the dimensions of Result in pixels.
	Width, Height int

	// CameraToWorld is _CameraToWorld.
	CameraToWorld mgl32.Mat4

	// CameraInverseProjection is _CameraInverseProjection.
	CameraInverseProjection mgl32.Mat4

	// Skybox is _SkyboxTexture. InvalidID leaves it unbound.
	Skybox TargetID

	// PixelOffset is _PixelOffset, the per-frame antialiasing jitter in [0,1)².
	PixelOffset mgl32.Vec2

	// Seed is _Seed, a per-frame random value in [0,1).
	Seed float32

	// Time is _Time, seconds since the tracer started.
	Time float32

	// DirectionalLight is _DirectionalLight: direction in xyz, intensity in w.
	// A zero vector means no light is modeled.
	DirectionalLight mgl32.Vec4

	// Buffers holds _Spheres, _MeshObjects, _Vertices and _Indices.
	Buffers [BufferSlotCount]BufferBinding
}

// Bind sets the buffer binding for a slot.
func (p *KernelParams) Bind(slot BufferSlot, b BufferBinding) {
	p.Buffers[slot] = b
}

// Buffer returns the binding for a slot.
func (p *KernelParams) Buffer(slot BufferSlot) BufferBinding {
	return p.Buffers[slot]
}

// BoundParams lists the parameters that carry a resource or value for this
// dispatch, in declaration order. Unbound buffer slots are omitted.
func (p *KernelParams) BoundParams() []Param {
	out := make([]Param, 0, int(paramCount))
	out = append(out, ParamResult, ParamCameraToWorld, ParamCameraInverseProjection)
	if p.Skybox != InvalidID {
		out = append(out, ParamSkyboxTexture)
	}
	out = append(out, ParamPixelOffset, ParamSeed, ParamTime)
	if p.DirectionalLight != (mgl32.Vec4{}) {
		out = append(out, ParamDirectionalLight)
	}
	for s := BufferSlot(0); s < BufferSlotCount; s++ {
		if p.Buffers[s].Bound() {
			out = append(out, s.Param())
		}
	}
	return out
}

// GroupCount returns the default 3-D thread-group count for a viewport:
// width and height divided by [ThreadGroupSize], rounded up, and depth 1.
func GroupCount(width, height int) [3]uint32 {
	if width <= 0 || height <= 0 {
		return [3]uint32{0, 0, 1}
	}
	//nolint:gosec // viewport dimensions always fit uint32
	return [3]uint32{
		uint32((width + ThreadGroupSize - 1) / ThreadGroupSize),
		uint32((height + ThreadGroupSize - 1) / ThreadGroupSize),
		1,
	}
}
