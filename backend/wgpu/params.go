package wgpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// Uniform block sizes in bytes. Both are multiples of 16.
const (
	tracerParamsSize = 192
	blendParamsSize  = 16
)

// tracerParams is the host copy of the Params uniform in tracer.wgsl.
//
//	offset  field
//	0       camera_to_world            mat4x4<f32>
//	64      camera_inverse_projection  mat4x4<f32>
//	128     directional_light          vec4<f32>
//	144     pixel_offset               vec2<f32>
//	152     seed, time                 f32
//	160     width, height              u32
//	168     sphere_count, sphere_stride (in floats)
//	176     mesh_count, sky_width, sky_height, max_bounces
type tracerParams struct {
	cameraToWorld mgl32.Mat4
	inverseProj   mgl32.Mat4
	light         mgl32.Vec4
	pixelOffset   mgl32.Vec2
	seed, time    float32
	width, height uint32
	sphereCount   uint32
	sphereStride  uint32
	meshCount     uint32
	skyW, skyH    uint32
	maxBounces    uint32
}

func newTracerParams(p *gpucore.KernelParams, skyW, skyH, maxBounces int) tracerParams {
	//nolint:gosec // sizes and counts fit uint32
	tp := tracerParams{
		cameraToWorld: p.CameraToWorld,
		inverseProj:   p.CameraInverseProjection,
		light:         p.DirectionalLight,
		pixelOffset:   p.PixelOffset,
		seed:          p.Seed,
		time:          p.Time,
		width:         uint32(p.Width),
		height:        uint32(p.Height),
		skyW:          uint32(skyW),
		skyH:          uint32(skyH),
		maxBounces:    uint32(maxBounces),
	}
	if b := p.Buffer(gpucore.SlotSpheres); b.Bound() {
		tp.sphereCount = uint32(b.Count)       //nolint:gosec // record counts fit uint32
		tp.sphereStride = uint32(b.Stride / 4) //nolint:gosec // stride is 40 or 56
	}
	// Mesh objects are only traversed when their geometry is bound too.
	if p.Buffer(gpucore.SlotMeshObjects).Bound() &&
		p.Buffer(gpucore.SlotVertices).Bound() &&
		p.Buffer(gpucore.SlotIndices).Bound() {
		tp.meshCount = uint32(p.Buffer(gpucore.SlotMeshObjects).Count) //nolint:gosec // record counts fit uint32
	}
	return tp
}

func (tp *tracerParams) bytes() []byte {
	buf := make([]byte, 0, tracerParamsSize)
	for _, f := range tp.cameraToWorld {
		buf = appendF32(buf, f)
	}
	for _, f := range tp.inverseProj {
		buf = appendF32(buf, f)
	}
	for _, f := range tp.light {
		buf = appendF32(buf, f)
	}
	buf = appendF32(buf, tp.pixelOffset[0])
	buf = appendF32(buf, tp.pixelOffset[1])
	buf = appendF32(buf, tp.seed)
	buf = appendF32(buf, tp.time)
	for _, u := range []uint32{
		tp.width, tp.height,
		tp.sphereCount, tp.sphereStride,
		tp.meshCount, tp.skyW, tp.skyH, tp.maxBounces,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, u)
	}
	return buf
}

func blendParamsBytes(sample uint32, count int) []byte {
	buf := make([]byte, blendParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], sample)
	binary.LittleEndian.PutUint32(buf[4:], uint32(count)) //nolint:gosec // pixel counts fit uint32
	return buf
}

func appendF32(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}

// pixelsToBytes converts RGBA float pixels to their buffer representation.
func pixelsToBytes(pix []float32) []byte {
	buf := make([]byte, len(pix)*4)
	for i, f := range pix {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToPixels is the inverse of pixelsToBytes.
func bytesToPixels(buf []byte) []float32 {
	pix := make([]float32, len(buf)/4)
	for i := range pix {
		pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return pix
}
