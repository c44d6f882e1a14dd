package software

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/scene"
)

const (
	epsilon     = 1e-6
	surfaceBias = 1e-3
	maxDistance = float32(math.MaxFloat32)
)

// Mesh surfaces have a fixed material; the mesh records carry only geometry.
var (
	meshAlbedo   = mgl32.Vec3{0.8, 0.8, 0.8}
	meshSpecular = mgl32.Vec3{0.04, 0.04, 0.04}
)

type ray struct {
	origin, dir mgl32.Vec3
}

type rayHit struct {
	dist      float32
	pos       mgl32.Vec3
	normal    mgl32.Vec3
	albedo    mgl32.Vec3
	specular  mgl32.Vec3
	emission  mgl32.Vec3
	roughness float32
}

// kernel is the bound state of one dispatch.
type kernel struct {
	width, height int
	out           []float32

	cameraToWorld mgl32.Mat4
	inverseProj   mgl32.Mat4
	pixelOffset   mgl32.Vec2
	seed          float32
	light         mgl32.Vec4

	spheres  []scene.Sphere
	glossy   bool
	objects  []scene.MeshObject
	vertices []mgl32.Vec3
	indices  []int32

	sky *target

	maxBounces int
}

// bindKernel resolves every handle in params. Unbound buffer slots become
// empty arrays. Called with d.mu held.
func (d *Device) bindKernel(p *gpucore.KernelParams) (*kernel, error) {
	out, ok := d.targets[p.Result]
	if !ok {
		return nil, fmt.Errorf("software: dispatch: %s %d: %w", gpucore.ParamResult, p.Result, gpucore.ErrUnknownTarget)
	}
	if out.width != p.Width || out.height != p.Height {
		return nil, fmt.Errorf("software: dispatch: %s is %dx%d, params say %dx%d: %w",
			gpucore.ParamResult, out.width, out.height, p.Width, p.Height, gpucore.ErrSizeMismatch)
	}

	k := &kernel{
		width:         out.width,
		height:        out.height,
		out:           out.pix,
		cameraToWorld: p.CameraToWorld,
		inverseProj:   p.CameraInverseProjection,
		pixelOffset:   p.PixelOffset,
		seed:          p.Seed,
		light:         p.DirectionalLight,
		maxBounces:    d.cfg.MaxBounces,
	}

	if p.Skybox != gpucore.InvalidID {
		sky, ok := d.targets[p.Skybox]
		if !ok {
			return nil, fmt.Errorf("software: dispatch: %s %d: %w", gpucore.ParamSkyboxTexture, p.Skybox, gpucore.ErrUnknownTarget)
		}
		k.sky = sky
	}

	var err error
	if data, stride, ok, berr := d.bufferData(p, gpucore.SlotSpheres); berr != nil {
		return nil, berr
	} else if ok {
		if k.spheres, err = scene.DecodeSpheres(data, stride); err != nil {
			return nil, fmt.Errorf("software: dispatch: %w", err)
		}
		k.glossy = stride == gpucore.SphereStrideExtended
	}
	if data, _, ok, berr := d.bufferData(p, gpucore.SlotMeshObjects); berr != nil {
		return nil, berr
	} else if ok {
		if k.objects, err = scene.DecodeMeshObjects(data); err != nil {
			return nil, fmt.Errorf("software: dispatch: %w", err)
		}
	}
	if data, _, ok, berr := d.bufferData(p, gpucore.SlotVertices); berr != nil {
		return nil, berr
	} else if ok {
		if k.vertices, err = scene.DecodeVertices(data); err != nil {
			return nil, fmt.Errorf("software: dispatch: %w", err)
		}
	}
	if data, _, ok, berr := d.bufferData(p, gpucore.SlotIndices); berr != nil {
		return nil, berr
	} else if ok {
		if k.indices, err = scene.DecodeIndices(data); err != nil {
			return nil, fmt.Errorf("software: dispatch: %w", err)
		}
	}
	return k, nil
}

// bufferData returns the bytes of the records bound to slot.
func (d *Device) bufferData(p *gpucore.KernelParams, slot gpucore.BufferSlot) ([]byte, int, bool, error) {
	binding := p.Buffer(slot)
	if !binding.Bound() {
		return nil, 0, false, nil
	}
	b, ok := d.buffers[binding.ID]
	if !ok {
		return nil, 0, false, fmt.Errorf("software: dispatch: %s %d: %w", slot, binding.ID, gpucore.ErrUnknownBuffer)
	}
	if binding.Stride != b.stride || binding.Count > b.count {
		return nil, 0, false, fmt.Errorf("software: dispatch: %s binds %d x %d bytes, buffer holds %d x %d: %w",
			slot, binding.Count, binding.Stride, b.count, b.stride, gpucore.ErrSizeMismatch)
	}
	return b.data[:binding.Count*binding.Stride], b.stride, true, nil
}

// runGroup shades the 8x8 pixel block of thread group (gx, gy).
func (k *kernel) runGroup(gx, gy uint32) {
	const n = gpucore.ThreadGroupSize
	for ty := range n {
		y := int(gy)*n + ty
		if y >= k.height {
			return
		}
		for tx := range n {
			x := int(gx)*n + tx
			if x >= k.width {
				break
			}
			c := k.shadePixel(x, y)
			i := (y*k.width + x) * 4
			k.out[i] = c[0]
			k.out[i+1] = c[1]
			k.out[i+2] = c[2]
			k.out[i+3] = 1
		}
	}
}

// shadePixel traces the camera ray through pixel (x, y). Row 0 is the top
// of the image.
func (k *kernel) shadePixel(x, y int) mgl32.Vec3 {
	u := (float32(x)+k.pixelOffset[0])/float32(k.width)*2 - 1
	v := (float32(k.height-1-y)+k.pixelOffset[1])/float32(k.height)*2 - 1
	r := k.cameraRay(u, v)

	rng := newPixelRNG(x, y, k.seed)

	var result mgl32.Vec3
	energy := mgl32.Vec3{1, 1, 1}
	for range k.maxBounces {
		h, ok := k.trace(r)
		if !ok {
			result = result.Add(mulVec(energy, k.sampleSky(r.dir)))
			break
		}

		result = result.Add(mulVec(energy, h.emission))
		result = result.Add(mulVec(energy, k.directLight(h)))

		dir := reflect(r.dir, h.normal)
		if h.roughness > 0 {
			jittered := dir.Add(rng.unitVector().Mul(h.roughness)).Normalize()
			if jittered.Dot(h.normal) > 0 {
				dir = jittered
			}
		}
		r = ray{origin: h.pos.Add(h.normal.Mul(surfaceBias)), dir: dir}

		energy = mulVec(energy, h.specular)
		if energy[0] < 1e-3 && energy[1] < 1e-3 && energy[2] < 1e-3 {
			break
		}
	}
	return result
}

func (k *kernel) cameraRay(u, v float32) ray {
	origin := k.cameraToWorld.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()

	p := k.inverseProj.Mul4x1(mgl32.Vec4{u, v, 0, 1})
	dir := p.Vec3()
	if p[3] != 0 {
		dir = dir.Mul(1 / p[3])
	}
	dir = k.cameraToWorld.Mul4x1(dir.Vec4(0)).Vec3().Normalize()
	return ray{origin: origin, dir: dir}
}

// directLight returns the diffuse contribution of the directional light,
// or zero when the point is shadowed or no light is bound.
func (k *kernel) directLight(h rayHit) mgl32.Vec3 {
	intensity := k.light[3]
	toLight := k.light.Vec3().Mul(-1)
	if intensity <= 0 || toLight.Len() == 0 {
		return mgl32.Vec3{}
	}
	toLight = toLight.Normalize()
	ndotl := h.normal.Dot(toLight)
	if ndotl <= 0 {
		return mgl32.Vec3{}
	}
	shadow := ray{origin: h.pos.Add(h.normal.Mul(surfaceBias)), dir: toLight}
	if _, hit := k.trace(shadow); hit {
		return mgl32.Vec3{}
	}
	return h.albedo.Mul(ndotl * intensity)
}

// trace returns the closest hit along r.
func (k *kernel) trace(r ray) (rayHit, bool) {
	best := rayHit{dist: maxDistance}
	found := false

	for i := range k.spheres {
		if k.intersectSphere(r, &k.spheres[i], &best) {
			found = true
		}
	}
	for i := range k.objects {
		if k.intersectMesh(r, &k.objects[i], &best) {
			found = true
		}
	}
	return best, found
}

func (k *kernel) intersectSphere(r ray, s *scene.Sphere, best *rayHit) bool {
	d := r.origin.Sub(s.Position)
	p1 := -r.dir.Dot(d)
	p2sqr := p1*p1 - d.Dot(d) + s.Radius*s.Radius
	if p2sqr < 0 {
		return false
	}
	p2 := float32(math.Sqrt(float64(p2sqr)))
	t := p1 - p2
	if t <= 0 {
		t = p1 + p2
	}
	if t <= 0 || t >= best.dist {
		return false
	}

	pos := r.origin.Add(r.dir.Mul(t))
	*best = rayHit{
		dist:     t,
		pos:      pos,
		normal:   pos.Sub(s.Position).Normalize(),
		albedo:   s.Albedo,
		specular: s.Specular,
		emission: s.Emission,
	}
	if k.glossy {
		best.roughness = 1 - s.Smoothness
	}
	return true
}

func (k *kernel) intersectMesh(r ray, o *scene.MeshObject, best *rayHit) bool {
	start := int(o.IndicesOffset)
	end := start + int(o.IndicesCount)
	if start < 0 || end > len(k.indices) {
		return false
	}

	hit := false
	for i := start; i+2 < end; i += 3 {
		a, b, c := k.indices[i], k.indices[i+1], k.indices[i+2]
		if !k.validVertex(a) || !k.validVertex(b) || !k.validVertex(c) {
			continue
		}
		v0 := o.LocalToWorld.Mul4x1(k.vertices[a].Vec4(1)).Vec3()
		v1 := o.LocalToWorld.Mul4x1(k.vertices[b].Vec4(1)).Vec3()
		v2 := o.LocalToWorld.Mul4x1(k.vertices[c].Vec4(1)).Vec3()

		t, ok := intersectTriangle(r, v0, v1, v2)
		if !ok || t >= best.dist {
			continue
		}
		n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
		if n.Dot(r.dir) > 0 {
			n = n.Mul(-1)
		}
		*best = rayHit{
			dist:     t,
			pos:      r.origin.Add(r.dir.Mul(t)),
			normal:   n,
			albedo:   meshAlbedo,
			specular: meshSpecular,
		}
		hit = true
	}
	return hit
}

func (k *kernel) validVertex(i int32) bool {
	return i >= 0 && int(i) < len(k.vertices)
}

// intersectTriangle is the two-sided Möller–Trumbore test.
func intersectTriangle(r ray, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	pvec := r.dir.Cross(e2)
	det := e1.Dot(pvec)
	if det > -epsilon && det < epsilon {
		return 0, false
	}
	inv := 1 / det

	tvec := r.origin.Sub(v0)
	u := tvec.Dot(pvec) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qvec := tvec.Cross(e1)
	v := r.dir.Dot(qvec) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(qvec) * inv
	if t <= epsilon {
		return 0, false
	}
	return t, true
}

// sampleSky looks up the equirectangular skybox in direction dir.
func (k *kernel) sampleSky(dir mgl32.Vec3) mgl32.Vec3 {
	if k.sky == nil {
		return mgl32.Vec3{}
	}
	theta := math.Acos(float64(mgl32.Clamp(dir[1], -1, 1))) / math.Pi
	phi := math.Atan2(float64(dir[0]), float64(-dir[2]))/(2*math.Pi) + 0.5

	sx := min(int(phi*float64(k.sky.width)), k.sky.width-1)
	sy := min(int(theta*float64(k.sky.height)), k.sky.height-1)
	i := (sy*k.sky.width + sx) * 4
	return mgl32.Vec3{k.sky.pix[i], k.sky.pix[i+1], k.sky.pix[i+2]}
}

func reflect(d, n mgl32.Vec3) mgl32.Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

func mulVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// pixelRNG is a small per-pixel xorshift generator seeded from the pixel
// position and _Seed, so every frame perturbs differently.
type pixelRNG struct {
	state uint32
}

func newPixelRNG(x, y int, seed float32) *pixelRNG {
	h := uint32(x)*0x9E3779B1 ^ uint32(y)*0x85EBCA77 ^ math.Float32bits(seed)*0xC2B2AE3D //nolint:gosec // hashing
	h ^= h >> 16
	h *= 0x7FEB352D
	h ^= h >> 15
	if h == 0 {
		h = 1
	}
	return &pixelRNG{state: h}
}

func (r *pixelRNG) next() float32 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 17
	r.state ^= r.state << 5
	return float32(r.state>>8) / (1 << 24)
}

func (r *pixelRNG) unitVector() mgl32.Vec3 {
	z := r.next()*2 - 1
	a := r.next() * 2 * math.Pi
	s := float32(math.Sqrt(float64(1 - z*z)))
	return mgl32.Vec3{s * float32(math.Cos(float64(a))), s * float32(math.Sin(float64(a))), z}
}
