package software

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/scene"
)

const testSize = 16

// With a zero pixel offset the camera ray through (centerX, centerY) is
// exactly the view axis.
const (
	centerX = testSize / 2
	centerY = testSize/2 - 1
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d := New(Config{Workers: 4})
	t.Cleanup(d.Close)
	return d
}

func baseParams(t *testing.T, d *Device) *gpucore.KernelParams {
	t.Helper()
	result, err := d.CreateTarget("Result", testSize, testSize)
	if err != nil {
		t.Fatalf("CreateTarget() error = %v", err)
	}
	return &gpucore.KernelParams{
		Result:                  result,
		Width:                   testSize,
		Height:                  testSize,
		CameraToWorld:           mgl32.Ident4(),
		CameraInverseProjection: mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100).Inv(),
	}
}

func uploadBuffer(t *testing.T, d *Device, data []byte, stride int) gpucore.BufferBinding {
	t.Helper()
	count := len(data) / stride
	id, err := d.CreateBuffer("test", count, stride)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := d.WriteBuffer(id, data); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	return gpucore.BufferBinding{ID: id, Count: count, Stride: stride}
}

func pixel(t *testing.T, d *Device, id gpucore.TargetID, x, y int) mgl32.Vec4 {
	t.Helper()
	pix, err := d.ReadTarget(id)
	if err != nil {
		t.Fatalf("ReadTarget() error = %v", err)
	}
	i := (y*testSize + x) * 4
	return mgl32.Vec4{pix[i], pix[i+1], pix[i+2], pix[i+3]}
}

func solidSky(t *testing.T, d *Device, c mgl32.Vec3) gpucore.TargetID {
	t.Helper()
	id, err := d.CreateTarget("sky", 4, 2)
	if err != nil {
		t.Fatalf("CreateTarget() error = %v", err)
	}
	pix := make([]float32, 4*2*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c[0], c[1], c[2], 1
	}
	if err := d.WriteTarget(id, pix); err != nil {
		t.Fatalf("WriteTarget() error = %v", err)
	}
	return id
}

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-3 }

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.NameSoftware) {
		t.Fatal("software backend is not registered")
	}
	dev, err := backend.Open(backend.NameSoftware)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dev.Close()
}

func TestDispatchSphere(t *testing.T) {
	d := newTestDevice(t)
	p := baseParams(t, d)

	sky := mgl32.Vec3{0.2, 0.4, 0.6}
	p.Skybox = solidSky(t, d, sky)
	p.DirectionalLight = mgl32.Vec4{0, 0, -1, 1}

	sp := scene.Sphere{
		Position: mgl32.Vec3{0, 0, -5},
		Radius:   1,
		Albedo:   mgl32.Vec3{1, 0, 0},
	}
	p.Bind(gpucore.SlotSpheres, uploadBuffer(t, d, scene.SchemaBasic.AppendSphere(nil, sp), gpucore.SphereStrideBasic))

	if err := d.Dispatch(p, gpucore.GroupCount(testSize, testSize)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	center := pixel(t, d, p.Result, centerX, centerY)
	if !approx(center[0], 1) || !approx(center[1], 0) || !approx(center[2], 0) {
		t.Errorf("center pixel = %v, want lit red", center)
	}
	corner := pixel(t, d, p.Result, 0, 0)
	if !approx(corner[0], sky[0]) || !approx(corner[1], sky[1]) || !approx(corner[2], sky[2]) {
		t.Errorf("corner pixel = %v, want sky %v", corner, sky)
	}
	if corner[3] != 1 {
		t.Errorf("corner alpha = %v, want 1", corner[3])
	}
}

func TestDispatchShadowedWithoutLight(t *testing.T) {
	d := newTestDevice(t)
	p := baseParams(t, d)

	sp := scene.Sphere{Position: mgl32.Vec3{0, 0, -5}, Radius: 1, Albedo: mgl32.Vec3{1, 1, 1}}
	p.Bind(gpucore.SlotSpheres, uploadBuffer(t, d, scene.SchemaBasic.AppendSphere(nil, sp), gpucore.SphereStrideBasic))

	if err := d.Dispatch(p, gpucore.GroupCount(testSize, testSize)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if c := pixel(t, d, p.Result, centerX, centerY); c.Vec3() != (mgl32.Vec3{}) {
		t.Errorf("unlit diffuse sphere = %v, want black", c)
	}
}

func TestDispatchEmissiveSphere(t *testing.T) {
	d := newTestDevice(t)
	p := baseParams(t, d)

	sp := scene.Sphere{Position: mgl32.Vec3{0, 0, -5}, Radius: 1, Smoothness: 1, Emission: mgl32.Vec3{2, 3, 4}}
	p.Bind(gpucore.SlotSpheres, uploadBuffer(t, d, scene.SchemaExtended.AppendSphere(nil, sp), gpucore.SphereStrideExtended))

	if err := d.Dispatch(p, gpucore.GroupCount(testSize, testSize)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	c := pixel(t, d, p.Result, centerX, centerY)
	if !approx(c[0], 2) || !approx(c[1], 3) || !approx(c[2], 4) {
		t.Errorf("emitter pixel = %v, want (2, 3, 4)", c)
	}
}

func TestDispatchMesh(t *testing.T) {
	d := newTestDevice(t)
	p := baseParams(t, d)
	p.DirectionalLight = mgl32.Vec4{0, 0, -1, 1}

	r := scene.NewRegistry()
	r.Register(scene.NewInstance(&scene.Mesh{
		Vertices: []mgl32.Vec3{{-1, -1, -3}, {1, -1, -3}, {0, 1, -3}},
		Indices:  []int32{0, 1, 2},
	}))
	g := scene.Build(r)

	p.Bind(gpucore.SlotMeshObjects, uploadBuffer(t, d, g.MeshObjectBytes(), gpucore.MeshObjectStride))
	p.Bind(gpucore.SlotVertices, uploadBuffer(t, d, g.VertexBytes(), gpucore.VertexStride))
	p.Bind(gpucore.SlotIndices, uploadBuffer(t, d, g.IndexBytes(), gpucore.IndexStride))

	if err := d.Dispatch(p, gpucore.GroupCount(testSize, testSize)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	c := pixel(t, d, p.Result, centerX, centerY)
	if !approx(c[0], meshAlbedo[0]) {
		t.Errorf("mesh pixel = %v, want albedo %v", c, meshAlbedo)
	}
	if c := pixel(t, d, p.Result, 0, 0); c.Vec3() != (mgl32.Vec3{}) {
		t.Errorf("corner pixel = %v, want black without sky", c)
	}
}

func TestDispatchPartialGroups(t *testing.T) {
	d := newTestDevice(t)
	p := baseParams(t, d)
	p.Skybox = solidSky(t, d, mgl32.Vec3{1, 1, 1})

	if err := d.Dispatch(p, [3]uint32{1, 1, 1}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if c := pixel(t, d, p.Result, 3, 3); c[3] != 1 {
		t.Errorf("pixel in group (0,0) alpha = %v, want 1", c[3])
	}
	if c := pixel(t, d, p.Result, 12, 12); c[3] != 0 {
		t.Errorf("pixel outside dispatched groups alpha = %v, want 0", c[3])
	}
}

func TestDispatchErrors(t *testing.T) {
	d := newTestDevice(t)

	tests := []struct {
		name   string
		mutate func(p *gpucore.KernelParams)
		want   error
	}{
		{"unknown result", func(p *gpucore.KernelParams) { p.Result = 999 }, gpucore.ErrUnknownTarget},
		{"size mismatch", func(p *gpucore.KernelParams) { p.Width = 8 }, gpucore.ErrSizeMismatch},
		{"unknown skybox", func(p *gpucore.KernelParams) { p.Skybox = 999 }, gpucore.ErrUnknownTarget},
		{"unknown buffer", func(p *gpucore.KernelParams) {
			p.Bind(gpucore.SlotVertices, gpucore.BufferBinding{ID: 999, Count: 1, Stride: 12})
		}, gpucore.ErrUnknownBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams(t, d)
			tt.mutate(p)
			if err := d.Dispatch(p, [3]uint32{2, 2, 1}); !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBlendAndCopy(t *testing.T) {
	d := newTestDevice(t)
	src, _ := d.CreateTarget("src", 1, 1)
	dst, _ := d.CreateTarget("dst", 1, 1)
	other, _ := d.CreateTarget("other", 2, 1)

	_ = d.WriteTarget(src, []float32{1, 1, 1, 1})
	if err := d.Blend(src, dst, 0); err != nil {
		t.Fatalf("Blend() error = %v", err)
	}
	_ = d.WriteTarget(src, []float32{0, 0, 0, 1})
	if err := d.Blend(src, dst, 1); err != nil {
		t.Fatalf("Blend() error = %v", err)
	}
	got, _ := d.ReadTarget(dst)
	if got[0] != 0.5 || got[3] != 1 {
		t.Errorf("after two blends = %v, want red 0.5 alpha 1", got)
	}

	if err := d.CopyTarget(src, dst); err != nil {
		t.Fatalf("CopyTarget() error = %v", err)
	}
	got, _ = d.ReadTarget(dst)
	if got[0] != 0 {
		t.Errorf("after copy = %v, want red 0", got)
	}

	if err := d.Blend(src, other, 0); !errors.Is(err, gpucore.ErrSizeMismatch) {
		t.Errorf("Blend() size mismatch error = %v", err)
	}
	if err := d.CopyTarget(src, 999); !errors.Is(err, gpucore.ErrUnknownTarget) {
		t.Errorf("CopyTarget() unknown error = %v", err)
	}
}

func TestResourceErrors(t *testing.T) {
	d := newTestDevice(t)

	if _, err := d.CreateBuffer("x", 0, 4); !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("CreateBuffer(0) error = %v, want ErrInvalidSize", err)
	}
	if _, err := d.CreateTarget("x", 0, 4); !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("CreateTarget(0) error = %v, want ErrInvalidSize", err)
	}
	id, _ := d.CreateBuffer("x", 1, 4)
	if err := d.WriteBuffer(id, make([]byte, 8)); !errors.Is(err, gpucore.ErrSizeMismatch) {
		t.Errorf("WriteBuffer() overflow error = %v, want ErrSizeMismatch", err)
	}
	d.DestroyBuffer(id)
	if err := d.WriteBuffer(id, nil); !errors.Is(err, gpucore.ErrUnknownBuffer) {
		t.Errorf("WriteBuffer() after destroy error = %v, want ErrUnknownBuffer", err)
	}
	tid, _ := d.CreateTarget("x", 1, 1)
	if err := d.WriteTarget(tid, make([]float32, 3)); !errors.Is(err, gpucore.ErrSizeMismatch) {
		t.Errorf("WriteTarget() short error = %v, want ErrSizeMismatch", err)
	}
	d.DestroyTarget(tid)
	if _, err := d.ReadTarget(tid); !errors.Is(err, gpucore.ErrUnknownTarget) {
		t.Errorf("ReadTarget() after destroy error = %v, want ErrUnknownTarget", err)
	}
}

func TestIntersectTriangle(t *testing.T) {
	v0, v1, v2 := mgl32.Vec3{-1, -1, 0}, mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0}
	tests := []struct {
		name  string
		r     ray
		want  float32
		wantH bool
	}{
		{"front", ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}}, 5, true},
		{"back face", ray{mgl32.Vec3{0, 0, -2}, mgl32.Vec3{0, 0, 1}}, 2, true},
		{"miss", ray{mgl32.Vec3{3, 0, 5}, mgl32.Vec3{0, 0, -1}}, 0, false},
		{"parallel", ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{1, 0, 0}}, 0, false},
		{"behind", ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intersectTriangle(tt.r, v0, v1, v2)
			if ok != tt.wantH || (ok && !approx(got, tt.want)) {
				t.Errorf("intersectTriangle() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantH)
			}
		})
	}
}

func TestGroupPoolRunsEveryGroupOnce(t *testing.T) {
	p := newGroupPool(3)
	defer p.close()

	var mu sync.Mutex
	seen := make(map[[2]uint32]int)
	var calls atomic.Int32
	p.dispatch(7, 5, func(x, y uint32) {
		calls.Add(1)
		mu.Lock()
		seen[[2]uint32{x, y}]++
		mu.Unlock()
	})

	if calls.Load() != 35 {
		t.Errorf("calls = %d, want 35", calls.Load())
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("group %v ran %d times", k, n)
		}
	}

	p.close()
	p.dispatch(1, 1, func(uint32, uint32) { t.Error("closed pool ran work") })
}
