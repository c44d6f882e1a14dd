package render

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

type fakeTarget struct {
	w, h int
	pix  []float32
}

// fakeDevice implements the target half of gpucore.Device on the CPU.
type fakeDevice struct {
	gpucore.Device

	nextID  gpucore.TargetID
	targets map[gpucore.TargetID]*fakeTarget
	created int
	blends  []uint32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{targets: make(map[gpucore.TargetID]*fakeTarget)}
}

func (d *fakeDevice) CreateTarget(_ string, w, h int) (gpucore.TargetID, error) {
	d.nextID++
	d.created++
	d.targets[d.nextID] = &fakeTarget{w: w, h: h, pix: make([]float32, w*h*4)}
	return d.nextID, nil
}

func (d *fakeDevice) DestroyTarget(id gpucore.TargetID) { delete(d.targets, id) }

func (d *fakeDevice) WriteTarget(id gpucore.TargetID, pix []float32) error {
	t, ok := d.targets[id]
	if !ok {
		return gpucore.ErrUnknownTarget
	}
	copy(t.pix, pix)
	return nil
}

func (d *fakeDevice) ReadTarget(id gpucore.TargetID) ([]float32, error) {
	t, ok := d.targets[id]
	if !ok {
		return nil, gpucore.ErrUnknownTarget
	}
	return append([]float32(nil), t.pix...), nil
}

func (d *fakeDevice) Blend(src, dst gpucore.TargetID, sample uint32) error {
	s, d2 := d.targets[src], d.targets[dst]
	if s == nil || d2 == nil {
		return gpucore.ErrUnknownTarget
	}
	d.blends = append(d.blends, sample)
	w := 1 / float32(sample+1)
	for i := range d2.pix {
		d2.pix[i] += (s.pix[i] - d2.pix[i]) * w
	}
	return nil
}

func TestEnsureAllocatesOnce(t *testing.T) {
	dev := newFakeDevice()
	tg := NewTargets(dev)

	changed, err := tg.Ensure(64, 32)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !changed {
		t.Error("first Ensure() should report a change")
	}
	if tg.Result() == gpucore.InvalidID || tg.Converged() == gpucore.InvalidID {
		t.Fatal("Ensure() left a target unallocated")
	}

	changed, err = tg.Ensure(64, 32)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if changed {
		t.Error("Ensure() with the same size should not reallocate")
	}
	if dev.created != 2 {
		t.Errorf("created %d targets, want 2", dev.created)
	}
}

func TestEnsureResizeResetsSample(t *testing.T) {
	dev := newFakeDevice()
	tg := NewTargets(dev)
	if _, err := tg.Ensure(8, 8); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	for range 3 {
		if err := tg.Composite(); err != nil {
			t.Fatalf("Composite() error = %v", err)
		}
	}
	if tg.Sample() != 3 {
		t.Fatalf("Sample() = %d, want 3", tg.Sample())
	}

	changed, err := tg.Ensure(16, 8)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !changed {
		t.Error("resize should report a change")
	}
	if tg.Sample() != 0 {
		t.Errorf("Sample() after resize = %d, want 0", tg.Sample())
	}
	if len(dev.targets) != 2 {
		t.Errorf("%d targets alive after resize, want 2", len(dev.targets))
	}
	if w, h := tg.Size(); w != 16 || h != 8 {
		t.Errorf("Size() = %dx%d, want 16x8", w, h)
	}
}

func TestEnsureInvalidSize(t *testing.T) {
	tg := NewTargets(newFakeDevice())
	if _, err := tg.Ensure(0, 10); !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("Ensure(0, 10) error = %v, want ErrInvalidSize", err)
	}
}

func TestCompositeRunningMean(t *testing.T) {
	dev := newFakeDevice()
	tg := NewTargets(dev)
	if _, err := tg.Ensure(1, 1); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	samples := []float32{1, 0, 0.5, 0.5}
	var sum float32
	for i, v := range samples {
		if err := dev.WriteTarget(tg.Result(), []float32{v, v, v, 1}); err != nil {
			t.Fatalf("WriteTarget() error = %v", err)
		}
		if got, want := tg.Weight(), 1/float32(i+1); got != want {
			t.Errorf("Weight() before frame %d = %v, want %v", i, got, want)
		}
		if err := tg.Composite(); err != nil {
			t.Fatalf("Composite() error = %v", err)
		}
		sum += v

		img, err := tg.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		mean := sum / float32(i+1)
		if got := img.RGBA(0, 0)[0]; math.Abs(float64(got-mean)) > 1e-6 {
			t.Errorf("converged after %d frames = %v, want %v", i+1, got, mean)
		}
	}

	if want := []uint32{0, 1, 2, 3}; len(dev.blends) != len(want) {
		t.Errorf("blend samples = %v, want %v", dev.blends, want)
	}
}

func TestResetRestartsAccumulation(t *testing.T) {
	dev := newFakeDevice()
	tg := NewTargets(dev)
	if _, err := tg.Ensure(1, 1); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	_ = dev.WriteTarget(tg.Result(), []float32{1, 1, 1, 1})
	_ = tg.Composite()
	_ = tg.Composite()

	tg.Reset()
	if tg.Sample() != 0 {
		t.Fatalf("Sample() after Reset() = %d, want 0", tg.Sample())
	}

	_ = dev.WriteTarget(tg.Result(), []float32{0.25, 0.25, 0.25, 1})
	if err := tg.Composite(); err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	img, _ := tg.Read()
	if got := img.RGBA(0, 0)[0]; got != 0.25 {
		t.Errorf("first composite after reset = %v, want 0.25 (full replace)", got)
	}
	if tg.Sample() != 1 {
		t.Errorf("Sample() = %d, want 1", tg.Sample())
	}
}

func TestCompositeWithoutTargets(t *testing.T) {
	tg := NewTargets(newFakeDevice())
	if err := tg.Composite(); !errors.Is(err, ErrNoTargets) {
		t.Errorf("Composite() error = %v, want ErrNoTargets", err)
	}
	if tg.Sample() != 0 {
		t.Error("failed Composite() must not advance the sample counter")
	}
}

func TestRelease(t *testing.T) {
	dev := newFakeDevice()
	tg := NewTargets(dev)
	_, _ = tg.Ensure(4, 4)
	tg.Release()
	if len(dev.targets) != 0 {
		t.Errorf("%d targets alive after Release(), want 0", len(dev.targets))
	}
	if tg.Result() != gpucore.InvalidID {
		t.Error("Result() should be InvalidID after Release()")
	}
}

func TestFloatImageAt(t *testing.T) {
	img := NewFloatImage(2, 1)
	img.SetRGBA(0, 0, mgl32.Vec4{1, 0, 2, 1})
	img.SetRGBA(1, 0, mgl32.Vec4{-1, 0.5, float32(math.NaN()), 1})

	tests := []struct {
		x       int
		r, g, b uint32
	}{
		{0, 0xffff, 0, 0xffff},
		{1, 0, uint32(encode(0.5)), 0},
	}
	for _, tt := range tests {
		r, g, b, a := img.At(tt.x, 0).RGBA()
		if r != tt.r || g != tt.g || b != tt.b || a != 0xffff {
			t.Errorf("At(%d, 0) = (%d, %d, %d, %d), want (%d, %d, %d, 65535)", tt.x, r, g, b, a, tt.r, tt.g, tt.b)
		}
	}
	if encode(0.5) <= 0x8000 {
		t.Errorf("encode(0.5) = %d, want gamma-brightened value above half", encode(0.5))
	}
	if _, err := FloatImageFromPixels(2, 2, make([]float32, 3)); err == nil {
		t.Error("FloatImageFromPixels() with a short slice should fail")
	}
}

func TestGradientSky(t *testing.T) {
	horizon := mgl32.Vec3{1, 1, 1}
	zenith := mgl32.Vec3{0, 0, 1}
	sky := GradientSky(8, 64, horizon, zenith)

	top := sky.RGBA(0, 0)
	mid := sky.RGBA(0, 32)
	if top[0] >= mid[0] {
		t.Errorf("top red %v should be below horizon red %v", top[0], mid[0])
	}
	if math.Abs(float64(top[2]-1)) > 1e-6 || math.Abs(float64(mid[2]-1)) > 1e-6 {
		t.Errorf("blue channel should stay 1, got top %v mid %v", top[2], mid[2])
	}
	if sky.RGBA(7, 63)[3] != 1 {
		t.Error("sky alpha should be 1")
	}
}
