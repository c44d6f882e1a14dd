package software

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
)

func init() {
	backend.Register(backend.NameSoftware, func() (gpucore.Device, error) {
		return New(DefaultConfig()), nil
	})
}

// Config configures the CPU device.
type Config struct {
	// Workers is the number of goroutines running thread groups.
	// Zero uses GOMAXPROCS.
	Workers int

	// MaxBounces limits the reflection depth per pixel.
	MaxBounces int
}

// DefaultConfig returns the default CPU device settings.
func DefaultConfig() Config {
	return Config{MaxBounces: 8}
}

type buffer struct {
	data   []byte
	count  int
	stride int
}

type target struct {
	width, height int
	pix           []float32
}

// Device is a gpucore.Device that keeps every resource in host memory and
// runs the kernel on the CPU.
//
// Device is safe for concurrent use. Commands run synchronously, so they
// trivially execute in issue order.
type Device struct {
	mu      sync.RWMutex
	buffers map[gpucore.BufferID]*buffer
	targets map[gpucore.TargetID]*target
	nextID  atomic.Uint64

	cfg  Config
	pool *groupPool
}

var _ gpucore.Device = (*Device)(nil)

// New creates a CPU device.
func New(cfg Config) *Device {
	if cfg.MaxBounces <= 0 {
		cfg.MaxBounces = DefaultConfig().MaxBounces
	}
	d := &Device{
		buffers: make(map[gpucore.BufferID]*buffer),
		targets: make(map[gpucore.TargetID]*target),
		cfg:     cfg,
		pool:    newGroupPool(cfg.Workers),
	}
	slogger().Info("software: device created", "workers", d.pool.workers)
	return d
}

// SetLogger sets the logger for the software backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

func (d *Device) newID() uint64 { return d.nextID.Add(1) }

// CreateBuffer allocates a zeroed buffer of count records.
func (d *Device) CreateBuffer(_ string, count, stride int) (gpucore.BufferID, error) {
	if count <= 0 || stride <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %d x %d: %w", count, stride, gpucore.ErrInvalidSize)
	}
	id := gpucore.BufferID(d.newID())

	d.mu.Lock()
	d.buffers[id] = &buffer{data: make([]byte, count*stride), count: count, stride: stride}
	d.mu.Unlock()
	return id, nil
}

// WriteBuffer copies data to the start of the buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("software: write buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("software: write %d bytes to %d-byte buffer: %w", len(data), len(b.data), gpucore.ErrSizeMismatch)
	}
	copy(b.data, data)
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// CreateTarget allocates a zeroed float RGBA image.
func (d *Device) CreateTarget(_ string, width, height int) (gpucore.TargetID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: target %dx%d: %w", width, height, gpucore.ErrInvalidSize)
	}
	id := gpucore.TargetID(d.newID())

	d.mu.Lock()
	d.targets[id] = &target{width: width, height: height, pix: make([]float32, width*height*4)}
	d.mu.Unlock()
	return id, nil
}

// WriteTarget replaces the target pixels.
func (d *Device) WriteTarget(id gpucore.TargetID, pixels []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.targets[id]
	if !ok {
		return fmt.Errorf("software: write target %d: %w", id, gpucore.ErrUnknownTarget)
	}
	if len(pixels) != len(t.pix) {
		return fmt.Errorf("software: write %d floats to %dx%d target: %w", len(pixels), t.width, t.height, gpucore.ErrSizeMismatch)
	}
	copy(t.pix, pixels)
	return nil
}

// ReadTarget returns a copy of the target pixels.
func (d *Device) ReadTarget(id gpucore.TargetID) ([]float32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.targets[id]
	if !ok {
		return nil, fmt.Errorf("software: read target %d: %w", id, gpucore.ErrUnknownTarget)
	}
	return append([]float32(nil), t.pix...), nil
}

// DestroyTarget releases a target.
func (d *Device) DestroyTarget(id gpucore.TargetID) {
	d.mu.Lock()
	delete(d.targets, id)
	d.mu.Unlock()
}

// Dispatch runs the kernel for groups[0] x groups[1] thread groups of 8x8
// pixels. groups[2] is ignored beyond being non-zero. Pixels outside the
// result target are skipped.
func (d *Device) Dispatch(params *gpucore.KernelParams, groups [3]uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	k, err := d.bindKernel(params)
	if err != nil {
		return err
	}
	if groups[2] == 0 {
		return nil
	}

	slogger().Debug("software: dispatch",
		"groups_x", groups[0], "groups_y", groups[1],
		"spheres", len(k.spheres), "mesh_objects", len(k.objects))

	d.pool.dispatch(groups[0], groups[1], k.runGroup)
	return nil
}

// Blend folds src into dst: dst += (src - dst) / (sample + 1).
func (d *Device) Blend(src, dst gpucore.TargetID, sample uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, t, err := d.targetPair(src, dst)
	if err != nil {
		return fmt.Errorf("software: blend: %w", err)
	}
	w := 1 / float32(sample+1)
	for i := range t.pix {
		t.pix[i] += (s.pix[i] - t.pix[i]) * w
	}
	return nil
}

// CopyTarget copies src into dst.
func (d *Device) CopyTarget(src, dst gpucore.TargetID) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, t, err := d.targetPair(src, dst)
	if err != nil {
		return fmt.Errorf("software: copy: %w", err)
	}
	copy(t.pix, s.pix)
	return nil
}

func (d *Device) targetPair(src, dst gpucore.TargetID) (*target, *target, error) {
	s, ok := d.targets[src]
	if !ok {
		return nil, nil, fmt.Errorf("source %d: %w", src, gpucore.ErrUnknownTarget)
	}
	t, ok := d.targets[dst]
	if !ok {
		return nil, nil, fmt.Errorf("destination %d: %w", dst, gpucore.ErrUnknownTarget)
	}
	if s.width != t.width || s.height != t.height {
		return nil, nil, fmt.Errorf("%dx%d into %dx%d: %w", s.width, s.height, t.width, t.height, gpucore.ErrSizeMismatch)
	}
	return s, t, nil
}

// Close stops the worker pool and drops every resource.
func (d *Device) Close() {
	d.pool.close()

	d.mu.Lock()
	clear(d.buffers)
	clear(d.targets)
	d.mu.Unlock()
	slogger().Info("software: device closed")
}
