package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
)

func init() {
	backend.Register(backend.NameWGPU, func() (gpucore.Device, error) {
		return New(DefaultConfig())
	})
}

// Errors returned while opening a device.
var (
	// ErrNoAdapter is returned when no GPU adapter is available.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter found")

	// ErrNoHALProvider is returned by NewFromProvider when the provider does
	// not expose HAL device and queue objects.
	ErrNoHALProvider = errors.New("wgpu: provider does not expose HAL types")

	// ErrGPUTimeout is returned when submitted work does not finish in time.
	ErrGPUTimeout = errors.New("wgpu: timed out waiting for GPU")
)

// Config configures the GPU device.
type Config struct {
	// FenceTimeout bounds each wait for submitted work.
	FenceTimeout time.Duration

	// MaxBounces limits the reflection depth per pixel.
	MaxBounces int
}

// DefaultConfig returns the default GPU device settings.
func DefaultConfig() Config {
	return Config{
		FenceTimeout: 5 * time.Second,
		MaxBounces:   8,
	}
}

type gpuBuffer struct {
	buf    hal.Buffer
	size   uint64
	count  int
	stride int
}

type gpuTarget struct {
	buf           hal.Buffer
	size          uint64
	width, height int
}

// Device is a gpucore.Device backed by a wgpu HAL device. Geometry buffers
// and float targets are storage buffers; targets hold one vec4<f32> per
// pixel.
//
// Every command is submitted and waited on before the call returns, so
// commands execute in issue order. Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool // device and queue are owned by a provider

	buffers map[gpucore.BufferID]*gpuBuffer
	targets map[gpucore.TargetID]*gpuTarget
	nextID  atomic.Uint64

	// Created on first use.
	tracer      *computePipeline
	blend       *computePipeline
	placeholder hal.Buffer

	cfg    Config
	closed bool
}

var _ gpucore.Device = (*Device)(nil)

// New opens a standalone device on the Vulkan backend, preferring a
// discrete or integrated GPU.
func New(cfg Config) (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("wgpu: vulkan backend: %w", backend.ErrBackendNotAvailable)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := newDevice(openDev.Device, openDev.Queue, cfg)
	d.instance = instance
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewFromProvider uses the device and queue of a host application (e.g.
// a gogpu window). The provider must also implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. Close does not
// destroy the shared device.
func NewFromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}

	d := newDevice(device, queue, cfg)
	d.external = true
	slogger().Info("wgpu: using shared device")
	return d, nil
}

// newDevice wraps an open HAL device. The caller owns device and queue.
func newDevice(device hal.Device, queue hal.Queue, cfg Config) *Device {
	def := DefaultConfig()
	if cfg.FenceTimeout <= 0 {
		cfg.FenceTimeout = def.FenceTimeout
	}
	if cfg.MaxBounces <= 0 {
		cfg.MaxBounces = def.MaxBounces
	}
	return &Device{
		device:  device,
		queue:   queue,
		buffers: make(map[gpucore.BufferID]*gpuBuffer),
		targets: make(map[gpucore.TargetID]*gpuTarget),
		cfg:     cfg,
	}
}

// SetLogger sets the logger for the wgpu backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

func (d *Device) newID() uint64 { return d.nextID.Add(1) }

// CreateBuffer allocates a read-only storage buffer for count records.
func (d *Device) CreateBuffer(label string, count, stride int) (gpucore.BufferID, error) {
	if count <= 0 || stride <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: buffer %d x %d: %w", count, stride, gpucore.ErrInvalidSize)
	}
	size := uint64(count) * uint64(stride) //nolint:gosec // both positive

	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer %s: %w", label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &gpuBuffer{buf: buf, size: size, count: count, stride: stride}
	slogger().Debug("wgpu: buffer created", "label", label, "size", size)
	return id, nil
}

// WriteBuffer uploads data to the start of a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: write buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if uint64(len(data)) > b.size {
		return fmt.Errorf("wgpu: write %d bytes to %d-byte buffer: %w", len(data), b.size, gpucore.ErrSizeMismatch)
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(b.buf, 0, data)
	}
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.buffers[id]; ok {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
}

// CreateTarget allocates a zeroed RGBA32F target.
func (d *Device) CreateTarget(label string, width, height int) (gpucore.TargetID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: target %dx%d: %w", width, height, gpucore.ErrInvalidSize)
	}
	size := uint64(width) * uint64(height) * gpucore.PixelStride //nolint:gosec // both positive

	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create target %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, make([]byte, size))

	id := gpucore.TargetID(d.newID())
	d.targets[id] = &gpuTarget{buf: buf, size: size, width: width, height: height}
	slogger().Debug("wgpu: target created", "label", label, "width", width, "height", height)
	return id, nil
}

// WriteTarget uploads RGBA float pixels.
func (d *Device) WriteTarget(id gpucore.TargetID, pixels []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.targets[id]
	if !ok {
		return fmt.Errorf("wgpu: write target %d: %w", id, gpucore.ErrUnknownTarget)
	}
	if uint64(len(pixels))*4 != t.size {
		return fmt.Errorf("wgpu: write %d floats to %dx%d target: %w", len(pixels), t.width, t.height, gpucore.ErrSizeMismatch)
	}
	d.queue.WriteBuffer(t.buf, 0, pixelsToBytes(pixels))
	return nil
}

// ReadTarget copies a target into a staging buffer and reads it back.
func (d *Device) ReadTarget(id gpucore.TargetID) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.targets[id]
	if !ok {
		return nil, fmt.Errorf("wgpu: read target %d: %w", id, gpucore.ErrUnknownTarget)
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  t.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.submit("readback", func(enc hal.CommandEncoder) error {
		enc.CopyBufferToBuffer(t.buf, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: t.size},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw := make([]byte, t.size)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return bytesToPixels(raw), nil
}

// DestroyTarget releases a target.
func (d *Device) DestroyTarget(id gpucore.TargetID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.targets[id]; ok {
		d.device.DestroyBuffer(t.buf)
		delete(d.targets, id)
	}
}

// Dispatch runs the ray-tracing kernel. Unbound geometry slots and an
// unbound skybox are backed by a small placeholder buffer and reported to
// the kernel as empty.
func (d *Device) Dispatch(params *gpucore.KernelParams, groups [3]uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, ok := d.targets[params.Result]
	if !ok {
		return fmt.Errorf("wgpu: dispatch: %s %d: %w", gpucore.ParamResult, params.Result, gpucore.ErrUnknownTarget)
	}
	if out.width != params.Width || out.height != params.Height {
		return fmt.Errorf("wgpu: dispatch: %s is %dx%d, params say %dx%d: %w",
			gpucore.ParamResult, out.width, out.height, params.Width, params.Height, gpucore.ErrSizeMismatch)
	}

	var slots [gpucore.BufferSlotCount]hal.Buffer
	for slot := range gpucore.BufferSlotCount {
		binding := params.Buffer(slot)
		if !binding.Bound() {
			continue
		}
		b, ok := d.buffers[binding.ID]
		if !ok {
			return fmt.Errorf("wgpu: dispatch: %s %d: %w", slot, binding.ID, gpucore.ErrUnknownBuffer)
		}
		if binding.Stride != b.stride || binding.Count > b.count {
			return fmt.Errorf("wgpu: dispatch: %s binds %d x %d bytes, buffer holds %d x %d: %w",
				slot, binding.Count, binding.Stride, b.count, b.stride, gpucore.ErrSizeMismatch)
		}
		slots[slot] = b.buf
	}

	var sky *gpuTarget
	if params.Skybox != gpucore.InvalidID {
		if sky, ok = d.targets[params.Skybox]; !ok {
			return fmt.Errorf("wgpu: dispatch: %s %d: %w", gpucore.ParamSkyboxTexture, params.Skybox, gpucore.ErrUnknownTarget)
		}
	}

	if err := d.ensurePipelines(); err != nil {
		return err
	}
	placeholder, err := d.ensurePlaceholder()
	if err != nil {
		return err
	}

	skyBuf, skyW, skyH := placeholder, 0, 0
	if sky != nil {
		skyBuf, skyW, skyH = sky.buf, sky.width, sky.height
	}
	for i := range slots {
		if slots[i] == nil {
			slots[i] = placeholder
		}
	}

	tp := newTracerParams(params, skyW, skyH, d.cfg.MaxBounces)
	uniform, err := d.uniformBuffer("tracer_params", tp.bytes())
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniform)

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tracer_bind_group",
		Layout: d.tracer.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: tracerParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: slots[gpucore.SlotSpheres].NativeHandle()}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: slots[gpucore.SlotMeshObjects].NativeHandle()}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: slots[gpucore.SlotVertices].NativeHandle()}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: slots[gpucore.SlotIndices].NativeHandle()}},
			{Binding: 5, Resource: gputypes.BufferBinding{Buffer: skyBuf.NativeHandle()}},
			{Binding: 6, Resource: gputypes.BufferBinding{Buffer: out.buf.NativeHandle(), Offset: 0, Size: out.size}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create tracer bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	slogger().Debug("wgpu: dispatch",
		"groups_x", groups[0], "groups_y", groups[1], "groups_z", groups[2],
		"spheres", tp.sphereCount, "mesh_objects", tp.meshCount)

	return d.submit("tracer", func(enc hal.CommandEncoder) error {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "tracer_pass"})
		pass.SetPipeline(d.tracer.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(groups[0], groups[1], groups[2])
		pass.End()
		return nil
	})
}

// Blend folds src into dst as a running mean.
func (d *Device) Blend(src, dst gpucore.TargetID, sample uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, t, err := d.targetPair(src, dst)
	if err != nil {
		return fmt.Errorf("wgpu: blend: %w", err)
	}
	if err := d.ensurePipelines(); err != nil {
		return err
	}

	pixels := t.width * t.height
	uniform, err := d.uniformBuffer("blend_params", blendParamsBytes(sample, pixels))
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniform)

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blend_bind_group",
		Layout: d.blend.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: blendParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: s.buf.NativeHandle(), Offset: 0, Size: s.size}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: t.buf.NativeHandle(), Offset: 0, Size: t.size}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create blend bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	groups := uint32((pixels + blendWorkgroup - 1) / blendWorkgroup) //nolint:gosec // pixel counts fit uint32
	return d.submit("blend", func(enc hal.CommandEncoder) error {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "blend_pass"})
		pass.SetPipeline(d.blend.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(groups, 1, 1)
		pass.End()
		return nil
	})
}

// CopyTarget copies src into dst on the GPU.
func (d *Device) CopyTarget(src, dst gpucore.TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, t, err := d.targetPair(src, dst)
	if err != nil {
		return fmt.Errorf("wgpu: copy: %w", err)
	}
	return d.submit("copy", func(enc hal.CommandEncoder) error {
		enc.CopyBufferToBuffer(s.buf, t.buf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: s.size},
		})
		return nil
	})
}

func (d *Device) targetPair(src, dst gpucore.TargetID) (*gpuTarget, *gpuTarget, error) {
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

// ensurePipelines builds the tracer and blend pipelines on first use.
// Called with d.mu held.
func (d *Device) ensurePipelines() error {
	if d.tracer != nil && d.blend != nil {
		return nil
	}
	if d.tracer == nil {
		p, err := newComputePipeline(d.device, "tracer", tracerShaderWGSL, tracerLayout())
		if err != nil {
			return err
		}
		d.tracer = p
	}
	if d.blend == nil {
		p, err := newComputePipeline(d.device, "blend", blendShaderWGSL, blendLayout())
		if err != nil {
			return err
		}
		d.blend = p
	}
	slogger().Info("wgpu: pipelines initialized")
	return nil
}

// ensurePlaceholder returns the buffer bound to empty slots. Called with
// d.mu held.
func (d *Device) ensurePlaceholder() (hal.Buffer, error) {
	if d.placeholder != nil {
		return d.placeholder, nil
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "empty_slot",
		Size:  gpucore.PixelStride,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create placeholder buffer: %w", err)
	}
	d.queue.WriteBuffer(buf, 0, make([]byte, gpucore.PixelStride))
	d.placeholder = buf
	return buf, nil
}

func (d *Device) uniformBuffer(label string, data []byte) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// submit records commands with encode, submits them and waits for the GPU.
// Called with d.mu held.
func (d *Device) submit(label string, encode func(enc hal.CommandEncoder) error) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: %s: create command encoder: %w", label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: %s: begin encoding: %w", label, err)
	}
	if err := encode(encoder); err != nil {
		encoder.DiscardEncoding()
		return err
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: %s: end encoding: %w", label, err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: %s: create fence: %w", label, err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: %s: submit: %w", label, err)
	}
	ok, err := d.device.Wait(fence, 1, d.cfg.FenceTimeout)
	if err != nil {
		return fmt.Errorf("wgpu: %s: wait: %w", label, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s after %v", ErrGPUTimeout, label, d.cfg.FenceTimeout)
	}
	return nil
}

// Close destroys every resource. A device opened by New is destroyed too;
// a shared device from NewFromProvider is left to its owner.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	for id, t := range d.targets {
		d.device.DestroyBuffer(t.buf)
		delete(d.targets, id)
	}
	if d.placeholder != nil {
		d.device.DestroyBuffer(d.placeholder)
		d.placeholder = nil
	}
	d.tracer.destroy(d.device)
	d.blend.destroy(d.device)
	d.tracer, d.blend = nil, nil

	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device, d.queue, d.instance = nil, nil, nil
	slogger().Info("wgpu: device closed")
}
