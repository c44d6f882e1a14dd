package raytrace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/cache"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/render"
	"github.com/gogpu/raytrace/scene"
)

// Tracer errors.
var (
	// ErrNotStarted is returned by frame operations before Start or after
	// Stop.
	ErrNotStarted = errors.New("raytrace: tracer not started")

	// ErrNoViewport is returned by OnFrame when the viewport has no area.
	ErrNoViewport = errors.New("raytrace: viewport has zero size")
)

// Tracer is the frame orchestrator of a progressive ray tracer.
//
// A Tracer is not safe for concurrent use. Register, Unregister and
// OnFrame must be called from the render goroutine.
type Tracer struct {
	dev      gpucore.Device
	viewport Viewport
	camera   scene.Camera
	light    scene.Light

	registry *scene.Registry
	buffers  *cache.Buffers
	targets  *render.Targets

	cfg       Config
	presenter Presenter
	skyImage  *render.FloatImage
	skybox    gpucore.TargetID
	seeding   *scene.SeedConfig
	rng       *rand.Rand

	started bool
	state   State
	elapsed time.Duration
	frames  uint64

	// Last viewport size, for aspect updates.
	width, height int
}

// New creates a stopped tracer rendering through camera into a viewport
// of the given size. The tracer does not own dev.
func New(dev gpucore.Device, viewport Viewport, camera scene.Camera, opts ...Option) *Tracer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracer{
		dev:       dev,
		viewport:  viewport,
		camera:    camera,
		light:     o.light,
		registry:  scene.NewRegistry(),
		buffers:   cache.New(dev),
		targets:   render.NewTargets(dev),
		cfg:       o.config,
		presenter: o.presenter,
		skyImage:  o.skybox,
		seeding:   o.seeding,
		rng:       rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15)), //nolint:gosec // jitter, not crypto
	}
}

// Registry returns the scene registry.
func (t *Tracer) Registry() *scene.Registry { return t.registry }

// Register adds obj to the scene. The geometry is rebuilt on the next
// frame.
func (t *Tracer) Register(obj scene.Object) { t.registry.Register(obj) }

// Unregister removes obj from the scene. The geometry is rebuilt on the
// next frame.
func (t *Tracer) Unregister(obj scene.Object) { t.registry.Unregister(obj) }

// Start prepares the tracer for rendering: it uploads the sky, seeds the
// sphere set when configured and starts watching the camera and light.
// Starting a started tracer has no effect.
func (t *Tracer) Start() error {
	if t.started {
		return nil
	}

	if err := t.uploadSky(); err != nil {
		return err
	}

	if t.seeding != nil {
		cfg := *t.seeding
		cfg.Schema = t.cfg.SphereSchema
		placed := t.registry.SetSpheres(scene.SeedSpheres(t.rng, cfg))
		Logger().Debug("raytrace: spheres seeded", "placed", placed, "attempts", cfg.MaxSpheres)
	}

	t.registry.Watch(t.camera, scene.WatchCamera)
	if t.light != nil {
		t.registry.Watch(t.light, scene.WatchLight)
	}
	t.registry.MarkDirty()
	t.targets.Reset()
	t.elapsed = 0
	t.frames = 0
	t.state = StateIdle
	t.started = true
	trackDevice(t.dev)

	Logger().Info("raytrace: tracer started",
		"schema", t.cfg.SphereSchema.String(), "objects", t.registry.Len())
	return nil
}

func (t *Tracer) uploadSky() error {
	img := t.skyImage
	if img == nil {
		if t.cfg.SkyWidth <= 0 || t.cfg.SkyHeight <= 0 {
			return nil
		}
		img = render.GradientSky(t.cfg.SkyWidth, t.cfg.SkyHeight, t.cfg.SkyHorizon, t.cfg.SkyZenith)
	}

	id, err := t.dev.CreateTarget(gpucore.ParamSkyboxTexture.String(), img.Width, img.Height)
	if err != nil {
		return fmt.Errorf("raytrace: create skybox: %w", err)
	}
	if err := t.dev.WriteTarget(id, img.Pix); err != nil {
		t.dev.DestroyTarget(id)
		return fmt.Errorf("raytrace: upload skybox: %w", err)
	}
	t.skybox = id
	return nil
}

// Stop releases every GPU resource the tracer allocated. The registry
// keeps its objects; a later Start rebuilds the buffers.
func (t *Tracer) Stop() {
	if !t.started {
		return
	}
	t.buffers.Release()
	t.targets.Release()
	if t.skybox != gpucore.InvalidID {
		t.dev.DestroyTarget(t.skybox)
		t.skybox = gpucore.InvalidID
	}
	t.registry.Unwatch(t.camera, scene.WatchCamera)
	if t.light != nil {
		t.registry.Unwatch(t.light, scene.WatchLight)
	}
	t.started = false
	t.state = StateIdle
	t.width, t.height = 0, 0
	untrackDevice(t.dev)

	Logger().Info("raytrace: tracer stopped", "frames", t.frames)
}

// OnFrame renders one frame: rebuild the geometry if the scene changed,
// upload the kernel parameters, dispatch the kernel and composite the
// result into the converged image.
func (t *Tracer) OnFrame(dt time.Duration) (err error) {
	if !t.started {
		return ErrNotStarted
	}
	w, h := t.viewport.Size()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrNoViewport, w, h)
	}
	defer t.setState(StateIdle)

	t.elapsed += dt
	t.updateAspect(w, h)

	t.setState(StateRebuildIfDirty)
	if change := t.registry.Poll(); change.Reset {
		t.targets.Reset()
	}
	if t.registry.Dirty() {
		if err := t.rebuild(); err != nil {
			return err
		}
		t.targets.Reset()
	}

	t.setState(StateUploadParameters)
	params := t.params(w, h)
	if _, err := t.targets.Ensure(w, h); err != nil {
		return fmt.Errorf("raytrace: %w", err)
	}
	params.Result = t.targets.Result()

	t.setState(StateDispatch)
	groups := t.cfg.groups(w, h)
	if err := t.dev.Dispatch(&params, groups); err != nil {
		return fmt.Errorf("raytrace: dispatch: %w", err)
	}

	t.setState(StateComposite)
	if err := t.targets.Composite(); err != nil {
		return fmt.Errorf("raytrace: %w", err)
	}
	if t.presenter != nil {
		if err := t.presenter.Present(t.dev, t.targets.Converged()); err != nil {
			return fmt.Errorf("raytrace: present: %w", err)
		}
	}
	t.frames++
	return nil
}

// aspectSetter is implemented by cameras whose projection follows the
// viewport.
type aspectSetter interface {
	SetAspect(aspect float32)
}

func (t *Tracer) updateAspect(w, h int) {
	if w == t.width && h == t.height {
		return
	}
	t.width, t.height = w, h
	if c, ok := t.camera.(aspectSetter); ok {
		c.SetAspect(float32(w) / float32(h))
	}
}

func (t *Tracer) rebuild() error {
	geom := scene.Build(t.registry)
	schema := t.cfg.SphereSchema

	uploads := []struct {
		slot   gpucore.BufferSlot
		data   []byte
		stride int
	}{
		{gpucore.SlotSpheres, geom.SphereBytes(schema), schema.Stride()},
		{gpucore.SlotMeshObjects, geom.MeshObjectBytes(), gpucore.MeshObjectStride},
		{gpucore.SlotVertices, geom.VertexBytes(), gpucore.VertexStride},
		{gpucore.SlotIndices, geom.IndexBytes(), gpucore.IndexStride},
	}
	for _, u := range uploads {
		if err := t.buffers.Ensure(u.slot, u.data, u.stride); err != nil {
			return fmt.Errorf("raytrace: rebuild: %w", err)
		}
	}
	t.registry.ClearDirty()

	triangles := 0
	for _, obj := range t.registry.Objects() {
		triangles += obj.Mesh().TriangleCount()
	}
	Logger().Debug("raytrace: geometry rebuilt",
		"spheres", len(geom.Spheres),
		"mesh_objects", len(geom.MeshObjects),
		"triangles", triangles,
		"vertices", len(geom.Vertices),
		"indices", len(geom.Indices))
	return nil
}

// params fills the per-frame kernel parameters. Result is bound by the
// caller.
func (t *Tracer) params(w, h int) gpucore.KernelParams {
	p := gpucore.KernelParams{
		Width:                   w,
		Height:                  h,
		CameraToWorld:           t.camera.CameraToWorld(),
		CameraInverseProjection: t.camera.Projection().Inv(),
		Skybox:                  t.skybox,
		PixelOffset:             mgl32.Vec2{t.rng.Float32(), t.rng.Float32()},
		Seed:                    t.rng.Float32(),
		Time:                    float32(t.elapsed.Seconds()),
	}
	if t.light != nil {
		p.DirectionalLight = t.light.Direction().Vec4(t.light.Intensity())
	}
	t.buffers.Bind(&p)
	return p
}

func (t *Tracer) setState(s State) {
	if s == t.state {
		return
	}
	if l := Logger(); l.Enabled(context.Background(), slog.LevelDebug) {
		l.Debug("raytrace: state", "from", t.state.String(), "to", s.String(), "sample", t.targets.Sample())
	}
	t.state = s
}

// State returns the current frame state. Outside OnFrame it is StateIdle.
func (t *Tracer) State() State { return t.state }

// Started reports whether the tracer is running.
func (t *Tracer) Started() bool { return t.started }

// Sample returns the number of frames folded into the converged image.
func (t *Tracer) Sample() uint32 { return t.targets.Sample() }

// Frames returns the number of frames rendered since Start.
func (t *Tracer) Frames() uint64 { return t.frames }

// Elapsed returns the time accumulated by OnFrame since Start. It is the
// _Time parameter.
func (t *Tracer) Elapsed() time.Duration { return t.elapsed }

// BufferStats reports geometry buffer activity since creation.
func (t *Tracer) BufferStats() cache.Stats { return t.buffers.Stats() }

// Snapshot reads back the converged image.
func (t *Tracer) Snapshot() (*render.FloatImage, error) {
	if !t.started {
		return nil, ErrNotStarted
	}
	img, err := t.targets.Read()
	if err != nil {
		return nil, fmt.Errorf("raytrace: snapshot: %w", err)
	}
	return img, nil
}
