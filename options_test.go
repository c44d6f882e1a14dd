package raytrace

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/render"
	"github.com/gogpu/raytrace/scene"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.config != DefaultConfig() {
		t.Errorf("config = %+v, want DefaultConfig()", o.config)
	}
	if o.light != nil || o.skybox != nil || o.presenter != nil || o.seeding != nil {
		t.Error("defaultOptions should leave optional collaborators unset")
	}
}

func TestOptions(t *testing.T) {
	light := scene.NewDirectionalLight(mgl32.Vec3{0, -1, 0}, 1)
	sky := render.NewFloatImage(2, 1)
	presenter := CopyPresenter{Destination: 9}
	seedCfg := scene.DefaultSeedConfig()
	seedCfg.MaxSpheres = 3

	o := defaultOptions()
	for _, opt := range []Option{
		WithConfig(Config{SphereSchema: scene.SchemaExtended}),
		WithLight(light),
		WithSkybox(sky),
		WithPresenter(presenter),
		WithSeed(99),
		WithThreadGroups(4, 5, 1),
		WithSphereSeeding(seedCfg),
	} {
		opt(&o)
	}

	if o.config.SphereSchema != scene.SchemaExtended {
		t.Errorf("SphereSchema = %v, want extended", o.config.SphereSchema)
	}
	if o.config.ThreadGroups != [3]uint32{4, 5, 1} {
		t.Errorf("ThreadGroups = %v, want [4 5 1]", o.config.ThreadGroups)
	}
	if o.light != light {
		t.Error("WithLight not applied")
	}
	if o.skybox != sky {
		t.Error("WithSkybox not applied")
	}
	if o.presenter != presenter {
		t.Error("WithPresenter not applied")
	}
	if o.seed != 99 {
		t.Errorf("seed = %d, want 99", o.seed)
	}
	if o.seeding == nil || o.seeding.MaxSpheres != 3 {
		t.Errorf("seeding = %+v, want MaxSpheres 3", o.seeding)
	}

	// The option keeps its own copy.
	seedCfg.MaxSpheres = 50
	if o.seeding.MaxSpheres != 3 {
		t.Error("WithSphereSeeding aliases the caller's config")
	}
}

func TestViewportAdapters(t *testing.T) {
	var vp Viewport = ViewportFunc(func() (int, int) { return 3, 4 })
	if w, h := vp.Size(); w != 3 || h != 4 {
		t.Errorf("ViewportFunc.Size() = %d,%d, want 3,4", w, h)
	}
	vp = FixedViewport{Width: 5, Height: 6}
	if w, h := vp.Size(); w != 5 || h != 6 {
		t.Errorf("FixedViewport.Size() = %d,%d, want 5,6", w, h)
	}
	var _ Presenter = CopyPresenter{Destination: gpucore.InvalidID}
}
