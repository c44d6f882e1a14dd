package raytrace

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/scene"
)

// Config holds the tracer settings.
type Config struct {
	// SphereSchema selects the sphere record layout uploaded to _Spheres.
	SphereSchema scene.SphereSchema

	// ThreadGroups overrides the dispatch size. A zero X or Y derives the
	// group count from the viewport (see gpucore.GroupCount).
	ThreadGroups [3]uint32

	// SkyWidth and SkyHeight size the generated gradient sky used when no
	// skybox image is supplied. Zero disables the sky.
	SkyWidth, SkyHeight int

	// SkyHorizon and SkyZenith are the gradient sky colors.
	SkyHorizon, SkyZenith mgl32.Vec3
}

// DefaultConfig returns the default tracer settings.
func DefaultConfig() Config {
	return Config{
		SphereSchema: scene.SchemaBasic,
		SkyWidth:     256,
		SkyHeight:    128,
		SkyHorizon:   mgl32.Vec3{1, 1, 1},
		SkyZenith:    mgl32.Vec3{0.5, 0.7, 1},
	}
}

// groups returns the thread-group count for a width x height viewport.
func (c *Config) groups(width, height int) [3]uint32 {
	g := c.ThreadGroups
	if g[0] == 0 || g[1] == 0 {
		return gpucore.GroupCount(width, height)
	}
	if g[2] == 0 {
		g[2] = 1
	}
	return g
}
