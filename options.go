package raytrace

import (
	"github.com/gogpu/raytrace/render"
	"github.com/gogpu/raytrace/scene"
)

// Option configures a Tracer during creation.
//
// Example:
//
//	tr := raytrace.New(dev, viewport, camera,
//	    raytrace.WithLight(sun),
//	    raytrace.WithSphereSeeding(scene.DefaultSeedConfig()),
//	)
type Option func(*tracerOptions)

// tracerOptions holds optional configuration for Tracer creation.
type tracerOptions struct {
	config    Config
	light     scene.Light
	skybox    *render.FloatImage
	presenter Presenter
	seed      uint64
	seeding   *scene.SeedConfig
}

// defaultOptions returns the default tracer options.
func defaultOptions() tracerOptions {
	return tracerOptions{
		config: DefaultConfig(),
		seed:   1,
	}
}

// WithConfig replaces the whole tracer configuration.
func WithConfig(cfg Config) Option {
	return func(o *tracerOptions) {
		o.config = cfg
	}
}

// WithLight sets the directional light. Without a light, _DirectionalLight
// stays zero and the kernel models no direct lighting.
func WithLight(l scene.Light) Option {
	return func(o *tracerOptions) {
		o.light = l
	}
}

// WithSkybox sets the equirectangular sky image uploaded at Start.
// It takes precedence over the generated gradient sky.
func WithSkybox(img *render.FloatImage) Option {
	return func(o *tracerOptions) {
		o.skybox = img
	}
}

// WithPresenter sets the presenter that receives the converged image after
// every frame.
func WithPresenter(p Presenter) Option {
	return func(o *tracerOptions) {
		o.presenter = p
	}
}

// WithSeed seeds the random source for pixel jitter, kernel seeds and
// sphere seeding. Tracers with the same seed and inputs produce the same
// parameter sequence.
func WithSeed(seed uint64) Option {
	return func(o *tracerOptions) {
		o.seed = seed
	}
}

// WithThreadGroups overrides the dispatch thread-group count.
func WithThreadGroups(x, y, z uint32) Option {
	return func(o *tracerOptions) {
		o.config.ThreadGroups = [3]uint32{x, y, z}
	}
}

// WithSphereSeeding generates a random sphere set at Start. The record
// schema always follows Config.SphereSchema.
func WithSphereSeeding(cfg scene.SeedConfig) Option {
	return func(o *tracerOptions) {
		o.seeding = &cfg
	}
}
