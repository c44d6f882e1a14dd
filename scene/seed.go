package scene

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// SeedConfig controls procedural sphere seeding.
type SeedConfig struct {
	// MaxSpheres is the number of placement attempts. Rejected attempts are
	// skipped, so fewer spheres may be produced.
	MaxSpheres int

	// RadiusMin and RadiusMax bound the uniform radius distribution.
	RadiusMin float32
	RadiusMax float32

	// PlacementRadius is the radius of the disc on the XZ plane that
	// sphere centers are drawn from.
	PlacementRadius float32

	// Schema selects whether smoothness and emission are generated.
	Schema SphereSchema

	// MetalChance is the probability of a metallic sphere.
	MetalChance float32

	// EmissionChance is the threshold at or above which an extended-schema
	// sphere becomes a pure emitter.
	EmissionChance float32

	// EmissionMin and EmissionMax bound each emission channel.
	EmissionMin float32
	EmissionMax float32
}

// DefaultSeedConfig returns the settings of the reference scene.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		MaxSpheres:      100,
		RadiusMin:       3,
		RadiusMax:       8,
		PlacementRadius: 100,
		Schema:          SchemaBasic,
		MetalChance:     0.5,
		EmissionChance:  0.8,
		EmissionMin:     0.5,
		EmissionMax:     4,
	}
}

// Placer accepts spheres that do not overlap any previously accepted one.
type Placer struct {
	placed []Sphere
}

// TryPlace adds s unless it overlaps an accepted sphere.
func (p *Placer) TryPlace(s Sphere) bool {
	for _, other := range p.placed {
		if s.Overlaps(other) {
			return false
		}
	}
	p.placed = append(p.placed, s)
	return true
}

// Spheres returns the accepted spheres in acceptance order.
func (p *Placer) Spheres() []Sphere { return p.placed }

// SeedSpheres generates a random, non-overlapping set of spheres resting on
// the y=0 plane. The same rng state always produces the same set.
func SeedSpheres(rng *rand.Rand, cfg SeedConfig) []Sphere {
	var p Placer
	for range cfg.MaxSpheres {
		radius := cfg.RadiusMin + rng.Float32()*(cfg.RadiusMax-cfg.RadiusMin)

		// Uniform point in a disc.
		r := cfg.PlacementRadius * float32(math.Sqrt(rng.Float64()))
		theta := rng.Float64() * 2 * math.Pi
		x := r * float32(math.Cos(theta))
		z := r * float32(math.Sin(theta))

		s := Sphere{
			Position: mgl32.Vec3{x, radius, z},
			Radius:   radius,
		}
		if !p.TryPlace(s) {
			continue
		}
		shadeSphere(rng, cfg, &p.placed[len(p.placed)-1])
	}
	return p.Spheres()
}

func shadeSphere(rng *rand.Rand, cfg SeedConfig, s *Sphere) {
	color := randomHSV(rng)
	chance := rng.Float32()

	if cfg.Schema == SchemaExtended {
		s.Smoothness = rng.Float32()
		if chance >= cfg.EmissionChance {
			span := cfg.EmissionMax - cfg.EmissionMin
			s.Emission = mgl32.Vec3{
				cfg.EmissionMin + rng.Float32()*span,
				cfg.EmissionMin + rng.Float32()*span,
				cfg.EmissionMin + rng.Float32()*span,
			}
			return
		}
	}

	if chance < cfg.MetalChance {
		s.Specular = color
		return
	}
	s.Albedo = color
	s.Specular = mgl32.Vec3{0.04, 0.04, 0.04}
}

func randomHSV(rng *rand.Rand) mgl32.Vec3 {
	return hsvToRGB(rng.Float32(), rng.Float32(), rng.Float32())
}

// hsvToRGB converts h, s, v in [0,1] to linear RGB.
func hsvToRGB(h, s, v float32) mgl32.Vec3 {
	if s <= 0 {
		return mgl32.Vec3{v, v, v}
	}
	h6 := h * 6
	if h6 >= 6 {
		h6 = 0
	}
	sector := int(h6)
	f := h6 - float32(sector)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch sector {
	case 0:
		return mgl32.Vec3{v, t, p}
	case 1:
		return mgl32.Vec3{q, v, p}
	case 2:
		return mgl32.Vec3{p, v, t}
	case 3:
		return mgl32.Vec3{p, q, v}
	case 4:
		return mgl32.Vec3{t, p, v}
	default:
		return mgl32.Vec3{v, p, q}
	}
}
