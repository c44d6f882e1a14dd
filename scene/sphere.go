package scene

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// Sphere is a procedural sphere primitive.
type Sphere struct {
	Position mgl32.Vec3
	Radius   float32
	Albedo   mgl32.Vec3
	Specular mgl32.Vec3

	// Smoothness and Emission are only packed by SchemaExtended.
	Smoothness float32
	Emission   mgl32.Vec3
}

// Overlaps reports whether the two spheres intersect, i.e. their centers are
// closer than the sum of their radii.
func (s Sphere) Overlaps(o Sphere) bool {
	minDist := s.Radius + o.Radius
	d := s.Position.Sub(o.Position)
	return d.Dot(d) < minDist*minDist
}

// SphereSchema selects the packed sphere record layout.
type SphereSchema int

const (
	// SchemaBasic packs position, radius, albedo and specular (40 bytes).
	SchemaBasic SphereSchema = iota

	// SchemaExtended adds smoothness and emission (56 bytes).
	SchemaExtended
)

// Stride returns the packed record size in bytes.
func (s SphereSchema) Stride() int {
	if s == SchemaExtended {
		return gpucore.SphereStrideExtended
	}
	return gpucore.SphereStrideBasic
}

// String returns the schema name.
func (s SphereSchema) String() string {
	switch s {
	case SchemaBasic:
		return "basic"
	case SchemaExtended:
		return "extended"
	default:
		return fmt.Sprintf("SphereSchema(%d)", int(s))
	}
}

// ParseSphereSchema parses "basic" or "extended".
func ParseSphereSchema(name string) (SphereSchema, error) {
	switch name {
	case "basic":
		return SchemaBasic, nil
	case "extended":
		return SchemaExtended, nil
	default:
		return SchemaBasic, fmt.Errorf("scene: unknown sphere schema %q", name)
	}
}

// AppendSphere appends the packed record of sp to dst.
func (s SphereSchema) AppendSphere(dst []byte, sp Sphere) []byte {
	dst = appendVec3(dst, sp.Position)
	dst = appendFloat(dst, sp.Radius)
	dst = appendVec3(dst, sp.Albedo)
	dst = appendVec3(dst, sp.Specular)
	if s == SchemaExtended {
		dst = appendFloat(dst, sp.Smoothness)
		dst = appendVec3(dst, sp.Emission)
	}
	return dst
}

// DecodeSpheres unpacks sphere records. The schema is derived from stride.
func DecodeSpheres(data []byte, stride int) ([]Sphere, error) {
	if stride != gpucore.SphereStrideBasic && stride != gpucore.SphereStrideExtended {
		return nil, fmt.Errorf("scene: invalid sphere stride %d", stride)
	}
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("scene: sphere data length %d is not a multiple of %d", len(data), stride)
	}
	out := make([]Sphere, 0, len(data)/stride)
	for off := 0; off < len(data); off += stride {
		b := data[off : off+stride]
		sp := Sphere{
			Position: readVec3(b[0:]),
			Radius:   readFloat(b[12:]),
			Albedo:   readVec3(b[16:]),
			Specular: readVec3(b[28:]),
		}
		if stride == gpucore.SphereStrideExtended {
			sp.Smoothness = readFloat(b[40:])
			sp.Emission = readVec3(b[44:])
		}
		out = append(out, sp)
	}
	return out, nil
}

func appendFloat(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}

func appendVec3(dst []byte, v mgl32.Vec3) []byte {
	dst = appendFloat(dst, v[0])
	dst = appendFloat(dst, v[1])
	return appendFloat(dst, v[2])
}

func appendInt(dst []byte, i int32) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(i)) //nolint:gosec // two's complement reinterpretation
}

func readFloat(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func readVec3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{readFloat(b[0:]), readFloat(b[4:]), readFloat(b[8:])}
}

func readInt(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b)) //nolint:gosec // two's complement reinterpretation
}
