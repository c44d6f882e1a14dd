package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// Geometry is the flat, kernel-ready form of a Registry.
type Geometry struct {
	Spheres     []Sphere
	MeshObjects []MeshObject
	Vertices    []mgl32.Vec3
	Indices     []int32
}

// Build flattens the registry. Offsets depend on registry order, so the
// whole geometry is recomputed on every call.
func Build(r *Registry) Geometry {
	g := Geometry{
		Spheres: append([]Sphere(nil), r.Spheres()...),
	}

	var vertexCount, indexCount int
	for _, obj := range r.Objects() {
		if m := obj.Mesh(); m != nil {
			vertexCount += len(m.Vertices)
			indexCount += len(m.Indices)
		}
	}
	g.MeshObjects = make([]MeshObject, 0, r.Len())
	g.Vertices = make([]mgl32.Vec3, 0, vertexCount)
	g.Indices = make([]int32, 0, indexCount)

	for _, obj := range r.Objects() {
		m := obj.Mesh()
		if m == nil {
			m = &Mesh{}
		}

		firstVertex := int32(len(g.Vertices)) //nolint:gosec // buffer sizes fit int32
		firstIndex := int32(len(g.Indices))   //nolint:gosec // buffer sizes fit int32

		g.Vertices = append(g.Vertices, m.Vertices...)
		for _, idx := range m.Indices {
			g.Indices = append(g.Indices, idx+firstVertex)
		}

		g.MeshObjects = append(g.MeshObjects, MeshObject{
			LocalToWorld:  obj.LocalToWorld(),
			IndicesOffset: firstIndex,
			IndicesCount:  int32(len(m.Indices)), //nolint:gosec // buffer sizes fit int32
		})
	}
	return g
}

// SphereBytes packs the spheres with the given schema.
func (g *Geometry) SphereBytes(schema SphereSchema) []byte {
	out := make([]byte, 0, len(g.Spheres)*schema.Stride())
	for _, sp := range g.Spheres {
		out = schema.AppendSphere(out, sp)
	}
	return out
}

// MeshObjectBytes packs the mesh object records.
func (g *Geometry) MeshObjectBytes() []byte {
	if len(g.MeshObjects) == 0 {
		return nil
	}
	out := make([]byte, 0, len(g.MeshObjects)*gpucore.MeshObjectStride)
	for _, o := range g.MeshObjects {
		out = AppendMeshObject(out, o)
	}
	return out
}

// VertexBytes packs the vertex positions.
func (g *Geometry) VertexBytes() []byte {
	if len(g.Vertices) == 0 {
		return nil
	}
	out := make([]byte, 0, len(g.Vertices)*gpucore.VertexStride)
	for _, v := range g.Vertices {
		out = appendVec3(out, v)
	}
	return out
}

// IndexBytes packs the rebased indices.
func (g *Geometry) IndexBytes() []byte {
	if len(g.Indices) == 0 {
		return nil
	}
	out := make([]byte, 0, len(g.Indices)*gpucore.IndexStride)
	for _, idx := range g.Indices {
		out = appendInt(out, idx)
	}
	return out
}
