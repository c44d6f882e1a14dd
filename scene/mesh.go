package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/gpucore"
)

// Mesh is shared triangle geometry in object space.
// Several objects may reference the same Mesh.
type Mesh struct {
	Vertices []mgl32.Vec3

	// Indices holds three entries per triangle, relative to Vertices.
	Indices []int32
}

// TriangleCount returns the number of complete triangles.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

// MeshObject references a contiguous run of the global index buffer and the
// transform applied to it.
type MeshObject struct {
	LocalToWorld  mgl32.Mat4
	IndicesOffset int32
	IndicesCount  int32
}

// AppendMeshObject appends the 72-byte packed record of o to dst.
// The matrix is written column-major.
func AppendMeshObject(dst []byte, o MeshObject) []byte {
	for _, f := range o.LocalToWorld {
		dst = appendFloat(dst, f)
	}
	dst = appendInt(dst, o.IndicesOffset)
	return appendInt(dst, o.IndicesCount)
}

// DecodeMeshObjects unpacks 72-byte mesh object records.
func DecodeMeshObjects(data []byte) ([]MeshObject, error) {
	const stride = gpucore.MeshObjectStride
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("scene: mesh object data length %d is not a multiple of %d", len(data), stride)
	}
	out := make([]MeshObject, 0, len(data)/stride)
	for off := 0; off < len(data); off += stride {
		b := data[off : off+stride]
		var o MeshObject
		for i := range o.LocalToWorld {
			o.LocalToWorld[i] = readFloat(b[i*4:])
		}
		o.IndicesOffset = readInt(b[64:])
		o.IndicesCount = readInt(b[68:])
		out = append(out, o)
	}
	return out, nil
}

// DecodeVertices unpacks 12-byte vertex positions.
func DecodeVertices(data []byte) ([]mgl32.Vec3, error) {
	const stride = gpucore.VertexStride
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("scene: vertex data length %d is not a multiple of %d", len(data), stride)
	}
	out := make([]mgl32.Vec3, 0, len(data)/stride)
	for off := 0; off < len(data); off += stride {
		out = append(out, readVec3(data[off:]))
	}
	return out, nil
}

// DecodeIndices unpacks 4-byte triangle indices.
func DecodeIndices(data []byte) ([]int32, error) {
	const stride = gpucore.IndexStride
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("scene: index data length %d is not a multiple of %d", len(data), stride)
	}
	out := make([]int32, 0, len(data)/stride)
	for off := 0; off < len(data); off += stride {
		out = append(out, readInt(data[off:]))
	}
	return out, nil
}

// Quad returns a unit square in the XZ plane centered on the origin,
// facing +Y.
func Quad() *Mesh {
	return &Mesh{
		Vertices: []mgl32.Vec3{
			{-0.5, 0, -0.5},
			{0.5, 0, -0.5},
			{0.5, 0, 0.5},
			{-0.5, 0, 0.5},
		},
		Indices: []int32{0, 2, 1, 0, 3, 2},
	}
}

// Cube returns a unit cube centered on the origin with outward winding.
func Cube() *Mesh {
	v := []mgl32.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	idx := []int32{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
		3, 7, 6, 3, 6, 2, // top
		0, 1, 5, 0, 5, 4, // bottom
	}
	return &Mesh{Vertices: v, Indices: idx}
}
