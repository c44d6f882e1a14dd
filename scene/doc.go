// Package scene holds the host-side scene model of the ray tracer and turns
// it into flat, GPU-ready record arrays.
//
// # Registry
//
// [Registry] is the ordered set of ray-traceable objects plus the procedural
// sphere set. Every mutation sets a rebuild flag that the frame orchestrator
// reads with [Registry.Dirty] and resets with [Registry.ClearDirty].
// The registry also watches transforms (camera, light, per-object) and
// reports changes through [Registry.Poll].
//
// # Geometry
//
// [Build] concatenates the vertex and index arrays of every registered
// object, rebasing indices by the running vertex count, and emits one
// [MeshObject] per object:
//
//	object A: 4 vertices, indices [0 1 2 0 2 3]
//	object B: 3 vertices, indices [0 1 2]
//
//	Vertices:    A0 A1 A2 A3 B0 B1 B2
//	Indices:     0 1 2 0 2 3 4 5 6
//	MeshObjects: {A, offset 0, count 6} {B, offset 6, count 3}
//
// Records are packed little-endian without padding so that the byte stride
// matches the kernel-side struct exactly (see the Stride constants in
// package gpucore).
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. All calls are expected
// on the render goroutine.
package scene
