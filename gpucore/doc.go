// Package gpucore defines the contract between the frame orchestrator and a
// GPU backend that runs the ray-tracing kernel.
//
// The contract has two halves:
//
//   - [Device]: resource management (buffers, float RGBA targets) and the
//     three per-frame commands the orchestrator issues: Dispatch, Blend and
//     CopyTarget.
//   - [KernelParams]: the typed parameter table for one dispatch. Every
//     kernel parameter has a fixed bind point; [Param.String] yields the
//     name shared with the kernel source.
//
// # Architecture
//
//	          raytrace.Tracer
//	                 |
//	        +--------+--------+
//	        |                 |
//	  cache.Buffers     render.Targets
//	        |                 |
//	        +--------+--------+
//	                 |
//	          gpucore.Device
//	                 |
//	    +------------+------------+
//	    |                         |
//	backend/wgpu          backend/software
//	(hal.Device)          (CPU thread groups)
//
// # Resource Management
//
// Resources are referenced via opaque IDs ([BufferID], [TargetID]).
// [InvalidID] (zero) is never handed out and marks an unbound slot.
// Backends are responsible for mapping IDs to their own resources.
package gpucore
