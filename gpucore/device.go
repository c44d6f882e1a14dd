package gpucore

import "errors"

// Device errors.
var (
	// ErrUnknownBuffer is returned when a buffer ID is not owned by the device.
	ErrUnknownBuffer = errors.New("gpucore: unknown buffer")

	// ErrUnknownTarget is returned when a target ID is not owned by the device.
	ErrUnknownTarget = errors.New("gpucore: unknown target")

	// ErrSizeMismatch is returned when data does not fit a resource.
	ErrSizeMismatch = errors.New("gpucore: data size does not match resource")

	// ErrInvalidSize is returned when a resource is requested with a
	// non-positive size.
	ErrInvalidSize = errors.New("gpucore: invalid resource size")
)

// Device abstracts a GPU backend able to run the ray-tracing kernel.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying an unknown or already destroyed ID has no effect
//   - IDs become invalid after destruction and are never reused
//
// Commands (Dispatch, Blend, CopyTarget) execute in issue order: a command
// observes the writes of every command issued before it.
type Device interface {
	// === Buffer Management ===

	// CreateBuffer allocates a storage buffer holding count records of
	// stride bytes each.
	CreateBuffer(label string, count, stride int) (BufferID, error)

	// WriteBuffer uploads data to a buffer. len(data) must not exceed
	// the buffer size.
	WriteBuffer(id BufferID, data []byte) error

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// === Target Management ===

	// CreateTarget allocates a randomly writable float RGBA image.
	// Its contents are zero.
	CreateTarget(label string, width, height int) (TargetID, error)

	// WriteTarget uploads RGBA float pixels (4 values per pixel, row-major).
	WriteTarget(id TargetID, pixels []float32) error

	// ReadTarget reads back RGBA float pixels. This may stall until all
	// issued commands have completed.
	ReadTarget(id TargetID) ([]float32, error)

	// DestroyTarget releases a target.
	DestroyTarget(id TargetID)

	// === Commands ===

	// Dispatch runs the ray-tracing kernel with the given parameter table
	// and thread-group count.
	Dispatch(params *KernelParams, groups [3]uint32) error

	// Blend composites src into dst as a running mean:
	// dst = dst + (src - dst) / (sample + 1). sample is the _Sample value.
	Blend(src, dst TargetID, sample uint32) error

	// CopyTarget copies src into dst. Both must have the same size.
	CopyTarget(src, dst TargetID) error

	// Close releases every resource owned by the device.
	Close()
}
