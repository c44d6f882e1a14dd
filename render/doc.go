// Package render manages the accumulation targets of the progressive ray
// tracer.
//
// Every frame the kernel writes one noisy sample into the Result target.
// [Targets.Composite] folds it into the persistent Converged target as a
// running mean:
//
//	converged = converged + (result - converged) / (sample + 1)
//
// so after N frames Converged holds the average of N samples. The sample
// counter restarts at zero whenever the targets are reallocated or
// [Targets.Reset] is called, and the first composite after a reset replaces
// Converged entirely.
//
// [FloatImage] is the host-side form of a target, used for skybox upload
// and readback.
package render
