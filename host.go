package raytrace

import "github.com/gogpu/raytrace/gpucore"

// Viewport reports the size of the presentation surface in pixels.
type Viewport interface {
	Size() (width, height int)
}

// ViewportFunc adapts a function to the Viewport interface.
type ViewportFunc func() (width, height int)

// Size calls f.
func (f ViewportFunc) Size() (width, height int) { return f() }

// FixedViewport is a viewport of constant size.
type FixedViewport struct {
	Width, Height int
}

// Size returns the fixed dimensions.
func (v FixedViewport) Size() (width, height int) { return v.Width, v.Height }

// Presenter receives the converged image at the end of every frame.
type Presenter interface {
	Present(dev gpucore.Device, converged gpucore.TargetID) error
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(dev gpucore.Device, converged gpucore.TargetID) error

// Present calls f.
func (f PresenterFunc) Present(dev gpucore.Device, converged gpucore.TargetID) error {
	return f(dev, converged)
}

// CopyPresenter copies the converged image into a host-owned target of the
// same size.
type CopyPresenter struct {
	Destination gpucore.TargetID
}

// Present copies converged into p.Destination.
func (p CopyPresenter) Present(dev gpucore.Device, converged gpucore.TargetID) error {
	return dev.CopyTarget(converged, p.Destination)
}
