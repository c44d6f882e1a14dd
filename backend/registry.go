package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/raytrace/gpucore"
)

// Backend name constants.
const (
	// NameSoftware is the CPU reference backend.
	NameSoftware = "software"

	// NameWGPU is the GPU backend built on gogpu/wgpu.
	NameWGPU = "wgpu"
)

// ErrBackendNotAvailable is returned when a requested backend is not
// registered or none can be opened.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory opens a new device.
type Factory func() (gpucore.Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// Selection order for Default: first backend that opens wins.
	priority = []string{NameWGPU, NameSoftware}
)

// Register registers a factory under name, replacing any previous one.
// This is typically called from init() functions in backend packages.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a backend. This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the backend registered under name.
func Open(name string) (gpucore.Device, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := f()
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", name, err)
	}
	return dev, nil
}

// Default opens the best available backend and returns its name.
// Backends that fail to open are skipped.
func Default() (gpucore.Device, string, error) {
	var errs []error
	for _, name := range priority {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name)
		if err == nil {
			return dev, name, nil
		}
		errs = append(errs, err)
	}

	// Fall back to any other registered backend.
	for _, name := range Available() {
		if slices.Contains(priority, name) {
			continue
		}
		dev, err := Open(name)
		if err == nil {
			return dev, name, nil
		}
		errs = append(errs, err)
	}

	errs = append(errs, ErrBackendNotAvailable)
	return nil, "", errors.Join(errs...)
}
