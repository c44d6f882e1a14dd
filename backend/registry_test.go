package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/raytrace/gpucore"
)

type stubDevice struct {
	gpucore.Device
	name string
}

func withRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]Factory)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegisterAndOpen(t *testing.T) {
	withRegistry(t)

	Register("stub", func() (gpucore.Device, error) { return &stubDevice{name: "stub"}, nil })

	if !IsRegistered("stub") {
		t.Fatal("IsRegistered(stub) = false after Register")
	}
	dev, err := Open("stub")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if dev.(*stubDevice).name != "stub" {
		t.Errorf("Open() returned %v", dev)
	}

	Unregister("stub")
	if _, err := Open("stub"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open() after Unregister error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestAvailableSorted(t *testing.T) {
	withRegistry(t)
	for _, n := range []string{"zeta", NameWGPU, NameSoftware} {
		Register(n, func() (gpucore.Device, error) { return &stubDevice{}, nil })
	}
	want := []string{NameSoftware, NameWGPU, "zeta"}
	if got := Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestDefaultPriority(t *testing.T) {
	tests := []struct {
		name    string
		wgpuErr error
		want    string
	}{
		{"wgpu wins", nil, NameWGPU},
		{"software fallback", errors.New("no adapter"), NameSoftware},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t)
			Register(NameSoftware, func() (gpucore.Device, error) {
				return &stubDevice{name: NameSoftware}, nil
			})
			Register(NameWGPU, func() (gpucore.Device, error) {
				if tt.wgpuErr != nil {
					return nil, tt.wgpuErr
				}
				return &stubDevice{name: NameWGPU}, nil
			})

			dev, name, err := Default()
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			if name != tt.want || dev.(*stubDevice).name != tt.want {
				t.Errorf("Default() = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestDefaultNone(t *testing.T) {
	withRegistry(t)
	if _, _, err := Default(); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
	}
}
