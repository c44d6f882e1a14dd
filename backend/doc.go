// Package backend is the registry of device backends.
//
// Backends register a factory from an init function, so importing a backend
// package for its side effect makes it available by name:
//
//	import (
//		_ "github.com/gogpu/raytrace/backend/software"
//		_ "github.com/gogpu/raytrace/backend/wgpu"
//	)
//
//	dev, err := backend.Open("wgpu")     // a specific backend
//	dev, name, err := backend.Default()  // best available: wgpu, then software
//
// The returned device is owned by the caller and must be closed.
package backend
