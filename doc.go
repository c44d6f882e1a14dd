// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package raytrace drives a progressive compute-shader ray tracer.
//
// # Overview
//
// The kernel itself runs on a [gpucore.Device]. This package owns the host
// side: it packs scene geometry into GPU buffers only when the scene
// changed, fills the kernel parameter table every frame, dispatches the
// kernel and folds each noisy frame into a converged image. The sample
// count restarts whenever the camera, the light, an object transform, the
// scene contents or the viewport size change.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/raytrace"
//	    "github.com/gogpu/raytrace/backend"
//	    _ "github.com/gogpu/raytrace/backend/software"
//	    "github.com/gogpu/raytrace/scene"
//	)
//
//	dev, _, err := backend.Default()
//	cam := scene.NewPerspectiveCamera(60, 16.0/9, 0.1, 1000)
//	tr := raytrace.New(dev, raytrace.FixedViewport{Width: 640, Height: 360}, cam,
//	    raytrace.WithSphereSeeding(scene.DefaultSeedConfig()),
//	)
//	if err := tr.Start(); err != nil { ... }
//	defer tr.Stop()
//
//	for each frame {
//	    if err := tr.OnFrame(dt); err != nil { ... }
//	}
//	img, err := tr.Snapshot()
//
// # Frame
//
// OnFrame walks the states Idle, RebuildIfDirty, UploadParameters,
// Dispatch and Composite, then returns to Idle. Errors from the device are
// returned unchanged in meaning (wrapped with %w); the host is expected to
// treat them as fatal.
//
// # Backends
//
// Backends register themselves with package backend when imported:
// backend/wgpu runs the kernel as a WGSL compute shader, backend/software
// runs the same kernel contract on the CPU.
//
// # Logging
//
// raytrace is silent by default. See [SetLogger].
package raytrace
