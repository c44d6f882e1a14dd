// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu implements gpucore.Device on a wgpu HAL device.
//
// The ray-tracing kernel and the running-mean composite are WGSL compute
// shaders compiled to SPIR-V with naga on first use. Geometry and float
// targets live in storage buffers.
//
// A standalone Vulkan device is opened by New. Applications that already
// own a GPU device (such as a gogpu window) can share it through
// NewFromProvider:
//
//	dev, err := wgpu.NewFromProvider(app.GPUContextProvider(), wgpu.DefaultConfig())
//
// Importing the package registers it with the backend registry under
// backend.NameWGPU.
package wgpu
