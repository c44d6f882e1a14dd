package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// computePipeline bundles a compute pipeline with the objects it was built
// from, so they can be destroyed together.
type computePipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func storageEntry(binding uint32, readOnly bool) gputypes.BindGroupLayoutEntry {
	t := gputypes.BufferBindingTypeStorage
	if readOnly {
		t = gputypes.BufferBindingTypeReadOnlyStorage
	}
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: t},
	}
}

func uniformEntry(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

// tracerLayout matches the bindings of tracer.wgsl.
func tracerLayout() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		uniformEntry(0),
		storageEntry(1, true),  // _Spheres
		storageEntry(2, true),  // _MeshObjects
		storageEntry(3, true),  // _Vertices
		storageEntry(4, true),  // _Indices
		storageEntry(5, true),  // _SkyboxTexture
		storageEntry(6, false), // Result
	}
}

// blendLayout matches the bindings of blend.wgsl.
func blendLayout() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		uniformEntry(0),
		storageEntry(1, true),
		storageEntry(2, false),
	}
}

func newComputePipeline(device hal.Device, label, source string, entries []gputypes.BindGroupLayoutEntry) (*computePipeline, error) {
	code, err := compileWGSL(label, source)
	if err != nil {
		return nil, err
	}

	p := &computePipeline{}
	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create %s shader module: %w", label, err)
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("wgpu: create %s bind group layout: %w", label, err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("wgpu: create %s pipeline layout: %w", label, err)
	}

	p.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label + "_pipeline",
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("wgpu: create %s compute pipeline: %w", label, err)
	}

	slogger().Debug("wgpu: pipeline created", "label", label, "spirv_words", len(code))
	return p, nil
}

// destroy releases the pipeline objects in reverse creation order.
func (p *computePipeline) destroy(device hal.Device) {
	if p == nil || device == nil {
		return
	}
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
