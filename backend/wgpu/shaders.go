package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/tracer.wgsl
var tracerShaderWGSL string

//go:embed shaders/blend.wgsl
var blendShaderWGSL string

// blendWorkgroup is the workgroup size declared by blend.wgsl. The tracer
// uses gpucore.ThreadGroupSize in X and Y.
const blendWorkgroup = 256

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(label, source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile %s shader: %w", label, err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
