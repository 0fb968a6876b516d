package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Entry point every program module exports.
const SHADER_ENTRY_POINT = "main"

/**
 * @brief Returns the WGSL source for a program key. Tessellated volume
 * draws ask for the joined key of their vertex, hull and domain programs.
 */
type ShaderSource func(key string) ([]byte, error)

// Domain subdivisions per patch edge for each hull-program quality.
func tessFactor(q metadata.TessellationQuality) uint32 {
	switch q {
	case metadata.TESSELLATION_QUALITY_LOW:
		return 16
	case metadata.TESSELLATION_QUALITY_MEDIUM:
		return 32
	default:
		return 64
	}
}

/**
 * @brief The key of the program run in the vertex stage. WebGPU has no
 * tessellation stages, so a tessellated draw runs one vertex program that
 * pulls its patch from the vertex index and evaluates the domain itself.
 */
func vertexProgramKey(set metadata.ShaderSet) string {
	if set.HS == nil || set.DS == nil {
		return set.VS.Key()
	}
	return set.VS.Key() + "+" + set.HS.Key() + "+" + set.DS.Key()
}

/**
 * @brief Vertex count of a draw after patch expansion: every four control
 * points become an f by f grid of quads, two triangles each.
 */
func emulatedVertexCount(controlPoints uint32, hs *metadata.ShaderPermutation) uint32 {
	f := tessFactor(hs.MaxTessFactor)
	return (controlPoints / PATCH_CONTROL_POINTS) * f * f * 6
}

// Control points per patch for tessellated volume draws.
const PATCH_CONTROL_POINTS = 4

/** @brief Loads each program once and keeps its module until the device is released. */
type shaderLibrary struct {
	source  ShaderSource
	modules map[string]*wgpu.ShaderModule
}

func newShaderLibrary(source ShaderSource) *shaderLibrary {
	return &shaderLibrary{source: source, modules: map[string]*wgpu.ShaderModule{}}
}

func (l *shaderLibrary) get(device *wgpu.Device, key string) (*wgpu.ShaderModule, error) {
	if m, ok := l.modules[key]; ok {
		return m, nil
	}
	if l.source == nil {
		return nil, fmt.Errorf("shader %s: no shader source: %w", key, core.ErrInvalidParameter)
	}
	code, err := l.source(key)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %v: %w", key, err, core.ErrInvalidParameter)
	}
	m, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: string(code),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader %s: %v: %w", key, err, core.ErrAPIError)
	}
	core.LogDebug("shader module %s loaded", key)
	l.modules[key] = m
	return m, nil
}

func (l *shaderLibrary) release() {
	for key, m := range l.modules {
		m.Release()
		delete(l.modules, key)
	}
}
