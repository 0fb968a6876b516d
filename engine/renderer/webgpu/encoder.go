package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const MAX_COLOR_TARGETS = 4

// Device state set on an encoder since it began recording.
type recordState struct {
	colors        []*Image
	depth         *Image
	readOnlyDepth bool

	viewport     metadata.Viewport
	raster       metadata.RasterState
	depthStencil metadata.DepthStencilState
	stencilRef   uint32
	blend        metadata.BlendState
	blendFactor  math.Vec4
	shaders      metadata.ShaderSet

	graphics bindingTable
	compute  bindingTable
	uavs     [MAX_UAV_SLOTS]*Image

	events []string
}

/**
 * @brief A command encoder together with the device state recorded into
 * it. It is the render context the WebGPU device expects.
 */
type Encoder struct {
	Handle *wgpu.CommandEncoder

	pass       *wgpu.RenderPassEncoder
	rec        recordState
	uploads    uploadRing
	bindGroups []*wgpu.BindGroup
}

func (e *Encoder) inPass() bool {
	return e.pass != nil
}

// endPass closes the open render pass. WebGPU orders passes itself.
func (e *Encoder) endPass() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass.Release()
	e.pass = nil
}

// retire releases per-recording objects once the commands were submitted.
func (e *Encoder) retire() {
	for _, bg := range e.bindGroups {
		bg.Release()
	}
	e.bindGroups = e.bindGroups[:0]
	if e.Handle != nil {
		e.Handle.Release()
		e.Handle = nil
	}
	e.rec = recordState{}
}
