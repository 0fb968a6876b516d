package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief Everything a render pipeline bakes in. Blend constants and the
 * stencil reference are set on the pass, so they stay out of the key.
 */
type renderPipelineKey struct {
	vertex, fragment string
	layout           layoutKey

	raster       metadata.RasterState
	depthStencil metadata.DepthStencilState
	blend        metadata.BlendState

	colors     [MAX_COLOR_TARGETS]wgpu.TextureFormat
	colorCount int
	depth      wgpu.TextureFormat
	samples    uint32
}

type computePipelineKey struct {
	program string
	layout  layoutKey
}

type pipelineCache struct {
	layouts map[layoutKey]*bindLayout
	render  map[renderPipelineKey]*wgpu.RenderPipeline
	compute map[computePipelineKey]*wgpu.ComputePipeline
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{
		layouts: map[layoutKey]*bindLayout{},
		render:  map[renderPipelineKey]*wgpu.RenderPipeline{},
		compute: map[computePipelineKey]*wgpu.ComputePipeline{},
	}
}

func (c *pipelineCache) layout(device *wgpu.Device, key layoutKey) (*bindLayout, error) {
	if l, ok := c.layouts[key]; ok {
		return l, nil
	}
	l, err := newBindLayout(device, key)
	if err != nil {
		return nil, err
	}
	c.layouts[key] = l
	return l, nil
}

func (c *pipelineCache) renderPipeline(device *wgpu.Device, key renderPipelineKey, vertex, fragment *wgpu.ShaderModule) (*wgpu.RenderPipeline, error) {
	if p, ok := c.render[key]; ok {
		return p, nil
	}
	layout, err := c.layout(device, key.layout)
	if err != nil {
		return nil, err
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  key.vertex + " " + key.fragment,
		Layout: layout.pipeline,
		// Geometry is generated from the vertex index.
		Vertex: wgpu.VertexState{
			Module:     vertex,
			EntryPoint: SHADER_ENTRY_POINT,
		},
		Primitive: primitiveState(key.raster, wgpu.PrimitiveTopologyTriangleList),
		Multisample: wgpu.MultisampleState{
			Count: max(key.samples, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if fragment != nil {
		targets := make([]wgpu.ColorTargetState, key.colorCount)
		for i := range targets {
			t, ok := colorTarget(key.blend, key.colors[i])
			if !ok {
				return nil, fmt.Errorf("blend state %s needs dual-source blending: %w", key.blend, core.ErrUnsupportedDevice)
			}
			targets[i] = t
		}
		desc.Fragment = &wgpu.FragmentState{
			Module:     fragment,
			EntryPoint: SHADER_ENTRY_POINT,
			Targets:    targets,
		}
	}
	if key.depth != wgpu.TextureFormatUndefined {
		desc.DepthStencil = depthStencilState(key.depthStencil, key.depth)
	}

	p, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %s: %v: %w", desc.Label, err, core.ErrAPIError)
	}
	core.LogDebug("render pipeline created for %s", desc.Label)
	c.render[key] = p
	return p, nil
}

func (c *pipelineCache) computePipeline(device *wgpu.Device, key computePipelineKey, module *wgpu.ShaderModule) (*wgpu.ComputePipeline, error) {
	if p, ok := c.compute[key]; ok {
		return p, nil
	}
	layout, err := c.layout(device, key.layout)
	if err != nil {
		return nil, err
	}
	p, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  key.program,
		Layout: layout.pipeline,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: SHADER_ENTRY_POINT,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %s: %v: %w", key.program, err, core.ErrAPIError)
	}
	core.LogDebug("compute pipeline created for %s", key.program)
	c.compute[key] = p
	return p, nil
}

func (c *pipelineCache) release() {
	for key, p := range c.render {
		p.Release()
		delete(c.render, key)
	}
	for key, p := range c.compute {
		p.Release()
		delete(c.compute, key)
	}
	for key, l := range c.layouts {
		l.release()
		delete(c.layouts, key)
	}
}
