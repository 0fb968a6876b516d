package renderer

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief Inputs of one RenderVolume call. */
type VolumeInput struct {
	ShadowMap     *metadata.Texture
	ShadowMapDesc *metadata.ShadowMapDesc
	Light         *metadata.LightDesc
	Volume        *metadata.VolumeDesc
}

/** @brief Inputs of one ApplyLighting call. */
type ApplyInput struct {
	SceneTarget *metadata.Texture
	SceneDepth  *metadata.Texture
	Postprocess *metadata.PostprocessDesc
}

/**
 * @brief The per-phase hooks the accumulation state machine drives. Each
 * hook returns nil or an error wrapping one of the core sentinel errors.
 */
type Backend interface {
	BeginAccumulationStart(rc metadata.RenderCtx, sceneDepth *metadata.Texture, viewer *metadata.ViewerDesc, medium *metadata.MediumDesc) error
	BeginAccumulationUpdateMediumLUT(rc metadata.RenderCtx) error
	BeginAccumulationCopyDepth(rc metadata.RenderCtx, sceneDepth *metadata.Texture) error
	BeginAccumulationEnd(rc metadata.RenderCtx, sceneDepth *metadata.Texture, viewer *metadata.ViewerDesc, medium *metadata.MediumDesc) error

	RenderVolumeStart(rc metadata.RenderCtx, in *VolumeInput) error
	RenderVolumeDirectional(rc metadata.RenderCtx, in *VolumeInput) error
	RenderVolumeSpotlight(rc metadata.RenderCtx, in *VolumeInput) error
	RenderVolumeOmni(rc metadata.RenderCtx, in *VolumeInput) error
	RenderVolumeEnd(rc metadata.RenderCtx, in *VolumeInput) error

	EndAccumulationImp(rc metadata.RenderCtx) error

	ApplyLightingStart(rc metadata.RenderCtx, in *ApplyInput) error
	ApplyLightingResolve(rc metadata.RenderCtx, pp *metadata.PostprocessDesc) error
	ApplyLightingTemporalFilter(rc metadata.RenderCtx, sceneDepth *metadata.Texture, pp *metadata.PostprocessDesc) error
	ApplyLightingComposite(rc metadata.RenderCtx, in *ApplyInput) error
	ApplyLightingEnd(rc metadata.RenderCtx, in *ApplyInput) error

	Release() error
}

/**
 * @brief Backend that expresses every phase as Device commands. The bound
 * graphics programs are tracked here and flushed to the device right
 * before each draw.
 */
type passBackend struct {
	ctx    *Context
	device Device
	res    *contextResources

	shaders           metadata.ShaderSet
	accumulatedOutput *metadata.Texture
}

func newPassBackend(ctx *Context, device Device, res *contextResources) *passBackend {
	return &passBackend{ctx: ctx, device: device, res: res}
}

func (b *passBackend) Release() error {
	if b.res != nil {
		b.res.release()
		b.res = nil
	}
	b.accumulatedOutput = nil
	b.shaders = metadata.ShaderSet{}
	return nil
}

// apiError tags device failures that do not carry a status of their own.
func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.StatusOf(err) == core.STATUS_UNKNOWN {
		return fmt.Errorf("%s: %w: %v", op, core.ErrAPIError, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

/**
 * @brief Uploads an encoded parameter block. A nil block means the
 * allocator handler refused the staging memory.
 */
func (b *passBackend) upload(rc metadata.RenderCtx, slot metadata.ConstantBufferSlot, data []byte) error {
	if data == nil {
		return fmt.Errorf("staging %s: %w", cbNames[slot], core.ErrResourceFailure)
	}
	return apiError("updating "+cbNames[slot], b.device.UpdateBuffer(rc, b.res.constantBuffers[slot], data))
}

func (b *passBackend) event(rc metadata.RenderCtx, name string) func() {
	b.device.BeginEvent(rc, name)
	return func() { b.device.EndEvent(rc) }
}

func permutation(p metadata.ShaderPermutation) *metadata.ShaderPermutation {
	return &p
}

func (b *passBackend) setVS(p metadata.ShaderPermutation) { b.shaders.VS = permutation(p) }
func (b *passBackend) setPS(p metadata.ShaderPermutation) { b.shaders.PS = permutation(p) }

func (b *passBackend) setTessellation(hs, ds metadata.ShaderPermutation) {
	b.shaders.HS = permutation(hs)
	b.shaders.DS = permutation(ds)
}

func (b *passBackend) unsetTessellation() {
	b.shaders.HS = nil
	b.shaders.DS = nil
}

func (b *passBackend) draw(rc metadata.RenderCtx, topology metadata.Topology, vertexCount uint32) error {
	if err := b.device.SetShaders(rc, b.shaders); err != nil {
		return apiError("binding shaders", err)
	}
	return apiError("draw", b.device.Draw(rc, topology, vertexCount))
}

func (b *passBackend) dispatch(rc metadata.RenderCtx, cs metadata.ShaderPermutation, x, y, z uint32) error {
	if err := b.device.SetShaders(rc, metadata.ShaderSet{CS: &cs}); err != nil {
		return apiError("binding compute shader", err)
	}
	return apiError("dispatch", b.device.Dispatch(rc, x, y, z))
}

func (b *passBackend) wireframe() bool {
	return b.ctx.debugFlags.Has(metadata.DEBUG_FLAG_WIREFRAME)
}

func (b *passBackend) setDebugDraw(rc metadata.RenderCtx) {
	if !b.wireframe() {
		return
	}
	b.device.SetRasterState(rc, metadata.RASTER_WIREFRAME)
	b.device.SetBlendState(rc, metadata.BLEND_NO_BLENDING, math.NewVec4(1, 1, 1, 1))
	b.setPS(metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_DEBUG_PS))
}

func meshVS(mode metadata.MeshMode) metadata.ShaderPermutation {
	vs := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_VS)
	vs.MeshMode = mode
	return vs
}

// drawFullscreen covers the viewport with one oversized triangle.
func (b *passBackend) drawFullscreen(rc metadata.RenderCtx) error {
	defer b.event(rc, "DrawFullscreen")()
	b.device.SetRasterState(rc, metadata.RASTER_CULL_NONE)
	b.setVS(metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_QUAD_VS))
	b.unsetTessellation()
	return b.draw(rc, metadata.TOPOLOGY_TRIANGLE_LIST, 3)
}

func (b *passBackend) drawFrustumGrid(rc metadata.RenderCtx, resolution uint32) error {
	defer b.event(rc, "DrawFrustumGrid")()
	b.setVS(meshVS(metadata.MESHMODE_FRUSTUM_GRID))
	b.setDebugDraw(rc)
	return b.draw(rc, metadata.TOPOLOGY_PATCH_LIST_4, 4*resolution*resolution)
}

func (b *passBackend) drawFrustumBase(rc metadata.RenderCtx, resolution uint32) error {
	defer b.event(rc, "DrawFrustumBase")()
	b.setVS(meshVS(metadata.MESHMODE_FRUSTUM_BASE))
	b.unsetTessellation()
	b.setDebugDraw(rc)
	return b.draw(rc, metadata.TOPOLOGY_TRIANGLE_LIST, 6)
}

func (b *passBackend) drawFrustumCap(rc metadata.RenderCtx, resolution uint32) error {
	defer b.event(rc, "DrawFrustumCap")()
	b.setVS(meshVS(metadata.MESHMODE_FRUSTUM_CAP))
	b.unsetTessellation()
	b.setDebugDraw(rc)
	return b.draw(rc, metadata.TOPOLOGY_TRIANGLE_LIST, 4*3*(resolution+1)+6)
}

func (b *passBackend) drawOmniVolume(rc metadata.RenderCtx, resolution uint32) error {
	defer b.event(rc, "DrawOmniVolume")()
	b.setVS(meshVS(metadata.MESHMODE_OMNI_VOLUME))
	b.setDebugDraw(rc)
	return b.draw(rc, metadata.TOPOLOGY_PATCH_LIST_4, 6*4*resolution*resolution)
}

var defaultSamplers = []metadata.SamplerState{metadata.SAMPLER_POINT, metadata.SAMPLER_LINEAR}

func sampleMode(msaa bool) metadata.SampleMode {
	if msaa {
		return metadata.SAMPLEMODE_MSAA
	}
	return metadata.SAMPLEMODE_SINGLE
}

/*==============================================================================
   BeginAccumulation
==============================================================================*/

func (b *passBackend) BeginAccumulationStart(rc metadata.RenderCtx, sceneDepth *metadata.Texture, viewer *metadata.ViewerDesc, medium *metadata.MediumDesc) error {
	c := b.ctx
	if !c.initialized {
		perContext := c.setupPerContext()
		if err := b.upload(rc, metadata.CB_SLOT_CONTEXT, perContext.Encode()); err != nil {
			return err
		}
		c.initialized = true
	}
	frame := c.setupPerFrame(viewer, medium)
	if err := b.upload(rc, metadata.CB_SLOT_FRAME, frame.Encode()); err != nil {
		return err
	}

	cbs := b.res.constantBufferSet(metadata.CB_SLOT_CONTEXT, metadata.CB_SLOT_FRAME)
	b.device.BindConstantBuffers(rc, metadata.SHADER_STAGE_VS_PS, cbs)
	b.device.BindSamplers(rc, metadata.SHADER_STAGE_PIXEL, defaultSamplers)
	return nil
}

func (b *passBackend) BeginAccumulationUpdateMediumLUT(rc metadata.RenderCtx) error {
	defer b.event(rc, "UpdateMediumLUT")()

	b.device.ClearColor(rc, b.res.phaseLUT, math.Vec4{})
	b.device.SetViewport(rc, metadata.NewViewport(1, metadata.LIGHT_LUT_WDOTV_RESOLUTION))
	b.device.SetRenderTargets(rc, []*metadata.Texture{b.res.phaseLUT}, nil, false)
	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_NO_DEPTH, 0)
	b.device.SetBlendState(rc, metadata.BLEND_NO_BLENDING, math.NewVec4(1, 1, 1, 1))
	b.setPS(metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_COMPUTE_PHASE_LOOKUP_PS))
	return b.drawFullscreen(rc)
}

func (b *passBackend) BeginAccumulationCopyDepth(rc metadata.RenderCtx, sceneDepth *metadata.Texture) error {
	defer b.event(rc, "CopyDepth")()

	b.device.ClearDepthStencil(rc, b.res.depth, metadata.CLEAR_DEPTH|metadata.CLEAR_STENCIL, 1.0, 0)
	b.device.SetViewport(rc, b.ctx.internalViewport())
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_PIXEL, []*metadata.Texture{sceneDepth})
	b.device.SetRenderTargets(rc, []*metadata.Texture{nil}, b.res.depth, false)
	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_WRITE_ONLY_DEPTH, 0)
	b.device.SetBlendState(rc, metadata.BLEND_NO_COLOR, math.NewVec4(1, 1, 1, 1))

	ps := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_DOWNSAMPLE_DEPTH_PS)
	ps.SampleMode = sampleMode(b.ctx.isOutputMSAA())
	b.setPS(ps)
	return b.drawFullscreen(rc)
}

func (b *passBackend) BeginAccumulationEnd(rc metadata.RenderCtx, sceneDepth *metadata.Texture, viewer *metadata.ViewerDesc, medium *metadata.MediumDesc) error {
	b.device.ClearColor(rc, b.res.accumulation, math.Vec4{})
	return nil
}

/*==============================================================================
   RenderVolume
==============================================================================*/

func (b *passBackend) RenderVolumeStart(rc metadata.RenderCtx, in *VolumeInput) error {
	volume := b.ctx.setupPerVolume(in.ShadowMapDesc, in.Light, in.Volume)
	if err := b.upload(rc, metadata.CB_SLOT_VOLUME, volume.Encode()); err != nil {
		return err
	}

	b.device.ClearDepthStencil(rc, b.res.depth, metadata.CLEAR_STENCIL, 1.0, uint8(metadata.STENCIL_REF))

	cbs := b.res.constantBufferSet(metadata.CB_SLOT_CONTEXT, metadata.CB_SLOT_FRAME, metadata.CB_SLOT_VOLUME)
	b.device.BindConstantBuffers(rc, metadata.SHADER_STAGE_ALL, cbs)
	b.device.BindSamplers(rc, metadata.SHADER_STAGE_ALL, defaultSamplers)
	return nil
}

func (b *passBackend) RenderVolumeEnd(rc metadata.RenderCtx, in *VolumeInput) error {
	b.device.SetRenderTargets(rc, []*metadata.Texture{nil}, nil, false)
	return nil
}

func (b *passBackend) EndAccumulationImp(rc metadata.RenderCtx) error {
	return nil
}

/*==============================================================================
   ApplyLighting
==============================================================================*/

func (b *passBackend) ApplyLightingStart(rc metadata.RenderCtx, in *ApplyInput) error {
	apply := b.ctx.setupPerApply(in.Postprocess)
	if err := b.upload(rc, metadata.CB_SLOT_APPLY, apply.Encode()); err != nil {
		return err
	}

	cbs := b.res.constantBufferSet(metadata.CB_SLOT_CONTEXT, metadata.CB_SLOT_FRAME, metadata.CB_SLOT_APPLY)
	b.device.BindConstantBuffers(rc, metadata.SHADER_STAGE_VS_PS, cbs)
	b.device.BindSamplers(rc, metadata.SHADER_STAGE_PIXEL, defaultSamplers)
	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_NO_DEPTH, 0xFF)
	b.device.SetBlendState(rc, metadata.BLEND_NO_BLENDING, math.NewVec4(1, 1, 1, 1))
	b.device.SetViewport(rc, b.ctx.internalViewport())

	b.accumulatedOutput = b.res.accumulation
	return nil
}

func (b *passBackend) ApplyLightingEnd(rc metadata.RenderCtx, in *ApplyInput) error {
	return nil
}
