package renderer

import (
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief The command surface a graphics API exposes to the pipeline.
 *
 * Every recording call takes the caller's render context (a command buffer,
 * an encoder) as an opaque value. Binding calls address slots from zero; a
 * nil entry unbinds its slot. Pipeline states are the fixed enums of
 * metadata/states.go.
 */
type Device interface {
	Capabilities() metadata.DeviceCapabilities

	CreateTexture(desc metadata.TextureDesc) (*metadata.Texture, error)
	DestroyTexture(texture *metadata.Texture)
	CreateBuffer(desc metadata.BufferDesc) (*metadata.Buffer, error)
	DestroyBuffer(buffer *metadata.Buffer)
	/** @brief Replaces the whole content of a constant buffer. */
	UpdateBuffer(rc metadata.RenderCtx, buffer *metadata.Buffer, data []byte) error

	BindConstantBuffers(rc metadata.RenderCtx, stages metadata.ShaderStage, buffers []*metadata.Buffer)
	BindSamplers(rc metadata.RenderCtx, stages metadata.ShaderStage, samplers []metadata.SamplerState)
	BindShaderResources(rc metadata.RenderCtx, stages metadata.ShaderStage, views []*metadata.Texture)
	/** @brief Binds compute-stage storage targets. An empty slice unbinds all. */
	BindUnorderedAccess(rc metadata.RenderCtx, views []*metadata.Texture)

	/** @brief Sets colour targets and an optional depth target; readOnlyDepth binds it for testing only. */
	SetRenderTargets(rc metadata.RenderCtx, color []*metadata.Texture, depth *metadata.Texture, readOnlyDepth bool)
	SetViewport(rc metadata.RenderCtx, viewport metadata.Viewport)
	SetRasterState(rc metadata.RenderCtx, state metadata.RasterState)
	SetDepthStencilState(rc metadata.RenderCtx, state metadata.DepthStencilState, stencilRef uint32)
	SetBlendState(rc metadata.RenderCtx, state metadata.BlendState, factor math.Vec4)
	/** @brief Binds one program per stage; nil leaves the stage empty. */
	SetShaders(rc metadata.RenderCtx, shaders metadata.ShaderSet) error

	ClearColor(rc metadata.RenderCtx, target *metadata.Texture, color math.Vec4)
	ClearDepthStencil(rc metadata.RenderCtx, target *metadata.Texture, flags metadata.ClearFlags, depth float32, stencil uint8)
	/** @brief Draws vertexCount vertices without vertex buffers. */
	Draw(rc metadata.RenderCtx, topology metadata.Topology, vertexCount uint32) error
	Dispatch(rc metadata.RenderCtx, x, y, z uint32) error

	BeginEvent(rc metadata.RenderCtx, name string)
	EndEvent(rc metadata.RenderCtx)

	Release() error
}

/**
 * @brief Builds a Device from the native handles in PlatformDesc.Device.
 * Returning core.ErrUnsupportedDevice rejects hardware the pipeline cannot run on.
 */
type DeviceFactory func(native any) (Device, error)
