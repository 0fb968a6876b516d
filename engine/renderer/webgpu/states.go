package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func textureFormat(f metadata.TextureFormat) (wgpu.TextureFormat, bool) {
	switch f {
	case metadata.TEXTURE_FORMAT_RGBA16F:
		return wgpu.TextureFormatRGBA16Float, true
	case metadata.TEXTURE_FORMAT_RG16F:
		return wgpu.TextureFormatRG16Float, true
	case metadata.TEXTURE_FORMAT_RGBA8:
		return wgpu.TextureFormatRGBA8Unorm, true
	case metadata.TEXTURE_FORMAT_D24S8:
		return wgpu.TextureFormatDepth24PlusStencil8, true
	case metadata.TEXTURE_FORMAT_D32F:
		return wgpu.TextureFormatDepth32Float, true
	default:
		return wgpu.TextureFormatUndefined, false
	}
}

func isDepthFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatDepth24PlusStencil8, wgpu.TextureFormatDepth32Float, wgpu.TextureFormatDepth24Plus:
		return true
	}
	return false
}

func hasStencil(f wgpu.TextureFormat) bool {
	return f == wgpu.TextureFormatDepth24PlusStencil8
}

func textureUsage(u metadata.TextureUsage) wgpu.TextureUsage {
	var usage wgpu.TextureUsage
	if u.Has(metadata.TEXTURE_USAGE_SHADER_RESOURCE) {
		usage |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(metadata.TEXTURE_USAGE_RENDER_TARGET) || u.Has(metadata.TEXTURE_USAGE_DEPTH_STENCIL) {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(metadata.TEXTURE_USAGE_UNORDERED_ACCESS) {
		usage |= wgpu.TextureUsageStorageBinding
	}
	return usage
}

func compareFunction(c metadata.CompareFunc) wgpu.CompareFunction {
	switch c {
	case metadata.COMPARE_NEVER:
		return wgpu.CompareFunctionNever
	case metadata.COMPARE_LESS:
		return wgpu.CompareFunctionLess
	case metadata.COMPARE_EQUAL:
		return wgpu.CompareFunctionEqual
	case metadata.COMPARE_LESS_EQUAL:
		return wgpu.CompareFunctionLessEqual
	case metadata.COMPARE_GREATER:
		return wgpu.CompareFunctionGreater
	case metadata.COMPARE_NOT_EQUAL:
		return wgpu.CompareFunctionNotEqual
	case metadata.COMPARE_GREATER_EQUAL:
		return wgpu.CompareFunctionGreaterEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func stencilOperation(op metadata.StencilOp) wgpu.StencilOperation {
	switch op {
	case metadata.STENCIL_OP_ZERO:
		return wgpu.StencilOperationZero
	case metadata.STENCIL_OP_REPLACE:
		return wgpu.StencilOperationReplace
	case metadata.STENCIL_OP_INCR_SAT:
		return wgpu.StencilOperationIncrementClamp
	case metadata.STENCIL_OP_DECR_SAT:
		return wgpu.StencilOperationDecrementClamp
	case metadata.STENCIL_OP_INVERT:
		return wgpu.StencilOperationInvert
	case metadata.STENCIL_OP_INCR:
		return wgpu.StencilOperationIncrementWrap
	case metadata.STENCIL_OP_DECR:
		return wgpu.StencilOperationDecrementWrap
	default:
		return wgpu.StencilOperationKeep
	}
}

// blendFactor reports false for factors that read a second shader output.
func blendFactor(f metadata.BlendFactor) (wgpu.BlendFactor, bool) {
	switch f {
	case metadata.BLEND_FACTOR_ZERO:
		return wgpu.BlendFactorZero, true
	case metadata.BLEND_FACTOR_ONE:
		return wgpu.BlendFactorOne, true
	case metadata.BLEND_FACTOR_BLEND_CONSTANT:
		return wgpu.BlendFactorConstant, true
	default:
		return wgpu.BlendFactorZero, false
	}
}

func colorWriteMask(mask uint8) wgpu.ColorWriteMask {
	var out wgpu.ColorWriteMask
	if mask&0x1 != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if mask&0x2 != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if mask&0x4 != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if mask&0x8 != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

// colorTarget builds the target state for one attachment, or false if the
// blend state needs dual-source blending.
func colorTarget(state metadata.BlendState, format wgpu.TextureFormat) (wgpu.ColorTargetState, bool) {
	desc := metadata.BlendStates[state]
	target := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: colorWriteMask(desc.ColorWriteMask),
	}
	if !desc.Enable {
		return target, true
	}
	srcColor, ok1 := blendFactor(desc.SrcColor)
	dstColor, ok2 := blendFactor(desc.DstColor)
	srcAlpha, ok3 := blendFactor(desc.SrcAlpha)
	dstAlpha, ok4 := blendFactor(desc.DstAlpha)
	if !(ok1 && ok2 && ok3 && ok4) {
		return target, false
	}
	target.Blend = &wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: srcColor, DstFactor: dstColor, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: srcAlpha, DstFactor: dstAlpha, Operation: wgpu.BlendOperationAdd},
	}
	return target, true
}

// primitiveState maps a raster state. Wireframe has no WebGPU equivalent
// and rasterizes solid.
func primitiveState(state metadata.RasterState, topo wgpu.PrimitiveTopology) wgpu.PrimitiveState {
	desc := metadata.RasterStates[state]
	p := wgpu.PrimitiveState{
		Topology:  topo,
		FrontFace: wgpu.FrontFaceCW,
		CullMode:  wgpu.CullModeNone,
	}
	if desc.FrontCounterCW {
		p.FrontFace = wgpu.FrontFaceCCW
	}
	switch desc.Cull {
	case metadata.CULL_FRONT:
		p.CullMode = wgpu.CullModeFront
	case metadata.CULL_BACK:
		p.CullMode = wgpu.CullModeBack
	}
	return p
}

func stencilFace(face metadata.StencilFaceDesc) wgpu.StencilFaceState {
	return wgpu.StencilFaceState{
		Compare:     compareFunction(face.Func),
		FailOp:      stencilOperation(face.FailOp),
		DepthFailOp: stencilOperation(face.DepthFail),
		PassOp:      stencilOperation(face.PassOp),
	}
}

/**
 * @brief Depth-stencil state for a target format. The stencil reference is
 * dynamic in WebGPU and set on the pass instead.
 */
func depthStencilState(state metadata.DepthStencilState, format wgpu.TextureFormat) *wgpu.DepthStencilState {
	desc := metadata.DepthStencilStates[state]
	ds := &wgpu.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: desc.DepthEnable && desc.DepthWrite,
		DepthCompare:      wgpu.CompareFunctionAlways,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
	}
	if desc.DepthEnable {
		ds.DepthCompare = compareFunction(desc.DepthFunc)
	}
	if desc.StencilEnable && hasStencil(format) {
		ds.StencilFront = stencilFace(desc.Front)
		ds.StencilBack = stencilFace(desc.Back)
		ds.StencilReadMask = uint32(desc.StencilReadMask)
		ds.StencilWriteMask = uint32(desc.StencilWriteMask)
	}
	return ds
}

func samplerDescriptor(state metadata.SamplerState) *wgpu.SamplerDescriptor {
	filter, mip := wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	if metadata.SamplerStates[state].Filter == metadata.FILTER_KIND_LINEAR {
		filter, mip = wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	}
	return &wgpu.SamplerDescriptor{
		Label:         "sampler_" + state.String(),
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

func shaderVisibility(stages metadata.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if stages&metadata.SHADER_STAGE_GRAPHICS&^metadata.SHADER_STAGE_PIXEL != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if stages.Has(metadata.SHADER_STAGE_PIXEL) {
		out |= wgpu.ShaderStageFragment
	}
	if stages.Has(metadata.SHADER_STAGE_COMPUTE) {
		out |= wgpu.ShaderStageCompute
	}
	return out
}
