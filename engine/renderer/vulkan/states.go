package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Translation of the fixed pipeline states into Vulkan create infos.

func textureFormat(f metadata.TextureFormat) (vk.Format, bool) {
	switch f {
	case metadata.TEXTURE_FORMAT_RGBA16F:
		return vk.FormatR16g16b16a16Sfloat, true
	case metadata.TEXTURE_FORMAT_RG16F:
		return vk.FormatR16g16Sfloat, true
	case metadata.TEXTURE_FORMAT_RGBA8:
		return vk.FormatR8g8b8a8Unorm, true
	case metadata.TEXTURE_FORMAT_D24S8:
		return vk.FormatD24UnormS8Uint, true
	case metadata.TEXTURE_FORMAT_D32F:
		return vk.FormatD32Sfloat, true
	}
	return vk.FormatUndefined, false
}

func isDepthFormat(f vk.Format) bool {
	switch f {
	case vk.FormatD16Unorm, vk.FormatD24UnormS8Uint, vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func hasStencil(f vk.Format) bool {
	return f == vk.FormatD24UnormS8Uint || f == vk.FormatD32SfloatS8Uint
}

func aspectMask(f vk.Format) vk.ImageAspectFlags {
	if !isDepthFormat(f) {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	mask := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if hasStencil(f) {
		mask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return mask
}

func imageUsage(u metadata.TextureUsage, format vk.Format) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	if u.Has(metadata.TEXTURE_USAGE_SHADER_RESOURCE) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if u.Has(metadata.TEXTURE_USAGE_RENDER_TARGET) && !isDepthFormat(format) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if u.Has(metadata.TEXTURE_USAGE_DEPTH_STENCIL) && isDepthFormat(format) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if u.Has(metadata.TEXTURE_USAGE_UNORDERED_ACCESS) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	return usage
}

func compareOp(c metadata.CompareFunc) vk.CompareOp {
	switch c {
	case metadata.COMPARE_NEVER:
		return vk.CompareOpNever
	case metadata.COMPARE_LESS:
		return vk.CompareOpLess
	case metadata.COMPARE_EQUAL:
		return vk.CompareOpEqual
	case metadata.COMPARE_LESS_EQUAL:
		return vk.CompareOpLessOrEqual
	case metadata.COMPARE_GREATER:
		return vk.CompareOpGreater
	case metadata.COMPARE_NOT_EQUAL:
		return vk.CompareOpNotEqual
	case metadata.COMPARE_GREATER_EQUAL:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpAlways
	}
}

func stencilOp(op metadata.StencilOp) vk.StencilOp {
	switch op {
	case metadata.STENCIL_OP_ZERO:
		return vk.StencilOpZero
	case metadata.STENCIL_OP_REPLACE:
		return vk.StencilOpReplace
	case metadata.STENCIL_OP_INCR_SAT:
		return vk.StencilOpIncrementAndClamp
	case metadata.STENCIL_OP_DECR_SAT:
		return vk.StencilOpDecrementAndClamp
	case metadata.STENCIL_OP_INVERT:
		return vk.StencilOpInvert
	case metadata.STENCIL_OP_INCR:
		return vk.StencilOpIncrementAndWrap
	case metadata.STENCIL_OP_DECR:
		return vk.StencilOpDecrementAndWrap
	default:
		return vk.StencilOpKeep
	}
}

func blendFactor(f metadata.BlendFactor) vk.BlendFactor {
	switch f {
	case metadata.BLEND_FACTOR_ONE:
		return vk.BlendFactorOne
	case metadata.BLEND_FACTOR_BLEND_CONSTANT:
		return vk.BlendFactorConstantColor
	case metadata.BLEND_FACTOR_SRC1_COLOR:
		return vk.BlendFactorSrc1Color
	case metadata.BLEND_FACTOR_SRC1_ALPHA:
		return vk.BlendFactorSrc1Alpha
	default:
		return vk.BlendFactorZero
	}
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func rasterizationState(state metadata.RasterState, depthClamp bool) vk.PipelineRasterizationStateCreateInfo {
	desc := metadata.RasterStates[state]
	info := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
		// Clamping stands in for a disabled depth clip.
		DepthClampEnable: vkBool(!desc.DepthClipEnabled && depthClamp),
	}
	if desc.Fill == metadata.FILL_WIREFRAME {
		info.PolygonMode = vk.PolygonModeLine
	}
	switch desc.Cull {
	case metadata.CULL_FRONT:
		info.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.CULL_BACK:
		info.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}
	if desc.FrontCounterCW {
		info.FrontFace = vk.FrontFaceCounterClockwise
	}
	return info
}

func stencilFace(face metadata.StencilFaceDesc, desc metadata.DepthStencilDesc, reference uint32) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      stencilOp(face.FailOp),
		PassOp:      stencilOp(face.PassOp),
		DepthFailOp: stencilOp(face.DepthFail),
		CompareOp:   compareOp(face.Func),
		CompareMask: uint32(desc.StencilReadMask),
		WriteMask:   uint32(desc.StencilWriteMask),
		Reference:   reference,
	}
}

func depthStencilState(state metadata.DepthStencilState, reference uint32) vk.PipelineDepthStencilStateCreateInfo {
	desc := metadata.DepthStencilStates[state]
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vkBool(desc.DepthEnable),
		DepthWriteEnable:  vkBool(desc.DepthWrite),
		DepthCompareOp:    compareOp(desc.DepthFunc),
		StencilTestEnable: vkBool(desc.StencilEnable),
		Front:             stencilFace(desc.Front, desc, reference),
		Back:              stencilFace(desc.Back, desc, reference),
		MaxDepthBounds:    1.0,
	}
}

func colorBlendAttachment(state metadata.BlendState) vk.PipelineColorBlendAttachmentState {
	desc := metadata.BlendStates[state]
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(desc.Enable),
		SrcColorBlendFactor: blendFactor(desc.SrcColor),
		DstColorBlendFactor: blendFactor(desc.DstColor),
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: blendFactor(desc.SrcAlpha),
		DstAlphaBlendFactor: blendFactor(desc.DstAlpha),
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(desc.ColorWriteMask),
	}
}

func samplerCreateInfo(state metadata.SamplerState) vk.SamplerCreateInfo {
	filter, mip := vk.FilterNearest, vk.SamplerMipmapModeNearest
	if metadata.SamplerStates[state].Filter == metadata.FILTER_KIND_LINEAR {
		filter, mip = vk.FilterLinear, vk.SamplerMipmapModeLinear
	}
	return vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		MipmapMode:              mip,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MaxLod:                  1000,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}
}

func topology(t metadata.Topology) vk.PrimitiveTopology {
	if t == metadata.TOPOLOGY_PATCH_LIST_4 {
		return vk.PrimitiveTopologyPatchList
	}
	return vk.PrimitiveTopologyTriangleList
}

func shaderStageBit(stage metadata.ShaderStage) vk.ShaderStageFlagBits {
	switch stage {
	case metadata.SHADER_STAGE_VERTEX:
		return vk.ShaderStageVertexBit
	case metadata.SHADER_STAGE_HULL:
		return vk.ShaderStageTessellationControlBit
	case metadata.SHADER_STAGE_DOMAIN:
		return vk.ShaderStageTessellationEvaluationBit
	case metadata.SHADER_STAGE_PIXEL:
		return vk.ShaderStageFragmentBit
	default:
		return vk.ShaderStageComputeBit
	}
}
