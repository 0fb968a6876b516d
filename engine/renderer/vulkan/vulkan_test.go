package vulkan

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func TestMaxSampleCount(t *testing.T) {
	assert.Equal(t, uint32(1), maxSampleCount(0))
	assert.Equal(t, uint32(1), maxSampleCount(vk.SampleCountFlags(vk.SampleCount1Bit)))
	flags := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit)
	assert.Equal(t, uint32(8), maxSampleCount(flags))
}

func TestDeviceCapabilities(t *testing.T) {
	features := vk.PhysicalDeviceFeatures{TessellationShader: vk.True, DualSrcBlend: vk.True}
	limits := vk.PhysicalDeviceLimits{
		FramebufferColorSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount4Bit | vk.SampleCount8Bit),
		FramebufferDepthSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount4Bit),
	}
	caps := deviceCapabilities(features, limits, vk.QueueFlags(vk.QueueGraphicsBit)|vk.QueueFlags(vk.QueueComputeBit))
	assert.True(t, caps.Tessellation)
	assert.True(t, caps.Compute)
	assert.Equal(t, uint32(4), caps.MaxSamples)
	assert.True(t, caps.DualSourceBlend)

	caps = deviceCapabilities(vk.PhysicalDeviceFeatures{}, limits, vk.QueueFlags(vk.QueueGraphicsBit))
	assert.False(t, caps.Tessellation)
	assert.False(t, caps.Compute)
	assert.False(t, caps.DualSourceBlend)
}

func TestMeetsRequirements(t *testing.T) {
	features := vk.PhysicalDeviceFeatures{
		TessellationShader: vk.True,
		DualSrcBlend:       vk.True,
		FillModeNonSolid:   vk.True,
	}
	limits := vk.PhysicalDeviceLimits{
		FramebufferColorSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount4Bit),
		FramebufferDepthSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount4Bit),
	}
	flags := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
	req := DefaultRequirements()
	assert.True(t, meetsRequirements(req, features, limits, flags))

	noDualSource := features
	noDualSource.DualSrcBlend = vk.False
	assert.False(t, meetsRequirements(req, noDualSource, limits, flags))
	assert.False(t, meetsRequirements(req, features, limits, vk.QueueFlags(vk.QueueGraphicsBit)))
}

func TestTextureFormat(t *testing.T) {
	cases := map[metadata.TextureFormat]vk.Format{
		metadata.TEXTURE_FORMAT_RGBA16F: vk.FormatR16g16b16a16Sfloat,
		metadata.TEXTURE_FORMAT_RG16F:   vk.FormatR16g16Sfloat,
		metadata.TEXTURE_FORMAT_RGBA8:   vk.FormatR8g8b8a8Unorm,
		metadata.TEXTURE_FORMAT_D24S8:   vk.FormatD24UnormS8Uint,
		metadata.TEXTURE_FORMAT_D32F:    vk.FormatD32Sfloat,
	}
	for in, want := range cases {
		got, ok := textureFormat(in)
		assert.True(t, ok, in.String())
		assert.Equal(t, want, got, in.String())
	}
	_, ok := textureFormat(metadata.TEXTURE_FORMAT_UNKNOWN)
	assert.False(t, ok)
}

func TestAspectMaskAndUsage(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectMask(vk.FormatR16g16b16a16Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectMask(vk.FormatD32Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit)|vk.ImageAspectFlags(vk.ImageAspectStencilBit), aspectMask(vk.FormatD24UnormS8Uint))

	usage := imageUsage(metadata.TEXTURE_USAGE_SHADER_RESOURCE|metadata.TEXTURE_USAGE_DEPTH_STENCIL, vk.FormatD24UnormS8Uint)
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageSampledBit))
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit))
	assert.Zero(t, usage&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit))

	usage = imageUsage(metadata.TEXTURE_USAGE_UNORDERED_ACCESS|metadata.TEXTURE_USAGE_RENDER_TARGET, vk.FormatR16g16b16a16Sfloat)
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit))
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit))
}

func TestStateMappings(t *testing.T) {
	assert.Equal(t, vk.BlendFactorConstantColor, blendFactor(metadata.BLEND_FACTOR_BLEND_CONSTANT))
	assert.Equal(t, vk.BlendFactorSrc1Color, blendFactor(metadata.BLEND_FACTOR_SRC1_COLOR))
	assert.Equal(t, vk.BlendFactorZero, blendFactor(metadata.BLEND_FACTOR_ZERO))
	assert.Equal(t, vk.CompareOpGreaterOrEqual, compareOp(metadata.COMPARE_GREATER_EQUAL))
	assert.Equal(t, vk.StencilOpIncrementAndClamp, stencilOp(metadata.STENCIL_OP_INCR_SAT))
	assert.Equal(t, vk.PrimitiveTopologyPatchList, topology(metadata.TOPOLOGY_PATCH_LIST_4))
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, topology(metadata.TOPOLOGY_TRIANGLE_LIST))

	assert.Equal(t, vk.ShaderStageTessellationControlBit, shaderStageBit(metadata.SHADER_STAGE_HULL))
	assert.Equal(t, vk.ShaderStageTessellationEvaluationBit, shaderStageBit(metadata.SHADER_STAGE_DOMAIN))
	assert.Equal(t, vk.ShaderStageFragmentBit, shaderStageBit(metadata.SHADER_STAGE_PIXEL))
	assert.Equal(t, vk.ShaderStageComputeBit, shaderStageBit(metadata.SHADER_STAGE_COMPUTE))
}

func TestDepthStencilStateCarriesReference(t *testing.T) {
	for s := metadata.DepthStencilState(0); s < metadata.DEPTH_STENCIL_STATE_COUNT; s++ {
		info := depthStencilState(s, 7)
		assert.Equal(t, uint32(7), info.Front.Reference, s.String())
		assert.Equal(t, uint32(7), info.Back.Reference, s.String())
	}
}

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, SPIRV_MAGIC)
	binary.LittleEndian.PutUint32(code[4:], 0x00010300)
	words, err := spirvWords(code)
	require.NoError(t, err)
	assert.Equal(t, []uint32{SPIRV_MAGIC, 0x00010300}, words)

	_, err = spirvWords(code[:6])
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	bad := make([]byte, 4)
	_, err = spirvWords(bad)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestSetLayoutBindings(t *testing.T) {
	bindings := setLayoutBindings()
	require.Len(t, bindings, MAX_CB_SLOTS+MAX_SAMPLER_SLOTS+MAX_SRV_SLOTS+MAX_UAV_SLOTS)

	seen := map[uint32]vk.DescriptorType{}
	for _, b := range bindings {
		_, dup := seen[b.Binding]
		assert.False(t, dup, "binding %d declared twice", b.Binding)
		seen[b.Binding] = b.DescriptorType
	}
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, seen[BINDING_CB_BASE])
	assert.Equal(t, vk.DescriptorTypeSampler, seen[BINDING_SAMPLER_BASE+1])
	assert.Equal(t, vk.DescriptorTypeSampledImage, seen[BINDING_SRV_BASE+5])
	assert.Equal(t, vk.DescriptorTypeStorageImage, seen[BINDING_UAV_BASE])
}

func TestResultError(t *testing.T) {
	assert.ErrorIs(t, resultError("op", vk.ErrorOutOfDeviceMemory), core.ErrResourceFailure)
	assert.ErrorIs(t, resultError("op", vk.ErrorOutOfPoolMemory), core.ErrResourceFailure)
	assert.ErrorIs(t, resultError("op", vk.ErrorFeatureNotPresent), core.ErrUnsupportedDevice)
	assert.ErrorIs(t, resultError("op", vk.ErrorDeviceLost), core.ErrAPIError)
	assert.NoError(t, check("op", vk.Success))
	assert.Contains(t, VulkanResultString(vk.ErrorDeviceLost), "DEVICE_LOST")
}

func TestOpenRejectsUnknownHandles(t *testing.T) {
	_, err := Open(42)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestWrapImage(t *testing.T) {
	img := WrapImage(nil, nil, vk.FormatD24UnormS8Uint, 64, 32, 0)
	assert.Equal(t, uint32(1), img.Samples)
	assert.True(t, img.isDepth())

	tex := metadata.NewExternalTexture("scene_depth", img)
	assert.Same(t, img, imageOf(tex))
	assert.Nil(t, imageOf(nil))
}
