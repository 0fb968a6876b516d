package webgpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func TestTextureFormat(t *testing.T) {
	cases := map[metadata.TextureFormat]wgpu.TextureFormat{
		metadata.TEXTURE_FORMAT_RGBA16F: wgpu.TextureFormatRGBA16Float,
		metadata.TEXTURE_FORMAT_RGBA8:   wgpu.TextureFormatRGBA8Unorm,
		metadata.TEXTURE_FORMAT_D24S8:   wgpu.TextureFormatDepth24PlusStencil8,
		metadata.TEXTURE_FORMAT_D32F:    wgpu.TextureFormatDepth32Float,
	}
	for in, want := range cases {
		got, ok := textureFormat(in)
		assert.True(t, ok, in.String())
		assert.Equal(t, want, got, in.String())
	}
	_, ok := textureFormat(metadata.TEXTURE_FORMAT_UNKNOWN)
	assert.False(t, ok)

	assert.True(t, isDepthFormat(wgpu.TextureFormatDepth32Float))
	assert.True(t, hasStencil(wgpu.TextureFormatDepth24PlusStencil8))
	assert.False(t, hasStencil(wgpu.TextureFormatDepth32Float))
}

func TestTextureUsage(t *testing.T) {
	usage := textureUsage(metadata.TEXTURE_USAGE_SHADER_RESOURCE | metadata.TEXTURE_USAGE_UNORDERED_ACCESS)
	assert.NotZero(t, usage&wgpu.TextureUsageTextureBinding)
	assert.NotZero(t, usage&wgpu.TextureUsageStorageBinding)
	assert.Zero(t, usage&wgpu.TextureUsageRenderAttachment)

	usage = textureUsage(metadata.TEXTURE_USAGE_DEPTH_STENCIL)
	assert.NotZero(t, usage&wgpu.TextureUsageRenderAttachment)
}

func TestColorTargetRejectsDualSource(t *testing.T) {
	_, ok := colorTarget(metadata.BLEND_ADDITIVE_MODULATE, wgpu.TextureFormatRGBA16Float)
	assert.False(t, ok)
	_, ok = colorTarget(metadata.BLEND_DEBUG, wgpu.TextureFormatRGBA16Float)
	assert.False(t, ok)

	target, ok := colorTarget(metadata.BLEND_ADDITIVE, wgpu.TextureFormatRGBA16Float)
	require.True(t, ok)
	require.NotNil(t, target.Blend)
	assert.Equal(t, wgpu.BlendFactorConstant, target.Blend.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOne, target.Blend.Color.DstFactor)

	target, ok = colorTarget(metadata.BLEND_NO_COLOR, wgpu.TextureFormatRGBA16Float)
	require.True(t, ok)
	assert.Nil(t, target.Blend)
	assert.Zero(t, target.WriteMask)

	target, _ = colorTarget(metadata.BLEND_NO_BLENDING, wgpu.TextureFormatRGBA8Unorm)
	assert.Equal(t, wgpu.ColorWriteMaskAll, target.WriteMask)
}

func TestDepthStencilState(t *testing.T) {
	ds := depthStencilState(metadata.DEPTH_STENCIL_RENDER_VOLUME, wgpu.TextureFormatDepth24PlusStencil8)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, ds.DepthCompare)
	assert.False(t, ds.DepthWriteEnabled)
	assert.Equal(t, wgpu.StencilOperationIncrementWrap, ds.StencilFront.DepthFailOp)
	assert.Equal(t, wgpu.StencilOperationDecrementWrap, ds.StencilBack.DepthFailOp)
	assert.Equal(t, uint32(0xFF), ds.StencilWriteMask)

	// Stencil is dropped for formats without it.
	ds = depthStencilState(metadata.DEPTH_STENCIL_RENDER_VOLUME, wgpu.TextureFormatDepth32Float)
	assert.Equal(t, wgpu.CompareFunctionAlways, ds.StencilFront.Compare)
	assert.Zero(t, ds.StencilWriteMask)

	ds = depthStencilState(metadata.DEPTH_STENCIL_NO_DEPTH, wgpu.TextureFormatDepth32Float)
	assert.Equal(t, wgpu.CompareFunctionAlways, ds.DepthCompare)

	ds = depthStencilState(metadata.DEPTH_STENCIL_WRITE_ONLY_DEPTH, wgpu.TextureFormatDepth32Float)
	assert.True(t, ds.DepthWriteEnabled)
}

func TestPrimitiveState(t *testing.T) {
	p := primitiveState(metadata.RASTER_CULL_FRONT, wgpu.PrimitiveTopologyTriangleList)
	assert.Equal(t, wgpu.CullModeFront, p.CullMode)
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace)

	p = primitiveState(metadata.RASTER_WIREFRAME, wgpu.PrimitiveTopologyTriangleList)
	assert.Equal(t, wgpu.CullModeNone, p.CullMode)
}

func TestSamplerDescriptor(t *testing.T) {
	assert.Equal(t, wgpu.FilterModeNearest, samplerDescriptor(metadata.SAMPLER_POINT).MinFilter)
	linear := samplerDescriptor(metadata.SAMPLER_LINEAR)
	assert.Equal(t, wgpu.FilterModeLinear, linear.MagFilter)
	assert.Equal(t, wgpu.AddressModeClampToEdge, linear.AddressModeU)
}

func TestBindingLayout(t *testing.T) {
	linear := metadata.SAMPLER_LINEAR
	var table bindingTable
	table.buffers[1] = &Buffer{Size: 64}
	table.samplers[0] = &linear
	table.views[2] = WrapView(nil, wgpu.TextureFormatDepth24PlusStencil8, 8, 8, 1)
	table.views[3] = WrapView(nil, wgpu.TextureFormatRGBA16Float, 8, 8, 4)
	uavs := []*Image{WrapView(nil, wgpu.TextureFormatRGBA16Float, 8, 8, 1)}

	key := bindingLayout(&table, uavs, wgpu.ShaderStageCompute)
	entries := key.entries()
	require.Len(t, entries, 5)

	byBinding := map[uint32]wgpu.BindGroupLayoutEntry{}
	for _, e := range entries {
		byBinding[e.Binding] = e
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
	assert.Equal(t, wgpu.BufferBindingTypeUniform, byBinding[BINDING_CB_BASE+1].Buffer.Type)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, byBinding[BINDING_SAMPLER_BASE].Sampler.Type)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, byBinding[BINDING_SRV_BASE+2].Texture.SampleType)
	assert.True(t, byBinding[BINDING_SRV_BASE+3].Texture.Multisampled)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, byBinding[BINDING_SRV_BASE+3].Texture.SampleType)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, byBinding[BINDING_UAV_BASE].StorageTexture.Access)

	// Same resources, same key.
	assert.Equal(t, key, bindingLayout(&table, uavs, wgpu.ShaderStageCompute))
	point := metadata.SAMPLER_POINT
	table.samplers[0] = &point
	assert.NotEqual(t, key, bindingLayout(&table, uavs, wgpu.ShaderStageCompute))

	group := bindGroupEntries(&table, uavs, make([]*wgpu.Sampler, metadata.SAMPLER_STATE_COUNT))
	assert.Len(t, group, 5)
}

func TestTessellationEmulation(t *testing.T) {
	vs := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_VS)
	hs := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_HS)
	ds := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_DS)

	set := metadata.ShaderSet{VS: &vs}
	assert.Equal(t, vs.Key(), vertexProgramKey(set))

	set.HS, set.DS = &hs, &ds
	assert.Equal(t, vs.Key()+"+"+hs.Key()+"+"+ds.Key(), vertexProgramKey(set))

	hs.MaxTessFactor = metadata.TESSELLATION_QUALITY_LOW
	assert.Equal(t, uint32(2*16*16*6), emulatedVertexCount(8, &hs))
	hs.MaxTessFactor = metadata.TESSELLATION_QUALITY_HIGH
	assert.Equal(t, uint32(64*64*6), emulatedVertexCount(4, &hs))
}

func TestUploadRingPlacement(t *testing.T) {
	var r uploadRing

	idx, off, size := r.place(100)
	assert.Equal(t, 0, idx)
	assert.Zero(t, off)
	assert.Equal(t, UPLOAD_CHUNK_SIZE, size)
	r.commit(idx, off, 100, size)

	idx, off, _ = r.place(100)
	assert.Equal(t, 0, idx)
	assert.Equal(t, UPLOAD_ALIGNMENT, off)
	r.commit(idx, off, 100, size)

	// Larger than what is left: moves to a new chunk sized for it.
	idx, off, size = r.place(UPLOAD_CHUNK_SIZE)
	assert.Equal(t, 1, idx)
	assert.Zero(t, off)
	assert.Equal(t, UPLOAD_CHUNK_SIZE, size)
	r.commit(idx, off, UPLOAD_CHUNK_SIZE, size)

	_, _, size = r.place(3 * UPLOAD_CHUNK_SIZE)
	assert.Equal(t, 3*UPLOAD_CHUNK_SIZE, size)

	r.reset()
	idx, off, _ = r.place(16)
	assert.Equal(t, 0, idx)
	assert.Zero(t, off)
}

func TestCapabilities(t *testing.T) {
	caps := capabilities()
	assert.True(t, caps.Tessellation)
	assert.True(t, caps.Compute)
	assert.False(t, caps.DualSourceBlend)
	assert.Equal(t, uint32(MAX_SAMPLES), caps.MaxSamples)
}

func TestOpenRejectsUnknownHandles(t *testing.T) {
	_, err := Open(42)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestWrapView(t *testing.T) {
	img := WrapView(nil, wgpu.TextureFormatDepth32Float, 64, 32, 0)
	assert.Equal(t, uint32(1), img.Samples)
	assert.True(t, img.isDepth())
	assert.Equal(t, wgpu.TextureSampleTypeDepth, img.sampleType())

	tex := metadata.NewExternalTexture("scene_depth", img)
	assert.Same(t, img, imageOf(tex))
	assert.Nil(t, imageOf(nil))

	// External images are never released by the device.
	img.release()
	assert.True(t, img.external)
}

func TestCreateBufferRejectsUnalignedSize(t *testing.T) {
	_, err := createBuffer(nil, metadata.BufferDesc{Name: "odd", Size: 6})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
