package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
)

func TestLibraryLifecycle(t *testing.T) {
	RegisterDevice(PLATFORM_RECORDING, recordingFactory)
	desc := fullHD(metadata.FILTER_NONE)
	platform := &metadata.PlatformDesc{Platform: PLATFORM_RECORDING}

	_, err := CreateContext(platform, &desc)
	assert.ErrorIs(t, err, core.ErrUninitialized)

	err = OpenLibrary(nil, nil, metadata.VersionDesc{Major: 0, Minor: 9})
	assert.ErrorIs(t, err, core.ErrInvalidVersion)
	assert.Equal(t, core.STATUS_INVALID_VERSION, core.StatusOf(err))
	assert.False(t, IsLibraryOpen())

	require.NoError(t, OpenLibrary(nil, nil, metadata.CurrentVersion()))
	assert.True(t, IsLibraryOpen())

	ctx, err := CreateContext(platform, &desc)
	require.NoError(t, err)
	assert.Equal(t, PLATFORM_RECORDING, ctx.Platform())
	owner, ok := core.IdentifierLookup(ctx.ID)
	assert.True(t, ok)
	assert.Same(t, ctx, owner)

	// live contexts are released on close
	require.NoError(t, CloseLibrary())
	assert.Equal(t, CONTEXT_STATE_RELEASED, ctx.State())
	_, ok = core.IdentifierLookup(ctx.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, CloseLibrary(), core.ErrUninitialized)
	assert.ErrorIs(t, ReleaseContext(ctx), core.ErrInvalidParameter)
}

func TestCreateContextErrors(t *testing.T) {
	openLibrary(t)
	desc := fullHD(metadata.FILTER_NONE)

	_, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = CreateContext(&metadata.PlatformDesc{Platform: "metal"}, &desc)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: 42}, &desc)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	bad := desc
	bad.Framebuffer.Width = 0
	_, err = CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING}, &bad)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestCreateContextUnsupportedDevice(t *testing.T) {
	openLibrary(t)

	cases := []struct {
		name string
		caps metadata.DeviceCapabilities
		msaa metadata.MultisampleMode
	}{
		{"no tessellation", metadata.DeviceCapabilities{Compute: true, MaxSamples: 8}, metadata.MULTISAMPLE_SINGLE},
		{"no compute", metadata.DeviceCapabilities{Tessellation: true, MaxSamples: 8}, metadata.MULTISAMPLE_SINGLE},
		{"too many samples", metadata.DeviceCapabilities{Tessellation: true, Compute: true, MaxSamples: 2}, metadata.MULTISAMPLE_MSAA4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := recording.DefaultOptions()
			opts.Capabilities = tc.caps
			dev := recording.New(opts)
			desc := fullHD(metadata.FILTER_NONE)
			desc.InternalSampleMode = tc.msaa

			_, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: dev}, &desc)
			assert.ErrorIs(t, err, core.ErrUnsupportedDevice)
			assert.True(t, dev.Released())
			assert.Empty(t, dev.LiveTextures())
		})
	}
}

func TestCreateContextResourceFailure(t *testing.T) {
	openLibrary(t)
	opts := recording.DefaultOptions()
	opts.FailTextureCreate = 5
	dev := recording.New(opts)
	desc := fullHD(metadata.FILTER_TEMPORAL)

	_, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: dev}, &desc)
	assert.ErrorIs(t, err, core.ErrResourceFailure)
	assert.Equal(t, core.STATUS_RESOURCE_FAILURE, core.StatusOf(err))
	assert.Empty(t, dev.LiveTextures())
	assert.Zero(t, dev.LiveBuffers())
	assert.True(t, dev.Released())
}

func TestContextResources(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(d *metadata.ContextDesc)
		textures int
		width    uint32
		height   uint32
	}{
		{"full single", func(d *metadata.ContextDesc) {}, 9, 1920, 1080},
		{"msaa", func(d *metadata.ContextDesc) { d.InternalSampleMode = metadata.MULTISAMPLE_MSAA2 }, 11, 1920, 1080},
		{"temporal", func(d *metadata.ContextDesc) { d.FilterMode = metadata.FILTER_TEMPORAL }, 15, 1920, 1080},
		{"half", func(d *metadata.ContextDesc) { d.DownsampleMode = metadata.DOWNSAMPLE_HALF }, 9, 960, 540},
		{"quarter", func(d *metadata.ContextDesc) { d.DownsampleMode = metadata.DOWNSAMPLE_QUARTER }, 9, 480, 270},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			openLibrary(t)
			desc := fullHD(metadata.FILTER_NONE)
			tc.mutate(&desc)
			ctx, dev := newRecordedContext(t, desc)

			textures := dev.LiveTextures()
			assert.Len(t, textures, tc.textures)
			assert.Equal(t, int(metadata.CB_SLOT_COUNT), dev.LiveBuffers())

			var depth *metadata.Texture
			for _, tex := range textures {
				if tex.Desc.Name == "Depth" {
					depth = tex
				}
			}
			require.NotNil(t, depth)
			assert.Equal(t, tc.width, depth.Desc.Width)
			assert.Equal(t, tc.height, depth.Desc.Height)
			assert.Equal(t, ctx.internalSampleCount(), depth.Desc.Samples)

			require.NoError(t, ReleaseContext(ctx))
			assert.Empty(t, dev.LiveTextures())
			assert.Zero(t, dev.LiveBuffers())
			assert.True(t, dev.Released())
			assert.ErrorIs(t, ReleaseContext(ctx), core.ErrInvalidParameter)
		})
	}
}

func TestAvailableDevices(t *testing.T) {
	RegisterDevice("zz-test", recordingFactory)
	defer UnregisterDevice("zz-test")

	names := AvailableDevices()
	assert.Contains(t, names, "zz-test")
	assert.IsNonDecreasing(t, names)
}
