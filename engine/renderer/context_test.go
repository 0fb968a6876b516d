package renderer

import (
	"encoding/binary"
	"fmt"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
)

func f32At(b []byte, register, component int) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[register*16+component*4:]))
}

func TestDirectionalFrame(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())

	draws := dev.Draws()
	require.Len(t, draws, 7)

	phase := draws[0]
	assert.Equal(t, "ComputePhaseLookup_PS", phase.Shaders.PS)
	assert.Equal(t, "Quad_VS", phase.Shaders.VS)
	assert.Equal(t, []string{"PhaseLUT"}, phase.Targets)
	assert.Equal(t, metadata.NewViewport(1, metadata.LIGHT_LUT_WDOTV_RESOLUTION), phase.Viewport)
	assert.Equal(t, uint32(3), phase.VertexCount)

	copyDepth := draws[1]
	assert.Equal(t, "DownsampleDepth_PS[SAMPLEMODE=SINGLE]", copyDepth.Shaders.PS)
	assert.Equal(t, "Depth", copyDepth.Depth)
	assert.Equal(t, metadata.DEPTH_STENCIL_WRITE_ONLY_DEPTH, copyDepth.DepthStencil)
	assert.Equal(t, metadata.BLEND_NO_COLOR, copyDepth.Blend)
	assert.Equal(t, "SceneDepth", copyDepth.PixelResources[0])

	grid := draws[2]
	assert.Equal(t, "Volumetric::RenderVolume/Directional/DrawFrustumGrid", grid.Event)
	assert.Equal(t, metadata.TOPOLOGY_PATCH_LIST_4, grid.Topology)
	assert.Equal(t, uint32(4*16*16), grid.VertexCount)
	assert.Equal(t, "RenderVolume_VS[MESHMODE=FRUSTUM_GRID]", grid.Shaders.VS)
	assert.Equal(t, "RenderVolume_HS[MAXTESSFACTOR=HIGH,SHADOWMAPTYPE=ATLAS,CASCADECOUNT=1,VOLUMETYPE=FRUSTUM]", grid.Shaders.HS)
	assert.Equal(t, "RenderVolume_DS[SHADOWMAPTYPE=ATLAS,CASCADECOUNT=1,VOLUMETYPE=FRUSTUM]", grid.Shaders.DS)
	assert.Equal(t, "RenderVolume_PS[SAMPLEMODE=SINGLE,LIGHTMODE=DIRECTIONAL,PASSMODE=GEOMETRY,ATTENUATIONMODE=NONE,FALLOFFMODE=NONE]", grid.Shaders.PS)
	assert.Equal(t, metadata.DEPTH_STENCIL_RENDER_VOLUME, grid.DepthStencil)
	assert.Equal(t, metadata.STENCIL_REF, grid.StencilRef)
	assert.Equal(t, metadata.BLEND_ADDITIVE, grid.Blend)
	assert.Equal(t, []string{"Accumulation"}, grid.Targets)
	assert.Equal(t, []string{"", "ShadowMap", "", "", "PhaseLUT"}, grid.PixelResources)

	base := draws[3]
	assert.Equal(t, metadata.TOPOLOGY_TRIANGLE_LIST, base.Topology)
	assert.Equal(t, uint32(6), base.VertexCount)
	assert.Empty(t, base.Shaders.HS)

	sky := draws[4]
	assert.Contains(t, sky.Shaders.PS, "PASSMODE=SKY")
	assert.Equal(t, metadata.DEPTH_STENCIL_RENDER_VOLUME_BOUNDARY, sky.DepthStencil)

	final := draws[5]
	assert.Contains(t, final.Shaders.PS, "PASSMODE=FINAL")
	assert.Equal(t, metadata.DEPTH_STENCIL_FINISH_VOLUME, final.DepthStencil)
	assert.True(t, final.ReadOnlyDepth)
	assert.Equal(t, "Depth", final.PixelResources[2])

	composite := draws[6]
	assert.Equal(t, "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=NONE]", composite.Shaders.PS)
	assert.Equal(t, []string{"SceneTarget"}, composite.Targets)
	assert.Equal(t, metadata.BLEND_ADDITIVE_MODULATE, composite.Blend)
	assert.Equal(t, math.NewVec4(1, 1, 1, 1), composite.BlendFactor)
	assert.Equal(t, metadata.NewViewport(1920, 1080), composite.Viewport)
	assert.Equal(t, []string{"Accumulation", "SceneDepth", "", "", "PhaseLUT"}, composite.PixelResources)

	assert.Zero(t, dev.Count(recording.CmdDispatch))
	assert.Equal(t, dev.Count(recording.CmdBeginEvent), dev.Count(recording.CmdEndEvent))
	assert.Equal(t, CONTEXT_STATE_READY, ctx.State())
	assert.Equal(t, uint64(1), ctx.Stats().Frames)
	assert.Equal(t, uint32(1), ctx.Stats().Volumes)
}

func TestPerContextUploadedOnce(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())
	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())

	assert.Len(t, dev.Uploads("PerContextCB"), 1)
	assert.Len(t, dev.Uploads("PerFrameCB"), 2)
	assert.Len(t, dev.Uploads("PerVolumeCB"), 2)

	frame := dev.Uploads("PerFrameCB")[0]
	assert.InDelta(t, 0.5, f32At(frame, 15, 2), 1e-4)
	assert.InDelta(t, 100, f32At(frame, 15, 3), 1e-1)
	// no jitter without temporal filtering
	assert.Equal(t, float32(0), f32At(frame, 15, 0))
	assert.Equal(t, float32(0), f32At(frame, 15, 1))
}

func TestTemporalHistory(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_TEMPORAL))
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())
	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())

	applies := dev.Uploads("PerApplyCB")
	require.Len(t, applies, 2)
	assert.Equal(t, float32(0), f32At(applies[0], 4, 1))
	assert.Equal(t, float32(0.95), f32At(applies[1], 4, 1))
	assert.Equal(t, float32(0.2), f32At(applies[1], 4, 0))

	frames := dev.Uploads("PerFrameCB")
	assert.InDelta(t, 0, f32At(frames[0], 15, 0), 1e-6)
	assert.InDelta(t, -1.0/6.0, f32At(frames[0], 15, 1), 1e-6)
	assert.InDelta(t, -0.25, f32At(frames[1], 15, 0), 1e-6)
	assert.InDelta(t, 1.0/6.0, f32At(frames[1], 15, 1), 1e-6)

	var filters, composites []recording.Draw
	for _, d := range dev.Draws() {
		switch {
		case d.Shaders.PS == "TemporalFilter_PS":
			filters = append(filters, d)
		case len(d.Targets) == 1 && d.Targets[0] == "SceneTarget":
			composites = append(composites, d)
		}
	}
	require.Len(t, filters, 2)
	require.Len(t, composites, 2)

	// first frame primes the history with the slot not being written
	assert.Equal(t, []string{"Resolved_Accumulation", "Filtered_Accumulation[1]", "Resolved_Depth", ""}, filters[0].PixelResources)
	assert.Equal(t, []string{"Filtered_Accumulation[0]", "Filtered_Depth[0]"}, filters[0].Targets)
	assert.Equal(t, []string{"Resolved_Accumulation", "Filtered_Accumulation[0]", "Resolved_Depth", ""}, filters[1].PixelResources)
	assert.Equal(t, []string{"Filtered_Accumulation[1]", "Filtered_Depth[1]"}, filters[1].Targets)

	assert.Equal(t, "Filtered_Accumulation[0]", composites[0].PixelResources[0])
	assert.Equal(t, "Filtered_Depth[0]", composites[0].PixelResources[2])
	assert.Equal(t, "Filtered_Accumulation[1]", composites[1].PixelResources[0])
	assert.Equal(t, "Filtered_Depth[1]", composites[1].PixelResources[2])
}

func TestResolveWithInternalMSAA(t *testing.T) {
	openLibrary(t)
	desc := fullHD(metadata.FILTER_NONE)
	desc.InternalSampleMode = metadata.MULTISAMPLE_MSAA4
	ctx, dev := newRecordedContext(t, desc)
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())

	draws := dev.Draws()
	require.Len(t, draws, 8)
	resolve := draws[6]
	assert.Equal(t, "Resolve_PS[SAMPLEMODE=MSAA]", resolve.Shaders.PS)
	assert.Equal(t, []string{"Accumulation", "Depth"}, resolve.PixelResources)
	assert.Equal(t, []string{"Resolved_Accumulation", "Resolved_Depth"}, resolve.Targets)
	assert.Contains(t, draws[2].Shaders.PS, "SAMPLEMODE=MSAA")
	assert.Equal(t, "Resolved_Accumulation", draws[7].PixelResources[0])
}

func TestSpotlightLUT(t *testing.T) {
	cases := []struct {
		name       string
		falloff    metadata.SpotlightFalloffMode
		dispatches []recording.Dispatch
	}{
		{
			name:    "single channel",
			falloff: metadata.SPOTLIGHT_FALLOFF_NONE,
			dispatches: []recording.Dispatch{
				{X: 4, Y: 64, Z: 1, Shader: "ComputeLightLUT_CS[LIGHTMODE=OMNI,ATTENUATIONMODE=INV_POLYNOMIAL,COMPUTEPASS=CALCULATE]",
					Resources: []string{"", "", "", "", "PhaseLUT", ""}, UAVs: []string{"LightLUT_P[0]"}},
				{X: 1, Y: 128, Z: 1, Shader: "ComputeLightLUT_CS[LIGHTMODE=OMNI,ATTENUATIONMODE=INV_POLYNOMIAL,COMPUTEPASS=SUM]",
					Resources: []string{"", "", "", "", "PhaseLUT", "LightLUT_P[0]"}, UAVs: []string{"LightLUT_P[1]"}},
			},
		},
		{
			name:    "fixed falloff",
			falloff: metadata.SPOTLIGHT_FALLOFF_FIXED,
			dispatches: []recording.Dispatch{
				{X: 4, Y: 64, Z: 1, Shader: "ComputeLightLUT_CS[LIGHTMODE=SPOTLIGHT,ATTENUATIONMODE=INV_POLYNOMIAL,COMPUTEPASS=CALCULATE]",
					Resources: []string{"", "", "", "", "PhaseLUT", "", "", ""},
					UAVs:      []string{"LightLUT_P[0]", "LightLUT_S1[0]", "LightLUT_S2[0]"}},
				{X: 1, Y: 128, Z: 3, Shader: "ComputeLightLUT_CS[LIGHTMODE=SPOTLIGHT,ATTENUATIONMODE=INV_POLYNOMIAL,COMPUTEPASS=SUM]",
					Resources: []string{"", "", "", "", "PhaseLUT", "LightLUT_P[0]", "LightLUT_S1[0]", "LightLUT_S2[0]"},
					UAVs:      []string{"LightLUT_P[1]", "LightLUT_S1[1]", "LightLUT_S2[1]"}},
			},
		},
		{
			name:    "custom falloff",
			falloff: metadata.SPOTLIGHT_FALLOFF_CUSTOM,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			openLibrary(t)
			ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
			in := newFrameInputs()

			renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, spotlight(tc.falloff))

			got := dev.Dispatches()
			require.Len(t, got, len(tc.dispatches))
			for i, want := range tc.dispatches {
				assert.Equal(t, "Volumetric::RenderVolume/Spotlight/Generate Light LUT", got[i].Event)
				assert.Equal(t, want.X, got[i].X)
				assert.Equal(t, want.Y, got[i].Y)
				assert.Equal(t, want.Z, got[i].Z)
				assert.Equal(t, want.Shader, got[i].Shader)
				assert.Equal(t, want.Resources, got[i].Resources)
				assert.Equal(t, want.UAVs, got[i].UAVs)
			}

			draws := dev.Draws()
			require.Len(t, draws, 6)
			grid, capDraw := draws[2], draws[3]
			assert.Equal(t, "RenderVolume_HS[MAXTESSFACTOR=HIGH,SHADOWMAPTYPE=ATLAS,CASCADECOUNT=1,VOLUMETYPE=FRUSTUM]", grid.Shaders.HS)
			assert.Contains(t, grid.Shaders.PS, "LIGHTMODE=SPOTLIGHT")
			assert.Contains(t, grid.Shaders.PS, "FALLOFFMODE="+metadata.FalloffMode(tc.falloff).String())
			assert.Equal(t, []string{"", "ShadowMap", "", "", "PhaseLUT", "LightLUT_P[1]", "LightLUT_S1[1]", "LightLUT_S2[1]"}, grid.PixelResources)
			assert.Equal(t, metadata.RASTER_CULL_FRONT, capDraw.Raster)
			assert.Equal(t, uint32(4*3*(16+1)+6), capDraw.VertexCount)
			assert.Equal(t, "RenderVolume_VS[MESHMODE=FRUSTUM_CAP]", capDraw.Shaders.VS)
			assert.Contains(t, draws[4].Shaders.PS, "PASSMODE=FINAL")
		})
	}
}

func TestOmniFrame(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, omni())

	require.Len(t, dev.Dispatches(), 2)
	draws := dev.Draws()
	require.Len(t, draws, 5)
	volume := draws[2]
	assert.Equal(t, metadata.TOPOLOGY_PATCH_LIST_4, volume.Topology)
	assert.Equal(t, uint32(6*4*16*16), volume.VertexCount)
	assert.Equal(t, "RenderVolume_HS[MAXTESSFACTOR=HIGH,SHADOWMAPTYPE=ARRAY,CASCADECOUNT=1,VOLUMETYPE=PARABOLOID]", volume.Shaders.HS)
	assert.Equal(t, "RenderVolume_PS[SAMPLEMODE=SINGLE,LIGHTMODE=OMNI,PASSMODE=GEOMETRY,ATTENUATIONMODE=POLYNOMIAL,FALLOFFMODE=NONE]", volume.Shaders.PS)
	assert.Equal(t, []string{"", "ShadowMap", "", "", "", "LightLUT_P[1]"}, volume.PixelResources)
	assert.Equal(t, []string{"", "ShadowMap", "Depth", "", "", "LightLUT_P[1]"}, draws[3].PixelResources)
}

func TestDirectionalShadowMapLayouts(t *testing.T) {
	element := metadata.ShadowMapElement{Width: 1024, Height: 1024}
	cases := []struct {
		name     string
		layout   metadata.ShadowMapLayout
		elements int
		hs       string
	}{
		{"simple without elements", metadata.SHADOWMAP_LAYOUT_SIMPLE, 0, "SHADOWMAPTYPE=ATLAS,CASCADECOUNT=1"},
		{"atlas with three cascades", metadata.SHADOWMAP_LAYOUT_CASCADE_ATLAS, 3, "SHADOWMAPTYPE=ATLAS,CASCADECOUNT=3"},
		{"array with four cascades", metadata.SHADOWMAP_LAYOUT_CASCADE_ARRAY, 4, "SHADOWMAPTYPE=ARRAY,CASCADECOUNT=4"},
		{"atlas without elements", metadata.SHADOWMAP_LAYOUT_CASCADE_ATLAS, 0, ""},
		{"paraboloid", metadata.SHADOWMAP_LAYOUT_PARABOLOID, 1, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			openLibrary(t)
			ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
			in := newFrameInputs()
			in.shadow.Layout = tc.layout
			in.shadow.Elements = make([]metadata.ShadowMapElement, tc.elements)
			for i := range in.shadow.Elements {
				in.shadow.Elements[i] = element
			}

			require.NoError(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE))
			err := ctx.RenderVolume(nil, in.shadowMap, &in.shadow, directional(), &in.volume)
			if tc.hs == "" {
				assert.ErrorIs(t, err, core.ErrInvalidParameter)
				// a rejected volume leaves the frame usable
				assert.Equal(t, CONTEXT_STATE_ACCUMULATING, ctx.State())
				assert.NoError(t, ctx.EndAccumulation(nil))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, dev.Draws()[2].Shaders.HS, tc.hs)
		})
	}
}

func TestWireframeStopsAfterBase(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_WIREFRAME|metadata.DEBUG_FLAG_NO_BLENDING, directional())

	draws := dev.Draws()
	require.Len(t, draws, 5)
	for _, d := range draws[2:4] {
		assert.Equal(t, "Debug_PS", d.Shaders.PS)
		assert.Equal(t, metadata.RASTER_WIREFRAME, d.Raster)
		assert.Equal(t, metadata.BLEND_NO_BLENDING, d.Blend)
	}
	assert.Equal(t, metadata.BLEND_DEBUG, draws[4].Blend)
}

func TestFogModes(t *testing.T) {
	cases := []struct {
		doFog, ignoreSky bool
		quality          metadata.UpsampleQuality
		want             string
	}{
		{false, true, metadata.UPSAMPLE_BILATERAL, "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=BILATERAL,FOGMODE=NONE]"},
		{true, true, metadata.UPSAMPLE_BILINEAR, "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=BILINEAR,FOGMODE=NOSKY]"},
		{true, false, metadata.UpsampleQuality(9), "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=FULL]"},
	}
	for _, tc := range cases {
		pp := metadata.PostprocessDesc{DoFog: tc.doFog, IgnoreSkyFog: tc.ignoreSky, UpsampleQuality: tc.quality}
		ps := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_APPLY_PS)
		ps.UpsampleMode = upsampleMode(pp.UpsampleQuality)
		ps.FogMode = fogMode(&pp)
		assert.Equal(t, tc.want, ps.Key())
	}
}

func TestCallOrder(t *testing.T) {
	openLibrary(t)
	ctx, _ := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	assert.Equal(t, CONTEXT_STATE_UNINITIALIZED, ctx.State())
	assert.ErrorIs(t, ctx.RenderVolume(nil, in.shadowMap, &in.shadow, directional(), &in.volume), core.ErrInvalidParameter)
	assert.ErrorIs(t, ctx.EndAccumulation(nil), core.ErrInvalidParameter)
	assert.ErrorIs(t, ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post), core.ErrInvalidParameter)

	require.NoError(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE))
	assert.ErrorIs(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE), core.ErrInvalidParameter)
	assert.ErrorIs(t, ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post), core.ErrInvalidParameter)

	bad := metadata.LightDesc{Type: metadata.LIGHT_TYPE_OMNI}
	assert.ErrorIs(t, ctx.RenderVolume(nil, in.shadowMap, &in.shadow, &bad, &in.volume), core.ErrInvalidParameter)
	assert.ErrorIs(t, ctx.RenderVolume(nil, nil, &in.shadow, directional(), &in.volume), core.ErrInvalidParameter)

	require.NoError(t, ctx.EndAccumulation(nil))
	assert.Equal(t, CONTEXT_STATE_ACCUMULATED, ctx.State())
	require.NoError(t, ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post))
	assert.Equal(t, CONTEXT_STATE_READY, ctx.State())
}

func TestConcurrentUseRejected(t *testing.T) {
	openLibrary(t)
	ctx, _ := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	ctx.guard.Lock()
	err := ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE)
	ctx.guard.Unlock()
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.NoError(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE))
}

func TestDeviceFailureMarksContextFailed(t *testing.T) {
	openLibrary(t)
	opts := recording.DefaultOptions()
	opts.FailSubmit = true
	desc := fullHD(metadata.FILTER_NONE)
	ctx, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: opts}, &desc)
	require.NoError(t, err)
	in := newFrameInputs()

	err = ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE)
	assert.ErrorIs(t, err, core.ErrAPIError)
	assert.Equal(t, core.STATUS_API_ERROR, core.StatusOf(err))
	assert.Equal(t, CONTEXT_STATE_FAILED, ctx.State())

	err = ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.NoError(t, ReleaseContext(ctx))
}

// compositeFailure fails the composite hook once with err.
type compositeFailure struct {
	Backend
	err error
}

func (f *compositeFailure) ApplyLightingComposite(rc metadata.RenderCtx, in *ApplyInput) error {
	if err := f.err; err != nil {
		f.err = nil
		return err
	}
	return f.Backend.ApplyLightingComposite(rc, in)
}

func TestHookFailureIsNotRetryable(t *testing.T) {
	openLibrary(t)
	ctx, dev := newRecordedContext(t, fullHD(metadata.FILTER_TEMPORAL))
	ctx.backend = &compositeFailure{Backend: ctx.backend, err: fmt.Errorf("bad target: %w", core.ErrInvalidParameter)}
	in := newFrameInputs()

	require.NoError(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE))
	require.NoError(t, ctx.EndAccumulation(nil))
	err := ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.Equal(t, CONTEXT_STATE_FAILED, ctx.State())

	// the history was already primed, so the frame cannot be completed later
	assert.ErrorIs(t, ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post), core.ErrInvalidParameter)
	assert.ErrorIs(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE), core.ErrInvalidParameter)
	require.Len(t, dev.Uploads("PerApplyCB"), 1)
	assert.Zero(t, ctx.Stats().Frames)
}

func TestCompositeWithoutDualSourceBlend(t *testing.T) {
	openLibrary(t)
	opts := recording.DefaultOptions()
	opts.Capabilities.DualSourceBlend = false
	dev := recording.New(opts)
	desc := fullHD(metadata.FILTER_NONE)
	ctx, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: dev}, &desc)
	require.NoError(t, err)
	in := newFrameInputs()
	in.post.DoFog = true
	in.post.BlendFactor = 0.5

	composite := func() recording.Draw {
		draws := dev.Draws()
		return draws[len(draws)-1]
	}

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE, directional())
	draw := composite()
	assert.Equal(t, []string{"SceneTarget"}, draw.Targets)
	assert.Equal(t, metadata.BLEND_ADDITIVE, draw.Blend)
	assert.Equal(t, math.NewVec4(0.5, 0.5, 0.5, 0.5), draw.BlendFactor)
	assert.Equal(t, "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=NONE]", draw.Shaders.PS)

	renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NO_BLENDING, directional())
	assert.Equal(t, metadata.BLEND_NO_BLENDING, composite().Blend)

	// with dual-source blending the fog term modulates the scene
	ctx2, dev2 := newRecordedContext(t, desc)
	renderFrame(t, ctx2, in, metadata.DEBUG_FLAG_NONE, directional())
	draws := dev2.Draws()
	last := draws[len(draws)-1]
	assert.Equal(t, metadata.BLEND_ADDITIVE_MODULATE, last.Blend)
	assert.Equal(t, "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=FULL]", last.Shaders.PS)
}

func TestAllocatorFailure(t *testing.T) {
	openLibrary(t)
	ctx, _ := newRecordedContext(t, fullHD(metadata.FILTER_NONE))
	in := newFrameInputs()

	core.SetHandlers(func(uintptr, core.AllocTag) []byte { return nil }, nil)
	defer core.ResetHandlers()

	err := ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, metadata.DEBUG_FLAG_NONE)
	assert.ErrorIs(t, err, core.ErrResourceFailure)
}

func TestJitterAndParityCycle(t *testing.T) {
	openLibrary(t)
	ctx, _ := newRecordedContext(t, fullHD(metadata.FILTER_TEMPORAL))
	in := newFrameInputs()

	for frame := 0; frame < int(metadata.MAX_JITTER_STEPS); frame++ {
		assert.Equal(t, uint32(frame), ctx.jitterIndex)
		assert.Equal(t, int32(frame%2), ctx.parity.next)
		renderFrame(t, ctx, in, metadata.DEBUG_FLAG_NONE)
		assert.Equal(t, int32(frame%2), ctx.parity.last)
	}
	assert.Equal(t, uint32(0), ctx.jitterIndex)
	assert.Equal(t, uint64(metadata.MAX_JITTER_STEPS), ctx.Stats().Frames)
	assert.Zero(t, ctx.Stats().Volumes)
}

func TestFrameParity(t *testing.T) {
	p := newFrameParity()
	assert.False(t, p.primed())
	p.prime()
	assert.Equal(t, frameParity{last: 1, next: 0}, p)
	p.advance()
	assert.Equal(t, frameParity{last: 0, next: 1}, p)
	p.advance()
	assert.Equal(t, frameParity{last: 1, next: 0}, p)
	assert.True(t, p.primed())
}
