package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
)

func recordingFactory(native any) (Device, error) {
	d, err := recording.Open(native)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func openLibrary(t *testing.T) {
	t.Helper()
	RegisterDevice(PLATFORM_RECORDING, recordingFactory)
	require.NoError(t, OpenLibrary(nil, nil, metadata.CurrentVersion()))
	t.Cleanup(func() {
		_ = CloseLibrary()
	})
}

func fullHD(filter metadata.FilterMode) metadata.ContextDesc {
	return metadata.ContextDesc{
		Framebuffer:        metadata.FramebufferDesc{Width: 1920, Height: 1080, Samples: 1},
		DownsampleMode:     metadata.DOWNSAMPLE_FULL,
		InternalSampleMode: metadata.MULTISAMPLE_SINGLE,
		FilterMode:         filter,
	}
}

func newRecordedContext(t *testing.T, desc metadata.ContextDesc) (*Context, *recording.Device) {
	t.Helper()
	dev := recording.New(recording.DefaultOptions())
	ctx, err := CreateContext(&metadata.PlatformDesc{Platform: PLATFORM_RECORDING, Device: dev}, &desc)
	require.NoError(t, err)
	return ctx, dev
}

type frameInputs struct {
	sceneDepth  *metadata.Texture
	sceneTarget *metadata.Texture
	shadowMap   *metadata.Texture
	viewer      metadata.ViewerDesc
	medium      metadata.MediumDesc
	shadow      metadata.ShadowMapDesc
	volume      metadata.VolumeDesc
	post        metadata.PostprocessDesc
}

func newFrameInputs() *frameInputs {
	proj := math.NewMat4PerspectiveLH(math.DegToRad(60), 1920.0/1080.0, 0.5, 100)
	view := math.NewMat4LookAtLH(math.NewVec3(0, 2, -10), math.NewVec3Zero(), math.NewVec3Up())
	viewProj := view.Mul(proj)
	return &frameInputs{
		sceneDepth:  metadata.NewExternalTexture("SceneDepth", nil),
		sceneTarget: metadata.NewExternalTexture("SceneTarget", nil),
		shadowMap:   metadata.NewExternalTexture("ShadowMap", nil),
		viewer: metadata.ViewerDesc{
			Proj:           proj,
			ViewProj:       viewProj,
			EyePosition:    math.NewVec3(0, 2, -10),
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		medium: metadata.MediumDesc{
			Absorption: math.NewVec3(0.0001, 0.0001, 0.0001),
			PhaseTerms: []metadata.PhaseTerm{
				{Func: metadata.PHASE_FUNCTION_RAYLEIGH, Density: math.NewVec3(0.0006, 0.0014, 0.0033)},
				{Func: metadata.PHASE_FUNCTION_HENYEYGREENSTEIN, Density: math.NewVec3(0.001, 0.001, 0.001), Eccentricity: 0.85},
			},
		},
		shadow: metadata.ShadowMapDesc{
			Layout: metadata.SHADOWMAP_LAYOUT_SIMPLE,
			Width:  2048,
			Height: 2048,
			Elements: []metadata.ShadowMapElement{
				{Width: 2048, Height: 2048, ViewProj: math.NewMat4Identity()},
			},
		},
		volume: metadata.VolumeDesc{
			TargetRayResolution: 12,
			MaxMeshResolution:   1024,
			DepthBias:           0,
			TessQuality:         metadata.TESSELLATION_QUALITY_HIGH,
		},
		post: metadata.PostprocessDesc{
			UpsampleQuality:    metadata.UPSAMPLE_POINT,
			BlendFactor:        1,
			TemporalFactor:     0.95,
			FilterThreshold:    0.2,
			UnjitteredViewProj: viewProj,
			FogLight:           math.NewVec3One(),
			MultiScattering:    0.000002,
		},
	}
}

func directional() *metadata.LightDesc {
	l := metadata.NewDirectionalLight(math.NewVec3(10, 10, 10), math.NewMat4Identity(),
		metadata.DirectionalLight{Direction: math.NewVec3(0, -1, 0)})
	return &l
}

func spotlight(falloff metadata.SpotlightFalloffMode) *metadata.LightDesc {
	l := metadata.NewSpotlight(math.NewVec3(50, 50, 50), math.NewMat4Identity(), metadata.SpotlightLight{
		Direction:          math.NewVec3(0, -1, 0),
		Position:           math.NewVec3(0, 10, 0),
		ZNear:              0.5,
		ZFar:               50,
		FalloffMode:        falloff,
		FalloffAngle:       math.K_PI / 4,
		FalloffPower:       16,
		AttenuationMode:    metadata.ATTENUATION_INV_POLYNOMIAL,
		AttenuationFactors: [4]float32{1, 0.04, 0.0004, 0},
	})
	return &l
}

func omni() *metadata.LightDesc {
	l := metadata.NewOmniLight(math.NewVec3(50, 50, 50), math.NewMat4Identity(), metadata.OmniLight{
		Position:           math.NewVec3(0, 5, 0),
		ZNear:              0.5,
		ZFar:               50,
		AttenuationMode:    metadata.ATTENUATION_POLYNOMIAL,
		AttenuationFactors: [4]float32{1, 0.04, 0.0004, 0},
	})
	return &l
}

// renderFrame drives one full Begin, RenderVolume, End, Apply cycle.
func renderFrame(t *testing.T, ctx *Context, in *frameInputs, flags metadata.DebugFlags, lights ...*metadata.LightDesc) {
	t.Helper()
	require.NoError(t, ctx.BeginAccumulation(nil, in.sceneDepth, &in.viewer, &in.medium, flags))
	for _, l := range lights {
		shadow := in.shadow
		require.NoError(t, ctx.RenderVolume(nil, in.shadowMap, &shadow, l, &in.volume))
	}
	require.NoError(t, ctx.EndAccumulation(nil))
	require.NoError(t, ctx.ApplyLighting(nil, in.sceneTarget, in.sceneDepth, &in.post))
}
