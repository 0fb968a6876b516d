package renderer

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func TestScatterPower(t *testing.T) {
	p := ScatterPower(math.NewVec3(0, 1, 100))
	assert.Equal(t, float32(0), p.X)
	assert.InDelta(t, 1-math32.Exp(-1), p.Y, 1e-6)
	assert.InDelta(t, 1, p.Z, 1e-6)
}

func TestGridSectionSize(t *testing.T) {
	assert.InDelta(t, 0.125, GridSectionSize(math.NewMat4Identity(), 16), 1e-6)
	assert.InDelta(t, 2.0, GridSectionSize(math.NewMat4Identity(), 1), 1e-6)
	assert.Zero(t, GridSectionSize(math.NewMat4Identity(), 0))
}

func TestSetupPerFrame(t *testing.T) {
	in := newFrameInputs()
	c := newContext(fullHD(metadata.FILTER_NONE), PLATFORM_RECORDING, nil)
	c.viewer = in.viewer

	cb := c.setupPerFrame(&in.viewer, &in.medium)
	assert.InDelta(t, 0.5, cb.ZNear, 1e-4)
	assert.InDelta(t, 100, cb.ZFar, 1e-1)
	assert.Equal(t, uint32(2), cb.NumPhaseTerms)
	assert.Equal(t, uint32(metadata.PHASE_FUNCTION_HENYEYGREENSTEIN), cb.PhaseFunc[1])
	assert.Equal(t, float32(0.85), cb.PhaseParams[1].W)
	assert.Equal(t, math.NewVec2(1920, 1080), cb.ViewportSize)
	assert.Equal(t, math.Vec2{}, cb.JitterOffset)

	density := float32(0.0006 + 0.001 + metadata.SCATTER_EPSILON)
	assert.InDelta(t, 1-math32.Exp(-density), cb.ScatterPower.X, 1e-7)
	assert.InDelta(t, density+0.0001, cb.SigmaExtinction.X, 1e-7)
}

func TestSetupPerContextDownsample(t *testing.T) {
	desc := fullHD(metadata.FILTER_NONE)
	desc.DownsampleMode = metadata.DOWNSAMPLE_QUARTER
	desc.InternalSampleMode = metadata.MULTISAMPLE_MSAA2
	c := newContext(desc, PLATFORM_RECORDING, nil)

	cb := c.setupPerContext()
	assert.Equal(t, math.NewVec2(1920, 1080), cb.OutputSize)
	assert.Equal(t, math.NewVec2(480, 270), cb.BufferSize)
	assert.Equal(t, float32(4), cb.ResMultiplier)
	assert.Equal(t, uint32(2), cb.SampleCount)
	assert.InDelta(t, 1.0/480.0, cb.BufferSizeInv.X, 1e-9)
}

func TestSetupPerVolumeSpotlight(t *testing.T) {
	in := newFrameInputs()
	in.shadow.Elements[0] = metadata.ShadowMapElement{OffsetX: 1024, Width: 1024, Height: 2048, ViewProj: math.NewMat4Identity(), ArrayIndex: 3}
	c := newContext(fullHD(metadata.FILTER_NONE), PLATFORM_RECORDING, nil)

	cb := c.setupPerVolume(&in.shadow, spotlight(metadata.SPOTLIGHT_FALLOFF_FIXED), &in.volume)
	assert.InDelta(t, math32.Cos(math.K_PI/4), cb.LightFalloffAngle, 1e-6)
	assert.Equal(t, float32(16), cb.LightFalloffPower)
	assert.Equal(t, math.NewVec4(1, 0.04, 0.0004, 0), cb.AttenuationFactors)
	assert.Equal(t, uint32(16), cb.MeshResolution)
	assert.Equal(t, float32(12), cb.TargetRaySize)
	assert.Equal(t, math.NewVec4(0.5, 0, 0.5, 1), cb.ElementOffsetAndScale[0])
	assert.Equal(t, uint32(3), cb.ElementIndex[0])
	assert.Equal(t, math.NewVec4(2048, 2048, 0, 0), cb.ShadowMapDim)
}

func TestSpotlightFalloffAngleIsRadians(t *testing.T) {
	in := newFrameInputs()
	c := newContext(fullHD(metadata.FILTER_NONE), PLATFORM_RECORDING, nil)

	light := spotlight(metadata.SPOTLIGHT_FALLOFF_FIXED)
	light.Spotlight.FalloffAngle = math.K_PI / 3
	assert.InDelta(t, 0.5, c.setupPerVolume(&in.shadow, light, &in.volume).LightFalloffAngle, 1e-6)

	light.Spotlight.FalloffAngle = 0
	assert.InDelta(t, 1, c.setupPerVolume(&in.shadow, light, &in.volume).LightFalloffAngle, 1e-6)
}

func TestSetupPerApply(t *testing.T) {
	in := newFrameInputs()

	c := newContext(fullHD(metadata.FILTER_NONE), PLATFORM_RECORDING, nil)
	cb := c.setupPerApply(&in.post)
	assert.Equal(t, math.NewMat4Identity(), cb.HistoryXform)
	assert.Zero(t, cb.HistoryFactor)
	assert.False(t, c.parity.primed())

	c = newContext(fullHD(metadata.FILTER_TEMPORAL), PLATFORM_RECORDING, nil)
	cb = c.setupPerApply(&in.post)
	assert.Zero(t, cb.HistoryFactor)
	assert.True(t, c.parity.primed())
	// unchanged camera reprojects onto itself
	assert.True(t, cb.HistoryXform.Compare(math.NewMat4Identity(), 1e-3))

	cb = c.setupPerApply(&in.post)
	assert.Equal(t, float32(0.95), cb.HistoryFactor)
	assert.Equal(t, float32(0.2), cb.FilterThreshold)
}
