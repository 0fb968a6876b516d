package renderer

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func (c *Context) outputBufferWidth() uint32  { return c.desc.Framebuffer.Width }
func (c *Context) outputBufferHeight() uint32 { return c.desc.Framebuffer.Height }
func (c *Context) outputViewportWidth() uint32 {
	return c.viewer.ViewportWidth
}
func (c *Context) outputViewportHeight() uint32 {
	return c.viewer.ViewportHeight
}

func (c *Context) downsampleShift() uint32 {
	switch c.desc.DownsampleMode {
	case metadata.DOWNSAMPLE_HALF:
		return 1
	case metadata.DOWNSAMPLE_QUARTER:
		return 2
	default:
		return 0
	}
}

func (c *Context) internalScale() float32 {
	return 1.0 / float32(uint32(1)<<c.downsampleShift())
}

func (c *Context) internalBufferWidth() uint32 {
	return c.desc.Framebuffer.Width >> c.downsampleShift()
}
func (c *Context) internalBufferHeight() uint32 {
	return c.desc.Framebuffer.Height >> c.downsampleShift()
}
func (c *Context) internalViewportWidth() uint32 {
	return c.viewer.ViewportWidth >> c.downsampleShift()
}
func (c *Context) internalViewportHeight() uint32 {
	return c.viewer.ViewportHeight >> c.downsampleShift()
}

func (c *Context) internalSampleCount() uint32 {
	switch c.desc.InternalSampleMode {
	case metadata.MULTISAMPLE_MSAA2:
		return 2
	case metadata.MULTISAMPLE_MSAA4:
		return 4
	default:
		return 1
	}
}

func (c *Context) isOutputMSAA() bool   { return c.desc.Framebuffer.Samples > 1 }
func (c *Context) isInternalMSAA() bool { return c.internalSampleCount() > 1 }
func (c *Context) isTemporal() bool     { return c.desc.FilterMode == metadata.FILTER_TEMPORAL }

func (c *Context) internalViewport() metadata.Viewport {
	return metadata.NewViewport(c.internalViewportWidth(), c.internalViewportHeight())
}

// jitter returns the sub-pixel offset of the current frame, zero without temporal filtering.
func (c *Context) jitter() math.Vec2 {
	if !c.isTemporal() {
		return math.Vec2{}
	}
	return math.HaltonJitter(c.jitterIndex)
}

func (c *Context) setupPerContext() metadata.PerContextCB {
	cb := metadata.PerContextCB{
		OutputSize:    math.NewVec2(float32(c.outputBufferWidth()), float32(c.outputBufferHeight())),
		BufferSize:    math.NewVec2(float32(c.internalBufferWidth()), float32(c.internalBufferHeight())),
		ResMultiplier: 1.0 / c.internalScale(),
		SampleCount:   c.internalSampleCount(),
	}
	cb.OutputSizeInv = cb.OutputSize.Reciprocal()
	cb.BufferSizeInv = cb.BufferSize.Reciprocal()
	return cb
}

/**
 * @brief Per-frame block. Near and far come straight out of the projection
 * (z scale at (2,2), z offset at (3,2) for row vectors), the medium
 * collapses into scatter power and extinction.
 */
func (c *Context) setupPerFrame(viewer *metadata.ViewerDesc, medium *metadata.MediumDesc) metadata.PerFrameCB {
	cb := metadata.PerFrameCB{
		Proj:         viewer.Proj,
		ViewProj:     viewer.ViewProj,
		ViewProjInv:  viewer.ViewProj.Inverse(),
		EyePosition:  viewer.EyePosition,
		JitterOffset: c.jitter(),
	}
	cb.OutputViewportSize = math.NewVec2(float32(c.outputViewportWidth()), float32(c.outputViewportHeight()))
	cb.OutputViewportSizeInv = cb.OutputViewportSize.Reciprocal()
	cb.ViewportSize = math.NewVec2(float32(c.internalViewportWidth()), float32(c.internalViewportHeight()))
	cb.ViewportSizeInv = cb.ViewportSize.Reciprocal()

	zScale := cb.Proj.At(2, 2)
	zOffset := cb.Proj.At(3, 2)
	cb.ZNear = -zOffset / zScale
	cb.ZFar = zOffset / (1.0 - zScale)

	total := math.NewVec3(metadata.SCATTER_EPSILON, metadata.SCATTER_EPSILON, metadata.SCATTER_EPSILON)
	cb.NumPhaseTerms = uint32(len(medium.PhaseTerms))
	for p, term := range medium.PhaseTerms {
		cb.PhaseFunc[p] = uint32(term.Func)
		cb.PhaseParams[p] = term.Density.ToVec4(term.Eccentricity)
		total = total.Add(term.Density)
	}
	cb.ScatterPower = ScatterPower(total)
	cb.SigmaExtinction = total.Add(medium.Absorption)
	return cb
}

// ScatterPower returns 1 - exp(-d) per channel.
func ScatterPower(density math.Vec3) math.Vec3 {
	return math.NewVec3(
		1-math32.Exp(-density.X),
		1-math32.Exp(-density.Y),
		1-math32.Exp(-density.Z),
	)
}

func (c *Context) setupPerVolume(shadowMap *metadata.ShadowMapDesc, light *metadata.LightDesc, volume *metadata.VolumeDesc) metadata.PerVolumeCB {
	cb := metadata.PerVolumeCB{
		LightToWorld:   light.LightToWorld,
		LightIntensity: light.Intensity,
	}
	switch light.Type {
	case metadata.LIGHT_TYPE_DIRECTIONAL:
		cb.LightDir = light.Directional.Direction
	case metadata.LIGHT_TYPE_SPOTLIGHT:
		s := light.Spotlight
		cb.LightDir = s.Direction
		cb.LightPos = s.Position
		cb.LightZNear = s.ZNear
		cb.LightZFar = s.ZFar
		cb.LightFalloffAngle = math32.Cos(s.FalloffAngle)
		cb.LightFalloffPower = s.FalloffPower
		cb.AttenuationFactors = attenuationFactors(s.AttenuationFactors)
	case metadata.LIGHT_TYPE_OMNI:
		o := light.Omni
		cb.LightPos = o.Position
		cb.LightZNear = o.ZNear
		cb.LightZFar = o.ZFar
		cb.AttenuationFactors = attenuationFactors(o.AttenuationFactors)
	}
	cb.DepthBias = volume.DepthBias
	cb.MeshResolution = volume.CoarseResolution()
	cb.GridSectionSize = GridSectionSize(cb.LightToWorld, cb.MeshResolution)
	cb.TargetRaySize = volume.TargetRayResolution

	smWidth, smHeight := float32(shadowMap.Width), float32(shadowMap.Height)
	for i, e := range shadowMap.Elements {
		cb.ElementOffsetAndScale[i] = math.NewVec4(
			float32(e.OffsetX)/smWidth,
			float32(e.OffsetY)/smHeight,
			float32(e.Width)/smWidth,
			float32(e.Height)/smHeight,
		)
		cb.LightProj[i] = e.ViewProj
		cb.LightProjInv[i] = e.ViewProj.Inverse()
		cb.ElementIndex[i] = e.ArrayIndex
	}
	cb.ShadowMapDim = math.NewVec4(smWidth, smHeight, 0, 0)
	return cb
}

func attenuationFactors(f [4]float32) math.Vec4 {
	return math.NewVec4(f[0], f[1], f[2], f[3])
}

/**
 * @brief World-space size of one coarse grid cell: the diagonal of the
 * light's clip rectangle at z = 1, turned into a side length and divided by
 * the mesh resolution.
 */
func GridSectionSize(lightToWorld math.Mat4, meshResolution uint32) float32 {
	if meshResolution == 0 {
		return 0
	}
	vw1 := math.NewVec4(-1, -1, 1, 1).Transform(lightToWorld).PerspectiveDivide()
	vw2 := math.NewVec4(1, 1, 1, 1).Transform(lightToWorld).PerspectiveDivide()
	crossLength := vw1.Distance(vw2)
	sideLength := math32.Sqrt(0.5 * crossLength * crossLength)
	return sideLength / float32(meshResolution)
}

/**
 * @brief Per-apply block. Under temporal filtering this also rolls the
 * history matrices: the previous unjittered view-projection becomes "last",
 * the current one "next". The first temporal frame has no history, so its
 * blend factor is forced to zero.
 */
func (c *Context) setupPerApply(pp *metadata.PostprocessDesc) metadata.PerApplyCB {
	cb := metadata.PerApplyCB{
		FogLight:        pp.FogLight,
		MultiScattering: pp.MultiScattering,
	}
	if !c.isTemporal() {
		cb.HistoryXform = math.NewMat4Identity()
		return cb
	}

	if c.parity.primed() {
		cb.HistoryFactor = pp.TemporalFactor
		c.lastViewProj = c.nextViewProj
	} else {
		cb.HistoryFactor = 0
		c.lastViewProj = pp.UnjitteredViewProj
		c.parity.prime()
	}
	cb.FilterThreshold = pp.FilterThreshold
	c.nextViewProj = pp.UnjitteredViewProj
	// row-vector form of last * inverse(next)
	cb.HistoryXform = c.nextViewProj.Inverse().Mul(c.lastViewProj)
	return cb
}
