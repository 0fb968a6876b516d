package renderer

import (
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

var noTargets = []*metadata.Texture{nil, nil}

/** @brief Resolves the multisampled accumulation and depth to single-sample targets. */
func (b *passBackend) ApplyLightingResolve(rc metadata.RenderCtx, pp *metadata.PostprocessDesc) error {
	defer b.event(rc, "Resolve")()

	ps := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RESOLVE_PS)
	ps.SampleMode = sampleMode(b.ctx.isInternalMSAA())
	b.setPS(ps)
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_PIXEL, []*metadata.Texture{b.res.accumulation, b.res.depth})
	b.device.SetRenderTargets(rc, []*metadata.Texture{b.res.resolvedAccumulation, b.res.resolvedDepth}, nil, false)
	if err := b.drawFullscreen(rc); err != nil {
		return err
	}
	b.accumulatedOutput = b.res.resolvedAccumulation
	b.device.SetRenderTargets(rc, noTargets, nil, false)
	return nil
}

/**
 * @brief Blends the resolved frame with the reprojected history of the
 * previous frame and writes the result into the other history slot.
 */
func (b *passBackend) ApplyLightingTemporalFilter(rc metadata.RenderCtx, sceneDepth *metadata.Texture, pp *metadata.PostprocessDesc) error {
	defer b.event(rc, "TemporalFilter")()

	last, next := b.ctx.parity.last, b.ctx.parity.next
	b.setPS(metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_TEMPORAL_FILTER_PS))
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_PIXEL, []*metadata.Texture{
		b.res.resolvedAccumulation,
		b.res.filteredAccumulation[last],
		b.res.resolvedDepth,
		nil,
	})
	b.device.SetRenderTargets(rc, []*metadata.Texture{b.res.filteredAccumulation[next], b.res.filteredDepth[next]}, nil, false)
	if err := b.drawFullscreen(rc); err != nil {
		return err
	}
	b.accumulatedOutput = b.res.filteredAccumulation[next]
	b.device.SetRenderTargets(rc, noTargets, nil, false)
	return nil
}

func upsampleMode(q metadata.UpsampleQuality) metadata.UpsampleMode {
	switch q {
	case metadata.UPSAMPLE_BILINEAR:
		return metadata.UPSAMPLEMODE_BILINEAR
	case metadata.UPSAMPLE_BILATERAL:
		return metadata.UPSAMPLEMODE_BILATERAL
	default:
		return metadata.UPSAMPLEMODE_POINT
	}
}

func fogMode(pp *metadata.PostprocessDesc) metadata.FogMode {
	switch {
	case !pp.DoFog:
		return metadata.FOGMODE_NONE
	case pp.IgnoreSkyFog:
		return metadata.FOGMODE_NOSKY
	default:
		return metadata.FOGMODE_FULL
	}
}

/** @brief Upsamples the accumulated light onto the scene target at output resolution. */
func (b *passBackend) ApplyLightingComposite(rc metadata.RenderCtx, in *ApplyInput) error {
	defer b.event(rc, "Composite")()

	c := b.ctx
	pp := in.Postprocess
	dualSource := b.device.Capabilities().DualSourceBlend

	b.device.SetViewport(rc, metadata.NewViewport(c.outputViewportWidth(), c.outputViewportHeight()))
	switch f := pp.BlendFactor; {
	case c.debugFlags.Has(metadata.DEBUG_FLAG_NO_BLENDING) && dualSource:
		b.device.SetBlendState(rc, metadata.BLEND_DEBUG, math.NewVec4(1, 1, 1, 1))
	case c.debugFlags.Has(metadata.DEBUG_FLAG_NO_BLENDING):
		b.device.SetBlendState(rc, metadata.BLEND_NO_BLENDING, math.NewVec4(1, 1, 1, 1))
	case dualSource:
		b.device.SetBlendState(rc, metadata.BLEND_ADDITIVE_MODULATE, math.NewVec4(f, f, f, f))
	default:
		b.device.SetBlendState(rc, metadata.BLEND_ADDITIVE, math.NewVec4(f, f, f, f))
	}
	b.device.SetRenderTargets(rc, []*metadata.Texture{in.SceneTarget}, nil, false)

	ps := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_APPLY_PS)
	ps.SampleMode = sampleMode(c.isOutputMSAA())
	ps.UpsampleMode = upsampleMode(pp.UpsampleQuality)
	ps.FogMode = fogMode(pp)
	// Fog modulates the scene through the second blend source.
	if !dualSource {
		ps.FogMode = metadata.FOGMODE_NONE
	}
	b.setPS(ps)

	srvs := []*metadata.Texture{b.accumulatedOutput, in.SceneDepth, nil, nil, b.res.phaseLUT}
	if filtered := b.res.filteredDepth[c.parity.next]; filtered != nil {
		srvs[2] = filtered
	}
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_PIXEL, srvs)
	if err := b.drawFullscreen(rc); err != nil {
		return err
	}
	b.device.SetRenderTargets(rc, []*metadata.Texture{nil}, nil, false)
	return nil
}
