package renderer

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief Binds the state shared by the geometry pass of every light type:
 * internal viewport, no culling, additive blending into the accumulation
 * target tested against the downsampled depth.
 */
func (b *passBackend) beginVolumeGeometry(rc metadata.RenderCtx) {
	b.device.SetViewport(rc, b.ctx.internalViewport())
	b.device.SetRasterState(rc, metadata.RASTER_CULL_NONE)
	b.device.SetBlendState(rc, metadata.BLEND_ADDITIVE, math.NewVec4(1, 1, 1, 1))
	b.device.SetRenderTargets(rc, []*metadata.Texture{b.res.accumulation}, b.res.depth, false)
}

func volumeHS(quality metadata.TessellationQuality, smType metadata.ShadowMapType, cascades metadata.CascadeCount, volumeType metadata.VolumeType) (hs, ds metadata.ShaderPermutation) {
	hs = metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_HS)
	hs.MaxTessFactor = quality
	hs.ShadowMapType = smType
	hs.CascadeCount = cascades
	hs.VolumeType = volumeType

	ds = metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_DS)
	ds.ShadowMapType = smType
	ds.CascadeCount = cascades
	ds.VolumeType = volumeType
	return hs, ds
}

func (b *passBackend) volumePS(light metadata.LightMode, attenuation metadata.AttenuationMode, falloff metadata.FalloffMode) metadata.ShaderPermutation {
	ps := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_RENDER_VOLUME_PS)
	ps.SampleMode = sampleMode(b.ctx.isInternalMSAA())
	ps.LightMode = light
	ps.PassMode = metadata.PASSMODE_GEOMETRY
	ps.AttenuationMode = attenuation
	ps.FalloffMode = falloff
	return ps
}

func (b *passBackend) bindVolumeResources(rc metadata.RenderCtx, srvs []*metadata.Texture) {
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_GRAPHICS, srvs)
}

/**
 * @brief Fills the pixels the geometry left stenciled: depth becomes
 * read-only so the PS can sample it at slot 2.
 */
func (b *passBackend) finishVolume(rc metadata.RenderCtx, ps metadata.ShaderPermutation, srvs []*metadata.Texture) error {
	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_FINISH_VOLUME, metadata.STENCIL_REF)
	b.device.SetRenderTargets(rc, []*metadata.Texture{b.res.accumulation}, b.res.depth, true)
	srvs[2] = b.res.depth
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_PIXEL, srvs)
	ps.PassMode = metadata.PASSMODE_FINAL
	b.setPS(ps)
	return b.drawFullscreen(rc)
}

// directionalShadowMap maps the shadow map layout onto the tessellation permutation axes.
func directionalShadowMap(desc *metadata.ShadowMapDesc) (metadata.ShadowMapType, metadata.CascadeCount, error) {
	var smType metadata.ShadowMapType
	switch desc.Layout {
	case metadata.SHADOWMAP_LAYOUT_SIMPLE, metadata.SHADOWMAP_LAYOUT_CASCADE_ATLAS:
		smType = metadata.SHADOWMAPTYPE_ATLAS
	case metadata.SHADOWMAP_LAYOUT_CASCADE_ARRAY:
		smType = metadata.SHADOWMAPTYPE_ARRAY
	default:
		return 0, 0, fmt.Errorf("directional light with %s shadow map: %w", desc.Layout, core.ErrInvalidParameter)
	}

	n := len(desc.Elements)
	switch {
	case n == 0 && desc.Layout == metadata.SHADOWMAP_LAYOUT_SIMPLE:
		return smType, metadata.CASCADECOUNT_1, nil
	case n >= 1 && n <= metadata.MAX_SHADOWMAP_ELEMENTS:
		return smType, metadata.CascadeCount(n), nil
	default:
		return 0, 0, fmt.Errorf("%s shadow map with %d elements: %w", desc.Layout, n, core.ErrInvalidParameter)
	}
}

func (b *passBackend) RenderVolumeDirectional(rc metadata.RenderCtx, in *VolumeInput) error {
	defer b.event(rc, "Directional")()

	resolution := in.Volume.CoarseResolution()

	smType, cascades, err := directionalShadowMap(in.ShadowMapDesc)
	if err != nil {
		return err
	}

	b.beginVolumeGeometry(rc)
	hs, ds := volumeHS(in.Volume.TessQuality, smType, cascades, metadata.VOLUMETYPE_FRUSTUM)
	b.setTessellation(hs, ds)
	ps := b.volumePS(metadata.LIGHTMODE_DIRECTIONAL, metadata.ATTENUATION_NONE, metadata.FALLOFFMODE_NONE)
	b.setPS(ps)

	srvs := make([]*metadata.Texture, 5)
	srvs[1] = in.ShadowMap
	srvs[4] = b.res.phaseLUT
	b.bindVolumeResources(rc, srvs)

	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_RENDER_VOLUME, metadata.STENCIL_REF)
	if err := b.drawFrustumGrid(rc, resolution); err != nil {
		return err
	}
	b.unsetTessellation()

	// the base is re-lit by the sky pass
	if err := b.drawFrustumBase(rc, resolution); err != nil {
		return err
	}

	if b.wireframe() {
		return nil
	}

	ps.PassMode = metadata.PASSMODE_SKY
	b.setPS(ps)
	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_RENDER_VOLUME_BOUNDARY, metadata.STENCIL_REF)
	if err := b.drawFullscreen(rc); err != nil {
		return err
	}

	return b.finishVolume(rc, ps, srvs)
}

func (b *passBackend) RenderVolumeSpotlight(rc metadata.RenderCtx, in *VolumeInput) error {
	defer b.event(rc, "Spotlight")()

	spot := in.Light.Spotlight
	resolution := in.Volume.CoarseResolution()

	switch spot.FalloffMode {
	case metadata.SPOTLIGHT_FALLOFF_NONE:
		if err := b.generateLightLUT(rc, singleChannelLUT(spot.AttenuationMode)); err != nil {
			return err
		}
	case metadata.SPOTLIGHT_FALLOFF_FIXED:
		if err := b.generateLightLUT(rc, spotlightLUT(spot.AttenuationMode)); err != nil {
			return err
		}
	}

	b.beginVolumeGeometry(rc)
	hs, ds := volumeHS(in.Volume.TessQuality, metadata.SHADOWMAPTYPE_ATLAS, metadata.CASCADECOUNT_1, metadata.VOLUMETYPE_FRUSTUM)
	b.setTessellation(hs, ds)
	ps := b.volumePS(metadata.LIGHTMODE_SPOTLIGHT, spot.AttenuationMode, metadata.FalloffMode(spot.FalloffMode))
	b.setPS(ps)

	srvs := make([]*metadata.Texture, 8)
	srvs[1] = in.ShadowMap
	srvs[4] = b.res.phaseLUT
	srvs[5] = b.res.lightLUT[LUT_P][1]
	srvs[6] = b.res.lightLUT[LUT_S1][1]
	srvs[7] = b.res.lightLUT[LUT_S2][1]
	b.bindVolumeResources(rc, srvs)

	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_RENDER_VOLUME, metadata.STENCIL_REF)
	if err := b.drawFrustumGrid(rc, resolution); err != nil {
		return err
	}
	b.unsetTessellation()

	b.device.SetRasterState(rc, metadata.RASTER_CULL_FRONT)
	if err := b.drawFrustumCap(rc, resolution); err != nil {
		return err
	}

	return b.finishVolume(rc, ps, srvs)
}

func (b *passBackend) RenderVolumeOmni(rc metadata.RenderCtx, in *VolumeInput) error {
	defer b.event(rc, "Omni")()

	omni := in.Light.Omni
	resolution := in.Volume.CoarseResolution()

	if err := b.generateLightLUT(rc, singleChannelLUT(omni.AttenuationMode)); err != nil {
		return err
	}

	b.beginVolumeGeometry(rc)
	hs, ds := volumeHS(in.Volume.TessQuality, metadata.SHADOWMAPTYPE_ARRAY, metadata.CASCADECOUNT_1, metadata.VOLUMETYPE_PARABOLOID)
	b.setTessellation(hs, ds)
	ps := b.volumePS(metadata.LIGHTMODE_OMNI, omni.AttenuationMode, metadata.FALLOFFMODE_NONE)
	b.setPS(ps)

	srvs := make([]*metadata.Texture, 6)
	srvs[1] = in.ShadowMap
	srvs[5] = b.res.lightLUT[LUT_P][1]
	b.bindVolumeResources(rc, srvs)

	b.device.SetDepthStencilState(rc, metadata.DEPTH_STENCIL_RENDER_VOLUME, metadata.STENCIL_REF)
	if err := b.drawOmniVolume(rc, resolution); err != nil {
		return err
	}
	b.unsetTessellation()

	return b.finishVolume(rc, ps, srvs)
}
