package renderer

import (
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const (
	lutCalculateGroupsX = metadata.LIGHT_LUT_DEPTH_RESOLUTION / 32
	lutCalculateGroupsY = metadata.LIGHT_LUT_WDOTV_RESOLUTION / 8
	lutSumGroupsY       = metadata.LIGHT_LUT_WDOTV_RESOLUTION / 4
)

/**
 * @brief A light LUT generation request. Channels is 1 for the radial
 * integral only (omni lights, spotlights without falloff) and 3 when the
 * spotlight falloff terms S1 and S2 are integrated too.
 */
type lutRequest struct {
	lightMode       metadata.LightMode
	attenuationMode metadata.AttenuationMode
	channels        int
	srvWindow       int
}

func singleChannelLUT(attenuation metadata.AttenuationMode) lutRequest {
	return lutRequest{
		lightMode:       metadata.LIGHTMODE_OMNI,
		attenuationMode: attenuation,
		channels:        1,
		srvWindow:       6,
	}
}

func spotlightLUT(attenuation metadata.AttenuationMode) lutRequest {
	return lutRequest{
		lightMode:       metadata.LIGHTMODE_SPOTLIGHT,
		attenuationMode: attenuation,
		channels:        3,
		srvWindow:       8,
	}
}

/**
 * @brief Fills the light LUT in two dispatches. CALCULATE writes the
 * per-cell integrand into set [0], SUM reads [0] and writes the running sum
 * along depth into set [1], which the volume shaders sample. The sum runs
 * one depth slice per channel, so single-channel tables dispatch a depth
 * of 1 while still exposing the same SRV window as CALCULATE.
 */
func (b *passBackend) generateLightLUT(rc metadata.RenderCtx, req lutRequest) error {
	defer b.event(rc, "Generate Light LUT")()

	cs := metadata.NewShaderPermutation(metadata.SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS)
	cs.LightMode = req.lightMode
	cs.AttenuationMode = req.attenuationMode

	srvs := make([]*metadata.Texture, req.srvWindow)
	uavs := make([]*metadata.Texture, req.channels)

	for ch := 0; ch < req.channels; ch++ {
		uavs[ch] = b.res.lightLUT[ch][0]
	}
	b.device.BindUnorderedAccess(rc, uavs)
	srvs[4] = b.res.phaseLUT
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_COMPUTE, srvs)
	cs.ComputePass = metadata.COMPUTEPASS_CALCULATE
	if err := b.dispatch(rc, cs, lutCalculateGroupsX, lutCalculateGroupsY, 1); err != nil {
		return err
	}

	for ch := 0; ch < req.channels; ch++ {
		uavs[ch] = b.res.lightLUT[ch][1]
		srvs[5+ch] = b.res.lightLUT[ch][0]
	}
	b.device.BindUnorderedAccess(rc, uavs)
	b.device.BindShaderResources(rc, metadata.SHADER_STAGE_COMPUTE, srvs)
	cs.ComputePass = metadata.COMPUTEPASS_SUM
	if err := b.dispatch(rc, cs, 1, lutSumGroupsY, uint32(req.channels)); err != nil {
		return err
	}

	b.device.BindUnorderedAccess(rc, nil)
	return nil
}
