package renderer

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief Light LUT channels. P is the primary integral, S1/S2 shape the spotlight falloff. */
type lutChannel int

const (
	LUT_P lutChannel = iota
	LUT_S1
	LUT_S2
	LUT_CHANNEL_COUNT
)

/**
 * @brief Everything a context allocates on its device. Optional targets are
 * nil when the configuration does not need them.
 */
type contextResources struct {
	device Device

	constantBuffers [metadata.CB_SLOT_COUNT]*metadata.Buffer

	depth        *metadata.Texture
	phaseLUT     *metadata.Texture
	lightLUT     [LUT_CHANNEL_COUNT][2]*metadata.Texture
	accumulation *metadata.Texture

	resolvedAccumulation *metadata.Texture
	resolvedDepth        *metadata.Texture

	filteredAccumulation [2]*metadata.Texture
	filteredDepth        [2]*metadata.Texture

	all []*metadata.Texture
}

var cbNames = [metadata.CB_SLOT_COUNT]string{"PerContextCB", "PerFrameCB", "PerVolumeCB", "PerApplyCB"}

func (r *contextResources) texture(desc metadata.TextureDesc) (*metadata.Texture, error) {
	t, err := r.device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("creating %s (%dx%d %s): %w", desc.Name, desc.Width, desc.Height, desc.Format, err)
	}
	r.all = append(r.all, t)
	return t, nil
}

/**
 * @brief Allocates the context's buffers and targets. On failure everything
 * created so far is released and the error wraps core.ErrResourceFailure.
 */
func createContextResources(device Device, c *Context) (res *contextResources, err error) {
	r := &contextResources{device: device}
	defer func() {
		if err != nil {
			r.release()
			res = nil
			if core.StatusOf(err) == core.STATUS_UNKNOWN {
				err = fmt.Errorf("%w: %v", core.ErrResourceFailure, err)
			}
		}
	}()

	for slot := metadata.CB_SLOT_CONTEXT; slot < metadata.CB_SLOT_COUNT; slot++ {
		b, err := device.CreateBuffer(metadata.BufferDesc{Name: cbNames[slot], Size: slot.Size()})
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", cbNames[slot], err)
		}
		r.constantBuffers[slot] = b
	}

	bufferWidth, bufferHeight := c.internalBufferWidth(), c.internalBufferHeight()
	samples := c.internalSampleCount()
	srvRT := metadata.TEXTURE_USAGE_SHADER_RESOURCE | metadata.TEXTURE_USAGE_RENDER_TARGET
	srvUAV := metadata.TEXTURE_USAGE_SHADER_RESOURCE | metadata.TEXTURE_USAGE_UNORDERED_ACCESS

	if r.depth, err = r.texture(metadata.TextureDesc{
		Name: "Depth", Width: bufferWidth, Height: bufferHeight, Samples: samples,
		Format: metadata.TEXTURE_FORMAT_D24S8,
		Usage:  metadata.TEXTURE_USAGE_SHADER_RESOURCE | metadata.TEXTURE_USAGE_DEPTH_STENCIL,
	}); err != nil {
		return nil, err
	}

	if r.phaseLUT, err = r.texture(metadata.TextureDesc{
		Name: "PhaseLUT", Width: 1, Height: metadata.LIGHT_LUT_WDOTV_RESOLUTION, Samples: 1,
		Format: metadata.TEXTURE_FORMAT_RGBA16F, Usage: srvRT,
	}); err != nil {
		return nil, err
	}

	lutNames := [LUT_CHANNEL_COUNT]string{"LightLUT_P", "LightLUT_S1", "LightLUT_S2"}
	for ch := LUT_P; ch < LUT_CHANNEL_COUNT; ch++ {
		for i := 0; i < 2; i++ {
			if r.lightLUT[ch][i], err = r.texture(metadata.TextureDesc{
				Name:  fmt.Sprintf("%s[%d]", lutNames[ch], i),
				Width: metadata.LIGHT_LUT_DEPTH_RESOLUTION, Height: metadata.LIGHT_LUT_WDOTV_RESOLUTION, Samples: 1,
				Format: metadata.TEXTURE_FORMAT_RGBA16F, Usage: srvUAV,
			}); err != nil {
				return nil, err
			}
		}
	}

	if r.accumulation, err = r.texture(metadata.TextureDesc{
		Name: "Accumulation", Width: bufferWidth, Height: bufferHeight, Samples: samples,
		Format: metadata.TEXTURE_FORMAT_RGBA16F, Usage: srvRT,
	}); err != nil {
		return nil, err
	}

	temporal := c.desc.FilterMode == metadata.FILTER_TEMPORAL
	if c.isInternalMSAA() || temporal {
		if r.resolvedAccumulation, err = r.texture(metadata.TextureDesc{
			Name: "Resolved_Accumulation", Width: bufferWidth, Height: bufferHeight, Samples: 1,
			Format: metadata.TEXTURE_FORMAT_RGBA16F, Usage: srvRT,
		}); err != nil {
			return nil, err
		}
		if r.resolvedDepth, err = r.texture(metadata.TextureDesc{
			Name: "Resolved_Depth", Width: bufferWidth, Height: bufferHeight, Samples: 1,
			Format: metadata.TEXTURE_FORMAT_RG16F, Usage: srvRT,
		}); err != nil {
			return nil, err
		}
	}

	if temporal {
		for i := 0; i < 2; i++ {
			if r.filteredAccumulation[i], err = r.texture(metadata.TextureDesc{
				Name: fmt.Sprintf("Filtered_Accumulation[%d]", i), Width: bufferWidth, Height: bufferHeight, Samples: 1,
				Format: metadata.TEXTURE_FORMAT_RGBA16F, Usage: srvRT,
			}); err != nil {
				return nil, err
			}
			if r.filteredDepth[i], err = r.texture(metadata.TextureDesc{
				Name: fmt.Sprintf("Filtered_Depth[%d]", i), Width: bufferWidth, Height: bufferHeight, Samples: 1,
				Format: metadata.TEXTURE_FORMAT_RG16F, Usage: srvRT,
			}); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (r *contextResources) constantBufferSet(slots ...metadata.ConstantBufferSlot) []*metadata.Buffer {
	out := make([]*metadata.Buffer, metadata.CB_SLOT_COUNT)
	for _, s := range slots {
		out[s] = r.constantBuffers[s]
	}
	return out
}

func (r *contextResources) release() {
	for i := len(r.all) - 1; i >= 0; i-- {
		r.device.DestroyTexture(r.all[i])
	}
	r.all = nil
	for i, b := range r.constantBuffers {
		if b != nil {
			r.device.DestroyBuffer(b)
			r.constantBuffers[i] = nil
		}
	}
}
