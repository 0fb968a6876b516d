package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Bindings of group 0. Programs use the same numbers on every device.
const (
	BINDING_CB_BASE      uint32 = 0
	BINDING_SAMPLER_BASE uint32 = 8
	BINDING_SRV_BASE     uint32 = 16
	BINDING_UAV_BASE     uint32 = 32

	MAX_CB_SLOTS      = 4
	MAX_SAMPLER_SLOTS = 2
	MAX_SRV_SLOTS     = 8
	MAX_UAV_SLOTS     = 4

	slotCount = MAX_CB_SLOTS + MAX_SAMPLER_SLOTS + MAX_SRV_SLOTS + MAX_UAV_SLOTS
)

// Resources one bind point reads. Unbound slots are left out of the group.
type bindingTable struct {
	buffers  [MAX_CB_SLOTS]*Buffer
	samplers [MAX_SAMPLER_SLOTS]*metadata.SamplerState
	views    [MAX_SRV_SLOTS]*Image
}

type slotKind uint8

const (
	slotEmpty slotKind = iota
	slotUniform
	slotSampler
	slotTexture
	slotStorage
)

type layoutSlot struct {
	kind         slotKind
	filtering    bool
	sampleType   wgpu.TextureSampleType
	multisampled bool
	format       wgpu.TextureFormat
}

/**
 * @brief The shape of a bind group. WebGPU layouts are typed, so the key
 * records what each bound slot holds rather than just that it is used.
 */
type layoutKey struct {
	visibility wgpu.ShaderStage
	slots      [slotCount]layoutSlot
}

func slotBinding(i int) uint32 {
	switch {
	case i < MAX_CB_SLOTS:
		return BINDING_CB_BASE + uint32(i)
	case i < MAX_CB_SLOTS+MAX_SAMPLER_SLOTS:
		return BINDING_SAMPLER_BASE + uint32(i-MAX_CB_SLOTS)
	case i < MAX_CB_SLOTS+MAX_SAMPLER_SLOTS+MAX_SRV_SLOTS:
		return BINDING_SRV_BASE + uint32(i-MAX_CB_SLOTS-MAX_SAMPLER_SLOTS)
	default:
		return BINDING_UAV_BASE + uint32(i-MAX_CB_SLOTS-MAX_SAMPLER_SLOTS-MAX_SRV_SLOTS)
	}
}

func bindingLayout(table *bindingTable, uavs []*Image, visibility wgpu.ShaderStage) layoutKey {
	key := layoutKey{visibility: visibility}
	i := 0
	for _, b := range table.buffers {
		if b != nil {
			key.slots[i] = layoutSlot{kind: slotUniform}
		}
		i++
	}
	for _, s := range table.samplers {
		if s != nil {
			key.slots[i] = layoutSlot{
				kind:      slotSampler,
				filtering: metadata.SamplerStates[*s].Filter == metadata.FILTER_KIND_LINEAR,
			}
		}
		i++
	}
	for _, img := range table.views {
		if img != nil {
			key.slots[i] = layoutSlot{
				kind:         slotTexture,
				sampleType:   img.sampleType(),
				multisampled: img.Samples > 1,
			}
		}
		i++
	}
	for j := 0; j < MAX_UAV_SLOTS; j++ {
		if j < len(uavs) && uavs[j] != nil {
			key.slots[i] = layoutSlot{kind: slotStorage, format: uavs[j].Format}
		}
		i++
	}
	return key
}

func (k layoutKey) entries() []wgpu.BindGroupLayoutEntry {
	var out []wgpu.BindGroupLayoutEntry
	for i, s := range k.slots {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    slotBinding(i),
			Visibility: k.visibility,
		}
		switch s.kind {
		case slotEmpty:
			continue
		case slotUniform:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case slotSampler:
			entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering}
			if s.filtering {
				entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
			}
		case slotTexture:
			entry.Texture = wgpu.TextureBindingLayout{
				SampleType:    s.sampleType,
				ViewDimension: wgpu.TextureViewDimension2D,
				Multisampled:  s.multisampled,
			}
		case slotStorage:
			entry.StorageTexture = wgpu.StorageTextureBindingLayout{
				Access:        wgpu.StorageTextureAccessWriteOnly,
				Format:        s.format,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		}
		out = append(out, entry)
	}
	return out
}

type bindLayout struct {
	group    *wgpu.BindGroupLayout
	pipeline *wgpu.PipelineLayout
}

func (l *bindLayout) release() {
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	if l.group != nil {
		l.group.Release()
	}
}

func newBindLayout(device *wgpu.Device, key layoutKey) (*bindLayout, error) {
	group, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "volumetric_group0",
		Entries: key.entries(),
	})
	if err != nil {
		return nil, fmt.Errorf("bind group layout: %v: %w", err, core.ErrAPIError)
	}
	pipeline, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "volumetric_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{group},
	})
	if err != nil {
		group.Release()
		return nil, fmt.Errorf("pipeline layout: %v: %w", err, core.ErrAPIError)
	}
	return &bindLayout{group: group, pipeline: pipeline}, nil
}

// bindGroupEntries lists the resources of a table in the order of its layout.
func bindGroupEntries(table *bindingTable, uavs []*Image, samplers []*wgpu.Sampler) []wgpu.BindGroupEntry {
	var out []wgpu.BindGroupEntry
	for i, b := range table.buffers {
		if b != nil {
			out = append(out, wgpu.BindGroupEntry{
				Binding: BINDING_CB_BASE + uint32(i),
				Buffer:  b.Handle,
				Size:    wgpu.WholeSize,
			})
		}
	}
	for i, s := range table.samplers {
		if s != nil {
			out = append(out, wgpu.BindGroupEntry{
				Binding: BINDING_SAMPLER_BASE + uint32(i),
				Sampler: samplers[*s],
			})
		}
	}
	for i, img := range table.views {
		if img != nil {
			out = append(out, wgpu.BindGroupEntry{
				Binding:     BINDING_SRV_BASE + uint32(i),
				TextureView: img.SampleView,
			})
		}
	}
	for i, img := range uavs {
		if img != nil {
			out = append(out, wgpu.BindGroupEntry{
				Binding:     BINDING_UAV_BASE + uint32(i),
				TextureView: img.View,
			})
		}
	}
	return out
}
