package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief A 2D texture with the views the device binds it through. */
type Image struct {
	Texture *wgpu.Texture
	/** @brief The view used for attachments and storage. */
	View *wgpu.TextureView
	/** @brief The view used for sampling. Depth-only for depth formats. */
	SampleView *wgpu.TextureView
	Format     wgpu.TextureFormat
	Width      uint32
	Height     uint32
	Samples    uint32

	external bool
}

/**
 * @brief Wraps a caller-owned view so it can be passed to
 * metadata.NewExternalTexture. Depth-stencil views must already be
 * depth-only when they are sampled.
 */
func WrapView(view *wgpu.TextureView, format wgpu.TextureFormat, width, height, samples uint32) *Image {
	if samples == 0 {
		samples = 1
	}
	return &Image{
		View:       view,
		SampleView: view,
		Format:     format,
		Width:      width,
		Height:     height,
		Samples:    samples,
		external:   true,
	}
}

func (img *Image) isDepth() bool {
	return isDepthFormat(img.Format)
}

func imageOf(texture *metadata.Texture) *Image {
	if texture == nil {
		return nil
	}
	img, _ := texture.InternalData.(*Image)
	return img
}

// sampleType is the binding type a shader reads the image through.
func (img *Image) sampleType() wgpu.TextureSampleType {
	switch {
	case img.isDepth():
		return wgpu.TextureSampleTypeDepth
	case img.Samples > 1:
		return wgpu.TextureSampleTypeUnfilterableFloat
	default:
		return wgpu.TextureSampleTypeFloat
	}
}

func createImage(device *wgpu.Device, desc metadata.TextureDesc) (*Image, error) {
	format, ok := textureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("texture %s: format %s: %w", desc.Name, desc.Format, core.ErrInvalidParameter)
	}
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	texture, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Name,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %v: %w", desc.Name, err, core.ErrResourceFailure)
	}
	img := &Image{
		Texture: texture,
		Format:  format,
		Width:   desc.Width,
		Height:  desc.Height,
		Samples: samples,
	}
	if img.View, err = texture.CreateView(nil); err != nil {
		img.release()
		return nil, fmt.Errorf("texture %s view: %v: %w", desc.Name, err, core.ErrResourceFailure)
	}
	img.SampleView = img.View
	if hasStencil(format) && desc.Usage.Has(metadata.TEXTURE_USAGE_SHADER_RESOURCE) {
		if img.SampleView, err = texture.CreateView(&wgpu.TextureViewDescriptor{
			Label:           desc.Name + "_depth",
			Format:          format,
			Dimension:       wgpu.TextureViewDimension2D,
			MipLevelCount:   1,
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectDepthOnly,
		}); err != nil {
			img.SampleView = nil
			img.release()
			return nil, fmt.Errorf("texture %s depth view: %v: %w", desc.Name, err, core.ErrResourceFailure)
		}
	}
	return img, nil
}

func (img *Image) release() {
	if img.external {
		return
	}
	if img.SampleView != nil && img.SampleView != img.View {
		img.SampleView.Release()
	}
	img.SampleView = nil
	if img.View != nil {
		img.View.Release()
		img.View = nil
	}
	if img.Texture != nil {
		img.Texture.Release()
		img.Texture = nil
	}
}

/** @brief A uniform buffer, filled by copies recorded on the encoder. */
type Buffer struct {
	Handle *wgpu.Buffer
	Size   uint64
}

func bufferOf(buffer *metadata.Buffer) *Buffer {
	if buffer == nil {
		return nil
	}
	b, _ := buffer.InternalData.(*Buffer)
	return b
}

func createBuffer(device *wgpu.Device, desc metadata.BufferDesc) (*Buffer, error) {
	if desc.Size == 0 || desc.Size%4 != 0 {
		return nil, fmt.Errorf("buffer %s: size %d is not a positive multiple of 4: %w", desc.Name, desc.Size, core.ErrInvalidParameter)
	}
	handle, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Name,
		Size:  desc.Size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %v: %w", desc.Name, err, core.ErrResourceFailure)
	}
	return &Buffer{Handle: handle, Size: desc.Size}, nil
}

func (b *Buffer) release() {
	if b.Handle != nil {
		b.Handle.Release()
		b.Handle = nil
	}
}
