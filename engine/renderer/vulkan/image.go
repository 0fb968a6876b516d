package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief A 2D image with its views. Device textures keep their image in
 * GENERAL layout for their whole life, so they can be sampled, written
 * as storage and used as attachments without per-use transitions.
 */
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	/** @brief The view used for attachments and storage. */
	View vk.ImageView
	/** @brief The view used for sampling. Depth-only for depth formats. */
	SampleView vk.ImageView
	Format     vk.Format
	Width      uint32
	Height     uint32
	Samples    uint32

	external bool
}

/**
 * @brief Wraps a caller-owned image view so it can be passed to
 * metadata.NewExternalTexture. The view must be in GENERAL layout
 * whenever the pipeline reads or renders into it.
 */
func WrapImage(image vk.Image, view vk.ImageView, format vk.Format, width, height, samples uint32) *VulkanImage {
	if samples == 0 {
		samples = 1
	}
	return &VulkanImage{
		Handle:     image,
		View:       view,
		SampleView: view,
		Format:     format,
		Width:      width,
		Height:     height,
		Samples:    samples,
		external:   true,
	}
}

func (img *VulkanImage) isDepth() bool {
	return isDepthFormat(img.Format)
}

func imageOf(texture *metadata.Texture) *VulkanImage {
	if texture == nil {
		return nil
	}
	img, _ := texture.InternalData.(*VulkanImage)
	return img
}

func ImageCreate(context *VulkanContext, desc metadata.TextureDesc) (*VulkanImage, error) {
	format, ok := textureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("texture %s: format %s: %w", desc.Name, desc.Format, core.ErrInvalidParameter)
	}
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	img := &VulkanImage{
		Format:  format,
		Width:   desc.Width,
		Height:  desc.Height,
		Samples: samples,
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(desc.Usage, format),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := check("vkCreateImage "+desc.Name, vk.CreateImage(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	img.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.LogicalDevice, img.Handle, &reqs)
	memory, err := context.allocateMemory(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy(context)
		return nil, err
	}
	img.Memory = memory
	if err := check("vkBindImageMemory", vk.BindImageMemory(context.LogicalDevice, img.Handle, img.Memory, 0)); err != nil {
		img.Destroy(context)
		return nil, err
	}

	aspect := aspectMask(format)
	if img.View, err = createView(context, img.Handle, format, aspect); err != nil {
		img.Destroy(context)
		return nil, err
	}
	img.SampleView = img.View
	if img.isDepth() {
		if img.SampleView, err = createView(context, img.Handle, format, vk.ImageAspectFlags(vk.ImageAspectDepthBit)); err != nil {
			img.Destroy(context)
			return nil, err
		}
	}

	// Move to GENERAL once; it stays there.
	if err := context.immediate(func(cb *VulkanCommandBuffer) {
		transitionToGeneral(cb, img.Handle, aspect)
	}); err != nil {
		img.Destroy(context)
		return nil, err
	}
	return img, nil
}

func createView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	var view vk.ImageView
	err := check("vkCreateImageView", vk.CreateImageView(context.LogicalDevice, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}, context.Allocator, &view))
	return view, err
}

func transitionToGeneral(cb *VulkanCommandBuffer, image vk.Image, aspect vk.ImageAspectFlags) {
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit),
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	if img.external {
		return
	}
	if img.SampleView != nil && img.SampleView != img.View {
		vk.DestroyImageView(context.LogicalDevice, img.SampleView, context.Allocator)
	}
	img.SampleView = nil
	if img.View != nil {
		vk.DestroyImageView(context.LogicalDevice, img.View, context.Allocator)
		img.View = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(context.LogicalDevice, img.Handle, context.Allocator)
		img.Handle = nil
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.LogicalDevice, img.Memory, context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
}
