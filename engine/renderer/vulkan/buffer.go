package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// vkCmdUpdateBuffer accepts at most this many bytes.
const MAX_INLINE_UPDATE = 65536

/** @brief A device-local uniform buffer, updated in command order. */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func bufferOf(buffer *metadata.Buffer) *VulkanBuffer {
	if buffer == nil {
		return nil
	}
	b, _ := buffer.InternalData.(*VulkanBuffer)
	return b
}

func BufferCreate(context *VulkanContext, desc metadata.BufferDesc) (*VulkanBuffer, error) {
	if desc.Size == 0 || desc.Size > MAX_INLINE_UPDATE || desc.Size%4 != 0 {
		return nil, fmt.Errorf("buffer %s: size %d: %w", desc.Name, desc.Size, core.ErrInvalidParameter)
	}
	b := &VulkanBuffer{Size: desc.Size}

	var handle vk.Buffer
	if err := check("vkCreateBuffer "+desc.Name, vk.CreateBuffer(context.LogicalDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	b.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.LogicalDevice, b.Handle, &reqs)
	memory, err := context.allocateMemory(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		b.Destroy(context)
		return nil, err
	}
	b.Memory = memory
	if err := check("vkBindBufferMemory", vk.BindBufferMemory(context.LogicalDevice, b.Handle, b.Memory, 0)); err != nil {
		b.Destroy(context)
		return nil, err
	}
	return b, nil
}

/**
 * @brief Records an inline update of the whole buffer followed by a
 * barrier that makes it visible to every shader stage.
 */
func (b *VulkanBuffer) Update(cb *VulkanCommandBuffer, data []byte) {
	vk.CmdUpdateBuffer(cb.Handle, b.Handle, 0, vk.DeviceSize(len(data)), unsafe.Pointer(&data[0]))
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 1, []vk.BufferMemoryBarrier{{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessUniformReadBit),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              b.Handle,
			Size:                vk.DeviceSize(vk.WholeSize),
		}}, 0, nil)
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Handle != nil {
		vk.DestroyBuffer(context.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
