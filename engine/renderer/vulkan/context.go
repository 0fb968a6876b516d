package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
)

/** @brief The Vulkan objects every other part of the device builds on. */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	QueueIndex     uint32
	Queue          vk.Queue
	QueueFlags     vk.QueueFlags

	// One-shot uploads and layout transitions are recorded from this pool.
	CommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	locks *VulkanLockPool

	debugMessenger vk.DebugReportCallback
	ownsInstance   bool
	ownsDevice     bool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < vc.Memory.MemoryTypeCount; i++ {
		vc.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && vc.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, true
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, false
}

func (vc *VulkanContext) allocateMemory(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	reqs.Deref()
	index, ok := vc.FindMemoryIndex(reqs.MemoryTypeBits, flags)
	if !ok {
		return vk.NullDeviceMemory, resultError("find memory type", vk.ErrorOutOfDeviceMemory)
	}
	var memory vk.DeviceMemory
	err := check("vkAllocateMemory", vk.AllocateMemory(vc.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, vc.Allocator, &memory))
	return memory, err
}

/**
 * @brief Records fn into a one-time command buffer, submits it and waits
 * on a fence until the queue has executed it.
 */
func (vc *VulkanContext) immediate(fn func(cb *VulkanCommandBuffer)) error {
	var cb *VulkanCommandBuffer
	err := vc.locks.SafeCall(CommandBufferManagement, func() error {
		var err error
		cb, err = AllocateAndBeginSingleUse(vc, vc.CommandPool)
		return err
	})
	if err != nil {
		return err
	}
	fn(cb)
	return cb.EndSingleUse(vc, vc.CommandPool, vc.Queue)
}

/** @brief Destroys what the context created itself; borrowed handles are left alone. */
func (vc *VulkanContext) destroy() {
	if vc.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.LogicalDevice)
	}
	if vc.CommandPool != nil {
		vk.DestroyCommandPool(vc.LogicalDevice, vc.CommandPool, vc.Allocator)
		vc.CommandPool = nil
	}
	if vc.ownsDevice && vc.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(vc.LogicalDevice, vc.Allocator)
	}
	vc.LogicalDevice = nil
	vc.Queue = nil
	vc.PhysicalDevice = nil

	if vc.ownsInstance && vc.Instance != nil {
		if vc.debugMessenger != nil {
			vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
			vc.debugMessenger = nil
		}
		vk.DestroyInstance(vc.Instance, vc.Allocator)
	}
	vc.Instance = nil
}
