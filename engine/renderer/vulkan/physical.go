package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief What a physical device must offer before it is considered. */
type VulkanPhysicalDeviceRequirements struct {
	Graphics       bool
	Compute        bool
	Tessellation   bool
	DualSrcBlend   bool
	WireframeFill  bool
	MinSampleCount uint32
}

func DefaultRequirements() VulkanPhysicalDeviceRequirements {
	return VulkanPhysicalDeviceRequirements{
		Graphics:       true,
		Compute:        true,
		Tessellation:   true,
		DualSrcBlend:   true,
		WireframeFill:  true,
		MinSampleCount: 1,
	}
}

/** @brief Highest sample count set in flags, 1 when none is. */
func maxSampleCount(flags vk.SampleCountFlags) uint32 {
	for count := uint32(64); count > 1; count >>= 1 {
		if flags&vk.SampleCountFlags(count) != 0 {
			return count
		}
	}
	return 1
}

func deviceCapabilities(features vk.PhysicalDeviceFeatures, limits vk.PhysicalDeviceLimits, queueFlags vk.QueueFlags) metadata.DeviceCapabilities {
	color := maxSampleCount(limits.FramebufferColorSampleCounts)
	depth := maxSampleCount(limits.FramebufferDepthSampleCounts)
	samples := color
	if depth < samples {
		samples = depth
	}
	return metadata.DeviceCapabilities{
		Tessellation: features.TessellationShader == vk.True,
		Compute:      queueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0,
		MaxSamples:   samples,

		DualSourceBlend: features.DualSrcBlend == vk.True,
	}
}

func meetsRequirements(req VulkanPhysicalDeviceRequirements, features vk.PhysicalDeviceFeatures, limits vk.PhysicalDeviceLimits, queueFlags vk.QueueFlags) bool {
	caps := deviceCapabilities(features, limits, queueFlags)
	switch {
	case req.Graphics && queueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0:
		return false
	case req.Compute && !caps.Compute:
		return false
	case req.Tessellation && !caps.Tessellation:
		return false
	case req.DualSrcBlend && features.DualSrcBlend != vk.True:
		return false
	case req.WireframeFill && features.FillModeNonSolid != vk.True:
		return false
	case caps.MaxSamples < req.MinSampleCount:
		return false
	}
	return true
}

// queueFamily returns the first family that can do graphics and compute together.
func queueFamily(device vk.PhysicalDevice) (uint32, vk.QueueFlags, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	want := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&want == want {
			return uint32(i), families[i].QueueFlags, true
		}
	}
	for i := range families {
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), families[i].QueueFlags, true
		}
	}
	return 0, 0, false
}

func queryDevice(vc *VulkanContext, device vk.PhysicalDevice) {
	vc.PhysicalDevice = device
	vk.GetPhysicalDeviceProperties(device, &vc.Properties)
	vc.Properties.Deref()
	vc.Properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(device, &vc.Features)
	vc.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device, &vc.Memory)
	vc.Memory.Deref()
}

/** @brief Picks the first physical device meeting req, preferring discrete GPUs. */
func SelectPhysicalDevice(vc *VulkanContext, req VulkanPhysicalDeviceRequirements) error {
	var count uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vc.Instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrUnsupportedDevice)
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vc.Instance, &count, devices)); err != nil {
		return err
	}

	var fallback vk.PhysicalDevice
	for _, device := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()
		properties.Limits.Deref()
		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(device, &features)
		features.Deref()

		_, flags, ok := queueFamily(device)
		name := cString(properties.DeviceName[:])
		if !ok || !meetsRequirements(req, features, properties.Limits, flags) {
			core.LogInfo("Device '%s' does not meet the requirements, skipping.", name)
			continue
		}
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			fallback = device
			break
		}
		if fallback == nil {
			fallback = device
		}
	}
	if fallback == nil {
		return fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrUnsupportedDevice)
	}

	queryDevice(vc, fallback)
	core.LogInfo("Selected device: '%s'.", cString(vc.Properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(vc.Properties.ApiVersion).Major(),
		vk.Version(vc.Properties.ApiVersion).Minor(),
		vk.Version(vc.Properties.ApiVersion).Patch(),
	)
	return nil
}

/** @brief Creates the logical device, its queue and the command pool. */
func DeviceCreate(vc *VulkanContext) error {
	index, flags, ok := queueFamily(vc.PhysicalDevice)
	if !ok {
		return fmt.Errorf("no graphics queue: %w", core.ErrUnsupportedDevice)
	}
	vc.QueueIndex = index
	vc.QueueFlags = flags

	core.LogInfo("Creating logical device...")
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: index,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	// Only request what the device has; capabilities are checked by the caller.
	enabled := vk.PhysicalDeviceFeatures{
		TessellationShader: vc.Features.TessellationShader,
		DualSrcBlend:       vc.Features.DualSrcBlend,
		FillModeNonSolid:   vc.Features.FillModeNonSolid,
		DepthClamp:         vc.Features.DepthClamp,
	}

	var device vk.Device
	if err := check("vkCreateDevice", vk.CreateDevice(vc.PhysicalDevice, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{enabled},
	}, vc.Allocator, &device)); err != nil {
		return err
	}
	vc.LogicalDevice = device
	vc.ownsDevice = true

	var queue vk.Queue
	vk.GetDeviceQueue(device, index, 0, &queue)
	vc.Queue = queue
	core.LogInfo("Logical device created.")

	return createCommandPool(vc)
}

func createCommandPool(vc *VulkanContext) error {
	var pool vk.CommandPool
	if err := check("vkCreateCommandPool", vk.CreateCommandPool(vc.LogicalDevice, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vc.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, vc.Allocator, &pool)); err != nil {
		return err
	}
	vc.CommandPool = pool
	return nil
}
