package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * Every program shares one descriptor set. Register classes are shifted
 * into disjoint binding ranges when the shaders are compiled to SPIR-V:
 * b# at 0, s# at 8, t# at 16 and u# at 32.
 */
const (
	BINDING_CB_BASE      uint32 = 0
	BINDING_SAMPLER_BASE uint32 = 8
	BINDING_SRV_BASE     uint32 = 16
	BINDING_UAV_BASE     uint32 = 32

	MAX_CB_SLOTS      = 4
	MAX_SAMPLER_SLOTS = 2
	MAX_SRV_SLOTS     = 8
	MAX_UAV_SLOTS     = 4

	// Sets a single descriptor pool can hand out before another one is created.
	DESCRIPTOR_POOL_SETS = 64
)

type descriptorClass struct {
	base  uint32
	count int
	kind  vk.DescriptorType
}

var descriptorClasses = []descriptorClass{
	{BINDING_CB_BASE, MAX_CB_SLOTS, vk.DescriptorTypeUniformBuffer},
	{BINDING_SAMPLER_BASE, MAX_SAMPLER_SLOTS, vk.DescriptorTypeSampler},
	{BINDING_SRV_BASE, MAX_SRV_SLOTS, vk.DescriptorTypeSampledImage},
	{BINDING_UAV_BASE, MAX_UAV_SLOTS, vk.DescriptorTypeStorageImage},
}

/** @brief The shared set layout and the pipeline layout built on it. */
type VulkanDescriptorLayout struct {
	SetLayout      vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
}

func setLayoutBindings() []vk.DescriptorSetLayoutBinding {
	var bindings []vk.DescriptorSetLayoutBinding
	for _, class := range descriptorClasses {
		for i := 0; i < class.count; i++ {
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         class.base + uint32(i),
				DescriptorType:  class.kind,
				DescriptorCount: 1,
				StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
			})
		}
	}
	return bindings
}

func NewDescriptorLayout(context *VulkanContext) (*VulkanDescriptorLayout, error) {
	layout := &VulkanDescriptorLayout{}
	bindings := setLayoutBindings()

	var setLayout vk.DescriptorSetLayout
	if err := check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(context.LogicalDevice, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, context.Allocator, &setLayout)); err != nil {
		return nil, err
	}
	layout.SetLayout = setLayout

	var pipelineLayout vk.PipelineLayout
	if err := check("vkCreatePipelineLayout", vk.CreatePipelineLayout(context.LogicalDevice, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}, context.Allocator, &pipelineLayout)); err != nil {
		layout.Destroy(context)
		return nil, err
	}
	layout.PipelineLayout = pipelineLayout
	return layout, nil
}

func (l *VulkanDescriptorLayout) Destroy(context *VulkanContext) {
	if l.PipelineLayout != nil {
		vk.DestroyPipelineLayout(context.LogicalDevice, l.PipelineLayout, context.Allocator)
		l.PipelineLayout = nil
	}
	if l.SetLayout != nil {
		vk.DestroyDescriptorSetLayout(context.LogicalDevice, l.SetLayout, context.Allocator)
		l.SetLayout = nil
	}
}

func newDescriptorPool(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(descriptorClasses))
	for _, class := range descriptorClasses {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            class.kind,
			DescriptorCount: uint32(class.count * DESCRIPTOR_POOL_SETS),
		})
	}
	var pool vk.DescriptorPool
	err := check("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.LogicalDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       DESCRIPTOR_POOL_SETS,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, context.Allocator, &pool))
	return pool, err
}

/**
 * @brief Transient descriptor sets for one command buffer. Sets live until
 * the command buffer is reset, which the owner does once its fence signals.
 */
type descriptorAllocator struct {
	pools   []vk.DescriptorPool
	current int
}

func (a *descriptorAllocator) allocate(context *VulkanContext, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	for {
		if a.current == len(a.pools) {
			pool, err := newDescriptorPool(context)
			if err != nil {
				return nil, err
			}
			a.pools = append(a.pools, pool)
		}
		var set vk.DescriptorSet
		res := vk.AllocateDescriptorSets(context.LogicalDevice, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     a.pools[a.current],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}, &set)
		switch res {
		case vk.Success:
			return set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			a.current++
		default:
			return nil, resultError("vkAllocateDescriptorSets", res)
		}
	}
}

func (a *descriptorAllocator) reset(context *VulkanContext) {
	for _, pool := range a.pools {
		vk.ResetDescriptorPool(context.LogicalDevice, pool, 0)
	}
	a.current = 0
}

func (a *descriptorAllocator) destroy(context *VulkanContext) {
	for _, pool := range a.pools {
		vk.DestroyDescriptorPool(context.LogicalDevice, pool, context.Allocator)
	}
	a.pools = nil
	a.current = 0
}
