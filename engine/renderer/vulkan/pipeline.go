package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Control points per patch for tessellated volume draws.
const PATCH_CONTROL_POINTS = 4

/**
 * @brief Everything a graphics pipeline bakes in. Blend constants and the
 * stencil reference are part of it since only viewport and scissor are
 * dynamic.
 */
type graphicsPipelineKey struct {
	vs, hs, ds, ps string

	raster       metadata.RasterState
	depthStencil metadata.DepthStencilState
	stencilRef   uint32
	blend        metadata.BlendState
	blendFactor  math.Vec4
	topology     metadata.Topology

	pass       vk.RenderPass
	samples    uint32
	colorCount int
}

/** @brief Holds a Vulkan pipeline and its bind point. */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle    vk.Pipeline
	BindPoint vk.PipelineBindPoint
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, pipeline.BindPoint, pipeline.Handle)
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != nil {
		vk.DestroyPipeline(context.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = nil
	}
}

type pipelineCache struct {
	layout   *VulkanDescriptorLayout
	graphics map[graphicsPipelineKey]*VulkanPipeline
	compute  map[string]*VulkanPipeline
}

func newPipelineCache(layout *VulkanDescriptorLayout) *pipelineCache {
	return &pipelineCache{
		layout:   layout,
		graphics: map[graphicsPipelineKey]*VulkanPipeline{},
		compute:  map[string]*VulkanPipeline{},
	}
}

func (c *pipelineCache) graphicsPipeline(context *VulkanContext, key graphicsPipelineKey, stages []*VulkanShaderStage) (*VulkanPipeline, error) {
	if p, ok := c.graphics[key]; ok {
		return p, nil
	}
	p, err := NewGraphicsPipeline(context, c.layout.PipelineLayout, key, stages)
	if err != nil {
		return nil, err
	}
	c.graphics[key] = p
	return p, nil
}

func (c *pipelineCache) computePipeline(context *VulkanContext, stage *VulkanShaderStage) (*VulkanPipeline, error) {
	if p, ok := c.compute[stage.Key]; ok {
		return p, nil
	}
	p, err := NewComputePipeline(context, c.layout.PipelineLayout, stage)
	if err != nil {
		return nil, err
	}
	c.compute[stage.Key] = p
	return p, nil
}

func (c *pipelineCache) destroy(context *VulkanContext) {
	for key, p := range c.graphics {
		p.Destroy(context)
		delete(c.graphics, key)
	}
	for key, p := range c.compute {
		p.Destroy(context)
		delete(c.compute, key)
	}
}

func NewGraphicsPipeline(context *VulkanContext, layout vk.PipelineLayout, key graphicsPipelineKey, stages []*VulkanShaderStage) (*VulkanPipeline, error) {
	stageInfos := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i, s := range stages {
		stageInfos[i] = s.CreateInfo()
	}

	// Viewport and scissor are set per draw.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := rasterizationState(key.raster, context.Features.DepthClamp == vk.True)

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCountFlagBits(key.samples),
		MinSampleShading:     1.0,
	}

	depthStencil := depthStencilState(key.depthStencil, key.stencilRef)

	attachment := colorBlendAttachment(key.blend)
	attachments := make([]vk.PipelineColorBlendAttachmentState, key.colorCount)
	for i := range attachments {
		attachments[i] = attachment
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		BlendConstants:  [4]float32{key.blendFactor.X, key.blendFactor.Y, key.blendFactor.Z, key.blendFactor.W},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Geometry is generated from the vertex id.
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology(key.topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stageInfos)),
		PStages:             stageInfos,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          key.pass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	if key.topology == metadata.TOPOLOGY_PATCH_LIST_4 {
		pipelineCreateInfo.PTessellationState = &vk.PipelineTessellationStateCreateInfo{
			SType:              vk.StructureTypePipelineTessellationStateCreateInfo,
			PatchControlPoints: PATCH_CONTROL_POINTS,
		}
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines))
	}); err != nil {
		return nil, err
	}
	if pPipelines[0] == nil {
		return nil, fmt.Errorf("vulkan pipeline handle is nil: %w", core.ErrAPIError)
	}

	core.LogDebug("graphics pipeline created for %s %s %s %s", key.vs, key.hs, key.ds, key.ps)
	return &VulkanPipeline{Handle: pPipelines[0], BindPoint: vk.PipelineBindPointGraphics}, nil
}

func NewComputePipeline(context *VulkanContext, layout vk.PipelineLayout, stage *VulkanShaderStage) (*VulkanPipeline, error) {
	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreateComputePipelines", vk.CreateComputePipelines(
			context.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.ComputePipelineCreateInfo{{
				SType:              vk.StructureTypeComputePipelineCreateInfo,
				Stage:              stage.CreateInfo(),
				Layout:             layout,
				BasePipelineHandle: vk.NullPipeline,
				BasePipelineIndex:  -1,
			}},
			context.Allocator,
			pPipelines))
	}); err != nil {
		return nil, err
	}
	core.LogDebug("compute pipeline created for %s", stage.Key)
	return &VulkanPipeline{Handle: pPipelines[0], BindPoint: vk.PipelineBindPointCompute}, nil
}
