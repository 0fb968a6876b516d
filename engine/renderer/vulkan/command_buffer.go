package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// Resources one bind point reads. Nil entries are filled with dummies at draw time.
type bindingTable struct {
	buffers  [MAX_CB_SLOTS]*VulkanBuffer
	samplers [MAX_SAMPLER_SLOTS]vk.Sampler
	views    [MAX_SRV_SLOTS]*VulkanImage
}

// Device state set on a command buffer since its last reset.
type recordState struct {
	colors        []*VulkanImage
	depth         *VulkanImage
	readOnlyDepth bool

	pass        *VulkanRenderpass
	framebuffer *VulkanFramebuffer

	viewport     metadata.Viewport
	raster       metadata.RasterState
	depthStencil metadata.DepthStencilState
	stencilRef   uint32
	blend        metadata.BlendState
	blendFactor  math.Vec4
	shaders      metadata.ShaderSet

	graphics bindingTable
	compute  bindingTable
	uavs     [MAX_UAV_SLOTS]*VulkanImage

	events []string
}

/**
 * @brief A command buffer together with the device state recorded into it.
 * It is the render context the Vulkan device expects.
 */
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
	// Signaled once a submission of this buffer has executed.
	Fence *VulkanFence

	pool        vk.CommandPool
	descriptors descriptorAllocator
	rec         recordState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		pool:  pool,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.LogicalDevice, &allocateInfo, handles)); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext) {
	v.descriptors.destroy(context)
	if v.Fence != nil {
		v.Fence.Destroy(context)
		v.Fence = nil
	}
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.LogicalDevice, v.pool, 1, []vk.CommandBuffer{v.Handle})
		v.Handle = nil
	}
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := check("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

/** @brief Closes an open render pass and ends recording. */
func (v *VulkanCommandBuffer) End() error {
	v.endPass()
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

/**
 * @brief Makes the buffer recordable again. The caller must know the
 * previous submission has finished; its descriptor sets are recycled.
 */
func (v *VulkanCommandBuffer) Reset(context *VulkanContext) error {
	if err := check("vkResetCommandBuffer", vk.ResetCommandBuffer(v.Handle, 0)); err != nil {
		return err
	}
	v.descriptors.reset(context)
	v.rec = recordState{}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) inPass() bool {
	return v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

// endPass closes the active render pass and orders it before later work.
func (v *VulkanCommandBuffer) endPass() {
	if !v.inPass() {
		return
	}
	v.rec.pass.End(v)
	v.rec.pass = nil
	v.rec.framebuffer = nil
	v.memoryBarrier()
}

// memoryBarrier makes every earlier write visible to every later command.
func (v *VulkanCommandBuffer) memoryBarrier() {
	access := vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit)
	vk.CmdPipelineBarrier(v.Handle,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 1, []vk.MemoryBarrier{{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: access,
			DstAccessMask: access,
		}}, 0, nil, 0, nil)
}

/**
 * Allocates and begins recording a one-time command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to the queue, waits on a fence and frees the
 * command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context)

	if err := v.End(); err != nil {
		return err
	}
	fence, err := NewFence(context, false)
	if err != nil {
		return err
	}
	v.Fence = fence

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if err := context.locks.SafeCall(QueueManagement, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		return err
	}
	v.UpdateSubmitted()
	return fence.Wait(context, vk.MaxUint64)
}
