package vulkan

import (
	"fmt"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief Native handles a caller passes to Open. Zero handles are created
 * by the device itself: no Instance creates one through GLFW, no
 * PhysicalDevice selects one and no LogicalDevice creates it with a
 * single graphics and compute queue.
 */
type Native struct {
	Instance       vk.Instance
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	QueueFamily    uint32
	Queue          vk.Queue
	Allocator      *vk.AllocationCallbacks
	/** @brief Resolves permutation keys to SPIR-V. Required to draw. */
	Shaders ShaderSource
	AppName string
	/** @brief Enables the validation layer on an instance the device creates. */
	Debug bool
}

/**
 * @brief Records pipeline commands into a *VulkanCommandBuffer, which is
 * the render context every call expects.
 */
type VulkanDevice struct {
	mu sync.Mutex

	context *VulkanContext
	caps    metadata.DeviceCapabilities

	layout       *VulkanDescriptorLayout
	shaders      *shaderLibrary
	pipelines    *pipelineCache
	renderpasses map[renderpassKey]*VulkanRenderpass
	framebuffers map[framebufferKey]*VulkanFramebuffer
	samplers     [metadata.SAMPLER_STATE_COUNT]vk.Sampler

	// Bound in place of empty slots.
	dummySampled *VulkanImage
	dummyStorage *VulkanImage
	dummyBuffer  *VulkanBuffer

	released bool
}

/**
 * @brief Builds a device from PlatformDesc.Device: nil creates everything,
 * a *Native borrows what it carries and an existing *VulkanDevice is
 * handed back as is.
 */
func Open(native any) (*VulkanDevice, error) {
	switch n := native.(type) {
	case nil:
		return newDevice(&Native{})
	case Native:
		return newDevice(&n)
	case *Native:
		return newDevice(n)
	case *VulkanDevice:
		return n, nil
	default:
		return nil, fmt.Errorf("vulkan device from %T: %w", native, core.ErrInvalidParameter)
	}
}

func newDevice(native *Native) (*VulkanDevice, error) {
	vc := &VulkanContext{
		Allocator: native.Allocator,
		locks:     NewVulkanLockPool(),
	}
	d := &VulkanDevice{
		context:      vc,
		shaders:      newShaderLibrary(native.Shaders),
		renderpasses: map[renderpassKey]*VulkanRenderpass{},
		framebuffers: map[framebufferKey]*VulkanFramebuffer{},
	}
	if err := d.init(native); err != nil {
		d.destroy()
		return nil, err
	}
	core.LogInfo("Vulkan device opened (tessellation=%t compute=%t samples=%d)", d.caps.Tessellation, d.caps.Compute, d.caps.MaxSamples)
	return d, nil
}

func (d *VulkanDevice) init(native *Native) error {
	vc := d.context
	appName := native.AppName
	if appName == "" {
		appName = "Volumetric"
	}

	if native.Instance == nil {
		if err := createInstance(vc, appName, native.Debug); err != nil {
			return err
		}
	} else {
		vc.Instance = native.Instance
	}

	if native.PhysicalDevice == nil {
		if err := SelectPhysicalDevice(vc, DefaultRequirements()); err != nil {
			return err
		}
	} else {
		queryDevice(vc, native.PhysicalDevice)
	}

	if native.LogicalDevice == nil {
		if err := DeviceCreate(vc); err != nil {
			return err
		}
	} else {
		if native.Queue == nil {
			return fmt.Errorf("logical device without a queue: %w", core.ErrInvalidParameter)
		}
		vc.LogicalDevice = native.LogicalDevice
		vc.Queue = native.Queue
		vc.QueueIndex = native.QueueFamily
		_, flags, _ := queueFamily(vc.PhysicalDevice)
		vc.QueueFlags = flags
		if err := createCommandPool(vc); err != nil {
			return err
		}
	}
	d.caps = deviceCapabilities(vc.Features, vc.Properties.Limits, vc.QueueFlags)

	var err error
	if d.layout, err = NewDescriptorLayout(vc); err != nil {
		return err
	}
	d.pipelines = newPipelineCache(d.layout)

	for s := range d.samplers {
		info := samplerCreateInfo(metadata.SamplerState(s))
		if err := check("vkCreateSampler", vk.CreateSampler(vc.LogicalDevice, &info, vc.Allocator, &d.samplers[s])); err != nil {
			return err
		}
	}

	if d.dummySampled, err = ImageCreate(vc, metadata.TextureDesc{
		Name: "dummy_sampled", Width: 1, Height: 1, Samples: 1,
		Format: metadata.TEXTURE_FORMAT_RGBA8,
		Usage:  metadata.TEXTURE_USAGE_SHADER_RESOURCE,
	}); err != nil {
		return err
	}
	if d.dummyStorage, err = ImageCreate(vc, metadata.TextureDesc{
		Name: "dummy_storage", Width: 1, Height: 1, Samples: 1,
		Format: metadata.TEXTURE_FORMAT_RGBA16F,
		Usage:  metadata.TEXTURE_USAGE_UNORDERED_ACCESS,
	}); err != nil {
		return err
	}
	d.dummyBuffer, err = BufferCreate(vc, metadata.BufferDesc{Name: "dummy_cb", Size: 256})
	return err
}

func (d *VulkanDevice) Context() *VulkanContext {
	return d.context
}

func commandBuffer(rc metadata.RenderCtx) *VulkanCommandBuffer {
	cb, _ := rc.(*VulkanCommandBuffer)
	if cb == nil || cb.Handle == nil {
		core.LogError("vulkan device called with render context %T", rc)
		return nil
	}
	return cb
}

func (d *VulkanDevice) Capabilities() metadata.DeviceCapabilities {
	return d.caps
}

func (d *VulkanDevice) CreateTexture(desc metadata.TextureDesc) (*metadata.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, fmt.Errorf("texture %s: device released: %w", desc.Name, core.ErrInvalidParameter)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %s has zero size: %w", desc.Name, core.ErrInvalidParameter)
	}
	if desc.Samples > d.caps.MaxSamples {
		return nil, fmt.Errorf("texture %s: %d samples: %w", desc.Name, desc.Samples, core.ErrUnsupportedDevice)
	}
	var img *VulkanImage
	if err := d.context.locks.SafeCall(ResourceManagement, func() error {
		var err error
		img, err = ImageCreate(d.context, desc)
		return err
	}); err != nil {
		return nil, err
	}
	return &metadata.Texture{ID: uuid.New(), Desc: desc, InternalData: img}, nil
}

// DestroyTexture waits for the queue to drain; it is only called at context teardown.
func (d *VulkanDevice) DestroyTexture(texture *metadata.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img := imageOf(texture)
	if img == nil || d.released {
		return
	}
	vk.DeviceWaitIdle(d.context.LogicalDevice)
	d.purgeFramebuffers(img.View)
	img.Destroy(d.context)
	texture.InternalData = nil
}

func (d *VulkanDevice) CreateBuffer(desc metadata.BufferDesc) (*metadata.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, fmt.Errorf("buffer %s: device released: %w", desc.Name, core.ErrInvalidParameter)
	}
	var b *VulkanBuffer
	if err := d.context.locks.SafeCall(ResourceManagement, func() error {
		var err error
		b, err = BufferCreate(d.context, desc)
		return err
	}); err != nil {
		return nil, err
	}
	return &metadata.Buffer{ID: uuid.New(), Desc: desc, InternalData: b}, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer *metadata.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := bufferOf(buffer)
	if b == nil || d.released {
		return
	}
	vk.DeviceWaitIdle(d.context.LogicalDevice)
	b.Destroy(d.context)
	buffer.InternalData = nil
}

func (d *VulkanDevice) UpdateBuffer(rc metadata.RenderCtx, buffer *metadata.Buffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := commandBuffer(rc)
	b := bufferOf(buffer)
	if cb == nil || b == nil {
		return fmt.Errorf("update buffer: %w", core.ErrInvalidParameter)
	}
	if uint64(len(data)) != b.Size {
		return fmt.Errorf("buffer %s holds %d bytes, got %d: %w", buffer.Desc.Name, b.Size, len(data), core.ErrInvalidParameter)
	}
	cb.endPass()
	b.Update(cb, data)
	return nil
}

// tables returns the binding tables the given stages read from.
func tables(cb *VulkanCommandBuffer, stages metadata.ShaderStage) []*bindingTable {
	var out []*bindingTable
	if stages&metadata.SHADER_STAGE_GRAPHICS != 0 {
		out = append(out, &cb.rec.graphics)
	}
	if stages.Has(metadata.SHADER_STAGE_COMPUTE) {
		out = append(out, &cb.rec.compute)
	}
	return out
}

func (d *VulkanDevice) BindConstantBuffers(rc metadata.RenderCtx, stages metadata.ShaderStage, buffers []*metadata.Buffer) {
	cb := commandBuffer(rc)
	if cb == nil {
		return
	}
	for _, t := range tables(cb, stages) {
		for i := 0; i < len(buffers) && i < MAX_CB_SLOTS; i++ {
			t.buffers[i] = bufferOf(buffers[i])
		}
	}
}

func (d *VulkanDevice) BindSamplers(rc metadata.RenderCtx, stages metadata.ShaderStage, samplers []metadata.SamplerState) {
	cb := commandBuffer(rc)
	if cb == nil {
		return
	}
	for _, t := range tables(cb, stages) {
		for i := 0; i < len(samplers) && i < MAX_SAMPLER_SLOTS; i++ {
			t.samplers[i] = d.samplers[samplers[i]]
		}
	}
}

func (d *VulkanDevice) BindShaderResources(rc metadata.RenderCtx, stages metadata.ShaderStage, views []*metadata.Texture) {
	cb := commandBuffer(rc)
	if cb == nil {
		return
	}
	for _, t := range tables(cb, stages) {
		for i := 0; i < len(views) && i < MAX_SRV_SLOTS; i++ {
			t.views[i] = imageOf(views[i])
		}
	}
}

func (d *VulkanDevice) BindUnorderedAccess(rc metadata.RenderCtx, views []*metadata.Texture) {
	cb := commandBuffer(rc)
	if cb == nil {
		return
	}
	cb.rec.uavs = [MAX_UAV_SLOTS]*VulkanImage{}
	for i := 0; i < len(views) && i < MAX_UAV_SLOTS; i++ {
		cb.rec.uavs[i] = imageOf(views[i])
	}
}

func (d *VulkanDevice) SetRenderTargets(rc metadata.RenderCtx, color []*metadata.Texture, depth *metadata.Texture, readOnlyDepth bool) {
	cb := commandBuffer(rc)
	if cb == nil {
		return
	}
	cb.endPass()
	cb.rec.colors = cb.rec.colors[:0]
	for _, c := range color {
		if img := imageOf(c); img != nil {
			cb.rec.colors = append(cb.rec.colors, img)
		}
	}
	cb.rec.depth = imageOf(depth)
	cb.rec.readOnlyDepth = readOnlyDepth
}

func (d *VulkanDevice) SetViewport(rc metadata.RenderCtx, viewport metadata.Viewport) {
	if cb := commandBuffer(rc); cb != nil {
		cb.rec.viewport = viewport
	}
}

func (d *VulkanDevice) SetRasterState(rc metadata.RenderCtx, state metadata.RasterState) {
	if cb := commandBuffer(rc); cb != nil {
		cb.rec.raster = state
	}
}

func (d *VulkanDevice) SetDepthStencilState(rc metadata.RenderCtx, state metadata.DepthStencilState, stencilRef uint32) {
	if cb := commandBuffer(rc); cb != nil {
		cb.rec.depthStencil, cb.rec.stencilRef = state, stencilRef
	}
}

func (d *VulkanDevice) SetBlendState(rc metadata.RenderCtx, state metadata.BlendState, factor math.Vec4) {
	if cb := commandBuffer(rc); cb != nil {
		cb.rec.blend, cb.rec.blendFactor = state, factor
	}
}

// SetShaders validates the set and loads each module so a missing program fails here.
func (d *VulkanDevice) SetShaders(rc metadata.RenderCtx, shaders metadata.ShaderSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := commandBuffer(rc)
	if cb == nil {
		return fmt.Errorf("set shaders: %w", core.ErrInvalidParameter)
	}
	slots := []struct {
		p     *metadata.ShaderPermutation
		stage metadata.ShaderStage
	}{
		{shaders.VS, metadata.SHADER_STAGE_VERTEX},
		{shaders.HS, metadata.SHADER_STAGE_HULL},
		{shaders.DS, metadata.SHADER_STAGE_DOMAIN},
		{shaders.PS, metadata.SHADER_STAGE_PIXEL},
		{shaders.CS, metadata.SHADER_STAGE_COMPUTE},
	}
	for _, s := range slots {
		if s.p == nil {
			continue
		}
		if s.p.Program.Stage() != s.stage {
			return fmt.Errorf("%s bound to stage %#x: %w", s.p.Key(), uint32(s.stage), core.ErrInvalidParameter)
		}
		if _, err := d.shaders.get(d.context, s.p); err != nil {
			return err
		}
	}
	if shaders.CS != nil && (shaders.VS != nil || shaders.HS != nil || shaders.DS != nil || shaders.PS != nil) {
		return fmt.Errorf("compute program %s bound together with graphics programs: %w", shaders.CS.Key(), core.ErrInvalidParameter)
	}
	if (shaders.HS == nil) != (shaders.DS == nil) {
		return fmt.Errorf("hull and domain programs must be bound together: %w", core.ErrInvalidParameter)
	}
	cb.rec.shaders = shaders
	return nil
}

func (d *VulkanDevice) ClearColor(rc metadata.RenderCtx, target *metadata.Texture, color math.Vec4) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, img := commandBuffer(rc), imageOf(target)
	if cb == nil || img == nil {
		return
	}
	var value vk.ClearValue
	value.SetColor([]float32{color.X, color.Y, color.Z, color.W})
	d.clear(cb, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), value)
}

func (d *VulkanDevice) ClearDepthStencil(rc metadata.RenderCtx, target *metadata.Texture, flags metadata.ClearFlags, depth float32, stencil uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, img := commandBuffer(rc), imageOf(target)
	if cb == nil || img == nil || !img.isDepth() {
		return
	}
	var aspect vk.ImageAspectFlags
	if flags&metadata.CLEAR_DEPTH != 0 {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if flags&metadata.CLEAR_STENCIL != 0 && hasStencil(img.Format) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	if aspect == 0 {
		return
	}
	var value vk.ClearValue
	value.SetDepthStencil(depth, uint32(stencil))
	d.clear(cb, img, aspect, value)
}

// clear wraps the image in a one-attachment pass and clears it there.
func (d *VulkanDevice) clear(cb *VulkanCommandBuffer, img *VulkanImage, aspect vk.ImageAspectFlags, value vk.ClearValue) {
	cb.endPass()

	key := renderpassKey{samples: img.Samples}
	if img.isDepth() {
		key.depth = img.Format
	} else {
		key.colors[0] = img.Format
		key.colorCount = 1
	}
	pass, fb, err := d.target(key, []vk.ImageView{img.View}, img.Width, img.Height)
	if err != nil {
		return
	}
	pass.Begin(cb, fb)
	cb.rec.pass, cb.rec.framebuffer = pass, fb
	vk.CmdClearAttachments(cb.Handle, 1, []vk.ClearAttachment{{
		AspectMask:      aspect,
		ColorAttachment: 0,
		ClearValue:      value,
	}}, 1, []vk.ClearRect{{
		Rect:       vk.Rect2D{Extent: vk.Extent2D{Width: img.Width, Height: img.Height}},
		LayerCount: 1,
	}})
	cb.endPass()
}

// target returns the cached render pass and framebuffer for a set of views.
func (d *VulkanDevice) target(key renderpassKey, views []vk.ImageView, width, height uint32) (*VulkanRenderpass, *VulkanFramebuffer, error) {
	pass, ok := d.renderpasses[key]
	if !ok {
		var err error
		if pass, err = RenderpassCreate(d.context, key); err != nil {
			return nil, nil, err
		}
		d.renderpasses[key] = pass
	}

	fbKey := framebufferKey{pass: pass.Handle, width: width, height: height}
	copy(fbKey.views[:], views)
	fb, ok := d.framebuffers[fbKey]
	if !ok {
		var err error
		if fb, err = FramebufferCreate(d.context, pass, width, height, views); err != nil {
			return nil, nil, err
		}
		d.framebuffers[fbKey] = fb
	}
	return pass, fb, nil
}

func (d *VulkanDevice) purgeFramebuffers(view vk.ImageView) {
	for key, fb := range d.framebuffers {
		if fb.uses(view) {
			fb.Destroy(d.context)
			delete(d.framebuffers, key)
		}
	}
}

// beginPass opens a render pass over the bound targets unless one is open.
func (d *VulkanDevice) beginPass(cb *VulkanCommandBuffer) error {
	if cb.inPass() {
		return nil
	}
	rec := &cb.rec
	if len(rec.colors) == 0 && rec.depth == nil {
		return fmt.Errorf("draw without render targets: %w", core.ErrInvalidParameter)
	}
	if len(rec.colors) > MAX_COLOR_TARGETS {
		return fmt.Errorf("%d colour targets: %w", len(rec.colors), core.ErrInvalidParameter)
	}

	var key renderpassKey
	var views []vk.ImageView
	var width, height uint32
	for i, c := range rec.colors {
		key.colors[i] = c.Format
		views = append(views, c.View)
		width, height, key.samples = c.Width, c.Height, c.Samples
	}
	key.colorCount = len(rec.colors)
	if rec.depth != nil {
		key.depth = rec.depth.Format
		views = append(views, rec.depth.View)
		if width == 0 {
			width, height, key.samples = rec.depth.Width, rec.depth.Height, rec.depth.Samples
		}
	}

	pass, fb, err := d.target(key, views, width, height)
	if err != nil {
		return err
	}
	pass.Begin(cb, fb)
	rec.pass, rec.framebuffer = pass, fb
	return nil
}

// writeDescriptors allocates a set and fills every binding, empty slots with dummies.
func (d *VulkanDevice) writeDescriptors(cb *VulkanCommandBuffer, table *bindingTable, uavs []*VulkanImage) (vk.DescriptorSet, error) {
	set, err := cb.descriptors.allocate(d.context, d.layout.SetLayout)
	if err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, MAX_CB_SLOTS+MAX_SAMPLER_SLOTS+MAX_SRV_SLOTS+MAX_UAV_SLOTS)
	write := func(binding uint32, kind vk.DescriptorType) vk.WriteDescriptorSet {
		return vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      binding,
			DescriptorCount: 1,
			DescriptorType:  kind,
		}
	}

	for i, b := range table.buffers {
		if b == nil {
			b = d.dummyBuffer
		}
		w := write(BINDING_CB_BASE+uint32(i), vk.DescriptorTypeUniformBuffer)
		w.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: b.Handle,
			Range:  vk.DeviceSize(b.Size),
		}}
		writes = append(writes, w)
	}
	for i, s := range table.samplers {
		if s == nil {
			s = d.samplers[metadata.SAMPLER_POINT]
		}
		w := write(BINDING_SAMPLER_BASE+uint32(i), vk.DescriptorTypeSampler)
		w.PImageInfo = []vk.DescriptorImageInfo{{Sampler: s}}
		writes = append(writes, w)
	}
	for i, img := range table.views {
		if img == nil {
			img = d.dummySampled
		}
		w := write(BINDING_SRV_BASE+uint32(i), vk.DescriptorTypeSampledImage)
		w.PImageInfo = []vk.DescriptorImageInfo{{
			ImageView:   img.SampleView,
			ImageLayout: vk.ImageLayoutGeneral,
		}}
		writes = append(writes, w)
	}
	for i := 0; i < MAX_UAV_SLOTS; i++ {
		img := d.dummyStorage
		if i < len(uavs) && uavs[i] != nil {
			img = uavs[i]
		}
		w := write(BINDING_UAV_BASE+uint32(i), vk.DescriptorTypeStorageImage)
		w.PImageInfo = []vk.DescriptorImageInfo{{
			ImageView:   img.View,
			ImageLayout: vk.ImageLayoutGeneral,
		}}
		writes = append(writes, w)
	}

	vk.UpdateDescriptorSets(d.context.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return set, nil
}

func (d *VulkanDevice) Draw(rc metadata.RenderCtx, topo metadata.Topology, vertexCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := commandBuffer(rc)
	if cb == nil {
		return fmt.Errorf("draw: %w", core.ErrInvalidParameter)
	}
	rec := &cb.rec
	if rec.shaders.VS == nil {
		return fmt.Errorf("draw without a vertex program: %w", core.ErrInvalidParameter)
	}
	tessellated := rec.shaders.HS != nil
	if tessellated != (topo == metadata.TOPOLOGY_PATCH_LIST_4) {
		return fmt.Errorf("%s draw with tessellation=%t: %w", topo, tessellated, core.ErrInvalidParameter)
	}

	if err := d.beginPass(cb); err != nil {
		return err
	}

	var stages []*VulkanShaderStage
	for _, p := range []*metadata.ShaderPermutation{rec.shaders.VS, rec.shaders.HS, rec.shaders.DS, rec.shaders.PS} {
		if p == nil {
			continue
		}
		s, err := d.shaders.get(d.context, p)
		if err != nil {
			return err
		}
		stages = append(stages, s)
	}

	key := graphicsPipelineKey{
		vs:           rec.shaders.VS.Key(),
		raster:       rec.raster,
		depthStencil: rec.depthStencil,
		stencilRef:   rec.stencilRef,
		blend:        rec.blend,
		blendFactor:  rec.blendFactor,
		topology:     topo,
		pass:         rec.pass.Handle,
		samples:      rec.pass.key.samples,
		colorCount:   rec.pass.key.colorCount,
	}
	if tessellated {
		key.hs, key.ds = rec.shaders.HS.Key(), rec.shaders.DS.Key()
	}
	if rec.shaders.PS != nil {
		key.ps = rec.shaders.PS.Key()
	}
	pipeline, err := d.pipelines.graphicsPipeline(d.context, key, stages)
	if err != nil {
		return err
	}

	set, err := d.writeDescriptors(cb, &rec.graphics, nil)
	if err != nil {
		return err
	}

	pipeline.Bind(cb)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, d.layout.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

	vp := rec.viewport
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: rec.framebuffer.Width, Height: rec.framebuffer.Height},
	}})
	vk.CmdDraw(cb.Handle, vertexCount, 1, 0, 0)
	return nil
}

func (d *VulkanDevice) Dispatch(rc metadata.RenderCtx, x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := commandBuffer(rc)
	if cb == nil {
		return fmt.Errorf("dispatch: %w", core.ErrInvalidParameter)
	}
	rec := &cb.rec
	if rec.shaders.CS == nil {
		return fmt.Errorf("dispatch without a compute program: %w", core.ErrInvalidParameter)
	}
	cb.endPass()

	stage, err := d.shaders.get(d.context, rec.shaders.CS)
	if err != nil {
		return err
	}
	pipeline, err := d.pipelines.computePipeline(d.context, stage)
	if err != nil {
		return err
	}
	set, err := d.writeDescriptors(cb, &rec.compute, rec.uavs[:])
	if err != nil {
		return err
	}

	pipeline.Bind(cb)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointCompute, d.layout.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdDispatch(cb.Handle, x, y, z)
	cb.memoryBarrier()
	return nil
}

func (d *VulkanDevice) BeginEvent(rc metadata.RenderCtx, name string) {
	if cb := commandBuffer(rc); cb != nil {
		cb.rec.events = append(cb.rec.events, name)
		core.LogDebug("begin %s", strings.Join(cb.rec.events, "/"))
	}
}

func (d *VulkanDevice) EndEvent(rc metadata.RenderCtx) {
	if cb := commandBuffer(rc); cb != nil && len(cb.rec.events) > 0 {
		cb.rec.events = cb.rec.events[:len(cb.rec.events)-1]
	}
}

/**
 * @brief Allocates a primary command buffer with its own fence, ready to
 * be passed to BeginCommands.
 */
func (d *VulkanDevice) AllocateCommandBuffer() (*VulkanCommandBuffer, error) {
	var cb *VulkanCommandBuffer
	err := d.context.locks.SafeCall(CommandBufferManagement, func() error {
		var err error
		cb, err = NewVulkanCommandBuffer(d.context, d.context.CommandPool, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cb.Fence, err = NewFence(d.context, true); err != nil {
		cb.Free(d.context)
		return nil, err
	}
	return cb, nil
}

/** @brief Waits for the previous submission of cb, then starts recording. */
func (d *VulkanDevice) BeginCommands(cb *VulkanCommandBuffer) error {
	if err := cb.Fence.Wait(d.context, vk.MaxUint64); err != nil {
		return err
	}
	if err := cb.Reset(d.context); err != nil {
		return err
	}
	return cb.Begin(true, false, false)
}

/** @brief Ends recording and submits cb; its fence signals once it ran. */
func (d *VulkanDevice) Submit(cb *VulkanCommandBuffer) error {
	if err := cb.End(); err != nil {
		return err
	}
	if err := cb.Fence.Reset(d.context); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if err := d.context.locks.SafeCall(QueueManagement, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(d.context.Queue, 1, []vk.SubmitInfo{submitInfo}, cb.Fence.Handle))
	}); err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (d *VulkanDevice) FreeCommandBuffer(cb *VulkanCommandBuffer) {
	if cb == nil || cb.Handle == nil {
		return
	}
	if cb.Fence != nil {
		cb.Fence.Wait(d.context, vk.MaxUint64)
	}
	d.context.locks.SafeCall(CommandBufferManagement, func() error {
		cb.Free(d.context)
		return nil
	})
}

func (d *VulkanDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil
	}
	d.released = true
	d.destroy()
	core.LogInfo("Vulkan device released")
	return nil
}

func (d *VulkanDevice) destroy() {
	vc := d.context
	if vc.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.LogicalDevice)

		for key, fb := range d.framebuffers {
			fb.Destroy(vc)
			delete(d.framebuffers, key)
		}
		if d.pipelines != nil {
			d.pipelines.destroy(vc)
		}
		for key, pass := range d.renderpasses {
			pass.Destroy(vc)
			delete(d.renderpasses, key)
		}
		d.shaders.destroy(vc)
		for i, s := range d.samplers {
			if s != nil {
				vk.DestroySampler(vc.LogicalDevice, s, vc.Allocator)
				d.samplers[i] = nil
			}
		}
		if d.dummySampled != nil {
			d.dummySampled.Destroy(vc)
		}
		if d.dummyStorage != nil {
			d.dummyStorage.Destroy(vc)
		}
		if d.dummyBuffer != nil {
			d.dummyBuffer.Destroy(vc)
		}
		if d.layout != nil {
			d.layout.Destroy(vc)
		}
	}
	vc.destroy()
}
