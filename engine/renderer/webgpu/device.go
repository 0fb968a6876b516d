package webgpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Largest sample count every WebGPU implementation renders to.
const MAX_SAMPLES = 4

/**
 * @brief Native handles a caller passes to Open. A nil Device makes the
 * device request its own adapter and device from a new instance.
 */
type Native struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	/** @brief Resolves program keys to WGSL. Required to draw. */
	Shaders ShaderSource
	/** @brief Requests the software adapter when creating a device. */
	ForceFallbackAdapter bool
}

/**
 * @brief Records pipeline commands into an *Encoder, which is the render
 * context every call expects.
 */
type WebGPUDevice struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	// Handles created by the device, released with it.
	owned        bool
	ownsInstance bool

	caps      metadata.DeviceCapabilities
	shaders   *shaderLibrary
	pipelines *pipelineCache
	samplers  []*wgpu.Sampler

	released bool
}

/**
 * @brief Builds a device from PlatformDesc.Device: nil creates everything,
 * a *Native borrows what it carries and an existing *WebGPUDevice is
 * handed back as is.
 */
func Open(native any) (*WebGPUDevice, error) {
	switch n := native.(type) {
	case nil:
		return newDevice(&Native{})
	case Native:
		return newDevice(&n)
	case *Native:
		return newDevice(n)
	case *WebGPUDevice:
		return n, nil
	default:
		return nil, fmt.Errorf("webgpu device from %T: %w", native, core.ErrInvalidParameter)
	}
}

func newDevice(native *Native) (*WebGPUDevice, error) {
	d := &WebGPUDevice{
		shaders:   newShaderLibrary(native.Shaders),
		pipelines: newPipelineCache(),
		caps:      capabilities(),
	}
	if err := d.init(native); err != nil {
		d.destroy()
		return nil, err
	}
	core.LogInfo("WebGPU device opened (samples=%d, tessellation emulated)", d.caps.MaxSamples)
	return d, nil
}

/**
 * @brief What every WebGPU device offers. Tessellation is emulated in the
 * vertex stage and blend factors cannot read a second output.
 */
func capabilities() metadata.DeviceCapabilities {
	return metadata.DeviceCapabilities{
		Tessellation:    true,
		Compute:         true,
		MaxSamples:      MAX_SAMPLES,
		DualSourceBlend: false,
	}
}

func (d *WebGPUDevice) init(native *Native) error {
	if native.Device != nil {
		d.instance, d.adapter, d.device = native.Instance, native.Adapter, native.Device
		d.queue = native.Queue
		if d.queue == nil {
			d.queue = d.device.GetQueue()
		}
	} else {
		d.owned = true
		d.instance = native.Instance
		if d.instance == nil {
			d.instance = wgpu.CreateInstance(nil)
			d.ownsInstance = true
		}
		adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			ForceFallbackAdapter: native.ForceFallbackAdapter,
		})
		if err != nil {
			return fmt.Errorf("request adapter: %v: %w", err, core.ErrUnsupportedDevice)
		}
		d.adapter = adapter
		device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
			Label: "Volumetric Device",
			RequiredLimits: &wgpu.RequiredLimits{
				Limits: wgpu.DefaultLimits(),
			},
		})
		if err != nil {
			return fmt.Errorf("request device: %v: %w", err, core.ErrUnsupportedDevice)
		}
		d.device = device
		d.queue = device.GetQueue()
	}

	d.samplers = make([]*wgpu.Sampler, metadata.SAMPLER_STATE_COUNT)
	for s := range d.samplers {
		sampler, err := d.device.CreateSampler(samplerDescriptor(metadata.SamplerState(s)))
		if err != nil {
			return fmt.Errorf("sampler %s: %v: %w", metadata.SamplerState(s), err, core.ErrResourceFailure)
		}
		d.samplers[s] = sampler
	}
	return nil
}

func (d *WebGPUDevice) Device() *wgpu.Device {
	return d.device
}

func encoderOf(rc metadata.RenderCtx) *Encoder {
	e, _ := rc.(*Encoder)
	if e == nil || e.Handle == nil {
		core.LogError("webgpu device called with render context %T", rc)
		return nil
	}
	return e
}

func (d *WebGPUDevice) Capabilities() metadata.DeviceCapabilities {
	return d.caps
}

func (d *WebGPUDevice) CreateTexture(desc metadata.TextureDesc) (*metadata.Texture, error) {
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
	img, err := createImage(d.device, desc)
	if err != nil {
		return nil, err
	}
	return &metadata.Texture{ID: uuid.New(), Desc: desc, InternalData: img}, nil
}

// DestroyTexture drops the handles; the implementation keeps them alive for pending work.
func (d *WebGPUDevice) DestroyTexture(texture *metadata.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img := imageOf(texture); img != nil && !d.released {
		img.release()
		texture.InternalData = nil
	}
}

func (d *WebGPUDevice) CreateBuffer(desc metadata.BufferDesc) (*metadata.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, fmt.Errorf("buffer %s: device released: %w", desc.Name, core.ErrInvalidParameter)
	}
	b, err := createBuffer(d.device, desc)
	if err != nil {
		return nil, err
	}
	return &metadata.Buffer{ID: uuid.New(), Desc: desc, InternalData: b}, nil
}

func (d *WebGPUDevice) DestroyBuffer(buffer *metadata.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b := bufferOf(buffer); b != nil && !d.released {
		b.release()
		buffer.InternalData = nil
	}
}

func (d *WebGPUDevice) UpdateBuffer(rc metadata.RenderCtx, buffer *metadata.Buffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := encoderOf(rc)
	b := bufferOf(buffer)
	if e == nil || b == nil {
		return fmt.Errorf("update buffer: %w", core.ErrInvalidParameter)
	}
	if uint64(len(data)) != b.Size {
		return fmt.Errorf("buffer %s holds %d bytes, got %d: %w", buffer.Desc.Name, b.Size, len(data), core.ErrInvalidParameter)
	}
	e.endPass()
	src, offset, err := e.uploads.stage(d.device, d.queue, data)
	if err != nil {
		return err
	}
	e.Handle.CopyBufferToBuffer(src, offset, b.Handle, 0, b.Size)
	return nil
}

// tables returns the binding tables the given stages read from.
func tables(e *Encoder, stages metadata.ShaderStage) []*bindingTable {
	var out []*bindingTable
	if stages&metadata.SHADER_STAGE_GRAPHICS != 0 {
		out = append(out, &e.rec.graphics)
	}
	if stages.Has(metadata.SHADER_STAGE_COMPUTE) {
		out = append(out, &e.rec.compute)
	}
	return out
}

func (d *WebGPUDevice) BindConstantBuffers(rc metadata.RenderCtx, stages metadata.ShaderStage, buffers []*metadata.Buffer) {
	e := encoderOf(rc)
	if e == nil {
		return
	}
	for _, t := range tables(e, stages) {
		for i := 0; i < len(buffers) && i < MAX_CB_SLOTS; i++ {
			t.buffers[i] = bufferOf(buffers[i])
		}
	}
}

func (d *WebGPUDevice) BindSamplers(rc metadata.RenderCtx, stages metadata.ShaderStage, samplers []metadata.SamplerState) {
	e := encoderOf(rc)
	if e == nil {
		return
	}
	for _, t := range tables(e, stages) {
		for i := 0; i < len(samplers) && i < MAX_SAMPLER_SLOTS; i++ {
			s := samplers[i]
			t.samplers[i] = &s
		}
	}
}

func (d *WebGPUDevice) BindShaderResources(rc metadata.RenderCtx, stages metadata.ShaderStage, views []*metadata.Texture) {
	e := encoderOf(rc)
	if e == nil {
		return
	}
	for _, t := range tables(e, stages) {
		for i := 0; i < len(views) && i < MAX_SRV_SLOTS; i++ {
			t.views[i] = imageOf(views[i])
		}
	}
}

func (d *WebGPUDevice) BindUnorderedAccess(rc metadata.RenderCtx, views []*metadata.Texture) {
	e := encoderOf(rc)
	if e == nil {
		return
	}
	e.rec.uavs = [MAX_UAV_SLOTS]*Image{}
	for i := 0; i < len(views) && i < MAX_UAV_SLOTS; i++ {
		e.rec.uavs[i] = imageOf(views[i])
	}
}

func (d *WebGPUDevice) SetRenderTargets(rc metadata.RenderCtx, color []*metadata.Texture, depth *metadata.Texture, readOnlyDepth bool) {
	e := encoderOf(rc)
	if e == nil {
		return
	}
	e.endPass()
	e.rec.colors = e.rec.colors[:0]
	for _, c := range color {
		if img := imageOf(c); img != nil {
			e.rec.colors = append(e.rec.colors, img)
		}
	}
	e.rec.depth = imageOf(depth)
	e.rec.readOnlyDepth = readOnlyDepth
}

func (d *WebGPUDevice) SetViewport(rc metadata.RenderCtx, viewport metadata.Viewport) {
	if e := encoderOf(rc); e != nil {
		e.rec.viewport = viewport
	}
}

func (d *WebGPUDevice) SetRasterState(rc metadata.RenderCtx, state metadata.RasterState) {
	if e := encoderOf(rc); e != nil {
		e.rec.raster = state
	}
}

func (d *WebGPUDevice) SetDepthStencilState(rc metadata.RenderCtx, state metadata.DepthStencilState, stencilRef uint32) {
	if e := encoderOf(rc); e != nil {
		e.rec.depthStencil, e.rec.stencilRef = state, stencilRef
	}
}

func (d *WebGPUDevice) SetBlendState(rc metadata.RenderCtx, state metadata.BlendState, factor math.Vec4) {
	if e := encoderOf(rc); e != nil {
		e.rec.blend, e.rec.blendFactor = state, factor
	}
}

// SetShaders validates the set and loads each module so a missing program fails here.
func (d *WebGPUDevice) SetShaders(rc metadata.RenderCtx, shaders metadata.ShaderSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := encoderOf(rc)
	if e == nil {
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
		if s.p != nil && s.p.Program.Stage() != s.stage {
			return fmt.Errorf("%s bound to stage %#x: %w", s.p.Key(), uint32(s.stage), core.ErrInvalidParameter)
		}
	}
	if shaders.CS != nil && (shaders.VS != nil || shaders.HS != nil || shaders.DS != nil || shaders.PS != nil) {
		return fmt.Errorf("compute program %s bound together with graphics programs: %w", shaders.CS.Key(), core.ErrInvalidParameter)
	}
	if (shaders.HS == nil) != (shaders.DS == nil) {
		return fmt.Errorf("hull and domain programs must be bound together: %w", core.ErrInvalidParameter)
	}
	if (shaders.HS != nil || shaders.PS != nil) && shaders.VS == nil {
		return fmt.Errorf("graphics programs without a vertex program: %w", core.ErrInvalidParameter)
	}

	var keys []string
	if shaders.VS != nil {
		keys = append(keys, vertexProgramKey(shaders))
	}
	if shaders.PS != nil {
		keys = append(keys, shaders.PS.Key())
	}
	if shaders.CS != nil {
		keys = append(keys, shaders.CS.Key())
	}
	for _, key := range keys {
		if _, err := d.shaders.get(d.device, key); err != nil {
			return err
		}
	}
	e.rec.shaders = shaders
	return nil
}

func (d *WebGPUDevice) ClearColor(rc metadata.RenderCtx, target *metadata.Texture, color math.Vec4) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, img := encoderOf(rc), imageOf(target)
	if e == nil || img == nil || img.isDepth() {
		return
	}
	e.endPass()
	pass := e.Handle.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "clear_color",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    img.View,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(color.X), G: float64(color.Y), B: float64(color.Z), A: float64(color.W),
			},
		}},
	})
	pass.End()
	pass.Release()
}

func (d *WebGPUDevice) ClearDepthStencil(rc metadata.RenderCtx, target *metadata.Texture, flags metadata.ClearFlags, depth float32, stencil uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, img := encoderOf(rc), imageOf(target)
	if e == nil || img == nil || !img.isDepth() {
		return
	}
	clearDepth := flags&metadata.CLEAR_DEPTH != 0
	clearStencil := flags&metadata.CLEAR_STENCIL != 0 && hasStencil(img.Format)
	if !clearDepth && !clearStencil {
		return
	}
	e.endPass()
	attachment := depthAttachment(img, false)
	if clearDepth {
		attachment.DepthLoadOp = wgpu.LoadOpClear
		attachment.DepthClearValue = depth
	}
	if clearStencil {
		attachment.StencilLoadOp = wgpu.LoadOpClear
		attachment.StencilClearValue = uint32(stencil)
	}
	pass := e.Handle.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:                  "clear_depth_stencil",
		DepthStencilAttachment: attachment,
	})
	pass.End()
	pass.Release()
}

// depthAttachment loads and stores every aspect the format has, except a read-only depth.
func depthAttachment(img *Image, readOnlyDepth bool) *wgpu.RenderPassDepthStencilAttachment {
	a := &wgpu.RenderPassDepthStencilAttachment{
		View:          img.View,
		DepthReadOnly: readOnlyDepth,
	}
	if !readOnlyDepth {
		a.DepthLoadOp, a.DepthStoreOp = wgpu.LoadOpLoad, wgpu.StoreOpStore
	}
	if hasStencil(img.Format) {
		a.StencilLoadOp, a.StencilStoreOp = wgpu.LoadOpLoad, wgpu.StoreOpStore
	}
	return a
}

// beginPass opens a render pass over the bound targets unless one is open.
func (d *WebGPUDevice) beginPass(e *Encoder) error {
	if e.inPass() {
		return nil
	}
	rec := &e.rec
	if len(rec.colors) == 0 && rec.depth == nil {
		return fmt.Errorf("draw without render targets: %w", core.ErrInvalidParameter)
	}
	if len(rec.colors) > MAX_COLOR_TARGETS {
		return fmt.Errorf("%d colour targets: %w", len(rec.colors), core.ErrInvalidParameter)
	}
	desc := &wgpu.RenderPassDescriptor{Label: strings.Join(rec.events, "/")}
	for _, c := range rec.colors {
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    c.View,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		})
	}
	if rec.depth != nil {
		desc.DepthStencilAttachment = depthAttachment(rec.depth, rec.readOnlyDepth)
	}
	e.pass = e.Handle.BeginRenderPass(desc)
	return nil
}

// targetSize returns the size and sample count of the bound targets.
func (r *recordState) targetSize() (width, height, samples uint32) {
	if len(r.colors) > 0 {
		c := r.colors[0]
		return c.Width, c.Height, c.Samples
	}
	if r.depth != nil {
		return r.depth.Width, r.depth.Height, r.depth.Samples
	}
	return 0, 0, 1
}

func (d *WebGPUDevice) bindGroup(e *Encoder, layout *bindLayout, table *bindingTable, uavs []*Image) (*wgpu.BindGroup, error) {
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "volumetric_group0",
		Layout:  layout.group,
		Entries: bindGroupEntries(table, uavs, d.samplers),
	})
	if err != nil {
		return nil, fmt.Errorf("bind group: %v: %w", err, core.ErrAPIError)
	}
	e.bindGroups = append(e.bindGroups, bg)
	return bg, nil
}

func (d *WebGPUDevice) Draw(rc metadata.RenderCtx, topo metadata.Topology, vertexCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := encoderOf(rc)
	if e == nil {
		return fmt.Errorf("draw: %w", core.ErrInvalidParameter)
	}
	rec := &e.rec
	if rec.shaders.VS == nil {
		return fmt.Errorf("draw without a vertex program: %w", core.ErrInvalidParameter)
	}
	tessellated := rec.shaders.HS != nil
	if tessellated != (topo == metadata.TOPOLOGY_PATCH_LIST_4) {
		return fmt.Errorf("%s draw with tessellation=%t: %w", topo, tessellated, core.ErrInvalidParameter)
	}

	key := renderPipelineKey{
		vertex:       vertexProgramKey(rec.shaders),
		layout:       bindingLayout(&rec.graphics, nil, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment),
		raster:       rec.raster,
		depthStencil: rec.depthStencil,
		blend:        rec.blend,
		colorCount:   len(rec.colors),
	}
	for i, c := range rec.colors {
		if i < MAX_COLOR_TARGETS {
			key.colors[i] = c.Format
		}
	}
	if rec.depth != nil {
		key.depth = rec.depth.Format
	}
	width, height, samples := rec.targetSize()
	key.samples = samples

	vertex, err := d.shaders.get(d.device, key.vertex)
	if err != nil {
		return err
	}
	var fragment *wgpu.ShaderModule
	if rec.shaders.PS != nil {
		key.fragment = rec.shaders.PS.Key()
		if fragment, err = d.shaders.get(d.device, key.fragment); err != nil {
			return err
		}
	}
	pipeline, err := d.pipelines.renderPipeline(d.device, key, vertex, fragment)
	if err != nil {
		return err
	}
	layout, err := d.pipelines.layout(d.device, key.layout)
	if err != nil {
		return err
	}
	bg, err := d.bindGroup(e, layout, &rec.graphics, nil)
	if err != nil {
		return err
	}

	if err := d.beginPass(e); err != nil {
		return err
	}
	count := vertexCount
	if tessellated {
		count = emulatedVertexCount(vertexCount, rec.shaders.HS)
	}
	vp := rec.viewport
	f := rec.blendFactor
	e.pass.SetPipeline(pipeline)
	e.pass.SetBindGroup(0, bg, nil)
	e.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	e.pass.SetScissorRect(0, 0, width, height)
	e.pass.SetStencilReference(rec.stencilRef)
	e.pass.SetBlendConstant(&wgpu.Color{R: float64(f.X), G: float64(f.Y), B: float64(f.Z), A: float64(f.W)})
	e.pass.Draw(count, 1, 0, 0)
	return nil
}

func (d *WebGPUDevice) Dispatch(rc metadata.RenderCtx, x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := encoderOf(rc)
	if e == nil {
		return fmt.Errorf("dispatch: %w", core.ErrInvalidParameter)
	}
	rec := &e.rec
	if rec.shaders.CS == nil {
		return fmt.Errorf("dispatch without a compute program: %w", core.ErrInvalidParameter)
	}
	e.endPass()

	key := computePipelineKey{
		program: rec.shaders.CS.Key(),
		layout:  bindingLayout(&rec.compute, rec.uavs[:], wgpu.ShaderStageCompute),
	}
	module, err := d.shaders.get(d.device, key.program)
	if err != nil {
		return err
	}
	pipeline, err := d.pipelines.computePipeline(d.device, key, module)
	if err != nil {
		return err
	}
	layout, err := d.pipelines.layout(d.device, key.layout)
	if err != nil {
		return err
	}
	bg, err := d.bindGroup(e, layout, &rec.compute, rec.uavs[:])
	if err != nil {
		return err
	}

	pass := e.Handle.BeginComputePass(&wgpu.ComputePassDescriptor{Label: strings.Join(rec.events, "/")})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(x, y, z)
	pass.End()
	pass.Release()
	return nil
}

func (d *WebGPUDevice) BeginEvent(rc metadata.RenderCtx, name string) {
	if e := encoderOf(rc); e != nil {
		e.rec.events = append(e.rec.events, name)
		core.LogDebug("begin %s", strings.Join(e.rec.events, "/"))
	}
}

func (d *WebGPUDevice) EndEvent(rc metadata.RenderCtx) {
	if e := encoderOf(rc); e != nil && len(e.rec.events) > 0 {
		e.rec.events = e.rec.events[:len(e.rec.events)-1]
	}
}

/** @brief Starts recording into e, creating its command encoder. */
func (d *WebGPUDevice) BeginCommands(e *Encoder) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return fmt.Errorf("begin commands: device released: %w", core.ErrInvalidParameter)
	}
	if e.Handle != nil {
		return fmt.Errorf("encoder is already recording: %w", core.ErrInvalidParameter)
	}
	handle, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %v: %w", err, core.ErrAPIError)
	}
	e.Handle = handle
	e.uploads.reset()
	return nil
}

/** @brief Finishes e and submits it to the queue. */
func (d *WebGPUDevice) Submit(e *Encoder) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Handle == nil {
		return fmt.Errorf("submit: encoder is not recording: %w", core.ErrInvalidParameter)
	}
	e.endPass()
	commands, err := e.Handle.Finish(nil)
	if err != nil {
		e.retire()
		return fmt.Errorf("finish commands: %v: %w", err, core.ErrAPIError)
	}
	d.queue.Submit(commands)
	commands.Release()
	e.retire()
	return nil
}

/** @brief Releases the staging memory of an encoder that will not record again. */
func (d *WebGPUDevice) FreeEncoder(e *Encoder) {
	if e == nil {
		return
	}
	e.endPass()
	e.retire()
	e.uploads.release()
}

func (d *WebGPUDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil
	}
	d.released = true
	d.destroy()
	core.LogInfo("WebGPU device released")
	return nil
}

func (d *WebGPUDevice) destroy() {
	d.pipelines.release()
	d.shaders.release()
	for i, s := range d.samplers {
		if s != nil {
			s.Release()
			d.samplers[i] = nil
		}
	}
	if !d.owned {
		return
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil && d.ownsInstance {
		d.instance.Release()
		d.instance = nil
	}
}
