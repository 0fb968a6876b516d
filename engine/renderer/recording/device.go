package recording

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/volumetric/engine/containers"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const DEFAULT_HISTORY_SIZE = 4096

var (
	ErrInjected = errors.New("injected failure")
	ErrReleased = errors.New("device released")
)

type Options struct {
	Capabilities metadata.DeviceCapabilities
	/** @brief Commands kept for inspection; older ones are evicted. */
	HistorySize int
	/** @brief Fails the n-th texture creation (1-based). 0 disables. */
	FailTextureCreate int
	/** @brief Every Draw and Dispatch fails with ErrInjected when set. */
	FailSubmit bool
}

func DefaultOptions() Options {
	return Options{
		Capabilities: metadata.DeviceCapabilities{Tessellation: true, Compute: true, MaxSamples: 8, DualSourceBlend: true},
		HistorySize:  DEFAULT_HISTORY_SIZE,
	}
}

/**
 * @brief Device that records commands. Safe to share between contexts; each
 * call is serialized.
 */
type Device struct {
	mu   sync.Mutex
	opts Options

	history *containers.RingQueue[Command]
	counts  [CMD_COUNT]int

	textures        map[uuid.UUID]*metadata.Texture
	buffers         map[uuid.UUID]*metadata.Buffer
	texturesCreated int
	released        bool

	events       []string
	shaders      metadata.ShaderSet
	raster       metadata.RasterState
	depthStencil metadata.DepthStencilState
	stencilRef   uint32
	blend        metadata.BlendState
	blendFactor  math.Vec4
	viewport     metadata.Viewport
	targets      []string
	depth        string
	readOnly     bool
	resources    map[metadata.ShaderStage][]string
	uavs         []string
}

func New(opts Options) *Device {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DEFAULT_HISTORY_SIZE
	}
	return &Device{
		opts:      opts,
		history:   containers.NewRingQueue[Command](opts.HistorySize),
		textures:  map[uuid.UUID]*metadata.Texture{},
		buffers:   map[uuid.UUID]*metadata.Buffer{},
		resources: map[metadata.ShaderStage][]string{},
	}
}

/**
 * @brief Builds a device from PlatformDesc.Device: nil selects the default
 * options, an Options value configures a new device and an existing
 * *Device is handed back as is so callers can inspect it.
 */
func Open(native any) (*Device, error) {
	switch n := native.(type) {
	case nil:
		return New(DefaultOptions()), nil
	case Options:
		return New(n), nil
	case *Options:
		return New(*n), nil
	case *Device:
		return n, nil
	default:
		return nil, fmt.Errorf("recording device from %T: %w", native, core.ErrInvalidParameter)
	}
}

func (d *Device) record(c Command) {
	d.counts[c.Type()]++
	d.history.Push(c)
}

func (d *Device) Capabilities() metadata.DeviceCapabilities {
	return d.opts.Capabilities
}

func (d *Device) CreateTexture(desc metadata.TextureDesc) (*metadata.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, ErrReleased
	}
	d.texturesCreated++
	if d.opts.FailTextureCreate > 0 && d.texturesCreated == d.opts.FailTextureCreate {
		return nil, fmt.Errorf("texture %s: %w", desc.Name, ErrInjected)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %s has zero size", desc.Name)
	}
	t := &metadata.Texture{ID: uuid.New(), Desc: desc}
	d.textures[t.ID] = t
	return t, nil
}

func (d *Device) DestroyTexture(texture *metadata.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if texture != nil {
		delete(d.textures, texture.ID)
	}
}

func (d *Device) CreateBuffer(desc metadata.BufferDesc) (*metadata.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, ErrReleased
	}
	b := &metadata.Buffer{ID: uuid.New(), Desc: desc, InternalData: make([]byte, desc.Size)}
	d.buffers[b.ID] = b
	return b, nil
}

func (d *Device) DestroyBuffer(buffer *metadata.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if buffer != nil {
		delete(d.buffers, buffer.ID)
	}
}

// UpdateBuffer copies data into the buffer's InternalData and records a copy.
func (d *Device) UpdateBuffer(rc metadata.RenderCtx, buffer *metadata.Buffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if buffer == nil {
		return fmt.Errorf("update of nil buffer")
	}
	if uint64(len(data)) != buffer.Desc.Size {
		return fmt.Errorf("buffer %s holds %d bytes, got %d", buffer.Desc.Name, buffer.Desc.Size, len(data))
	}
	contents := buffer.InternalData.([]byte)
	copy(contents, data)
	d.record(UpdateBuffer{Buffer: buffer.Desc.Name, Data: append([]byte(nil), data...)})
	return nil
}

func (d *Device) BindConstantBuffers(rc metadata.RenderCtx, stages metadata.ShaderStage, buffers []*metadata.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(buffers))
	for i, b := range buffers {
		if b != nil {
			out[i] = b.Desc.Name
		}
	}
	d.record(BindConstantBuffers{Stages: stages, Buffers: out})
}

func (d *Device) BindSamplers(rc metadata.RenderCtx, stages metadata.ShaderStage, samplers []metadata.SamplerState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(BindSamplers{Stages: stages, Samplers: append([]metadata.SamplerState(nil), samplers...)})
}

var singleStages = []metadata.ShaderStage{
	metadata.SHADER_STAGE_VERTEX,
	metadata.SHADER_STAGE_HULL,
	metadata.SHADER_STAGE_DOMAIN,
	metadata.SHADER_STAGE_PIXEL,
	metadata.SHADER_STAGE_COMPUTE,
}

func (d *Device) BindShaderResources(rc metadata.RenderCtx, stages metadata.ShaderStage, views []*metadata.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := names(views)
	for _, s := range singleStages {
		if stages.Has(s) {
			d.resources[s] = n
		}
	}
	d.record(BindShaderResources{Stages: stages, Views: n})
}

func (d *Device) BindUnorderedAccess(rc metadata.RenderCtx, views []*metadata.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.uavs = names(views)
	d.record(BindUnorderedAccess{Views: d.uavs})
}

func (d *Device) SetRenderTargets(rc metadata.RenderCtx, color []*metadata.Texture, depth *metadata.Texture, readOnlyDepth bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.targets = names(color)
	d.depth = ""
	if depth != nil {
		d.depth = depth.Desc.Name
	}
	d.readOnly = readOnlyDepth
	d.record(SetRenderTargets{Color: d.targets, Depth: d.depth, ReadOnlyDepth: readOnlyDepth})
}

func (d *Device) SetViewport(rc metadata.RenderCtx, viewport metadata.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = viewport
	d.record(SetViewport{Viewport: viewport})
}

func (d *Device) SetRasterState(rc metadata.RenderCtx, state metadata.RasterState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raster = state
	d.record(SetRasterState{State: state})
}

func (d *Device) SetDepthStencilState(rc metadata.RenderCtx, state metadata.DepthStencilState, stencilRef uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthStencil, d.stencilRef = state, stencilRef
	d.record(SetDepthStencilState{State: state, StencilRef: stencilRef})
}

func (d *Device) SetBlendState(rc metadata.RenderCtx, state metadata.BlendState, factor math.Vec4) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blend, d.blendFactor = state, factor
	d.record(SetBlendState{State: state, Factor: factor})
}

// SetShaders rejects a program bound to the wrong stage and compute mixed with graphics.
func (d *Device) SetShaders(rc metadata.RenderCtx, shaders metadata.ShaderSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

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
			return fmt.Errorf("%s bound to stage %#x", s.p.Key(), uint32(s.stage))
		}
	}
	if shaders.CS != nil && (shaders.VS != nil || shaders.HS != nil || shaders.DS != nil || shaders.PS != nil) {
		return fmt.Errorf("compute program %s bound together with graphics programs", shaders.CS.Key())
	}
	if (shaders.HS == nil) != (shaders.DS == nil) {
		return fmt.Errorf("hull and domain programs must be bound together")
	}

	d.shaders = shaders
	d.record(SetShaders{Keys: pipelineOf(shaders)})
	return nil
}

func (d *Device) ClearColor(rc metadata.RenderCtx, target *metadata.Texture, color math.Vec4) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(ClearColor{Target: names([]*metadata.Texture{target})[0], Color: color})
}

func (d *Device) ClearDepthStencil(rc metadata.RenderCtx, target *metadata.Texture, flags metadata.ClearFlags, depth float32, stencil uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(ClearDepthStencil{Target: names([]*metadata.Texture{target})[0], Flags: flags, Depth: depth, Stencil: stencil})
}

func (d *Device) eventPath() string {
	return strings.Join(d.events, "/")
}

func (d *Device) Draw(rc metadata.RenderCtx, topology metadata.Topology, vertexCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.FailSubmit {
		return fmt.Errorf("draw: %w", ErrInjected)
	}
	if d.shaders.VS == nil {
		return fmt.Errorf("draw without a vertex program")
	}
	tessellated := d.shaders.HS != nil
	if tessellated != (topology == metadata.TOPOLOGY_PATCH_LIST_4) {
		return fmt.Errorf("%s draw with hull program %q", topology, key(d.shaders.HS))
	}

	d.record(Draw{
		Event:          d.eventPath(),
		Topology:       topology,
		VertexCount:    vertexCount,
		Shaders:        pipelineOf(d.shaders),
		Raster:         d.raster,
		DepthStencil:   d.depthStencil,
		StencilRef:     d.stencilRef,
		Blend:          d.blend,
		BlendFactor:    d.blendFactor,
		Viewport:       d.viewport,
		Targets:        d.targets,
		Depth:          d.depth,
		ReadOnlyDepth:  d.readOnly,
		PixelResources: d.resources[metadata.SHADER_STAGE_PIXEL],
	})
	return nil
}

func (d *Device) Dispatch(rc metadata.RenderCtx, x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.FailSubmit {
		return fmt.Errorf("dispatch: %w", ErrInjected)
	}
	if d.shaders.CS == nil {
		return fmt.Errorf("dispatch without a compute program")
	}
	d.record(Dispatch{
		Event:     d.eventPath(),
		X:         x,
		Y:         y,
		Z:         z,
		Shader:    d.shaders.CS.Key(),
		Resources: d.resources[metadata.SHADER_STAGE_COMPUTE],
		UAVs:      d.uavs,
	})
	return nil
}

func (d *Device) BeginEvent(rc metadata.RenderCtx, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, name)
	d.record(BeginEvent{Name: name})
}

func (d *Device) EndEvent(rc metadata.RenderCtx) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) > 0 {
		d.events = d.events[:len(d.events)-1]
	}
	d.record(EndEvent{})
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.textures) > 0 || len(d.buffers) > 0 {
		core.LogWarn("recording device released with %d textures and %d buffers alive", len(d.textures), len(d.buffers))
	}
	d.released = true
	return nil
}
