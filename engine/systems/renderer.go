package systems

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/volumetric/engine/assets"
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer"
	"github.com/spaghettifunk/volumetric/engine/renderer/components"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
)

// Frames to wait after the last resize before contexts are rebuilt.
const DEFAULT_RESIZE_SETTLE_FRAMES uint8 = 30

/** @brief What the game asks the renderer to draw this frame. */
type FramePacket struct {
	DeltaTime float64
	/** @brief Indices into the scene's lights. Empty renders every light. */
	Lights []int
	/** @brief Moves every light this frame. The zero matrix means identity. */
	LightTransform math.Mat4
	/** @brief Multiplies the configured light intensities per channel. Zero leaves them as configured. */
	Tint       math.Vec3
	DebugFlags metadata.DebugFlags
}

type RendererSystemConfig struct {
	AppName string
	// Initial framebuffer size.
	Width  uint32
	Height uint32
	// 0 selects DEFAULT_RESIZE_SETTLE_FRAMES.
	ResizeSettleFrames uint8
	/** @brief Shader source for the GPU devices. Optional. */
	Assets *assets.AssetManager
	/** @brief Options of the recording devices. Optional. */
	Recording *recording.Options
}

/**
 * @brief One volumetric context rendering through a camera, together
 * with the device it owns and the targets standing in for the host
 * scene.
 */
type RenderView struct {
	Name    string
	Camera  *components.Camera
	Metrics *core.Metrics

	host       frameHost
	context    *renderer.Context
	sceneColor *metadata.Texture
	sceneDepth *metadata.Texture
	shadowMap  *metadata.Texture
	width      uint32
	height     uint32
	clock      *core.Clock
}

func (v *RenderView) Context() *renderer.Context {
	return v.context
}

func (v *RenderView) Device() renderer.Device {
	if v.host == nil {
		return nil
	}
	return v.host.Device()
}

func (v *RenderView) live() bool {
	return v.context != nil
}

// A light ready to be rendered: its descriptor and the shadow map layout.
type frameLight struct {
	desc   metadata.LightDesc
	shadow metadata.ShadowMapDesc
}

// Everything the view jobs share for one frame. Read only once built.
type frameInput struct {
	scene      *config.Scene
	medium     metadata.MediumDesc
	volume     metadata.VolumeDesc
	lights     []frameLight
	fogLight   math.Vec3
	debugFlags metadata.DebugFlags
}

type RendererSystem struct {
	config *RendererSystemConfig
	jobs   *JobSystem

	mu    sync.Mutex
	scene *config.Scene
	views map[string]*RenderView

	FrameNumber uint64
	// The current framebuffer width.
	FramebufferWidth uint32
	// The current framebuffer height.
	FramebufferHeight uint32
	// Indicates if the window is currently being resized.
	Resizing bool
	// The current number of frames since the last resize operation.
	// Only set if resizing = true. Otherwise 0.
	FramesSinceResize uint8

	pendingScene   *config.Scene
	pendingRebuild bool
}

func NewRendererSystem(cfg *RendererSystemConfig, scene *config.Scene, jobs *JobSystem) (*RendererSystem, error) {
	if cfg == nil || scene == nil || jobs == nil {
		return nil, fmt.Errorf("func NewRendererSystem - missing config, scene or job system: %w", core.ErrInvalidParameter)
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	if cfg.ResizeSettleFrames == 0 {
		cfg.ResizeSettleFrames = DEFAULT_RESIZE_SETTLE_FRAMES
	}
	return &RendererSystem{
		config:            cfg,
		jobs:              jobs,
		scene:             scene,
		views:             map[string]*RenderView{},
		FramebufferWidth:  cfg.Width,
		FramebufferHeight: cfg.Height,
	}, nil
}

// Scene returns the newest scene, including one queued for the next frame.
func (r *RendererSystem) Scene() *config.Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingScene != nil {
		return r.pendingScene
	}
	return r.scene
}

func (r *RendererSystem) deviceConfig() DeviceConfig {
	return DeviceConfig{
		Platform:  r.scene.Device.Platform,
		Debug:     r.scene.Device.Debug,
		AppName:   r.config.AppName,
		Assets:    r.config.Assets,
		Recording: r.config.Recording,
	}
}

/** @brief Creates a view rendering through camera at the current framebuffer size. */
func (r *RendererSystem) CreateView(name string, camera *components.Camera) (*RenderView, error) {
	if name == "" || camera == nil {
		return nil, fmt.Errorf("func CreateView - name and camera are required: %w", core.ErrInvalidParameter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.views[name]; ok {
		return nil, fmt.Errorf("view %q already exists: %w", name, core.ErrInvalidParameter)
	}
	v := &RenderView{Name: name, Camera: camera, Metrics: core.NewMetrics(), clock: core.NewClock()}
	if err := r.build(v); err != nil {
		return nil, err
	}
	r.views[name] = v
	return v, nil
}

func (r *RendererSystem) GetView(name string) (*RenderView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[name]
	return v, ok
}

func (r *RendererSystem) DestroyView(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("view %q not found: %w", name, core.ErrInvalidParameter)
	}
	delete(r.views, name)
	return r.teardown(v)
}

// build opens a device, creates the context on it and the host targets.
func (r *RendererSystem) build(v *RenderView) error {
	width, height := r.FramebufferWidth, r.FramebufferHeight
	host, err := openFrameHost(r.deviceConfig())
	if err != nil {
		core.LogError("view %s: opening %s device: %s", v.Name, r.scene.Device.Platform, err)
		return err
	}

	desc := r.scene.ContextDesc(width, height)
	ctx, err := renderer.CreateContext(host.PlatformDesc(), &desc)
	if err != nil {
		host.Release()
		host.Device().Release()
		return err
	}
	v.host, v.context = host, ctx
	v.width, v.height = width, height

	if err := r.createTargets(v, desc.Framebuffer.Samples); err != nil {
		r.teardown(v)
		return err
	}
	core.LogInfo("view %s: %s context %s at %dx%d", v.Name, ctx.Platform(), ctx.ID, width, height)
	return nil
}

func (r *RendererSystem) createTargets(v *RenderView, samples uint32) error {
	dev := v.host.Device()
	res := r.scene.ShadowMap.Resolution

	var err error
	if v.sceneColor, err = dev.CreateTexture(metadata.TextureDesc{
		Name: v.Name + "_scene_color", Width: v.width, Height: v.height, Samples: samples,
		Format: metadata.TEXTURE_FORMAT_RGBA16F,
		Usage:  metadata.TEXTURE_USAGE_RENDER_TARGET | metadata.TEXTURE_USAGE_SHADER_RESOURCE,
	}); err != nil {
		return err
	}
	if v.sceneDepth, err = dev.CreateTexture(metadata.TextureDesc{
		Name: v.Name + "_scene_depth", Width: v.width, Height: v.height, Samples: samples,
		Format: metadata.TEXTURE_FORMAT_D24S8,
		Usage:  metadata.TEXTURE_USAGE_DEPTH_STENCIL | metadata.TEXTURE_USAGE_SHADER_RESOURCE,
	}); err != nil {
		return err
	}
	v.shadowMap, err = dev.CreateTexture(metadata.TextureDesc{
		Name: v.Name + "_shadow_map", Width: res, Height: res, Samples: 1,
		Format: metadata.TEXTURE_FORMAT_D32F,
		Usage:  metadata.TEXTURE_USAGE_DEPTH_STENCIL | metadata.TEXTURE_USAGE_SHADER_RESOURCE,
	})
	return err
}

// teardown waits for the view's commands, then frees its targets and context.
func (r *RendererSystem) teardown(v *RenderView) error {
	if !v.live() {
		return nil
	}
	v.host.Release()
	dev := v.host.Device()
	for _, t := range []**metadata.Texture{&v.sceneColor, &v.sceneDepth, &v.shadowMap} {
		if *t != nil {
			dev.DestroyTexture(*t)
			*t = nil
		}
	}
	err := renderer.ReleaseContext(v.context)
	v.context, v.host = nil, nil
	return err
}

func (r *RendererSystem) rebuild(v *RenderView) error {
	if err := r.teardown(v); err != nil {
		core.LogWarn("view %s: releasing context: %s", v.Name, err)
	}
	if err := r.build(v); err != nil {
		return err
	}
	ctx := core.EventContext{}
	ctx.Data.U32[0], ctx.Data.U32[1] = v.width, v.height
	core.EventFire(core.EVENT_CODE_CONTEXT_RECREATED, v, ctx)
	return nil
}

func (r *RendererSystem) rebuildAll() error {
	var errs []error
	for _, v := range r.sortedViews() {
		if err := r.rebuild(v); err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", v.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *RendererSystem) sortedViews() []*RenderView {
	views := make([]*RenderView, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func (r *RendererSystem) OnResize(width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Flag as resizing and store the change, but wait to regenerate.
	r.Resizing = true
	r.FramebufferWidth = width
	r.FramebufferHeight = height
	r.FramesSinceResize = 0
}

/**
 * @brief Queues a new scene for the next frame. Contexts are rebuilt only
 * when a setting they were created with changed.
 */
func (r *RendererSystem) ApplyScene(scene *config.Scene) error {
	if scene == nil {
		return fmt.Errorf("func ApplyScene - nil scene: %w", core.ErrInvalidParameter)
	}
	if err := scene.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingScene = scene
	return nil
}

/** @brief Rebuilds every context on the next frame, reloading its shaders. */
func (r *RendererSystem) ReloadShaders() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingRebuild = true
}

// applyPending swaps in a queued scene and rebuilds what it invalidated.
func (r *RendererSystem) applyPending() error {
	rebuild := r.pendingRebuild
	if next := r.pendingScene; next != nil {
		prev := r.scene
		r.scene = next
		r.pendingScene = nil
		if next.RequiresNewContext(prev) || next.ShadowMap != prev.ShadowMap {
			rebuild = true
		}
		if lvl := next.LogLevel(); lvl != prev.LogLevel() {
			core.SetLogLevel(lvl)
		}
		core.LogInfo("scene updated (context rebuild: %t)", rebuild)
	}
	r.pendingRebuild = false
	if rebuild {
		return r.rebuildAll()
	}
	return nil
}

func (r *RendererSystem) buildFrame(packet *FramePacket) *frameInput {
	transform := packet.LightTransform
	if transform.IsZero() {
		transform = math.NewMat4Identity()
	}
	tint := packet.Tint
	if tint == (math.Vec3{}) {
		tint = math.NewVec3One()
	}

	in := &frameInput{
		scene:      r.scene,
		medium:     r.scene.MediumDesc(),
		volume:     r.scene.VolumeDesc(),
		debugFlags: packet.DebugFlags,
	}
	indices := packet.Lights
	if len(indices) == 0 {
		indices = make([]int, len(r.scene.Lights))
		for i := range indices {
			indices[i] = i
		}
	}
	for _, i := range indices {
		if i < 0 || i >= len(r.scene.Lights) {
			core.LogWarn("light index %d out of range, %d lights configured", i, len(r.scene.Lights))
			continue
		}
		l := &r.scene.Lights[i]
		_, viewProj := l.Viewpoint(transform)
		desc := l.Desc(transform)
		desc.Intensity = desc.Intensity.Mul(tint)
		in.lights = append(in.lights, frameLight{desc: desc, shadow: r.scene.ShadowMapDesc(l, viewProj)})
	}
	if len(in.lights) > 0 {
		in.fogLight = in.lights[0].desc.Intensity
	}
	return in
}

/**
 * @brief Renders every view. Each view records on its own job; a view
 * whose context failed is rebuilt before the next frame.
 */
func (r *RendererSystem) DrawFrame(packet *FramePacket) error {
	if packet == nil {
		return fmt.Errorf("func DrawFrame - nil packet: %w", core.ErrInvalidParameter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FrameNumber++

	// Make sure the window is not currently being resized by waiting a designated
	// number of frames after the last resize operation before rebuilding.
	if r.Resizing {
		r.FramesSinceResize++
		if r.FramesSinceResize < r.config.ResizeSettleFrames {
			return nil
		}
		r.FramesSinceResize = 0
		r.Resizing = false
		if r.FramebufferWidth == 0 || r.FramebufferHeight == 0 {
			return nil
		}
		r.pendingRebuild = true
	}
	if err := r.applyPending(); err != nil {
		return err
	}

	in := r.buildFrame(packet)
	views := r.sortedViews()
	tasks := make([]metadata.JobTask, 0, len(views))
	for _, v := range views {
		if !v.live() {
			continue
		}
		view := v
		tasks = append(tasks, metadata.JobTask{
			Name:        "render_view_" + view.Name,
			InputParams: in,
			OnStart: func(input any, out chan<- any) error {
				return r.renderView(view, input.(*frameInput), out)
			},
			OnComplete: func(results []any) {
				for _, res := range results {
					if stats, ok := res.(renderer.Stats); ok {
						core.LogDebug("view %s frame %d: %d volumes, accumulate %s, volumes %s, apply %s",
							view.Name, stats.Frames, stats.Volumes, stats.Accumulate, stats.RenderVolume, stats.Apply)
					}
				}
			},
		})
	}

	var errs []error
	for i, err := range r.jobs.RunAndWait(tasks) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tasks[i].Name, err))
		}
	}
	for _, v := range views {
		if !v.live() {
			continue
		}
		// A frame cut short leaves the context mid-cycle.
		if state := v.context.State(); state != renderer.CONTEXT_STATE_READY {
			core.LogWarn("view %s: context left in state %s, rebuilding it next frame", v.Name, state)
			r.pendingRebuild = true
		}
	}
	return errors.Join(errs...)
}

func (r *RendererSystem) renderView(v *RenderView, in *frameInput, out chan<- any) error {
	v.clock.Start()
	rc, err := v.host.Begin()
	if err != nil {
		return err
	}
	err = r.record(v, rc, in)
	if serr := v.host.Submit(rc); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return err
	}
	v.clock.Update()
	v.Metrics.Update(v.clock.Seconds())
	v.clock.Stop()
	out <- v.context.Stats()
	return nil
}

// record runs one accumulation cycle against cleared scene targets.
func (r *RendererSystem) record(v *RenderView, rc metadata.RenderCtx, in *frameInput) error {
	dev := v.host.Device()
	ctx := v.context

	dev.ClearColor(rc, v.sceneColor, math.NewVec4(0, 0, 0, 1))
	dev.ClearDepthStencil(rc, v.sceneDepth, metadata.CLEAR_DEPTH|metadata.CLEAR_STENCIL, 1.0, 0)
	dev.ClearDepthStencil(rc, v.shadowMap, metadata.CLEAR_DEPTH, 1.0, 0)

	viewer := v.Camera.ViewerDesc(v.width, v.height)
	if err := ctx.BeginAccumulation(rc, v.sceneDepth, &viewer, &in.medium, in.debugFlags); err != nil {
		return err
	}
	for i := range in.lights {
		l := &in.lights[i]
		if err := ctx.RenderVolume(rc, v.shadowMap, &l.shadow, &l.desc, &in.volume); err != nil {
			return err
		}
	}
	if err := ctx.EndAccumulation(rc); err != nil {
		return err
	}
	pp := in.scene.PostprocessDesc(viewer.ViewProj, in.fogLight)
	return ctx.ApplyLighting(rc, v.sceneColor, v.sceneDepth, &pp)
}

func (r *RendererSystem) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, v := range r.sortedViews() {
		if err := r.teardown(v); err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", v.Name, err))
		}
		delete(r.views, v.Name)
	}
	return errors.Join(errs...)
}
