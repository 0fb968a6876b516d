package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/volumetric/engine/assets"
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/platform"
	"github.com/spaghettifunk/volumetric/engine/renderer"
	"github.com/spaghettifunk/volumetric/engine/renderer/components"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// The view the engine renders through the default camera.
const MAIN_VIEW_NAME = "main"

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   atomic.Bool
	platform      *platform.Platform
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	scenePath     string
	scene         *config.Scene
	width         uint32
	height        uint32
	clock         *core.Clock
	lastTime      float64
}

func New(g *Game) (*Engine, error) {
	cfg := g.ApplicationConfig
	if cfg.ScenePath == "" {
		cfg.ScenePath = config.DEFAULT_SCENE_PATH
	}
	if cfg.AssetsPath == "" {
		cfg.AssetsPath = "assets"
	}

	scene, err := config.Load(cfg.ScenePath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if cfg.Platform != "" {
		scene.Device.Platform = cfg.Platform
	}
	if cfg.LogLevel != "" {
		scene.Log.Level = cfg.LogLevel
	}
	if err := scene.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(scene.LogLevel())

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	scenePath, err := filepath.Abs(cfg.ScenePath)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     p,
		assetManager: am,
		scenePath:    scenePath,
		scene:        scene,
		width:        cfg.StartWidth,
		height:       cfg.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_CHANGED, e, e.onReload)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, e, e.onReload)
	core.EventRegister(core.EVENT_CODE_CONTEXT_RECREATED, e, e.onEvent)

	cfg := e.gameInstance.ApplicationConfig
	platformName := e.scene.Device.Platform
	switch {
	case !cfg.Headless:
		if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
			return err
		}
		e.width, e.height = e.platform.FramebufferSize()
	case platformName == renderer.PLATFORM_VULKAN:
		if err := e.platform.StartupHeadless(); err != nil {
			return err
		}
	}

	if err := e.assetManager.Initialize(cfg.AssetsPath); err != nil {
		return err
	}

	if err := renderer.OpenLibrary(nil, nil, metadata.CurrentVersion()); err != nil {
		return err
	}
	systems.RegisterDevices()

	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		AppName: cfg.Name,
		Width:   e.width,
		Height:  e.height,
		Scene:   e.scene,
		Assets:  e.assetManager,
	})
	if err != nil {
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	camera, err := sm.CameraSystem.Acquire(components.DEFAULT_CAMERA_NAME)
	if err != nil {
		return err
	}
	if _, err := sm.RendererSystem.CreateView(MAIN_VIEW_NAME, camera); err != nil {
		return err
	}

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Seconds()

	var frames uint64
	var runningTime float64
	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames

	for e.isRunning.Load() {
		e.platform.PumpMessages()

		if e.isSuspended.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Seconds()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			break
		}

		packet := &systems.FramePacket{DeltaTime: delta}
		if err := e.gameInstance.FnRender(packet, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			break
		}

		if err := e.systemManager.DrawFrame(packet); err != nil {
			core.LogError("frame %d: %s", frames, err)
		}

		frameElapsed := time.Since(frameStart).Seconds()
		core.MetricsUpdate(frameElapsed)
		runningTime += frameElapsed
		if runningTime >= 1.0 {
			fps, frameTime := core.MetricsFrame()
			core.LogDebug("%.1f fps, %.2f ms/frame", fps, frameTime)
			runningTime = 0
		}

		e.lastTime = currentTime
		frames++
		if maxFrames > 0 && frames >= maxFrames {
			core.LogInfo("rendered %d frames, stopping", frames)
			e.isRunning.Store(false)
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
	}
	if renderer.IsLibraryOpen() {
		errs = append(errs, renderer.CloseLibrary())
	}
	errs = append(errs, core.EventShutdown(), e.platform.Shutdown())
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listenerInst any, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	case core.EVENT_CODE_CONTEXT_RECREATED:
		core.LogDebug("context recreated at %dx%d", context.Data.U32[0], context.Data.U32[1])
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listenerInst any, context core.EventContext) bool {
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended.Store(true)
		return true
	}
	if e.isSuspended.Load() {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended.Store(false)
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	e.systemManager.OnResize(width, height)
	return false
}

// onReload runs on the asset watcher goroutine.
func (e *Engine) onReload(code core.SystemEventCode, sender, listenerInst any, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_SHADER_CHANGED:
		core.LogInfo("shader %s changed, rebuilding contexts", context.Data.Path)
		e.systemManager.RendererSystem.ReloadShaders()
	case core.EVENT_CODE_CONFIG_CHANGED:
		path, err := filepath.Abs(context.Data.Path)
		if err != nil || path != e.scenePath {
			return false
		}
		scene, err := config.Load(path)
		if err != nil {
			core.LogError("keeping the current scene: %s", err)
			return false
		}
		// Command line overrides outlive reloads.
		cfg := e.gameInstance.ApplicationConfig
		if cfg.Platform != "" {
			scene.Device.Platform = cfg.Platform
		}
		if cfg.LogLevel != "" {
			scene.Log.Level = cfg.LogLevel
		}
		if err := e.systemManager.RendererSystem.ApplyScene(scene); err != nil {
			core.LogError("keeping the current scene: %s", err)
			return false
		}
		core.LogInfo("scene %s reloaded", path)
	}
	return false
}
