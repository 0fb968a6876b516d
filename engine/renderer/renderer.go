package renderer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

type library struct {
	mu       sync.Mutex
	open     bool
	contexts map[uuid.UUID]*Context
}

var lib = &library{contexts: map[uuid.UUID]*Context{}}

/**
 * @brief Opens the library. The caller's version must match the library's
 * major and minor version. nil handlers select the defaults (Go allocation
 * and an assert handler that logs). Opening again re-registers the handlers.
 */
func OpenLibrary(allocator core.AllocatorHandler, assert core.AssertHandler, version metadata.VersionDesc) error {
	current := metadata.CurrentVersion()
	if version != current {
		err := fmt.Errorf("caller built against %s, library is %s: %w", version, current, core.ErrInvalidVersion)
		core.LogError(err.Error())
		return err
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	core.SetHandlers(allocator, assert)
	lib.open = true
	core.LogInfo("volumetric lighting library %s opened", current)
	return nil
}

/**
 * @brief Closes the library. Contexts still alive are released; their
 * owners must not use them afterwards.
 */
func CloseLibrary() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if !lib.open {
		return core.ErrUninitialized
	}
	for id, ctx := range lib.contexts {
		core.LogWarn("context %s still alive at CloseLibrary, releasing it", id)
		if err := ctx.release(); err != nil {
			core.LogError("releasing context %s: %s", id, err)
		}
		delete(lib.contexts, id)
	}
	core.ResetHandlers()
	lib.open = false
	return nil
}

func IsLibraryOpen() bool {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.open
}

/**
 * @brief Creates a context on the device registered under
 * platform.Platform. The device must support tessellation and compute and
 * the requested internal sample count.
 */
func CreateContext(platform *metadata.PlatformDesc, desc *metadata.ContextDesc) (*Context, error) {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if !lib.open {
		return nil, core.ErrUninitialized
	}
	if platform == nil || desc == nil {
		return nil, fmt.Errorf("CreateContext: missing platform or context descriptor: %w", core.ErrInvalidParameter)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("CreateContext: %w", err)
	}

	factory, ok := lookupDevice(platform.Platform)
	if !ok {
		err := fmt.Errorf("CreateContext: platform %q not registered (available %v): %w", platform.Platform, AvailableDevices(), core.ErrInvalidParameter)
		core.LogError(err.Error())
		return nil, err
	}

	device, err := factory(platform.Device)
	if err != nil {
		if core.StatusOf(err) == core.STATUS_UNKNOWN {
			err = fmt.Errorf("%w: %v", core.ErrAPIError, err)
		}
		core.LogError("CreateContext: creating %s device: %s", platform.Platform, err)
		return nil, fmt.Errorf("CreateContext: %w", err)
	}

	ctx := newContext(*desc, platform.Platform, device)
	if err := checkCapabilities(device.Capabilities(), ctx); err != nil {
		device.Release()
		core.LogError("CreateContext: %s", err)
		return nil, fmt.Errorf("CreateContext: %w", err)
	}

	res, err := createContextResources(device, ctx)
	if err != nil {
		device.Release()
		core.LogError("CreateContext: %s", err)
		return nil, fmt.Errorf("CreateContext: %w", err)
	}
	ctx.backend = newPassBackend(ctx, device, res)
	ctx.ID = core.IdentifierAquireNewID(ctx)
	lib.contexts[ctx.ID] = ctx

	core.LogDebug("context %s created on %s: %dx%d downsample=%s msaa=%s filter=%s", ctx.ID, platform.Platform,
		desc.Framebuffer.Width, desc.Framebuffer.Height, desc.DownsampleMode, desc.InternalSampleMode, desc.FilterMode)
	return ctx, nil
}

func checkCapabilities(caps metadata.DeviceCapabilities, ctx *Context) error {
	if !caps.Tessellation {
		return fmt.Errorf("device lacks tessellation shaders: %w", core.ErrUnsupportedDevice)
	}
	if !caps.Compute {
		return fmt.Errorf("device lacks compute shaders: %w", core.ErrUnsupportedDevice)
	}
	if samples := ctx.internalSampleCount(); samples > caps.MaxSamples {
		return fmt.Errorf("device supports %d samples, %d requested: %w", caps.MaxSamples, samples, core.ErrUnsupportedDevice)
	}
	if !caps.DualSourceBlend {
		core.LogWarn("device lacks dual-source blending, composite runs without fog")
	}
	return nil
}

/** @brief Frees the context's resources and its device. */
func ReleaseContext(ctx *Context) error {
	if ctx == nil {
		return fmt.Errorf("ReleaseContext: %w", core.ErrInvalidParameter)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	if _, ok := lib.contexts[ctx.ID]; !ok {
		return fmt.Errorf("ReleaseContext: context %s is not live: %w", ctx.ID, core.ErrInvalidParameter)
	}
	delete(lib.contexts, ctx.ID)
	return ctx.release()
}

func (c *Context) release() error {
	c.guard.Lock()
	defer c.guard.Unlock()

	var firstErr error
	if err := c.backend.Release(); err != nil {
		firstErr = err
	}
	if err := c.device.Release(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", core.ErrAPIError, err)
	}
	if err := core.IdentifierReleaseID(c.ID); err != nil {
		core.LogWarn(err.Error())
	}
	c.state = CONTEXT_STATE_RELEASED
	return firstErr
}
