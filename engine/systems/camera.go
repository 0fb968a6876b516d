package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/components"
)

/** @brief A fixed eye position looking at the scene origin. */
type Viewpoint struct {
	Position math.Vec3
	Up       math.Vec3
}

// The four eye positions the testbed cycles through.
var DefaultViewpoints = []Viewpoint{
	{Position: math.NewVec3(0, 0, -17.5), Up: math.NewVec3(0, 1, 0)},
	{Position: math.NewVec3(0, 17.5, 0), Up: math.NewVec3(0, 0, -1)},
	{Position: math.NewVec3(0, -17.5, 0), Up: math.NewVec3(0, 0, -1)},
	{Position: math.NewVec3(17.5, 0, 0), Up: math.NewVec3(0, 1, 0)},
}

type CameraSystem struct {
	Config *CameraSystemConfig

	mu     sync.Mutex
	lookup map[string]*components.CameraLookup
	nextID uint16
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config == nil || config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0: %w", core.ErrInvalidParameter)
		core.LogError(err.Error())
		return nil, err
	}
	return &CameraSystem{
		Config:        config,
		lookup:        make(map[string]*components.CameraLookup, config.MaxCameraCount),
		DefaultCamera: components.NewCamera(),
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	clear(cs.lookup)
	return nil
}

/**
 * @brief Acquires a camera by name, creating it on first use.
 * Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.lookup[name]
	if !ok {
		if len(cs.lookup) >= int(cs.Config.MaxCameraCount) {
			err := fmt.Errorf("camera %q: all %d slots in use: %w", name, cs.Config.MaxCameraCount, core.ErrResourceFailure)
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		entry = &components.CameraLookup{ID: cs.nextID, Camera: components.NewCamera()}
		cs.nextID++
		cs.lookup[name] = entry
	}
	entry.ReferenceCount++
	return entry.Camera, nil
}

/**
 * @brief Releases a camera with the given name. When the counter reaches 0
 * the camera is dropped.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.lookup[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup for %q. Nothing was done.", name)
		return
	}
	entry.ReferenceCount--
	if entry.ReferenceCount < 1 {
		delete(cs.lookup, name)
	}
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}

// SetViewpoint places the camera at viewpoint index i (wrapping) looking at the origin.
func SetViewpoint(c *components.Camera, i int) {
	vp := DefaultViewpoints[i%len(DefaultViewpoints)]
	c.LookAt(vp.Position, math.NewVec3Zero(), vp.Up)
}
