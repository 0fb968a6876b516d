package systems

import (
	"errors"
	"runtime"

	"github.com/spaghettifunk/volumetric/engine/assets"
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
)

type SystemManagerConfig struct {
	AppName string
	Width   uint32
	Height  uint32
	// 0 uses one worker per CPU.
	Workers   int
	Scene     *config.Scene
	Assets    *assets.AssetManager
	Recording *recording.Options
}

type SystemManager struct {
	JobSystem      *JobSystem
	CameraSystem   *CameraSystem
	RendererSystem *RendererSystem
}

func NewSystemManager(cfg *SystemManagerConfig) (*SystemManager, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	js, err := NewJobSystem(workers, workers)
	if err != nil {
		return nil, err
	}

	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 100,
	})
	if err != nil {
		js.Shutdown()
		return nil, err
	}

	rs, err := NewRendererSystem(&RendererSystemConfig{
		AppName:   cfg.AppName,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Assets:    cfg.Assets,
		Recording: cfg.Recording,
	}, cfg.Scene, js)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	return &SystemManager{
		JobSystem:      js,
		CameraSystem:   cs,
		RendererSystem: rs,
	}, nil
}

func (sm *SystemManager) OnResize(width, height uint32) {
	sm.RendererSystem.OnResize(width, height)
}

func (sm *SystemManager) DrawFrame(packet *FramePacket) error {
	return sm.RendererSystem.DrawFrame(packet)
}

// Shutdown stops the systems in reverse order of creation.
func (sm *SystemManager) Shutdown() error {
	return errors.Join(
		sm.RendererSystem.Shutdown(),
		sm.CameraSystem.Shutdown(),
		sm.JobSystem.Shutdown(),
	)
}
