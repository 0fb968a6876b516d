/*
Volumetric lighting testbed: renders the scene described by a TOML file
through the engine package.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/volumetric/engine"
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/testbed"
)

func main() {
	cfg := &engine.ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "Volumetric Lighting",
	}
	flag.StringVar(&cfg.ScenePath, "scene", config.DEFAULT_SCENE_PATH, "scene file")
	flag.StringVar(&cfg.AssetsPath, "assets", "assets", "assets directory")
	flag.StringVar(&cfg.Platform, "platform", "", "device platform override (vulkan, webgpu, recording)")
	flag.StringVar(&cfg.LogLevel, "log", "", "log level override")
	flag.BoolVar(&cfg.Headless, "headless", false, "run without a window")
	flag.Uint64Var(&cfg.MaxFrames, "frames", 0, "stop after this many frames")
	flag.Parse()

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the run loop stops on quit, shutdown happens on this goroutine
	go func() {
		<-sigCh
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	if err := e.Run(); err != nil {
		core.LogError(err.Error())
	}
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}
