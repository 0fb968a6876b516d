//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders a few frames on the recording device, no GPU or window needed.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", ".", "-headless", "-platform", "recording", "-frames", "120", "-log", "debug"), withStream())
	return err
}

type Test mg.Namespace

// Runs the unit tests of every package.
func (Test) All() error {
	// the race detector needs cgo
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}
