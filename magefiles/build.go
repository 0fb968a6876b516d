//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/volumetric/engine/assets"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

type Build mg.Namespace

const (
	shaderSourceDir = "shaders"
	assetsDir       = "assets"
)

var shaderProfiles = map[metadata.ShaderStage]string{
	metadata.SHADER_STAGE_VERTEX:  "vs_6_0",
	metadata.SHADER_STAGE_HULL:    "hs_6_0",
	metadata.SHADER_STAGE_DOMAIN:  "ds_6_0",
	metadata.SHADER_STAGE_PIXEL:   "ps_6_0",
	metadata.SHADER_STAGE_COMPUTE: "cs_6_0",
}

// Compiles every shader permutation to SPIR-V with dxc and translates the
// SPIR-V to WGSL with naga.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/volumetric", "."), withStream())
	return err
}

func buildShaders() error {
	for _, format := range []assets.ShaderFormat{assets.SHADER_FORMAT_SPIRV, assets.SHADER_FORMAT_WGSL} {
		if err := os.MkdirAll(filepath.Join(assetsDir, "shaders", format.String()), 0o755); err != nil {
			return err
		}
	}

	for _, perm := range metadata.AllPermutations() {
		key := perm.Key()
		source := filepath.Join(shaderSourceDir, perm.Program.String()+".hlsl")
		spirv := assets.ShaderPath(assetsDir, key, assets.SHADER_FORMAT_SPIRV)
		wgsl := assets.ShaderPath(assetsDir, key, assets.SHADER_FORMAT_WGSL)

		profile, ok := shaderProfiles[perm.Program.Stage()]
		if !ok {
			return fmt.Errorf("no shader profile for %s", key)
		}
		args := []string{"-spirv", "-fvk-invert-y", "-T", profile, "-E", "main", "-Fo", spirv}
		for _, define := range perm.Defines() {
			args = append(args, "-D", define)
		}
		args = append(args, source)
		if _, err := executeCmd("dxc", withArgs(args...)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		// WebGPU has no hull or domain stage.
		if stage := perm.Program.Stage(); stage == metadata.SHADER_STAGE_HULL || stage == metadata.SHADER_STAGE_DOMAIN {
			continue
		}
		if _, err := executeCmd("naga", withArgs(spirv, wgsl)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return copyTessellationPrograms()
}

// The vertex programs that emulate tessellation on WebGPU are written in
// WGSL directly and copied as they are.
func copyTessellationPrograms() error {
	sources, err := filepath.Glob(filepath.Join(shaderSourceDir, "wgsl", "*.wgsl"))
	if err != nil {
		return err
	}
	for _, source := range sources {
		data, err := os.ReadFile(source)
		if err != nil {
			return err
		}
		target := filepath.Join(assetsDir, "shaders", assets.SHADER_FORMAT_WGSL.String(), filepath.Base(source))
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
