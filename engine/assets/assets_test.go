package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const applyKey = "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=NONE]"

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(out, 0x07230203)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*(i+1):], w)
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "scene.toml"), []byte("[log]\nlevel = \"warn\"\n"))
	writeFile(t, ShaderPath(root, applyKey, SHADER_FORMAT_SPIRV), spirv(1, 2))
	writeFile(t, ShaderPath(root, applyKey, SHADER_FORMAT_WGSL), []byte("@fragment fn main() {}"))
	writeFile(t, filepath.Join(root, "README.md"), []byte("ignored"))

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { am.Shutdown() })
	return am, root
}

func TestShaderFileName(t *testing.T) {
	assert.Equal(t, "Apply_PS.SAMPLEMODE-SINGLE.UPSAMPLEMODE-POINT.FOGMODE-NONE.spv", ShaderFileName(applyKey, SHADER_FORMAT_SPIRV))
	assert.Equal(t, "A__B.X-1.wgsl", ShaderFileName("A+B[X=1]", SHADER_FORMAT_WGSL))
	assert.Equal(t, filepath.Join("assets", "shaders", "wgsl", "Resolve_PS.wgsl"), ShaderPath("assets", "Resolve_PS", SHADER_FORMAT_WGSL))
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, metadata.ResourceTypeConfig, determineAssetType("a/scene.toml"))
	assert.Equal(t, metadata.ResourceTypeShader, determineAssetType("a/x.spv"))
	assert.Equal(t, metadata.ResourceTypeShader, determineAssetType("a/x.wgsl"))
	assert.Equal(t, metadata.ResourceTypeNone, determineAssetType("a/x.png"))
}

func TestLoadAssets(t *testing.T) {
	am, _ := newManager(t)

	res, err := am.LoadAsset("scene", metadata.ResourceTypeConfig, nil)
	require.NoError(t, err)
	scene, ok := res.Data.(*config.Scene)
	require.True(t, ok)
	assert.Equal(t, core.WarnLevel, scene.LogLevel())
	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)

	spv, err := am.ShaderSource(SHADER_FORMAT_SPIRV)(applyKey)
	require.NoError(t, err)
	assert.Len(t, spv, 12)

	wgsl, err := am.ShaderSource(SHADER_FORMAT_WGSL)(applyKey)
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "fn main")

	_, err = am.ShaderSource(SHADER_FORMAT_SPIRV)("Resolve_PS[SAMPLEMODE=MSAA]")
	assert.ErrorIs(t, err, core.ErrResourceFailure)

	_, err = am.LoadAsset("x", metadata.ResourceTypeNone, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestShaderLoaderRejectsGarbage(t *testing.T) {
	am, root := newManager(t)
	key := "Resolve_PS[SAMPLEMODE=SINGLE]"
	writeFile(t, ShaderPath(root, key, SHADER_FORMAT_SPIRV), []byte{1, 2, 3, 4})
	am.handleFileEvent(filepath.Clean(ShaderPath(root, key, SHADER_FORMAT_SPIRV)), false)

	_, err := am.ShaderSource(SHADER_FORMAT_SPIRV)(key)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestHotReloadFiresEvents(t *testing.T) {
	require.True(t, core.EventInitialize())
	am, root := newManager(t)

	configs := make(chan string, 8)
	shaders := make(chan string, 8)
	listener := &struct{ name string }{"hot-reload-test"}
	require.True(t, core.EventRegister(core.EVENT_CODE_CONFIG_CHANGED, listener, func(code core.SystemEventCode, sender, l any, data core.EventContext) bool {
		configs <- data.Data.Path
		return false
	}))
	require.True(t, core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, listener, func(code core.SystemEventCode, sender, l any, data core.EventContext) bool {
		shaders <- data.Data.Path
		return false
	}))
	t.Cleanup(func() {
		core.EventUnregister(core.EVENT_CODE_CONFIG_CHANGED, listener)
		core.EventUnregister(core.EVENT_CODE_SHADER_CHANGED, listener)
	})

	source := am.ShaderSource(SHADER_FORMAT_SPIRV)
	before, err := source(applyKey)
	require.NoError(t, err)

	shaderPath := ShaderPath(root, applyKey, SHADER_FORMAT_SPIRV)
	writeFile(t, shaderPath, spirv(1, 2, 3, 4))
	select {
	case p := <-shaders:
		assert.Equal(t, filepath.Clean(shaderPath), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no shader change event")
	}
	require.Eventually(t, func() bool {
		after, err := source(applyKey)
		return err == nil && len(after) != len(before)
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(root, "config", "scene.toml"), []byte("[log]\nlevel = \"error\"\n"))
	select {
	case p := <-configs:
		assert.Equal(t, filepath.Join(root, "config", "scene.toml"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no config change event")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
}
