package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/volumetric/engine/assets/loaders"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes the assets directory, loads scene files and shader
 * binaries, and watches the tree so edits are announced through the event
 * system (EVENT_CODE_CONFIG_CHANGED, EVENT_CODE_SHADER_CHANGED).
 */
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	// Shader bytes by path, dropped when the file changes.
	shaders map[string][]byte

	mutex sync.RWMutex

	done     chan struct{}
	stopped  sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("asset watcher: %v: %w", err, core.ErrResourceFailure)
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		shaders:  make(map[string][]byte),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	am.root = filepath.Clean(assetsDir)

	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeConfig, &loaders.ConfigLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})

	if err := am.addRecursive(am.root); err != nil {
		return err
	}

	am.stopped.Add(1)
	go am.start()

	core.LogInfo("asset manager watching %s (%d assets)", am.root, len(am.assets))
	return nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *AssetManager) pathOf(name string, resourceType metadata.ResourceType, params any) (string, error) {
	switch resourceType {
	case metadata.ResourceTypeConfig:
		return filepath.Join(am.root, "config", name+".toml"), nil
	case metadata.ResourceTypeShader:
		format, _ := params.(ShaderFormat)
		return ShaderPath(am.root, name, format), nil
	case metadata.ResourceTypeBinary:
		return filepath.Join(am.root, name), nil
	default:
		return "", fmt.Errorf("unknown resource type %d: %w", resourceType, core.ErrInvalidParameter)
	}
}

/**
 * @brief Loads an asset by name: a scene name for configs, a program key
 * for shaders (params is the ShaderFormat), a relative path for binaries.
 */
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params any) (*metadata.Resource, error) {
	path, err := am.pathOf(name, resourceType, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset not found: %s: %w", path, core.ErrResourceFailure)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type %d: %w", asset.Type, core.ErrInvalidParameter)
	}

	return loader.Load(path, asset.Type, map[string]string{"name": name})
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return fmt.Errorf("nil asset: %w", core.ErrInvalidParameter)
	}
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return fmt.Errorf("no loader registered for asset type %d: %w", asset.Type, core.ErrInvalidParameter)
	}
	return loader.Unload(asset)
}

/**
 * @brief Returns a shader lookup for devices consuming format. Bytes stay
 * cached until the file changes on disk.
 */
func (am *AssetManager) ShaderSource(format ShaderFormat) func(key string) ([]byte, error) {
	return func(key string) ([]byte, error) {
		path := ShaderPath(am.root, key, format)

		am.mutex.RLock()
		data, ok := am.shaders[path]
		am.mutex.RUnlock()
		if ok {
			return data, nil
		}

		res, err := am.LoadAsset(key, metadata.ResourceTypeShader, format)
		if err != nil {
			return nil, fmt.Errorf("shader %s: %w", key, err)
		}
		data = res.Data.([]byte)

		am.mutex.Lock()
		am.shaders[path] = data
		am.mutex.Unlock()
		return data, nil
	}
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.stopped.Wait()
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	defer am.stopped.Done()
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogError("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(filepath.Clean(e.Name), true)
			}
			// A removed path may have been a directory; removing an unknown watch is harmless.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(filepath.Clean(e.Name))
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(filepath.Clean(walkPath), false)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, notify bool) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path: path,
		Type: assetType,
	}
	delete(am.shaders, path)
	am.mutex.Unlock()

	if !notify {
		return
	}
	ctx := core.EventContext{}
	ctx.Data.Path = path
	switch assetType {
	case metadata.ResourceTypeConfig:
		core.LogDebug("scene file changed: %s", path)
		core.EventFire(core.EVENT_CODE_CONFIG_CHANGED, am, ctx)
	case metadata.ResourceTypeShader:
		core.LogDebug("shader changed: %s", path)
		core.EventFire(core.EVENT_CODE_SHADER_CHANGED, am, ctx)
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
	delete(am.shaders, path)
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".toml":
		return metadata.ResourceTypeConfig
	case ".spv", ".wgsl":
		return metadata.ResourceTypeShader
	case ".bin":
		return metadata.ResourceTypeBinary
	default:
		return metadata.ResourceTypeNone
	}
}
