package loaders

import (
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief Loads a TOML scene file into a *config.Scene. */
type ConfigLoader struct{}

func (cl *ConfigLoader) Load(path string, assetType metadata.ResourceType, params any) (*metadata.Resource, error) {
	scene, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeConfig,
		Name:     resourceName(path, params),
		FullPath: path,
		Data:     scene,
	}, nil
}

func (cl *ConfigLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}
