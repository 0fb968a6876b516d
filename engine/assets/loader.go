package assets

import "github.com/spaghettifunk/volumetric/engine/renderer/metadata"

type Loader interface {
	Load(path string, assetType metadata.ResourceType, params any) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
