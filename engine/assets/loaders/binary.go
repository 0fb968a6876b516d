package loaders

import (
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

type BinaryLoader struct{}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrResourceFailure)
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, core.ErrResourceFailure)
	}
	return buf, nil
}

// resourceName takes the name from params when the caller passed one.
func resourceName(path string, params any) string {
	if p, ok := params.(map[string]string); ok && p["name"] != "" {
		return p["name"]
	}
	return path
}

func (bl *BinaryLoader) Load(path string, assetType metadata.ResourceType, params any) (*metadata.Resource, error) {
	buf, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeBinary,
		Name:     resourceName(path, params),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}
