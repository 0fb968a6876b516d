package loaders

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const SPIRV_MAGIC uint32 = 0x07230203

/**
 * @brief Loads a compiled SPIR-V module (.spv) or WGSL source (.wgsl) as
 * raw bytes, rejecting files that cannot be either.
 */
type ShaderLoader struct{}

func checkShader(path string, data []byte) error {
	switch filepath.Ext(path) {
	case ".spv":
		if len(data) < 4 || len(data)%4 != 0 {
			return fmt.Errorf("spir-v %s has %d bytes: %w", path, len(data), core.ErrInvalidParameter)
		}
		if binary.LittleEndian.Uint32(data) != SPIRV_MAGIC {
			return fmt.Errorf("spir-v %s lacks the magic number: %w", path, core.ErrInvalidParameter)
		}
	case ".wgsl":
		if len(data) == 0 || !utf8.Valid(data) {
			return fmt.Errorf("wgsl %s is empty or not utf-8: %w", path, core.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%s is not a shader: %w", path, core.ErrInvalidParameter)
	}
	return nil
}

func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params any) (*metadata.Resource, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := checkShader(path, data); err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeShader,
		Name:     resourceName(path, params),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}
