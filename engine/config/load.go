package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/volumetric/engine/core"
)

const DEFAULT_SCENE_PATH = "assets/config/scene.toml"

/**
 * @brief Reads a scene file. Keys the file leaves out keep their default
 * values; unknown keys are rejected.
 */
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %v: %w", path, err, core.ErrResourceFailure)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (*Scene, error) {
	s := Default()
	// Lists replace the defaults wholesale, applyDefaults refills them if left empty.
	s.Medium.PhaseTerms = nil
	s.Lights = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			core.LogError("scene decode failed at %d:%d: %s", row, col, derr.Error())
		}
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidParameter)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

/** @brief Encodes the scene, e.g. to seed a scene file with the defaults. */
func (s *Scene) Marshal() ([]byte, error) {
	return toml.Marshal(s)
}
