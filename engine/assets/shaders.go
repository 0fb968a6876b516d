package assets

import (
	"path/filepath"
	"strings"
)

/** @brief The shader binary flavour a device consumes. */
type ShaderFormat int

const (
	SHADER_FORMAT_SPIRV ShaderFormat = iota
	SHADER_FORMAT_WGSL
)

func (f ShaderFormat) String() string {
	if f == SHADER_FORMAT_WGSL {
		return "wgsl"
	}
	return "spirv"
}

func (f ShaderFormat) ext() string {
	if f == SHADER_FORMAT_WGSL {
		return ".wgsl"
	}
	return ".spv"
}

var keyReplacer = strings.NewReplacer("[", ".", "]", "", ",", ".", "=", "-", "+", "__")

/**
 * @brief File name of a program key, e.g.
 * "Apply_PS[SAMPLEMODE=SINGLE,FOGMODE=NONE]" becomes
 * "Apply_PS.SAMPLEMODE-SINGLE.FOGMODE-NONE.spv".
 */
func ShaderFileName(key string, format ShaderFormat) string {
	return keyReplacer.Replace(key) + format.ext()
}

// ShaderPath is where the compiled program for key lives under root.
func ShaderPath(root, key string, format ShaderFormat) string {
	return filepath.Join(root, "shaders", format.String(), ShaderFileName(key, format))
}
