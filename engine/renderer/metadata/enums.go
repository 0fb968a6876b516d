package metadata

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/volumetric/engine/core"
)

func enumString[T ~uint32](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(v))
}

func enumParse[T ~uint32](names []string, text []byte) (T, error) {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, name := range names {
		if name == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("%q is not one of %v: %w", string(text), names, core.ErrInvalidParameter)
}

/** @brief Ratio of the internal buffers to the output framebuffer. */
type DownsampleMode uint32

const (
	DOWNSAMPLE_FULL DownsampleMode = iota
	DOWNSAMPLE_HALF
	DOWNSAMPLE_QUARTER
)

var downsampleModeNames = []string{"FULL", "HALF", "QUARTER"}

func (m DownsampleMode) String() string { return enumString(downsampleModeNames, m) }
func (m DownsampleMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *DownsampleMode) UnmarshalText(text []byte) (err error) {
	*m, err = enumParse[DownsampleMode](downsampleModeNames, text)
	return err
}

/** @brief Sample count of the internal accumulation and depth buffers. */
type MultisampleMode uint32

const (
	MULTISAMPLE_SINGLE MultisampleMode = iota
	MULTISAMPLE_MSAA2
	MULTISAMPLE_MSAA4
)

var multisampleModeNames = []string{"SINGLE", "MSAA2", "MSAA4"}

func (m MultisampleMode) String() string { return enumString(multisampleModeNames, m) }
func (m MultisampleMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *MultisampleMode) UnmarshalText(text []byte) (err error) {
	*m, err = enumParse[MultisampleMode](multisampleModeNames, text)
	return err
}

type FilterMode uint32

const (
	FILTER_NONE FilterMode = iota
	FILTER_TEMPORAL
)

var filterModeNames = []string{"NONE", "TEMPORAL"}

func (m FilterMode) String() string { return enumString(filterModeNames, m) }
func (m FilterMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *FilterMode) UnmarshalText(text []byte) (err error) {
	*m, err = enumParse[FilterMode](filterModeNames, text)
	return err
}

/** @brief Tag of the LightDesc variant. */
type LightType uint32

const (
	LIGHT_TYPE_DIRECTIONAL LightType = iota
	LIGHT_TYPE_SPOTLIGHT
	LIGHT_TYPE_OMNI
)

var lightTypeNames = []string{"DIRECTIONAL", "SPOTLIGHT", "OMNI"}

func (t LightType) String() string { return enumString(lightTypeNames, t) }
func (t LightType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
func (t *LightType) UnmarshalText(text []byte) (err error) {
	*t, err = enumParse[LightType](lightTypeNames, text)
	return err
}

type PhaseFunctionType uint32

const (
	PHASE_FUNCTION_ISOTROPIC PhaseFunctionType = iota
	PHASE_FUNCTION_RAYLEIGH
	PHASE_FUNCTION_HENYEYGREENSTEIN
	PHASE_FUNCTION_MIE_HAZY
	PHASE_FUNCTION_MIE_MURKY
)

var phaseFunctionNames = []string{"ISOTROPIC", "RAYLEIGH", "HENYEYGREENSTEIN", "MIE_HAZY", "MIE_MURKY"}

func (p PhaseFunctionType) String() string { return enumString(phaseFunctionNames, p) }
func (p PhaseFunctionType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
func (p *PhaseFunctionType) UnmarshalText(text []byte) (err error) {
	*p, err = enumParse[PhaseFunctionType](phaseFunctionNames, text)
	return err
}

/** @brief Angular falloff of a spotlight cone. */
type SpotlightFalloffMode uint32

const (
	SPOTLIGHT_FALLOFF_NONE SpotlightFalloffMode = iota
	SPOTLIGHT_FALLOFF_FIXED
	SPOTLIGHT_FALLOFF_CUSTOM
)

var spotlightFalloffNames = []string{"NONE", "FIXED", "CUSTOM"}

func (f SpotlightFalloffMode) String() string { return enumString(spotlightFalloffNames, f) }
func (f SpotlightFalloffMode) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
func (f *SpotlightFalloffMode) UnmarshalText(text []byte) (err error) {
	*f, err = enumParse[SpotlightFalloffMode](spotlightFalloffNames, text)
	return err
}

/** @brief Distance attenuation model for local lights. */
type AttenuationMode uint32

const (
	ATTENUATION_NONE AttenuationMode = iota
	ATTENUATION_POLYNOMIAL
	ATTENUATION_INV_POLYNOMIAL
)

var attenuationModeNames = []string{"NONE", "POLYNOMIAL", "INV_POLYNOMIAL"}

func (a AttenuationMode) String() string { return enumString(attenuationModeNames, a) }
func (a AttenuationMode) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
func (a *AttenuationMode) UnmarshalText(text []byte) (err error) {
	*a, err = enumParse[AttenuationMode](attenuationModeNames, text)
	return err
}

type ShadowMapLayout uint32

const (
	SHADOWMAP_LAYOUT_SIMPLE ShadowMapLayout = iota
	SHADOWMAP_LAYOUT_CASCADE_ATLAS
	SHADOWMAP_LAYOUT_CASCADE_ARRAY
	SHADOWMAP_LAYOUT_PARABOLOID
)

var shadowMapLayoutNames = []string{"SIMPLE", "CASCADE_ATLAS", "CASCADE_ARRAY", "PARABOLOID"}

func (l ShadowMapLayout) String() string { return enumString(shadowMapLayoutNames, l) }
func (l ShadowMapLayout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
func (l *ShadowMapLayout) UnmarshalText(text []byte) (err error) {
	*l, err = enumParse[ShadowMapLayout](shadowMapLayoutNames, text)
	return err
}

type TessellationQuality uint32

const (
	TESSELLATION_QUALITY_LOW TessellationQuality = iota
	TESSELLATION_QUALITY_MEDIUM
	TESSELLATION_QUALITY_HIGH
)

var tessellationQualityNames = []string{"LOW", "MEDIUM", "HIGH"}

func (q TessellationQuality) String() string { return enumString(tessellationQualityNames, q) }
func (q TessellationQuality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}
func (q *TessellationQuality) UnmarshalText(text []byte) (err error) {
	*q, err = enumParse[TessellationQuality](tessellationQualityNames, text)
	return err
}

/** @brief Reconstruction used when compositing a downsampled result. */
type UpsampleQuality uint32

const (
	UPSAMPLE_POINT UpsampleQuality = iota
	UPSAMPLE_BILINEAR
	UPSAMPLE_BILATERAL
)

var upsampleQualityNames = []string{"POINT", "BILINEAR", "BILATERAL"}

func (q UpsampleQuality) String() string { return enumString(upsampleQualityNames, q) }
func (q UpsampleQuality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}
func (q *UpsampleQuality) UnmarshalText(text []byte) (err error) {
	*q, err = enumParse[UpsampleQuality](upsampleQualityNames, text)
	return err
}

/** @brief Bit set of debug switches passed to BeginAccumulation. */
type DebugFlags uint32

const (
	DEBUG_FLAG_NONE        DebugFlags = 0x0
	DEBUG_FLAG_WIREFRAME   DebugFlags = 0x1
	DEBUG_FLAG_NO_BLENDING DebugFlags = 0x2
)

func (f DebugFlags) Has(flag DebugFlags) bool {
	return f&flag == flag && flag != 0
}

func (f DebugFlags) String() string {
	if f == DEBUG_FLAG_NONE {
		return "NONE"
	}
	var parts []string
	if f.Has(DEBUG_FLAG_WIREFRAME) {
		parts = append(parts, "WIREFRAME")
	}
	if f.Has(DEBUG_FLAG_NO_BLENDING) {
		parts = append(parts, "NO_BLENDING")
	}
	if rest := f &^ (DEBUG_FLAG_WIREFRAME | DEBUG_FLAG_NO_BLENDING); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}
