package metadata

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
)

const (
	VERSION_MAJOR uint32 = 1
	VERSION_MINOR uint32 = 0

	/** @brief Period of the temporal jitter sequence. */
	MAX_JITTER_STEPS uint32 = 8
	/** @brief Depth axis of the light LUT. */
	LIGHT_LUT_DEPTH_RESOLUTION uint32 = 128
	/** @brief View-angle axis of the light and phase LUTs. */
	LIGHT_LUT_WDOTV_RESOLUTION uint32 = 512

	MAX_PHASE_TERMS        = 4
	MAX_SHADOWMAP_ELEMENTS = 4

	/** @brief Stencil value marking pixels not yet covered by a volume. */
	STENCIL_REF uint32 = 0xFF

	SCATTER_EPSILON float32 = 0.000001
)

/** @brief Version the caller was built against. */
type VersionDesc struct {
	Major uint32
	Minor uint32
}

func CurrentVersion() VersionDesc {
	return VersionDesc{Major: VERSION_MAJOR, Minor: VERSION_MINOR}
}

func (v VersionDesc) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

/** @brief Selects the device implementation and hands it the native handles. */
type PlatformDesc struct {
	/** @brief Registry key of the device ("vulkan", "webgpu", "recording"). */
	Platform string
	/** @brief Native device handle(s). Interpreted by the device factory only. */
	Device any
}

type FramebufferDesc struct {
	Width   uint32
	Height  uint32
	Samples uint32
}

/**
 * @brief Fixed configuration of a context. Resources are sized from it, so
 * changing any field requires recreating the context.
 */
type ContextDesc struct {
	Framebuffer        FramebufferDesc
	DownsampleMode     DownsampleMode
	InternalSampleMode MultisampleMode
	FilterMode         FilterMode
}

func (d *ContextDesc) Validate() error {
	if d.Framebuffer.Width == 0 || d.Framebuffer.Height == 0 {
		return fmt.Errorf("framebuffer %dx%d: %w", d.Framebuffer.Width, d.Framebuffer.Height, core.ErrInvalidParameter)
	}
	if d.DownsampleMode > DOWNSAMPLE_QUARTER {
		return fmt.Errorf("downsample mode %s: %w", d.DownsampleMode, core.ErrInvalidParameter)
	}
	if d.InternalSampleMode > MULTISAMPLE_MSAA4 {
		return fmt.Errorf("internal sample mode %s: %w", d.InternalSampleMode, core.ErrInvalidParameter)
	}
	if d.FilterMode > FILTER_TEMPORAL {
		return fmt.Errorf("filter mode %s: %w", d.FilterMode, core.ErrInvalidParameter)
	}
	return nil
}

/** @brief Camera state, supplied fresh every frame. */
type ViewerDesc struct {
	Proj           math.Mat4
	ViewProj       math.Mat4
	EyePosition    math.Vec3
	ViewportWidth  uint32
	ViewportHeight uint32
}

type DirectionalLight struct {
	Direction math.Vec3
}

type SpotlightLight struct {
	Direction   math.Vec3
	Position    math.Vec3
	ZNear       float32
	ZFar        float32
	FalloffMode SpotlightFalloffMode
	// Cone half-angle in radians. The volume shaders receive its cosine.
	FalloffAngle       float32
	FalloffPower       float32
	AttenuationMode    AttenuationMode
	AttenuationFactors [4]float32
}

type OmniLight struct {
	Position           math.Vec3
	ZNear              float32
	ZFar               float32
	AttenuationMode    AttenuationMode
	AttenuationFactors [4]float32
}

/**
 * @brief A light contributing to the accumulation. Type selects which one
 * of Directional, Spotlight or Omni is populated; the others must be nil.
 */
type LightDesc struct {
	Type         LightType
	Intensity    math.Vec3
	LightToWorld math.Mat4

	Directional *DirectionalLight
	Spotlight   *SpotlightLight
	Omni        *OmniLight
}

func NewDirectionalLight(intensity math.Vec3, lightToWorld math.Mat4, v DirectionalLight) LightDesc {
	return LightDesc{
		Type:         LIGHT_TYPE_DIRECTIONAL,
		Intensity:    intensity,
		LightToWorld: lightToWorld,
		Directional:  &v,
	}
}

func NewSpotlight(intensity math.Vec3, lightToWorld math.Mat4, v SpotlightLight) LightDesc {
	return LightDesc{
		Type:         LIGHT_TYPE_SPOTLIGHT,
		Intensity:    intensity,
		LightToWorld: lightToWorld,
		Spotlight:    &v,
	}
}

func NewOmniLight(intensity math.Vec3, lightToWorld math.Mat4, v OmniLight) LightDesc {
	return LightDesc{
		Type:         LIGHT_TYPE_OMNI,
		Intensity:    intensity,
		LightToWorld: lightToWorld,
		Omni:         &v,
	}
}

// Validate checks that the tag is known and its payload is the one populated.
func (l *LightDesc) Validate() error {
	var ok bool
	switch l.Type {
	case LIGHT_TYPE_DIRECTIONAL:
		ok = l.Directional != nil && l.Spotlight == nil && l.Omni == nil
	case LIGHT_TYPE_SPOTLIGHT:
		ok = l.Spotlight != nil && l.Directional == nil && l.Omni == nil
		if ok && l.Spotlight.FalloffMode > SPOTLIGHT_FALLOFF_CUSTOM {
			return fmt.Errorf("spotlight falloff %s: %w", l.Spotlight.FalloffMode, core.ErrInvalidParameter)
		}
	case LIGHT_TYPE_OMNI:
		ok = l.Omni != nil && l.Directional == nil && l.Spotlight == nil
	default:
		return fmt.Errorf("light type %s: %w", l.Type, core.ErrInvalidParameter)
	}
	if !ok {
		return fmt.Errorf("light type %s without a matching payload: %w", l.Type, core.ErrInvalidParameter)
	}
	return nil
}

/** @brief Attenuation mode of a local light, NONE for directional lights. */
func (l *LightDesc) AttenuationMode() AttenuationMode {
	switch l.Type {
	case LIGHT_TYPE_SPOTLIGHT:
		return l.Spotlight.AttenuationMode
	case LIGHT_TYPE_OMNI:
		return l.Omni.AttenuationMode
	default:
		return ATTENUATION_NONE
	}
}

type PhaseTerm struct {
	Func         PhaseFunctionType
	Density      math.Vec3
	Eccentricity float32
}

/** @brief The participating medium. */
type MediumDesc struct {
	Absorption math.Vec3
	PhaseTerms []PhaseTerm
}

func (m *MediumDesc) Validate() error {
	if len(m.PhaseTerms) > MAX_PHASE_TERMS {
		return fmt.Errorf("%d phase terms, at most %d: %w", len(m.PhaseTerms), MAX_PHASE_TERMS, core.ErrInvalidParameter)
	}
	return nil
}

type ShadowMapElement struct {
	OffsetX    uint32
	OffsetY    uint32
	Width      uint32
	Height     uint32
	ViewProj   math.Mat4
	ArrayIndex uint32
}

type ShadowMapDesc struct {
	Layout   ShadowMapLayout
	Width    uint32
	Height   uint32
	Elements []ShadowMapElement
}

func (s *ShadowMapDesc) Validate() error {
	if len(s.Elements) > MAX_SHADOWMAP_ELEMENTS {
		return fmt.Errorf("%d shadow map elements, at most %d: %w", len(s.Elements), MAX_SHADOWMAP_ELEMENTS, core.ErrInvalidParameter)
	}
	if s.Width == 0 || s.Height == 0 {
		return fmt.Errorf("shadow map %dx%d: %w", s.Width, s.Height, core.ErrInvalidParameter)
	}
	return nil
}

type VolumeDesc struct {
	TargetRayResolution float32
	MaxMeshResolution   uint32
	DepthBias           float32
	TessQuality         TessellationQuality
}

/**
 * @brief Coarse grid resolution before hardware tessellation.
 * Unknown qualities behave as HIGH.
 */
func (v *VolumeDesc) CoarseResolution() uint32 {
	switch v.TessQuality {
	case TESSELLATION_QUALITY_LOW:
		return v.MaxMeshResolution / 16
	case TESSELLATION_QUALITY_MEDIUM:
		return v.MaxMeshResolution / 32
	default:
		return v.MaxMeshResolution / 64
	}
}

type PostprocessDesc struct {
	DoFog              bool
	IgnoreSkyFog       bool
	UpsampleQuality    UpsampleQuality
	BlendFactor        float32
	TemporalFactor     float32
	FilterThreshold    float32
	UnjitteredViewProj math.Mat4
	FogLight           math.Vec3
	MultiScattering    float32
}
