package config

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const (
	DEFAULT_SHADOWMAP_RESOLUTION uint32  = 1024
	DEFAULT_LIGHT_RANGE          float32 = 50.0
	DEFAULT_FALLOFF_ANGLE        float32 = 45.0

	scatterParamScale float32 = 0.0001
)

type LogConfig struct {
	Level string `toml:"level"`
}

/** @brief Which device the engine opens and how. */
type DeviceConfig struct {
	Platform string `toml:"platform"`
	Debug    bool   `toml:"debug"`
}

/**
 * @brief Fields baked into a context. The framebuffer size comes from the
 * window, so only the sample count is configured here.
 */
type ContextConfig struct {
	Samples     uint32                   `toml:"samples"`
	Downsample  metadata.DownsampleMode  `toml:"downsample"`
	Multisample metadata.MultisampleMode `toml:"multisample"`
	Filter      metadata.FilterMode      `toml:"filter"`
}

type PostprocessConfig struct {
	DoFog           bool                     `toml:"fog"`
	IgnoreSkyFog    bool                     `toml:"ignore_sky_fog"`
	UpsampleQuality metadata.UpsampleQuality `toml:"upsample"`
	BlendFactor     float32                  `toml:"blend_factor"`
	TemporalFactor  float32                  `toml:"temporal_factor"`
	FilterThreshold float32                  `toml:"filter_threshold"`
	MultiScattering float32                  `toml:"multi_scattering"`
}

type PhaseTermConfig struct {
	Func         metadata.PhaseFunctionType `toml:"func"`
	Density      [3]float32                 `toml:"density"`
	Eccentricity float32                    `toml:"eccentricity"`
}

type MediumConfig struct {
	Absorption [3]float32        `toml:"absorption"`
	PhaseTerms []PhaseTermConfig `toml:"phase"`
}

type VolumeConfig struct {
	TargetRayResolution float32                      `toml:"target_ray_resolution"`
	MaxMeshResolution   uint32                       `toml:"max_mesh_resolution"`
	DepthBias           float32                      `toml:"depth_bias"`
	TessQuality         metadata.TessellationQuality `toml:"tess_quality"`
}

type ShadowMapConfig struct {
	Resolution uint32 `toml:"resolution"`
}

/**
 * @brief A light placed at Position looking at Target. Angles are in
 * degrees. Local lights attenuate as a spheroid source of SourceRadius.
 */
type LightConfig struct {
	Type      metadata.LightType `toml:"type"`
	Intensity [3]float32         `toml:"intensity"`
	Position  [3]float32         `toml:"position"`
	Target    [3]float32         `toml:"target"`
	ZNear     float32            `toml:"z_near"`
	ZFar      float32            `toml:"z_far"`
	// Side of the orthographic frustum of a directional light.
	Extent float32 `toml:"extent"`

	FalloffMode     metadata.SpotlightFalloffMode `toml:"falloff_mode"`
	FalloffAngle    float32                       `toml:"falloff_angle"`
	FalloffPower    float32                       `toml:"falloff_power"`
	AttenuationMode metadata.AttenuationMode      `toml:"attenuation"`
	SourceRadius    float32                       `toml:"source_radius"`
}

/**
 * @brief The scene file: device choice, context quality settings, the
 * medium and the lights the testbed cycles through.
 */
type Scene struct {
	Log         LogConfig         `toml:"log"`
	Device      DeviceConfig      `toml:"device"`
	Context     ContextConfig     `toml:"context"`
	Postprocess PostprocessConfig `toml:"postprocess"`
	Medium      MediumConfig      `toml:"medium"`
	Volume      VolumeConfig      `toml:"volume"`
	ShadowMap   ShadowMapConfig   `toml:"shadowmap"`
	Lights      []LightConfig     `toml:"light"`
}

func vec3(v [3]float32) math.Vec3 {
	return math.NewVec3(v[0], v[1], v[2])
}

/** @brief Returns the settings of the reference sample. */
func Default() *Scene {
	s := &Scene{
		Log:    LogConfig{Level: "info"},
		Device: DeviceConfig{Platform: "vulkan"},
		Context: ContextConfig{
			Downsample:  metadata.DOWNSAMPLE_HALF,
			Multisample: metadata.MULTISAMPLE_SINGLE,
			Filter:      metadata.FILTER_TEMPORAL,
		},
		Postprocess: PostprocessConfig{
			DoFog:           true,
			UpsampleQuality: metadata.UPSAMPLE_BILINEAR,
			BlendFactor:     1.0,
			TemporalFactor:  0.95,
			FilterThreshold: 0.20,
			MultiScattering: 0.000002,
		},
		Volume: VolumeConfig{
			TargetRayResolution: 12.0,
			MaxMeshResolution:   DEFAULT_SHADOWMAP_RESOLUTION,
			TessQuality:         metadata.TESSELLATION_QUALITY_HIGH,
		},
		ShadowMap: ShadowMapConfig{Resolution: DEFAULT_SHADOWMAP_RESOLUTION},
		Medium:    defaultMedium(),
	}
	s.applyDefaults()
	return s
}

// applyDefaults fills the lists a scene file left empty.
func (s *Scene) applyDefaults() {
	if len(s.Medium.PhaseTerms) == 0 {
		s.Medium.PhaseTerms = defaultMedium().PhaseTerms
	}
	if len(s.Lights) == 0 {
		s.Lights = defaultLights()
	}
}

func defaultMedium() MediumConfig {
	return MediumPreset(0)
}

// The number of media MediumPreset knows.
const MEDIUM_PRESET_COUNT = 4

/**
 * @brief Rayleigh scattering plus one aerosol term, from clear air (0)
 * to murky (3). Indices wrap.
 */
func MediumPreset(index int) MediumConfig {
	uniform := func(f float32) [3]float32 {
		v := f * scatterParamScale
		return [3]float32{v, v, v}
	}
	k := 10.0 * scatterParamScale
	rayleigh := PhaseTermConfig{Func: metadata.PHASE_FUNCTION_RAYLEIGH, Density: [3]float32{k * 0.596, k * 1.324, k * 3.310}}

	switch index % MEDIUM_PRESET_COUNT {
	case 1:
		return MediumConfig{Absorption: uniform(25), PhaseTerms: []PhaseTermConfig{rayleigh,
			{Func: metadata.PHASE_FUNCTION_HENYEYGREENSTEIN, Density: uniform(15), Eccentricity: 0.60}}}
	case 2:
		return MediumConfig{Absorption: uniform(25), PhaseTerms: []PhaseTermConfig{rayleigh,
			{Func: metadata.PHASE_FUNCTION_MIE_HAZY, Density: uniform(20)}}}
	case 3:
		return MediumConfig{Absorption: uniform(50), PhaseTerms: []PhaseTermConfig{rayleigh,
			{Func: metadata.PHASE_FUNCTION_MIE_MURKY, Density: uniform(30)}}}
	default:
		return MediumConfig{Absorption: uniform(5), PhaseTerms: []PhaseTermConfig{rayleigh,
			{Func: metadata.PHASE_FUNCTION_HENYEYGREENSTEIN, Density: uniform(10), Eccentricity: 0.85}}}
	}
}

func defaultLights() []LightConfig {
	power := [3]float32{1.00, 0.95, 0.90}
	scaled := func(f float32) [3]float32 {
		return [3]float32{power[0] * f, power[1] * f, power[2] * f}
	}
	return []LightConfig{
		{
			Type:            metadata.LIGHT_TYPE_SPOTLIGHT,
			Intensity:       scaled(50000),
			Position:        [3]float32{10, 15, 5},
			ZNear:           0.5,
			ZFar:            DEFAULT_LIGHT_RANGE,
			FalloffMode:     metadata.SPOTLIGHT_FALLOFF_FIXED,
			FalloffAngle:    DEFAULT_FALLOFF_ANGLE,
			FalloffPower:    1.0,
			AttenuationMode: metadata.ATTENUATION_INV_POLYNOMIAL,
			SourceRadius:    1.0,
		},
		{
			Type:            metadata.LIGHT_TYPE_OMNI,
			Intensity:       scaled(25000),
			Position:        [3]float32{15, 10, 0},
			ZNear:           0.5,
			ZFar:            DEFAULT_LIGHT_RANGE,
			AttenuationMode: metadata.ATTENUATION_INV_POLYNOMIAL,
			SourceRadius:    0.5,
		},
		{
			Type:      metadata.LIGHT_TYPE_DIRECTIONAL,
			Intensity: scaled(250),
			Position:  [3]float32{10, 15, 5},
			ZNear:     0.5,
			ZFar:      DEFAULT_LIGHT_RANGE,
			Extent:    25.0,
		},
	}
}

func (s *Scene) Validate() error {
	if _, ok := core.ParseLogLevel(s.Log.Level); !ok {
		return fmt.Errorf("log level %q: %w", s.Log.Level, core.ErrInvalidParameter)
	}
	if s.Device.Platform == "" {
		return fmt.Errorf("device platform is empty: %w", core.ErrInvalidParameter)
	}
	if s.ShadowMap.Resolution == 0 {
		return fmt.Errorf("shadow map resolution is zero: %w", core.ErrInvalidParameter)
	}
	medium := s.MediumDesc()
	if err := medium.Validate(); err != nil {
		return err
	}
	if len(s.Lights) == 0 {
		return fmt.Errorf("scene has no lights: %w", core.ErrInvalidParameter)
	}
	for i := range s.Lights {
		l := &s.Lights[i]
		if l.ZNear <= 0 || l.ZFar <= l.ZNear {
			return fmt.Errorf("light %d depth range [%g, %g]: %w", i, l.ZNear, l.ZFar, core.ErrInvalidParameter)
		}
		if l.Type != metadata.LIGHT_TYPE_OMNI && l.Position == l.Target {
			return fmt.Errorf("light %d looks at its own position: %w", i, core.ErrInvalidParameter)
		}
		if l.Type == metadata.LIGHT_TYPE_DIRECTIONAL && l.Extent <= 0 {
			return fmt.Errorf("directional light %d extent %g: %w", i, l.Extent, core.ErrInvalidParameter)
		}
		if l.Type != metadata.LIGHT_TYPE_DIRECTIONAL && l.AttenuationMode != metadata.ATTENUATION_NONE && l.SourceRadius <= 0 {
			return fmt.Errorf("light %d source radius %g: %w", i, l.SourceRadius, core.ErrInvalidParameter)
		}
		desc := l.Desc(math.NewMat4Identity())
		if err := desc.Validate(); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	return nil
}

func (s *Scene) LogLevel() core.LogLevel {
	lvl, ok := core.ParseLogLevel(s.Log.Level)
	if !ok {
		return core.InfoLevel
	}
	return lvl
}

func (s *Scene) ContextDesc(width, height uint32) metadata.ContextDesc {
	return metadata.ContextDesc{
		Framebuffer: metadata.FramebufferDesc{
			Width:   width,
			Height:  height,
			Samples: max(s.Context.Samples, 1),
		},
		DownsampleMode:     s.Context.Downsample,
		InternalSampleMode: s.Context.Multisample,
		FilterMode:         s.Context.Filter,
	}
}

/**
 * @brief Reports whether moving from prev to s changes anything a context
 * was created with.
 */
func (s *Scene) RequiresNewContext(prev *Scene) bool {
	return prev == nil || s.Context != prev.Context || s.Device != prev.Device
}

func (s *Scene) MediumDesc() metadata.MediumDesc {
	m := metadata.MediumDesc{Absorption: vec3(s.Medium.Absorption)}
	for _, t := range s.Medium.PhaseTerms {
		m.PhaseTerms = append(m.PhaseTerms, metadata.PhaseTerm{
			Func:         t.Func,
			Density:      vec3(t.Density),
			Eccentricity: t.Eccentricity,
		})
	}
	return m
}

func (s *Scene) VolumeDesc() metadata.VolumeDesc {
	return metadata.VolumeDesc{
		TargetRayResolution: s.Volume.TargetRayResolution,
		MaxMeshResolution:   s.Volume.MaxMeshResolution,
		DepthBias:           s.Volume.DepthBias,
		TessQuality:         s.Volume.TessQuality,
	}
}

/** @brief Per-frame post-process settings lit by fogLight. */
func (s *Scene) PostprocessDesc(unjitteredViewProj math.Mat4, fogLight math.Vec3) metadata.PostprocessDesc {
	p := &s.Postprocess
	return metadata.PostprocessDesc{
		DoFog:              p.DoFog,
		IgnoreSkyFog:       p.IgnoreSkyFog,
		UpsampleQuality:    p.UpsampleQuality,
		BlendFactor:        p.BlendFactor,
		TemporalFactor:     p.TemporalFactor,
		FilterThreshold:    p.FilterThreshold,
		UnjitteredViewProj: unjitteredViewProj,
		FogLight:           fogLight,
		MultiScattering:    p.MultiScattering,
	}
}

func (l *LightConfig) attenuation() [4]float32 {
	r := l.SourceRadius
	if r <= 0 {
		return [4]float32{1, 0, 0, 0}
	}
	return [4]float32{1, 2 / r, 1 / (r * r), 0}
}

func (l *LightConfig) target() math.Vec3 {
	return vec3(l.Target)
}

/**
 * @brief World position and view-projection of the light after transform
 * moved it. Omni lights use a bare translation, their shadow map being
 * paraboloid.
 */
func (l *LightConfig) Viewpoint(transform math.Mat4) (math.Vec3, math.Mat4) {
	pos := vec3(l.Position).Transform(transform)
	up := math.NewVec3Up()
	switch l.Type {
	case metadata.LIGHT_TYPE_OMNI:
		return pos, math.NewMat4Translation(pos.MulScalar(-1))
	case metadata.LIGHT_TYPE_SPOTLIGHT:
		view := math.NewMat4LookAtLH(pos, l.target(), up)
		proj := math.NewMat4PerspectiveLH(math.DegToRad(l.FalloffAngle), 1.0, l.ZNear, l.ZFar)
		return pos, view.Mul(proj)
	default:
		view := math.NewMat4LookAtLH(pos, l.target(), up)
		proj := math.NewMat4OrthographicLH(l.Extent, l.Extent, l.ZNear, l.ZFar)
		return pos, view.Mul(proj)
	}
}

/** @brief Builds the light descriptor once transform moved the light. */
func (l *LightConfig) Desc(transform math.Mat4) metadata.LightDesc {
	pos, viewProj := l.Viewpoint(transform)
	intensity := vec3(l.Intensity)
	toWorld := viewProj.Inverse()
	dir := l.target().Sub(pos).Normalized()

	switch l.Type {
	case metadata.LIGHT_TYPE_OMNI:
		return metadata.NewOmniLight(intensity, toWorld, metadata.OmniLight{
			Position:           pos,
			ZNear:              l.ZNear,
			ZFar:               l.ZFar,
			AttenuationMode:    l.AttenuationMode,
			AttenuationFactors: l.attenuation(),
		})
	case metadata.LIGHT_TYPE_SPOTLIGHT:
		return metadata.NewSpotlight(intensity, toWorld, metadata.SpotlightLight{
			Direction:          dir,
			Position:           pos,
			ZNear:              l.ZNear,
			ZFar:               l.ZFar,
			FalloffMode:        l.FalloffMode,
			FalloffAngle:       math.DegToRad(l.FalloffAngle),
			FalloffPower:       l.FalloffPower,
			AttenuationMode:    l.AttenuationMode,
			AttenuationFactors: l.attenuation(),
		})
	case metadata.LIGHT_TYPE_DIRECTIONAL:
		return metadata.NewDirectionalLight(intensity, toWorld, metadata.DirectionalLight{Direction: dir})
	default:
		return metadata.LightDesc{Type: l.Type, Intensity: intensity, LightToWorld: toWorld}
	}
}

/**
 * @brief Shadow map layout for the light: omni lights render two
 * paraboloid halves, the others one simple map.
 */
func (s *Scene) ShadowMapDesc(l *LightConfig, viewProj math.Mat4) metadata.ShadowMapDesc {
	res := s.ShadowMap.Resolution
	desc := metadata.ShadowMapDesc{
		Layout: metadata.SHADOWMAP_LAYOUT_SIMPLE,
		Width:  res,
		Height: res,
		Elements: []metadata.ShadowMapElement{
			{Width: res, Height: res, ViewProj: viewProj},
		},
	}
	if l.Type == metadata.LIGHT_TYPE_OMNI {
		desc.Layout = metadata.SHADOWMAP_LAYOUT_PARABOLOID
		desc.Elements = append(desc.Elements, metadata.ShadowMapElement{
			Width: res, Height: res, ViewProj: viewProj, ArrayIndex: 1,
		})
	}
	return desc
}
