package metadata

import (
	"fmt"
	"strings"
)

/** @brief The shader programs the pipeline selects permutations of. */
type ShaderProgram uint32

const (
	SHADER_PROGRAM_NONE ShaderProgram = iota
	SHADER_PROGRAM_QUAD_VS
	SHADER_PROGRAM_RENDER_VOLUME_VS
	SHADER_PROGRAM_RENDER_VOLUME_HS
	SHADER_PROGRAM_RENDER_VOLUME_DS
	SHADER_PROGRAM_RENDER_VOLUME_PS
	SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS
	SHADER_PROGRAM_COMPUTE_PHASE_LOOKUP_PS
	SHADER_PROGRAM_DEBUG_PS
	SHADER_PROGRAM_DOWNSAMPLE_DEPTH_PS
	SHADER_PROGRAM_RESOLVE_PS
	SHADER_PROGRAM_TEMPORAL_FILTER_PS
	SHADER_PROGRAM_APPLY_PS
)

var shaderProgramNames = []string{
	"None",
	"Quad_VS",
	"RenderVolume_VS",
	"RenderVolume_HS",
	"RenderVolume_DS",
	"RenderVolume_PS",
	"ComputeLightLUT_CS",
	"ComputePhaseLookup_PS",
	"Debug_PS",
	"DownsampleDepth_PS",
	"Resolve_PS",
	"TemporalFilter_PS",
	"Apply_PS",
}

func (p ShaderProgram) String() string { return enumString(shaderProgramNames, p) }

// Stage returns the pipeline stage the program runs in.
func (p ShaderProgram) Stage() ShaderStage {
	switch p {
	case SHADER_PROGRAM_QUAD_VS, SHADER_PROGRAM_RENDER_VOLUME_VS:
		return SHADER_STAGE_VERTEX
	case SHADER_PROGRAM_RENDER_VOLUME_HS:
		return SHADER_STAGE_HULL
	case SHADER_PROGRAM_RENDER_VOLUME_DS:
		return SHADER_STAGE_DOMAIN
	case SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS:
		return SHADER_STAGE_COMPUTE
	case SHADER_PROGRAM_NONE:
		return 0
	default:
		return SHADER_STAGE_PIXEL
	}
}

/**
 * @brief Permutation axes. Every value is the exact preprocessor value the
 * program branches on, so each axis is its own type.
 */
type (
	SampleMode    uint32
	MeshMode      uint32
	ShadowMapType uint32
	CascadeCount  uint32
	VolumeType    uint32
	LightMode     uint32
	PassMode      uint32
	FalloffMode   uint32
	ComputePass   uint32
	UpsampleMode  uint32
	FogMode       uint32
)

const (
	SAMPLEMODE_SINGLE SampleMode = iota
	SAMPLEMODE_MSAA
)

const (
	MESHMODE_FRUSTUM_GRID MeshMode = iota
	MESHMODE_FRUSTUM_BASE
	MESHMODE_FRUSTUM_CAP
	MESHMODE_OMNI_VOLUME
)

const (
	SHADOWMAPTYPE_ATLAS ShadowMapType = iota
	SHADOWMAPTYPE_ARRAY
)

const (
	CASCADECOUNT_1 CascadeCount = iota + 1
	CASCADECOUNT_2
	CASCADECOUNT_3
	CASCADECOUNT_4
)

const (
	VOLUMETYPE_FRUSTUM VolumeType = iota
	VOLUMETYPE_PARABOLOID
)

const (
	LIGHTMODE_DIRECTIONAL LightMode = iota
	LIGHTMODE_SPOTLIGHT
	LIGHTMODE_OMNI
)

const (
	PASSMODE_GEOMETRY PassMode = iota
	PASSMODE_SKY
	PASSMODE_FINAL
)

const (
	FALLOFFMODE_NONE FalloffMode = iota
	FALLOFFMODE_FIXED
	FALLOFFMODE_CUSTOM
)

const (
	COMPUTEPASS_CALCULATE ComputePass = iota
	COMPUTEPASS_SUM
)

const (
	UPSAMPLEMODE_POINT UpsampleMode = iota
	UPSAMPLEMODE_BILINEAR
	UPSAMPLEMODE_BILATERAL
)

const (
	FOGMODE_NONE FogMode = iota
	FOGMODE_NOSKY
	FOGMODE_FULL
)

var (
	sampleModeNames    = []string{"SINGLE", "MSAA"}
	meshModeNames      = []string{"FRUSTUM_GRID", "FRUSTUM_BASE", "FRUSTUM_CAP", "OMNI_VOLUME"}
	shadowMapTypeNames = []string{"ATLAS", "ARRAY"}
	volumeTypeNames    = []string{"FRUSTUM", "PARABOLOID"}
	lightModeNames     = []string{"DIRECTIONAL", "SPOTLIGHT", "OMNI"}
	passModeNames      = []string{"GEOMETRY", "SKY", "FINAL"}
	falloffModeNames   = []string{"NONE", "FIXED", "CUSTOM"}
	computePassNames   = []string{"CALCULATE", "SUM"}
	upsampleModeNames  = []string{"POINT", "BILINEAR", "BILATERAL"}
	fogModeNames       = []string{"NONE", "NOSKY", "FULL"}
)

func (m SampleMode) String() string    { return enumString(sampleModeNames, m) }
func (m MeshMode) String() string      { return enumString(meshModeNames, m) }
func (m ShadowMapType) String() string { return enumString(shadowMapTypeNames, m) }
func (m VolumeType) String() string    { return enumString(volumeTypeNames, m) }
func (m LightMode) String() string     { return enumString(lightModeNames, m) }
func (m PassMode) String() string      { return enumString(passModeNames, m) }
func (m FalloffMode) String() string   { return enumString(falloffModeNames, m) }
func (m ComputePass) String() string   { return enumString(computePassNames, m) }
func (m UpsampleMode) String() string  { return enumString(upsampleModeNames, m) }
func (m FogMode) String() string       { return enumString(fogModeNames, m) }
func (c CascadeCount) String() string  { return fmt.Sprintf("%d", uint32(c)) }

/**
 * @brief Identifies one compiled variant of a program. Only the axes the
 * program declares are part of its key; the rest stay zero.
 */
type ShaderPermutation struct {
	Program ShaderProgram

	SampleMode      SampleMode
	MeshMode        MeshMode
	MaxTessFactor   TessellationQuality
	ShadowMapType   ShadowMapType
	CascadeCount    CascadeCount
	VolumeType      VolumeType
	LightMode       LightMode
	PassMode        PassMode
	AttenuationMode AttenuationMode
	FalloffMode     FalloffMode
	ComputePass     ComputePass
	UpsampleMode    UpsampleMode
	FogMode         FogMode
}

func NewShaderPermutation(program ShaderProgram) ShaderPermutation {
	return ShaderPermutation{Program: program}
}

type axis struct {
	name  string
	value fmt.Stringer
}

// axes lists the preprocessor axes the program declares, in key order.
func (p ShaderPermutation) axes() []axis {
	switch p.Program {
	case SHADER_PROGRAM_RENDER_VOLUME_VS:
		return []axis{{"MESHMODE", p.MeshMode}}
	case SHADER_PROGRAM_RENDER_VOLUME_HS:
		return []axis{
			{"MAXTESSFACTOR", p.MaxTessFactor},
			{"SHADOWMAPTYPE", p.ShadowMapType},
			{"CASCADECOUNT", p.CascadeCount},
			{"VOLUMETYPE", p.VolumeType},
		}
	case SHADER_PROGRAM_RENDER_VOLUME_DS:
		return []axis{
			{"SHADOWMAPTYPE", p.ShadowMapType},
			{"CASCADECOUNT", p.CascadeCount},
			{"VOLUMETYPE", p.VolumeType},
		}
	case SHADER_PROGRAM_RENDER_VOLUME_PS:
		return []axis{
			{"SAMPLEMODE", p.SampleMode},
			{"LIGHTMODE", p.LightMode},
			{"PASSMODE", p.PassMode},
			{"ATTENUATIONMODE", p.AttenuationMode},
			{"FALLOFFMODE", p.FalloffMode},
		}
	case SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS:
		return []axis{
			{"LIGHTMODE", p.LightMode},
			{"ATTENUATIONMODE", p.AttenuationMode},
			{"COMPUTEPASS", p.ComputePass},
		}
	case SHADER_PROGRAM_DOWNSAMPLE_DEPTH_PS, SHADER_PROGRAM_RESOLVE_PS:
		return []axis{{"SAMPLEMODE", p.SampleMode}}
	case SHADER_PROGRAM_APPLY_PS:
		return []axis{
			{"SAMPLEMODE", p.SampleMode},
			{"UPSAMPLEMODE", p.UpsampleMode},
			{"FOGMODE", p.FogMode},
		}
	}
	return nil
}

/**
 * @brief A stable, human-readable key such as
 * "RenderVolume_PS[SAMPLEMODE=SINGLE,LIGHTMODE=OMNI,...]". Devices use it to
 * look up the compiled program.
 */
func (p ShaderPermutation) Key() string {
	axes := p.axes()
	if len(axes) == 0 {
		return p.Program.String()
	}
	parts := make([]string, len(axes))
	for i, a := range axes {
		parts[i] = a.name + "=" + a.value.String()
	}
	return p.Program.String() + "[" + strings.Join(parts, ",") + "]"
}

// Defines returns the preprocessor definitions that select this permutation,
// e.g. "SAMPLEMODE=SAMPLEMODE_MSAA".
func (p ShaderPermutation) Defines() []string {
	axes := p.axes()
	defines := make([]string, len(axes))
	for i, a := range axes {
		defines[i] = a.name + "=" + a.name + "_" + a.value.String()
	}
	return defines
}

/**
 * @brief Every permutation of every program, the set an offline shader
 * build has to produce.
 */
func AllPermutations() []ShaderPermutation {
	var out []ShaderPermutation
	for program := SHADER_PROGRAM_QUAD_VS; program <= SHADER_PROGRAM_APPLY_PS; program++ {
		out = append(out, programPermutations(program)...)
	}
	return out
}

func programPermutations(program ShaderProgram) []ShaderPermutation {
	perms := []ShaderPermutation{NewShaderPermutation(program)}
	expand := func(count int, set func(p *ShaderPermutation, i int)) {
		next := make([]ShaderPermutation, 0, len(perms)*count)
		for _, p := range perms {
			for i := 0; i < count; i++ {
				q := p
				set(&q, i)
				next = append(next, q)
			}
		}
		perms = next
	}
	sampleMode := func() {
		expand(len(sampleModeNames), func(p *ShaderPermutation, i int) { p.SampleMode = SampleMode(i) })
	}
	lightMode := func() {
		expand(len(lightModeNames), func(p *ShaderPermutation, i int) { p.LightMode = LightMode(i) })
	}
	attenuation := func() {
		expand(len(attenuationModeNames), func(p *ShaderPermutation, i int) { p.AttenuationMode = AttenuationMode(i) })
	}
	volume := func() {
		expand(len(shadowMapTypeNames), func(p *ShaderPermutation, i int) { p.ShadowMapType = ShadowMapType(i) })
		expand(4, func(p *ShaderPermutation, i int) { p.CascadeCount = CASCADECOUNT_1 + CascadeCount(i) })
		expand(len(volumeTypeNames), func(p *ShaderPermutation, i int) { p.VolumeType = VolumeType(i) })
	}

	switch program {
	case SHADER_PROGRAM_RENDER_VOLUME_VS:
		expand(len(meshModeNames), func(p *ShaderPermutation, i int) { p.MeshMode = MeshMode(i) })
	case SHADER_PROGRAM_RENDER_VOLUME_HS:
		expand(len(tessellationQualityNames), func(p *ShaderPermutation, i int) { p.MaxTessFactor = TessellationQuality(i) })
		volume()
	case SHADER_PROGRAM_RENDER_VOLUME_DS:
		volume()
	case SHADER_PROGRAM_RENDER_VOLUME_PS:
		sampleMode()
		lightMode()
		expand(len(passModeNames), func(p *ShaderPermutation, i int) { p.PassMode = PassMode(i) })
		attenuation()
		expand(len(falloffModeNames), func(p *ShaderPermutation, i int) { p.FalloffMode = FalloffMode(i) })
	case SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS:
		lightMode()
		attenuation()
		expand(len(computePassNames), func(p *ShaderPermutation, i int) { p.ComputePass = ComputePass(i) })
	case SHADER_PROGRAM_DOWNSAMPLE_DEPTH_PS, SHADER_PROGRAM_RESOLVE_PS:
		sampleMode()
	case SHADER_PROGRAM_APPLY_PS:
		sampleMode()
		expand(len(upsampleModeNames), func(p *ShaderPermutation, i int) { p.UpsampleMode = UpsampleMode(i) })
		expand(len(fogModeNames), func(p *ShaderPermutation, i int) { p.FogMode = FogMode(i) })
	}
	return perms
}

func (p ShaderPermutation) String() string {
	return p.Key()
}

/** @brief The programs bound to each stage for one draw or dispatch. */
type ShaderSet struct {
	VS *ShaderPermutation
	HS *ShaderPermutation
	DS *ShaderPermutation
	PS *ShaderPermutation
	CS *ShaderPermutation
}
