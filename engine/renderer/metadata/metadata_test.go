package metadata

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
)

func TestEnumText(t *testing.T) {
	var d DownsampleMode
	require.NoError(t, d.UnmarshalText([]byte("quarter")))
	assert.Equal(t, DOWNSAMPLE_QUARTER, d)

	var f FilterMode
	require.NoError(t, f.UnmarshalText([]byte(" TEMPORAL ")))
	assert.Equal(t, FILTER_TEMPORAL, f)

	var a AttenuationMode
	err := a.UnmarshalText([]byte("cubic"))
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	text, err := UPSAMPLE_BILATERAL.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "BILATERAL", string(text))
	assert.Equal(t, "UNKNOWN(9)", LightType(9).String())
}

func TestDebugFlags(t *testing.T) {
	flags := DEBUG_FLAG_WIREFRAME | DEBUG_FLAG_NO_BLENDING
	assert.True(t, flags.Has(DEBUG_FLAG_WIREFRAME))
	assert.False(t, DEBUG_FLAG_NONE.Has(DEBUG_FLAG_NONE))
	assert.Equal(t, "WIREFRAME|NO_BLENDING", flags.String())
	assert.Equal(t, "NONE", DEBUG_FLAG_NONE.String())
}

func TestLightValidate(t *testing.T) {
	identity := math.NewMat4Identity()
	cases := []struct {
		name  string
		light LightDesc
		valid bool
	}{
		{"directional", NewDirectionalLight(math.NewVec3One(), identity, DirectionalLight{Direction: math.NewVec3(0, -1, 0)}), true},
		{"spotlight", NewSpotlight(math.NewVec3One(), identity, SpotlightLight{FalloffMode: SPOTLIGHT_FALLOFF_FIXED}), true},
		{"omni", NewOmniLight(math.NewVec3One(), identity, OmniLight{ZNear: 0.5, ZFar: 10}), true},
		{"unknown tag", LightDesc{Type: LightType(7)}, false},
		{"missing payload", LightDesc{Type: LIGHT_TYPE_OMNI}, false},
		{"mismatched payload", LightDesc{Type: LIGHT_TYPE_SPOTLIGHT, Omni: &OmniLight{}}, false},
		{"bad falloff", NewSpotlight(math.NewVec3One(), identity, SpotlightLight{FalloffMode: 5}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.light.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrInvalidParameter)
			}
		})
	}
}

func TestDescriptorLimits(t *testing.T) {
	medium := MediumDesc{PhaseTerms: make([]PhaseTerm, MAX_PHASE_TERMS+1)}
	assert.ErrorIs(t, medium.Validate(), core.ErrInvalidParameter)
	medium.PhaseTerms = medium.PhaseTerms[:MAX_PHASE_TERMS]
	assert.NoError(t, medium.Validate())

	shadow := ShadowMapDesc{Width: 1024, Height: 1024, Elements: make([]ShadowMapElement, 5)}
	assert.ErrorIs(t, shadow.Validate(), core.ErrInvalidParameter)

	ctx := ContextDesc{}
	assert.ErrorIs(t, ctx.Validate(), core.ErrInvalidParameter)
}

func TestCoarseResolution(t *testing.T) {
	v := VolumeDesc{MaxMeshResolution: 1024}
	v.TessQuality = TESSELLATION_QUALITY_LOW
	assert.Equal(t, uint32(64), v.CoarseResolution())
	v.TessQuality = TESSELLATION_QUALITY_MEDIUM
	assert.Equal(t, uint32(32), v.CoarseResolution())
	v.TessQuality = TESSELLATION_QUALITY_HIGH
	assert.Equal(t, uint32(16), v.CoarseResolution())
	v.TessQuality = TessellationQuality(42)
	assert.Equal(t, uint32(16), v.CoarseResolution())
}

func f32At(b []byte, register, component int) float32 {
	off := register*16 + component*4
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func u32At(b []byte, register, component int) uint32 {
	return binary.LittleEndian.Uint32(b[register*16+component*4:])
}

func TestEncodeLayouts(t *testing.T) {
	ctx := PerContextCB{OutputSize: math.NewVec2(1920, 1080), ResMultiplier: 2, SampleCount: 4}
	b := ctx.Encode()
	require.Len(t, b, PER_CONTEXT_CB_SIZE)
	assert.Equal(t, float32(1080), f32At(b, 0, 1))
	assert.Equal(t, float32(2), f32At(b, 2, 0))
	assert.Equal(t, uint32(4), u32At(b, 2, 1))

	frame := PerFrameCB{ZNear: 0.5, ZFar: 100, NumPhaseTerms: 2}
	frame.PhaseFunc[1] = uint32(PHASE_FUNCTION_MIE_HAZY)
	frame.PhaseParams[3] = math.NewVec4(1, 2, 3, 0.7)
	b = frame.Encode()
	require.Len(t, b, PER_FRAME_CB_SIZE)
	assert.Equal(t, float32(0.5), f32At(b, 15, 2))
	assert.Equal(t, float32(100), f32At(b, 15, 3))
	assert.Equal(t, uint32(2), u32At(b, 16, 3))
	assert.Equal(t, uint32(PHASE_FUNCTION_MIE_HAZY), u32At(b, 19, 0))
	assert.Equal(t, float32(0.7), f32At(b, 25, 3))

	volume := PerVolumeCB{MeshResolution: 16, TargetRaySize: 12, DepthBias: 0.1}
	volume.ElementIndex[3] = 9
	volume.ShadowMapDim = math.NewVec4(2048, 1024, 0, 0)
	b = volume.Encode()
	require.Len(t, b, PER_VOLUME_CB_SIZE)
	assert.Equal(t, float32(0.1), f32At(b, 39, 3))
	assert.Equal(t, uint32(16), u32At(b, 40, 3))
	assert.Equal(t, float32(12), f32At(b, 41, 3))
	assert.Equal(t, float32(1024), f32At(b, 46, 1))
	assert.Equal(t, uint32(9), u32At(b, 50, 0))

	apply := PerApplyCB{HistoryXform: math.NewMat4Identity(), FilterThreshold: 0.2, HistoryFactor: 0.95, MultiScattering: 3}
	b = apply.Encode()
	require.Len(t, b, PER_APPLY_CB_SIZE)
	assert.Equal(t, float32(1), f32At(b, 3, 3))
	assert.Equal(t, float32(0.95), f32At(b, 4, 1))
	assert.Equal(t, float32(3), f32At(b, 5, 3))
}

func TestEncodeUsesAllocator(t *testing.T) {
	var tags []AllocTagView
	core.SetHandlers(func(size uintptr, tag core.AllocTag) []byte {
		tags = append(tags, AllocTagView{tag.TypeName, size})
		return make([]byte, size)
	}, nil)
	defer core.ResetHandlers()

	cb := PerApplyCB{}
	require.NotNil(t, cb.Encode())
	require.Len(t, tags, 1)
	assert.Equal(t, AllocTagView{"PerApplyCB", PER_APPLY_CB_SIZE}, tags[0])

	core.SetHandlers(func(uintptr, core.AllocTag) []byte { return nil }, nil)
	assert.Nil(t, cb.Encode())
}

type AllocTagView struct {
	TypeName string
	Size     uintptr
}

func TestPermutationKeys(t *testing.T) {
	ps := NewShaderPermutation(SHADER_PROGRAM_APPLY_PS)
	ps.SampleMode = SAMPLEMODE_MSAA
	ps.UpsampleMode = UPSAMPLEMODE_BILATERAL
	ps.FogMode = FOGMODE_NOSKY
	assert.Equal(t, "Apply_PS[SAMPLEMODE=MSAA,UPSAMPLEMODE=BILATERAL,FOGMODE=NOSKY]", ps.Key())

	hs := NewShaderPermutation(SHADER_PROGRAM_RENDER_VOLUME_HS)
	hs.MaxTessFactor = TESSELLATION_QUALITY_HIGH
	hs.ShadowMapType = SHADOWMAPTYPE_ARRAY
	hs.CascadeCount = CASCADECOUNT_1
	hs.VolumeType = VOLUMETYPE_PARABOLOID
	assert.Equal(t, "RenderVolume_HS[MAXTESSFACTOR=HIGH,SHADOWMAPTYPE=ARRAY,CASCADECOUNT=1,VOLUMETYPE=PARABOLOID]", hs.Key())

	// axes the program does not declare never leak into the key
	quad := NewShaderPermutation(SHADER_PROGRAM_QUAD_VS)
	quad.FogMode = FOGMODE_FULL
	assert.Equal(t, "Quad_VS", quad.Key())
	assert.Equal(t, SHADER_STAGE_COMPUTE, SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS.Stage())
}

func TestAllPermutations(t *testing.T) {
	perms := AllPermutations()
	assert.Len(t, perms, 274)

	keys := map[string]bool{}
	counts := map[ShaderProgram]int{}
	for _, p := range perms {
		assert.False(t, keys[p.Key()], p.Key())
		keys[p.Key()] = true
		counts[p.Program]++
	}
	assert.Equal(t, 162, counts[SHADER_PROGRAM_RENDER_VOLUME_PS])
	assert.Equal(t, 48, counts[SHADER_PROGRAM_RENDER_VOLUME_HS])
	assert.Equal(t, 1, counts[SHADER_PROGRAM_QUAD_VS])
	assert.True(t, keys["Apply_PS[SAMPLEMODE=MSAA,UPSAMPLEMODE=BILATERAL,FOGMODE=FULL]"])
}

func TestPermutationDefines(t *testing.T) {
	p := NewShaderPermutation(SHADER_PROGRAM_APPLY_PS)
	p.SampleMode = SAMPLEMODE_MSAA
	p.FogMode = FOGMODE_NOSKY
	assert.Equal(t, []string{
		"SAMPLEMODE=SAMPLEMODE_MSAA",
		"UPSAMPLEMODE=UPSAMPLEMODE_POINT",
		"FOGMODE=FOGMODE_NOSKY",
	}, p.Defines())
	assert.Empty(t, NewShaderPermutation(SHADER_PROGRAM_QUAD_VS).Defines())
}

func TestStateTables(t *testing.T) {
	rv := DepthStencilStates[DEPTH_STENCIL_RENDER_VOLUME]
	assert.Equal(t, STENCIL_OP_INCR, rv.Front.DepthFail)
	assert.Equal(t, STENCIL_OP_DECR, rv.Back.DepthFail)
	assert.False(t, rv.DepthWrite)

	finish := DepthStencilStates[DEPTH_STENCIL_FINISH_VOLUME]
	assert.Equal(t, uint8(0), finish.StencilWriteMask)
	assert.Equal(t, COMPARE_GREATER, finish.Back.Func)

	assert.Equal(t, uint8(0), BlendStates[BLEND_NO_COLOR].ColorWriteMask)
	assert.Equal(t, BLEND_FACTOR_SRC1_COLOR, BlendStates[BLEND_ADDITIVE_MODULATE].DstColor)
	assert.Equal(t, "render_volume_boundary", DEPTH_STENCIL_RENDER_VOLUME_BOUNDARY.String())
	assert.Equal(t, uint64(256), GetAligned(PER_APPLY_CB_SIZE, 256))
}
