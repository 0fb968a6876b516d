package metadata

/**
 * Fixed pipeline states. Passes refer to them by enum; each device builds
 * its native objects from the descriptions below once, at context creation.
 * Unless noted a description keeps the usual defaults: depth test LESS with
 * writes, stencil off, opaque blending with full write mask.
 */

type RasterState uint32

const (
	RASTER_CULL_NONE RasterState = iota
	RASTER_CULL_FRONT
	RASTER_WIREFRAME
	RASTER_STATE_COUNT
)

var rasterStateNames = []string{"cull_none", "cull_front", "wireframe"}

func (s RasterState) String() string { return enumString(rasterStateNames, s) }

type SamplerState uint32

const (
	SAMPLER_POINT SamplerState = iota
	SAMPLER_LINEAR
	SAMPLER_STATE_COUNT
)

var samplerStateNames = []string{"point", "linear"}

func (s SamplerState) String() string { return enumString(samplerStateNames, s) }

type DepthStencilState uint32

const (
	DEPTH_STENCIL_NO_DEPTH DepthStencilState = iota
	DEPTH_STENCIL_WRITE_ONLY_DEPTH
	DEPTH_STENCIL_READ_ONLY_DEPTH
	DEPTH_STENCIL_RENDER_VOLUME
	DEPTH_STENCIL_RENDER_VOLUME_BOUNDARY
	DEPTH_STENCIL_RENDER_VOLUME_CAP
	DEPTH_STENCIL_FINISH_VOLUME
	DEPTH_STENCIL_STATE_COUNT
)

var depthStencilStateNames = []string{
	"no_depth",
	"write_only_depth",
	"read_only_depth",
	"render_volume",
	"render_volume_boundary",
	"render_volume_cap",
	"finish_volume",
}

func (s DepthStencilState) String() string { return enumString(depthStencilStateNames, s) }

type BlendState uint32

const (
	BLEND_NO_COLOR BlendState = iota
	BLEND_NO_BLENDING
	BLEND_ADDITIVE
	BLEND_ADDITIVE_MODULATE
	BLEND_DEBUG
	BLEND_STATE_COUNT
)

var blendStateNames = []string{"no_color", "no_blending", "additive", "additive_modulate", "debug_blend"}

func (s BlendState) String() string { return enumString(blendStateNames, s) }

type CullMode uint32

const (
	CULL_NONE CullMode = iota
	CULL_FRONT
	CULL_BACK
)

type FillMode uint32

const (
	FILL_SOLID FillMode = iota
	FILL_WIREFRAME
)

type RasterDesc struct {
	Fill             FillMode
	Cull             CullMode
	FrontCounterCW   bool
	DepthClipEnabled bool
}

type FilterKind uint32

const (
	FILTER_KIND_POINT FilterKind = iota
	FILTER_KIND_LINEAR
)

/** @brief Min, mag and mip filtering all use Filter; addressing clamps. */
type SamplerDesc struct {
	Filter FilterKind
}

type CompareFunc uint32

const (
	COMPARE_NEVER CompareFunc = iota
	COMPARE_LESS
	COMPARE_EQUAL
	COMPARE_LESS_EQUAL
	COMPARE_GREATER
	COMPARE_NOT_EQUAL
	COMPARE_GREATER_EQUAL
	COMPARE_ALWAYS
)

type StencilOp uint32

const (
	STENCIL_OP_KEEP StencilOp = iota
	STENCIL_OP_ZERO
	STENCIL_OP_REPLACE
	STENCIL_OP_INCR_SAT
	STENCIL_OP_DECR_SAT
	STENCIL_OP_INVERT
	STENCIL_OP_INCR
	STENCIL_OP_DECR
)

type StencilFaceDesc struct {
	Func      CompareFunc
	FailOp    StencilOp
	DepthFail StencilOp
	PassOp    StencilOp
}

type DepthStencilDesc struct {
	DepthEnable      bool
	DepthWrite       bool
	DepthFunc        CompareFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	Front            StencilFaceDesc
	Back             StencilFaceDesc
}

type BlendFactor uint32

const (
	BLEND_FACTOR_ZERO BlendFactor = iota
	BLEND_FACTOR_ONE
	BLEND_FACTOR_BLEND_CONSTANT
	BLEND_FACTOR_SRC1_COLOR
	BLEND_FACTOR_SRC1_ALPHA
)

type BlendDesc struct {
	Enable         bool
	SrcColor       BlendFactor
	DstColor       BlendFactor
	SrcAlpha       BlendFactor
	DstAlpha       BlendFactor
	ColorWriteMask uint8
}

const COLOR_WRITE_ALL uint8 = 0xF

var RasterStates = [RASTER_STATE_COUNT]RasterDesc{
	RASTER_CULL_NONE:  {Fill: FILL_SOLID, Cull: CULL_NONE, FrontCounterCW: true},
	RASTER_CULL_FRONT: {Fill: FILL_SOLID, Cull: CULL_FRONT, FrontCounterCW: true},
	RASTER_WIREFRAME:  {Fill: FILL_WIREFRAME, Cull: CULL_NONE, FrontCounterCW: true},
}

var SamplerStates = [SAMPLER_STATE_COUNT]SamplerDesc{
	SAMPLER_POINT:  {Filter: FILTER_KIND_POINT},
	SAMPLER_LINEAR: {Filter: FILTER_KIND_LINEAR},
}

var keepAlways = StencilFaceDesc{Func: COMPARE_ALWAYS}

var DepthStencilStates = [DEPTH_STENCIL_STATE_COUNT]DepthStencilDesc{
	DEPTH_STENCIL_NO_DEPTH: {
		DepthFunc: COMPARE_LESS, Front: keepAlways, Back: keepAlways,
	},
	DEPTH_STENCIL_WRITE_ONLY_DEPTH: {
		DepthEnable: true, DepthWrite: true, DepthFunc: COMPARE_ALWAYS,
		Front: keepAlways, Back: keepAlways,
	},
	DEPTH_STENCIL_READ_ONLY_DEPTH: {
		DepthEnable: true, DepthFunc: COMPARE_LESS_EQUAL,
		Front: keepAlways, Back: keepAlways,
	},
	// Counts front faces in and back faces out where the volume is occluded.
	DEPTH_STENCIL_RENDER_VOLUME: {
		DepthEnable: true, DepthFunc: COMPARE_LESS_EQUAL,
		StencilEnable: true, StencilReadMask: 0xFF, StencilWriteMask: 0xFF,
		Front: StencilFaceDesc{Func: COMPARE_ALWAYS, DepthFail: STENCIL_OP_INCR},
		Back:  StencilFaceDesc{Func: COMPARE_ALWAYS, DepthFail: STENCIL_OP_DECR},
	},
	DEPTH_STENCIL_RENDER_VOLUME_BOUNDARY: {
		DepthEnable: true, DepthFunc: COMPARE_LESS_EQUAL,
		StencilEnable: true, StencilReadMask: 0xFF, StencilWriteMask: 0xFF,
		Front: StencilFaceDesc{Func: COMPARE_NEVER},
		Back:  StencilFaceDesc{Func: COMPARE_ALWAYS, DepthFail: STENCIL_OP_DECR},
	},
	DEPTH_STENCIL_RENDER_VOLUME_CAP: {
		StencilEnable: true, StencilReadMask: 0xFF, StencilWriteMask: 0xFF,
		Front: StencilFaceDesc{Func: COMPARE_LESS_EQUAL, DepthFail: STENCIL_OP_INCR},
		Back:  StencilFaceDesc{Func: COMPARE_LESS_EQUAL, DepthFail: STENCIL_OP_DECR},
	},
	// Shades pixels whose stencil differs from the reference without touching it.
	DEPTH_STENCIL_FINISH_VOLUME: {
		StencilEnable: true, StencilReadMask: 0xFF, StencilWriteMask: 0x00,
		Front: StencilFaceDesc{Func: COMPARE_NEVER},
		Back:  StencilFaceDesc{Func: COMPARE_GREATER},
	},
}

var BlendStates = [BLEND_STATE_COUNT]BlendDesc{
	BLEND_NO_COLOR: {
		SrcColor: BLEND_FACTOR_ONE, DstColor: BLEND_FACTOR_ZERO,
		SrcAlpha: BLEND_FACTOR_ONE, DstAlpha: BLEND_FACTOR_ZERO,
		ColorWriteMask: 0,
	},
	BLEND_NO_BLENDING: {
		SrcColor: BLEND_FACTOR_ONE, DstColor: BLEND_FACTOR_ZERO,
		SrcAlpha: BLEND_FACTOR_ONE, DstAlpha: BLEND_FACTOR_ZERO,
		ColorWriteMask: COLOR_WRITE_ALL,
	},
	BLEND_ADDITIVE: {
		Enable:   true,
		SrcColor: BLEND_FACTOR_BLEND_CONSTANT, DstColor: BLEND_FACTOR_ONE,
		SrcAlpha: BLEND_FACTOR_BLEND_CONSTANT, DstAlpha: BLEND_FACTOR_ONE,
		ColorWriteMask: COLOR_WRITE_ALL,
	},
	BLEND_ADDITIVE_MODULATE: {
		Enable:   true,
		SrcColor: BLEND_FACTOR_BLEND_CONSTANT, DstColor: BLEND_FACTOR_SRC1_COLOR,
		SrcAlpha: BLEND_FACTOR_ZERO, DstAlpha: BLEND_FACTOR_ONE,
		ColorWriteMask: COLOR_WRITE_ALL,
	},
	BLEND_DEBUG: {
		Enable:   true,
		SrcColor: BLEND_FACTOR_ONE, DstColor: BLEND_FACTOR_ZERO,
		SrcAlpha: BLEND_FACTOR_ZERO, DstAlpha: BLEND_FACTOR_SRC1_ALPHA,
		ColorWriteMask: COLOR_WRITE_ALL,
	},
}
