package metadata

import (
	"github.com/google/uuid"
)

/**
 * @brief Opaque per-frame render context handed through to the device, e.g.
 * a command buffer or an encoder. The pipeline never inspects it.
 */
type RenderCtx any

type TextureFormat uint32

const (
	TEXTURE_FORMAT_UNKNOWN TextureFormat = iota
	TEXTURE_FORMAT_RGBA16F
	TEXTURE_FORMAT_RG16F
	TEXTURE_FORMAT_RGBA8
	TEXTURE_FORMAT_D24S8
	TEXTURE_FORMAT_D32F
)

var textureFormatNames = []string{"UNKNOWN", "RGBA16F", "RG16F", "RGBA8", "D24S8", "D32F"}

func (f TextureFormat) String() string { return enumString(textureFormatNames, f) }

func (f TextureFormat) IsDepth() bool {
	return f == TEXTURE_FORMAT_D24S8 || f == TEXTURE_FORMAT_D32F
}

/** @brief How a texture may be bound. Can be combined. */
type TextureUsage uint32

const (
	TEXTURE_USAGE_SHADER_RESOURCE  TextureUsage = 0x1
	TEXTURE_USAGE_RENDER_TARGET    TextureUsage = 0x2
	TEXTURE_USAGE_DEPTH_STENCIL    TextureUsage = 0x4
	TEXTURE_USAGE_UNORDERED_ACCESS TextureUsage = 0x8
)

func (u TextureUsage) Has(flag TextureUsage) bool {
	return u&flag == flag
}

type TextureDesc struct {
	/** @brief Debug name, also used for device object labels. */
	Name    string
	Width   uint32
	Height  uint32
	Samples uint32
	Format  TextureFormat
	Usage   TextureUsage
}

/**
 * @brief Represents a texture, either created by a device or wrapping a
 * caller-owned view (scene depth, scene colour, shadow map).
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID   uuid.UUID
	Desc TextureDesc
	/** @brief Device-specific objects (image, view, memory). */
	InternalData any
}

/** @brief Wraps a native view the caller owns so it can be bound like any texture. */
func NewExternalTexture(name string, native any) *Texture {
	return &Texture{
		ID:           uuid.New(),
		Desc:         TextureDesc{Name: name},
		InternalData: native,
	}
}

type BufferDesc struct {
	Name string
	Size uint64
}

/** @brief A constant buffer. */
type Buffer struct {
	ID           uuid.UUID
	Desc         BufferDesc
	InternalData any
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

func NewViewport(width, height uint32) Viewport {
	return Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
}

type Topology uint32

const (
	TOPOLOGY_TRIANGLE_LIST Topology = iota
	TOPOLOGY_PATCH_LIST_4
)

var topologyNames = []string{"TRIANGLE_LIST", "PATCH_LIST_4"}

func (t Topology) String() string { return enumString(topologyNames, t) }

/** @brief Shader stages. Can be combined when binding. */
type ShaderStage uint32

const (
	SHADER_STAGE_VERTEX  ShaderStage = 0x1
	SHADER_STAGE_HULL    ShaderStage = 0x2
	SHADER_STAGE_DOMAIN  ShaderStage = 0x4
	SHADER_STAGE_PIXEL   ShaderStage = 0x8
	SHADER_STAGE_COMPUTE ShaderStage = 0x10

	SHADER_STAGE_VS_PS    = SHADER_STAGE_VERTEX | SHADER_STAGE_PIXEL
	SHADER_STAGE_GRAPHICS = SHADER_STAGE_VERTEX | SHADER_STAGE_HULL | SHADER_STAGE_DOMAIN | SHADER_STAGE_PIXEL
	SHADER_STAGE_ALL      = SHADER_STAGE_GRAPHICS | SHADER_STAGE_COMPUTE
)

func (s ShaderStage) Has(stage ShaderStage) bool {
	return s&stage == stage
}

/** @brief The parts of a depth-stencil target to clear. */
type ClearFlags uint32

const (
	CLEAR_DEPTH   ClearFlags = 0x1
	CLEAR_STENCIL ClearFlags = 0x2
)

/** @brief What a device can do. A context needs both. */
type DeviceCapabilities struct {
	Tessellation bool
	Compute      bool
	/** @brief Largest supported sample count for render targets. */
	MaxSamples uint32
	/**
	 * @brief Blend factors can read a second pixel-shader output. Without it
	 * the composite cannot attenuate the scene, so fog is dropped.
	 */
	DualSourceBlend bool
}

type ResourceType int

/** @brief Resource types known to the asset manager. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Text resource type. */
	ResourceTypeText
	/** @brief Binary resource type. */
	ResourceTypeBinary
	/** @brief Scene configuration (TOML). */
	ResourceTypeConfig
	/** @brief Compiled shader (SPIR-V) or shader source (WGSL). */
	ResourceTypeShader
)

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The type of the resource. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data any
}
