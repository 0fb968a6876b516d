package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

const SPIRV_MAGIC uint32 = 0x07230203

/**
 * @brief Returns the SPIR-V blob compiled for a permutation key such as
 * "Apply_PS[SAMPLEMODE=SINGLE,UPSAMPLEMODE=POINT,FOGMODE=NONE]".
 */
type ShaderSource func(key string) ([]byte, error)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	Key    string
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

func (s *VulkanShaderStage) CreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
}

// spirvWords reinterprets a SPIR-V blob as the little-endian words it is made of.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a multiple of 4: %w", len(code), core.ErrInvalidParameter)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != SPIRV_MAGIC {
		return nil, fmt.Errorf("missing spir-v magic number: %w", core.ErrInvalidParameter)
	}
	return words, nil
}

func NewShaderModule(context *VulkanContext, permutation metadata.ShaderPermutation, code []byte) (*VulkanShaderStage, error) {
	words, err := spirvWords(code)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", permutation.Key(), err)
	}
	stage := &VulkanShaderStage{
		Key:   permutation.Key(),
		Stage: shaderStageBit(permutation.Program.Stage()),
	}
	if err := check("vkCreateShaderModule "+stage.Key, vk.CreateShaderModule(context.LogicalDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, context.Allocator, &stage.Handle)); err != nil {
		return nil, err
	}
	return stage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}

/** @brief Loads each permutation once and keeps its module until the device is released. */
type shaderLibrary struct {
	source  ShaderSource
	modules map[string]*VulkanShaderStage
}

func newShaderLibrary(source ShaderSource) *shaderLibrary {
	return &shaderLibrary{source: source, modules: map[string]*VulkanShaderStage{}}
}

func (l *shaderLibrary) get(context *VulkanContext, permutation *metadata.ShaderPermutation) (*VulkanShaderStage, error) {
	key := permutation.Key()
	if m, ok := l.modules[key]; ok {
		return m, nil
	}
	if l.source == nil {
		return nil, fmt.Errorf("no shader source for %s: %w", key, core.ErrInvalidParameter)
	}
	code, err := l.source(key)
	if err != nil {
		return nil, fmt.Errorf("loading shader %s: %w", key, err)
	}
	m, err := NewShaderModule(context, *permutation, code)
	if err != nil {
		return nil, err
	}
	l.modules[key] = m
	core.LogDebug("shader module %s created", key)
	return m, nil
}

func (l *shaderLibrary) destroy(context *VulkanContext) {
	for key, m := range l.modules {
		m.Destroy(context)
		delete(l.modules, key)
	}
}
