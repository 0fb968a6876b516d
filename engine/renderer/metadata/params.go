package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
)

/**
 * Parameter blocks uploaded to the four constant buffers. Every block is
 * encoded little-endian in 16-byte registers; arrays of scalars take one
 * register per element.
 */

const (
	PER_CONTEXT_CB_SIZE = 3 * 16
	PER_FRAME_CB_SIZE   = 26 * 16
	PER_VOLUME_CB_SIZE  = 51 * 16
	PER_APPLY_CB_SIZE   = 6 * 16
)

/** @brief Constant buffer slots, in binding order. */
type ConstantBufferSlot uint32

const (
	CB_SLOT_CONTEXT ConstantBufferSlot = iota
	CB_SLOT_FRAME
	CB_SLOT_VOLUME
	CB_SLOT_APPLY
	CB_SLOT_COUNT
)

var cbSlotSizes = [CB_SLOT_COUNT]uint64{PER_CONTEXT_CB_SIZE, PER_FRAME_CB_SIZE, PER_VOLUME_CB_SIZE, PER_APPLY_CB_SIZE}

func (s ConstantBufferSlot) Size() uint64 {
	return cbSlotSizes[s]
}

type PerContextCB struct {
	OutputSize    math.Vec2
	OutputSizeInv math.Vec2
	BufferSize    math.Vec2
	BufferSizeInv math.Vec2
	ResMultiplier float32
	SampleCount   uint32
}

type PerFrameCB struct {
	Proj                  math.Mat4
	ViewProj              math.Mat4
	ViewProjInv           math.Mat4
	OutputViewportSize    math.Vec2
	OutputViewportSizeInv math.Vec2
	ViewportSize          math.Vec2
	ViewportSizeInv       math.Vec2
	EyePosition           math.Vec3
	JitterOffset          math.Vec2
	ZNear                 float32
	ZFar                  float32
	ScatterPower          math.Vec3
	NumPhaseTerms         uint32
	SigmaExtinction       math.Vec3
	PhaseFunc             [MAX_PHASE_TERMS]uint32
	PhaseParams           [MAX_PHASE_TERMS]math.Vec4
}

type PerVolumeCB struct {
	LightToWorld          math.Mat4
	LightFalloffAngle     float32
	LightFalloffPower     float32
	GridSectionSize       float32
	LightToEyeDepth       float32
	LightZNear            float32
	LightZFar             float32
	AttenuationFactors    math.Vec4
	LightProj             [MAX_SHADOWMAP_ELEMENTS]math.Mat4
	LightProjInv          [MAX_SHADOWMAP_ELEMENTS]math.Mat4
	LightDir              math.Vec3
	DepthBias             float32
	LightPos              math.Vec3
	MeshResolution        uint32
	LightIntensity        math.Vec3
	TargetRaySize         float32
	ElementOffsetAndScale [MAX_SHADOWMAP_ELEMENTS]math.Vec4
	ShadowMapDim          math.Vec4
	ElementIndex          [MAX_SHADOWMAP_ELEMENTS]uint32
}

type PerApplyCB struct {
	HistoryXform    math.Mat4
	FilterThreshold float32
	HistoryFactor   float32
	FogLight        math.Vec3
	MultiScattering float32
}

type cbWriter struct {
	buf []byte
}

func (w *cbWriter) f32(values ...float32) {
	for _, v := range values {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, gomath.Float32bits(v))
	}
}

func (w *cbWriter) u32(values ...uint32) {
	for _, v := range values {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

func (w *cbWriter) pad(n int) {
	for i := 0; i < n; i++ {
		w.u32(0)
	}
}

func (w *cbWriter) vec2(v math.Vec2) { w.f32(v.X, v.Y) }
func (w *cbWriter) vec3(v math.Vec3) { w.f32(v.X, v.Y, v.Z) }
func (w *cbWriter) vec4(v math.Vec4) { w.f32(v.X, v.Y, v.Z, v.W) }
func (w *cbWriter) mat4(m math.Mat4) { w.f32(m.Data[:]...) }

/**
 * @brief Stages a block of size bytes through the registered allocator and
 * fills it. Returns nil when the allocator fails.
 */
func encode(size int, typeName string, fill func(w *cbWriter)) []byte {
	dst := core.Allocate(uintptr(size), typeName)
	if len(dst) < size {
		return nil
	}
	w := cbWriter{buf: dst[:0]}
	fill(&w)
	core.Assert(len(w.buf) == size, typeName+" encoded size")
	return w.buf
}

func (cb *PerContextCB) Encode() []byte {
	return encode(PER_CONTEXT_CB_SIZE, "PerContextCB", func(w *cbWriter) {
		w.vec2(cb.OutputSize)
		w.vec2(cb.OutputSizeInv)
		w.vec2(cb.BufferSize)
		w.vec2(cb.BufferSizeInv)
		w.f32(cb.ResMultiplier)
		w.u32(cb.SampleCount)
		w.pad(2)
	})
}

func (cb *PerFrameCB) Encode() []byte {
	return encode(PER_FRAME_CB_SIZE, "PerFrameCB", func(w *cbWriter) {
		w.mat4(cb.Proj)
		w.mat4(cb.ViewProj)
		w.mat4(cb.ViewProjInv)
		w.vec2(cb.OutputViewportSize)
		w.vec2(cb.OutputViewportSizeInv)
		w.vec2(cb.ViewportSize)
		w.vec2(cb.ViewportSizeInv)
		w.vec3(cb.EyePosition)
		w.pad(1)
		w.vec2(cb.JitterOffset)
		w.f32(cb.ZNear, cb.ZFar)
		w.vec3(cb.ScatterPower)
		w.u32(cb.NumPhaseTerms)
		w.vec3(cb.SigmaExtinction)
		w.pad(1)
		for _, f := range cb.PhaseFunc {
			w.u32(f)
			w.pad(3)
		}
		for _, p := range cb.PhaseParams {
			w.vec4(p)
		}
	})
}

func (cb *PerVolumeCB) Encode() []byte {
	return encode(PER_VOLUME_CB_SIZE, "PerVolumeCB", func(w *cbWriter) {
		w.mat4(cb.LightToWorld)
		w.f32(cb.LightFalloffAngle, cb.LightFalloffPower, cb.GridSectionSize, cb.LightToEyeDepth)
		w.f32(cb.LightZNear, cb.LightZFar)
		w.pad(2)
		w.vec4(cb.AttenuationFactors)
		for _, m := range cb.LightProj {
			w.mat4(m)
		}
		for _, m := range cb.LightProjInv {
			w.mat4(m)
		}
		w.vec3(cb.LightDir)
		w.f32(cb.DepthBias)
		w.vec3(cb.LightPos)
		w.u32(cb.MeshResolution)
		w.vec3(cb.LightIntensity)
		w.f32(cb.TargetRaySize)
		for _, e := range cb.ElementOffsetAndScale {
			w.vec4(e)
		}
		w.vec4(cb.ShadowMapDim)
		for _, idx := range cb.ElementIndex {
			w.u32(idx)
			w.pad(3)
		}
	})
}

func (cb *PerApplyCB) Encode() []byte {
	return encode(PER_APPLY_CB_SIZE, "PerApplyCB", func(w *cbWriter) {
		w.mat4(cb.HistoryXform)
		w.f32(cb.FilterThreshold, cb.HistoryFactor)
		w.pad(2)
		w.vec3(cb.FogLight)
		w.f32(cb.MultiScattering)
	})
}
