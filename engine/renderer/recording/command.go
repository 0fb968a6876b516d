// Package recording provides a Device that records every command it is
// given instead of executing it. Draws and dispatches snapshot the pipeline
// state they would run with, so a frame can be inspected command by command.
package recording

import (
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// CommandType identifies the kind of a recorded command.
type CommandType uint8

const (
	CmdUpdateBuffer CommandType = iota
	CmdBindConstantBuffers
	CmdBindSamplers
	CmdBindShaderResources
	CmdBindUnorderedAccess
	CmdSetRenderTargets
	CmdSetViewport
	CmdSetRasterState
	CmdSetDepthStencilState
	CmdSetBlendState
	CmdSetShaders
	CmdClearColor
	CmdClearDepthStencil
	CmdDraw
	CmdDispatch
	CmdBeginEvent
	CmdEndEvent
	CMD_COUNT
)

var commandTypeNames = [...]string{
	CmdUpdateBuffer:         "UpdateBuffer",
	CmdBindConstantBuffers:  "BindConstantBuffers",
	CmdBindSamplers:         "BindSamplers",
	CmdBindShaderResources:  "BindShaderResources",
	CmdBindUnorderedAccess:  "BindUnorderedAccess",
	CmdSetRenderTargets:     "SetRenderTargets",
	CmdSetViewport:          "SetViewport",
	CmdSetRasterState:       "SetRasterState",
	CmdSetDepthStencilState: "SetDepthStencilState",
	CmdSetBlendState:        "SetBlendState",
	CmdSetShaders:           "SetShaders",
	CmdClearColor:           "ClearColor",
	CmdClearDepthStencil:    "ClearDepthStencil",
	CmdDraw:                 "Draw",
	CmdDispatch:             "Dispatch",
	CmdBeginEvent:           "BeginEvent",
	CmdEndEvent:             "EndEvent",
}

func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is implemented by every recorded command.
type Command interface {
	Type() CommandType
}

// Textures are recorded by name; an unbound slot is "".
func names(textures []*metadata.Texture) []string {
	out := make([]string, len(textures))
	for i, t := range textures {
		if t != nil {
			out[i] = t.Desc.Name
		}
	}
	return out
}

type UpdateBuffer struct {
	Buffer string
	Data   []byte
}

type BindConstantBuffers struct {
	Stages  metadata.ShaderStage
	Buffers []string
}

type BindSamplers struct {
	Stages   metadata.ShaderStage
	Samplers []metadata.SamplerState
}

type BindShaderResources struct {
	Stages metadata.ShaderStage
	Views  []string
}

type BindUnorderedAccess struct {
	Views []string
}

type SetRenderTargets struct {
	Color         []string
	Depth         string
	ReadOnlyDepth bool
}

type SetViewport struct {
	Viewport metadata.Viewport
}

type SetRasterState struct {
	State metadata.RasterState
}

type SetDepthStencilState struct {
	State      metadata.DepthStencilState
	StencilRef uint32
}

type SetBlendState struct {
	State  metadata.BlendState
	Factor math.Vec4
}

type SetShaders struct {
	Keys Pipeline
}

type ClearColor struct {
	Target string
	Color  math.Vec4
}

type ClearDepthStencil struct {
	Target  string
	Flags   metadata.ClearFlags
	Depth   float32
	Stencil uint8
}

// Pipeline holds the permutation key bound to each stage, "" when empty.
type Pipeline struct {
	VS, HS, DS, PS, CS string
}

func key(p *metadata.ShaderPermutation) string {
	if p == nil {
		return ""
	}
	return p.Key()
}

func pipelineOf(set metadata.ShaderSet) Pipeline {
	return Pipeline{VS: key(set.VS), HS: key(set.HS), DS: key(set.DS), PS: key(set.PS), CS: key(set.CS)}
}

// Draw carries the full state the draw would execute with.
type Draw struct {
	Event       string
	Topology    metadata.Topology
	VertexCount uint32
	Shaders     Pipeline

	Raster       metadata.RasterState
	DepthStencil metadata.DepthStencilState
	StencilRef   uint32
	Blend        metadata.BlendState
	BlendFactor  math.Vec4
	Viewport     metadata.Viewport

	Targets       []string
	Depth         string
	ReadOnlyDepth bool
	// PixelResources are the views bound to the pixel stage.
	PixelResources []string
}

type Dispatch struct {
	Event     string
	X, Y, Z   uint32
	Shader    string
	Resources []string
	UAVs      []string
}

type BeginEvent struct {
	Name string
}

type EndEvent struct{}

func (UpdateBuffer) Type() CommandType         { return CmdUpdateBuffer }
func (BindConstantBuffers) Type() CommandType  { return CmdBindConstantBuffers }
func (BindSamplers) Type() CommandType         { return CmdBindSamplers }
func (BindShaderResources) Type() CommandType  { return CmdBindShaderResources }
func (BindUnorderedAccess) Type() CommandType  { return CmdBindUnorderedAccess }
func (SetRenderTargets) Type() CommandType     { return CmdSetRenderTargets }
func (SetViewport) Type() CommandType          { return CmdSetViewport }
func (SetRasterState) Type() CommandType       { return CmdSetRasterState }
func (SetDepthStencilState) Type() CommandType { return CmdSetDepthStencilState }
func (SetBlendState) Type() CommandType        { return CmdSetBlendState }
func (SetShaders) Type() CommandType           { return CmdSetShaders }
func (ClearColor) Type() CommandType           { return CmdClearColor }
func (ClearDepthStencil) Type() CommandType    { return CmdClearDepthStencil }
func (Draw) Type() CommandType                 { return CmdDraw }
func (Dispatch) Type() CommandType             { return CmdDispatch }
func (BeginEvent) Type() CommandType           { return CmdBeginEvent }
func (EndEvent) Type() CommandType             { return CmdEndEvent }
