package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func perm(p metadata.ShaderProgram) *metadata.ShaderPermutation {
	s := metadata.NewShaderPermutation(p)
	return &s
}

func TestOpen(t *testing.T) {
	d, err := Open(nil)
	require.NoError(t, err)
	assert.True(t, d.Capabilities().Tessellation)

	opts := DefaultOptions()
	opts.Capabilities.MaxSamples = 2
	d, err = Open(&opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), d.Capabilities().MaxSamples)

	same, err := Open(d)
	require.NoError(t, err)
	assert.Same(t, d, same)

	_, err = Open("gpu0")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestSetShadersValidation(t *testing.T) {
	d := New(DefaultOptions())

	err := d.SetShaders(nil, metadata.ShaderSet{VS: perm(metadata.SHADER_PROGRAM_APPLY_PS)})
	assert.Error(t, err)

	err = d.SetShaders(nil, metadata.ShaderSet{
		VS: perm(metadata.SHADER_PROGRAM_QUAD_VS),
		CS: perm(metadata.SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS),
	})
	assert.Error(t, err)

	err = d.SetShaders(nil, metadata.ShaderSet{
		VS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_VS),
		HS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_HS),
		PS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_PS),
	})
	assert.Error(t, err)

	assert.Zero(t, d.Count(CmdSetShaders))
	assert.NoError(t, d.SetShaders(nil, metadata.ShaderSet{CS: perm(metadata.SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS)}))
	assert.Equal(t, 1, d.Count(CmdSetShaders))
}

func TestDrawTopology(t *testing.T) {
	d := New(DefaultOptions())

	assert.Error(t, d.Draw(nil, metadata.TOPOLOGY_TRIANGLE_LIST, 3), "no vertex program")

	require.NoError(t, d.SetShaders(nil, metadata.ShaderSet{
		VS: perm(metadata.SHADER_PROGRAM_QUAD_VS),
		PS: perm(metadata.SHADER_PROGRAM_DEBUG_PS),
	}))
	assert.Error(t, d.Draw(nil, metadata.TOPOLOGY_PATCH_LIST_4, 4))
	assert.NoError(t, d.Draw(nil, metadata.TOPOLOGY_TRIANGLE_LIST, 3))

	require.NoError(t, d.SetShaders(nil, metadata.ShaderSet{
		VS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_VS),
		HS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_HS),
		DS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_DS),
		PS: perm(metadata.SHADER_PROGRAM_RENDER_VOLUME_PS),
	}))
	assert.Error(t, d.Draw(nil, metadata.TOPOLOGY_TRIANGLE_LIST, 6))
	assert.NoError(t, d.Draw(nil, metadata.TOPOLOGY_PATCH_LIST_4, 4))

	assert.Error(t, d.Dispatch(nil, 1, 1, 1), "no compute program")
	assert.Equal(t, 2, d.Count(CmdDraw))
}

func TestDrawSnapshot(t *testing.T) {
	d := New(DefaultOptions())
	target, err := d.CreateTexture(metadata.TextureDesc{Name: "Target", Width: 4, Height: 4, Samples: 1})
	require.NoError(t, err)
	shadow := metadata.NewExternalTexture("Shadow", nil)

	d.BeginEvent(nil, "Outer")
	d.BeginEvent(nil, "Inner")
	d.SetRenderTargets(nil, []*metadata.Texture{target}, nil, false)
	d.BindShaderResources(nil, metadata.SHADER_STAGE_GRAPHICS, []*metadata.Texture{nil, shadow})
	d.BindShaderResources(nil, metadata.SHADER_STAGE_COMPUTE, []*metadata.Texture{target})
	d.SetBlendState(nil, metadata.BLEND_ADDITIVE, math.NewVec4(0.5, 0.5, 0.5, 0.5))
	d.SetViewport(nil, metadata.NewViewport(4, 4))
	require.NoError(t, d.SetShaders(nil, metadata.ShaderSet{
		VS: perm(metadata.SHADER_PROGRAM_QUAD_VS),
		PS: perm(metadata.SHADER_PROGRAM_RESOLVE_PS),
	}))
	require.NoError(t, d.Draw(nil, metadata.TOPOLOGY_TRIANGLE_LIST, 3))
	d.EndEvent(nil)
	d.EndEvent(nil)

	draws := d.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, Draw{
		Event:          "Outer/Inner",
		Topology:       metadata.TOPOLOGY_TRIANGLE_LIST,
		VertexCount:    3,
		Shaders:        Pipeline{VS: "Quad_VS", PS: "Resolve_PS[SAMPLEMODE=SINGLE]"},
		Blend:          metadata.BLEND_ADDITIVE,
		BlendFactor:    math.NewVec4(0.5, 0.5, 0.5, 0.5),
		Viewport:       metadata.NewViewport(4, 4),
		Targets:        []string{"Target"},
		PixelResources: []string{"", "Shadow"},
	}, draws[0])
	assert.Equal(t, 2, d.Count(CmdBeginEvent))
	assert.Equal(t, 2, d.Count(CmdEndEvent))
}

func TestUpdateBuffer(t *testing.T) {
	d := New(DefaultOptions())
	b, err := d.CreateBuffer(metadata.BufferDesc{Name: "CB", Size: 4})
	require.NoError(t, err)

	assert.Error(t, d.UpdateBuffer(nil, b, []byte{1, 2}))
	require.NoError(t, d.UpdateBuffer(nil, b, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.InternalData)
	assert.Equal(t, [][]byte{{1, 2, 3, 4}}, d.Uploads("CB"))
	assert.Empty(t, d.Uploads("Other"))
}

func TestHistoryEviction(t *testing.T) {
	opts := DefaultOptions()
	opts.HistorySize = 3
	d := New(opts)

	for i := 0; i < 5; i++ {
		d.SetViewport(nil, metadata.NewViewport(uint32(i+1), 1))
	}
	cmds := d.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, SetViewport{Viewport: metadata.NewViewport(3, 1)}, cmds[0])
	assert.Equal(t, 5, d.Count(CmdSetViewport))

	d.Reset()
	assert.Empty(t, d.Commands())
	assert.Zero(t, d.Count(CmdSetViewport))
}

func TestInjectedFailures(t *testing.T) {
	opts := DefaultOptions()
	opts.FailTextureCreate = 2
	opts.FailSubmit = true
	d := New(opts)

	_, err := d.CreateTexture(metadata.TextureDesc{Name: "A", Width: 1, Height: 1})
	require.NoError(t, err)
	_, err = d.CreateTexture(metadata.TextureDesc{Name: "B", Width: 1, Height: 1})
	assert.ErrorIs(t, err, ErrInjected)
	_, err = d.CreateTexture(metadata.TextureDesc{Name: "C", Width: 0, Height: 1})
	assert.Error(t, err)
	assert.Len(t, d.LiveTextures(), 1)

	require.NoError(t, d.SetShaders(nil, metadata.ShaderSet{CS: perm(metadata.SHADER_PROGRAM_COMPUTE_LIGHT_LUT_CS)}))
	assert.ErrorIs(t, d.Dispatch(nil, 1, 1, 1), ErrInjected)
	assert.Empty(t, d.Dispatches())

	require.NoError(t, d.Release())
	assert.True(t, d.Released())
	_, err = d.CreateBuffer(metadata.BufferDesc{Name: "CB", Size: 4})
	assert.ErrorIs(t, err, ErrReleased)
}

func TestCommandTypeString(t *testing.T) {
	assert.Equal(t, "Dispatch", CmdDispatch.String())
	assert.Equal(t, "Unknown", CMD_COUNT.String())
	assert.Equal(t, CmdClearColor, ClearColor{}.Type())
}
