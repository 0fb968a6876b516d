package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func randomInvertible(r *rand.Rand) Mat4 {
	m := NewMat4Identity()
	for i := range m.Data {
		m.Data[i] += r.Float32()*0.5 - 0.25
	}
	return m
}

func TestMat4InverseProduct(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	identity := NewMat4Identity()

	for n := 0; n < 64; n++ {
		m := randomInvertible(r)
		inv := m.Inverse()
		require.False(t, inv.IsZero())
		assert.True(t, m.Mul(inv).Compare(identity, 1e-4), "m * inv(m) for %v", m)
		assert.True(t, inv.Mul(m).Compare(identity, 1e-4), "inv(m) * m for %v", m)
	}
}

func TestMat4InverseSingular(t *testing.T) {
	zero := Mat4{}
	assert.True(t, zero.Inverse().IsZero())

	m := NewMat4Identity()
	m.Data[5] = 0
	assert.True(t, m.Inverse().IsZero())

	// duplicated rows
	d := Mat4{Data: [16]float32{
		1, 2, 3, 4,
		1, 2, 3, 4,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}}
	assert.True(t, d.Inverse().IsZero())
}

func TestMat4InverseTranslation(t *testing.T) {
	m := NewMat4Translation(NewVec3(3, -2, 5))
	expected := NewMat4Translation(NewVec3(-3, 2, -5))
	assert.True(t, m.Inverse().Compare(expected, 1e-6))
}

func TestMat4MulOrder(t *testing.T) {
	// scale then translate
	m := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	p := NewVec3(1, 1, 1).Transform(m)
	assert.True(t, p.Compare(NewVec3(3, 2, 2), 1e-6))
}

func TestPerspectiveLHDepthRange(t *testing.T) {
	near, far := float32(0.5), float32(100)
	proj := NewMat4PerspectiveLH(DegToRad(60), 16.0/9.0, near, far)

	assert.InDelta(t, near, -proj.Data[14]/proj.Data[10], 1e-4)
	assert.InDelta(t, far, proj.Data[14]/(1-proj.Data[10]), 1e-1)

	atNear := NewVec4(0, 0, near, 1).Transform(proj).PerspectiveDivide()
	atFar := NewVec4(0, 0, far, 1).Transform(proj).PerspectiveDivide()
	assert.InDelta(t, 0, atNear.Z, 1e-5)
	assert.InDelta(t, 1, atFar.Z, 1e-5)
}

func TestOrthographicLH(t *testing.T) {
	ortho := NewMat4OrthographicLH(25, 25, 0.5, 50)
	corner := NewVec3(12.5, -12.5, 50).Transform(ortho)
	assert.True(t, corner.Compare(NewVec3(1, -1, 1), 1e-5))
	assert.InDelta(t, 0, NewVec3(0, 0, 0.5).Transform(ortho).Z, 1e-6)
}

func TestLookAtLH(t *testing.T) {
	eye := NewVec3(0, 0, -10)
	view := NewMat4LookAtLH(eye, NewVec3Zero(), NewVec3Up())

	origin := NewVec3Zero().Transform(view)
	assert.True(t, origin.Compare(NewVec3(0, 0, 10), 1e-5))
	assert.True(t, eye.Transform(view).Compare(NewVec3Zero(), 1e-5))
}

func TestTransposed(t *testing.T) {
	m := Mat4{}
	for i := range m.Data {
		m.Data[i] = float32(i)
	}
	tr := m.Transposed()
	assert.Equal(t, m.At(1, 2), tr.At(2, 1))
	assert.Equal(t, m, tr.Transposed())
}

func TestHalton(t *testing.T) {
	assert.Equal(t, float32(0.5), Halton(0, 2))
	assert.Equal(t, float32(0.25), Halton(1, 2))
	assert.Equal(t, float32(0.75), Halton(2, 2))
	assert.InDelta(t, 1.0/3.0, Halton(0, 3), 1e-6)
	assert.InDelta(t, 2.0/3.0, Halton(1, 3), 1e-6)
	assert.InDelta(t, 1.0/9.0, Halton(2, 3), 1e-6)

	for i := uint32(0); i < 64; i++ {
		h := Halton(i, 2)
		assert.GreaterOrEqual(t, h, float32(0))
		assert.Less(t, h, float32(1))
		assert.Equal(t, h, Halton(i, 2))
	}
}

func TestHaltonJitterCentered(t *testing.T) {
	j := HaltonJitter(0)
	assert.Equal(t, float32(0), j.X)
	assert.InDelta(t, 1.0/3.0-0.5, j.Y, 1e-6)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
	assert.Equal(t, uint32(7), Clamp(uint32(7), 1, 9))
}
