package scene

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(20), VertexStride)
	assert.Equal(t, uint32(0), VertexPosOffset)
	assert.Equal(t, uint32(12), VertexTexCoordOffset)
	assert.Len(t, VertexBytes(), 8*20)
	assert.Len(t, IndexBytes(), 36*2)
}

func TestCubeIndices(t *testing.T) {
	used := map[uint16]int{}
	for _, i := range CubeIndices {
		require.Less(t, int(i), len(CubeVertices))
		used[i]++
	}
	assert.Len(t, used, len(CubeVertices), "every vertex is referenced")

	for _, v := range CubeVertices {
		for _, c := range v.Pos {
			assert.Equal(t, float32(0.5), float32(math.Abs(float64(c))))
		}
	}
}

func TestModelMatrixRotation(t *testing.T) {
	tests := []struct {
		elapsed float64
		angle   float32
	}{
		{0, 0},
		{1, math.Pi / 2},
		{2, math.Pi},
		{0.5, math.Pi / 4},
		{3.25, 3.25 * math.Pi / 2},
	}
	for _, tt := range tests {
		got := ModelMatrix(tt.elapsed)
		want := mgl32.HomogRotate3DZ(tt.angle)
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-5, "t=%v element %d", tt.elapsed, i)
		}
	}

	// one second turns the x axis onto the y axis, z is untouched
	x := ModelMatrix(1).Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assertVec4InDelta(t, mgl32.Vec4{0, 1, 0, 1}, x)
	z := ModelMatrix(1.3).Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	assertVec4InDelta(t, mgl32.Vec4{0, 0, 1, 1}, z)
}

func assertVec4InDelta(t *testing.T, want, got mgl32.Vec4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6, "component %d of %v", i, got)
	}
}

func TestComputeUniformsDeterministic(t *testing.T) {
	a := ComputeUniforms(1.234, 800, 600)
	b := ComputeUniforms(1.234, 800, 600)
	assert.True(t, bytes.Equal(a.Bytes(), b.Bytes()))
	assert.Len(t, a.Bytes(), 192)
	assert.Equal(t, uint64(192), UniformBufferSize)
}

func TestComputeUniformsProjection(t *testing.T) {
	ubo := ComputeUniforms(0, 800, 600)

	want := mgl32.Perspective(mgl32.DegToRad(45), 800.0/600.0, 0.1, 10)
	assert.InDelta(t, -want[5], ubo.Proj[5], 1e-6, "y axis is flipped")
	assert.InDelta(t, want[0], ubo.Proj[0], 1e-6)

	// the origin sits in front of the camera, at the centre of the screen
	clip := ubo.Proj.Mul4(ubo.View).Mul4(ubo.Model).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5)
	depth := clip.Z() / clip.W()
	assert.True(t, depth > 0 && depth < 1, "depth %v", depth)

	assert.NotPanics(t, func() { ComputeUniforms(1, 0, 0) })
}
