package scene

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// RotationSpeed is the cube's angular speed in radians per second (90°/s).
	RotationSpeed = math.Pi / 2
)

// UniformBufferObject matches the std140 block at binding 0 of the vertex shader.
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

var UniformBufferSize = uint64(unsafe.Sizeof(UniformBufferObject{}))

// ModelMatrix is a rotation of RotationSpeed*elapsed radians about the vertical axis.
func ModelMatrix(elapsed float64) mgl32.Mat4 {
	return mgl32.HomogRotate3DZ(float32(elapsed * RotationSpeed))
}

// ComputeUniforms builds the transforms for a frame drawn elapsed seconds after
// start onto a surface of the given size. It depends on nothing but its arguments.
func ComputeUniforms(elapsed float64, width, height uint32) UniformBufferObject {
	return NewCamera().Uniforms(elapsed, width, height)
}

// Uniforms builds the transforms for a frame as seen from c.
func (c *Camera) Uniforms(elapsed float64, width, height uint32) UniformBufferObject {
	return UniformBufferObject{
		Model: ModelMatrix(elapsed),
		View:  c.GetView(),
		Proj:  c.GetProjection(width, height),
	}
}

// Bytes returns the raw memory of the uniforms, column-major as GLSL expects.
func (u *UniformBufferObject) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformBufferSize)
}
