package scene

import "github.com/go-gl/mathgl/mgl32"

/**
 * @brief A camera looking at a fixed target. The view and projection
 * matrices are rebuilt lazily when a setter marks the camera dirty.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position mgl32.Vec3
	/** @brief The point the camera looks at. */
	Target mgl32.Vec3
	/** @brief Z is the vertical axis of the scene. */
	Up mgl32.Vec3

	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32

	isDirty    bool
	viewMatrix mgl32.Mat4
}

// NewCamera places the default camera at (2,2,2) looking at the origin.
func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{2, 2, 2}
	c.Target = mgl32.Vec3{0, 0, 0}
	c.Up = mgl32.Vec3{0, 0, 1}
	c.FovY = 45.0
	c.Near = 0.1
	c.Far = 10.0
	c.isDirty = true
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetTarget(target mgl32.Vec3) {
	c.Target = target
	c.isDirty = true
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.isDirty {
		c.viewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
		c.isDirty = false
	}
	return c.viewMatrix
}

// GetProjection returns a Vulkan-ready perspective projection for a surface
// of the given size. A zero height falls back to a square aspect.
func (c *Camera) GetProjection(width, height uint32) mgl32.Mat4 {
	aspect := float32(1)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	// Vulkan clip space has Y pointing down.
	proj[5] *= -1
	return proj
}
