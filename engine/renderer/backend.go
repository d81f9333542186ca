package renderer

import "github.com/spaghettifunk/vkcube/engine/scene"

// PresentStatus classifies the outcome of an acquire or present call that did
// not fail outright.
type PresentStatus uint8

const (
	// StatusOptimal means the swapchain still matches the surface.
	StatusOptimal PresentStatus = iota
	// StatusSuboptimal means the call worked but the swapchain should be rebuilt.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used.
	StatusOutOfDate
)

func (s PresentStatus) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	default:
		return "unknown"
	}
}

// Stale reports whether the swapchain has to be recreated.
func (s PresentStatus) Stale() bool {
	return s != StatusOptimal
}

// RendererBackend is the set of GPU operations the frame loop drives. Every
// slot argument is in [0, MaxFramesInFlight).
type RendererBackend interface {
	// WaitForFence blocks until the slot's previous submission has completed.
	WaitForFence(slot uint32) error
	// AcquireNextImage obtains the next presentable image, signalling the
	// slot's image-available semaphore.
	AcquireNextImage(slot uint32) (uint32, PresentStatus, error)
	// RecordFrame writes the uniforms into the slot's buffer, resets the slot's
	// fence and re-records its command buffer against imageIndex.
	RecordFrame(slot uint32, imageIndex uint32, ubo *scene.UniformBufferObject) error
	// Submit queues the slot's command buffer on the graphics queue.
	Submit(slot uint32) error
	// Present queues imageIndex for presentation once rendering finished.
	Present(slot uint32, imageIndex uint32) (PresentStatus, error)
	// RecreateSwapchain rebuilds every size-dependent object for the new framebuffer size.
	RecreateSwapchain(width, height uint32) error
	// WaitIdle blocks until the device has no pending work.
	WaitIdle() error
	// Extent is the current swapchain size.
	Extent() (uint32, uint32)
}

// Window is the part of the platform window the frame loop needs.
type Window interface {
	ShouldClose() bool
	PollEvents()
	// WaitEvents blocks until at least one window event arrives.
	WaitEvents()
	FramebufferSize() (int, int)
	// ConsumeResized returns true once after each framebuffer resize.
	ConsumeResized() bool
}
