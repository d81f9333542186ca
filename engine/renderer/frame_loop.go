package renderer

import (
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/engine/scene"
)

// FrameLoop renders frames until the window closes, rotating over
// MaxFramesInFlight frame slots and rebuilding the swapchain whenever it
// stops matching the window.
type FrameLoop struct {
	backend RendererBackend
	window  Window
	clock   *core.Clock
	metrics *core.Metrics
	camera  *scene.Camera

	state       FrameState
	slot        uint32
	frameCount  uint64
	recreations uint64
	invalidate  bool
	lastTime    float64

	onUpdate func(delta float64) error
	onState  func(from, to FrameState)
}

func NewFrameLoop(backend RendererBackend, window Window) *FrameLoop {
	return &FrameLoop{
		backend: backend,
		window:  window,
		clock:   core.NewClock(),
		metrics: core.NewMetrics(),
		camera:  scene.NewCamera(),
		state:   FrameStateIdle,
	}
}

func (fl *FrameLoop) State() FrameState {
	return fl.state
}

// Slot is the frame slot the next iteration will use.
func (fl *FrameLoop) Slot() uint32 {
	return fl.slot
}

// FrameCount is the number of frames submitted so far.
func (fl *FrameLoop) FrameCount() uint64 {
	return fl.frameCount
}

// Recreations is the number of swapchain rebuilds so far.
func (fl *FrameLoop) Recreations() uint64 {
	return fl.recreations
}

// Invalidate forces a swapchain and pipeline rebuild on the next iteration.
func (fl *FrameLoop) Invalidate() {
	fl.invalidate = true
}

// SetUpdateHook registers fn to run once per iteration after the frame, with
// the seconds elapsed since the previous iteration. An error stops Run.
func (fl *FrameLoop) SetUpdateHook(fn func(delta float64) error) {
	fl.onUpdate = fn
}

// SetStateHook registers fn to observe every state transition of the loop.
func (fl *FrameLoop) SetStateHook(fn func(from, to FrameState)) {
	fl.onState = fn
}

func (fl *FrameLoop) setState(state FrameState) {
	if state == fl.state {
		return
	}
	if fl.onState != nil {
		fl.onState(fl.state, state)
	}
	fl.state = state
}

// Run renders until the window is closed, then waits for the device to go idle.
func (fl *FrameLoop) Run() error {
	fl.clock.Start()
	fl.lastTime = 0

	for !fl.window.ShouldClose() {
		fl.window.PollEvents()
		if err := fl.RunFrame(); err != nil {
			_ = fl.backend.WaitIdle()
			return err
		}

		fl.clock.Update()
		now := fl.clock.Elapsed()
		delta := now - fl.lastTime
		fl.lastTime = now
		if fl.metrics.Update(delta) {
			fps, ms := fl.metrics.Frame()
			core.LogDebug("%.0f fps, %.2f ms/frame", fps, ms)
		}

		if fl.onUpdate != nil {
			if err := fl.onUpdate(delta); err != nil {
				_ = fl.backend.WaitIdle()
				return err
			}
		}
	}
	fl.clock.Stop()

	if err := fl.backend.WaitIdle(); err != nil {
		return core.NewFatalError("failed to wait for device idle", err)
	}
	return nil
}

// RunFrame performs one iteration: wait, acquire, record, submit, present.
// A stale swapchain is rebuilt instead and the slot is left unchanged.
func (fl *FrameLoop) RunFrame() error {
	slot := fl.slot

	fl.setState(FrameStateIdle)
	if err := fl.backend.WaitForFence(slot); err != nil {
		return core.NewFatalError("failed to wait for in-flight fence", err)
	}

	fl.setState(FrameStateAcquiring)
	if resized := fl.window.ConsumeResized(); fl.invalidate || resized {
		core.LogDebug("swapchain invalidated before acquire (resized: %t)", resized)
		fl.invalidate = false
		return fl.recreate()
	}

	imageIndex, status, err := fl.backend.AcquireNextImage(slot)
	if err != nil {
		return core.NewFatalError("failed to acquire swapchain image", err)
	}
	if status.Stale() {
		core.LogDebug("swapchain %s on acquire", status)
		fl.window.ConsumeResized()
		return fl.recreate()
	}

	fl.setState(FrameStateRecording)
	fl.clock.Update()
	width, height := fl.backend.Extent()
	ubo := fl.camera.Uniforms(fl.clock.Elapsed(), width, height)
	if err := fl.backend.RecordFrame(slot, imageIndex, &ubo); err != nil {
		return core.NewFatalError("failed to record command buffer", err)
	}

	if err := fl.backend.Submit(slot); err != nil {
		return core.NewFatalError("failed to submit draw command buffer", err)
	}
	fl.setState(FrameStateSubmitted)
	fl.frameCount++

	fl.setState(FrameStatePresenting)
	status, err = fl.backend.Present(slot, imageIndex)
	if err != nil {
		return core.NewFatalError("failed to present swapchain image", err)
	}

	// A resize may also arrive while the frame is in flight.
	resized := fl.window.ConsumeResized()
	if status.Stale() || resized {
		core.LogDebug("swapchain %s on present (resized: %t)", status, resized)
		return fl.recreate()
	}

	fl.slot = (slot + 1) % MaxFramesInFlight
	fl.setState(FrameStateIdle)
	return nil
}

// recreate waits out a minimized window, drains the device and rebuilds the swapchain.
func (fl *FrameLoop) recreate() error {
	fl.setState(FrameStateInvalidated)

	width, height := fl.window.FramebufferSize()
	for width == 0 || height == 0 {
		if fl.window.ShouldClose() {
			return nil
		}
		fl.window.WaitEvents()
		width, height = fl.window.FramebufferSize()
	}

	if err := fl.backend.WaitIdle(); err != nil {
		return core.NewFatalError("failed to wait for device idle", err)
	}
	if err := fl.backend.RecreateSwapchain(uint32(width), uint32(height)); err != nil {
		return core.NewFatalError("failed to recreate swapchain", err)
	}
	fl.recreations++

	fl.setState(FrameStateIdle)
	return nil
}
