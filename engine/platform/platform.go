package platform

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW window. It satisfies renderer.Window and
// vulkan.SurfaceSource.
type Platform struct {
	Window *glfw.Window
	events *core.EventSystem

	resized atomic.Bool
}

func New(events *core.EventSystem) *Platform {
	return &Platform{
		events: events,
	}
}

// Startup creates a resizable window without a client API. The window stays
// hidden until positioned.
func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create window: %w", err)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	core.LogInfo("Window '%s' created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// RequestClose asks the loop to stop. It may be called from any goroutine.
func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
	// Wake a loop blocked in WaitEvents.
	glfw.PostEmptyEvent()
}

func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) FramebufferSize() (int, int) {
	return p.Window.GetFramebufferSize()
}

func (p *Platform) ConsumeResized() bool {
	return p.resized.Swap(false)
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code := core.EVENT_CODE_KEY_PRESSED
	switch action {
	case glfw.Press:
	case glfw.Release:
		code = core.EVENT_CODE_KEY_RELEASED
	default:
		return
	}
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(key)
	p.events.Fire(code, p, ctx)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized.Store(true)

	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	p.events.Fire(core.EVENT_CODE_RESIZED, p, ctx)
}
