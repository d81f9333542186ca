package engine

import (
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/vkcube/engine/assets"
	"github.com/spaghettifunk/vkcube/engine/assets/loaders"
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/engine/platform"
	"github.com/spaghettifunk/vkcube/engine/renderer"
	"github.com/spaghettifunk/vkcube/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkcube/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine wires the window, the asset manager, the Vulkan renderer and the
// frame loop together.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig

	events       *core.EventSystem
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *vulkan.VulkanRenderer
	loop         *renderer.FrameLoop

	// resolved shader paths, as reported by the asset watcher
	vertexShaderPath   string
	fragmentShaderPath string

	// requestClose stops the frame loop. It is safe to call from any goroutine.
	// Guarded by closeMutex, Quit may race with Initialize.
	requestClose  func()
	quitRequested bool
	closeMutex    sync.Mutex
	// reloadShaders swaps the pipeline shaders.
	reloadShaders func(vertex, fragment []uint32) error

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("%w: game and application config are required", core.ErrInvalidConfig)
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}
	events := core.NewEventSystem()
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig,
		events:       events,
		platform:     platform.New(events),
	}
	// Quit works from the start, a signal may arrive while Initialize runs.
	events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	return e, nil
}

// Initialize loads every asset before the window opens, so a missing file
// fails fast, then brings up the window and the renderer.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.SetLogLevel(e.config.LogLevel); err != nil {
		return err
	}

	am, err := assets.NewAssetManager(e.config.Assets.Watch)
	if err != nil {
		return core.NewFatalError("failed to create asset manager", err)
	}
	e.assetManager = am

	loaded, err := e.loadStartupAssets()
	if err != nil {
		return err
	}
	vertex, fragment, texture := loaded[0], loaded[1], loaded[2]
	e.vertexShaderPath = vertex.FullPath
	e.fragmentShaderPath = fragment.FullPath

	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	window := e.config.Window
	if err := e.platform.Startup(window.Title, window.StartPosX, window.StartPosY, window.StartWidth, window.StartHeight); err != nil {
		return core.NewFatalError("failed to open window", err)
	}
	e.setRequestClose(e.platform.RequestClose)

	width, height := e.platform.FramebufferSize()
	e.renderer = vulkan.New(e.platform, vulkan.Options{
		AppName:        window.Title,
		Width:          uint32(width),
		Height:         uint32(height),
		Validation:     e.config.Renderer.Validation,
		PreferMailbox:  e.config.Renderer.PreferMailbox,
		ClearColor:     e.config.Renderer.ClearColor,
		VertexShader:   vertex.Data.([]uint32),
		FragmentShader: fragment.Data.([]uint32),
		Texture:        texture.Data.(*loaders.ImageData),
	})
	if err := e.renderer.Initialize(); err != nil {
		return err
	}
	e.reloadShaders = e.renderer.SetShaders

	// The pixels live in device memory now.
	if err := e.assetManager.UnloadAsset(texture); err != nil {
		core.LogWarn("failed to unload texture: %s", err)
	}

	e.loop = renderer.NewFrameLoop(e.renderer, e.platform)
	e.loop.SetUpdateHook(e.update)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run renders until the window closes or a fatal error occurs.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	err := e.loop.Run()
	core.LogInfo("Frame loop finished after %d frames and %d swapchain rebuilds.", e.loop.FrameCount(), e.loop.Recreations())
	return err
}

// Quit asks the engine to stop after the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

// Shutdown releases everything in reverse order of creation. Only the first
// call does any work.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		var errs []error

		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.renderer != nil {
			if err := e.renderer.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.platform.Window != nil {
			if err := e.platform.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.assetManager != nil {
			if err := e.assetManager.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		e.events.Shutdown()

		if len(errs) > 0 {
			e.shutdownErr = fmt.Errorf("shutdown: %v", errs)
		}
		e.currentStage = EngineStageUninitialized
	})
	return e.shutdownErr
}

// loadStartupAssets reads both shaders and decodes the texture in parallel.
// The results come back in the order vertex, fragment, texture.
func (e *Engine) loadStartupAssets() ([]*loaders.Resource, error) {
	requests := []struct {
		what string
		path string
		kind loaders.ResourceType
	}{
		{"vertex shader", e.config.Assets.VertexShader, loaders.ResourceTypeShader},
		{"fragment shader", e.config.Assets.FragmentShader, loaders.ResourceTypeShader},
		{"texture", e.config.Assets.Texture, loaders.ResourceTypeImage},
	}

	js, err := systems.NewJobSystem(len(requests), len(requests))
	if err != nil {
		return nil, core.NewFatalError("failed to start asset loaders", err)
	}
	defer js.Shutdown()

	loaded := make([]*loaders.Resource, len(requests))
	errs := make([]error, len(requests))
	for i, req := range requests {
		i, req := i, req
		err := js.Submit(systems.JobTask{
			Name: "load " + req.what,
			Run: func() (interface{}, error) {
				return e.assetManager.LoadAsset(req.path, req.kind)
			},
			OnComplete: func(result interface{}) { loaded[i] = result.(*loaders.Resource) },
			OnFailure:  func(err error) { errs[i] = err },
		})
		if err != nil {
			return nil, core.NewFatalError("failed to queue "+req.what, err)
		}
	}
	js.Wait()

	for i, req := range requests {
		if errs[i] != nil {
			return nil, core.NewFatalError("failed to load "+req.what, errs[i])
		}
	}
	return loaded, nil
}

// update runs once per frame on the main thread.
func (e *Engine) update(delta float64) error {
	if e.assetManager != nil {
		for _, path := range e.assetManager.Poll() {
			ctx := core.EventContext{}
			ctx.Data.S = path
			e.onAssetChanged(core.EVENT_CODE_ASSET_CHANGED, e, e, ctx)
		}
	}
	if e.gameInstance.FnUpdate != nil {
		return e.gameInstance.FnUpdate(delta)
	}
	return nil
}

// onAssetChanged reloads both shaders when either one changes on disk. A
// shader that fails to load or link leaves the running pipeline untouched.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	path := data.Data.S
	if path != e.vertexShaderPath && path != e.fragmentShaderPath {
		core.LogDebug("ignoring change of %s", path)
		return false
	}

	core.LogInfo("Shader %s changed, reloading.", path)
	vertex, err := e.assetManager.LoadAsset(e.vertexShaderPath, loaders.ResourceTypeShader)
	if err != nil {
		core.LogWarn("Shader reload skipped: %s", err)
		return true
	}
	fragment, err := e.assetManager.LoadAsset(e.fragmentShaderPath, loaders.ResourceTypeShader)
	if err != nil {
		core.LogWarn("Shader reload skipped: %s", err)
		return true
	}
	if err := e.reloadShaders(vertex.Data.([]uint32), fragment.Data.([]uint32)); err != nil {
		core.LogWarn("Shader reload failed, keeping the current pipeline: %s", err)
	}
	return true
}

// setRequestClose installs fn as the way to stop the loop. A quit requested
// before it was installed is delivered at once.
func (e *Engine) setRequestClose(fn func()) {
	e.closeMutex.Lock()
	e.requestClose = fn
	pending := e.quitRequested
	e.closeMutex.Unlock()

	if pending && fn != nil {
		fn()
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.closeMutex.Lock()
		e.quitRequested = true
		requestClose := e.requestClose
		e.closeMutex.Unlock()

		if requestClose != nil {
			requestClose()
		}
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch glfw.Key(data.Data.U32[0]) {
	case glfw.KeyEscape:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case glfw.KeyF5:
		if e.loop != nil {
			core.LogInfo("Forcing swapchain rebuild.")
			e.loop.Invalidate()
		}
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, rendering paused.")
	} else {
		core.LogDebug("Window resize: %d, %d", width, height)
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize handler: %s", err)
		}
	}
	// Other listeners may care too.
	return false
}
