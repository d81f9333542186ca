package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/assets/loaders"
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/engine/renderer"
	"github.com/spaghettifunk/vkcube/engine/scene"
)

// SurfaceSource is the window the renderer draws into.
type SurfaceSource interface {
	// RequiredInstanceExtensions lists the instance extensions needed to
	// create a surface for the window.
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// Options are the fixed inputs of the renderer.
type Options struct {
	AppName       string
	Width         uint32
	Height        uint32
	Validation    bool
	PreferMailbox bool
	ClearColor    [4]float32

	VertexShader   []uint32
	FragmentShader []uint32
	Texture        *loaders.ImageData
}

// VulkanRenderer draws the textured cube. It implements renderer.RendererBackend.
type VulkanRenderer struct {
	surface SurfaceSource
	options Options
	context *VulkanContext

	swapchain   *VulkanSwapchain
	renderpass  *VulkanRenderpass
	pipeline    *VulkanPipeline
	descriptors *VulkanDescriptors
	geometry    *VulkanGeometry
	texture     *VulkanTexture
	slots       [MaxFramesInFlight]*FrameSlot

	validation  bool
	initialized bool
	shutdown    bool
}

var _ renderer.RendererBackend = (*VulkanRenderer)(nil)

func New(surface SurfaceSource, options Options) *VulkanRenderer {
	return &VulkanRenderer{
		surface: surface,
		options: options,
		context: &VulkanContext{
			FramebufferWidth:  options.Width,
			FramebufferHeight: options.Height,
			Allocator:         nil,
			Device:            &VulkanDevice{},
		},
	}
}

// Initialize creates every object the frame loop needs. On failure the
// objects created so far stay owned by the renderer and are released by
// Shutdown.
func (vr *VulkanRenderer) Initialize() error {
	if vr.initialized {
		return nil
	}
	if len(vr.options.VertexShader) == 0 || len(vr.options.FragmentShader) == 0 {
		return core.NewFatalError("renderer setup", fmt.Errorf("%w: missing shader code", core.ErrInvalidShader))
	}
	if vr.options.Texture == nil {
		return core.NewFatalError("renderer setup", fmt.Errorf("%w: missing texture", core.ErrAssetNotFound))
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"create instance", vr.createInstance},
		{"create surface", vr.createSurface},
		{"create device", func() error { return DeviceCreate(vr.context, vr.validation) }},
		{"create swapchain", vr.createSwapchainObjects},
		{"create descriptors", vr.createDescriptors},
		{"upload geometry", vr.createGeometry},
		{"upload texture", vr.createTexture},
		{"create pipeline", vr.createPipeline},
		{"create frame slots", vr.createFrameSlots},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			core.LogError("Renderer setup failed at '%s': %s", step.name, err)
			return core.NewFatalError("failed to "+step.name, err)
		}
	}

	vr.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vr.options.AppName),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
		PEngineName:        VulkanSafeString("vkcube"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string(nil), vr.surface.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vr.options.Validation {
		available, err := instanceLayerNames()
		if err != nil {
			return err
		}
		if available[validationLayerName] {
			vr.validation = true
			layers = []string{validationLayerName}
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation requested but %s is not installed, continuing without it.", validationLayerName)
		}
	}

	for _, extension := range extensions {
		core.LogDebug("Required extension: %s", extension)
	}
	extensions = VulkanSafeStrings(extensions)
	layers = VulkanSafeStrings(layers)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = extensions
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = layers

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		return NewResultError("vkCreateInstance", res)
	}
	vr.context.Instance = instance
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var callback vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &callback); res != vk.Success {
			return NewResultError("vkCreateDebugReportCallbackEXT", res)
		}
		vr.context.debugCallback = callback
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func (vr *VulkanRenderer) createSurface() error {
	surface, err := vr.surface.CreateSurface(vr.context.Instance)
	if err != nil {
		return err
	}
	vr.context.Surface = surface
	core.LogDebug("Vulkan surface created.")
	return nil
}

// createSwapchainObjects builds the swapchain, the render pass matching its
// format and the framebuffers.
func (vr *VulkanRenderer) createSwapchainObjects() error {
	swapchain, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.options.PreferMailbox)
	if err != nil {
		return err
	}
	vr.swapchain = swapchain

	renderpass, err := RenderpassCreate(vr.context, swapchain.ImageFormat.Format, vr.context.Device.DepthFormat, vr.options.ClearColor, 1.0, 0)
	if err != nil {
		return err
	}
	vr.renderpass = renderpass

	return vr.swapchain.RegenerateFramebuffers(vr.context, vr.renderpass)
}

func (vr *VulkanRenderer) createDescriptors() error {
	descriptors, err := DescriptorsCreate(vr.context, MaxFramesInFlight)
	if err != nil {
		return err
	}
	vr.descriptors = descriptors
	return nil
}

func (vr *VulkanRenderer) createGeometry() error {
	geometry, err := GeometryCreate(
		vr.context,
		scene.VertexBytes(), uint32(len(scene.CubeVertices)),
		scene.IndexBytes(), uint32(len(scene.CubeIndices)))
	if err != nil {
		return err
	}
	vr.geometry = geometry
	return nil
}

func (vr *VulkanRenderer) createTexture() error {
	texture, err := TextureCreate(vr.context, vr.options.Texture)
	if err != nil {
		return err
	}
	vr.texture = texture
	return nil
}

func (vr *VulkanRenderer) createPipeline() error {
	pipeline, err := vr.buildPipeline(vr.options.VertexShader, vr.options.FragmentShader)
	if err != nil {
		return err
	}
	vr.pipeline = pipeline
	return nil
}

// buildPipeline compiles the shader modules, creates a pipeline against the
// current render pass and releases the modules again.
func (vr *VulkanRenderer) buildPipeline(vertexCode, fragmentCode []uint32) (*VulkanPipeline, error) {
	vertex, err := ShaderStageCreate(vr.context, vertexCode, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	defer vertex.Destroy(vr.context)

	fragment, err := ShaderStageCreate(vr.context, fragmentCode, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	defer fragment.Destroy(vr.context)

	return NewGraphicsPipeline(vr.context, CubePipelineConfig(vr.renderpass, vr.descriptors.Layout, vertex, fragment))
}

func (vr *VulkanRenderer) createFrameSlots() error {
	for i := range vr.slots {
		slot, err := FrameSlotCreate(vr.context, vr.descriptors, vr.texture)
		if err != nil {
			return fmt.Errorf("frame slot %d: %w", i, err)
		}
		vr.slots[i] = slot
	}
	return nil
}

func (vr *VulkanRenderer) WaitForFence(slot uint32) error {
	return vr.slots[slot].InFlight.FenceWait(vr.context, math.MaxUint64)
}

func (vr *VulkanRenderer) AcquireNextImage(slot uint32) (uint32, renderer.PresentStatus, error) {
	return vr.swapchain.AcquireNextImageIndex(vr.context, math.MaxUint64, vr.slots[slot].ImageAvailable)
}

func (vr *VulkanRenderer) RecordFrame(slot uint32, imageIndex uint32, ubo *scene.UniformBufferObject) error {
	if int(imageIndex) >= len(vr.swapchain.Framebuffers) {
		return fmt.Errorf("image index %d out of range (%d images)", imageIndex, len(vr.swapchain.Framebuffers))
	}
	frame := vr.slots[slot]

	if err := frame.WriteUniforms(vr.context, ubo); err != nil {
		return err
	}
	// Only reset once work is certain to be submitted, otherwise the next
	// wait on this slot would never return.
	if err := frame.InFlight.FenceReset(vr.context); err != nil {
		return err
	}

	cb := frame.CommandBuffer
	if err := cb.Reset(); err != nil {
		return err
	}
	if err := cb.Begin(false, false, false); err != nil {
		return err
	}

	extent := vr.swapchain.Extent
	vr.renderpass.Begin(cb, vr.swapchain.Framebuffers[imageIndex].Handle, extent)

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.pipeline.Bind(cb, vk.PipelineBindPointGraphics)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, vr.pipeline.PipelineLayout,
		0, 1, []vk.DescriptorSet{frame.DescriptorSet}, 0, nil)
	vr.geometry.Draw(cb)

	vr.renderpass.End(cb)
	return cb.End()
}

func (vr *VulkanRenderer) Submit(slot uint32) error {
	frame := vr.slots[slot]

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.ImageAvailable},
		// Colour writes wait for the image, earlier stages may run ahead.
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{frame.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{frame.RenderFinished},
	}
	if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frame.InFlight.Handle); res != vk.Success {
		return NewResultError("vkQueueSubmit", res)
	}
	frame.CommandBuffer.UpdateSubmitted()
	return nil
}

func (vr *VulkanRenderer) Present(slot uint32, imageIndex uint32) (renderer.PresentStatus, error) {
	return vr.swapchain.Present(vr.context.Device.PresentQueue, vr.slots[slot].RenderFinished, imageIndex)
}

// RecreateSwapchain tears down and rebuilds the swapchain, its views, depth
// buffer, framebuffers, render pass and pipeline. The caller must have waited
// for the device to go idle.
func (vr *VulkanRenderer) RecreateSwapchain(width, height uint32) error {
	core.LogInfo("Recreating swapchain at %dx%d.", width, height)

	if vr.pipeline != nil {
		vr.pipeline.Destroy(vr.context)
		vr.pipeline = nil
	}
	if vr.swapchain != nil {
		vr.swapchain.Destroy(vr.context)
		vr.swapchain = nil
	}
	if vr.renderpass != nil {
		vr.renderpass.Destroy(vr.context)
		vr.renderpass = nil
	}

	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	if err := vr.createSwapchainObjects(); err != nil {
		return err
	}
	if err := vr.createPipeline(); err != nil {
		return err
	}

	for i, slot := range vr.slots {
		if err := slot.RecreateImageAvailable(vr.context); err != nil {
			return fmt.Errorf("frame slot %d: %w", i, err)
		}
	}
	return nil
}

// SetShaders swaps in new shader code. The current pipeline is kept when the
// new code cannot be built into one.
func (vr *VulkanRenderer) SetShaders(vertexCode, fragmentCode []uint32) error {
	if err := vr.WaitIdle(); err != nil {
		return err
	}
	pipeline, err := vr.buildPipeline(vertexCode, fragmentCode)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidShader, err)
	}
	vr.pipeline.Destroy(vr.context)
	vr.pipeline = pipeline
	vr.options.VertexShader = vertexCode
	vr.options.FragmentShader = fragmentCode
	core.LogInfo("Shaders reloaded.")
	return nil
}

func (vr *VulkanRenderer) WaitIdle() error {
	if vr.context.Device.LogicalDevice == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		return NewResultError("vkDeviceWaitIdle", res)
	}
	return nil
}

func (vr *VulkanRenderer) Extent() (uint32, uint32) {
	if vr.swapchain == nil {
		return vr.context.FramebufferWidth, vr.context.FramebufferHeight
	}
	return vr.swapchain.Extent.Width, vr.swapchain.Extent.Height
}

// Shutdown destroys everything in reverse creation order. It is safe to call
// after a failed Initialize and does nothing the second time.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.shutdown {
		return nil
	}
	vr.shutdown = true

	if err := vr.WaitIdle(); err != nil {
		core.LogWarn("Shutdown: %s", err)
	}

	if vr.context.Device.LogicalDevice != nil {
		for i, slot := range vr.slots {
			if slot != nil {
				slot.Destroy(vr.context)
				vr.slots[i] = nil
			}
		}
		if vr.pipeline != nil {
			vr.pipeline.Destroy(vr.context)
			vr.pipeline = nil
		}
		if vr.texture != nil {
			vr.texture.Destroy(vr.context)
			vr.texture = nil
		}
		if vr.geometry != nil {
			vr.geometry.Destroy(vr.context)
			vr.geometry = nil
		}
		if vr.descriptors != nil {
			vr.descriptors.Destroy(vr.context)
			vr.descriptors = nil
		}
		if vr.swapchain != nil {
			vr.swapchain.Destroy(vr.context)
			vr.swapchain = nil
		}
		if vr.renderpass != nil {
			vr.renderpass.Destroy(vr.context)
			vr.renderpass = nil
		}
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vr.context)
	}

	if vr.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.context.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugCallback, vr.context.Allocator)
		vr.context.debugCallback = vk.NullDebugReportCallback
	}
	if vr.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}
	return nil
}

func instanceLayerNames() (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, NewResultError("vkEnumerateInstanceLayerProperties", res)
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return nil, NewResultError("vkEnumerateInstanceLayerProperties", res)
	}
	names := make(map[string]bool, count)
	for _, layer := range layers {
		layer.Deref()
		names[vk.ToString(layer.LayerName[:])] = true
	}
	return names, nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
