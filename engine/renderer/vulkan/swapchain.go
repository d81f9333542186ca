package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/engine/renderer"
)

type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering, one per image.
	Framebuffers []*VulkanFramebuffer

	// Generation changes every time the swapchain is rebuilt.
	Generation uuid.UUID
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// SwapchainCreate builds a swapchain for the surface in context sized as close
// to width x height as the surface allows, along with its image views and a
// matching depth attachment. Framebuffers are created separately once a render
// pass exists.
func SwapchainCreate(context *VulkanContext, width, height uint32, preferMailbox bool) (*VulkanSwapchain, error) {
	support, err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface)
	if err != nil {
		return nil, err
	}
	context.Device.SwapchainSupport = support

	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Errorf("surface reports no formats or present modes")
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(support.PresentModes, preferMailbox),
		Extent:      chooseExtent(support.Capabilities, width, height),
		Generation:  uuid.New(),
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Images are shared when graphics and present live on different families.
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			context.Device.GraphicsQueueIndex,
			context.Device.PresentQueueIndex,
		}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, NewResultError("vkCreateSwapchainKHR", res)
	}
	swapchain.Handle = handle

	var imageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &imageCount, nil); res != vk.Success {
		swapchain.Destroy(context)
		return nil, NewResultError("vkGetSwapchainImagesKHR", res)
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy(context)
		return nil, NewResultError("vkGetSwapchainImagesKHR", res)
	}

	swapchain.Views = make([]vk.ImageView, 0, imageCount)
	for _, image := range swapchain.Images {
		view, err := ImageViewCreate(context, image, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			swapchain.Destroy(context)
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	depth, err := ImageCreate(
		context,
		swapchain.Extent.Width,
		swapchain.Extent.Height,
		context.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		swapchain.Destroy(context)
		return nil, fmt.Errorf("depth attachment: %w", err)
	}
	swapchain.DepthAttachment = depth

	context.FramebufferWidth = swapchain.Extent.Width
	context.FramebufferHeight = swapchain.Extent.Height

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d (generation %s)",
		swapchain.Extent.Width, swapchain.Extent.Height, imageCount, swapchain.PresentMode, swapchain.Generation)
	return swapchain, nil
}

// RegenerateFramebuffers creates one framebuffer per swapchain image, each
// pairing the image view with the shared depth attachment.
func (vs *VulkanSwapchain) RegenerateFramebuffers(context *VulkanContext, renderpass *VulkanRenderpass) error {
	vs.destroyFramebuffers(context)
	vs.Framebuffers = make([]*VulkanFramebuffer, 0, len(vs.Views))
	for _, view := range vs.Views {
		attachments := []vk.ImageView{view, vs.DepthAttachment.View}
		framebuffer, err := FramebufferCreate(context, renderpass, vs.Extent.Width, vs.Extent.Height, attachments)
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, framebuffer)
	}
	return nil
}

// AcquireNextImageIndex asks the presentation engine for the next image and
// signals imageAvailable once it may be rendered to.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailable vk.Semaphore) (uint32, renderer.PresentStatus, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, imageAvailable, vk.NullFence, &imageIndex)
	status, err := presentStatus("vkAcquireNextImageKHR", res)
	return imageIndex, status, err
}

// Present queues imageIndex for presentation after renderComplete signals.
func (vs *VulkanSwapchain) Present(presentQueue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) (renderer.PresentStatus, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(presentQueue, &presentInfo)
	return presentStatus("vkQueuePresentKHR", res)
}

func (vs *VulkanSwapchain) destroyFramebuffers(context *VulkanContext) {
	for _, framebuffer := range vs.Framebuffers {
		framebuffer.Destroy(context)
	}
	vs.Framebuffers = nil
}

// Destroy releases everything the swapchain owns. The images themselves belong
// to the swapchain handle and go away with it.
func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	vs.destroyFramebuffers(context)
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(context)
		vs.DepthAttachment = nil
	}
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}

// chooseSurfaceFormat prefers 8-bit BGRA sRGB and otherwise takes whatever the
// surface lists first.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode returns mailbox when asked for and available. FIFO is
// always supported.
func choosePresentMode(modes []vk.PresentMode, preferMailbox bool) vk.PresentMode {
	if preferMailbox {
		for _, mode := range modes {
			if mode == vk.PresentModeMailbox {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves it
// to the application (width 0xFFFFFFFF), in which case the framebuffer size is
// clamped to the allowed range.
func chooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	return vk.Extent2D{
		Width:  Clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: Clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func chooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	count := capabilities.MinImageCount + 1
	// Zero means no upper bound.
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}
