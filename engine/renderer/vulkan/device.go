package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/core"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
	// Anisotropic filtering is used only when the device offers it.
	SupportsAnisotropy bool
	MaxAnisotropy      float32
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex uint32
	PresentFamilyIndex  uint32
}

// DeviceCreate selects a physical device for context.Surface, then creates the
// logical device, its queues and the graphics command pool.
func DeviceCreate(context *VulkanContext, validation bool) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{device.GraphicsQueueIndex}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if device.SupportsAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	available, err := deviceExtensionNames(device.PhysicalDevice)
	if err != nil {
		return err
	}
	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if available[portabilitySubsetExtensionName] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, portabilitySubsetExtensionName)
	}
	extensionNames = VulkanSafeStrings(extensionNames)

	// Device layers are deprecated, they are set for older implementations.
	var layerNames []string
	if validation {
		layerNames = VulkanSafeStrings([]string{validationLayerName})
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: extensionNames,
		EnabledLayerCount:       uint32(len(layerNames)),
		PpEnabledLayerNames:     layerNames,
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		return NewResultError("vkCreateDevice", res)
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, device.GraphicsQueueIndex, 0, &graphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, device.PresentQueueIndex, 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return NewResultError("vkCreateCommandPool", res)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return DeviceDetectDepthFormat(device)
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

// DeviceQuerySwapchainSupport reads the surface capabilities, formats and
// present modes of physicalDevice.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var supportInfo VulkanSwapchainSupportInfo

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &capabilities); res != vk.Success {
		return supportInfo, NewResultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	supportInfo.Capabilities = capabilities

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return supportInfo, NewResultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return supportInfo, NewResultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return supportInfo, NewResultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if presentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return supportInfo, NewResultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return supportInfo, nil
}

// DeviceDetectDepthFormat stores the first candidate usable as an optimally
// tiled depth attachment.
func DeviceDetectDepthFormat(device *VulkanDevice) error {
	format, ok := pickDepthFormat(depthFormatCandidates, func(f vk.Format) vk.FormatProperties {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, f, &properties)
		properties.Deref()
		return properties
	})
	if !ok {
		device.DepthFormat = vk.FormatUndefined
		return core.ErrNoDepthFormat
	}
	device.DepthFormat = format
	return nil
}

func pickDepthFormat(candidates []vk.Format, properties func(vk.Format) vk.FormatProperties) (vk.Format, bool) {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		if properties(candidate).OptimalTilingFeatures&flags == flags {
			return candidate, true
		}
	}
	return vk.FormatUndefined, false
}

// SelectPhysicalDevice picks the first device that can draw to and present on
// context.Surface and supports the swapchain extension.
func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return NewResultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrNoSuitableDevice)
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return NewResultError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo, swapchainSupport, ok := PhysicalDeviceMeetsRequirements(physicalDevice, context.Surface, &properties, &requirements)
		if !ok {
			continue
		}

		name := vk.ToString(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s' (%s).", name, deviceTypeName(properties.DeviceType))
		core.LogInfo(
			"GPU Driver version: %d.%d.%d",
			vk.Version(properties.DriverVersion).Major(),
			vk.Version(properties.DriverVersion).Minor(),
			vk.Version(properties.DriverVersion).Patch(),
		)
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)
		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		context.Device.PhysicalDevice = physicalDevice
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		context.Device.SwapchainSupport = swapchainSupport
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		context.Device.SupportsAnisotropy = features.SamplerAnisotropy == vk.True
		context.Device.MaxAnisotropy = Clamp(properties.Limits.MaxSamplerAnisotropy, 1, maxAnisotropy)

		core.LogInfo("Physical device selected.")
		return nil
	}

	return fmt.Errorf("%w: none of %d devices meet the requirements", core.ErrNoSuitableDevice, physicalDeviceCount)
}

// PhysicalDeviceMeetsRequirements checks queue families, swapchain support and
// extensions of device.
func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, VulkanSwapchainSupportInfo, bool) {
	name := vk.ToString(properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	flags := make([]vk.QueueFlags, queueFamilyCount)
	presents := make([]bool, queueFamilyCount)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags[i] = queueFamilies[i].QueueFlags

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			core.LogWarn("vkGetPhysicalDeviceSurfaceSupportKHR failed on '%s': %s", name, VulkanResultString(res, false))
			return VulkanPhysicalDeviceQueueFamilyInfo{}, VulkanSwapchainSupportInfo{}, false
		}
		presents[i] = supportsPresent == vk.True
	}

	queueInfo, found := selectQueueFamilies(flags, presents, requirements)
	if !found {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", name)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)

	available, err := deviceExtensionNames(device)
	if err != nil {
		core.LogWarn("Cannot list extensions of '%s': %s", name, err)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	if missing := missingExtensions(available, requirements.DeviceExtensionNames); len(missing) > 0 {
		core.LogInfo("Required extensions not found on '%s': %v, skipping device.", name, missing)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	swapchainSupport, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil || len(swapchainSupport.Formats) == 0 || len(swapchainSupport.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping device.", name)
		return queueInfo, swapchainSupport, false
	}

	return queueInfo, swapchainSupport, true
}

// selectQueueFamilies prefers a single family that does both graphics and present.
func selectQueueFamilies(flags []vk.QueueFlags, presents []bool, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{}
	graphicsFound, presentFound := false, false

	for i := range flags {
		graphics := flags[i]&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if graphics && presents[i] {
			return VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: uint32(i), PresentFamilyIndex: uint32(i)}, true
		}
		if graphics && !graphicsFound {
			info.GraphicsFamilyIndex = uint32(i)
			graphicsFound = true
		}
		if presents[i] && !presentFound {
			info.PresentFamilyIndex = uint32(i)
			presentFound = true
		}
	}

	ok := (!requirements.Graphics || graphicsFound) && (!requirements.Present || presentFound)
	return info, ok
}

func deviceExtensionNames(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, NewResultError("vkEnumerateDeviceExtensionProperties", res)
	}
	extensions := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, extensions); res != vk.Success {
			return nil, NewResultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make(map[string]bool, count)
	for i := range extensions {
		extensions[i].Deref()
		names[vk.ToString(extensions[i].ExtensionName[:])] = true
	}
	return names, nil
}

func missingExtensions(available map[string]bool, required []string) []string {
	var missing []string
	for _, name := range required {
		if !available[strings.TrimRight(name, end)] {
			missing = append(missing, name)
		}
	}
	return missing
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	default:
		return "unknown"
	}
}
