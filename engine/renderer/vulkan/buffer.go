package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanBuffer is a buffer with its own dedicated memory allocation.
type VulkanBuffer struct {
	Handle   vk.Buffer
	Memory   vk.DeviceMemory
	Size     uint64
	Usage    vk.BufferUsageFlags
	Property vk.MemoryPropertyFlags
	// Set while the memory is persistently mapped.
	Mapped unsafe.Pointer
}

// BufferCreate creates a buffer, allocates memory with properties and binds it.
func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		Size:     size,
		Usage:    usage,
		Property: properties,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		return nil, NewResultError("vkCreateBuffer", res)
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy(context)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		buffer.Destroy(context)
		return nil, NewResultError("vkAllocateMemory", res)
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		return nil, NewResultError("vkBindBufferMemory", res)
	}
	return buffer, nil
}

// LoadData copies data into host visible memory at offset.
func (b *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("buffer overflow: %d bytes at offset %d into %d", len(data), offset, b.Size)
	}
	if b.Mapped != nil {
		vk.Memcopy(unsafe.Add(b.Mapped, offset), data)
		return nil
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return NewResultError("vkMapMemory", res)
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// MapPersistent keeps the whole buffer mapped until Destroy.
func (b *VulkanBuffer) MapPersistent(context *VulkanContext) error {
	if b.Mapped != nil {
		return nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.Size), 0, &ptr); res != vk.Success {
		return NewResultError("vkMapMemory", res)
	}
	b.Mapped = ptr
	return nil
}

// CopyTo records and waits for a copy of size bytes into dest.
func (b *VulkanBuffer) CopyTo(context *VulkanContext, dest *VulkanBuffer, size uint64) error {
	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(cb.Handle, b.Handle, dest.Handle, 1, []vk.BufferCopy{region})
	return cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue)
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
		b.Mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
}

// DeviceLocalBufferCreate uploads data into a new device local buffer through a staging buffer.
func DeviceLocalBufferCreate(context *VulkanContext, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	size := uint64(len(data))

	staging, err := BufferCreate(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(context, 0, data); err != nil {
		return nil, err
	}

	buffer, err := BufferCreate(context, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	if err := staging.CopyTo(context, buffer, size); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	return buffer, nil
}
