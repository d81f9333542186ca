package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/scene"
)

/**
 * @brief Everything one in-flight frame owns. Slots are reused round robin;
 * the fence guards reuse of the command buffer and uniform buffer.
 */
type FrameSlot struct {
	CommandBuffer *VulkanCommandBuffer
	/** @brief Signaled by acquire, waited on by the submission. */
	ImageAvailable vk.Semaphore
	/** @brief Signaled by the submission, waited on by present. */
	RenderFinished vk.Semaphore
	/** @brief Signaled when the GPU is done with this slot. Created signaled. */
	InFlight *VulkanFence
	/** @brief Host visible uniform buffer, mapped for the slot's lifetime. */
	Uniforms *VulkanBuffer
	/** @brief Points at Uniforms and the cube texture. */
	DescriptorSet vk.DescriptorSet
}

// FrameSlotCreate builds a slot. Descriptor sets are freed with the pool, so
// Destroy does not touch them.
func FrameSlotCreate(context *VulkanContext, descriptors *VulkanDescriptors, texture *VulkanTexture) (*FrameSlot, error) {
	slot := &FrameSlot{}

	cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
	if err != nil {
		return nil, err
	}
	slot.CommandBuffer = cb

	if slot.ImageAvailable, err = semaphoreCreate(context); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	if slot.RenderFinished, err = semaphoreCreate(context); err != nil {
		slot.Destroy(context)
		return nil, err
	}

	// Signaled so the first wait on a fresh slot returns at once.
	if slot.InFlight, err = NewFence(context, true); err != nil {
		slot.Destroy(context)
		return nil, err
	}

	uniforms, err := BufferCreate(
		context,
		uint64(scene.UniformBufferSize),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		slot.Destroy(context)
		return nil, err
	}
	slot.Uniforms = uniforms
	if err := slot.Uniforms.MapPersistent(context); err != nil {
		slot.Destroy(context)
		return nil, err
	}

	if slot.DescriptorSet, err = descriptors.Allocate(context, slot.Uniforms, texture); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	return slot, nil
}

// RecreateImageAvailable replaces the image-available semaphore. After a
// stale acquire the old one may be left signaled with nobody waiting on it.
func (fs *FrameSlot) RecreateImageAvailable(context *VulkanContext) error {
	if fs.ImageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, fs.ImageAvailable, context.Allocator)
		fs.ImageAvailable = vk.NullSemaphore
	}
	semaphore, err := semaphoreCreate(context)
	if err != nil {
		return err
	}
	fs.ImageAvailable = semaphore
	return nil
}

// WriteUniforms copies ubo into the slot's mapped uniform buffer.
func (fs *FrameSlot) WriteUniforms(context *VulkanContext, ubo *scene.UniformBufferObject) error {
	return fs.Uniforms.LoadData(context, 0, ubo.Bytes())
}

func (fs *FrameSlot) Destroy(context *VulkanContext) {
	if fs.Uniforms != nil {
		fs.Uniforms.Destroy(context)
		fs.Uniforms = nil
	}
	if fs.InFlight != nil {
		fs.InFlight.FenceDestroy(context)
		fs.InFlight = nil
	}
	if fs.RenderFinished != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, fs.RenderFinished, context.Allocator)
		fs.RenderFinished = vk.NullSemaphore
	}
	if fs.ImageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, fs.ImageAvailable, context.Allocator)
		fs.ImageAvailable = vk.NullSemaphore
	}
	if fs.CommandBuffer != nil {
		fs.CommandBuffer.Free(context, context.Device.GraphicsCommandPool)
		fs.CommandBuffer = nil
	}
	fs.DescriptorSet = nil
}

func semaphoreCreate(context *VulkanContext) (vk.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &createInfo, context.Allocator, &semaphore); res != vk.Success {
		return vk.NullSemaphore, NewResultError("vkCreateSemaphore", res)
	}
	return semaphore, nil
}
