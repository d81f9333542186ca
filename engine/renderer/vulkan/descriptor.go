package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * @brief The descriptor set layout and pool shared by all frame slots.
 * Binding 0 is the uniform buffer read by the vertex stage, binding 1
 * the combined image sampler read by the fragment stage.
 */
type VulkanDescriptors struct {
	Layout vk.DescriptorSetLayout
	Pool   vk.DescriptorPool
}

// DescriptorsCreate creates the layout and a pool with room for setCount sets.
func DescriptorsCreate(context *VulkanContext, setCount uint32) (*VulkanDescriptors, error) {
	descriptors := &VulkanDescriptors{}

	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         samplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		return nil, NewResultError("vkCreateDescriptorSetLayout", res)
	}
	descriptors.Layout = layout

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: setCount},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: setCount},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       setCount,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		descriptors.Destroy(context)
		return nil, NewResultError("vkCreateDescriptorPool", res)
	}
	descriptors.Pool = pool

	return descriptors, nil
}

// Allocate returns a set pointing at uniforms and texture. Sets are freed with the pool.
func (d *VulkanDescriptors) Allocate(context *VulkanContext, uniforms *VulkanBuffer, texture *VulkanTexture) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.Layout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &set); res != vk.Success {
		return nil, NewResultError("vkAllocateDescriptorSets", res)
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uniformBinding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniforms.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(uniforms.Size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      samplerBinding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   texture.Image.View,
				Sampler:     texture.Sampler,
			}},
		},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return set, nil
}

func (d *VulkanDescriptors) Destroy(context *VulkanContext) {
	if d.Pool != nil {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, d.Pool, context.Allocator)
		d.Pool = nil
	}
	if d.Layout != nil {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, d.Layout, context.Allocator)
		d.Layout = nil
	}
}
