package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/assets/loaders"
	"github.com/spaghettifunk/vkcube/engine/core"
)

// VulkanTexture is a sampled sRGB image.
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

// TextureCreate uploads RGBA8 pixels through a staging buffer and leaves the
// image in the shader read-only layout.
func TextureCreate(context *VulkanContext, data *loaders.ImageData) (*VulkanTexture, error) {
	imageSize := uint64(data.Width) * uint64(data.Height) * 4
	if uint64(len(data.Pixels)) != imageSize {
		return nil, fmt.Errorf("texture has %d bytes, expected %d for %dx%d", len(data.Pixels), imageSize, data.Width, data.Height)
	}

	staging, err := BufferCreate(context, imageSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, fmt.Errorf("failed to create texture staging buffer: %w", err)
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(context, 0, data.Pixels); err != nil {
		return nil, err
	}

	image, err := ImageCreate(
		context,
		data.Width,
		data.Height,
		vk.FormatR8g8b8a8Srgb,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	texture := &VulkanTexture{Image: image}

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		texture.Destroy(context)
		return nil, err
	}
	if err := image.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cb.Free(context, context.Device.GraphicsCommandPool)
		texture.Destroy(context)
		return nil, err
	}
	image.CopyFromBuffer(staging.Handle, cb)
	if err := image.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		cb.Free(context, context.Device.GraphicsCommandPool)
		texture.Destroy(context)
		return nil, err
	}
	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
		texture.Destroy(context)
		return nil, err
	}

	sampler, err := samplerCreate(context)
	if err != nil {
		texture.Destroy(context)
		return nil, err
	}
	texture.Sampler = sampler

	core.LogDebug("Texture created: %dx%d.", data.Width, data.Height)
	return texture, nil
}

func samplerCreate(context *VulkanContext) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0.0,
		MinLod:                  0.0,
		MaxLod:                  0.0,
	}
	if context.Device.SupportsAnisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = context.Device.MaxAnisotropy
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		return nil, NewResultError("vkCreateSampler", res)
	}
	return sampler, nil
}

func (vt *VulkanTexture) Destroy(context *VulkanContext) {
	if vt.Sampler != nil {
		vk.DestroySampler(context.Device.LogicalDevice, vt.Sampler, context.Allocator)
		vt.Sampler = nil
	}
	if vt.Image != nil {
		vt.Image.Destroy(context)
		vt.Image = nil
	}
}
