package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, chooseSurfaceFormat([]vk.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, chooseSurfaceFormat([]vk.SurfaceFormat{unorm}))
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo, vk.PresentModeMailbox}

	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(all, true))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(all, false))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo}, true))
}

func TestChooseExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{CurrentExtent: vk.Extent2D{Width: 800, Height: 600}}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseExtent(fixed, 1024, 768))

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 2048},
	}
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, chooseExtent(free, 1024, 768))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 2048}, chooseExtent(free, 8000, 8000))
	assert.Equal(t, vk.Extent2D{Width: 1, Height: 1}, chooseExtent(free, 0, 0))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2}))
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(2), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}
