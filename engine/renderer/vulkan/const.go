package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/renderer"
)

const MaxFramesInFlight = renderer.MaxFramesInFlight

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// Descriptor bindings shared with the shaders.
const (
	uniformBinding uint32 = 0
	samplerBinding uint32 = 1
)

const maxAnisotropy float32 = 16

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}
