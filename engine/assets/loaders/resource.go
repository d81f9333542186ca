package loaders

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	/** @brief SPIR-V shader module. */
	ResourceTypeShader
	/** @brief Image decoded to tightly packed RGBA8 pixels. */
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource, the file name without directory. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data: []uint32 for shaders, *ImageData for images. */
	Data interface{}
}

type ImageData struct {
	Width  uint32
	Height uint32
	// Four bytes per pixel, row-major, no padding.
	Pixels []byte
}
