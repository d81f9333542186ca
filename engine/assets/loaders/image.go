package loaders

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	"github.com/spaghettifunk/vkcube/engine/core"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var supportedImageTypes = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"tif":  true,
	"webp": true,
}

type ImageLoader struct{}

// Load decodes an image file into RGBA8 pixels.
func (il *ImageLoader) Load(path string) (*Resource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("texture %s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("failed to read texture %s: %w", path, err)
	}

	kind, err := filetype.Match(raw)
	if err != nil || !supportedImageTypes[kind.Extension] {
		return nil, fmt.Errorf("texture %s: %w: %s", path, core.ErrUnsupportedTexture, kind.MIME.Value)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}

	data := toRGBA(img)
	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(res *Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

func toRGBA(img image.Image) *ImageData {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &ImageData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}
