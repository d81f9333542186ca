package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func spirv(words ...uint32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, append([]uint32{SPIRVMagic}, words...))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestShaderLoader(t *testing.T) {
	sl := &ShaderLoader{}

	res, err := sl.Load(writeFile(t, "shader.vert.spv", spirv(0x00010000, 7)))
	require.NoError(t, err)
	assert.Equal(t, "shader.vert.spv", res.Name)
	assert.Equal(t, ResourceTypeShader, res.Type)
	assert.Equal(t, uint64(12), res.DataSize)
	assert.Equal(t, []uint32{SPIRVMagic, 0x00010000, 7}, res.Data)

	require.NoError(t, sl.Unload(res))
	assert.Nil(t, res.Data)
}

func TestShaderLoaderErrors(t *testing.T) {
	sl := &ShaderLoader{}

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{name: "empty", data: nil, target: core.ErrInvalidShader},
		{name: "unaligned", data: spirv(1)[:7], target: core.ErrInvalidShader},
		{name: "bad magic", data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, target: core.ErrInvalidShader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sl.Load(writeFile(t, "bad.spv", tt.data))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := sl.Load(filepath.Join(t.TempDir(), "missing.spv"))
		assert.ErrorIs(t, err, core.ErrAssetNotFound)
	})
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

var testPixels = []byte{
	255, 0, 0, 255, 0, 255, 0, 255,
	0, 0, 255, 255, 255, 255, 255, 255,
}

func TestImageLoader(t *testing.T) {
	encoders := map[string]func(*bytes.Buffer, image.Image) error{
		"texture.png":  func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) },
		"texture.bmp":  func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) },
		"texture.tiff": func(b *bytes.Buffer, m image.Image) error { return tiff.Encode(b, m, nil) },
	}

	il := &ImageLoader{}
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, encode(buf, testImage()))

			res, err := il.Load(writeFile(t, name, buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, ResourceTypeImage, res.Type)

			data, ok := res.Data.(*ImageData)
			require.True(t, ok)
			assert.Equal(t, uint32(2), data.Width)
			assert.Equal(t, uint32(2), data.Height)
			assert.Equal(t, testPixels, data.Pixels)
			assert.Equal(t, uint64(16), res.DataSize)
		})
	}
}

func TestImageLoaderErrors(t *testing.T) {
	il := &ImageLoader{}

	_, err := il.Load(writeFile(t, "texture.jpg", []byte("definitely not an image")))
	assert.ErrorIs(t, err, core.ErrUnsupportedTexture)

	_, err = il.Load(filepath.Join(t.TempDir(), "texture.jpg"))
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestToRGBAOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	data := toRGBA(sub)
	assert.Equal(t, uint32(2), data.Width)
	assert.Equal(t, uint32(2), data.Height)
	assert.Len(t, data.Pixels, 16)
	assert.Equal(t, src.Pix[src.PixOffset(2, 2):src.PixOffset(2, 2)+8], data.Pixels[:8])
}
