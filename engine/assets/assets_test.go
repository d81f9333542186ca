package assets

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/vkcube/engine/assets/loaders"
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShader(t *testing.T, path string, extra uint32) {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, []uint32{loaders.SPIRVMagic, extra}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadAsset(t *testing.T) {
	am, err := NewAssetManager(false)
	require.NoError(t, err)
	defer am.Shutdown()

	path := filepath.Join(t.TempDir(), "shader.frag.spv")
	writeShader(t, path, 1)

	res, err := am.LoadAsset(path, loaders.ResourceTypeShader)
	require.NoError(t, err)
	assert.Equal(t, []uint32{loaders.SPIRVMagic, 1}, res.Data)
	assert.NoError(t, am.UnloadAsset(res))

	_, err = am.LoadAsset(filepath.Join(t.TempDir(), "missing.spv"), loaders.ResourceTypeShader)
	assert.ErrorIs(t, err, core.ErrAssetNotFound)

	_, err = am.LoadAsset(path, loaders.ResourceTypeNone)
	assert.Error(t, err)

	assert.Empty(t, am.Poll(), "nothing is tracked without watching")
}

func TestWatchReportsModifiedAssets(t *testing.T) {
	am, err := NewAssetManager(true)
	require.NoError(t, err)
	defer am.Shutdown()

	dir := t.TempDir()
	shader := filepath.Join(dir, "shader.vert.spv")
	writeShader(t, shader, 1)

	_, err = am.LoadAsset(shader, loaders.ResourceTypeShader)
	require.NoError(t, err)
	assert.Empty(t, am.Poll())

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	writeShader(t, shader, 2)

	abs, err := filepath.Abs(shader)
	require.NoError(t, err)

	var changed []string
	assert.Eventually(t, func() bool {
		changed = append(changed, am.Poll()...)
		return len(changed) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{abs}, changed)

	require.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown())
}
