package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadApplicationConfigDefaults(t *testing.T) {
	cfg, err := LoadApplicationConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadApplicationConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[window]
title = "cube"
width = 1280
height = 720

[renderer]
validation = true
clear_color = [0.1, 0.2, 0.3, 1.0]

[assets]
texture = "textures/crate.png"
watch = true
`)

	cfg, err := LoadApplicationConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "cube", cfg.Window.Title)
	assert.Equal(t, uint32(1280), cfg.Window.StartWidth)
	assert.Equal(t, uint32(720), cfg.Window.StartHeight)
	assert.Equal(t, uint32(100), cfg.Window.StartPosX, "unset fields keep defaults")
	assert.True(t, cfg.Renderer.Validation)
	assert.True(t, cfg.Renderer.PreferMailbox)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, "textures/crate.png", cfg.Assets.Texture)
	assert.Equal(t, "assets/shaders/shader.vert.spv", cfg.Assets.VertexShader)
	assert.True(t, cfg.Assets.Watch)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadApplicationConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{name: "zero width", content: "[window]\nwidth = 0\n", target: core.ErrInvalidConfig},
		{name: "empty shader", content: "[assets]\nvertex_shader = \"\"\n", target: core.ErrInvalidConfig},
		{name: "empty texture", content: "[assets]\ntexture = \"\"\n", target: core.ErrInvalidConfig},
		{name: "bad level", content: "log_level = \"loud\"\n", target: core.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadApplicationConfig(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadApplicationConfig(writeConfig(t, "[window]\nfullscreen = true\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadApplicationConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorIs(t, err, core.ErrAssetNotFound)
	})
}
