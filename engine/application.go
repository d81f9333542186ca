package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vkcube/engine/core"
)

type WindowConfig struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting position x axis.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis.
	StartPosY uint32 `toml:"y"`
	// Window starting width.
	StartWidth uint32 `toml:"width"`
	// Window starting height.
	StartHeight uint32 `toml:"height"`
}

type RendererConfig struct {
	// Enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool `toml:"validation"`
	// Use the mailbox present mode when the surface supports it, FIFO otherwise.
	PreferMailbox bool       `toml:"prefer_mailbox"`
	ClearColor    [4]float32 `toml:"clear_color"`
}

type AssetsConfig struct {
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	Texture        string `toml:"texture"`
	// Watch the shader files and rebuild the pipeline when they change.
	Watch bool `toml:"watch"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	LogLevel string         `toml:"log_level"`
}

// DefaultApplicationConfig returns the configuration used when no file is given.
func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Title:       "Vulkan Cube",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  800,
			StartHeight: 600,
		},
		Renderer: RendererConfig{
			PreferMailbox: true,
			ClearColor:    [4]float32{0, 0, 0, 1},
		},
		Assets: AssetsConfig{
			VertexShader:   "assets/shaders/shader.vert.spv",
			FragmentShader: "assets/shaders/shader.frag.spv",
			Texture:        "assets/textures/texture.png",
		},
		LogLevel: "info",
	}
}

// LoadApplicationConfig reads a TOML file on top of the defaults. An empty
// path returns the defaults.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.StartWidth == 0 || c.Window.StartHeight == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", core.ErrInvalidConfig, c.Window.StartWidth, c.Window.StartHeight)
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return fmt.Errorf("%w: both shader paths are required", core.ErrInvalidConfig)
	}
	if c.Assets.Texture == "" {
		return fmt.Errorf("%w: texture path is required", core.ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown log level %q", core.ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
