package loaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/vkcube/engine/core"
)

type ShaderLoader struct{}

// Load reads a compiled SPIR-V module. The resource data is the module as []uint32.
func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("shader %s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("failed to read shader %s: %w", path, err)
	}

	code, err := bytesToBytecode(data)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", path, err)
	}

	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     code,
	}, nil
}

func (sl *ShaderLoader) Unload(res *Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}
