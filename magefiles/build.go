//go:build mage

package main

import (
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL shader under assets/shaders into SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the vkcube binary.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/vkcube", "."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}

func buildShaders() error {
	sources, err := shaderSources()
	if err != nil {
		return err
	}
	for _, src := range sources {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

func shaderSources() ([]string, error) {
	var sources []string
	for _, stage := range []string{"vert", "frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+stage))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !strings.HasSuffix(m, ".spv") {
				sources = append(sources, m)
			}
		}
	}
	return sources, nil
}
