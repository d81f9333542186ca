//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the cube with config.toml and validation layers.
func (Run) Cube() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run vkcube...")
	if _, err := executeCmd("go", withArgs("run", ".", "--config", "config.toml", "--validation", "--watch"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}
