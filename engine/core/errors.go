package core

import (
	"errors"
	"fmt"
)

var (
	ErrAssetNotFound      = errors.New("asset not found")
	ErrInvalidShader      = errors.New("invalid SPIR-V bytecode")
	ErrUnsupportedTexture = errors.New("unsupported texture format")
	ErrNoSuitableDevice   = errors.New("no suitable physical device")
	ErrNoMemoryType       = errors.New("no suitable memory type")
	ErrNoDepthFormat      = errors.New("no supported depth format")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// FatalError reports a condition the application cannot recover from.
// The process is expected to exit with a non-zero status after receiving it.
type FatalError struct {
	Reason string
	Err    error
}

func NewFatalError(reason string, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return "fatal: " + e.Reason
	}
	return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether any error in err's chain is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
