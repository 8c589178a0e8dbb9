package emulator

import (
	"errors"

	"github.com/mmc28a/vixl/translate"
)

var f = translate.From

var (
	ErrUndefined = errors.New(f("undefined instruction"))
	ErrMemRange  = errors.New(f("memory access out of range"))
	ErrStepLimit = errors.New(f("step limit exceeded"))
	ErrITMask    = errors.New(f("unsupported it block mask"))
)

// ErrRuntime indicates where in the code an execution error occurred.
type ErrRuntime struct {
	PC  uint32
	Err error
}

func (err *ErrRuntime) Error() string {
	return f("pc %#x: %v", err.PC, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
