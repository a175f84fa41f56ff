package asm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/go-classfile/jcfg/verify"
)

// AssembleError is the composite failure Assemble raises when layout
// completes with a non-empty verifier log and the caller hasn't opted
// out via Config.DoRaise (spec.md §7).
type AssembleError struct {
	Log   *verify.Log
	cause error
}

func newAssembleError(log *verify.Log) *AssembleError {
	return &AssembleError{
		Log:   log,
		cause: errors.WithStack(fmt.Errorf("asm: %d verifier error(s)", log.Len())),
	}
}

func (e *AssembleError) Error() string { return e.cause.Error() }

// Unwrap exposes the captured stack trace to errors.As/errors.Is.
func (e *AssembleError) Unwrap() error { return e.cause }
