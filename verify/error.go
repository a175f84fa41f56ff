package verify

import (
	"fmt"

	"github.com/go-stack/stack"
)

// Error is one verifier diagnostic: its Kind, where in the CFG it was
// observed, a human-readable message, and the Go call site that
// raised it. The call site is informational only (useful when a
// caller hand-edits a CFG between trace and assemble and needs to
// find which internal pass rejected the edit); it is left out of the
// message Error prints, but it is a struct field, so two otherwise
// equal Errors raised from different call sites are not ==.
type Error struct {
	Kind    Kind
	Source  Source
	Message string

	caller stack.Call
}

// newError constructs an Error, capturing the caller two frames up
// (the function that called the exported Log method) as provenance.
func newError(kind Kind, src Source, format string, args ...interface{}) Error {
	return Error{
		Kind:    kind,
		Source:  src,
		Message: fmt.Sprintf(format, args...),
		caller:  stack.Caller(2),
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("verify: %s at %s: %s", e.Kind, e.Source, e.Message)
}

// Caller returns where in the verifier this Error was raised, for
// diagnostics that want to print it explicitly (Error's own message
// omits it to stay readable in normal output).
func (e Error) Caller() stack.Call { return e.caller }
