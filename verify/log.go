package verify

// Log accumulates Errors over the course of one trace or assemble
// pass. A frame-level operation that fails returns an error, which
// the trace records here; no placeholder value is synthesized, so the
// rest of that block is not traced, but tracing continues with the
// block's successors and other blocks still report their diagnostics.
type Log struct {
	errs []Error
}

// Add records a new Error built from kind, src and a formatted
// message, and returns it (callers often want to both log and return
// the same Error from the function that found it).
func (l *Log) Add(kind Kind, src Source, format string, args ...interface{}) Error {
	e := newError(kind, src, format, args...)
	l.errs = append(l.errs, e)
	return e
}

// Empty reports whether no errors have been recorded.
func (l *Log) Empty() bool { return len(l.errs) == 0 }

// Len returns the number of recorded errors.
func (l *Log) Len() int { return len(l.errs) }

// Errors returns a read-only copy of the recorded errors in the order
// they were added (spec.md §7 "the verifier returns a read-only list
// of errors").
func (l *Log) Errors() []Error {
	out := make([]Error, len(l.errs))
	copy(out, l.errs)
	return out
}

// Merge appends every error from other into l, preserving order.
func (l *Log) Merge(other *Log) {
	if other == nil {
		return
	}
	l.errs = append(l.errs, other.errs...)
}
