// Package asm lowers a cfg.Graph and its trace.Result back into a
// Code attribute: block layout, jump-displacement fixup, exception
// table synthesis and stack-map frame computation (spec.md §4.5).
package asm

// Config controls one Assemble call. Use DefaultConfig and the With*
// options rather than constructing a Config by hand, so new fields
// keep a safe default.
type Config struct {
	// DoRaise raises an *AssembleError when the verifier log is
	// non-empty after layout completes, instead of returning the
	// best-effort Code alongside the log (spec.md §7 "raises unless
	// do_raise is false").
	DoRaise bool

	// RemoveDeadBlocks drops blocks the trace never reached instead of
	// keeping them with a synthesized single-Throwable exit frame
	// (spec.md §4.5 phase 1).
	RemoveDeadBlocks bool

	// Exact is set by WithExact. Assemble does not re-trace the graph
	// and does not read this field.
	Exact bool

	// InlineSubroutines splices a jsr/ret subroutine body once per
	// call site instead of emitting real jsr/ret bytecode, dropping
	// both instructions and relying on physical adjacency for control
	// flow (spec.md §4.5 phase 1 step 5).
	InlineSubroutines bool

	// MaxInlineDepth bounds how many call sites a single subroutine
	// body is spliced into; callers beyond the cap keep real jsr/ret
	// bytecode and share one standalone copy of the body (spec.md §9
	// Open Question (c), resolved in DESIGN.md).
	MaxInlineDepth int
}

// Option configures a Config returned by DefaultConfig.
type Option func(*Config)

// DefaultConfig returns the Config the rest of this package assumes
// unless a caller opts out of a specific phase.
func DefaultConfig() Config {
	return Config{
		DoRaise:           true,
		RemoveDeadBlocks:  false,
		Exact:             false,
		InlineSubroutines: true,
		MaxInlineDepth:    8,
	}
}

// WithDoRaise sets Config.DoRaise.
func WithDoRaise(v bool) Option { return func(c *Config) { c.DoRaise = v } }

// WithRemoveDeadBlocks sets Config.RemoveDeadBlocks.
func WithRemoveDeadBlocks(v bool) Option { return func(c *Config) { c.RemoveDeadBlocks = v } }

// WithExact sets Config.Exact.
func WithExact(v bool) Option { return func(c *Config) { c.Exact = v } }

// WithInlineSubroutines sets Config.InlineSubroutines.
func WithInlineSubroutines(v bool) Option { return func(c *Config) { c.InlineSubroutines = v } }

// WithMaxInlineDepth sets Config.MaxInlineDepth.
func WithMaxInlineDepth(n int) Option { return func(c *Config) { c.MaxInlineDepth = n } }
