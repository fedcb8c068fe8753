// Package panic implements the kernel's one fatal-error path: invariant
// breaches in the allocator or page-table manager cannot be recovered from,
// so they are recorded to the kernel message ring and the hart is parked.
//
// This mirrors original_source/src/lang_items.rs: a panic handler that
// writes a diagnostic and then loops. Unlike the Rust panic handler we
// cannot unwind past the call site, so Fatalf never returns — callers should
// not expect control flow to continue, exactly as a Rust `-> !` panic does
// not.
package panic

import (
	"fmt"
	"runtime"
)

// Sink receives the rendered fatal message before the hart parks. Boot
// wires this to the kernel message ring's Add method; tests can substitute a recording sink
// to assert panics occurred without actually parking the test process.
var Sink func(msg string) = func(string) {}

// haltSentinel is the value recovered by AssertFatal in tests; production
// code never recovers it.
type haltSentinel struct{ msg string }

// Halt is the architecture idle primitive invoked after a fatal record is
// written. The default implementation panics with haltSentinel so package
// tests can use AssertFatal to observe a fatal condition without hanging
// the test goroutine forever. Nothing in the tree replaces it, so the
// riscv64 build halts through this same panic; there is no `wfi` loop.
var Halt func(msg string) = func(msg string) { panic(haltSentinel{msg}) }

// Fatalf records a Fatal-level kmsg entry with the caller's location and
// halts the hart. It never returns.
func Fatalf(format string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	loc := "unknown:0"
	if ok {
		loc = fmt.Sprintf("%s:%d", file, line)
	}
	msg := fmt.Sprintf("[Fatal] %s: %s", loc, fmt.Sprintf(format, args...))
	Sink(msg)
	Halt(msg)
}

// AssertFatal runs fn and reports whether it triggered Fatalf (via the
// default Halt implementation's sentinel panic). It is for tests exercising
// invariant breaches — B-Power/OOM-style assertions in internal/buddy and
// internal/sv39 — and re-panics anything that is not the fatal sentinel so
// genuine test bugs are not swallowed.
func AssertFatal(fn func()) (triggered bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			if h, ok := r.(haltSentinel); ok {
				triggered, msg = true, h.msg
				return
			}
			panic(r)
		}
	}()
	fn()
	return false, ""
}
