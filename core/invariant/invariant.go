// Package invariant provides contract assertions for the container and its VM.
//
// Assertions are a force multiplier for discovering bugs: Precondition and
// Postcondition express function contracts, Invariant expresses internal
// consistency. All of them panic on violation — these catch programming
// errors (a broken reverse index, a node with no compiled state), never
// formula-author mistakes, which surface as Value errors instead (see
// core/errorsx).
package invariant

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal invariant during function execution.
//
// Used by core/depindex.CheckSync (which callers run explicitly, e.g. in
// tests), by runtime/vm for malformed registry entries and expression
// types, and by runtime/container for an unhandled RPC request type.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including a typed nil pointer/interface.
func NotNil(value interface{}, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// Bounded panics if a loop counter exceeds max. The container's
// update_refs pass does not call it: that pass stops at its iteration
// bound and returns.
func Bounded(iteration, max int, name string) {
	if iteration > max {
		fail("INVARIANT", "%s exceeded bound %d (got %d)", name, max, iteration)
	}
}

// ExpectNoError panics if err is not nil.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// ContextNotBackground panics if ctx is context.Background(). Only the
// process's root entry point (cmd/container's main) should construct a
// fresh context; everywhere else must receive and propagate a parent so
// Ctrl-C cancellation reaches every goroutine it spawns.
func ContextNotBackground(ctx context.Context, location string) {
	if ctx == nil {
		fail("PRECONDITION", "%s: context must not be nil", location)
	}
	if ctx == context.Background() {
		fail("PRECONDITION", "%s: context must not be Background() - parent context required for cancellation", location)
	}
}

func fail(kind, format string, args ...interface{}) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]interface{}{kind}, args...)...)
	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}
	panic(msg)
}
