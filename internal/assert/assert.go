// Package assert provides a single panic-based precondition check. Every
// call site names a programming error, not a recoverable runtime
// condition: the caller of front()/back()/pop_front()/pop_back() on an
// empty sequence, or of value() on an exhausted stream, has already
// broken the container's contract by the time the check runs.
package assert

import "fmt"

// That panics with a formatted message if cond is false.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
