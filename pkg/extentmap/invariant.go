package extentmap

import "fmt"

// panicf reports a contract violation: a caller misuse that the design
// treats as fatal rather than recoverable (SPEC_FULL.md §7, error class 2).
// Examples: releasing a buffer more times than it was acquired, evicting a
// dirty buffer, or passing end < start to a range operation.
func panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
