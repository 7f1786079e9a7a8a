// Package validation checks typed input against the expected text.
//
// Results are memoized by the exact (input, expected) pair. While the input is
// a strict prefix of the expected text, the next few keystrokes are validated
// ahead of time so the following call is a cache hit. Long inputs are compared
// in fixed-size chunks whose comparisons are memoized as well, so successive
// calls sharing a prefix do not compare it again.
package validation
