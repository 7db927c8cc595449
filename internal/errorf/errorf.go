// Package errorf builds formatted, chainable errors, mirroring the teacher's
// internal errorf package: E and D both build an error from a format string
// and arguments (D is used for expected/benign conditions, E for the rest);
// both preserve %w-wrapped causes so errors.Is/errors.As keep working.
package errorf

import "fmt"

// E builds an error from format and args, same semantics as fmt.Errorf.
func E(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// D builds an error from format and args; used at call sites where the
// condition is expected/benign and shouldn't be logged as loudly (paired
// with chk.D rather than chk.E).
func D(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
