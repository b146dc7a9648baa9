// Package bafmerr defines the sentinel error kinds shared across the
// feature-accuracy optimizer. Callers use errors.Is against these sentinels;
// detail such as the offending address is carried only in the error text.
package bafmerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. An internal/* error that falls into one of these kinds
// wraps it via %w so callers can classify failures without string matching.
// Errors that wrap none of them (for example config validation failures and
// errors passed up unchanged from the csv and json layers) are unclassified.
var (
	// ErrInputFormat marks malformed trace, snapshot, or config input.
	ErrInputFormat = errors.New("input format")
	// ErrInputRange marks a numeric value outside its documented bounds.
	ErrInputRange = errors.New("input range")
	// ErrNotFound marks a lookup for a BAFM entry that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvariant marks an internal aggregate mismatch — a bug, not bad data.
	ErrInvariant = errors.New("invariant violated")
	// ErrResumeCorrupt marks a checkpoint log that cannot be trusted to resume from.
	ErrResumeCorrupt = errors.New("resume corrupt")
	// ErrIO marks a failure reading or writing a file.
	ErrIO = errors.New("io error")
	// ErrOverflow marks a 64-bit counter that would wrap.
	ErrOverflow = errors.New("arithmetic overflow")
)

// NotFound wraps ErrNotFound with the offending address for logging.
func NotFound(addr int64) error {
	return fmt.Errorf("block address %d: %w", addr, ErrNotFound)
}

// Invariant wraps ErrInvariant with a description of what failed to hold.
func Invariant(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvariant)...)
}

// ResumeCorrupt wraps ErrResumeCorrupt with a description of the mismatch.
func ResumeCorrupt(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrResumeCorrupt)...)
}
