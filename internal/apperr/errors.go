// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidPosition is returned for a click or lookup on a string/fret
	// pair that is not on the instrument grid. No state changes.
	ErrInvalidPosition = errors.New("invalid fret position")
	ErrInvalidMode     = errors.New("invalid mode")
	ErrInvalidShape    = errors.New("invalid shape")
	ErrInvalidKey      = errors.New("invalid key")

	// ErrExportFailure wraps any render failure. No artifact accompanies it.
	ErrExportFailure = errors.New("export failed")
	// ErrExtractionFailure marks one PDF that could not be read or parsed.
	ErrExtractionFailure = errors.New("extraction failed")
)
