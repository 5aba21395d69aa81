package fretboard

import (
	"fmt"
	"strings"

	"github.com/starford/caged/internal/apperr"
)

// Mode is the exclusive interaction mode. The zero value is not a mode;
// sessions always hold Box or Edit.
type Mode string

const (
	// Box treats clicks as shape navigation.
	Box Mode = "box"
	// Edit treats clicks as direct mutation of note membership.
	Edit Mode = "edit"
)

// ParseMode accepts "box" or "edit" in any case.
func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case Box:
		return Box, nil
	case Edit:
		return Edit, nil
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidMode, v)
}
