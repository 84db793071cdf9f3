package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnitNotOpen indicates the coder has no open session for the unit
	ErrUnitNotOpen = errors.New("unit not open")

	// ErrUnknownVariable indicates the variable is not part of the codebook
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrInvalidSpan indicates a span outside the unit tokens or crossing fields
	ErrInvalidSpan = errors.New("invalid span")

	// ErrLockHeld indicates another worker is already processing the unit
	ErrLockHeld = errors.New("lock held by another instance")
)

// CyclicCodebookError is returned when a code's parent chain loops back on itself.
type CyclicCodebookError struct {
	Code string
	Path []string
}

func (e *CyclicCodebookError) Error() string {
	return fmt.Sprintf("cyclic codebook: code %q has parent chain %s", e.Code, strings.Join(e.Path, " -> "))
}
