package lattice

import "errors"

var (
	// ErrInvalidDimension indicates a lattice was requested with a non-positive
	// width or height, or a negative padding radius.
	ErrInvalidDimension = errors.New("lattice: width and height must be positive and radius non-negative")
	// ErrOutOfBounds indicates a coordinate outside the writable or padded grid.
	ErrOutOfBounds = errors.New("lattice: coordinate out of bounds")
	// ErrReactivation indicates an attempt to move a cell from INACTIVE back to
	// ACTIVE within a phase.
	ErrReactivation = errors.New("lattice: inactive cell cannot be reactivated during a phase")
)
