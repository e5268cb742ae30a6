package nn

import "errors"

var (
	// ErrMissingTensor is returned when a state dict lacks a required entry.
	ErrMissingTensor = errors.New("missing tensor in state dict")

	// ErrShapeMismatch is returned when a state dict entry has the wrong shape.
	ErrShapeMismatch = errors.New("tensor shape mismatch")

	// ErrDTypeMismatch is returned when a state dict entry is not float32.
	ErrDTypeMismatch = errors.New("tensor dtype mismatch")
)
