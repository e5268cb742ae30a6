package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch  = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidChecksum   = errors.New("invalid sha256 digest")
	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrUnknownTensor     = errors.New("tensor does not belong to the model")
	ErrUnsupportedDType  = errors.New("unsupported tensor dtype")
	ErrEmptyStateDict    = errors.New("state dict is empty")

	// ErrSkipTensor is returned by a mapper for tensors that exist in a file
	// but carry no model state, such as PyTorch batch counters.
	ErrSkipTensor = errors.New("tensor skipped")
)

// TensorError records which tensor a read or write failed on.
type TensorError struct {
	Tensor string
	Err    error
}

// Error implements the error interface.
func (e *TensorError) Error() string {
	return fmt.Sprintf("tensor %q: %v", e.Tensor, e.Err)
}

// Unwrap returns the underlying error.
func (e *TensorError) Unwrap() error {
	return e.Err
}
