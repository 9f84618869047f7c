package nn

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by ConfigError.
var (
	// ErrGroupsMismatch indicates channel counts not divisible by the group count.
	ErrGroupsMismatch = errors.New("channels must be divisible by groups")

	// ErrInvalidConfig indicates a hyperparameter out of range (non-positive
	// kernel, stride, dilation or channel count, wrong number of axes).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrShapeMismatch indicates a record whose tensors disagree with its hyperparameters.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrSamePaddingEvenKernel indicates Same padding requested with an even kernel size.
	ErrSamePaddingEvenKernel = errors.New("same padding is not supported with even kernel sizes")

	// ErrMissingFan indicates an initializer that needs a fan value which was not supplied.
	ErrMissingFan = errors.New("initializer requires fan value")
)

// ConfigError reports an invalid layer configuration or record.
// It is returned before any parameter is allocated.
type ConfigError struct {
	Layer   string // e.g. "conv2d"
	Err     error  // one of the sentinel errors above
	Details string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %v", e.Layer, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Layer, e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(layer string, err error, format string, args ...any) *ConfigError {
	return &ConfigError{Layer: layer, Err: err, Details: fmt.Sprintf(format, args...)}
}
